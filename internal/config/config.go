// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// カタログの取得元
const (
	CatalogSourceHTTP     = "http"
	CatalogSourcePostgres = "postgres"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Backend (認証・プロフィールAPI)
	BackendURL     string
	GatewayTimeout time.Duration

	// Catalog
	CatalogSource          string
	CatalogURL             string
	CatalogRefreshInterval time.Duration

	// Database (CatalogSource=postgresの場合のみ必須)
	DatabaseURL string

	// Redis (未設定の場合はダッシュボード状態をメモリに保持する)
	RedisURL          string
	DashboardStateTTL time.Duration
	ToastTTL          time.Duration

	// Session
	SessionSecret string
	SessionMaxAge int

	// Rate Limit
	RateLimitGeneral int
	RateLimitAuth    int

	// Logging
	LogLevel string

	// Server
	ServerPort        string
	BaseURL           string
	TrustProxyHeaders bool // X-Forwarded-For等からクライアントIPを取得する

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	var missing []string

	cfg.BackendURL = strings.TrimRight(os.Getenv("BACKEND_URL"), "/")
	if cfg.BackendURL == "" {
		missing = append(missing, "BACKEND_URL")
	}

	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	if cfg.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	// カタログ取得元に応じて必須項目が変わる
	cfg.CatalogSource = strings.ToLower(getEnvString("CATALOG_SOURCE", CatalogSourceHTTP))
	cfg.CatalogURL = strings.TrimRight(os.Getenv("CATALOG_URL"), "/")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	switch cfg.CatalogSource {
	case CatalogSourceHTTP:
		if cfg.CatalogURL == "" {
			missing = append(missing, "CATALOG_URL")
		}
	case CatalogSourcePostgres:
		if cfg.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	default:
		return nil, fmt.Errorf("unsupported CATALOG_SOURCE: %q (allowed: %s, %s)",
			cfg.CatalogSource, CatalogSourceHTTP, CatalogSourcePostgres)
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.GatewayTimeout = getEnvDuration("GATEWAY_TIMEOUT", 10*time.Second)
	cfg.CatalogRefreshInterval = getEnvDuration("CATALOG_REFRESH_INTERVAL", 0)
	cfg.RedisURL = getEnvString("REDIS_URL", "")
	cfg.DashboardStateTTL = getEnvDuration("DASHBOARD_STATE_TTL", 24*time.Hour)
	cfg.ToastTTL = getEnvDuration("TOAST_TTL", 5*time.Second)
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 604800)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitAuth = getEnvInt("RATE_LIMIT_AUTH", 10)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.TrustProxyHeaders = getEnvBool("TRUST_PROXY_HEADERS", false)
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
