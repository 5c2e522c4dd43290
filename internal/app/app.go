package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/learnhub/internal/auth"
	"github.com/hitoshi/learnhub/internal/authz"
	"github.com/hitoshi/learnhub/internal/bootstrap"
	"github.com/hitoshi/learnhub/internal/catalog"
	"github.com/hitoshi/learnhub/internal/config"
	"github.com/hitoshi/learnhub/internal/dashboard"
	"github.com/hitoshi/learnhub/internal/database"
	"github.com/hitoshi/learnhub/internal/directory"
	"github.com/hitoshi/learnhub/internal/gateway"
	"github.com/hitoshi/learnhub/internal/handler"
	"github.com/hitoshi/learnhub/internal/logger"
	"github.com/hitoshi/learnhub/internal/metrics"
	"github.com/hitoshi/learnhub/internal/middleware"
	"github.com/hitoshi/learnhub/internal/model"
	"github.com/hitoshi/learnhub/internal/repository"
	"github.com/hitoshi/learnhub/internal/security"
	"github.com/hitoshi/learnhub/internal/storage"
)

// pendingRedirectTTL はログイン後リダイレクト先Cookieの署名の有効期間。
const pendingRedirectTTL = 10 * time.Minute

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、LOG_LEVELに従ってJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再初期化する
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("catalog_source", cfg.CatalogSource),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandImportCatalog:
		return runImportCatalog(cfg)
	default:
		return runServe(cfg)
	}
}

// server はワイヤリング済みのHTTPハンドラーと、停止時に解放するリソースを保持する。
type server struct {
	handler http.Handler
	loader  *catalog.Loader
	closers []func()
}

// Close は確保したリソースを逆順に解放する。
func (s *server) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// buildServer は設定から全依存関係をワイヤリングし、HTTPハンドラーを構築する。
// ctxはRedis接続確認とカタログの定期再取得の寿命に使用する。
func buildServer(ctx context.Context, cfg *config.Config, reg *prometheus.Registry) (_ *server, err error) {
	srv := &server{}
	defer func() {
		if err != nil {
			srv.Close()
		}
	}()

	log := slog.Default()
	checkers := make(map[string]handler.HealthChecker)

	// 1. メトリクス
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	// 2. セキュリティサービス
	sanitizer := security.NewContentSanitizer()
	urlGuard := security.NewURLGuard()

	// 3. Auth Gateway
	gw := gateway.NewClient(&http.Client{Timeout: cfg.GatewayTimeout}, cfg.BackendURL, log, collector)
	authService := auth.NewService(gw, sanitizer, urlGuard, log)
	bootstrapper := bootstrap.New(authService, log, collector)

	// 4. カタログ
	source, err := newCatalogSource(cfg, srv, checkers)
	if err != nil {
		return nil, err
	}
	loader := catalog.NewLoader(source, catalog.NewStore(), sanitizer, log, collector)
	srv.loader = loader

	// 5. ダッシュボード状態ストア（REDIS_URL未設定時はプロセス内メモリ）
	var stateStore dashboard.StateStore
	if cfg.RedisURL != "" {
		client, err := dashboard.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		srv.closers = append(srv.closers, func() { client.Close() })
		checkers["redis"] = handler.HealthCheckerFunc(func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		stateStore = dashboard.NewRedisStateStore(client, cfg.DashboardStateTTL)
		slog.Info("dashboard state store: redis")
	} else {
		memStore := dashboard.NewMemoryStateStore()
		go dashboard.NewCleanupJob(memStore, log, cfg.DashboardStateTTL).Start(ctx)
		stateStore = memStore
		slog.Info("dashboard state store: memory")
	}
	dashboardService := dashboard.NewService(stateStore, authService, sanitizer, log, collector, cfg.ToastTTL)

	// ログアウト時にダッシュボードのビュー状態を破棄する
	authService.OnSignOut(dashboardService.OnSignOut)

	// 6. 認可とディレクトリ
	enforcer, err := authz.NewEnforcer(authz.DefaultPolicies)
	if err != nil {
		return nil, fmt.Errorf("failed to create authorizer: %w", err)
	}
	dir, err := directory.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load directory: %w", err)
	}

	// 7. ミドルウェア依存
	rateLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitAuth))
	srv.closers = append(srv.closers, rateLimiter.Stop)

	signer := storage.NewRedirectSigner(cfg.SessionSecret, pendingRedirectTTL)
	storageFactory := storage.NewCookieFactory(storage.CookieConfig{
		Domain:      cfg.CookieDomain,
		Secure:      cfg.CookieSecure,
		TokenMaxAge: cfg.SessionMaxAge,
	}, signer)

	// 8. ルーター
	srv.handler = handler.NewRouter(&handler.RouterDeps{
		StorageFactory: storageFactory,
		Bootstrapper:   bootstrapper,
		Authorizer:     enforcer,
		RateLimiter:    rateLimiter,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		HSTS:              cfg.CookieSecure,
		TrustProxyHeaders: cfg.TrustProxyHeaders,
		Logger:            log,

		MetricsHandler: metrics.Handler(reg),
		HealthCheckers: checkers,

		AuthService:      authService,
		CatalogService:   loader,
		DashboardService: dashboardService,
		Directory:        dir,
	})

	// 9. カタログの定期再取得（CATALOG_REFRESH_INTERVAL=0の場合は起動しない）
	if cfg.CatalogRefreshInterval > 0 {
		go catalog.NewRefresher(loader, log, cfg.CatalogRefreshInterval).Start(ctx)
	}

	return srv, nil
}

// newCatalogSource はCATALOG_SOURCEに応じたカタログ取得元を返す。
// postgresの場合はDB接続を開き、解放処理とヘルスチェックを登録する。
func newCatalogSource(cfg *config.Config, srv *server, checkers map[string]handler.HealthChecker) (catalog.Source, error) {
	if cfg.CatalogSource != config.CatalogSourcePostgres {
		slog.Info("catalog source: http", slog.String("catalog_url", cfg.CatalogURL))
		return catalog.NewHTTPSource(&http.Client{Timeout: cfg.GatewayTimeout}, cfg.CatalogURL), nil
	}

	db, err := openDatabase(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	srv.closers = append(srv.closers, func() { db.Close() })
	checkers["postgres"] = db

	slog.Info("catalog source: postgres")
	return repository.NewPostgresCourseRepo(db), nil
}

func openDatabase(databaseURL string) (*sql.DB, error) {
	db, err := database.Open(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established")
	return db, nil
}

// runServe はHTTPサーバーモードで起動する。
// 全依存関係をワイヤリングし、カタログを先読みしてからHTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := buildServer(ctx, cfg, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer srv.Close()

	// カタログの先読み。失敗してもサーバーは起動し、初回アクセス時に再試行する
	go func() {
		if _, err := srv.loader.Courses(ctx); err != nil {
			slog.Warn("initial catalog load failed", slog.String("error", err.Error()))
		}
	}()

	httpServer := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      srv.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server starting", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("HTTP server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required for migrate")
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := database.Version(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)
	return nil
}

// runImportCatalog はカタログサービスからコース一覧を取得し、PostgreSQLに一括登録する。
// CATALOG_SOURCE=postgresで運用する前の初期データ投入に使用する。
func runImportCatalog(cfg *config.Config) error {
	if cfg.CatalogURL == "" || cfg.DatabaseURL == "" {
		return errors.New("CATALOG_URL and DATABASE_URL are required for import-catalog")
	}

	db, err := openDatabase(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	n, err := importCatalog(ctx,
		catalog.NewHTTPSource(&http.Client{Timeout: cfg.GatewayTimeout}, cfg.CatalogURL),
		repository.NewPostgresCourseRepo(db),
		security.NewContentSanitizer(),
	)
	if err != nil {
		return err
	}

	slog.Info("catalog import completed", slog.Int("courses", n))
	return nil
}

// courseUpserter はコース一覧の一括登録先。repository.PostgresCourseRepoが実装する。
type courseUpserter interface {
	UpsertAll(ctx context.Context, courses []model.Course) (int, error)
}

// importCatalog はsourceから取得したコースをサニタイズしてdstに登録する。
func importCatalog(ctx context.Context, source catalog.Source, dst courseUpserter, sanitizer security.ContentSanitizerService) (int, error) {
	courses, err := source.FetchCourses(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch courses: %w", err)
	}

	for i := range courses {
		courses[i] = sanitizer.SanitizeCourse(courses[i])
	}

	n, err := dst.UpsertAll(ctx, courses)
	if err != nil {
		return 0, fmt.Errorf("failed to store courses: %w", err)
	}
	return n, nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
