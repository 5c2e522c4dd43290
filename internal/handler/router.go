package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/learnhub/internal/authz"
	"github.com/hitoshi/learnhub/internal/middleware"
	"github.com/hitoshi/learnhub/internal/storage"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	StorageFactory    storage.Factory
	Bootstrapper      middleware.SessionBootstrapper
	Authorizer        authz.Authorizer
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig
	CORSAllowedOrigin string
	HSTS              bool
	TrustProxyHeaders bool
	Logger            *slog.Logger

	// 運用
	MetricsHandler http.Handler
	HealthCheckers map[string]HealthChecker

	// サービス
	AuthService      AuthServiceInterface
	CatalogService   CatalogServiceInterface
	DashboardService DashboardServiceInterface
	Directory        DirectoryInterface
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Logging → Recovery → SecurityHeaders → CORS
//	  ページ: PageSession → CSRF(Cookie発行のみ)
//	  API:    APISession → RateLimit(General) → CSRF
//
// /health と /metrics はセッションを確立しない。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	if deps.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.HSTS))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService)
	sessionHandler := NewSessionHandler(deps.Authorizer)
	courseHandler := NewCourseHandler(deps.CatalogService)
	dashboardHandler := NewDashboardHandler(deps.DashboardService)
	directoryHandler := NewDirectoryHandler(deps.Directory)

	// --- セッション不要のルート ---
	r.Get("/health", NewHealthHandler(deps.HealthCheckers))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	// --- ページ（SPAシェル） ---
	// ルートガードの判定でリダイレクトが必要な場合は302を返す
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewPageSessionMiddleware(deps.StorageFactory, deps.Bootstrapper))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		for _, p := range PagePaths {
			r.Get(p, ServePage)
		}
	})

	// --- API ---
	// ミドルウェアスタック: APISession → RateLimit(General) → CSRF
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NewAPISessionMiddleware(deps.StorageFactory, deps.Bootstrapper))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		r.Get("/session", sessionHandler.GetSession)

		// 認証（認証専用レート制限を追加）
		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(deps.RateLimiter.AuthMiddleware())
				r.Post("/login", authHandler.Login)
				r.Post("/signup", authHandler.Signup)
				r.Post("/reset-password", authHandler.ResetPassword)
				r.Post("/confirm-password-reset", authHandler.ConfirmPasswordReset)
			})
			r.Post("/logout", authHandler.Logout)
		})

		// コースカタログ
		r.Route("/courses", func(r chi.Router) {
			r.Get("/", courseHandler.ListCourses)
			r.Get("/{id}", courseHandler.GetCourse)
		})

		// ディレクトリ
		r.Get("/ai-tools", directoryHandler.ListAITools)
		r.Get("/investors", directoryHandler.ListInvestors)

		// ダッシュボード（認証必須）
		r.Route("/dashboard", func(r chi.Router) {
			r.Use(middleware.RequireIdentity())
			r.Get("/", dashboardHandler.GetDashboard)
			r.Post("/dark-mode", dashboardHandler.ToggleDarkMode)
			r.Post("/sidebar", dashboardHandler.ToggleSidebar)
			r.Post("/section", dashboardHandler.SetActiveSection)
			r.Route("/name", func(r chi.Router) {
				r.Post("/edit", dashboardHandler.StartEditName)
				r.Post("/draft", dashboardHandler.SetDraftName)
				r.Post("/save", dashboardHandler.SaveName)
				r.Post("/cancel", dashboardHandler.CancelEditName)
			})
		})

		// 管理者
		r.Route("/admin", func(r chi.Router) {
			r.With(middleware.RequireCapability(deps.Authorizer, authz.CapabilityCatalogRefresh)).
				Post("/catalog/refresh", courseHandler.RefreshCatalog)
		})
	})

	return r
}
