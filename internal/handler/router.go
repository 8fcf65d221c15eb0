package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hitoshi/tpodo/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	HealthChecker     HealthChecker
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig
	// HSTS はHTTPS配信時にStrict-Transport-Securityを付与するかどうか
	HSTS bool

	// メトリクス（nilの場合は記録しない）
	Metrics        middleware.HTTPMetricsRecorder
	MetricsHandler http.Handler

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ドメイン
	EntryService   EntryServiceInterface
	ProjectService ProjectServiceInterface
	TeamService    TeamServiceInterface
	ReportService  ReportServiceInterface
	UserService    UserServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP → Metrics → Logging → Recovery → SecurityHeaders → CORS
//	/auth/*: RateLimit(Auth)
//	/api/*:  Session → RateLimit(General) → CSRF
//
// /health と /metrics は認証不要。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	if deps.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	}
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.HSTS))
	// CORS ミドルウェアは全ルートに効かせる
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	sessionMW := middleware.NewSessionMiddleware(deps.SessionFinder)

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	entryHandler := NewEntryHandler(deps.EntryService)
	projectHandler := NewProjectHandler(deps.ProjectService)
	teamHandler := NewTeamHandler(deps.TeamService)
	reportHandler := NewReportHandler(deps.ReportService)
	userHandler := NewUserHandler(deps.UserService)

	// --- 認証不要のルート ---

	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// 認証ルート（IPごとのレート制限）
	r.Route("/auth", func(r chi.Router) {
		r.Use(deps.RateLimiter.AuthMiddleware())
		authHandler.mount(r, sessionMW)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General) → CSRF
	r.Group(func(r chi.Router) {
		r.Use(sessionMW)
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// トークン発行はCSRFミドルウェアの外に置く（Cookieの二重発行を避ける）
		r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

			r.Route("/api/entries", entryHandler.mount)
			projectHandler.mount(r)
			teamHandler.mount(r)
			r.Route("/api/reports", reportHandler.mount)
			r.Route("/api/users", userHandler.mount)
		})
	})

	return r
}
