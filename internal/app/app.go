package app

import (
	"context"
	"database/sql"
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
	"golang.org/x/time/rate"

	"github.com/hitoshi/tpodo/internal/auth"
	"github.com/hitoshi/tpodo/internal/config"
	"github.com/hitoshi/tpodo/internal/database"
	"github.com/hitoshi/tpodo/internal/entry"
	"github.com/hitoshi/tpodo/internal/handler"
	"github.com/hitoshi/tpodo/internal/logger"
	"github.com/hitoshi/tpodo/internal/metrics"
	"github.com/hitoshi/tpodo/internal/middleware"
	"github.com/hitoshi/tpodo/internal/otp"
	"github.com/hitoshi/tpodo/internal/project"
	"github.com/hitoshi/tpodo/internal/report"
	"github.com/hitoshi/tpodo/internal/repository"
	"github.com/hitoshi/tpodo/internal/security"
	"github.com/hitoshi/tpodo/internal/team"
	"github.com/hitoshi/tpodo/internal/user"
	"github.com/hitoshi/tpodo/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップしてから設定を読み込み、ログレベルを反映する。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. .env / YAML / 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. ログレベルの反映
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("failed to set log level: %w", err)
	}

	return cfg, nil
}

// openDB はDB接続を開き、疎通を確認する。
func openDB(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL, database.WithPool(database.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)
	return db, nil
}

// rateLimiterConfig は1分あたりのリクエスト数の設定をreq/secに変換する。
func rateLimiterConfig(cfg *config.Config) middleware.RateLimiterConfig {
	rlCfg := middleware.DefaultRateLimiterConfig()
	rlCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rlCfg.GeneralBurst = cfg.RateLimitGeneral
	rlCfg.AuthRate = rate.Limit(float64(cfg.RateLimitAuth) / 60.0)
	rlCfg.AuthBurst = cfg.RateLimitAuth
	return rlCfg
}

// newOTPStore は設定に応じた確認コードのストアを返す。
// stopはメモリストアのクリーンアップを止める関数で、PostgreSQLストアでは何もしない。
func newOTPStore(cfg *config.Config, db *sql.DB) (store otp.Store, stop func()) {
	if cfg.OTPStore == config.OTPStoreMemory {
		mem := otp.NewMemoryStore(time.Minute)
		return mem, mem.Stop
	}
	return repository.NewPostgresOTPRepo(db), func() {}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	entryRepo := repository.NewPostgresEntryRepo(db)
	projectRepo := repository.NewPostgresProjectRepo(db)
	taskRepo := repository.NewPostgresTaskRepo(db)
	teamRepo := repository.NewPostgresTeamRepo(db)
	personRepo := repository.NewPostgresPersonRepo(db)

	// 3. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 4. ドメインサービスの初期化
	sanitizer := security.NewTextSanitizer()
	loc := cfg.Location()

	otpStore, stopOTPStore := newOTPStore(cfg, db)
	defer stopOTPStore()
	otpService := otp.NewService(otpStore, otp.Config{TTL: cfg.OTPTTL, MaxAttempts: cfg.OTPMaxAttempts, DevMode: cfg.DevMode}, slog.Default())

	authService := auth.NewService(userRepo, sessionRepo, otpService, collector, auth.ServiceConfig{
		SessionMaxAge: cfg.SessionMaxAge,
		BcryptCost:    cfg.BcryptCost,
	})
	entryService := entry.NewService(entryRepo, projectRepo, taskRepo, teamRepo, userRepo, sanitizer, collector)
	projectService := project.NewService(projectRepo, taskRepo, entryRepo, userRepo, sanitizer, loc)
	teamService := team.NewService(teamRepo, personRepo, userRepo, entryRepo, sanitizer, collector, loc)
	reportService := report.NewService(entryRepo, projectRepo, collector, loc)
	userService := user.NewService(userRepo, sessionRepo, sanitizer)

	// 5. 管理者の自動作成（ADMIN_EMAIL / ADMIN_PASSWORD が設定されている場合のみ）
	if cfg.AdminConfigured() {
		created, err := authService.EnsureAdmin(context.Background(), auth.Credentials{
			Email:    cfg.AdminEmail,
			Password: cfg.AdminPassword,
			Name:     cfg.AdminName,
		})
		if err != nil {
			return fmt.Errorf("failed to ensure admin user: %w", err)
		}
		if created {
			slog.Info("admin user created", slog.String("email", cfg.AdminEmail))
		}
	}

	// 6. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(rateLimiterConfig(cfg))
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		HealthChecker:     db,
		SessionFinder:     sessionRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		HSTS: cfg.CookieSecure,

		Metrics:        collector,
		MetricsHandler: metrics.Handler(registry),

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		EntryService:   entryService,
		ProjectService: projectService,
		TeamService:    teamService,
		ReportService:  reportService,
		UserService:    userService,
	}

	router := handler.NewRouter(deps)

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
			slog.String("report_timezone", loc.String()),
			slog.String("otp_store", cfg.OTPStore),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server listen error: %w", err)
	case <-stop:
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、期限切れセッションと確認コードのクリーンアップを定期実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	cleanupJob := cleanup.NewCleanupJob(db, slog.Default(), nil)
	cleanupJob.SessionRetention = cfg.SessionRetention

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	go func() {
		select {
		case <-stop:
			slog.Info("shutting down worker...")
			cancel()
		case <-ctx.Done():
		}
	}()

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cfg.CleanupInterval),
		slog.Duration("session_retention", cfg.SessionRetention),
	)

	// クリーンアップジョブをメインgoroutineで実行（ブロッキング）
	cleanupJob.Start(ctx, cfg.CleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// MigrateOptions はmigrateサブコマンドの動作を指定する。
type MigrateOptions struct {
	// Down が正の場合は指定数だけマイグレーションを巻き戻す
	Down int
	// Status がtrueの場合は適用済みバージョンを表示するのみ
	Status bool
}

// runMigrate はデータベースマイグレーションを実行する。
// オプション未指定の場合はすべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config, opts MigrateOptions) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	switch {
	case opts.Status:
		st, err := database.Status(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("migration status failed: %w", err)
		}
		slog.Info("database migration status",
			slog.Bool("applied", st.Applied),
			slog.Uint64("version", uint64(st.Version)),
			slog.Bool("dirty", st.Dirty),
		)
		return nil
	case opts.Down > 0:
		if err := database.RollbackMigrations(cfg.DatabaseURL, opts.Down); err != nil {
			return fmt.Errorf("migration rollback failed: %w", err)
		}
		slog.Info("database migrations rolled back", slog.Int("steps", opts.Down))
		return nil
	}

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
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
