package app

import (
	"context"
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

	"github.com/hitoshi/trendlens/internal/cache"
	"github.com/hitoshi/trendlens/internal/compare"
	"github.com/hitoshi/trendlens/internal/config"
	"github.com/hitoshi/trendlens/internal/database"
	"github.com/hitoshi/trendlens/internal/handler"
	"github.com/hitoshi/trendlens/internal/logger"
	"github.com/hitoshi/trendlens/internal/metrics"
	"github.com/hitoshi/trendlens/internal/middleware"
	"github.com/hitoshi/trendlens/internal/model"
	"github.com/hitoshi/trendlens/internal/preference"
	"github.com/hitoshi/trendlens/internal/remote"
	"github.com/hitoshi/trendlens/internal/repository"
	"github.com/hitoshi/trendlens/internal/security"
	"github.com/hitoshi/trendlens/internal/trending"
	"github.com/hitoshi/trendlens/internal/worker/cleanup"
	"github.com/hitoshi/trendlens/internal/worker/refresh"
)

var (
	_ trending.MetricsCollector = (*metrics.Collector)(nil)
	_ trending.Blocklist        = (*preference.Service)(nil)
	_ handler.PreferenceService = (*preference.Service)(nil)
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. LOG_LEVELを反映する
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// SIGINTまたはSIGTERMを受信するとコンテキストをキャンセルし、グレースフルシャットダウンを行う。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return RunContext(ctx, w, args)
}

// RunContext はctxがキャンセルされるまでサブコマンドを実行する。
func RunContext(ctx context.Context, w io.Writer, args []string) error {
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
		slog.String("store", cfg.StoreBackend),
		slog.String("remote_base_url", cfg.RemoteBaseURL),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// components はserveとworkerで共有する依存関係。
type components struct {
	coordinator *trending.Coordinator
	engine      *compare.Engine
	preferences *preference.Service
	registry    *prometheus.Registry
	health      handler.HealthCheckFunc
	closers     []func() error
}

// Close は開いたストア接続を逆順に閉じる。
func (c *components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			slog.Warn("failed to close resource", slog.String("error", err.Error()))
		}
	}
}

// stores はストアバックエンドごとのリポジトリの組。
type stores struct {
	snapshots   repository.SnapshotRepository
	preferences repository.PreferenceRepository
}

// buildComponents はストア、取得元、コーディネータ、比較エンジン、設定サービス、メトリクスを組み立てる。
func buildComponents(ctx context.Context, cfg *config.Config, log *slog.Logger) (*components, error) {
	c := &components{}

	// 1. ストア
	st, err := openStore(ctx, cfg, c)
	if err != nil {
		c.Close()
		return nil, err
	}

	// 2. メトリクス
	c.registry = prometheus.NewRegistry()
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(c.registry)

	// 3. 取得元
	source := newSource(cfg, log)

	// 4. ドメインサービス
	c.coordinator = trending.NewCoordinator(cache.New(st.snapshots), source, collector, log)
	c.engine = compare.NewEngine(c.coordinator, log)

	// 5. お気に入り・ブロックキーワード
	c.preferences = preference.NewService(st.preferences, c.coordinator, log)
	c.coordinator.UseBlocklist(c.preferences)

	return c, nil
}

// openStore はSTORE_BACKENDに応じたリポジトリを開く。
// 接続のクローズとヘルスチェックはcomponentsに登録する。
func openStore(ctx context.Context, cfg *config.Config, c *components) (*stores, error) {
	switch cfg.StoreBackend {
	case config.StorePostgres:
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		c.closers = append(c.closers, db.Close)

		if err := db.PingContext(ctx); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		slog.Info("database connection established")

		c.health = db.PingContext
		return &stores{
			snapshots:   repository.NewPostgresSnapshotRepo(db),
			preferences: repository.NewPostgresPreferenceRepo(db),
		}, nil

	case config.StoreRedis:
		client, err := database.OpenRedis(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, client.Close)

		if err := database.PingRedis(ctx, client); err != nil {
			return nil, err
		}
		slog.Info("redis connection established")

		c.health = func(ctx context.Context) error { return database.PingRedis(ctx, client) }
		return &stores{
			snapshots:   repository.NewRedisSnapshotRepo(client),
			preferences: repository.NewRedisPreferenceRepo(client),
		}, nil

	default:
		slog.Info("using in-memory snapshot store")
		return &stores{
			snapshots:   repository.NewMemorySnapshotRepo(),
			preferences: repository.NewMemoryPreferenceRepo(),
		}, nil
	}
}

// newSource はプラットフォームごとの取得元を組み立てる。
// PLATFORM_FEED_URLSで指定されたプラットフォームはフィードから、それ以外はJSON APIから取得する。
func newSource(cfg *config.Config, log *slog.Logger) remote.Source {
	var guard security.SSRFGuardService = security.NewSSRFGuard()
	if cfg.RemoteAllowPrivate {
		guard = security.NewPrivateNetworkGuard()
		log.Warn("プライベートネットワークへのリモート取得を許可しています")
	}
	sanitizer := security.NewTextSanitizer()

	var fallback remote.Source
	if cfg.RemoteBaseURL != "" {
		fallback = remote.NewHTTPSource(
			cfg.RemoteBaseURL, guard, sanitizer, log,
			cfg.FetchTimeout, cfg.FetchMaxSize, cfg.SnapshotTTL,
		)
	}

	router := remote.NewRouter(fallback)
	if len(cfg.PlatformFeedURLs) > 0 {
		feeds := remote.NewFeedSource(
			cfg.PlatformFeedURLs, guard, sanitizer, log,
			cfg.FetchTimeout, cfg.FetchMaxSize, cfg.SnapshotTTL,
		)
		for _, p := range feeds.Platforms() {
			router.Route(p, feeds)
		}
	}
	return router
}

// startBackgroundJobs はバックグラウンド更新と期限切れスナップショットのクリーンアップを起動する。
// ctxのキャンセルで停止し、返されたチャネルは両方の停止後にcloseされる。
func startBackgroundJobs(ctx context.Context, cfg *config.Config, c *components, log *slog.Logger) <-chan struct{} {
	scheduler := refresh.NewScheduler(c.coordinator, model.AllPlatforms(), log, cfg.RefreshMaxConcurrent)
	cleanupJob := cleanup.NewCleanupJob(c.coordinator, log)

	done := make(chan struct{})
	go func() {
		defer close(done)
		jobsDone := make(chan struct{})
		go func() {
			cleanupJob.Start(ctx, cfg.CleanupInterval)
			close(jobsDone)
		}()
		scheduler.Start(ctx, cfg.RefreshInterval)
		<-jobsDone
	}()
	return done
}

// newAPIHandler はAPIサーバーのルーターを組み立てる。
func newAPIHandler(cfg *config.Config, c *components, rl *middleware.RateLimiter, log *slog.Logger) http.Handler {
	return handler.NewRouter(&handler.RouterDeps{
		Logger:            log,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rl,
		TrendingService:   c.coordinator,
		ComparisonService: c.engine,
		DefaultThreshold:  cfg.SimilarityThreshold,
		PreferenceService: c.preferences,
		HealthCheck:       c.health,
		MetricsHandler:    metrics.Handler(c.registry),
	})
}

// runServe はAPIサーバーモードで起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	log := slog.Default()

	c, err := buildComponents(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer c.Close()

	rl := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitRefresh))
	defer rl.Stop()

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      newAPIHandler(cfg, c, rl, log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.FetchTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	jobCtx, cancelJobs := context.WithCancel(ctx)
	defer cancelJobs()
	var jobsDone <-chan struct{}
	if cfg.RefreshEnabled {
		jobsDone = startBackgroundJobs(jobCtx, cfg, c, log)
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
	case <-ctx.Done():
	}
	slog.Info("shutting down API server...")

	cancelJobs()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	if jobsDone != nil {
		<-jobsDone
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 共有ストア（postgres/redis）に対してバックグラウンド更新とクリーンアップのみを行い、
// METRICS_PORTで/metricsを公開する。ctxがキャンセルされるとシャットダウンする。
func runWorker(ctx context.Context, cfg *config.Config) error {
	log := slog.Default()

	c, err := buildComponents(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer c.Close()

	if cfg.StoreBackend == config.StoreMemory {
		slog.Warn("worker with in-memory store does not share snapshots with the API server")
	}

	metricsServer := &http.Server{
		Addr:              ":" + cfg.MetricsPort,
		Handler:           metrics.SetupMetricsRoute(c.registry),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server listen error", slog.String("error", err.Error()))
		}
	}()

	slog.Info("worker starting",
		slog.Duration("refresh_interval", cfg.RefreshInterval),
		slog.Int("max_concurrent", cfg.RefreshMaxConcurrent),
		slog.Duration("cleanup_interval", cfg.CleanupInterval),
	)

	// バックグラウンドジョブをブロッキングで実行する
	<-startBackgroundJobs(ctx, cfg, c, log)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("metrics server shutdown failed", slog.String("error", err.Error()))
	}

	slog.Info("worker stopped gracefully")
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

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
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
