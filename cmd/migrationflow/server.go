package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/migrationflow/api/handlers"
	"github.com/BaSui01/migrationflow/config"
	"github.com/BaSui01/migrationflow/internal/database"
	"github.com/BaSui01/migrationflow/internal/metrics"
	"github.com/BaSui01/migrationflow/internal/migration"
	"github.com/BaSui01/migrationflow/internal/runlock"
	"github.com/BaSui01/migrationflow/internal/server"
	"github.com/BaSui01/migrationflow/internal/store"
	"github.com/BaSui01/migrationflow/internal/telemetry"
	"github.com/BaSui01/migrationflow/pipeline"
	"github.com/BaSui01/migrationflow/pipeline/transfer"
)

// =============================================================================
// 🖥️ serve 命令
// =============================================================================

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	migrateFirst := fs.Bool("migrate", false, "Apply pending migrations before serving")
	_ = fs.Parse(args)

	cfg := loadConfig(*configPath)
	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting MigrationFlow",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *migrateFirst {
		if err := applyMigrations(ctx, cfg, logger); err != nil {
			logger.Fatal("Migration failed", zap.Error(err))
		}
	}

	srv := NewServer(cfg, logger)
	if err := srv.Start(); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}

	if err := srv.Wait(ctx); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
		srv.Close()
		os.Exit(1)
	}
	srv.Close()
	logger.Info("MigrationFlow stopped")
}

func applyMigrations(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	m, err := migration.NewMigratorFromConfig(cfg, logger)
	if err != nil {
		return err
	}
	defer m.Close()
	return m.Up(ctx)
}

// =============================================================================
// 🧩 Server 结构
// =============================================================================

// Server 是 MigrationFlow 的主服务器，管理 API 与 Metrics 两个端口
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	httpManager    *server.Manager
	metricsManager *server.Manager

	collector *metrics.Collector
	pool      *database.PoolManager
	store     *store.Store
	locks     *runlock.Manager
	otel      *telemetry.Providers

	// Rate limiter 清理 goroutine 生命周期
	rateLimiterCancel context.CancelFunc
}

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{cfg: cfg, logger: logger}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 依次初始化遥测、指标、存储与运行锁，然后启动两个 HTTP 服务
func (s *Server) Start() error {
	otelProviders, err := telemetry.Init(s.cfg.Telemetry, s.logger)
	if err != nil {
		s.logger.Warn("failed to initialize telemetry", zap.Error(err))
	}
	s.otel = otelProviders

	s.collector = metrics.NewCollector("migrationflow", s.logger)

	s.store, s.pool, err = openStore(s.cfg, s.logger, s.collector)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}

	if s.cfg.Redis.Addr != "" {
		locks, err := runlock.NewManager(s.cfg.Redis, s.logger)
		if err != nil {
			s.logger.Warn("Redis not available, readiness will not include the run lock", zap.Error(err))
		} else {
			s.locks = locks
		}
	}

	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("All servers started",
		zap.String("http_addr", s.httpManager.Addr()),
		zap.String("metrics_addr", s.metricsManager.Addr()),
	)
	return nil
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

func (s *Server) routes() http.Handler {
	health := handlers.NewHealthHandler(s.logger)
	health.RegisterCheck(handlers.NewCheck("database", s.pool.Ping))
	if s.locks != nil {
		health.RegisterCheck(handlers.NewCheck("redis", s.locks.Ping))
	}

	pipelines := handlers.NewPipelineHandler(
		pipeline.NewCompiler(s.logger),
		transfer.NewImporter(s.store, store.NewScriptResolver(s.store), s.logger, transfer.WithRecorder(newRunRecorder(s.collector, s.logger))),
		transfer.NewExporter(s.store, s.logger),
		s.collector,
		s.cfg.Server.MaxUploadBytes,
		s.logger,
	)
	servers := handlers.NewServerHandler(s.store, s.logger)

	rateLimiterCtx, cancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = cancel

	mux := http.NewServeMux()

	// 健康检查端点
	mux.HandleFunc("GET /health", health.HandleHealth)
	mux.HandleFunc("GET /healthz", health.HandleHealth)
	mux.HandleFunc("GET /ready", health.HandleReady)
	mux.HandleFunc("GET /readyz", health.HandleReady)
	mux.HandleFunc("GET /version", health.HandleVersion(handlers.VersionInfo{
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
	}))

	// API 路由
	mux.HandleFunc("POST /api/v1/pipelines/diagrams", pipelines.HandleDiagram)
	mux.HandleFunc("POST /api/v1/pipelines/templates/import", pipelines.HandleImport)
	mux.HandleFunc("GET /api/v1/pipelines/templates/export", pipelines.HandleExport)
	mux.HandleFunc("PUT /api/v1/servers/{id}/status", servers.HandleStatus)
	mux.HandleFunc("GET /api/v1/waves/{wave}/servers", servers.HandleWaveServers)

	return Chain(mux,
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		OTelTracing(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.collector),
		CORS(s.cfg.Server.CORSAllowedOrigins),
		RateLimiter(rateLimiterCtx, float64(s.cfg.Server.RateLimitRPS), s.cfg.Server.RateLimitBurst, s.logger),
	)
}

func (s *Server) startHTTPServer() error {
	cfg := server.ConfigFrom(s.cfg.Server, s.cfg.Server.HTTPPort)
	cfg.IdleTimeout = 2 * cfg.ReadTimeout
	s.httpManager = server.NewManager(s.routes(), cfg, s.logger)
	return s.httpManager.Start()
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())

	s.metricsManager = server.NewManager(mux, server.ConfigFrom(s.cfg.Server, s.cfg.Server.MetricsPort), s.logger)
	return s.metricsManager.Start()
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// Wait 阻塞到 ctx 结束或任一服务异常退出，并关闭两个服务
func (s *Server) Wait(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.httpManager.Wait(gctx) })
	g.Go(func() error { return s.metricsManager.Wait(gctx) })
	return g.Wait()
}

// Close 释放存储、运行锁与遥测资源
func (s *Server) Close() {
	s.logger.Info("Releasing resources...")
	ctx := context.Background()

	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}

	var errs []error
	if s.locks != nil {
		errs = append(errs, s.locks.Close())
	}
	if s.pool != nil {
		errs = append(errs, s.pool.Close())
	}
	if s.otel != nil {
		errs = append(errs, s.otel.Shutdown(ctx))
	}
	if err := errors.Join(errs...); err != nil {
		s.logger.Error("Resource cleanup failed", zap.Error(err))
	}
}
