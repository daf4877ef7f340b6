package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/migrationflow/config"
	"github.com/BaSui01/migrationflow/convergence"
	"github.com/BaSui01/migrationflow/internal/ctxkeys"
	"github.com/BaSui01/migrationflow/internal/inventory"
	"github.com/BaSui01/migrationflow/internal/metrics"
	"github.com/BaSui01/migrationflow/internal/provider"
	"github.com/BaSui01/migrationflow/internal/runlock"
	"github.com/BaSui01/migrationflow/internal/store"
	"github.com/BaSui01/migrationflow/internal/telemetry"
	"github.com/BaSui01/migrationflow/pipeline"
)

// =============================================================================
// 🔁 verify-replication / verify-instances 命令
// =============================================================================

// verifyKind 一种收敛检查
type verifyKind struct {
	name  string
	field string
}

var (
	verifyReplication = verifyKind{name: "replication", field: pipeline.FieldReplicationStatus}
	verifyInstances   = verifyKind{name: "instance", field: pipeline.FieldInstanceStatus}
)

// 退出码
const (
	exitConverged = 0
	exitFailed    = 1
	exitTimeout   = 2
)

func runVerify(kind verifyKind, args []string) int {
	fs := flag.NewFlagSet("verify-"+kind.name, flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	wave := fs.String("wave", "", "Wave id")
	_ = fs.Parse(args)

	if *wave == "" {
		fmt.Fprintln(os.Stderr, "--wave is required")
		return exitFailed
	}

	cfg := loadConfig(*configPath)
	if cfg.Provider.GatewayURL == "" || cfg.Provider.BrokerURL == "" {
		fmt.Fprintln(os.Stderr, "provider.gateway_url and provider.broker_url must be configured")
		return exitFailed
	}

	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	otelProviders, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	} else {
		defer func() { _ = otelProviders.Shutdown(context.Background()) }()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = ctxkeys.WithRunID(ctx, uuid.NewString())
	ctx = ctxkeys.WithWaveID(ctx, *wave)
	logger = logger.With(ctxkeys.LogFields(ctx)...)

	collector := metrics.NewCollector("migrationflow", logger)
	s, pool, err := openStore(cfg, logger, collector)
	if err != nil {
		logger.Error("Failed to open store", zap.Error(err))
		return exitFailed
	}
	defer pool.Close()

	servers, err := s.WaveServers(ctx, *wave)
	if err != nil {
		logger.Error("Failed to list wave servers", zap.Error(err))
		return exitFailed
	}
	groups := buildGroups(servers, kind)
	logger.Info("Verification starting",
		zap.String("check", kind.name),
		zap.Int("servers", len(servers)),
		zap.Int("groups", len(groups)))

	run := func(ctx context.Context) (convergence.Outcome, error) {
		return pollWave(ctx, cfg, kind, s, groups, collector, logger)
	}

	var out convergence.Outcome
	if cfg.Redis.Addr == "" {
		out, err = run(ctx)
	} else {
		locks, lockErr := runlock.NewManager(cfg.Redis, logger)
		if lockErr != nil {
			logger.Error("Run lock unavailable", zap.Error(lockErr))
			return exitFailed
		}
		defer locks.Close()
		err = locks.Hold(ctx, "verify:"+kind.name+":"+*wave, cfg.Poller.LockTTL, func(ctx context.Context) error {
			var runErr error
			out, runErr = run(ctx)
			return runErr
		})
	}

	code := exitCode(out, err)
	fields := []zap.Field{
		zap.String("outcome", string(out.Kind)),
		zap.Int("rounds", out.Rounds),
		zap.Int("failed", out.Failed),
		zap.Duration("elapsed", out.Elapsed),
		zap.Int("exit_code", code),
	}
	if err != nil {
		logger.Error("Verification aborted", append(fields, zap.Error(err))...)
	} else {
		logger.Info("Verification finished", fields...)
	}
	return code
}

// pollWave 组装凭证、拉取、分类与写回协作者并运行轮询
func pollWave(ctx context.Context, cfg *config.Config, kind verifyKind, s *store.Store, groups []convergence.Group, collector *metrics.Collector, logger *zap.Logger) (convergence.Outcome, error) {
	clientOpts := []provider.Option{
		provider.WithLogger(logger),
		provider.WithRecorder(collector),
		provider.WithRateLimit(cfg.Provider.RateLimitRPS, cfg.Provider.RateLimitBurst),
	}
	broker := provider.NewBroker(cfg.Provider.BrokerURL, cfg.Provider.Timeout, clientOpts...)
	gateway := provider.NewGateway(cfg.Provider.GatewayURL, cfg.Provider.Timeout, clientOpts...)

	writer, writerName := statusWriter(cfg.Inventory, kind, s, collector, logger)
	pcfg := convergence.Config{
		Name:              kind.name,
		Delay:             cfg.Poller.Delay,
		Timeout:           cfg.Poller.Timeout,
		Parallel:          cfg.Poller.Parallel,
		MaxParallelGroups: cfg.Poller.MaxParallelGroups,
		Writer:            writerName,
	}
	opts := []convergence.Option{
		convergence.WithLogger(logger),
		convergence.WithRecorder(newRunRecorder(collector, logger)),
	}

	if kind == verifyInstances {
		return convergence.NewPoller(pcfg, broker, gateway.InstanceFetcher(), convergence.ClassifyInstance, writer, opts...).Run(ctx, groups)
	}
	return convergence.NewPoller(pcfg, broker, gateway.ReplicationFetcher(), convergence.ClassifyReplication, writer, opts...).Run(ctx, groups)
}

// statusWriter 配置了库存 API 时经由 HTTP 写回，否则直接写数据库
func statusWriter(cfg config.InventoryConfig, kind verifyKind, s *store.Store, collector *metrics.Collector, logger *zap.Logger) (convergence.StatusWriter, string) {
	if cfg.BaseURL == "" {
		return store.NewStatusWriter(s, kind.field), "store"
	}
	return inventory.NewClient(cfg.BaseURL, cfg.APIKey, kind.field, cfg.Timeout,
		inventory.WithLogger(logger),
		inventory.WithRecorder(collector),
	), inventory.Name
}

// buildGroups 按 (account, region) 分组，保持首次出现的顺序
func buildGroups(servers []store.Server, kind verifyKind) []convergence.Group {
	index := make(map[[2]string]int)
	var groups []convergence.Group
	for _, srv := range servers {
		target := convergence.Target{ID: srv.ID}
		if kind == verifyInstances {
			target.ProviderID, target.Status = srv.TargetInstanceID, srv.InstanceStatus
		} else {
			target.ProviderID, target.Status = srv.SourceServerID, srv.ReplicationStatus
		}

		key := [2]string{srv.AccountID, srv.Region}
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, convergence.Group{AccountID: srv.AccountID, Region: srv.Region})
		}
		groups[i].Targets = append(groups[i].Targets, target)
	}
	return groups
}

// exitCode 0: 全部收敛且无失败；1: 有失败或运行中止；2: 超时
func exitCode(out convergence.Outcome, err error) int {
	switch {
	case err != nil:
		return exitFailed
	case out.Kind == convergence.OutcomeTimeout:
		return exitTimeout
	}
	if failed, ok := out.FailedCount(); ok && failed > 0 {
		return exitFailed
	}
	return exitConverged
}
