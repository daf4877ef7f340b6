// =============================================================================
// MigrationFlow 主入口
// =============================================================================
// 服务入口点，包含 HTTP 服务、模板编译导入导出、收敛轮询与数据库迁移
//
// 使用方法:
//
//	migrationflow serve --config config.yaml           # 启动服务
//	migrationflow compile rehost.drawio                # 编译流程图并输出模板
//	migrationflow export --format yaml                 # 导出全部模板
//	migrationflow verify-replication --wave wave-1     # 轮询复制状态直到收敛
//	migrationflow verify-instances --wave wave-1       # 轮询实例健康直到收敛
//	migrationflow migrate up                           # 运行数据库迁移
//	migrationflow version                              # 显示版本信息
//	migrationflow health                               # 健康检查
// =============================================================================

package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/BaSui01/migrationflow/config"
	"github.com/BaSui01/migrationflow/internal/database"
	"github.com/BaSui01/migrationflow/internal/store"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "migrate":
		runMigrate(os.Args[2:])
	case "compile":
		os.Exit(runCompile(os.Args[2:]))
	case "export":
		os.Exit(runExport(os.Args[2:]))
	case "verify-replication":
		os.Exit(runVerify(verifyReplication, os.Args[2:]))
	case "verify-instances":
		os.Exit(runVerify(verifyInstances, os.Args[2:]))
	case "version":
		printVersion()
	case "health":
		runHealthCheck(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// loadConfig 加载并校验配置，失败时直接退出
func loadConfig(path string) *config.Config {
	loader := config.NewLoader()
	if path != "" {
		loader = loader.WithConfigPath(path)
	}

	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// =============================================================================
// 🏥 健康检查命令
// =============================================================================

func runHealthCheck(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:8080", "Server address")
	_ = fs.Parse(args)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(*addr + "/ready")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: status %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("OK")
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion() {
	fmt.Printf("MigrationFlow %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`MigrationFlow - migration wave tracking

Usage:
  migrationflow <command> [options]

Commands:
  serve               Start the HTTP API
  compile <file>      Compile a diagram file into pipeline templates
  export              Export every pipeline template
  verify-replication  Poll replication status of a wave until it converges
  verify-instances    Poll launched instance health of a wave until it converges
  migrate             Database migration commands
  version             Show version information
  health              Check server readiness
  help                Show this help message

Common options:
  --config <path>     Path to configuration file (YAML)

Options for 'compile':
  --format json|yaml  Output format (default: yaml)
  --import            Import the compiled templates into the database

Options for 'export':
  --format json|yaml  Output format (default: yaml)
  --out <path>        Write to a file instead of stdout

Options for 'verify-*':
  --wave <id>         Wave whose servers are polled (required)

Exit codes for 'verify-*':
  0  every server converged and none failed
  1  one or more servers failed, or the run aborted
  2  the poll timeout elapsed first

Examples:
  migrationflow serve --config /etc/migrationflow/config.yaml
  migrationflow compile --import --config config.yaml rehost.drawio
  migrationflow verify-replication --wave wave-1 --config config.yaml
  migrationflow migrate up
  migrationflow health --addr http://localhost:8080`)
}

// =============================================================================
// 🔧 日志初始化
// =============================================================================

func initLogger(cfg config.LogConfig) *zap.Logger {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}

	zapConfig := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       encoding == "console",
		Encoding:          encoding,
		EncoderConfig:     encoderConfig,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     !cfg.EnableCaller,
		DisableStacktrace: !cfg.EnableStacktrace,
	}

	logger, err := zapConfig.Build()
	if err != nil {
		// 回退到基本 logger
		logger, _ = zap.NewProduction()
	}
	return logger
}

// =============================================================================
// 🗄️ 数据库
// =============================================================================

// openDatabase 根据配置打开数据库连接
func openDatabase(dbCfg config.DatabaseConfig, logger *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch dbCfg.Driver {
	case "postgres":
		dialector = postgres.Open(dbCfg.DSN())
	case "mysql":
		dialector = mysql.Open(dbCfg.DSN())
	case "sqlite":
		dialector = sqlite.Open(dbCfg.DSN())
	default:
		return nil, fmt.Errorf("unsupported database driver: %s (supported: postgres, mysql, sqlite)", dbCfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	logger.Info("Database connected", zap.String("driver", dbCfg.Driver))
	return db, nil
}

// openStore 打开数据库并创建条目存储；reporter 可为 nil
func openStore(cfg *config.Config, logger *zap.Logger, reporter database.StatsReporter) (*store.Store, *database.PoolManager, error) {
	db, err := openDatabase(cfg.Database, logger)
	if err != nil {
		return nil, nil, err
	}

	var opts []database.PoolOption
	if reporter != nil {
		opts = append(opts, database.WithStatsReporter(cfg.Database.Driver, reporter))
	}
	pool, err := database.NewPoolManager(db, database.PoolConfigFrom(cfg.Database), logger, opts...)
	if err != nil {
		return nil, nil, err
	}
	return store.New(pool, logger), pool, nil
}
