// 配置加载器与默认配置测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- 默认配置测试 ---

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, 9091, cfg.Server.MetricsPort)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, int64(10<<20), cfg.Server.MaxUploadBytes)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 5432, cfg.Database.Port)

	// 运行锁默认关闭
	assert.Empty(t, cfg.Redis.Addr)

	assert.Equal(t, time.Minute, cfg.Poller.Delay)
	assert.Equal(t, time.Hour, cfg.Poller.Timeout)
	assert.False(t, cfg.Poller.Parallel)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.NoError(t, cfg.Validate())
}

// --- Loader 测试 ---

func TestLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, "migrationflow", cfg.Telemetry.ServiceName)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
server:
  http_port: 8888
  read_timeout: 60s
  cors_allowed_origins: ["https://ops.example.com"]

database:
  driver: sqlite
  name: /var/lib/migrationflow/items.db

poller:
  delay: 30s
  timeout: 45m
  parallel: true
  max_parallel_groups: 8

provider:
  gateway_url: "https://gateway.example.com"
  broker_url: "https://broker.example.com"

log:
  level: "debug"
  format: "console"
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)

	assert.Equal(t, 8888, cfg.Server.HTTPPort)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, []string{"https://ops.example.com"}, cfg.Server.CORSAllowedOrigins)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/var/lib/migrationflow/items.db", cfg.Database.DSN())

	assert.Equal(t, 30*time.Second, cfg.Poller.Delay)
	assert.Equal(t, 45*time.Minute, cfg.Poller.Timeout)
	assert.True(t, cfg.Poller.Parallel)
	assert.Equal(t, 8, cfg.Poller.MaxParallelGroups)

	assert.Equal(t, "https://gateway.example.com", cfg.Provider.GatewayURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoader_LoadFromEnv(t *testing.T) {
	t.Setenv("MIGRATIONFLOW_SERVER_HTTP_PORT", "7777")
	t.Setenv("MIGRATIONFLOW_POLLER_DELAY", "5s")
	t.Setenv("MIGRATIONFLOW_POLLER_PARALLEL", "true")
	t.Setenv("MIGRATIONFLOW_REDIS_ADDR", "env-redis:6379")
	t.Setenv("MIGRATIONFLOW_PROVIDER_RATE_LIMIT_RPS", "2.5")
	t.Setenv("MIGRATIONFLOW_LOG_OUTPUT_PATHS", "stdout, /tmp/mf.log")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.HTTPPort)
	assert.Equal(t, 5*time.Second, cfg.Poller.Delay)
	assert.True(t, cfg.Poller.Parallel)
	assert.Equal(t, "env-redis:6379", cfg.Redis.Addr)
	assert.InDelta(t, 2.5, cfg.Provider.RateLimitRPS, 0.0001)
	assert.Equal(t, []string{"stdout", "/tmp/mf.log"}, cfg.Log.OutputPaths)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
server:
  http_port: 8888
poller:
  timeout: 20m
  delay: 10s
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

	t.Setenv("MIGRATIONFLOW_SERVER_HTTP_PORT", "9999")

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)

	// 环境变量覆盖 YAML，YAML 其余值保留
	assert.Equal(t, 9999, cfg.Server.HTTPPort)
	assert.Equal(t, 20*time.Minute, cfg.Poller.Timeout)
	assert.Equal(t, 10*time.Second, cfg.Poller.Delay)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	t.Setenv("MYAPP_SERVER_HTTP_PORT", "6666")

	cfg, err := NewLoader().WithEnvPrefix("MYAPP").Load()
	require.NoError(t, err)
	assert.Equal(t, 6666, cfg.Server.HTTPPort)
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	t.Setenv("MIGRATIONFLOW_POLLER_TIMEOUT", "forever")

	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MIGRATIONFLOW_POLLER_TIMEOUT")
}

func TestLoader_WithValidator(t *testing.T) {
	t.Setenv("MIGRATIONFLOW_SERVER_HTTP_PORT", "80")

	_, err := NewLoader().
		WithValidator(func(cfg *Config) error {
			if cfg.Server.HTTPPort < 1024 {
				return assert.AnError
			}
			return nil
		}).
		Load()
	assert.Error(t, err)
}

func TestLoader_NonExistentFile(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/non/existent/path/config.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
}

func TestLoader_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "invalid.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server:\n  http_port: [invalid\n"), 0644))

	_, err := NewLoader().WithConfigPath(configPath).Load()
	assert.Error(t, err)
}

// --- Config 方法测试 ---

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{name: "valid default config", modify: func(c *Config) {}},
		{name: "negative port", modify: func(c *Config) { c.Server.HTTPPort = -1 }, wantErr: "invalid HTTP port"},
		{name: "port too large", modify: func(c *Config) { c.Server.HTTPPort = 70000 }, wantErr: "invalid HTTP port"},
		{name: "unknown driver", modify: func(c *Config) { c.Database.Driver = "oracle" }, wantErr: "unsupported database driver"},
		{name: "zero delay", modify: func(c *Config) { c.Poller.Delay = 0 }, wantErr: "poller delay"},
		{name: "zero timeout", modify: func(c *Config) { c.Poller.Timeout = 0 }, wantErr: "poller timeout"},
		{
			name: "parallel without limit",
			modify: func(c *Config) {
				c.Poller.Parallel = true
				c.Poller.MaxParallelGroups = 0
			},
			wantErr: "max_parallel_groups",
		},
		{name: "relative gateway", modify: func(c *Config) { c.Provider.GatewayURL = "gateway/v1" }, wantErr: "provider.gateway_url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_Validate_CollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.HTTPPort = 0
	cfg.Poller.Delay = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid HTTP port; poller delay must be positive")
}

func TestDatabaseConfig_DSN(t *testing.T) {
	tests := []struct {
		name     string
		config   DatabaseConfig
		expected string
	}{
		{
			name: "postgres DSN",
			config: DatabaseConfig{
				Driver: "postgres", Host: "localhost", Port: 5432,
				User: "user", Password: "pass", Name: "dbname", SSLMode: "disable",
			},
			expected: "host=localhost port=5432 user=user password=pass dbname=dbname sslmode=disable",
		},
		{
			name: "mysql DSN",
			config: DatabaseConfig{
				Driver: "mysql", Host: "localhost", Port: 3306,
				User: "user", Password: "pass", Name: "dbname",
			},
			expected: "user:pass@tcp(localhost:3306)/dbname?parseTime=true",
		},
		{
			name:     "sqlite DSN",
			config:   DatabaseConfig{Driver: "sqlite", Name: "/path/to/db.sqlite"},
			expected: "/path/to/db.sqlite",
		},
		{name: "unknown driver", config: DatabaseConfig{Driver: "unknown"}, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.config.DSN())
		})
	}
}

func TestMustLoad_Panics(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("poller: ["), 0644))

	assert.Panics(t, func() { MustLoad(configPath) })
}
