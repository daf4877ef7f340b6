// =============================================================================
// 📦 MigrationFlow 默认配置
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Database:  DefaultDatabaseConfig(),
		Redis:     DefaultRedisConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
		Poller:    DefaultPollerConfig(),
		Provider:  DefaultProviderConfig(),
		Inventory: DefaultInventoryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    50,
		RateLimitBurst:  100,
		MaxUploadBytes:  10 << 20, // 10 MB
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "postgres",
		Host:            "localhost",
		Port:            5432,
		User:            "migrationflow",
		Name:            "migrationflow",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultRedisConfig 默认不启用运行锁
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		PoolSize: 10,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:        "info",
		Format:       "json",
		OutputPaths:  []string{"stdout"},
		EnableCaller: true,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:        false,
		OTLPEndpoint:   "localhost:4317",
		ServiceName:    "migrationflow",
		SampleRate:     0.1,
		MetricInterval: 30 * time.Second,
	}
}

// DefaultPollerConfig 复制状态验证默认一分钟一轮，最多一小时
func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		Delay:             time.Minute,
		Timeout:           time.Hour,
		Parallel:          false,
		MaxParallelGroups: 4,
		LockTTL:           90 * time.Minute,
	}
}

// DefaultProviderConfig 返回默认网关配置
func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		Timeout:        30 * time.Second,
		RateLimitRPS:   5,
		RateLimitBurst: 10,
	}
}

// DefaultInventoryConfig 返回默认库存 API 配置
func DefaultInventoryConfig() InventoryConfig {
	return InventoryConfig{
		Timeout: 15 * time.Second,
	}
}
