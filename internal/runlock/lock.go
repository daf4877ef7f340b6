// Package runlock provides a Redis lease that lets one driver process own a wave's targets.
// This package is internal and should not be imported by external projects.
package runlock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/migrationflow/config"
	"github.com/BaSui01/migrationflow/types"
)

// =============================================================================
// 🔒 运行锁管理器
// =============================================================================

const keyPrefix = "migrationflow:runlock:"

// ErrLockLost 租约在持有期间被他人获取或已过期
var ErrLockLost = errors.New("run lock lost")

// 仅当值仍为本租约令牌时删除或续期
var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

	refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// Manager 运行锁管理器
type Manager struct {
	redis  redis.UniversalClient
	logger *zap.Logger
	mu     sync.RWMutex
	closed bool
}

// NewManager 连接 Redis 并创建管理器
func NewManager(cfg config.RedisConfig, logger *zap.Logger) (*Manager, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	m := NewWithClient(client, logger)
	m.logger.Info("run lock manager initialized", zap.String("addr", cfg.Addr))
	return m, nil
}

// NewWithClient 使用已有客户端创建管理器
func NewWithClient(client redis.UniversalClient, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		redis:  client,
		logger: logger.With(zap.String("component", "runlock")),
	}
}

// Lease 一次成功获取的租约
type Lease struct {
	m     *Manager
	key   string
	token string
	ttl   time.Duration
}

// Key 租约键名（不含前缀）
func (l *Lease) Key() string {
	return l.key
}

// Acquire 以 SET NX PX 获取租约；已被持有时返回 RUN_LOCKED
func (m *Manager) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("run lock manager is closed")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("run lock ttl must be positive")
	}

	token := uuid.NewString()
	ok, err := m.redis.SetNX(ctx, keyPrefix+key, token, ttl).Result()
	if err != nil {
		m.logger.Error("run lock acquire failed", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("run lock acquire failed: %w", err)
	}
	if !ok {
		return nil, types.NewError(types.ErrRunLocked, fmt.Sprintf("run %q is held by another process", key)).
			WithHTTPStatus(409)
	}

	m.logger.Debug("run lock acquired", zap.String("key", key), zap.Duration("ttl", ttl))
	return &Lease{m: m, key: key, token: token, ttl: ttl}, nil
}

// Refresh 续期；租约已不属于自己时返回 ErrLockLost
func (l *Lease) Refresh(ctx context.Context) error {
	n, err := refreshScript.Run(ctx, l.m.redis, []string{keyPrefix + l.key}, l.token, l.ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("run lock refresh failed: %w", err)
	}
	if n == 0 {
		return ErrLockLost
	}
	return nil
}

// Release 释放租约；已过期或被他人持有时不影响对方
func (l *Lease) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, l.m.redis, []string{keyPrefix + l.key}, l.token).Int64()
	if err != nil {
		return fmt.Errorf("run lock release failed: %w", err)
	}
	if n == 0 {
		l.m.logger.Warn("run lock already lost at release", zap.String("key", l.key))
	}
	return nil
}

// Hold 持有租约执行 fn，期间每 ttl/3 续期一次。
// 续期失败时取消 fn 的 ctx 并返回 ErrLockLost。
func (m *Manager) Hold(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error {
	lease, err := m.Acquire(ctx, key, ttl)
	if err != nil {
		return err
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			m.logger.Error("run lock release failed", zap.String("key", key), zap.Error(err))
		}
	}()

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(max(ttl/3, time.Millisecond))
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if err := lease.Refresh(runCtx); err != nil {
					m.logger.Error("run lock refresh failed", zap.String("key", key), zap.Error(err))
					cancel(ErrLockLost)
					return
				}
			}
		}
	}()

	err = fn(runCtx)
	close(done)
	if cause := context.Cause(runCtx); errors.Is(cause, ErrLockLost) {
		return errors.Join(ErrLockLost, err)
	}
	return err
}

// Ping 检查 Redis 连接，用于就绪检查
func (m *Manager) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return fmt.Errorf("run lock manager is closed")
	}
	return m.redis.Ping(ctx).Err()
}

// Close 关闭管理器
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	return m.redis.Close()
}
