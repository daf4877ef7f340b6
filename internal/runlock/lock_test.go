package runlock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/migrationflow/config"
	"github.com/BaSui01/migrationflow/types"
)

// =============================================================================
// 🧪 运行锁测试
// =============================================================================

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Manager) {
	t.Helper()
	mr := miniredis.RunT(t)

	m, err := NewManager(config.RedisConfig{Addr: mr.Addr()}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return mr, m
}

func TestNewManager_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewManager(config.RedisConfig{Addr: addr}, nil)
	assert.ErrorContains(t, err, "failed to connect to redis")
}

func TestManager_AcquireExclusive(t *testing.T) {
	mr, m := setupTestRedis(t)
	ctx := context.Background()

	lease, err := m.Acquire(ctx, "wave-1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "wave-1", lease.Key())
	assert.Equal(t, time.Minute, mr.TTL(keyPrefix+"wave-1"))

	_, err = m.Acquire(ctx, "wave-1", time.Minute)
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrRunLocked))

	// 其他 wave 不受影响
	_, err = m.Acquire(ctx, "wave-2", time.Minute)
	require.NoError(t, err)

	require.NoError(t, lease.Release(ctx))
	_, err = m.Acquire(ctx, "wave-1", time.Minute)
	assert.NoError(t, err)
}

func TestManager_AcquireInvalidTTL(t *testing.T) {
	_, m := setupTestRedis(t)
	_, err := m.Acquire(context.Background(), "wave-1", 0)
	assert.Error(t, err)
}

func TestLease_ReleaseDoesNotDeleteForeignLock(t *testing.T) {
	mr, m := setupTestRedis(t)
	ctx := context.Background()

	lease, err := m.Acquire(ctx, "wave-1", time.Second)
	require.NoError(t, err)

	// 过期后被另一进程获取
	mr.FastForward(2 * time.Second)
	other, err := m.Acquire(ctx, "wave-1", time.Minute)
	require.NoError(t, err)

	require.NoError(t, lease.Release(ctx))
	assert.True(t, mr.Exists(keyPrefix+"wave-1"))

	assert.ErrorIs(t, lease.Refresh(ctx), ErrLockLost)
	assert.NoError(t, other.Refresh(ctx))
}

func TestLease_Refresh(t *testing.T) {
	mr, m := setupTestRedis(t)
	ctx := context.Background()

	lease, err := m.Acquire(ctx, "wave-1", 10*time.Second)
	require.NoError(t, err)

	mr.FastForward(8 * time.Second)
	require.NoError(t, lease.Refresh(ctx))
	assert.Equal(t, 10*time.Second, mr.TTL(keyPrefix+"wave-1"))
}

func TestManager_Hold(t *testing.T) {
	mr, m := setupTestRedis(t)
	ctx := context.Background()

	err := m.Hold(ctx, "wave-1", time.Minute, func(ctx context.Context) error {
		assert.True(t, mr.Exists(keyPrefix+"wave-1"))
		return nil
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists(keyPrefix+"wave-1"))

	boom := errors.New("boom")
	err = m.Hold(ctx, "wave-1", time.Minute, func(ctx context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists(keyPrefix+"wave-1"))
}

func TestManager_HoldCancelsWhenLockLost(t *testing.T) {
	mr, m := setupTestRedis(t)
	ctx := context.Background()

	err := m.Hold(ctx, "wave-1", 30*time.Millisecond, func(ctx context.Context) error {
		// 模拟另一进程抢占
		mr.Set(keyPrefix+"wave-1", "someone-else")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
			return errors.New("not cancelled")
		}
	})
	assert.ErrorIs(t, err, ErrLockLost)
	// 他人的锁保留
	v, _ := mr.Get(keyPrefix + "wave-1")
	assert.Equal(t, "someone-else", v)
}

func TestManager_PingAndClose(t *testing.T) {
	_, m := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, m.Ping(ctx))
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	assert.Error(t, m.Ping(ctx))
	_, err := m.Acquire(ctx, "wave-1", time.Minute)
	assert.Error(t, err)
}
