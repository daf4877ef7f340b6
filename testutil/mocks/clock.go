// =============================================================================
// ⏱️ ManualClock - 可控时钟
// =============================================================================
// Sleep 不阻塞，直接推进当前时间，轮询类测试可瞬间完成
//
// 使用方法:
//
//	clock := mocks.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
//	_ = clock.Sleep(ctx, time.Minute)
//	clock.Now() // 00:01
//
// =============================================================================
package mocks

import (
	"context"
	"sync"
	"time"
)

// ManualClock 手动推进的时钟
type ManualClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

// NewManualClock 创建起始于 start 的时钟
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now 返回当前时间
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Sleep 推进时间，上下文已取消时返回其错误
func (c *ManualClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.Advance(d)
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.mu.Unlock()
	return nil
}

// Advance 推进时间但不记录为 Sleep
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Sleeps 返回全部 Sleep 调用的时长
func (c *ManualClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}
