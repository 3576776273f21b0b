package client

import (
	"sync"
	"time"
)

// ClockSync 估算权威时钟与本地时钟的偏移
// offset = 权威时间 - 本地时间。单样本估计：每次更新直接替换旧值，不做平滑。
type ClockSync struct {
	mu     sync.RWMutex
	offset time.Duration
	synced bool
}

// NewClockSync 创建时钟偏移估算器
func NewClockSync() *ClockSync {
	return &ClockSync{}
}

// Update 用一次完整往返更新偏移估计
// t0 为请求发出的本地时间，t1 为响应到达的本地时间。假设上下行延迟对称，
// 响应到达时刻的权威时间约为 serverTime + rtt/2。
func (c *ClockSync) Update(t0, t1 time.Time, serverTimeMillis int64) time.Duration {
	rtt := t1.Sub(t0)
	serverAtT1 := time.UnixMilli(serverTimeMillis).Add(rtt / 2)
	offset := serverAtT1.Sub(t1)

	c.mu.Lock()
	c.offset = offset
	c.synced = true
	c.mu.Unlock()

	return offset
}

// Seed 从带权威时间戳的广播直接刷新偏移
// 忽略单程传输延迟，用于加入快照和状态变更消息到达时减少陈旧偏差。
func (c *ClockSync) Seed(serverTimeMillis int64, localNow time.Time) {
	c.mu.Lock()
	c.offset = time.UnixMilli(serverTimeMillis).Sub(localNow)
	c.synced = true
	c.mu.Unlock()
}

// Offset 当前偏移估计
func (c *ClockSync) Offset() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.offset
}

// Synced 是否已完成过至少一次估计
func (c *ClockSync) Synced() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.synced
}

// ServerNow 把本地时间翻译为权威时间
func (c *ClockSync) ServerNow(localNow time.Time) time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return localNow.Add(c.offset)
}
