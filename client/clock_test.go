package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClockSyncUpdate(t *testing.T) {
	tests := []struct {
		name       string
		trueOffset time.Duration
		rtt        time.Duration
	}{
		{name: "服务器快2秒", trueOffset: 2 * time.Second, rtt: 100 * time.Millisecond},
		{name: "服务器慢3秒", trueOffset: -3 * time.Second, rtt: 40 * time.Millisecond},
		{name: "零偏移", trueOffset: 0, rtt: 200 * time.Millisecond},
		{name: "零往返", trueOffset: 1500 * time.Millisecond, rtt: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs := NewClockSync()
			assert.False(t, cs.Synced())

			// 对称延迟下服务器在往返中点打时间戳
			t0 := time.UnixMilli(1_700_000_000_000)
			t1 := t0.Add(tt.rtt)
			serverTime := t0.Add(tt.rtt / 2).Add(tt.trueOffset).UnixMilli()

			offset := cs.Update(t0, t1, serverTime)
			assert.Equal(t, tt.trueOffset, offset)
			assert.Equal(t, tt.trueOffset, cs.Offset())
			assert.True(t, cs.Synced())
		})
	}
}

func TestClockSyncUpdateReplacesPrevious(t *testing.T) {
	cs := NewClockSync()
	t0 := time.UnixMilli(1_700_000_000_000)

	cs.Update(t0, t0.Add(100*time.Millisecond), t0.Add(50*time.Millisecond).Add(5*time.Second).UnixMilli())
	assert.Equal(t, 5*time.Second, cs.Offset())

	// 单样本估计：新往返直接替换旧值
	t2 := t0.Add(10 * time.Second)
	cs.Update(t2, t2.Add(100*time.Millisecond), t2.Add(50*time.Millisecond).Add(time.Second).UnixMilli())
	assert.Equal(t, time.Second, cs.Offset())
}

func TestClockSyncSeed(t *testing.T) {
	cs := NewClockSync()
	localNow := time.UnixMilli(1_700_000_000_000)

	cs.Seed(localNow.Add(2*time.Second).UnixMilli(), localNow)
	assert.Equal(t, 2*time.Second, cs.Offset())
	assert.True(t, cs.Synced())
}

func TestClockSyncServerNow(t *testing.T) {
	cs := NewClockSync()
	localNow := time.UnixMilli(1_700_000_000_000)

	// 未同步时偏移为零
	assert.Equal(t, localNow, cs.ServerNow(localNow))

	cs.Seed(localNow.Add(3*time.Second).UnixMilli(), localNow)
	assert.Equal(t, localNow.Add(3*time.Second), cs.ServerNow(localNow))
}
