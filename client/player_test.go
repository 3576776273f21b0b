package client

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func newTestPlayer() (*Player, *clockwork.FakeClock) {
	clk := clockwork.NewFakeClockAt(time.UnixMilli(1_700_000_000_000))
	return NewPlayer(clk, NewClockSync()), clk
}

func TestPlayerAdoptsAuthoritativeState(t *testing.T) {
	p, clk := newTestPlayer()

	action := p.ApplyAuthoritative(1, 10, clk.Now().UnixMilli(), true)
	assert.Equal(t, ActionSnap, action.Kind)
	assert.Equal(t, int64(1), p.SongID())
	assert.True(t, p.Playing())
	assert.InDelta(t, 10.0, p.Position(), 1e-9)

	// 播放中位置随本地时钟前进
	clk.Advance(2 * time.Second)
	assert.InDelta(t, 12.0, p.Position(), 1e-9)
}

func TestPlayerPauseFromServer(t *testing.T) {
	p, clk := newTestPlayer()
	p.ApplyAuthoritative(1, 10, clk.Now().UnixMilli(), true)
	clk.Advance(5 * time.Second)

	action := p.ApplyAuthoritative(1, 15, clk.Now().UnixMilli(), false)
	assert.Equal(t, ActionSnap, action.Kind)
	assert.False(t, p.Playing())

	clk.Advance(time.Hour)
	assert.InDelta(t, 15.0, p.Position(), 1e-9)
}

func TestPlayerSongChangeSnaps(t *testing.T) {
	p, clk := newTestPlayer()
	p.ApplyAuthoritative(1, 100, clk.Now().UnixMilli(), true)

	action := p.ApplyAuthoritative(2, 0, clk.Now().UnixMilli(), true)
	assert.Equal(t, ActionSnap, action.Kind)
	assert.Equal(t, int64(2), p.SongID())
	assert.InDelta(t, 0.0, p.Position(), 1e-9)
}

func TestPlayerIgnoresImperceptibleDrift(t *testing.T) {
	p, clk := newTestPlayer()
	p.ApplyAuthoritative(1, 10, clk.Now().UnixMilli(), true)

	action := p.ApplyAuthoritative(1, 10.1, clk.Now().UnixMilli(), true)
	assert.Equal(t, ActionNone, action.Kind)
	assert.InDelta(t, 10.0, p.Position(), 1e-9)
}

func TestPlayerSnapOnLargeDrift(t *testing.T) {
	p, clk := newTestPlayer()
	p.ApplyAuthoritative(1, 10, clk.Now().UnixMilli(), true)

	action := p.ApplyAuthoritative(1, 11, clk.Now().UnixMilli(), true)
	assert.Equal(t, ActionSnap, action.Kind)
	assert.InDelta(t, 11.0, p.Position(), 1e-9)
}

func TestPlayerNudgeConvergence(t *testing.T) {
	p, clk := newTestPlayer()
	p.ApplyAuthoritative(1, 10, clk.Now().UnixMilli(), true)

	// 本地落后 0.3 秒，进入加速微调
	action := p.ApplyAuthoritative(1, 10.3, clk.Now().UnixMilli(), true)
	assert.Equal(t, ActionNudge, action.Kind)
	assert.InDelta(t, 1.05, action.Rate, 1e-9)

	// 微调期内按 1.05 倍速前进
	clk.Advance(time.Second)
	assert.InDelta(t, 11.05, p.Position(), 1e-9)

	// 到期后恢复正常速率
	clk.Advance(time.Second)
	assert.InDelta(t, 12.05, p.Position(), 1e-9)
	assert.InDelta(t, 1.0, p.Rate(), 1e-9)
}

func TestPlayerNudgeSlowsWhenAhead(t *testing.T) {
	p, clk := newTestPlayer()
	p.ApplyAuthoritative(1, 10, clk.Now().UnixMilli(), true)

	action := p.ApplyAuthoritative(1, 9.7, clk.Now().UnixMilli(), true)
	assert.Equal(t, ActionNudge, action.Kind)
	assert.InDelta(t, 0.95, action.Rate, 1e-9)

	clk.Advance(time.Second)
	assert.InDelta(t, 10.95, p.Position(), 1e-9)
}

func TestPlayerExtrapolatesServerTimestamp(t *testing.T) {
	p, clk := newTestPlayer()
	p.ApplyAuthoritative(1, 0, clk.Now().UnixMilli(), true)
	clk.Advance(10 * time.Second)

	// 消息在途 500ms：权威位置要先外推到接收时刻再比较
	serverTime := clk.Now().Add(-500 * time.Millisecond).UnixMilli()
	action := p.ApplyAuthoritative(1, 9.8, serverTime, true)
	assert.Equal(t, ActionNudge, action.Kind)
	assert.InDelta(t, 1.05, action.Rate, 1e-9)
}

func TestPlayerSeekSuppression(t *testing.T) {
	p, clk := newTestPlayer()
	p.ApplyAuthoritative(1, 10, clk.Now().UnixMilli(), true)

	p.SeekLocal(50)
	assert.InDelta(t, 50.0, p.Position(), 1e-9)

	// 抑制窗口内忽略携带旧位置的权威消息
	action := p.ApplyAuthoritative(1, 10.5, clk.Now().UnixMilli(), true)
	assert.Equal(t, ActionNone, action.Kind)
	assert.InDelta(t, 50.0, p.Position(), 1e-9)

	// 窗口过后恢复正常校正
	clk.Advance(600 * time.Millisecond)
	action = p.ApplyAuthoritative(1, 60, clk.Now().UnixMilli(), true)
	assert.Equal(t, ActionSnap, action.Kind)
	assert.InDelta(t, 60.0, p.Position(), 1e-9)
}

func TestNextOnTrackEnd(t *testing.T) {
	tests := []struct {
		name      string
		index     int
		length    int
		wantNext  int
		wantPause bool
	}{
		{name: "中间曲目切下一首", index: 1, length: 4, wantNext: 2, wantPause: false},
		{name: "首曲切下一首", index: 0, length: 2, wantNext: 1, wantPause: false},
		{name: "末尾曲目暂停", index: 3, length: 4, wantNext: 3, wantPause: true},
		{name: "单曲歌单暂停", index: 0, length: 1, wantNext: 0, wantPause: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, pause := NextOnTrackEnd(tt.index, tt.length)
			assert.Equal(t, tt.wantNext, next)
			assert.Equal(t, tt.wantPause, pause)
		})
	}
}
