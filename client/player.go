package client

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Player 本地播放位置模型
// 位置只在状态变更时落盘，实时位置按当前速率推算。速率微调到期后的
// 恢复是惰性的：下一次读取位置时先把微调段结算掉，再按正常速率推算。
type Player struct {
	clock clockwork.Clock
	sync  *ClockSync

	mu            sync.Mutex
	songID        int64
	position      float64 // 上次变更时刻的位置（秒）
	rate          float64 // 当前播放速率
	playing       bool
	updatedAt     time.Time
	nudgeUntil    time.Time // 速率微调的截止时间
	suppressUntil time.Time // 本地跳转后的校正抑制截止时间
}

// NewPlayer 创建本地播放器模型
func NewPlayer(clock clockwork.Clock, clockSync *ClockSync) *Player {
	return &Player{
		clock: clock,
		sync:  clockSync,
		rate:  1.0,
	}
}

// positionLocked 推算当前本地位置（需要持有锁）
// 微调段到期时先结算到 nudgeUntil，之后按正常速率继续。
func (p *Player) positionLocked(now time.Time) float64 {
	if !p.playing {
		return p.position
	}

	if p.rate != 1.0 && !now.Before(p.nudgeUntil) {
		p.position += p.nudgeUntil.Sub(p.updatedAt).Seconds() * p.rate
		p.updatedAt = p.nudgeUntil
		p.rate = 1.0
	}

	return p.position + now.Sub(p.updatedAt).Seconds()*p.rate
}

// Position 当前本地播放位置（秒）
func (p *Player) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positionLocked(p.clock.Now())
}

// Rate 当前播放速率（结算过期的微调段之后）
func (p *Player) Rate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.positionLocked(p.clock.Now())
	return p.rate
}

// Playing 是否在播放
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// SongID 当前曲目
func (p *Player) SongID() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.songID
}

// SeekLocal 用户本地跳转
// 乐观地立即生效，并进入抑制窗口：服务器确认广播回来之前，忽略
// 仍携带跳转前位置的权威校正，避免和用户操作打架。
func (p *Player) SeekLocal(target float64) {
	now := p.clock.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	p.position = target
	p.updatedAt = now
	p.rate = 1.0
	p.suppressUntil = now.Add(SeekSuppressWindow)
}

// ApplyAuthoritative 应用一条权威位置消息（加入快照、状态变更广播或心跳）
// 返回实际采取的校正动作。抑制窗口内直接忽略。
func (p *Player) ApplyAuthoritative(songID int64, position float64, serverTimeMillis int64, playing bool) Action {
	now := p.clock.Now()

	// 首次校准前用消息时间戳播种偏移，之后交给往返对时维护
	if !p.sync.Synced() {
		p.sync.Seed(serverTimeMillis, now)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if now.Before(p.suppressUntil) {
		return Action{Kind: ActionNone}
	}

	// 换曲或播放状态翻转时没有漂移可言，直接采用权威状态
	if songID != p.songID || playing != p.playing {
		p.songID = songID
		p.playing = playing
		p.position = position
		p.updatedAt = now
		p.rate = 1.0
		return Action{Kind: ActionSnap}
	}

	// 把权威位置外推到本地接收时刻再比较
	target := position
	if playing {
		elapsed := p.sync.ServerNow(now).Sub(time.UnixMilli(serverTimeMillis))
		target += elapsed.Seconds()
	}

	drift := target - p.positionLocked(now)
	action := DecideCorrection(drift)

	switch action.Kind {
	case ActionSnap:
		p.position = target
		p.updatedAt = now
		p.rate = 1.0

	case ActionNudge:
		// 先把旧速率段结算掉，再切到微调速率
		p.position = p.positionLocked(now)
		p.updatedAt = now
		p.rate = action.Rate
		p.nudgeUntil = now.Add(action.Duration)
	}

	return action
}

// NextOnTrackEnd 决定曲目自然播完时客户端应发出的指令
// 非末尾曲目切到下一首，末尾曲目暂停。
func NextOnTrackEnd(currentIndex, playlistLen int) (nextIndex int, pause bool) {
	if currentIndex+1 < playlistLen {
		return currentIndex + 1, false
	}
	return currentIndex, true
}
