package room

import (
	"sync"
	"time"

	"SyncFM/model"
)

// Room 房间权威播放状态
// position 只在状态变更时落盘，播放中的实时位置永远通过 LivePosition 推算，
// 这样不需要任何定时器来维护存储状态。
type Room struct {
	ID string

	mu           sync.Mutex
	playlist     []model.Track
	currentIndex int
	position     float64 // 上次状态变更时刻的播放进度（秒）
	isPlaying    bool
	lastUpdate   time.Time // 上次状态变更的服务器时间
	members      map[string]bool

	stop     chan struct{} // 关闭时停止该房间的同步心跳
	stopOnce sync.Once
}

func newRoom(id string, playlist []model.Track, now time.Time) *Room {
	return &Room{
		ID:         id,
		playlist:   playlist,
		lastUpdate: now,
		members:    make(map[string]bool),
		stop:       make(chan struct{}),
	}
}

// livePositionLocked 推算实时播放位置（需要持有锁）
func (r *Room) livePositionLocked(now time.Time) float64 {
	if !r.isPlaying {
		return r.position
	}
	return r.position + now.Sub(r.lastUpdate).Seconds()
}

// LivePosition 推算实时播放位置：暂停时为存储值，播放中加上经过的时间
func (r *Room) LivePosition(now time.Time) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.livePositionLocked(now)
}

// Play 开始播放
func (r *Room) Play(now time.Time) PlaybackData {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.position = r.livePositionLocked(now)
	r.isPlaying = true
	r.lastUpdate = now

	return PlaybackData{
		SongID:     r.playlist[r.currentIndex].ID,
		Position:   r.position,
		ServerTime: now.UnixMilli(),
	}
}

// Pause 暂停播放，先把实时位置固化下来
func (r *Room) Pause(now time.Time) PlaybackData {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.position = r.livePositionLocked(now)
	r.isPlaying = false
	r.lastUpdate = now

	return PlaybackData{
		SongID:     r.playlist[r.currentIndex].ID,
		Position:   r.position,
		ServerTime: now.UnixMilli(),
	}
}

// Seek 跳转到指定位置，播放/暂停状态不变
// 目标位置被收敛到 [0, 当前歌曲时长] 区间内。
func (r *Room) Seek(target float64, now time.Time) PlaybackData {
	r.mu.Lock()
	defer r.mu.Unlock()

	if target < 0 {
		target = 0
	}
	if duration := r.playlist[r.currentIndex].Duration; duration > 0 && target > duration {
		target = duration
	}

	r.position = target
	r.lastUpdate = now

	return PlaybackData{
		SongID:     r.playlist[r.currentIndex].ID,
		Position:   target,
		ServerTime: now.UnixMilli(),
	}
}

// ChangeSong 切换到指定曲目，从头开始，播放/暂停状态不变
// 索引越界时静默拒绝：状态不变，也不广播。
func (r *Room) ChangeSong(index int, now time.Time) (SongChangedData, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if index < 0 || index >= len(r.playlist) {
		return SongChangedData{}, false
	}

	r.currentIndex = index
	r.position = 0
	r.lastUpdate = now

	return SongChangedData{
		Song:       r.playlist[index],
		SongIndex:  index,
		Position:   0,
		IsPlaying:  r.isPlaying,
		ServerTime: now.UnixMilli(),
	}, true
}

// SyncState 获取心跳同步数据；暂停中不需要心跳
func (r *Room) SyncState(now time.Time) (PlaybackData, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.isPlaying {
		return PlaybackData{}, false
	}
	return PlaybackData{
		SongID:     r.playlist[r.currentIndex].ID,
		Position:   r.livePositionLocked(now),
		ServerTime: now.UnixMilli(),
	}, true
}

// Snapshot 生成房间完整状态快照
func (r *Room) Snapshot(now time.Time) *model.RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	playlist := make([]model.Track, len(r.playlist))
	copy(playlist, r.playlist)

	return &model.RoomSnapshot{
		ID:               r.ID,
		Playlist:         playlist,
		CurrentSong:      r.playlist[r.currentIndex],
		CurrentSongIndex: r.currentIndex,
		Position:         r.livePositionLocked(now),
		IsPlaying:        r.isPlaying,
		MemberCount:      len(r.members),
		ServerTime:       now.UnixMilli(),
	}
}

// PlaybackState 导出播放状态（用于 Redis 镜像）
func (r *Room) PlaybackState(now time.Time) *model.RoomPlaybackState {
	r.mu.Lock()
	defer r.mu.Unlock()

	return &model.RoomPlaybackState{
		CurrentIndex: r.currentIndex,
		Position:     r.position,
		IsPlaying:    r.isPlaying,
		UpdatedAt:    r.lastUpdate.UnixMilli(),
	}
}

// IsPlaying 当前是否在播放
func (r *Room) IsPlaying() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isPlaying
}

// CurrentIndex 当前曲目索引
func (r *Room) CurrentIndex() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currentIndex
}

// MemberCount 成员数量
func (r *Room) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// addMember 加入成员，返回加入后的成员数
// 集合语义：同一连接重复加入不会重复计数。
func (r *Room) addMember(connID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.members[connID] = true
	return len(r.members)
}

// removeMember 移除成员，返回剩余成员数
func (r *Room) removeMember(connID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.members, connID)
	return len(r.members)
}

// hasMember 检查连接是否已是成员
func (r *Room) hasMember(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.members[connID]
}

// close 停止房间的后台心跳
func (r *Room) close() {
	r.stopOnce.Do(func() {
		close(r.stop)
	})
}
