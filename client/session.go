package client

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"SyncFM/core/room"
	"SyncFM/logger"
	"SyncFM/model"

	"github.com/jonboulle/clockwork"
)

// SendFunc 向服务器发送一条消息
type SendFunc func(msgType room.MessageType, data interface{}) error

// Session 无头客户端会话
// 持有本地播放器模型和时钟偏移估算器，把收到的服务器消息翻译为
// 播放器校正动作，把用户操作翻译为控制消息。传输层通过 SendFunc 注入。
type Session struct {
	clock  clockwork.Clock
	sync   *ClockSync
	player *Player
	send   SendFunc

	mu           sync.Mutex
	roomID       string
	playlist     []model.Track
	currentIndex int
	pendingT0    time.Time // 未完成的对时请求发出时刻，零值表示没有
}

// NewSession 创建客户端会话
func NewSession(clock clockwork.Clock, send SendFunc) *Session {
	cs := NewClockSync()
	return &Session{
		clock:  clock,
		sync:   cs,
		player: NewPlayer(clock, cs),
		send:   send,
	}
}

// Player 本地播放器模型
func (s *Session) Player() *Player { return s.player }

// ClockSync 时钟偏移估算器
func (s *Session) ClockSync() *ClockSync { return s.sync }

// RoomID 当前所在房间码
func (s *Session) RoomID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID
}

// Playlist 当前房间歌单副本
func (s *Session) Playlist() []model.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Track, len(s.playlist))
	copy(out, s.playlist)
	return out
}

// CurrentIndex 当前曲目索引
func (s *Session) CurrentIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentIndex
}

// ========== 用户操作 ==========

// Join 请求加入房间
func (s *Session) Join(roomID string) error {
	return s.send(room.MsgTypeJoinRoom, room.JoinRoomData{RoomID: roomID})
}

// Play 请求播放
func (s *Session) Play() error {
	return s.send(room.MsgTypePlay, nil)
}

// Pause 请求暂停
func (s *Session) Pause() error {
	return s.send(room.MsgTypePause, nil)
}

// Seek 请求跳转
// 本地立即生效（乐观更新），服务器广播回来之前抑制权威校正。
func (s *Session) Seek(position float64) error {
	s.player.SeekLocal(position)
	return s.send(room.MsgTypeSeek, room.SeekData{Position: position})
}

// ChangeSong 请求切歌
func (s *Session) ChangeSong(index int) error {
	return s.send(room.MsgTypeChangeSong, room.ChangeSongData{SongIndex: index})
}

// RequestTimeSync 发起一次往返对时
func (s *Session) RequestTimeSync() error {
	s.mu.Lock()
	s.pendingT0 = s.clock.Now()
	s.mu.Unlock()
	return s.send(room.MsgTypeTimeSyncRequest, nil)
}

// OnTrackEnd 本地曲目自然播完时调用
// 非末尾曲目请求切到下一首，末尾曲目请求暂停。
func (s *Session) OnTrackEnd() error {
	s.mu.Lock()
	index := s.currentIndex
	length := len(s.playlist)
	s.mu.Unlock()

	next, pause := NextOnTrackEnd(index, length)
	if pause {
		return s.Pause()
	}
	return s.ChangeSong(next)
}

// RunClockSync 周期性对时循环，阻塞直到 ctx 取消
func (s *Session) RunClockSync(ctx context.Context, interval time.Duration) {
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if err := s.RequestTimeSync(); err != nil {
				logger.Warn("发送对时请求失败", logger.ErrorField(err))
			}
		}
	}
}

// ========== 服务器消息处理 ==========

// HandleMessage 处理一条服务器消息
// 未知类型和无法解析的负载直接忽略。
func (s *Session) HandleMessage(msg *room.WSMessage) {
	switch msg.Type {
	case room.MsgTypeRoomState:
		var snapshot model.RoomSnapshot
		if err := json.Unmarshal(msg.Data, &snapshot); err != nil {
			return
		}
		s.mu.Lock()
		s.roomID = snapshot.ID
		s.playlist = snapshot.Playlist
		s.currentIndex = snapshot.CurrentSongIndex
		s.mu.Unlock()
		s.player.ApplyAuthoritative(snapshot.CurrentSong.ID, snapshot.Position, snapshot.ServerTime, snapshot.IsPlaying)

	case room.MsgTypePlay:
		var data room.PlaybackData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return
		}
		s.player.ApplyAuthoritative(data.SongID, data.Position, data.ServerTime, true)

	case room.MsgTypePause:
		var data room.PlaybackData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return
		}
		s.player.ApplyAuthoritative(data.SongID, data.Position, data.ServerTime, false)

	case room.MsgTypeSeek:
		var data room.PlaybackData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return
		}
		s.player.ApplyAuthoritative(data.SongID, data.Position, data.ServerTime, s.player.Playing())

	case room.MsgTypeSync:
		// 只有播放中的房间才会收到周期性同步
		var data room.PlaybackData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return
		}
		s.player.ApplyAuthoritative(data.SongID, data.Position, data.ServerTime, true)

	case room.MsgTypeChangeSong:
		var data room.SongChangedData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return
		}
		s.mu.Lock()
		s.currentIndex = data.SongIndex
		s.mu.Unlock()
		s.player.ApplyAuthoritative(data.Song.ID, data.Position, data.ServerTime, data.IsPlaying)

	case room.MsgTypeTimeSyncResponse:
		var data room.TimeSyncData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return
		}
		s.mu.Lock()
		t0 := s.pendingT0
		s.pendingT0 = time.Time{}
		s.mu.Unlock()
		if t0.IsZero() {
			return
		}
		offset := s.sync.Update(t0, s.clock.Now(), data.ServerTime)
		logger.Debug("时钟偏移已更新", logger.Duration("offset", offset))

	case room.MsgTypeError:
		var data room.ErrorData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return
		}
		logger.Warn("服务器返回错误", logger.String("message", data.Message))
	}
}
