package room

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"SyncFM/cache"
	"SyncFM/logger"
	"SyncFM/model"
	"SyncFM/repository"

	"github.com/jonboulle/clockwork"
)

var (
	// ErrRoomNotFound 房间不存在（createIfMissing 关闭时的加入、REST 查询）
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomFull 房间人数已满
	ErrRoomFull = errors.New("room is full")
)

// 房间码字符集：大写字母 + 数字
const codeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Options 注册表配置
type Options struct {
	CodeLength      int           // 房间码长度
	MaxMembers      int           // 单房间最大成员数
	CreateIfMissing bool          // 加入未知房间码时自动创建
	SyncInterval    time.Duration // 播放中房间的心跳间隔
}

// Registry 房间注册表，持有所有活跃房间的权威状态
// 注册表自身用读写锁保护，每个房间内部再用自己的锁保证状态变更的原子性。
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	hub      *Hub
	provider repository.TrackProvider
	cache    *cache.RoomCache // 可为 nil，所有镜像操作都是尽力而为
	clock    clockwork.Clock
	opts     Options
}

// NewRegistry 创建房间注册表
func NewRegistry(provider repository.TrackProvider, hub *Hub, roomCache *cache.RoomCache, clock clockwork.Clock, opts Options) *Registry {
	if opts.CodeLength <= 0 {
		opts.CodeLength = 6
	}
	if opts.MaxMembers <= 0 {
		opts.MaxMembers = 32
	}
	if opts.SyncInterval <= 0 {
		opts.SyncInterval = 3 * time.Second
	}

	return &Registry{
		rooms:    make(map[string]*Room),
		hub:      hub,
		provider: provider,
		cache:    roomCache,
		clock:    clock,
		opts:     opts,
	}
}

// CreateRoom 创建房间：索引 0、位置 0、暂停状态、空成员集合、全新房间码
func (reg *Registry) CreateRoom(ctx context.Context) (*Room, error) {
	playlist, err := reg.provider.Playlist(ctx)
	if err != nil {
		return nil, fmt.Errorf("加载歌单失败: %w", err)
	}
	if len(playlist) == 0 {
		return nil, errors.New("歌单为空，无法创建房间")
	}

	reg.mu.Lock()
	code, err := reg.generateUniqueCodeLocked()
	if err != nil {
		reg.mu.Unlock()
		return nil, err
	}
	r := newRoom(code, playlist, reg.clock.Now())
	reg.rooms[code] = r
	reg.mu.Unlock()

	go reg.runSyncLoop(r)
	reg.mirrorPlayback(r)

	logger.Info("房间创建成功",
		logger.String("roomId", code),
		logger.Int("tracks", len(playlist)))

	return r, nil
}

// generateUniqueCodeLocked 生成唯一房间码（需要持有写锁）
// 碰撞时重新生成，最多尝试100次。
func (reg *Registry) generateUniqueCodeLocked() (string, error) {
	buf := make([]byte, reg.opts.CodeLength)
	for i := 0; i < 100; i++ {
		for j := range buf {
			buf[j] = codeCharset[rand.Intn(len(codeCharset))]
		}
		code := string(buf)
		if _, exists := reg.rooms[code]; !exists {
			return code, nil
		}
	}
	return "", errors.New("无法生成唯一房间码")
}

// Join 加入房间
// 未知房间码的处理由 CreateIfMissing 决定：自动以该码创建房间，或拒绝。
// 同一连接重复加入是幂等的，不会重复计入成员数；已在别的房间时
// 等价于先离开旧房间再加入新房间。
func (reg *Registry) Join(ctx context.Context, code string, client *Client) (*model.RoomSnapshot, error) {
	reg.mu.RLock()
	r, ok := reg.rooms[code]
	reg.mu.RUnlock()

	if !ok {
		if !reg.opts.CreateIfMissing {
			return nil, ErrRoomNotFound
		}
		var err error
		if r, err = reg.createWithCode(ctx, code); err != nil {
			return nil, err
		}
	}

	rejoin := r.hasMember(client.ConnID)
	if !rejoin && r.MemberCount() >= reg.opts.MaxMembers {
		return nil, ErrRoomFull
	}

	// 换房间：先走完整的离开流程，旧房间空了会随之销毁
	if old := client.RoomID(); old != "" && old != code {
		reg.Leave(client)
	}

	count := r.addMember(client.ConnID)
	reg.hub.JoinRoom(client, code)

	if !rejoin {
		// 通知其他成员有新人加入（不影响播放状态）
		reg.hub.BroadcastMessage(code, MsgTypeUserJoined, MemberData{
			UserID:      client.ConnID,
			MemberCount: count,
		}, client.ConnID)
	}

	if reg.cache != nil {
		if err := reg.cache.UpdatePresence(ctx, code, client.ConnID); err != nil {
			logger.Warn("更新在线状态失败", logger.ErrorField(err), logger.String("roomId", code))
		}
	}

	logger.Info("用户加入房间",
		logger.String("roomId", code),
		logger.String("conn", client.ConnID),
		logger.Int("memberCount", count))

	return r.Snapshot(reg.clock.Now()), nil
}

// createWithCode 以指定房间码创建房间（加入未知房间码时的自动创建路径）
func (reg *Registry) createWithCode(ctx context.Context, code string) (*Room, error) {
	playlist, err := reg.provider.Playlist(ctx)
	if err != nil {
		return nil, fmt.Errorf("加载歌单失败: %w", err)
	}
	if len(playlist) == 0 {
		return nil, errors.New("歌单为空，无法创建房间")
	}

	reg.mu.Lock()
	// 可能有并发加入者已经创建了同码房间
	if existing, ok := reg.rooms[code]; ok {
		reg.mu.Unlock()
		return existing, nil
	}
	r := newRoom(code, playlist, reg.clock.Now())
	reg.rooms[code] = r
	reg.mu.Unlock()

	go reg.runSyncLoop(r)
	reg.mirrorPlayback(r)

	logger.Info("房间自动创建", logger.String("roomId", code))
	return r, nil
}

// Leave 离开房间；最后一个成员离开时房间立即销毁
func (reg *Registry) Leave(client *Client) {
	code := client.RoomID()
	if code == "" {
		return
	}

	reg.mu.RLock()
	r, ok := reg.rooms[code]
	reg.mu.RUnlock()
	if !ok || !r.hasMember(client.ConnID) {
		return
	}

	remaining := r.removeMember(client.ConnID)

	reg.hub.BroadcastMessage(code, MsgTypeUserLeft, MemberData{
		UserID:      client.ConnID,
		MemberCount: remaining,
	}, client.ConnID)

	if reg.cache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := reg.cache.RemovePresence(ctx, code, client.ConnID); err != nil {
			logger.Warn("移除在线状态失败", logger.ErrorField(err), logger.String("roomId", code))
		}
		cancel()
	}

	logger.Info("用户离开房间",
		logger.String("roomId", code),
		logger.String("conn", client.ConnID),
		logger.Int("memberCount", remaining))

	if remaining == 0 {
		reg.destroyRoom(r)
	}
}

// destroyRoom 销毁空房间：停止心跳、移出注册表、清理缓存镜像
func (reg *Registry) destroyRoom(r *Room) {
	reg.mu.Lock()
	delete(reg.rooms, r.ID)
	reg.mu.Unlock()

	r.close()

	if reg.cache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := reg.cache.ClearRoom(ctx, r.ID); err != nil {
			logger.Warn("清理房间缓存失败", logger.ErrorField(err), logger.String("roomId", r.ID))
		}
		cancel()
	}

	logger.Info("空房间已销毁", logger.String("roomId", r.ID))
}

// room 查找房间
func (reg *Registry) room(code string) (*Room, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	r, ok := reg.rooms[code]
	return r, ok
}

// Snapshot 获取房间状态快照（REST 查询用）
func (reg *Registry) Snapshot(code string) (*model.RoomSnapshot, error) {
	r, ok := reg.room(code)
	if !ok {
		return nil, ErrRoomNotFound
	}
	return r.Snapshot(reg.clock.Now()), nil
}

// RoomCount 当前活跃房间数
func (reg *Registry) RoomCount() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}

// ========== 播放控制 ==========
// 每个变更先在房间锁内原子应用，再广播给包括发起者在内的所有成员，
// 状态机是唯一权威，客户端不对自己的指令做特殊处理。

// Play 播放
func (reg *Registry) Play(code string) {
	r, ok := reg.room(code)
	if !ok {
		return
	}

	data := r.Play(reg.clock.Now())
	reg.hub.BroadcastMessage(code, MsgTypePlay, data, "")
	reg.mirrorPlayback(r)

	logger.Debug("房间开始播放",
		logger.String("roomId", code),
		logger.Float64("position", data.Position))
}

// Pause 暂停
func (reg *Registry) Pause(code string) {
	r, ok := reg.room(code)
	if !ok {
		return
	}

	data := r.Pause(reg.clock.Now())
	reg.hub.BroadcastMessage(code, MsgTypePause, data, "")
	reg.mirrorPlayback(r)

	logger.Debug("房间暂停播放",
		logger.String("roomId", code),
		logger.Float64("position", data.Position))
}

// Seek 跳转
func (reg *Registry) Seek(code string, target float64) {
	r, ok := reg.room(code)
	if !ok {
		return
	}

	data := r.Seek(target, reg.clock.Now())
	reg.hub.BroadcastMessage(code, MsgTypeSeek, data, "")
	reg.mirrorPlayback(r)

	logger.Debug("房间跳转进度",
		logger.String("roomId", code),
		logger.Float64("position", data.Position))
}

// ChangeSong 切歌；索引越界时静默拒绝，无状态变更也无广播
func (reg *Registry) ChangeSong(code string, index int) {
	r, ok := reg.room(code)
	if !ok {
		return
	}

	data, ok := r.ChangeSong(index, reg.clock.Now())
	if !ok {
		logger.Debug("切歌被拒绝：索引越界",
			logger.String("roomId", code),
			logger.Int("songIndex", index))
		return
	}

	reg.hub.BroadcastMessage(code, MsgTypeChangeSong, data, "")
	reg.mirrorPlayback(r)

	logger.Debug("房间切换歌曲",
		logger.String("roomId", code),
		logger.Int("songIndex", index))
}

// mirrorPlayback 把播放状态镜像到 Redis（尽力而为，失败只记日志）
func (reg *Registry) mirrorPlayback(r *Room) {
	if reg.cache == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := reg.cache.SetPlaybackState(ctx, r.ID, r.PlaybackState(reg.clock.Now())); err != nil {
		logger.Warn("镜像播放状态失败", logger.ErrorField(err), logger.String("roomId", r.ID))
	}
}
