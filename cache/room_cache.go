package cache

import (
	"context"
	"fmt"
	"time"

	"SyncFM/model"

	"github.com/go-redis/redis/v8"
)

const (
	roomPlaybackKey = "room:%s:playback"    // Hash: 播放状态镜像
	roomPresenceKey = "room:%s:presence:%s" // String: 连接在线心跳 key
	roomPresenceSet = "room:%s:online"      // Set: 在线连接集合
	roomTTL         = 24 * time.Hour
	presenceTTL     = 60 * time.Second // 心跳过期时间
)

// RoomCache 房间状态的 Redis 镜像
// 仅用于观测和诊断，权威状态始终在进程内存中，重启后不从这里恢复。
type RoomCache struct {
	client *redis.Client
}

// NewRoomCache 创建房间缓存
func NewRoomCache(client *redis.Client) *RoomCache {
	return &RoomCache{client: client}
}

// SetPlaybackState 写入播放状态镜像
func (c *RoomCache) SetPlaybackState(ctx context.Context, roomID string, state *model.RoomPlaybackState) error {
	if c.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	key := fmt.Sprintf(roomPlaybackKey, roomID)

	pipe := c.client.Pipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"current_index": state.CurrentIndex,
		"position":      state.Position,
		"is_playing":    state.IsPlaying,
		"updated_at":    state.UpdatedAt,
	})
	pipe.Expire(ctx, key, roomTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// GetPlaybackState 读取播放状态镜像（诊断用）
func (c *RoomCache) GetPlaybackState(ctx context.Context, roomID string) (*model.RoomPlaybackState, error) {
	if c.client == nil {
		return nil, fmt.Errorf("Redis client not initialized")
	}

	key := fmt.Sprintf(roomPlaybackKey, roomID)
	result, err := c.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, nil
	}

	state := &model.RoomPlaybackState{}
	fmt.Sscanf(result["current_index"], "%d", &state.CurrentIndex)
	fmt.Sscanf(result["position"], "%f", &state.Position)
	state.IsPlaying = result["is_playing"] == "1" || result["is_playing"] == "true"
	fmt.Sscanf(result["updated_at"], "%d", &state.UpdatedAt)

	return state, nil
}

// UpdatePresence 刷新连接心跳
func (c *RoomCache) UpdatePresence(ctx context.Context, roomID, connID string) error {
	if c.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	presenceKey := fmt.Sprintf(roomPresenceKey, roomID, connID)
	onlineSetKey := fmt.Sprintf(roomPresenceSet, roomID)

	pipe := c.client.Pipeline()
	pipe.Set(ctx, presenceKey, time.Now().UnixMilli(), presenceTTL)
	pipe.SAdd(ctx, onlineSetKey, connID)
	pipe.Expire(ctx, onlineSetKey, roomTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// RemovePresence 移除连接在线状态
func (c *RoomCache) RemovePresence(ctx context.Context, roomID, connID string) error {
	if c.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	presenceKey := fmt.Sprintf(roomPresenceKey, roomID, connID)
	onlineSetKey := fmt.Sprintf(roomPresenceSet, roomID)

	pipe := c.client.Pipeline()
	pipe.Del(ctx, presenceKey)
	pipe.SRem(ctx, onlineSetKey, connID)
	_, err := pipe.Exec(ctx)
	return err
}

// ClearRoom 清理房间所有镜像数据
func (c *RoomCache) ClearRoom(ctx context.Context, roomID string) error {
	if c.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	keys := []string{
		fmt.Sprintf(roomPlaybackKey, roomID),
		fmt.Sprintf(roomPresenceSet, roomID),
	}
	return c.client.Del(ctx, keys...).Err()
}
