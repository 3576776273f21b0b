package room

import (
	"context"
	"encoding/json"

	"SyncFM/logger"
)

// HandleMessage 处理 WebSocket 消息
// 参数非法的指令直接丢弃：不改状态、不广播、也不回错误（协议层面
// 无法区分"被拒绝"和"被忽略"），客户端靠周期性 sync 自行收敛。
func (reg *Registry) HandleMessage(ctx context.Context, client *Client, msg *WSMessage) {
	switch msg.Type {
	case MsgTypeJoinRoom:
		var data JoinRoomData
		if err := json.Unmarshal(msg.Data, &data); err != nil || data.RoomID == "" {
			logger.Warn("加入房间消息格式错误",
				logger.String("conn", client.ConnID))
			return
		}

		snapshot, err := reg.Join(ctx, data.RoomID, client)
		if err != nil {
			client.SendMessage(MsgTypeError, ErrorData{Message: err.Error()})
			return
		}
		// 快照带服务器时间戳，客户端借此完成第一次时钟校准
		client.SendMessage(MsgTypeRoomState, snapshot)

	case MsgTypePlay:
		if code := client.RoomID(); code != "" {
			reg.Play(code)
		}

	case MsgTypePause:
		if code := client.RoomID(); code != "" {
			reg.Pause(code)
		}

	case MsgTypeSeek:
		var data SeekData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			logger.Warn("跳转消息格式错误", logger.String("conn", client.ConnID))
			return
		}
		if code := client.RoomID(); code != "" {
			reg.Seek(code, data.Position)
		}

	case MsgTypeChangeSong:
		var data ChangeSongData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			logger.Warn("切歌消息格式错误", logger.String("conn", client.ConnID))
			return
		}
		if code := client.RoomID(); code != "" {
			reg.ChangeSong(code, data.SongIndex)
		}

	case MsgTypeTimeSyncRequest:
		// 立即应答当前权威时间，往返耗时由客户端测量
		client.SendMessage(MsgTypeTimeSyncResponse, TimeSyncData{
			ServerTime: reg.clock.Now().UnixMilli(),
		})

	case MsgTypePing:
		if code := client.RoomID(); code != "" && reg.cache != nil {
			if err := reg.cache.UpdatePresence(ctx, code, client.ConnID); err != nil {
				logger.Warn("刷新在线状态失败",
					logger.ErrorField(err),
					logger.String("roomId", code))
			}
		}
		client.SendMessage(MsgTypePong, nil)

	default:
		logger.Debug("未知消息类型",
			logger.String("type", string(msg.Type)),
			logger.String("conn", client.ConnID))
	}
}

// Disconnect 连接断开时的清理：退出房间成员集合并注销连接
func (reg *Registry) Disconnect(client *Client) {
	reg.Leave(client)
	reg.hub.Unregister(client)
}
