package room

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"SyncFM/logger"
	"SyncFM/model"

	"github.com/gorilla/websocket"
)

// MessageType 消息类型
type MessageType string

const (
	// 系统消息
	MsgTypeJoinRoom MessageType = "join-room" // 加入房间
	MsgTypeError    MessageType = "error"     // 错误消息
	MsgTypePing     MessageType = "ping"      // 心跳
	MsgTypePong     MessageType = "pong"      // 心跳响应

	// 状态消息
	MsgTypeRoomState  MessageType = "room-state" // 房间完整状态快照
	MsgTypeSync       MessageType = "sync"       // 周期性进度同步
	MsgTypeUserJoined MessageType = "user-joined"
	MsgTypeUserLeft   MessageType = "user-left"

	// 播放控制消息
	MsgTypePlay       MessageType = "play"        // 播放
	MsgTypePause      MessageType = "pause"       // 暂停
	MsgTypeSeek       MessageType = "seek"        // 跳转
	MsgTypeChangeSong MessageType = "change-song" // 切换歌曲

	// 时钟对时消息
	MsgTypeTimeSyncRequest  MessageType = "time-sync-request"
	MsgTypeTimeSyncResponse MessageType = "time-sync-response"
)

// WSMessage WebSocket 消息结构
type WSMessage struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// JoinRoomData 加入房间请求数据
type JoinRoomData struct {
	RoomID string `json:"roomId"`
}

// PlaybackData 播放状态广播数据（play / pause / seek / sync 共用）
type PlaybackData struct {
	SongID     int64   `json:"songId"`
	Position   float64 `json:"position"`   // 播放进度（秒）
	ServerTime int64   `json:"serverTime"` // 服务器时间戳（毫秒）
}

// SeekData 跳转请求数据
type SeekData struct {
	Position float64 `json:"position"`
}

// ChangeSongData 切歌请求数据
type ChangeSongData struct {
	SongIndex int `json:"songIndex"`
}

// SongChangedData 切歌广播数据
type SongChangedData struct {
	Song       model.Track `json:"song"`
	SongIndex  int         `json:"songIndex"`
	Position   float64     `json:"position"`
	IsPlaying  bool        `json:"isPlaying"`
	ServerTime int64       `json:"serverTime"`
}

// TimeSyncData 对时响应数据
type TimeSyncData struct {
	ServerTime int64 `json:"serverTime"` // 服务器时间戳（毫秒）
}

// MemberData 成员变动广播数据
type MemberData struct {
	UserID      string `json:"userId"`
	MemberCount int    `json:"memberCount"`
}

// ErrorData 错误消息数据
type ErrorData struct {
	Message string `json:"message"`
}

// Client WebSocket 客户端连接
// Send 通道永不关闭：广播和注销可能并发，断开只通过 done 通知写循环，
// 避免在途发送撞上已关闭的通道。
type Client struct {
	Hub    *Hub
	Conn   *websocket.Conn
	Send   chan []byte
	ConnID string

	mu     sync.RWMutex
	roomID string

	done      chan struct{}
	closeOnce sync.Once
}

// NewClient 创建客户端连接
func NewClient(hub *Hub, conn *websocket.Conn, connID string) *Client {
	return &Client{
		Hub:    hub,
		Conn:   conn,
		Send:   make(chan []byte, 256),
		ConnID: connID,
		done:   make(chan struct{}),
	}
}

// shutdown 通知写循环退出
func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		if c.done != nil {
			close(c.done)
		}
	})
}

// RoomID 获取客户端所在房间（线程安全）
func (c *Client) RoomID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roomID
}

func (c *Client) setRoomID(roomID string) {
	c.mu.Lock()
	c.roomID = roomID
	c.mu.Unlock()
}

// Hub 房间 WebSocket 管理中心
// 只负责连接的归属和消息扇出，房间成员集合的权威在 Registry。
type Hub struct {
	mu sync.RWMutex

	// 房间 -> 客户端集合 (connID -> Client)
	rooms map[string]map[string]*Client

	// 所有已连接客户端（含未加入房间的）
	clients map[string]*Client
}

// NewHub 创建 Hub
func NewHub() *Hub {
	return &Hub{
		rooms:   make(map[string]map[string]*Client),
		clients: make(map[string]*Client),
	}
}

// Register 注册新连接（尚未加入任何房间）
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ConnID] = client

	logger.Info("client registered", logger.String("conn", client.ConnID))
}

// JoinRoom 将连接移入房间的扇出集合
func (h *Hub) JoinRoom(client *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// 同一连接重复加入时先移出旧房间
	if old := client.RoomID(); old != "" && old != roomID {
		h.removeFromRoom(client, old)
	}

	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[string]*Client)
	}
	h.rooms[roomID][client.ConnID] = client
	client.setRoomID(roomID)
}

// Unregister 注销连接
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ConnID]; !ok {
		return
	}
	delete(h.clients, client.ConnID)

	roomID := client.RoomID()
	if roomID != "" {
		h.removeFromRoom(client, roomID)
		client.setRoomID("")
	}
	client.shutdown()

	logger.Info("client unregistered",
		logger.String("conn", client.ConnID),
		logger.String("room", roomID))
}

// removeFromRoom 把客户端移出房间扇出集合（需要持有锁）
func (h *Hub) removeFromRoom(client *Client, roomID string) {
	if clients, ok := h.rooms[roomID]; ok {
		delete(clients, client.ConnID)
		if len(clients) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// Broadcast 向房间广播消息
// excludeConnID 为空时发送给所有成员（包括触发者）。
func (h *Hub) Broadcast(roomID string, message []byte, excludeConnID string) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.rooms[roomID]))
	for connID, client := range h.rooms[roomID] {
		if excludeConnID != "" && connID == excludeConnID {
			continue
		}
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		select {
		case client.Send <- message:
		default:
			// 发送缓冲区满，丢弃消息；周期性 sync 会重新校准该客户端
			logger.Warn("send buffer full, message dropped",
				logger.String("conn", client.ConnID),
				logger.String("room", roomID))
		}
	}
}

// BroadcastMessage 广播 WSMessage
func (h *Hub) BroadcastMessage(roomID string, msgType MessageType, data interface{}, excludeConnID string) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	msg := &WSMessage{
		Type:      msgType,
		Data:      payload,
		Timestamp: time.Now().UnixMilli(),
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	h.Broadcast(roomID, raw, excludeConnID)
	return nil
}

// RoomClientCount 获取房间内的连接数
func (h *Hub) RoomClientCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// ========== Client 方法 ==========

// SendMessage 发送消息给客户端
func (c *Client) SendMessage(msgType MessageType, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	msg := &WSMessage{
		Type:      msgType,
		Data:      payload,
		Timestamp: time.Now().UnixMilli(),
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	select {
	case c.Send <- raw:
		return nil
	default:
		return nil // 缓冲区满，丢弃消息
	}
}

// ReadPump 读取消息循环
func (c *Client) ReadPump(ctx context.Context, handler func(ctx context.Context, client *Client, msg *WSMessage)) {
	defer func() {
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(4096) // 4KB
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, message, err := c.Conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					logger.Warn("websocket read error",
						logger.ErrorField(err),
						logger.String("conn", c.ConnID))
				}
				return
			}

			var msg WSMessage
			if err := json.Unmarshal(message, &msg); err != nil {
				logger.Warn("invalid message format",
					logger.ErrorField(err),
					logger.String("conn", c.ConnID))
				continue
			}

			handler(ctx, c, &msg)
		}
	}
}

// WritePump 写入消息循环
func (c *Client) WritePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// 合并发送队列中的消息
			n := len(c.Send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
