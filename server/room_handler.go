package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"SyncFM/core/room"
	"SyncFM/logger"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// RoomHandler 房间 HTTP/WebSocket 处理器
type RoomHandler struct {
	registry *room.Registry
	hub      *room.Hub
	upgrader websocket.Upgrader
}

// NewRoomHandler 创建房间处理器
func NewRoomHandler(registry *room.Registry, hub *room.Hub) *RoomHandler {
	return &RoomHandler{
		registry: registry,
		hub:      hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// writeJSON 输出 JSON 响应
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError 输出 JSON 错误响应
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// ========== HTTP 处理器 ==========

// CreateRoomHandler 创建房间
// POST /api/rooms，返回新房间的完整状态快照。
func (h *RoomHandler) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	newRoom, err := h.registry.CreateRoom(r.Context())
	if err != nil {
		logger.Error("创建房间失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "failed to create room")
		return
	}

	snapshot, err := h.registry.Snapshot(newRoom.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read room state")
		return
	}
	writeJSON(w, http.StatusCreated, snapshot)
}

// GetRoomHandler 查询房间状态
// GET /api/rooms/{room_id}，快照内的位置已按当前时间推算。
func (h *RoomHandler) GetRoomHandler(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["room_id"]

	snapshot, err := h.registry.Snapshot(roomID)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			writeError(w, http.StatusNotFound, "room not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// ========== WebSocket 处理器 ==========

// WebSocketHandler 处理 WebSocket 连接升级
func (h *RoomHandler) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("WebSocket 升级失败", logger.ErrorField(err))
		return
	}

	client := room.NewClient(h.hub, conn, uuid.NewString())
	h.hub.Register(client)

	go client.WritePump()

	// 读循环结束（连接关闭）后统一清理
	defer h.registry.Disconnect(client)
	client.ReadPump(r.Context(), h.registry.HandleMessage)
}
