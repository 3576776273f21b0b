package room

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubBroadcast(t *testing.T) {
	hub := NewHub()
	c1 := newTestClient(hub, "c1")
	c2 := newTestClient(hub, "c2")
	c3 := newTestClient(hub, "c3")

	hub.Register(c1)
	hub.Register(c2)
	hub.Register(c3)
	hub.JoinRoom(c1, "ROOM01")
	hub.JoinRoom(c2, "ROOM01")
	hub.JoinRoom(c3, "ROOM02")

	hub.Broadcast("ROOM01", []byte("hello"), "")

	// 同房间的成员都收到同一份消息，别的房间收不到
	assert.Equal(t, []byte("hello"), <-c1.Send)
	assert.Equal(t, []byte("hello"), <-c2.Send)
	assertNoMessage(t, c3)
}

func TestHubBroadcastExcludesSender(t *testing.T) {
	hub := NewHub()
	c1 := newTestClient(hub, "c1")
	c2 := newTestClient(hub, "c2")

	hub.Register(c1)
	hub.Register(c2)
	hub.JoinRoom(c1, "ROOM01")
	hub.JoinRoom(c2, "ROOM01")

	hub.Broadcast("ROOM01", []byte("hello"), "c1")

	assert.Equal(t, []byte("hello"), <-c2.Send)
	assertNoMessage(t, c1)
}

func TestHubBroadcastMessage(t *testing.T) {
	hub := NewHub()
	c1 := newTestClient(hub, "c1")

	hub.Register(c1)
	hub.JoinRoom(c1, "ROOM01")

	require.NoError(t, hub.BroadcastMessage("ROOM01", MsgTypeSync, PlaybackData{
		SongID:     7,
		Position:   12.5,
		ServerTime: 1_700_000_000_000,
	}, ""))

	msg := recvMessage(t, c1)
	assert.Equal(t, MsgTypeSync, msg.Type)
	assert.NotZero(t, msg.Timestamp)

	var data PlaybackData
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	assert.Equal(t, int64(7), data.SongID)
	assert.InDelta(t, 12.5, data.Position, 1e-9)
}

func TestHubBufferFullDropsMessage(t *testing.T) {
	hub := NewHub()
	c1 := &Client{Hub: hub, Send: make(chan []byte, 1), ConnID: "c1", done: make(chan struct{})}

	hub.Register(c1)
	hub.JoinRoom(c1, "ROOM01")

	hub.Broadcast("ROOM01", []byte("one"), "")
	// 缓冲区满时丢弃而不是阻塞
	hub.Broadcast("ROOM01", []byte("two"), "")

	assert.Equal(t, []byte("one"), <-c1.Send)
	assertNoMessage(t, c1)
}

func TestHubUnregister(t *testing.T) {
	hub := NewHub()
	c1 := newTestClient(hub, "c1")
	c2 := newTestClient(hub, "c2")

	hub.Register(c1)
	hub.Register(c2)
	hub.JoinRoom(c1, "ROOM01")
	hub.JoinRoom(c2, "ROOM01")
	assert.Equal(t, 2, hub.RoomClientCount("ROOM01"))

	hub.Unregister(c1)
	assert.Equal(t, 1, hub.RoomClientCount("ROOM01"))

	// 注销后归属被清空，写循环收到退出信号
	assert.Equal(t, "", c1.RoomID())
	select {
	case <-c1.done:
	default:
		t.Fatal("注销后应通知写循环退出")
	}

	// 重复注销是安全的
	hub.Unregister(c1)

	hub.Broadcast("ROOM01", []byte("hello"), "")
	assert.Equal(t, []byte("hello"), <-c2.Send)
	assertNoMessage(t, c1)
}

func TestHubBroadcastDuringUnregister(t *testing.T) {
	// 广播快照到发送之间连接被注销，不能触发通道 panic
	for i := 0; i < 200; i++ {
		hub := NewHub()
		c1 := newTestClient(hub, "c1")
		hub.Register(c1)
		hub.JoinRoom(c1, "ROOM01")

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				hub.Broadcast("ROOM01", []byte("tick"), "")
			}
		}()
		go func() {
			defer wg.Done()
			hub.Unregister(c1)
		}()
		wg.Wait()
	}
}

func TestHubSwitchRoom(t *testing.T) {
	hub := NewHub()
	c1 := newTestClient(hub, "c1")

	hub.Register(c1)
	hub.JoinRoom(c1, "ROOM01")
	hub.JoinRoom(c1, "ROOM02")

	// 换房间后旧房间的扇出集合不再包含该连接
	assert.Equal(t, 0, hub.RoomClientCount("ROOM01"))
	assert.Equal(t, 1, hub.RoomClientCount("ROOM02"))
	assert.Equal(t, "ROOM02", c1.RoomID())
}
