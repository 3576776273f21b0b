package cmd

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"SyncFM/client"
	"SyncFM/config"
	"SyncFM/core/room"
	"SyncFM/logger"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
)

var (
	clientAddr string
	clientRoom string
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "启动无头客户端",
	Long:  `连接到SyncFM服务器并加入指定房间，跟随权威播放进度。`,
	Run: func(cmd *cobra.Command, args []string) {
		runClient()
	},
}

func init() {
	clientCmd.Flags().StringVar(&clientAddr, "addr", "ws://localhost:8080/ws", "服务器 WebSocket 地址")
	clientCmd.Flags().StringVar(&clientRoom, "room", "", "要加入的房间码")
	clientCmd.MarkFlagRequired("room")
	rootCmd.AddCommand(clientCmd)
}

func runClient() {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel})

	conn, _, err := websocket.DefaultDialer.Dial(clientAddr, nil)
	if err != nil {
		logger.Fatal("连接服务器失败",
			logger.ErrorField(err),
			logger.String("addr", clientAddr))
	}
	defer conn.Close()

	// gorilla 的连接不允许并发写
	var writeMu sync.Mutex
	send := func(msgType room.MessageType, data interface{}) error {
		payload, err := json.Marshal(data)
		if err != nil {
			return err
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(&room.WSMessage{
			Type:      msgType,
			Data:      payload,
			Timestamp: time.Now().UnixMilli(),
		})
	}

	session := client.NewSession(clockwork.NewRealClock(), send)
	if err := session.Join(clientRoom); err != nil {
		logger.Fatal("加入房间失败", logger.ErrorField(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go session.RunClockSync(ctx, cfg.ClockSyncInterval)

	// 周期性汇报本地推算的播放进度
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logger.Info("本地播放进度",
					logger.String("roomId", session.RoomID()),
					logger.Float64("position", session.Player().Position()),
					logger.Bool("playing", session.Player().Playing()),
					logger.Duration("clockOffset", session.ClockSync().Offset()))
			}
		}
	}()

	for {
		var msg room.WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			logger.Error("连接断开", logger.ErrorField(err))
			return
		}
		session.HandleMessage(&msg)
	}
}
