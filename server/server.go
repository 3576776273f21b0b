package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"SyncFM/cache"
	"SyncFM/config"
	"SyncFM/core/room"
	"SyncFM/db"
	"SyncFM/logger"
	"SyncFM/model"
	"SyncFM/repository"

	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
)

// Start initializes and starts the HTTP server.
func Start() {
	cfg := config.Load()

	logger.Init(logger.Config{
		Level:      cfg.LogLevel,
		OutputPath: cfg.LogFile,
		MaxSize:    100,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	})

	// 设置服务器超时
	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 选择歌单来源
	var provider repository.TrackProvider
	switch cfg.PlaylistSource {
	case "db":
		if err := db.ConnectGormDB(cfg); err != nil {
			logger.Fatal("Failed to connect to database", logger.ErrorField(err))
		}
		defer db.CloseGormDB()

		if err := db.AutoMigrateModels(&model.Track{}); err != nil {
			logger.Fatal("Failed to migrate database", logger.ErrorField(err))
		}

		repo := repository.NewGormTrackRepository(db.GormDB)
		if err := repo.Seed(context.Background()); err != nil {
			logger.Fatal("Failed to seed track library", logger.ErrorField(err))
		}
		provider = repo

	default:
		repo, err := repository.NewFileTrackRepository(cfg.PlaylistFile)
		if err != nil {
			logger.Fatal("Failed to load playlist file", logger.ErrorField(err))
		}
		defer repo.Close()
		provider = repo
	}

	// Redis 连接失败不阻止启动，房间状态镜像是尽力而为的
	var roomCache *cache.RoomCache
	if err := db.ConnectRedis(cfg); err != nil {
		logger.Warn("Redis unavailable, room state mirroring disabled", logger.ErrorField(err))
	} else {
		defer db.CloseRedis()
		roomCache = cache.NewRoomCache(db.RedisClient)
		logger.Info("Successfully connected to Redis")
	}

	hub := room.NewHub()
	registry := room.NewRegistry(provider, hub, roomCache, clockwork.NewRealClock(), room.Options{
		CodeLength:      cfg.RoomCodeLength,
		MaxMembers:      cfg.MaxMembers,
		CreateIfMissing: cfg.CreateIfMissing,
		SyncInterval:    cfg.SyncInterval,
	})
	roomHandler := NewRoomHandler(registry, hub)

	// 使用 gorilla/mux 创建路由器
	router := mux.NewRouter()

	// 添加 CORS 中间件
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	// 房间相关的API端点
	router.HandleFunc("/api/rooms", roomHandler.CreateRoomHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/rooms/{room_id}", roomHandler.GetRoomHandler).Methods(http.MethodGet)
	router.HandleFunc("/ws", roomHandler.WebSocketHandler)

	server.Handler = router

	// 创建一个通道来接收操作系统信号
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// 在goroutine中启动服务器
	go func() {
		logger.Info("Server starting", logger.String("addr", cfg.HTTPAddr))

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", logger.ErrorField(err))
		}
	}()

	// 等待中断信号
	<-stop
	logger.Info("Shutting down server...")

	// 创建一个5秒超时的上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 优雅关闭服务器
	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", logger.ErrorField(err))
	}

	logger.Info("Server stopped")
}
