package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
// Values come from environment variables (optionally via a .env file) with
// sensible defaults for local development.
type Config struct {
	HTTPAddr string

	// 房间相关配置
	RoomCodeLength    int           // 房间码长度（大写字母+数字）
	MaxMembers        int           // 单个房间的最大成员数
	CreateIfMissing   bool          // 加入未知房间码时是否自动创建房间
	SyncInterval      time.Duration // 播放中房间的心跳同步间隔
	ClockSyncInterval time.Duration // 客户端时钟对时间隔

	// 歌单来源: "db" 使用 MySQL 曲库, "file" 使用本地 JSON 文件
	PlaylistSource string
	PlaylistFile   string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis配置
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	LogLevel string
	LogFile  string
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvBool gets an environment variable as bool or returns a default value.
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

// getEnvDuration gets an environment variable as duration or returns a default value.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// Attempt to load .env file. godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}

	return &Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		RoomCodeLength:    getEnvInt("ROOM_CODE_LENGTH", 6),
		MaxMembers:        getEnvInt("ROOM_MAX_MEMBERS", 32),
		CreateIfMissing:   getEnvBool("ROOM_CREATE_IF_MISSING", true),
		SyncInterval:      getEnvDuration("SYNC_INTERVAL", 3*time.Second),
		ClockSyncInterval: getEnvDuration("CLOCK_SYNC_INTERVAL", 10*time.Second),

		PlaylistSource: getEnv("PLAYLIST_SOURCE", "file"),
		PlaylistFile:   getEnv("PLAYLIST_FILE", "playlist.json"),

		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"), // For password, better not to have a hardcoded default
		DBName:     getEnv("DB_NAME", "syncfm"),

		// Redis配置，使用默认值
		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),
	}
}
