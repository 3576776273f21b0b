package model

import "time"

// Track represents an audio track offered to rooms.
// Tracks are immutable once loaded; rooms only ever reference them.
type Track struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Title     string    `json:"title" gorm:"size:200;not null"`
	Artist    string    `json:"artist" gorm:"size:200"`
	URL       string    `json:"url" gorm:"size:500;not null"` // 音频源地址（本地路径或 CDN URL）
	Duration  float64   `json:"duration"`                     // 时长（秒）
	CreatedAt time.Time `json:"createdAt"`
}

// TableName 指定表名
func (Track) TableName() string {
	return "tracks"
}
