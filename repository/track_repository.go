package repository

import (
	"context"
	"fmt"

	"SyncFM/logger"
	"SyncFM/model"

	"gorm.io/gorm"
)

// TrackProvider 向房间提供有序歌单
// 歌单在房间创建时固定下来，之后不再变化。
type TrackProvider interface {
	Playlist(ctx context.Context) ([]model.Track, error)
}

// SampleTracks 内置示例歌单，曲库为空时的兜底内容
func SampleTracks() []model.Track {
	return []model.Track{
		{ID: 1, Title: "For You Kavithaa", Artist: "Fahim", URL: "/audio/for-you-kavithaa.mp3", Duration: 147},
		{ID: 2, Title: "Jhol", Artist: "Maanu x Annural Khalid", URL: "/audio/jhol.mp3", Duration: 158},
		{ID: 3, Title: "Ae Dil Hai Mushkil", Artist: "Fahim", URL: "/audio/ae-dil-hai-mushkil.mp3", Duration: 142},
		{ID: 4, Title: "Kalyani", Artist: "ARJN, KDS, FIFTY4, RONN", URL: "/audio/kalyani.mp3", Duration: 147},
	}
}

// GormTrackRepository 基于 MySQL 曲库的歌单提供者
type GormTrackRepository struct {
	db *gorm.DB
}

// NewGormTrackRepository 创建曲库歌单提供者
func NewGormTrackRepository(db *gorm.DB) *GormTrackRepository {
	return &GormTrackRepository{db: db}
}

// Playlist 按入库顺序返回全部曲目
func (r *GormTrackRepository) Playlist(ctx context.Context) ([]model.Track, error) {
	var tracks []model.Track
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&tracks).Error; err != nil {
		return nil, fmt.Errorf("查询曲库失败: %w", err)
	}
	return tracks, nil
}

// Seed 曲库为空时写入示例歌单
func (r *GormTrackRepository) Seed(ctx context.Context) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Track{}).Count(&count).Error; err != nil {
		return fmt.Errorf("统计曲库失败: %w", err)
	}
	if count > 0 {
		return nil
	}

	tracks := SampleTracks()
	if err := r.db.WithContext(ctx).Create(&tracks).Error; err != nil {
		return fmt.Errorf("写入示例歌单失败: %w", err)
	}

	logger.Info("曲库为空，已写入示例歌单", logger.Int("tracks", len(tracks)))
	return nil
}
