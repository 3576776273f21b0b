package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"SyncFM/logger"
	"SyncFM/model"

	"github.com/fsnotify/fsnotify"
)

// FileTrackRepository 基于本地 JSON 文件的歌单提供者
// 通过 fsnotify 监听文件变化实现热加载；新歌单只影响之后创建的房间。
type FileTrackRepository struct {
	path string

	mu     sync.RWMutex
	tracks []model.Track

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewFileTrackRepository 创建文件歌单提供者
// 文件不存在或解析失败时回退到内置示例歌单。
func NewFileTrackRepository(path string) (*FileTrackRepository, error) {
	r := &FileTrackRepository{
		path: path,
		done: make(chan struct{}),
	}

	if err := r.load(); err != nil {
		logger.Warn("加载歌单文件失败，使用内置示例歌单",
			logger.ErrorField(err),
			logger.String("path", path))
		r.tracks = SampleTracks()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("创建文件监听器失败: %w", err)
	}
	r.watcher = watcher

	// 监听文件所在目录，编辑器保存时往往是 rename+create
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("监听歌单目录失败: %w", err)
	}

	go r.watch()
	return r, nil
}

// Playlist 返回当前歌单的副本
func (r *FileTrackRepository) Playlist(ctx context.Context) ([]model.Track, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tracks := make([]model.Track, len(r.tracks))
	copy(tracks, r.tracks)
	return tracks, nil
}

// load 读取并解析歌单文件
func (r *FileTrackRepository) load() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("读取歌单文件失败: %w", err)
	}

	var tracks []model.Track
	if err := json.Unmarshal(data, &tracks); err != nil {
		return fmt.Errorf("解析歌单文件失败: %w", err)
	}
	if len(tracks) == 0 {
		return fmt.Errorf("歌单文件为空: %s", r.path)
	}

	r.mu.Lock()
	r.tracks = tracks
	r.mu.Unlock()

	logger.Info("歌单文件已加载",
		logger.String("path", r.path),
		logger.Int("tracks", len(tracks)))
	return nil
}

// watch 文件变更监听循环
func (r *FileTrackRepository) watch() {
	for {
		select {
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(r.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if err := r.load(); err != nil {
					logger.Warn("歌单热加载失败，沿用旧歌单", logger.ErrorField(err))
				}
			}

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("歌单文件监听错误", logger.ErrorField(err))

		case <-r.done:
			return
		}
	}
}

// Close 停止监听
func (r *FileTrackRepository) Close() error {
	close(r.done)
	return r.watcher.Close()
}
