package model

// RoomSnapshot 房间完整状态快照（加入房间和 REST 查询时返回）
// Position 是按 ServerTime 推算出的实时位置，不是存储值。
type RoomSnapshot struct {
	ID               string  `json:"id"`
	Playlist         []Track `json:"playlist"`
	CurrentSong      Track   `json:"currentSong"`
	CurrentSongIndex int     `json:"currentSongIndex"`
	Position         float64 `json:"position"` // 播放进度（秒）
	IsPlaying        bool    `json:"isPlaying"`
	MemberCount      int     `json:"memberCount"`
	ServerTime       int64   `json:"serverTime"` // 服务器时间戳（毫秒），用于客户端时钟校准
}

// RoomPlaybackState 播放状态（Redis 镜像，仅用于观测，重启后不作为权威状态恢复）
type RoomPlaybackState struct {
	CurrentIndex int     `json:"currentIndex"`
	Position     float64 `json:"position"` // 状态变更时刻的播放进度（秒）
	IsPlaying    bool    `json:"isPlaying"`
	UpdatedAt    int64   `json:"updatedAt"` // 时间戳毫秒
}
