package room

import (
	"testing"
	"time"

	"SyncFM/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPlaylist() []model.Track {
	return []model.Track{
		{ID: 1, Title: "First", Artist: "A", Duration: 180},
		{ID: 2, Title: "Second", Artist: "B", Duration: 200},
		{ID: 3, Title: "Third", Artist: "C", Duration: 160},
	}
}

func TestRoomInitialState(t *testing.T) {
	base := time.UnixMilli(1_700_000_000_000)
	r := newRoom("ABC123", testPlaylist(), base)

	snapshot := r.Snapshot(base)
	assert.Equal(t, "ABC123", snapshot.ID)
	assert.Equal(t, 0, snapshot.CurrentSongIndex)
	assert.Equal(t, 0.0, snapshot.Position)
	assert.False(t, snapshot.IsPlaying)
	assert.Equal(t, 0, snapshot.MemberCount)
	assert.Equal(t, base.UnixMilli(), snapshot.ServerTime)
}

func TestRoomPlayPause(t *testing.T) {
	base := time.UnixMilli(1_700_000_000_000)
	r := newRoom("ABC123", testPlaylist(), base)

	data := r.Play(base)
	assert.Equal(t, int64(1), data.SongID)
	assert.Equal(t, 0.0, data.Position)
	assert.Equal(t, base.UnixMilli(), data.ServerTime)
	assert.True(t, r.IsPlaying())

	// 播放 10 秒后的实时位置
	assert.InDelta(t, 10.0, r.LivePosition(base.Add(10*time.Second)), 1e-9)

	// 暂停时固化实时位置
	data = r.Pause(base.Add(10 * time.Second))
	assert.InDelta(t, 10.0, data.Position, 1e-9)
	assert.False(t, r.IsPlaying())

	// 暂停状态下位置不再前进
	assert.InDelta(t, 10.0, r.LivePosition(base.Add(time.Hour)), 1e-9)
}

func TestRoomResumeContinuity(t *testing.T) {
	base := time.UnixMilli(1_700_000_000_000)
	r := newRoom("ABC123", testPlaylist(), base)

	r.Play(base)
	r.Pause(base.Add(30 * time.Second))

	// 暂停一分钟后恢复播放，位置从暂停点继续
	data := r.Play(base.Add(90 * time.Second))
	assert.InDelta(t, 30.0, data.Position, 1e-9)
	assert.InDelta(t, 35.0, r.LivePosition(base.Add(95*time.Second)), 1e-9)
}

func TestRoomSeek(t *testing.T) {
	tests := []struct {
		name   string
		target float64
		want   float64
	}{
		{name: "正常跳转", target: 42.5, want: 42.5},
		{name: "负数收敛到零", target: -10, want: 0},
		{name: "超出时长收敛到末尾", target: 999, want: 180},
		{name: "跳转到起点", target: 0, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := time.UnixMilli(1_700_000_000_000)
			r := newRoom("ABC123", testPlaylist(), base)
			r.Play(base)

			data := r.Seek(tt.target, base.Add(5*time.Second))
			assert.InDelta(t, tt.want, data.Position, 1e-9)
			// 跳转不改变播放状态
			assert.True(t, r.IsPlaying())
		})
	}
}

func TestRoomSeekWhilePaused(t *testing.T) {
	base := time.UnixMilli(1_700_000_000_000)
	r := newRoom("ABC123", testPlaylist(), base)

	r.Seek(60, base)
	assert.False(t, r.IsPlaying())
	assert.InDelta(t, 60.0, r.LivePosition(base.Add(time.Minute)), 1e-9)
}

func TestRoomChangeSong(t *testing.T) {
	base := time.UnixMilli(1_700_000_000_000)
	r := newRoom("ABC123", testPlaylist(), base)
	r.Play(base)
	r.Seek(50, base.Add(time.Second))

	data, ok := r.ChangeSong(2, base.Add(2*time.Second))
	require.True(t, ok)
	assert.Equal(t, int64(3), data.Song.ID)
	assert.Equal(t, 2, data.SongIndex)
	assert.Equal(t, 0.0, data.Position)
	// 切歌保持播放状态，从头开始
	assert.True(t, data.IsPlaying)
	assert.InDelta(t, 3.0, r.LivePosition(base.Add(5*time.Second)), 1e-9)
}

func TestRoomChangeSongOutOfBounds(t *testing.T) {
	base := time.UnixMilli(1_700_000_000_000)
	r := newRoom("ABC123", testPlaylist(), base)
	r.Play(base)
	r.Seek(50, base.Add(time.Second))

	for _, index := range []int{-1, 3, 99} {
		_, ok := r.ChangeSong(index, base.Add(2*time.Second))
		assert.False(t, ok, "index %d 应被拒绝", index)
	}

	// 被拒绝的切歌不留任何痕迹
	assert.Equal(t, 0, r.CurrentIndex())
	assert.InDelta(t, 51.0, r.LivePosition(base.Add(2*time.Second)), 1e-9)
}

func TestRoomSyncState(t *testing.T) {
	base := time.UnixMilli(1_700_000_000_000)
	r := newRoom("ABC123", testPlaylist(), base)

	// 暂停中不产生心跳
	_, ok := r.SyncState(base)
	assert.False(t, ok)

	r.Play(base)
	data, ok := r.SyncState(base.Add(7 * time.Second))
	require.True(t, ok)
	assert.Equal(t, int64(1), data.SongID)
	assert.InDelta(t, 7.0, data.Position, 1e-9)
	assert.Equal(t, base.Add(7*time.Second).UnixMilli(), data.ServerTime)
}

func TestRoomMembers(t *testing.T) {
	base := time.UnixMilli(1_700_000_000_000)
	r := newRoom("ABC123", testPlaylist(), base)

	assert.Equal(t, 1, r.addMember("c1"))
	assert.Equal(t, 2, r.addMember("c2"))
	// 集合语义：重复加入不重复计数
	assert.Equal(t, 2, r.addMember("c1"))
	assert.True(t, r.hasMember("c1"))

	assert.Equal(t, 1, r.removeMember("c1"))
	assert.False(t, r.hasMember("c1"))
	assert.Equal(t, 0, r.removeMember("c2"))
}
