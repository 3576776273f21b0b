package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"SyncFM/core/room"
	"SyncFM/model"
	"SyncFM/repository"

	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedProvider struct{}

func (fixedProvider) Playlist(ctx context.Context) ([]model.Track, error) {
	return repository.SampleTracks(), nil
}

func newTestRouter() (*mux.Router, *room.Registry) {
	hub := room.NewHub()
	reg := room.NewRegistry(fixedProvider{}, hub, nil, clockwork.NewFakeClock(), room.Options{CreateIfMissing: true})
	handler := NewRoomHandler(reg, hub)

	router := mux.NewRouter()
	router.HandleFunc("/api/rooms", handler.CreateRoomHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/rooms/{room_id}", handler.GetRoomHandler).Methods(http.MethodGet)
	return router, reg
}

func TestCreateRoomEndpoint(t *testing.T) {
	router, _ := newTestRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/rooms", nil))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var snapshot model.RoomSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.Regexp(t, `^[A-Z0-9]{6}$`, snapshot.ID)
	assert.Len(t, snapshot.Playlist, 4)
	assert.Equal(t, 0, snapshot.CurrentSongIndex)
	assert.False(t, snapshot.IsPlaying)
	assert.Equal(t, 0, snapshot.MemberCount)
}

func TestGetRoomEndpoint(t *testing.T) {
	router, reg := newTestRouter()

	created, err := reg.CreateRoom(context.Background())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/rooms/"+created.ID, nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var snapshot model.RoomSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.Equal(t, created.ID, snapshot.ID)
	assert.NotZero(t, snapshot.ServerTime)
}

func TestGetRoomNotFound(t *testing.T) {
	router, _ := newTestRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/rooms/NOSUCH", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "room not found", body["error"])
}
