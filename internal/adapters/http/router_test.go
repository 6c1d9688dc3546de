package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/GroupWatch/internal/app"
	"github.com/dkeye/GroupWatch/internal/app/orch"
	"github.com/dkeye/GroupWatch/internal/config"
	"github.com/dkeye/GroupWatch/internal/core"
	"github.com/dkeye/GroupWatch/internal/domain"
)

type nopConn struct{}

func (nopConn) TrySend(core.Frame) error { return nil }
func (nopConn) Close()                   {}

func newTestRouter(t *testing.T) (*gin.Engine, *orch.Orchestrator) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		Mode:       "test",
		PingPeriod: time.Minute,
		SendBuffer: 8,
		Secret:     "test-secret",
		ICEServers: []string{"stun:stun.example.org:3478"},
	}
	o := orch.New(app.NewRegistry(), app.SimplePolicy{}, nil, orch.Options{})
	return SetupRouter(context.Background(), cfg, o), o
}

func get(t *testing.T, r http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestRouter_Healthz(t *testing.T) {
	r, _ := newTestRouter(t)
	w, body := get(t, r, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, w.Header().Get("Set-Cookie"), "client token cookie is issued")
}

func TestRouter_Rooms(t *testing.T) {
	r, o := newTestRouter(t)

	_, body := get(t, r, "/api/rooms")
	assert.Equal(t, []any{}, body["rooms"])

	_, err := o.Join("h", nopConn{}, orch.JoinRequest{RoomID: "movie", Name: "Host", IsHost: true})
	require.NoError(t, err)
	_, err = o.Join("g", nopConn{}, orch.JoinRequest{RoomID: "movie", Name: "Guest"})
	require.NoError(t, err)

	_, body = get(t, r, "/api/rooms")
	rooms := body["rooms"].([]any)
	require.Len(t, rooms, 1)
	assert.Equal(t, "movie", rooms[0].(map[string]any)["roomId"])
	assert.EqualValues(t, 2, rooms[0].(map[string]any)["participants"])

	w, body := get(t, r, "/api/rooms/movie")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, body["participants"])
	assert.Nil(t, body["playback"])

	require.NoError(t, o.Playback("h", domain.ActionPause, 12.5))
	_, body = get(t, r, "/api/rooms/movie")
	playback := body["playback"].(map[string]any)
	assert.Equal(t, "pause", playback["action"])
	assert.Equal(t, 12.5, playback["position"])
	assert.Equal(t, false, playback["playing"])

	require.NoError(t, o.Playback("h", domain.ActionPlay, 13))
	require.NoError(t, o.Playback("g", domain.ActionSeek, 60))
	_, body = get(t, r, "/api/rooms/movie")
	playback = body["playback"].(map[string]any)
	assert.Equal(t, "seek", playback["action"])
	assert.Equal(t, true, playback["playing"], "seek keeps the room playing")
}

func TestRouter_RoomNotFound(t *testing.T) {
	r, _ := newTestRouter(t)
	w, body := get(t, r, "/api/rooms/nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "room not found", body["error"])
}

func TestRouter_ICE(t *testing.T) {
	r, _ := newTestRouter(t)
	_, body := get(t, r, "/api/ice")
	servers := body["iceServers"].([]any)
	require.Len(t, servers, 1)
	assert.Equal(t, []any{"stun:stun.example.org:3478"}, servers[0].(map[string]any)["urls"])
}

func TestRouter_Metrics(t *testing.T) {
	r, _ := newTestRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "groupwatch_active_rooms")
}
