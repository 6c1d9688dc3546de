package signal

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/GroupWatch/internal/app"
	"github.com/dkeye/GroupWatch/internal/app/orch"
	"github.com/dkeye/GroupWatch/internal/protocol"
)

type frame struct {
	typ string
	raw []byte
	m   map[string]any
}

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func newGateway(t *testing.T, opts orch.Options) (*httptest.Server, *orch.Orchestrator) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	o := orch.New(app.NewRegistry(app.WithSingleHost(opts.SingleHost)), app.SimplePolicy{}, nil, opts)
	ctl := NewSignalWSController(o, Settings{
		ReadLimit:  32768,
		PingPeriod: time.Minute,
		PongWait:   time.Minute,
		SendBuffer: 64,
	})

	ctx, cancel := context.WithCancel(context.Background())
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) { ctl.HandleSignal(ctx, c) })
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return srv, o
}

func dial(t *testing.T, srv *httptest.Server) *wsClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &wsClient{t: t, conn: conn}
}

func (c *wsClient) send(v any) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteJSON(v))
}

func (c *wsClient) sendRaw(s string) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteMessage(websocket.TextMessage, []byte(s)))
}

// until reads frames up to and including the first one of type typ.
func (c *wsClient) until(typ string) []frame {
	c.t.Helper()
	var seen []frame
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, data, err := c.conn.ReadMessage()
		require.NoError(c.t, err, "waiting for %s, saw %v", typ, seen)
		var m map[string]any
		require.NoError(c.t, json.Unmarshal(data, &m))
		f := frame{typ: m["type"].(string), raw: data, m: m}
		seen = append(seen, f)
		if f.typ == typ {
			return seen
		}
	}
}

func (c *wsClient) next(typ string) frame {
	c.t.Helper()
	seen := c.until(typ)
	return seen[len(seen)-1]
}

// drain round-trips a ping and returns everything received before the pong.
func (c *wsClient) drain() []frame {
	c.t.Helper()
	c.send(map[string]any{"type": protocol.TypePing})
	seen := c.until(protocol.TypePong)
	return seen[:len(seen)-1]
}

// waitCount reads participants frames until one reports n.
func (c *wsClient) waitCount(n int) {
	c.t.Helper()
	for {
		if count := c.next(protocol.TypeParticipant).m["count"].(float64); int(count) == n {
			return
		}
	}
}

func (c *wsClient) join(room, name string, host bool) frame {
	c.t.Helper()
	c.send(map[string]any{"type": protocol.TypeJoinRoom, "roomId": room, "participantName": name, "isHost": host})
	c.next(protocol.TypeRoomJoined)
	return c.next(protocol.TypeAllUsers)
}

func typesOf(frames []frame) []string {
	out := make([]string, 0, len(frames))
	for _, f := range frames {
		out = append(out, f.typ)
	}
	return out
}

func TestGateway_JoinFanOut(t *testing.T) {
	srv, _ := newGateway(t, orch.Options{})

	a := dial(t, srv)
	a.join("R", "A", true)
	b := dial(t, srv)
	usersB := b.join("R", "B", false)
	require.Len(t, usersB.m["users"], 1)
	aID := usersB.m["users"].([]any)[0].(string)

	bID := a.next(protocol.TypeUserJoined).m["userId"].(string)
	assert.NotEqual(t, aID, bID)

	c := dial(t, srv)
	usersC := c.join("R", "C", false)
	assert.ElementsMatch(t, []any{aID, bID}, usersC.m["users"])

	for _, peer := range []*wsClient{a, b} {
		joined := peer.next(protocol.TypeUserJoined)
		assert.NotEqual(t, aID, joined.m["userId"])
		assert.NotEqual(t, bID, joined.m["userId"])
		assert.EqualValues(t, 3, peer.next(protocol.TypeParticipant).m["count"])
	}
}

func TestGateway_SignalRelayByteIdentical(t *testing.T) {
	srv, _ := newGateway(t, orch.Options{})

	a := dial(t, srv)
	a.join("R", "A", true)
	b := dial(t, srv)
	aID := b.join("R", "B", false).m["users"].([]any)[0].(string)
	bID := a.next(protocol.TypeUserJoined).m["userId"].(string)

	payload := `{"type":"offer",  "sdp":"v=0\r\no=- 1 2 IN IP4 0.0.0.0\r\na=<html>&amp"}`
	a.sendRaw(`{"type":"signal","to":"` + bID + `","signal":` + payload + `}`)

	got := b.next(protocol.TypeSignal)
	assert.Equal(t, `{"type":"signal","from":"`+aID+`","signal":`+payload+`}`, string(got.raw))
}

func TestGateway_SignalToDepartedPeerIsSilent(t *testing.T) {
	srv, _ := newGateway(t, orch.Options{})

	a := dial(t, srv)
	a.join("R", "A", true)
	b := dial(t, srv)
	b.join("R", "B", false)
	bID := a.next(protocol.TypeUserJoined).m["userId"].(string)

	require.NoError(t, b.conn.Close())
	a.waitCount(1)

	a.send(map[string]any{"type": protocol.TypeSignal, "to": bID, "signal": map[string]any{"type": "offer"}})
	assert.Empty(t, a.drain())
}

func TestGateway_PlaybackAndChat(t *testing.T) {
	srv, _ := newGateway(t, orch.Options{})

	h := dial(t, srv)
	h.join("R", "Host", true)
	g := dial(t, srv)
	g.join("R", "Guest", false)
	h.drain()

	h.send(map[string]any{"type": protocol.TypePlay, "roomId": "R", "currentTime": 42.5})
	assert.Equal(t, 42.5, g.next(protocol.TypePlay).m["currentTime"])
	assert.NotContains(t, typesOf(h.drain()), protocol.TypePlay)

	g.send(map[string]any{"type": protocol.TypeChatMessage, "roomId": "R", "author": "Guest", "message": "m1"})
	g.send(map[string]any{"type": protocol.TypeChatMessage, "roomId": "R", "author": "Guest", "message": "m2"})
	for _, peer := range []*wsClient{h, g} {
		assert.Equal(t, "m1", peer.next(protocol.TypeChatMessage).m["message"])
		assert.Equal(t, "m2", peer.next(protocol.TypeChatMessage).m["message"])
	}
}

func TestGateway_ErrorReplies(t *testing.T) {
	srv, o := newGateway(t, orch.Options{})

	c := dial(t, srv)

	c.sendRaw(`not json`)
	assert.Equal(t, protocol.ErrCodeBadPayload, c.next(protocol.TypeError).m["error"])

	c.send(map[string]any{"type": protocol.TypeJoinRoom, "participantName": "x"})
	assert.Equal(t, protocol.ErrCodeBadPayload, c.next(protocol.TypeError).m["error"])
	rooms, sessions := o.Registry.Stats()
	assert.Zero(t, rooms)
	assert.Zero(t, sessions)

	c.send(map[string]any{"type": protocol.TypeChatMessage, "message": "hi"})
	assert.Equal(t, protocol.ErrCodeNotJoined, c.next(protocol.TypeError).m["error"])

	c.send(map[string]any{"type": "dance"})
	assert.Equal(t, protocol.ErrCodeUnknownType, c.next(protocol.TypeError).m["error"])

	c.join("R", "x", false)
	c.send(map[string]any{"type": protocol.TypeJoinRoom, "roomId": "R2"})
	assert.Equal(t, protocol.ErrCodeAlreadyJoined, c.next(protocol.TypeError).m["error"])
}

func TestGateway_JoinWithoutRoomLeavesRoomUntouched(t *testing.T) {
	srv, o := newGateway(t, orch.Options{})

	a := dial(t, srv)
	a.join("R", "A", true)
	a.drain()

	b := dial(t, srv)
	b.send(map[string]any{"type": protocol.TypeJoinRoom, "participantName": "B"})
	assert.Equal(t, protocol.ErrCodeBadPayload, b.next(protocol.TypeError).m["error"])
	assert.Empty(t, b.drain())

	seen := typesOf(a.drain())
	assert.NotContains(t, seen, protocol.TypeParticipant)
	assert.NotContains(t, seen, protocol.TypeUserJoined)
	assert.Len(t, o.Registry.Members("R"), 1)
	rooms, sessions := o.Registry.Stats()
	assert.Equal(t, 1, rooms)
	assert.Equal(t, 1, sessions)
}

func TestGateway_DisconnectCleansUp(t *testing.T) {
	srv, o := newGateway(t, orch.Options{})

	a := dial(t, srv)
	a.join("R", "A", true)
	b := dial(t, srv)
	b.join("R", "B", false)

	require.NoError(t, b.conn.Close())
	a.waitCount(1)
	assert.Len(t, o.Registry.Members("R"), 1)

	require.NoError(t, a.conn.Close())
	assert.Eventually(t, func() bool {
		_, ok := o.Registry.Room("R")
		return !ok
	}, 2*time.Second, 10*time.Millisecond)

	fresh := dial(t, srv)
	assert.Equal(t, []any{}, fresh.join("R", "F", false).m["users"])
}
