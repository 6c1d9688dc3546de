// Package client is a Go participant for a group-watch room. It speaks the
// gateway's WebSocket protocol, builds one peer link per remote member and
// mirrors the host's playback onto a local Player.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/GroupWatch/internal/protocol"
)

const writeWait = 5 * time.Second

var ErrClosed = errors.New("session closed")

// Player is the local video surface driven by remote transport events.
type Player interface {
	SeekTo(seconds float64)
	Play()
	Pause()
}

// Handlers are optional callbacks. They run on the session's read loop.
type Handlers struct {
	OnJoined       func(roomID string, isHost bool)
	OnParticipants func(count int)
	OnChat         func(author, message string)
	OnPeer         func(peerID string, initiator bool)
	OnError        func(code string)
}

type Options struct {
	URL    string
	RoomID string
	Name   string
	IsHost bool

	Peers    PeerFactory
	Player   Player
	Handlers Handlers
}

type Session struct {
	opts Options
	conn *websocket.Conn

	writeMu sync.Mutex

	mu     sync.Mutex
	peers  map[string]PeerLink
	count  int
	isHost bool
	closed bool
}

// Dial connects to the gateway and asks to join opts.RoomID. Call Run to
// process incoming frames.
func Dial(ctx context.Context, opts Options) (*Session, error) {
	if opts.RoomID == "" {
		return nil, errors.New("room id is required")
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, opts.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", opts.URL, err)
	}
	s := &Session{
		opts:   opts,
		conn:   conn,
		peers:  make(map[string]PeerLink),
		isHost: opts.IsHost,
	}
	if err := s.write(protocol.JoinRoom{
		RoomID:          opts.RoomID,
		ParticipantName: opts.Name,
		IsHost:          opts.IsHost,
	}, protocol.TypeJoinRoom); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

// Run reads frames until the connection closes or ctx is done.
func (s *Session) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()
	defer func() { _ = s.Close() }()
	defer s.closePeers()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || s.isClosed() ||
				websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		s.handle(data)
	}
}

func (s *Session) handle(data []byte) {
	typ, err := protocol.Decode(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "client").Msg("bad frame")
		return
	}
	h := s.opts.Handlers

	switch typ {
	case protocol.TypeRoomJoined:
		var m protocol.RoomJoined
		if !decode(data, &m) {
			return
		}
		s.mu.Lock()
		s.isHost = m.IsHost
		s.mu.Unlock()
		if h.OnJoined != nil {
			h.OnJoined(m.RoomID, m.IsHost)
		}

	case protocol.TypeParticipant:
		var m protocol.Participants
		if !decode(data, &m) {
			return
		}
		s.mu.Lock()
		s.count = m.Count
		s.mu.Unlock()
		if h.OnParticipants != nil {
			h.OnParticipants(m.Count)
		}

	case protocol.TypeAllUsers:
		var m protocol.AllUsers
		if !decode(data, &m) {
			return
		}
		for _, id := range m.Users {
			s.addPeer(id, true)
		}

	case protocol.TypeUserJoined:
		var m protocol.UserJoined
		if !decode(data, &m) {
			return
		}
		s.addPeer(m.UserID, false)

	case protocol.TypeSignal:
		var m protocol.SignalFrom
		if !decode(data, &m) {
			return
		}
		s.mu.Lock()
		p := s.peers[m.From]
		s.mu.Unlock()
		if p == nil {
			log.Debug().Str("module", "client").Str("from", m.From).Msg("signal for unknown peer")
			return
		}
		if err := p.Signal(m.Signal); err != nil {
			log.Warn().Err(err).Str("module", "client").Str("from", m.From).Msg("apply signal")
		}

	case protocol.TypeChatMessage:
		var m protocol.ChatBroadcast
		if !decode(data, &m) {
			return
		}
		if h.OnChat != nil {
			h.OnChat(m.Author, m.Message)
		}

	case protocol.TypePlay, protocol.TypePause, protocol.TypeSeek:
		var m protocol.TransportBroadcast
		if !decode(data, &m) {
			return
		}
		s.applyTransport(typ, m.CurrentTime)

	case protocol.TypeError:
		var m protocol.ErrorReply
		if !decode(data, &m) {
			return
		}
		log.Warn().Str("module", "client").Str("code", m.Error).Msg("gateway error")
		if h.OnError != nil {
			h.OnError(m.Error)
		}

	case protocol.TypePong:
	default:
		log.Debug().Str("module", "client").Str("type", typ).Msg("unhandled frame")
	}
}

// applyTransport mirrors a remote transport event. The host owns its own
// play state, so only guests follow play and pause. Seek applies to all.
func (s *Session) applyTransport(typ string, pos float64) {
	p := s.opts.Player
	if p == nil {
		return
	}
	s.mu.Lock()
	host := s.isHost
	s.mu.Unlock()

	switch typ {
	case protocol.TypeSeek:
		p.SeekTo(pos)
	case protocol.TypePlay:
		if !host {
			p.SeekTo(pos)
			p.Play()
		}
	case protocol.TypePause:
		if !host {
			p.SeekTo(pos)
			p.Pause()
		}
	}
}

func (s *Session) addPeer(id string, initiator bool) {
	if s.opts.Peers == nil {
		return
	}
	var link PeerLink
	cb := PeerCallbacks{
		Signal: func(payload json.RawMessage) {
			if err := s.sendSignal(id, payload); err != nil {
				log.Debug().Err(err).Str("module", "client").Str("to", id).Msg("send signal")
			}
		},
		Closed: func() { s.dropPeer(id, link) },
	}
	link, err := s.opts.Peers.NewPeer(id, initiator, cb)
	if err != nil {
		log.Error().Err(err).Str("module", "client").Str("peer", id).Msg("create peer")
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = link.Close()
		return
	}
	old := s.peers[id]
	s.peers[id] = link
	s.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}

	log.Info().Str("module", "client").Str("peer", id).Bool("initiator", initiator).Msg("peer added")
	if h := s.opts.Handlers.OnPeer; h != nil {
		h(id, initiator)
	}
}

func (s *Session) dropPeer(id string, link PeerLink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.peers[id]; ok && cur == link {
		delete(s.peers, id)
	}
}

func (s *Session) closePeers() {
	s.mu.Lock()
	peers := s.peers
	s.peers = make(map[string]PeerLink)
	s.mu.Unlock()
	for _, p := range peers {
		_ = p.Close()
	}
}

// Peers returns the ids of remote members with a live link.
func (s *Session) Peers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.peers))
	for id := range s.peers {
		out = append(out, id)
	}
	return out
}

// Participants is the last member count reported by the gateway.
func (s *Session) Participants() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

func (s *Session) IsHost() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isHost
}

func (s *Session) SendChat(message string) error {
	return s.write(protocol.ChatMessage{
		RoomID:  s.opts.RoomID,
		Author:  s.opts.Name,
		Message: message,
	}, protocol.TypeChatMessage)
}

func (s *Session) Play(position float64) error  { return s.transport(protocol.TypePlay, position) }
func (s *Session) Pause(position float64) error { return s.transport(protocol.TypePause, position) }
func (s *Session) Seek(position float64) error  { return s.transport(protocol.TypeSeek, position) }

func (s *Session) transport(typ string, position float64) error {
	return s.write(protocol.Transport{RoomID: s.opts.RoomID, CurrentTime: position}, typ)
}

// sendSignal writes the payload as-is under "signal".
func (s *Session) sendSignal(to string, payload json.RawMessage) error {
	return s.write(protocol.Signal{To: to, Signal: payload}, protocol.TypeSignal)
}

// write merges the type discriminator into v and sends one text frame.
func (s *Session) write(v any, typ string) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", typ, err)
	}
	frame := make(map[string]json.RawMessage)
	if err := json.Unmarshal(body, &frame); err != nil {
		return fmt.Errorf("encode %s: %w", typ, err)
	}
	frame["type"], _ = json.Marshal(typ)
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("encode %s: %w", typ, err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.isClosed() {
		return ErrClosed
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write %s: %w", typ, err)
	}
	return nil
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close leaves the room by closing the connection. Safe to call twice.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.writeMu.Lock()
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	s.writeMu.Unlock()
	return s.conn.Close()
}

func decode(data []byte, v any) bool {
	if err := json.Unmarshal(data, v); err != nil {
		log.Warn().Err(err).Str("module", "client").Msg("bad frame payload")
		return false
	}
	return true
}
