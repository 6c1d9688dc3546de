// Package protocol defines the JSON frames exchanged over the group-watch
// WebSocket. Every frame carries a "type" discriminator.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	TypeJoinRoom    = "join-room"
	TypeRoomJoined  = "room-joined"
	TypeParticipant = "participants"
	TypeAllUsers    = "all-users"
	TypeUserJoined  = "user-joined"
	TypeSignal      = "signal"
	TypeChatMessage = "chat-message"
	TypePlay        = "play"
	TypePause       = "pause"
	TypeSeek        = "seek"
	TypePing        = "ping"
	TypePong        = "pong"
	TypeError       = "error"
)

// Error codes sent in error frames.
const (
	ErrCodeBadPayload     = "bad_payload"
	ErrCodeUnknownType    = "unknown_type"
	ErrCodeNotJoined      = "not_joined"
	ErrCodeAlreadyJoined  = "already_joined"
	ErrCodeNotHost        = "not_host"
	ErrCodeRateLimited    = "rate_limited"
	ErrCodeMessageTooLong = "message_too_long"
)

var ErrEmptySignal = errors.New("empty signal payload")

type Envelope struct {
	Type string `json:"type"`
}

// Inbound

type JoinRoom struct {
	RoomID          string `json:"roomId"`
	ParticipantName string `json:"participantName"`
	IsHost          bool   `json:"isHost"`
}

// Signal keeps the payload as the exact bytes the client sent.
type Signal struct {
	To     string          `json:"to"`
	Signal json.RawMessage `json:"signal"`
}

type ChatMessage struct {
	RoomID  string `json:"roomId,omitempty"`
	Author  string `json:"author"`
	Message string `json:"message"`
}

type Transport struct {
	RoomID      string  `json:"roomId,omitempty"`
	CurrentTime float64 `json:"currentTime"`
}

// Outbound

type RoomJoined struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
	IsHost bool   `json:"isHost"`
}

type Participants struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

type AllUsers struct {
	Type  string   `json:"type"`
	Users []string `json:"users"`
}

type UserJoined struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

type ChatBroadcast struct {
	Type    string `json:"type"`
	Author  string `json:"author"`
	Message string `json:"message"`
}

type TransportBroadcast struct {
	Type        string  `json:"type"`
	CurrentTime float64 `json:"currentTime"`
}

type ErrorReply struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// SignalFrom is the decoded form of a relayed signal, used by clients.
type SignalFrom struct {
	From   string          `json:"from"`
	Signal json.RawMessage `json:"signal"`
}

func Encode(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return b, nil
}

// EncodeSignal builds {"type":"signal","from":..,"signal":<payload>} by
// splicing payload in unchanged. json.Marshal would compact and
// HTML-escape a RawMessage, so it is not used for the payload.
func EncodeSignal(from string, payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, ErrEmptySignal
	}
	id, err := json.Marshal(from)
	if err != nil {
		return nil, fmt.Errorf("encode signal sender: %w", err)
	}
	const head = `{"type":"signal","from":`
	const mid = `,"signal":`
	buf := make([]byte, 0, len(head)+len(id)+len(mid)+len(payload)+1)
	buf = append(buf, head...)
	buf = append(buf, id...)
	buf = append(buf, mid...)
	buf = append(buf, payload...)
	buf = append(buf, '}')
	return buf, nil
}

// Decode reads the type discriminator and returns it with the raw frame.
func Decode(data []byte) (string, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", fmt.Errorf("decode envelope: %w", err)
	}
	return env.Type, nil
}
