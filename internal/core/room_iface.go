package core

import (
	"github.com/dkeye/GroupWatch/internal/domain"
)

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []MemberSession
}

// RoomService is the core-facing API of a room.
// It owns the membership set and the last playback state but never
// touches transport resources beyond enqueueing frames.
type RoomService interface {
	ID() domain.RoomID
	MemberCount() int
	Members() []MemberSession
	Member(sid SessionID) (MemberSession, bool)
	HasHost() bool

	// AddMember returns the members present before ms joined.
	AddMember(ms MemberSession) []MemberSession
	RemoveMember(sid SessionID) bool

	SetPlayback(state domain.PlaybackState)
	Playback() (domain.PlaybackState, bool)

	// Broadcast skips from; BroadcastAll reaches every member.
	Broadcast(from SessionID, data Frame) PublishResult
	BroadcastAll(data Frame) PublishResult
}

type RoomInfo struct {
	ID           domain.RoomID `json:"roomId"`
	Participants int           `json:"participants"`
}
