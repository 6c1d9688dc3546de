package app

import (
	"sync"

	"github.com/dkeye/GroupWatch/internal/core"
	"github.com/dkeye/GroupWatch/internal/domain"
	"github.com/dkeye/GroupWatch/internal/metrics"
	"github.com/rs/zerolog/log"
)

type sessionEntry struct {
	RoomID  domain.RoomID
	Session core.MemberSession
}

// Registry maps room ids to rooms and sessions to their room.
// Membership changes are serialized by mu; rooms are created on the
// first Register and dropped when their last member leaves.
type Registry struct {
	mu       sync.RWMutex
	rooms    map[domain.RoomID]core.RoomService
	sessions map[core.SessionID]*sessionEntry

	singleHost bool
}

type RegistryOption func(*Registry)

// WithSingleHost demotes host claims in rooms that already have a host.
func WithSingleHost(enabled bool) RegistryOption {
	return func(r *Registry) { r.singleHost = enabled }
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		rooms:    make(map[domain.RoomID]core.RoomService),
		sessions: make(map[core.SessionID]*sessionEntry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds ms to the room, creating it if needed, and returns the
// members that were already present.
func (r *Registry) Register(roomID domain.RoomID, ms core.MemberSession) []core.MemberSession {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		room = core.NewRoomService(roomID)
		r.rooms[roomID] = room
		metrics.RecordRoomCreated()
		log.Info().Str("module", "app.registry").Str("room", string(roomID)).Msg("room created")
	}

	if r.singleHost && ms.Meta().IsHost() && room.HasHost() {
		ms.Meta().Role = domain.RoleGuest
		log.Info().Str("module", "app.registry").Str("room", string(roomID)).Str("sid", string(ms.ID())).Msg("host claim demoted")
	}

	existing := room.AddMember(ms)
	if _, bound := r.sessions[ms.ID()]; !bound {
		metrics.RecordSessionJoined()
	}
	r.sessions[ms.ID()] = &sessionEntry{RoomID: roomID, Session: ms}
	log.Info().Str("module", "app.registry").Str("sid", string(ms.ID())).Str("room", string(roomID)).Int("existing", len(existing)).Msg("bound session")
	return existing
}

// Unregister removes the session and drops the room once empty.
// It reports how many members remain and whether anything was removed.
func (r *Registry) Unregister(roomID domain.RoomID, sid core.SessionID) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.sessions[sid]; ok && e.RoomID == roomID {
		delete(r.sessions, sid)
		metrics.RecordSessionLeft()
	}

	room, ok := r.rooms[roomID]
	if !ok {
		return 0, false
	}
	removed := room.RemoveMember(sid)
	remaining := room.MemberCount()
	if remaining == 0 {
		delete(r.rooms, roomID)
		metrics.RecordRoomRemoved()
		log.Info().Str("module", "app.registry").Str("room", string(roomID)).Msg("room removed")
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(roomID)).Int("remaining", remaining).Msg("unbind session")
	return remaining, removed
}

// Members returns the current members, empty when the room is unknown.
func (r *Registry) Members(roomID domain.RoomID) []core.MemberSession {
	room, ok := r.Room(roomID)
	if !ok {
		return []core.MemberSession{}
	}
	return room.Members()
}

func (r *Registry) Room(roomID domain.RoomID) (core.RoomService, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[roomID]
	return room, ok
}

// RoomOf returns the room a session joined.
func (r *Registry) RoomOf(sid core.SessionID) (domain.RoomID, core.MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.sessions[sid]
	if !ok {
		return "", nil, false
	}
	return entry.RoomID, entry.Session, true
}

func (r *Registry) SetPlaybackState(roomID domain.RoomID, state domain.PlaybackState) bool {
	room, ok := r.Room(roomID)
	if !ok {
		return false
	}
	room.SetPlayback(state)
	return true
}

func (r *Registry) GetPlaybackState(roomID domain.RoomID) (domain.PlaybackState, bool) {
	room, ok := r.Room(roomID)
	if !ok {
		return domain.PlaybackState{}, false
	}
	return room.Playback()
}

func (r *Registry) List() []core.RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.RoomInfo, 0, len(r.rooms))
	for id, room := range r.rooms {
		out = append(out, core.RoomInfo{ID: id, Participants: room.MemberCount()})
	}
	return out
}

func (r *Registry) Stats() (rooms, sessions int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms), len(r.sessions)
}
