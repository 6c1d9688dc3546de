package core

import (
	"sync"

	"github.com/dkeye/GroupWatch/internal/domain"
	"github.com/rs/zerolog/log"
)

// roomImpl is a threadsafe in-memory room.
// It never closes adapter-owned resources.
type roomImpl struct {
	id    domain.RoomID
	mu    sync.RWMutex
	bySID map[SessionID]MemberSession

	playback    domain.PlaybackState
	hasPlayback bool
}

func NewRoomService(id domain.RoomID) RoomService {
	return &roomImpl{
		id:    id,
		bySID: make(map[SessionID]MemberSession),
	}
}

func (r *roomImpl) ID() domain.RoomID { return r.id }

func (r *roomImpl) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bySID)
}

func (r *roomImpl) AddMember(ms MemberSession) []MemberSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing := make([]MemberSession, 0, len(r.bySID))
	for sid, m := range r.bySID {
		if sid == ms.ID() {
			continue
		}
		existing = append(existing, m)
	}
	r.bySID[ms.ID()] = ms
	log.Info().
		Str("module", "core.room").
		Str("room", string(r.id)).
		Str("sid", string(ms.ID())).
		Str("role", string(ms.Meta().Role)).
		Msg("member added")
	return existing
}

func (r *roomImpl) RemoveMember(sid SessionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bySID[sid]; !ok {
		return false
	}
	delete(r.bySID, sid)
	log.Info().Str("module", "core.room").Str("room", string(r.id)).Str("sid", string(sid)).Msg("member removed")
	return true
}

func (r *roomImpl) Member(sid SessionID) (MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ms, ok := r.bySID[sid]
	return ms, ok
}

func (r *roomImpl) Members() []MemberSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]MemberSession, 0, len(r.bySID))
	for _, ms := range r.bySID {
		out = append(out, ms)
	}
	return out
}

func (r *roomImpl) HasHost() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ms := range r.bySID {
		if ms.Meta().IsHost() {
			return true
		}
	}
	return false
}

func (r *roomImpl) SetPlayback(state domain.PlaybackState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.playback = state
	r.hasPlayback = true
}

func (r *roomImpl) Playback() (domain.PlaybackState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.playback, r.hasPlayback
}

func (r *roomImpl) Broadcast(from SessionID, data Frame) PublishResult {
	return r.publish(from, data)
}

func (r *roomImpl) BroadcastAll(data Frame) PublishResult {
	return r.publish("", data)
}

// publish holds the read lock while enqueueing so a frame never reaches
// a member removed concurrently. TrySend does not block.
func (r *roomImpl) publish(skip SessionID, data Frame) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := PublishResult{}
	for sid, m := range r.bySID {
		if skip != "" && sid == skip {
			continue
		}
		if err := m.Signal().TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, m)
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "core.room").Str("room", string(r.id)).Str("from", string(skip)).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}
