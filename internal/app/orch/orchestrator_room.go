package orch

import (
	"github.com/dkeye/GroupWatch/internal/core"
	"github.com/dkeye/GroupWatch/internal/domain"
	"github.com/dkeye/GroupWatch/internal/protocol"
	"github.com/rs/zerolog/log"
)

type JoinRequest struct {
	RoomID domain.RoomID
	Name   string
	IsHost bool
}

// Join registers the connection in a room and performs the join fan-out:
// room-joined and all-users to the joiner, user-joined to existing members,
// participants to everyone.
func (o *Orchestrator) Join(sid core.SessionID, conn core.SignalConnection, req JoinRequest) (core.MemberSession, error) {
	if req.RoomID == "" {
		return nil, ErrMissingRoom
	}
	if roomID, _, ok := o.Registry.RoomOf(sid); ok {
		log.Warn().Str("module", "orch").Str("sid", string(sid)).Str("room", string(roomID)).Msg("second join ignored")
		return nil, ErrAlreadyJoined
	}

	ms := core.NewMemberSession(sid, domain.NewMember(req.Name, domain.RoleOf(req.IsHost)), conn)
	existing := o.Registry.Register(req.RoomID, ms)
	room, ok := o.Registry.Room(req.RoomID)
	if !ok {
		// Joiner was already removed again by a concurrent kick.
		return ms, nil
	}
	log.Info().
		Str("module", "orch").
		Str("sid", string(sid)).
		Str("room", string(req.RoomID)).
		Str("name", ms.Meta().Name).
		Str("role", string(ms.Meta().Role)).
		Msg("joined")

	if f, ok := o.encode(protocol.RoomJoined{Type: protocol.TypeRoomJoined, RoomID: string(req.RoomID), IsHost: ms.Meta().IsHost()}); ok {
		o.sendTo(room, ms, f)
	}

	users := make([]string, 0, len(existing))
	res := core.PublishResult{}
	if f, ok := o.encode(protocol.UserJoined{Type: protocol.TypeUserJoined, UserID: string(sid)}); ok {
		for _, m := range existing {
			users = append(users, string(m.ID()))
			if err := m.Signal().TrySend(f); err != nil {
				res.Dropped = append(res.Dropped, m)
				continue
			}
			res.SendTo++
		}
	}
	o.handleResult(room, res)

	o.broadcastCount(room)

	if f, ok := o.encode(protocol.AllUsers{Type: protocol.TypeAllUsers, Users: users}); ok {
		o.sendTo(room, ms, f)
	}

	if o.CatchUpLateJoiners {
		o.catchUp(room, ms)
	}
	return ms, nil
}

// catchUp brings a late joiner to the room's playhead: a seek to the
// extrapolated position, then play or pause.
func (o *Orchestrator) catchUp(room core.RoomService, ms core.MemberSession) {
	state, ok := o.Registry.GetPlaybackState(room.ID())
	if !ok {
		return
	}
	pos := state.PositionAt(o.now())
	next := domain.ActionPause
	if state.Playing {
		next = domain.ActionPlay
	}
	for _, action := range []domain.PlaybackAction{domain.ActionSeek, next} {
		f, ok := o.playbackFrame(action, pos)
		if !ok {
			return
		}
		o.sendTo(room, ms, f)
	}
	log.Debug().Str("module", "orch").Str("sid", string(ms.ID())).Bool("playing", state.Playing).Float64("position", pos).Msg("catch-up sent")
}

// OnDisconnect removes the session and tells the remaining members the new count.
func (o *Orchestrator) OnDisconnect(sid core.SessionID) {
	if o.Chat != nil {
		o.Chat.Forget(sid)
	}
	roomID, _, ok := o.Registry.RoomOf(sid)
	if !ok {
		return
	}
	remaining, removed := o.Registry.Unregister(roomID, sid)
	if !removed {
		return
	}
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(roomID)).Int("remaining", remaining).Msg("left")
	if remaining == 0 {
		return
	}
	if room, ok := o.Registry.Room(roomID); ok {
		o.broadcastCount(room)
	}
}

func (o *Orchestrator) broadcastCount(room core.RoomService) {
	f, ok := o.encode(protocol.Participants{Type: protocol.TypeParticipant, Count: room.MemberCount()})
	if !ok {
		return
	}
	o.handleResult(room, room.BroadcastAll(f))
}
