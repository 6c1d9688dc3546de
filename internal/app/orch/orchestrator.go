package orch

import (
	"errors"
	"time"

	"github.com/dkeye/GroupWatch/internal/app"
	"github.com/dkeye/GroupWatch/internal/core"
	"github.com/dkeye/GroupWatch/internal/domain"
	"github.com/dkeye/GroupWatch/internal/metrics"
	"github.com/dkeye/GroupWatch/internal/protocol"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotJoined      = errors.New("session not joined")
	ErrAlreadyJoined  = errors.New("session already joined")
	ErrMissingRoom    = errors.New("missing room id")
	ErrNotHost        = errors.New("transport control requires host role")
	ErrRateLimited    = errors.New("rate limited")
	ErrMessageTooLong = errors.New("message too long")
	ErrInvalidAction  = errors.New("invalid playback action")
)

type Options struct {
	// CatchUpLateJoiners replays the stored playback state to new joiners.
	CatchUpLateJoiners bool
	// SingleHost drops play/pause/seek from sessions without the host role.
	SingleHost bool
	// ChatMaxLength in runes, 0 for unlimited.
	ChatMaxLength int
}

type Orchestrator struct {
	Registry *app.Registry
	Policy   app.Policy
	// Chat limits chat messages per session; nil disables limiting.
	Chat *app.RateLimiter
	Options

	now func() time.Time
}

func New(reg *app.Registry, policy app.Policy, chat *app.RateLimiter, opts Options) *Orchestrator {
	return &Orchestrator{
		Registry: reg,
		Policy:   policy,
		Chat:     chat,
		Options:  opts,
		now:      time.Now,
	}
}

// joined resolves the sender's room or reports ErrNotJoined.
func (o *Orchestrator) joined(sid core.SessionID) (core.RoomService, core.MemberSession, error) {
	roomID, ms, ok := o.Registry.RoomOf(sid)
	if !ok {
		return nil, nil, ErrNotJoined
	}
	room, ok := o.Registry.Room(roomID)
	if !ok {
		return nil, nil, ErrNotJoined
	}
	return room, ms, nil
}

func (o *Orchestrator) encode(v any) (core.Frame, bool) {
	b, err := protocol.Encode(v)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("encode frame")
		return nil, false
	}
	return core.Frame(b), true
}

// sendTo enqueues a frame for a single member and applies backpressure policy.
func (o *Orchestrator) sendTo(room core.RoomService, ms core.MemberSession, f core.Frame) {
	res := core.PublishResult{}
	if err := ms.Signal().TrySend(f); err != nil {
		res.Dropped = append(res.Dropped, ms)
	} else {
		res.SendTo++
	}
	o.handleResult(room, res)
}

// handleResult runs the backpressure policy for members whose queues were full.
// It must be called without holding room locks.
func (o *Orchestrator) handleResult(room core.RoomService, res core.PublishResult) {
	for _, slow := range res.Dropped {
		metrics.RecordDropped("backpressure")
		if o.Policy == nil {
			continue
		}
		switch o.Policy.OnBackPressure(room, slow) {
		case app.KickMember:
			log.Warn().Str("module", "orch").Str("room", string(room.ID())).Str("sid", string(slow.ID())).Msg("kicking slow member")
			o.Kick(slow)
		case app.DropFrame, app.NoAction:
		}
	}
}

// Kick removes a member and closes its transport. The read side will later
// call OnDisconnect, which is then a no-op.
func (o *Orchestrator) Kick(ms core.MemberSession) {
	o.OnDisconnect(ms.ID())
	ms.Signal().Close()
}

func (o *Orchestrator) playbackFrame(action domain.PlaybackAction, position float64) (core.Frame, bool) {
	return o.encode(protocol.TransportBroadcast{Type: string(action), CurrentTime: position})
}
