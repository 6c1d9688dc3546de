package orch

import (
	"github.com/dkeye/GroupWatch/internal/core"
	"github.com/dkeye/GroupWatch/internal/domain"
	"github.com/dkeye/GroupWatch/internal/metrics"
	"github.com/rs/zerolog/log"
)

func (o *Orchestrator) OnPlay(sid core.SessionID, position float64) error {
	return o.Playback(sid, domain.ActionPlay, position)
}

func (o *Orchestrator) OnPause(sid core.SessionID, position float64) error {
	return o.Playback(sid, domain.ActionPause, position)
}

func (o *Orchestrator) OnSeek(sid core.SessionID, position float64) error {
	return o.Playback(sid, domain.ActionSeek, position)
}

// Playback folds the transport event into the room's playback state and
// fans it out to every member except the sender. Position is forwarded
// as reported.
func (o *Orchestrator) Playback(sid core.SessionID, action domain.PlaybackAction, position float64) error {
	if !action.Valid() {
		return ErrInvalidAction
	}
	room, ms, err := o.joined(sid)
	if err != nil {
		return err
	}
	if o.SingleHost && !ms.Meta().IsHost() {
		metrics.RecordDropped("not_host")
		return ErrNotHost
	}

	prev, _ := o.Registry.GetPlaybackState(room.ID())
	if !o.Registry.SetPlaybackState(room.ID(), prev.Next(action, position, o.now())) {
		return nil
	}

	f, ok := o.playbackFrame(action, position)
	if !ok {
		return nil
	}
	res := room.Broadcast(sid, f)
	log.Debug().Str("module", "orch").Str("room", string(room.ID())).Str("sid", string(sid)).Str("action", string(action)).Float64("position", position).Int("sent_to", res.SendTo).Msg("playback")
	o.handleResult(room, res)
	return nil
}
