package orch

import (
	"github.com/dkeye/GroupWatch/internal/core"
	"github.com/dkeye/GroupWatch/internal/metrics"
	"github.com/dkeye/GroupWatch/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Relay forwards an opaque signaling payload to one member of the sender's
// room. Delivery is best effort: an absent target, or one in another room,
// is dropped without telling the sender.
func (o *Orchestrator) Relay(from, to core.SessionID, payload []byte) error {
	room, _, err := o.joined(from)
	if err != nil {
		return err
	}
	target, ok := room.Member(to)
	if !ok {
		metrics.RecordDropped("relay_target_missing")
		log.Debug().Str("module", "orch").Str("from", string(from)).Str("to", string(to)).Msg("relay target not found")
		return nil
	}
	frame, err := protocol.EncodeSignal(string(from), payload)
	if err != nil {
		metrics.RecordDropped("relay_empty")
		log.Debug().Err(err).Str("module", "orch").Str("from", string(from)).Msg("relay dropped")
		return nil
	}
	o.sendTo(room, target, core.Frame(frame))
	return nil
}
