package signal

import (
	"encoding/json"
	"errors"

	"github.com/dkeye/GroupWatch/internal/app/orch"
	"github.com/dkeye/GroupWatch/internal/core"
	"github.com/dkeye/GroupWatch/internal/domain"
	"github.com/dkeye/GroupWatch/internal/protocol"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleJoin(
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	var p protocol.JoinRoom
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad join payload")
		ctl.sendError(conn, protocol.ErrCodeBadPayload)
		return
	}

	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", p.RoomID).Bool("host", p.IsHost).Msg("join")
	_, err := ctl.Orch.Join(sid, conn, orch.JoinRequest{
		RoomID: domain.RoomID(p.RoomID),
		Name:   p.ParticipantName,
		IsHost: p.IsHost,
	})
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("join rejected")
		ctl.replyErr(conn, err)
	}
}

// replyErr maps orchestrator errors to error frames for the sender only.
func (ctl *SignalWSController) replyErr(conn *WsSignalConn, err error) {
	switch {
	case errors.Is(err, orch.ErrMissingRoom), errors.Is(err, orch.ErrInvalidAction):
		ctl.sendError(conn, protocol.ErrCodeBadPayload)
	case errors.Is(err, orch.ErrAlreadyJoined):
		ctl.sendError(conn, protocol.ErrCodeAlreadyJoined)
	case errors.Is(err, orch.ErrNotJoined):
		ctl.sendError(conn, protocol.ErrCodeNotJoined)
	case errors.Is(err, orch.ErrNotHost):
		ctl.sendError(conn, protocol.ErrCodeNotHost)
	case errors.Is(err, orch.ErrRateLimited):
		ctl.sendError(conn, protocol.ErrCodeRateLimited)
	case errors.Is(err, orch.ErrMessageTooLong):
		ctl.sendError(conn, protocol.ErrCodeMessageTooLong)
	default:
		log.Error().Err(err).Str("module", "signal").Msg("unmapped error")
	}
}
