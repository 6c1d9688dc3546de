package signal

import (
	"encoding/json"

	"github.com/dkeye/GroupWatch/internal/core"
	"github.com/dkeye/GroupWatch/internal/domain"
	"github.com/dkeye/GroupWatch/internal/protocol"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleRelay(sid core.SessionID, conn *WsSignalConn, data []byte) {
	var p protocol.Signal
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad signal payload")
		ctl.sendError(conn, protocol.ErrCodeBadPayload)
		return
	}
	if err := ctl.Orch.Relay(sid, core.SessionID(p.To), p.Signal); err != nil {
		ctl.replyErr(conn, err)
	}
}

func (ctl *SignalWSController) handleChat(sid core.SessionID, conn *WsSignalConn, data []byte) {
	var p protocol.ChatMessage
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad chat payload")
		ctl.sendError(conn, protocol.ErrCodeBadPayload)
		return
	}
	ctl.checkScope(sid, p.RoomID)
	if err := ctl.Orch.OnMessage(sid, p.Author, p.Message); err != nil {
		ctl.replyErr(conn, err)
	}
}

func (ctl *SignalWSController) handleTransport(sid core.SessionID, conn *WsSignalConn, typ string, data []byte) {
	var p protocol.Transport
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("type", typ).Msg("bad transport payload")
		ctl.sendError(conn, protocol.ErrCodeBadPayload)
		return
	}
	ctl.checkScope(sid, p.RoomID)
	if err := ctl.Orch.Playback(sid, domain.PlaybackAction(typ), p.CurrentTime); err != nil {
		ctl.replyErr(conn, err)
	}
}

// checkScope logs payloads naming a room other than the joined one. The
// joined room always wins.
func (ctl *SignalWSController) checkScope(sid core.SessionID, claimed string) {
	if claimed == "" {
		return
	}
	if roomID, _, ok := ctl.Orch.Registry.RoomOf(sid); ok && string(roomID) != claimed {
		log.Debug().Str("module", "signal").Str("sid", string(sid)).Str("room", string(roomID)).Str("claimed", claimed).Msg("payload room ignored")
	}
}
