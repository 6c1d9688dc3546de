package orch

import (
	"unicode/utf8"

	"github.com/dkeye/GroupWatch/internal/core"
	"github.com/dkeye/GroupWatch/internal/metrics"
	"github.com/dkeye/GroupWatch/internal/protocol"
)

// OnMessage fans a chat message out to every member of the sender's room,
// the sender included. Nothing is stored.
func (o *Orchestrator) OnMessage(sid core.SessionID, author, text string) error {
	room, ms, err := o.joined(sid)
	if err != nil {
		return err
	}
	if o.ChatMaxLength > 0 && utf8.RuneCountInString(text) > o.ChatMaxLength {
		metrics.RecordDropped("chat_too_long")
		return ErrMessageTooLong
	}
	if o.Chat != nil && !o.Chat.Allow(sid) {
		metrics.RecordDropped("chat_rate_limited")
		return ErrRateLimited
	}
	if author == "" {
		author = ms.Meta().Name
	}

	f, ok := o.encode(protocol.ChatBroadcast{Type: protocol.TypeChatMessage, Author: author, Message: text})
	if !ok {
		return nil
	}
	o.handleResult(room, room.BroadcastAll(f))
	return nil
}
