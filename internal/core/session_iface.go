package core

import "github.com/dkeye/GroupWatch/internal/domain"

// SessionID is the connection handle. It addresses relay and broadcast
// and doubles as the participant id on the wire.
type SessionID string

// MemberSession binds domain.Member and its transport endpoint.
// This is what a room stores and fans out to.
type MemberSession interface {
	ID() SessionID
	Meta() *domain.Member
	Signal() SignalConnection
}
