// Package domain contains entity without logic, just meta-data
package domain

import "strings"

const (
	DefaultParticipantName = "guest"
	MaxParticipantNameLen  = 64
)

type Role string

const (
	RoleHost  Role = "host"
	RoleGuest Role = "guest"
)

func RoleOf(isHost bool) Role {
	if isHost {
		return RoleHost
	}
	return RoleGuest
}

// Member represents participant's meta for a room.
// No transport or lifecycle logic here.
type Member struct {
	Name string
	Role Role
}

// NewMember avoids raw literals in adapters and keeps construction obvious.
// Names are display-only and not unique within a room.
func NewMember(name string, role Role) *Member {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultParticipantName
	}
	if r := []rune(name); len(r) > MaxParticipantNameLen {
		name = string(r[:MaxParticipantNameLen])
	}
	return &Member{Name: name, Role: role}
}

func (m *Member) IsHost() bool { return m.Role == RoleHost }
