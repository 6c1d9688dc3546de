package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPlaybackState_PositionAt(t *testing.T) {
	at := time.Unix(1000, 0)
	tests := []struct {
		name  string
		state PlaybackState
		now   time.Time
		want  float64
	}{
		{name: "playing advances", state: PlaybackState{Action: ActionPlay, Position: 10, Playing: true, UpdatedAt: at}, now: at.Add(5 * time.Second), want: 15},
		{name: "paused holds", state: PlaybackState{Action: ActionPause, Position: 10, UpdatedAt: at}, now: at.Add(5 * time.Second), want: 10},
		{name: "seek while paused holds", state: PlaybackState{Action: ActionSeek, Position: 42.5, UpdatedAt: at}, now: at.Add(time.Minute), want: 42.5},
		{name: "seek while playing advances", state: PlaybackState{Action: ActionSeek, Position: 30, Playing: true, UpdatedAt: at}, now: at.Add(10 * time.Second), want: 40},
		{name: "clock behind", state: PlaybackState{Action: ActionPlay, Position: 10, Playing: true, UpdatedAt: at}, now: at.Add(-time.Second), want: 10},
		{name: "negative forwarded as is", state: PlaybackState{Action: ActionPause, Position: -3, UpdatedAt: at}, now: at, want: -3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.state.PositionAt(tt.now), 1e-9)
		})
	}
}

func TestPlaybackState_Next(t *testing.T) {
	at := time.Unix(1000, 0)
	var zero PlaybackState

	played := zero.Next(ActionPlay, 10, at)
	assert.True(t, played.Playing)

	sought := played.Next(ActionSeek, 30, at.Add(2*time.Second))
	assert.Equal(t, PlaybackState{Action: ActionSeek, Position: 30, Playing: true, UpdatedAt: at.Add(2 * time.Second)}, sought)

	paused := sought.Next(ActionPause, 31, at.Add(3*time.Second))
	assert.False(t, paused.Playing)
	assert.False(t, paused.Next(ActionSeek, 5, at).Playing)

	assert.False(t, zero.Next(ActionSeek, 5, at).Playing, "a fresh room starts paused")
}

func TestPlaybackAction_Valid(t *testing.T) {
	for _, a := range []PlaybackAction{ActionPlay, ActionPause, ActionSeek} {
		assert.True(t, a.Valid(), a)
	}
	assert.False(t, PlaybackAction("rewind").Valid())
	assert.False(t, PlaybackAction("").Valid())
}

func TestNewMember(t *testing.T) {
	assert.Equal(t, DefaultParticipantName, NewMember("   ", RoleGuest).Name)
	assert.Equal(t, "Host", NewMember(" Host ", RoleHost).Name)
	assert.True(t, NewMember("h", RoleOf(true)).IsHost())
	assert.False(t, NewMember("g", RoleOf(false)).IsHost())

	long := make([]rune, MaxParticipantNameLen+10)
	for i := range long {
		long[i] = 'ж'
	}
	assert.Len(t, []rune(NewMember(string(long), RoleGuest).Name), MaxParticipantNameLen)
}
