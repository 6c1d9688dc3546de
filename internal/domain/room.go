package domain

import "time"

// RoomID is supplied by clients; the server never generates one.
type RoomID string

type PlaybackAction string

const (
	ActionPlay  PlaybackAction = "play"
	ActionPause PlaybackAction = "pause"
	ActionSeek  PlaybackAction = "seek"
)

func (a PlaybackAction) Valid() bool {
	switch a {
	case ActionPlay, ActionPause, ActionSeek:
		return true
	}
	return false
}

// PlaybackState is the room's last reported transport position.
// Position is seconds into the media and is never clamped. Playing
// survives seeks, so a seek during playback keeps the room playing.
type PlaybackState struct {
	Action    PlaybackAction `json:"action"`
	Position  float64        `json:"position"`
	Playing   bool           `json:"playing"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Next folds a transport event into the state. Play and pause set Playing,
// seek keeps the previous value.
func (s PlaybackState) Next(action PlaybackAction, position float64, at time.Time) PlaybackState {
	playing := s.Playing
	switch action {
	case ActionPlay:
		playing = true
	case ActionPause:
		playing = false
	}
	return PlaybackState{Action: action, Position: position, Playing: playing, UpdatedAt: at}
}

// PositionAt extrapolates the playhead to now. Only a playing state advances.
func (s PlaybackState) PositionAt(now time.Time) float64 {
	if !s.Playing || now.Before(s.UpdatedAt) {
		return s.Position
	}
	return s.Position + now.Sub(s.UpdatedAt).Seconds()
}
