// Package metrics provides Prometheus metrics for the group-watch gateway.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveRooms tracks rooms with at least one member.
	ActiveRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "groupwatch_active_rooms",
			Help: "Number of rooms with at least one member",
		},
	)

	// ActiveSessions tracks joined sessions across all rooms.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "groupwatch_active_sessions",
			Help: "Number of sessions currently joined to a room",
		},
	)

	// Messages counts inbound messages handled, by type.
	Messages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groupwatch_messages_total",
			Help: "Total number of inbound messages handled",
		},
		[]string{"type"},
	)

	// Dropped counts messages that were not delivered or not accepted.
	Dropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groupwatch_dropped_total",
			Help: "Total number of dropped messages",
		},
		[]string{"reason"},
	)
)

func RecordRoomCreated() { ActiveRooms.Inc() }
func RecordRoomRemoved() { ActiveRooms.Dec() }

func RecordSessionJoined() { ActiveSessions.Inc() }
func RecordSessionLeft()   { ActiveSessions.Dec() }

// RecordMessage increments the inbound counter for a message type.
func RecordMessage(msgType string) {
	Messages.WithLabelValues(msgType).Inc()
}

// RecordDropped increments the drop counter for a reason.
func RecordDropped(reason string) {
	Dropped.WithLabelValues(reason).Inc()
}
