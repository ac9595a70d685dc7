package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metrics holds the connection manager's instrumentation.
type metrics struct {
	eventsReceived    *prometheus.CounterVec
	reconnectAttempts prometheus.Counter
	droppedSends      prometheus.Counter
}

// newMetrics registers connection counters on reg. A nil reg disables
// registration (tests construct several managers in one process).
func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		eventsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "planwire",
			Subsystem: "realtime",
			Name:      "events_received_total",
			Help:      "Inbound realtime events by type.",
		}, []string{"type"}),
		reconnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "planwire",
			Subsystem: "realtime",
			Name:      "reconnect_attempts_total",
			Help:      "Reconnection attempts after transport loss.",
		}),
		droppedSends: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "planwire",
			Subsystem: "realtime",
			Name:      "dropped_sends_total",
			Help:      "Outbound messages dropped because the transport was down.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.eventsReceived, m.reconnectAttempts, m.droppedSends)
	}
	return m
}
