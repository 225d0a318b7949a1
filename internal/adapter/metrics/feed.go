package metrics

import "github.com/prometheus/client_golang/prometheus"

// FeedMetrics holds Prometheus metrics for the real-time feed connection.
// A nil *FeedMetrics is valid and records nothing.
type FeedMetrics struct {
	Transitions     *prometheus.CounterVec
	FramesReceived  prometheus.Counter
	FramesDropped   prometheus.Counter
	OpenConnections prometheus.Gauge
}

// NewFeedMetrics creates and registers feed metrics on the given registry.
func NewFeedMetrics(reg prometheus.Registerer) *FeedMetrics {
	m := &FeedMetrics{
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "state_transitions_total",
			Help:      "Feed state transitions by source and target state.",
		}, []string{"from", "to"}),
		FramesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "frames_received_total",
			Help:      "Track update frames delivered to the controller.",
		}),
		FramesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "frames_dropped_total",
			Help:      "Malformed frames dropped without closing the connection.",
		}),
		OpenConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "open_connections",
			Help:      "Number of open feed connections (0 or 1 per controller).",
		}),
	}

	reg.MustRegister(m.Transitions, m.FramesReceived, m.FramesDropped, m.OpenConnections)
	return m
}

func (m *FeedMetrics) Transition(from, to string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(from, to).Inc()
	switch to {
	case "open":
		m.OpenConnections.Inc()
	case "closed":
		if from == "open" {
			m.OpenConnections.Dec()
		}
	}
}

func (m *FeedMetrics) FrameReceived() {
	if m == nil {
		return
	}
	m.FramesReceived.Inc()
}

func (m *FeedMetrics) FrameDropped() {
	if m == nil {
		return
	}
	m.FramesDropped.Inc()
}
