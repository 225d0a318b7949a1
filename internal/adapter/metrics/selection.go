package metrics

import "github.com/prometheus/client_golang/prometheus"

// Selection outcomes.
const (
	SelectionValid      = "valid"
	SelectionInvalid    = "invalid"
	SelectionFailed     = "failed"
	SelectionSuperseded = "superseded"
)

// SelectionMetrics counts set selections by outcome.
// A nil *SelectionMetrics is valid and records nothing.
type SelectionMetrics struct {
	SelectionsTotal *prometheus.CounterVec
}

func NewSelectionMetrics(reg prometheus.Registerer) *SelectionMetrics {
	m := &SelectionMetrics{
		SelectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "selections_total",
			Help:      "Set selections by outcome (valid, invalid, failed, superseded).",
		}, []string{"outcome"}),
	}

	reg.MustRegister(m.SelectionsTotal)
	return m
}

func (m *SelectionMetrics) Selection(outcome string) {
	if m == nil {
		return
	}
	m.SelectionsTotal.WithLabelValues(outcome).Inc()
}
