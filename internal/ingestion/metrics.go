package ingestion

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts ingestion transitions and OCR notification outcomes.
type Metrics struct {
	transitions   *prometheus.CounterVec
	notifications *prometheus.CounterVec
	submitRetries prometheus.Counter
}

// NewMetrics registers the ingestion collectors on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingestion_transitions_total",
				Help: "Document status transitions applied, by target status.",
			},
			[]string{"status"},
		),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ocr_notifications_total",
				Help: "OCR completion notifications processed, by outcome.",
			},
			[]string{"outcome"},
		),
		submitRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ocr_submit_retries_total",
			Help: "OCR job submissions retried after a transient error.",
		}),
	}
	for _, c := range []prometheus.Collector{m.transitions, m.notifications, m.submitRetries} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) transition(status string) {
	if m != nil {
		m.transitions.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) notification(outcome string) {
	if m != nil {
		m.notifications.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) submitRetry() {
	if m != nil {
		m.submitRetries.Inc()
	}
}
