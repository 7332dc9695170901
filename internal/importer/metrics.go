package importer

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts attachment imports by result: imported, reused or failed.
type Metrics struct {
	attachments *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		attachments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "attachments_imported_total",
				Help: "Attachments processed by the import pipeline, by result.",
			},
			[]string{"result"},
		),
	}
	if err := reg.Register(m.attachments); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) attachment(result string) {
	if m != nil {
		m.attachments.WithLabelValues(result).Inc()
	}
}
