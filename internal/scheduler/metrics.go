package scheduler

import "github.com/prometheus/client_golang/prometheus"

// Metrics describe scheduler passes.
type Metrics struct {
	searches    *prometheus.CounterVec
	imported    prometheus.Counter
	runDuration prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		searches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scheduler_searches_total",
				Help: "Saved searches evaluated by the scheduler, by outcome.",
			},
			[]string{"outcome"},
		),
		imported: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scheduler_opportunities_imported_total",
			Help: "Opportunities imported by scheduled searches.",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scheduler_run_duration_seconds",
			Help:    "Duration of one scheduler pass across tenants.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		}),
	}
	for _, c := range []prometheus.Collector{m.searches, m.imported, m.runDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) search(outcome string) {
	if m != nil {
		m.searches.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) importedOpportunity() {
	if m != nil {
		m.imported.Inc()
	}
}

func (m *Metrics) observeRun(seconds float64) {
	if m != nil {
		m.runDuration.Observe(seconds)
	}
}
