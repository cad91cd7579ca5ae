package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors updated by the engine.
type Metrics struct {
	Evaluations    *prometheus.CounterVec
	MissingTokens  *prometheus.CounterVec
	Reloads        *prometheus.CounterVec
	RankDuration   prometheus.Histogram
	SnapshotLayers *prometheus.GaugeVec
}

// NewMetrics creates the engine collectors and registers them with reg. A nil
// registerer leaves them unregistered, which suits tests and one-shot CLI runs.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "torrank_evaluations_total",
				Help: "Resources evaluated, by outcome (ranked, unmatched, failed)",
			},
			[]string{"outcome"},
		),
		MissingTokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "torrank_missing_attributes_total",
				Help: "Ranked resources that lacked data for a token, by token",
			},
			[]string{"token"},
		),
		Reloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "torrank_reloads_total",
				Help: "Snapshot reloads, by result (ok, failed)",
			},
			[]string{"result"},
		),
		RankDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "torrank_rank_duration_seconds",
				Help:    "Time taken to rank one request",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
		),
		SnapshotLayers: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "torrank_rule_layers",
				Help: "Layer count of each compiled rule in the live snapshot",
			},
			[]string{"rule"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Evaluations, m.MissingTokens, m.Reloads, m.RankDuration, m.SnapshotLayers)
	}
	return m
}

func (m *Metrics) observeSnapshot(s *Snapshot) {
	if m == nil {
		return
	}
	m.SnapshotLayers.Reset()
	m.SnapshotLayers.WithLabelValues(defaultRuleLabel).Set(float64(s.Default.Len()))
	for _, g := range s.Groups {
		m.SnapshotLayers.WithLabelValues(g.Name).Set(float64(g.Rules.Len()))
	}
}
