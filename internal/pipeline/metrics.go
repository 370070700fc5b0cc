package pipeline

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the per-stage duration histogram and fate counter the
// processor emits on every claim.
type Metrics struct {
	StageDuration *prometheus.HistogramVec
	Fates         *prometheus.CounterVec
}

// NewMetrics registers the pipeline's collectors against reg. Pass a fresh
// prometheus.NewRegistry() in tests to avoid colliding with the default
// registerer across parallel test binaries.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "payhook",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each webhook pipeline stage.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider", "stage"}),
		Fates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "payhook",
			Subsystem: "pipeline",
			Name:      "claims_total",
			Help:      "Count of webhook claims by terminal fate.",
		}, []string{"provider", "fate"}),
	}
	reg.MustRegister(m.StageDuration, m.Fates)
	return m
}
