package compliance

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for compliance audit emission.
type Metrics struct {
	EventsEmitted   *prometheus.CounterVec
	PersistFailures *prometheus.CounterVec
	PersistDuration prometheus.Histogram
}

// NewMetrics registers compliance metrics with reg. A nil reg uses the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		EventsEmitted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mediashare_audit_compliance_emitted_total",
			Help: "Compliance audit events persisted, by action",
		}, []string{"action"}),
		PersistFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mediashare_audit_compliance_persist_failures_total",
			Help: "Compliance audit events that failed to persist, by action",
		}, []string{"action"}),
		PersistDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "mediashare_audit_compliance_persist_duration_seconds",
			Help:    "Latency of synchronous compliance audit writes",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),
	}
}

func (m *Metrics) observe(action string, err error, elapsed time.Duration) {
	m.PersistDuration.Observe(elapsed.Seconds())
	if err != nil {
		m.PersistFailures.WithLabelValues(action).Inc()
		return
	}
	m.EventsEmitted.WithLabelValues(action).Inc()
}
