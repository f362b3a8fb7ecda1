package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the registry.
type Metrics struct {
	AssetsCreated    prometheus.Counter
	Transfers        *prometheus.CounterVec
	TransferDuration prometheus.Histogram
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
	CacheErrors      prometheus.Counter
}

// New registers registry metrics with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		AssetsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "mediashare_assets_created_total",
			Help: "Total number of media assets registered",
		}),
		Transfers: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mediashare_transfers_total",
			Help: "Share transfers by outcome (ok or the rejecting error code)",
		}, []string{"outcome"}),
		TransferDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "mediashare_transfer_duration_seconds",
			Help:    "Duration of TransferShare including the audit write",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		CacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: "mediashare_asset_cache_hits_total",
			Help: "Asset reads served from cache",
		}),
		CacheMisses: f.NewCounter(prometheus.CounterOpts{
			Name: "mediashare_asset_cache_misses_total",
			Help: "Asset reads that fell through to the store",
		}),
		CacheErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "mediashare_asset_cache_errors_total",
			Help: "Cache operations that failed; the request still succeeded",
		}),
	}
}

func (m *Metrics) IncrementAssetsCreated() {
	m.AssetsCreated.Inc()
}

// ObserveTransfer records one transfer attempt. Call with time.Now() taken at the start.
func (m *Metrics) ObserveTransfer(outcome string, start time.Time) {
	m.Transfers.WithLabelValues(outcome).Inc()
	m.TransferDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementCacheHit()   { m.CacheHits.Inc() }
func (m *Metrics) IncrementCacheMiss()  { m.CacheMisses.Inc() }
func (m *Metrics) IncrementCacheError() { m.CacheErrors.Inc() }
