package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the extraction pipeline.
type Metrics struct {
	RoutingDecisions  *prometheus.CounterVec
	ExtractionSeconds prometheus.Histogram
	CacheHits         prometheus.Counter
	CacheMisses       prometheus.Counter
}

// New creates a Metrics instance with all extraction metrics registered.
func New() *Metrics {
	return &Metrics{
		RoutingDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "docextract_routing_decisions_total",
			Help: "Total routing decisions by outcome",
		}, []string{"outcome"}),
		ExtractionSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "docextract_extraction_duration_seconds",
			Help:    "End-to-end latency of the extraction pipeline",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 240},
		}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "docextract_routing_cache_hits_total",
			Help: "Active schema lookups served from the routing cache",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "docextract_routing_cache_misses_total",
			Help: "Active schema lookups that fell through to the store",
		}),
	}
}

func (m *Metrics) IncrementDecision(outcome string) {
	m.RoutingDecisions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveDuration(d time.Duration) {
	m.ExtractionSeconds.Observe(d.Seconds())
}

func (m *Metrics) IncrementCacheHit() {
	m.CacheHits.Inc()
}

func (m *Metrics) IncrementCacheMiss() {
	m.CacheMisses.Inc()
}
