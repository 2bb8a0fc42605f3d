package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds process-wide HTTP metrics. Feature counters live in their
// feature's metrics package.
type Metrics struct {
	HTTPDuration *prometheus.HistogramVec
	InFlight     prometheus.Gauge
}

// New creates and registers all platform metrics.
func New() *Metrics {
	return &Metrics{
		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "docextract_http_request_duration_seconds",
			Help:    "HTTP request latency by method, path and status",
			Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 5, 30, 120, 300},
		}, []string{"method", "path", "status"}),
		InFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "docextract_http_requests_in_flight",
			Help: "HTTP requests currently being served",
		}),
	}
}

// ObserveRequest records one completed request.
func (m *Metrics) ObserveRequest(method, path, status string, elapsed time.Duration) {
	m.HTTPDuration.WithLabelValues(method, path, status).Observe(elapsed.Seconds())
}
