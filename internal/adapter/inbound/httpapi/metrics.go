package httpapi

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors the control API exposes at
// /metrics.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	RegistrationsTotal *prometheus.CounterVec
	ScansTotal         *prometheus.CounterVec
	ScanDuration       *prometheus.HistogramVec
	SearchesTotal      prometheus.Counter
}

// NewMetrics registers every control-API collector against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gatereg",
				Name:      "http_requests_total",
				Help:      "Total control API requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "gatereg",
				Name:      "http_request_duration_seconds",
				Help:      "Control API request duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		RegistrationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gatereg",
				Name:      "registrations_total",
				Help:      "Total entity registrations by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		ScansTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gatereg",
				Name:      "scans_total",
				Help:      "Total security scans by kind and verdict.",
			},
			[]string{"kind", "verdict"},
		),
		ScanDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "gatereg",
				Name:      "scan_duration_seconds",
				Help:      "Scanner subprocess duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		SearchesTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "gatereg",
				Name:      "searches_total",
				Help:      "Total hybrid search queries served.",
			},
		),
	}
}

// Observe records one completed request's duration and outcome.
func (m *Metrics) Observe(method, path string, status int, dur time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(dur.Seconds())
}
