package metric

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the exporter's own process-level metrics. They describe
// the exporter itself, not the PostgreSQL server it scrapes, and are
// appended to every /metrics response.
type Metrics struct {
	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	ResponseBytes   prometheus.Counter

	// Backing store metrics
	GatherDuration prometheus.Histogram
	GatherFailures prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all exporter metrics
func NewMetrics() *Metrics {
	return &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pg_stats_exporter",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests handled",
			},
			[]string{"code"},
		),

		RequestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "pg_stats_exporter",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),

		ResponseBytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "pg_stats_exporter",
				Subsystem: "http",
				Name:      "response_bytes_total",
				Help:      "Total number of body bytes streamed to clients",
			},
		),

		GatherDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "pg_stats_exporter",
				Subsystem: "gather",
				Name:      "duration_seconds",
				Help:      "Duration of one statistics gather against PostgreSQL",
				Buckets:   prometheus.DefBuckets,
			},
		),

		GatherFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "pg_stats_exporter",
				Subsystem: "gather",
				Name:      "failures_total",
				Help:      "Total number of failed statistics gathers",
			},
		),
	}
}

// RecordRequest records one completed request with its status code and duration.
func (m *Metrics) RecordRequest(code int, elapsed time.Duration) {
	m.RequestsTotal.WithLabelValues(strconv.Itoa(code)).Inc()
	m.RequestDuration.Observe(elapsed.Seconds())
}

// RecordResponseBytes adds streamed body bytes to the running total.
func (m *Metrics) RecordResponseBytes(n int) {
	m.ResponseBytes.Add(float64(n))
}

// RecordGather records the outcome of one gather against the backing store.
func (m *Metrics) RecordGather(elapsed time.Duration, err error) {
	m.GatherDuration.Observe(elapsed.Seconds())
	if err != nil {
		m.GatherFailures.Inc()
	}
}
