// Package monitoring holds the Prometheus metrics and the tracing bootstrap.
package monitoring

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics manages the Prometheus metrics of the gate.
type Metrics struct {
	IngestRequests   *prometheus.CounterVec
	IngestLatency    *prometheus.HistogramVec
	MetricsPublished prometheus.Counter
	StoreFaults      *prometheus.CounterVec
}

// NewMetrics creates the metrics against a registerer. Tests pass their own
// registry; the server passes prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		IngestRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bztn_ingest_requests_total",
				Help: "Total number of ingest requests by final status code.",
			},
			[]string{"status"},
		),
		IngestLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bztn_ingest_latency_seconds",
				Help:    "Latency of ingest requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"status"},
		),
		MetricsPublished: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bztn_metrics_published_total",
				Help: "Total number of metrics handed to the queue sink.",
			},
		),
		StoreFaults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bztn_key_store_faults_total",
				Help: "Total number of key-record store faults by kind.",
			},
			[]string{"kind"},
		),
	}
}

// RecordIngest records one finished ingest request.
func (m *Metrics) RecordIngest(status int, duration time.Duration, published int) {
	label := strconv.Itoa(status)
	m.IngestRequests.WithLabelValues(label).Inc()
	m.IngestLatency.WithLabelValues(label).Observe(duration.Seconds())
	if published > 0 {
		m.MetricsPublished.Add(float64(published))
	}
}

// RecordStoreFault records one classified store fault.
func (m *Metrics) RecordStoreFault(kind string) {
	m.StoreFaults.WithLabelValues(kind).Inc()
}
