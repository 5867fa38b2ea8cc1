package httpapi

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors exposed by /metrics.
type Metrics struct {
	IngestAccepted prometheus.Counter
	IngestRejected prometheus.Counter
	QueryDuration  prometheus.Histogram
	LiveTailConns  prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics builds a fresh registry and registers every counter logtide
// exports.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		IngestAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "logtide_ingest_rows_accepted_total",
			Help: "Total number of log/span rows accepted by the ingestion pipeline.",
		}),
		IngestRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "logtide_ingest_rows_rejected_total",
			Help: "Total number of log/span rows rejected by the ingestion pipeline.",
		}),
		QueryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "logtide_query_duration_seconds",
			Help:    "Duration of logs search queries.",
			Buckets: prometheus.DefBuckets,
		}),
		LiveTailConns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "logtide_livetail_connections",
			Help: "Number of currently open live-tail WebSocket/SSE connections.",
		}),
	}

	reg.MustRegister(m.IngestAccepted, m.IngestRejected, m.QueryDuration, m.LiveTailConns)
	return m
}

// Handler returns the /metrics scrape endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
