// Package server — metrics.go registers all Prometheus metrics for the HTTP
// server and exposes them to handlers and middleware.
package server

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// labelHandler is the label used to partition HTTP metrics by the logical
// endpoint name rather than the raw URL path.
const labelHandler = "handler"

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created in New and stored on Server so that tests can
// inject a fresh prometheus.Registry without polluting the default one.
type serverMetrics struct {
	// askRequestsTotal counts completed /api/ask requests, partitioned by
	// outcome: "ok", "out_of_scope", or "error".
	askRequestsTotal *prometheus.CounterVec

	// askDurationSeconds records the wall-clock duration of each /api/ask
	// request: retrieval, scoring, and answer composition combined.
	askDurationSeconds *prometheus.HistogramVec

	// ingestTotal counts completed /api/ingest requests, partitioned by
	// outcome: "ok" or "error".
	ingestTotal *prometheus.CounterVec

	// ingestChunksTotal counts chunks added to the index via /api/ingest.
	ingestChunksTotal prometheus.Counter

	// httpRequestsTotal counts all HTTP requests handled by the mux,
	// partitioned by method, handler, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec
}

// newServerMetrics registers all server metrics against reg and returns the
// populated serverMetrics. promauto.With(reg) registers into the provided
// registry rather than the global default, which keeps unit tests hermetic.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		askRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docqa",
			Subsystem: "ask",
			Name:      "requests_total",
			Help:      "Total number of /api/ask requests completed, partitioned by outcome.",
		}, []string{"outcome"}),

		askDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docqa",
			Subsystem: "ask",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of /api/ask requests from receipt to composed answer.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}, []string{"outcome"}),

		ingestTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docqa",
			Subsystem: "ingest",
			Name:      "requests_total",
			Help:      "Total number of /api/ingest requests completed, partitioned by outcome.",
		}, []string{"outcome"}),

		ingestChunksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "docqa",
			Subsystem: "ingest",
			Name:      "chunks_total",
			Help:      "Total number of chunks added to the index via /api/ingest.",
		}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docqa",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docqa",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),
	}
}

// registerIndexGauge exposes the current index entry count as a gauge that is
// sampled from the engine on every scrape.
func registerIndexGauge(reg prometheus.Registerer, eng answerer) {
	promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "docqa",
		Subsystem: "index",
		Name:      "entries",
		Help:      "Number of entries currently held by the vector index.",
	}, func() float64 {
		h, err := eng.Health(context.Background())
		if err != nil {
			return 0
		}
		return float64(h.EntryCount)
	})
}
