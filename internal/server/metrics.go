// Package server — metrics.go registers all Prometheus metrics for the HTTP
// server and exposes helpers used by handlers and middleware.
package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Chat outcome label values.
const (
	outcomeOK         = "ok"
	outcomeBusy       = "busy"
	outcomeBadRequest = "bad_request"
	outcomeError      = "error"
)

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created in New and stored on Server so that tests can
// inject a fresh prometheus.Registry without polluting the default one.
type serverMetrics struct {
	// chatRequestsTotal counts completed /api/chat requests, partitioned by
	// outcome: "ok", "busy", "bad_request" or "error".
	chatRequestsTotal *prometheus.CounterVec

	// chatDurationSeconds records the wall-clock duration of each
	// successful /api/chat turn, covering both model calls.
	chatDurationSeconds prometheus.Histogram

	// httpRequestsTotal counts all HTTP requests handled by the mux,
	// partitioned by method, handler name, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec
}

// newServerMetrics registers all server metrics against reg and returns the
// populated serverMetrics. promauto.With(reg) is used so that each call
// registers into the provided registry rather than the global default —
// this keeps unit tests hermetic.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		chatRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chartchat",
			Subsystem: "chat",
			Name:      "requests_total",
			Help:      "Total number of /api/chat requests completed, partitioned by outcome.",
		}, []string{"outcome"}),

		chatDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "chartchat",
			Subsystem: "chat",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of successful /api/chat turns including validation.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chartchat",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", "handler", "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "chartchat",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "handler"}),
	}
}
