// Package metrics exposes prometheus instrumentation for the chat proxy.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the proxy's instruments, registered on a private registry so
// tests never collide on the global one.
type Metrics struct {
	Registry *prometheus.Registry

	// RequestsTotal counts chat requests by model, streaming mode, and outcome.
	RequestsTotal *prometheus.CounterVec

	// RequestDuration observes end-to-end request handling time.
	RequestDuration *prometheus.HistogramVec

	// StreamChunksTotal counts frames emitted on streaming responses.
	StreamChunksTotal *prometheus.CounterVec

	// RateLimitedTotal counts requests rejected by the fixed-window limiter.
	RateLimitedTotal prometheus.Counter
}

// New creates and registers the proxy metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		Registry: registry,
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "oib",
				Subsystem: "chat",
				Name:      "requests_total",
				Help:      "Total chat requests by model, mode, and status",
			},
			[]string{"model", "stream", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "oib",
				Subsystem: "chat",
				Name:      "request_duration_seconds",
				Help:      "Chat request handling duration",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"model", "stream"},
		),
		StreamChunksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "oib",
				Subsystem: "chat",
				Name:      "stream_chunks_total",
				Help:      "Frames emitted on streaming responses",
			},
			[]string{"model", "kind"},
		),
		RateLimitedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "oib",
				Subsystem: "chat",
				Name:      "rate_limited_total",
				Help:      "Requests rejected by the per-caller rate limiter",
			},
		),
	}

	registry.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.StreamChunksTotal,
		m.RateLimitedTotal,
	)

	return m
}
