package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GatewayCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inaddash_gateway_calls_total",
			Help: "Total analysis service calls",
		},
		[]string{"op", "status"},
	)

	GatewayLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inaddash_gateway_latency_seconds",
			Help:    "Analysis service call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	StaticReadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inaddash_static_reads_total",
			Help: "Static snapshot file reads by outcome",
		},
		[]string{"file", "outcome"},
	)

	StaleResponsesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inaddash_stale_responses_total",
			Help: "Responses discarded because a newer request was issued",
		},
		[]string{"resource"},
	)

	ExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inaddash_exports_total",
			Help: "Route table exports by format",
		},
		[]string{"format"},
	)

	RendersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inaddash_renders_total",
			Help: "Image renders by kind and cache result",
		},
		[]string{"kind", "cache"},
	)

	RefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inaddash_refreshes_total",
			Help: "Background refreshes by outcome",
		},
		[]string{"outcome"},
	)
)
