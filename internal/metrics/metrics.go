// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ostrich_upstream_requests_total",
			Help: "Upstream API responses by provider, endpoint and status code",
		},
		[]string{"provider", "endpoint", "status"},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ostrich_upstream_request_duration_seconds",
			Help:    "Upstream API latency including retries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "endpoint"},
	)

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ostrich_cache_hits_total",
			Help: "Redis cache hits",
		},
		[]string{"kind"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ostrich_cache_misses_total",
			Help: "Redis cache misses",
		},
		[]string{"kind"},
	)

	// DigestsSent counts dispatched digests; kind is "listings" or "fallback".
	DigestsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ostrich_digests_sent_total",
			Help: "Digest emails handed to the mail provider",
		},
		[]string{"kind"},
	)

	DigestFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ostrich_digest_failures_total",
			Help: "Digest failures by stage (search, detail, dispatch)",
		},
		[]string{"stage"},
	)

	DigestProperties = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ostrich_digest_properties",
			Help:    "Properties rendered per digest",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 40},
		},
	)

	HistoryDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ostrich_history_dropped_total",
			Help: "Listing history rows dropped because the writer queue was full",
		},
	)
)

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }
