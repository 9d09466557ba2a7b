package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the request orchestrator.
var (
	upstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "respcache_upstream_requests_total",
		Help: "Total upstream fetches by result",
	}, []string{"result"}) // "success", "error"

	upstreamDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "respcache_upstream_request_duration_seconds",
		Help:    "Upstream fetch duration in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	offlineFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "respcache_offline_fallbacks_total",
		Help: "Total responses served stale after a fetch failure",
	})

	refreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "respcache_refreshes_total",
		Help: "Total background refresh attempts by result",
	}, []string{"result"}) // "refreshed", "unchanged", "failed"

	warmupRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "respcache_warmup_requests_total",
		Help: "Total warmup fetches by result",
	}, []string{"result"}) // "warmed", "failed"

	fetchRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "respcache_fetch_retries_total",
		Help: "Total fetch retry attempts by error class",
	}, []string{"error_class"})
)
