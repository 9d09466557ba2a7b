// Package metrics provides the centralized Prometheus metrics registry
// for the response cache. All metrics are defined in their respective
// packages (cache, client) to maintain modularity and avoid circular
// dependencies.
//
// This package provides documentation and reference for all available
// metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the response
// cache. All metrics are automatically registered via promauto in
// their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler returns the HTTP handler serving the registered metrics,
// ready to mount on a /metrics route.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Store Metrics (pkg/cache):
//   - respcache_hits_total (Counter): Requests answered from a fresh cached entry
//   - respcache_misses_total (Counter): Requests that needed an upstream fetch
//   - respcache_entries (Gauge): Current number of cached entries
//   - respcache_memory_bytes (Gauge): Serialized bytes held by the store
//   - respcache_evictions_total{strategy} (Counter): Evicted entries by strategy (lru, lfu, fifo, ttl)
//   - respcache_invalidations_total{type} (Counter): Invalidated entries by match type (exact, prefix, suffix, regex)
//   - respcache_swept_entries_total (Counter): Entries removed by the cleanup sweeper
//   - respcache_compressions_total{result} (Counter): Compression attempts by result (ok, failed)
//   - respcache_store_errors_total{operation} (Counter): Store operation failures
//
// Orchestrator Metrics (pkg/client):
//   - respcache_upstream_requests_total{result} (Counter): Upstream fetches by result (success, error)
//   - respcache_upstream_request_duration_seconds (Histogram): Upstream fetch duration
//   - respcache_offline_fallbacks_total (Counter): Responses served stale after a fetch failure
//   - respcache_refreshes_total{result} (Counter): Background refreshes by result (refreshed, unchanged, failed)
//   - respcache_warmup_requests_total{result} (Counter): Warmup fetches by result (warmed, failed)
//   - respcache_fetch_retries_total{error_class} (Counter): Fetch retries by error class
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(respcache_hits_total[5m])) /
//   (sum(rate(respcache_hits_total[5m])) + sum(rate(respcache_misses_total[5m])))
//
//   # Memory Pressure
//   respcache_memory_bytes
//
//   # Upstream Error Rate
//   rate(respcache_upstream_requests_total{result="error"}[5m])
//
//   # P95 Upstream Latency
//   histogram_quantile(0.95, rate(respcache_upstream_request_duration_seconds_bucket[5m]))
//
//   # Revalidation Efficiency
//   rate(respcache_refreshes_total{result="unchanged"}[5m]) /
//   sum(rate(respcache_refreshes_total[5m]))
//
//   # Stale Serving Under Outage
//   rate(respcache_offline_fallbacks_total[5m])
