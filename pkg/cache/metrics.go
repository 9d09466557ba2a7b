package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Hits tracks recorded cache hits
	Hits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "respcache_hits_total",
			Help: "Total number of cache hits",
		},
	)

	// Misses tracks recorded cache misses
	Misses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "respcache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	// Entries tracks the current entry count
	Entries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "respcache_entries",
			Help: "Current number of cached entries",
		},
	)

	// MemoryBytes tracks the stored (possibly compressed) payload bytes
	MemoryBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "respcache_memory_bytes",
			Help: "Current size of stored cache payloads in bytes",
		},
	)

	// Evictions tracks capacity evictions by strategy
	Evictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "respcache_evictions_total",
			Help: "Total number of entries removed by capacity eviction",
		},
		[]string{"strategy"}, // "lru", "lfu", "fifo", "ttl"
	)

	// Invalidations tracks pattern invalidations by match type
	Invalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "respcache_invalidations_total",
			Help: "Total number of entries removed by pattern invalidation",
		},
		[]string{"type"}, // "exact", "prefix", "suffix", "regex"
	)

	// SweptEntries tracks entries removed by the cleanup sweeper
	SweptEntries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "respcache_swept_entries_total",
			Help: "Total number of entries removed by the cleanup sweeper",
		},
	)

	// Compressions tracks compression attempts by result
	Compressions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "respcache_compressions_total",
			Help: "Total number of payload compression attempts",
		},
		[]string{"result"}, // "ok", "failed"
	)

	// StoreErrors tracks store operation errors
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "respcache_store_errors_total",
			Help: "Total number of store operation errors",
		},
		[]string{"operation"}, // "set"
	)
)
