// Package cache provides the in-memory entry store of the intelligent
// response cache.
//
// The store implements the storage half of the engine:
//
// - Bounded capacity with strategy-driven batch eviction (LRU/LFU/FIFO/TTL)
// - Pattern invalidation (exact, prefix, suffix, regex) with a
//   priority-ordered pattern registry and named triggers
// - Gzip compression of large payloads
// - Age-based cleanup sweeping with a configurable grace window
// - Derived statistics and Prometheus metrics
//
// Entries are stored serialized; readers decode a fresh copy on every
// access, so cached payloads cannot be mutated through a returned
// entry. Staleness is a policy decision of the caller: Get returns
// entries regardless of age, which is what makes offline fallback
// possible.
//
// # Basic Usage
//
//	store, err := cache.NewStore[Analysis](cache.DefaultConfig())
//	if err != nil {
//		return err
//	}
//
//	if err := store.Set("analysis:42", analysis); err != nil {
//		return err
//	}
//
//	entry, ok := store.Get("analysis:42")
//	if ok && !entry.Stale(store.Config().TTL) {
//		v, err := entry.Value()
//		// ...
//	}
//
// # Invalidation
//
//	// One-off invalidation
//	removed, err := store.Invalidate("analysis:", cache.MatchPrefix)
//
//	// Registered patterns, applied in descending priority order
//	_ = store.AddPattern(cache.Pattern{Pattern: "analysis:", Type: cache.MatchPrefix, Priority: 10})
//	removed = store.ApplyPatterns()
//
//	// Event-bound patterns
//	_ = store.RegisterTrigger("analysis_complete",
//		cache.Pattern{Pattern: "analysis:", Type: cache.MatchPrefix, Priority: 10})
//	removed, err = store.FireTrigger("analysis_complete")
//
// # Metrics
//
// The store exports Prometheus metrics:
//
//   - respcache_hits_total / respcache_misses_total - Recorded traffic
//   - respcache_entries - Current entry count
//   - respcache_memory_bytes - Stored payload bytes
//   - respcache_evictions_total{strategy} - Capacity evictions
//   - respcache_invalidations_total{type} - Pattern invalidations
//   - respcache_swept_entries_total - Cleanup sweeper removals
//   - respcache_compressions_total{result} - Compression attempts
//   - respcache_store_errors_total{operation} - Store operation errors
//
// The request orchestration half of the engine, including background
// refresh and the cleanup sweeper's schedule, lives in pkg/client.
package cache
