package cache

import "sort"

// evictCount returns the batch size for one eviction event:
// ceil(maxSize/10), at least 1. Batch eviction trades slightly more
// work per event for fewer events overall.
func evictCount(maxSize int) int {
	n := (maxSize + 9) / 10
	if n < 1 {
		n = 1
	}
	return n
}

// evict removes one batch of entries chosen by the strategy comparator.
// Called with s.mu held when the store is at or above capacity. With
// MaxSize 0 or 1 it still removes at least one entry (clamped to the
// number present) so an insert can succeed.
func (s *Store[V]) evict(cfg Config) int {
	if len(s.entries) == 0 {
		return 0
	}

	n := evictCount(cfg.MaxSize)
	if n > len(s.entries) {
		n = len(s.entries)
	}

	victims := make([]*Entry[V], 0, len(s.entries))
	for _, e := range s.entries {
		victims = append(victims, e)
	}
	less := comparator[V](cfg.Strategy)
	sort.Slice(victims, func(i, j int) bool { return less(victims[i], victims[j]) })

	for _, e := range victims[:n] {
		delete(s.entries, e.key)
		s.memBytes -= e.sizeBytes
	}

	Evictions.WithLabelValues(string(cfg.Strategy)).Add(float64(n))
	s.logger.Debug().
		Int("evicted", n).
		Str("strategy", string(cfg.Strategy)).
		Msg("capacity eviction")
	return n
}

// comparator returns the ascending sort order for a strategy; the
// lowest entries are evicted first.
func comparator[V any](strategy Strategy) func(a, b *Entry[V]) bool {
	switch strategy {
	case StrategyLFU:
		return func(a, b *Entry[V]) bool { return a.accessCount < b.accessCount }
	case StrategyFIFO, StrategyTTL:
		return func(a, b *Entry[V]) bool { return a.createdAt.Before(b.createdAt) }
	default: // StrategyLRU
		return func(a, b *Entry[V]) bool { return a.lastAccessedAt.Before(b.lastAccessedAt) }
	}
}
