package cache

import "time"

// Stats is a snapshot of the store's state and traffic counters.
// Derived values are recomputed from live entries on every call; the
// hit/miss counters accumulate across Clear.
type Stats struct {
	Hits        uint64    `json:"hits"`
	Misses      uint64    `json:"misses"`
	Size        int       `json:"size"`
	MaxSize     int       `json:"maxSize"`
	HitRate     float64   `json:"hitRate"`
	MemoryUsage int64     `json:"memoryUsage"`
	OldestEntry time.Time `json:"oldestEntry"`
	NewestEntry time.Time `json:"newestEntry"`
}

// Stats returns the current snapshot. HitRate is hits/(hits+misses),
// 0 before any recorded request. OldestEntry and NewestEntry are the
// zero time while the store is empty.
func (s *Store[V]) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var oldest, newest time.Time
	for _, e := range s.entries {
		if oldest.IsZero() || e.createdAt.Before(oldest) {
			oldest = e.createdAt
		}
		if newest.IsZero() || e.createdAt.After(newest) {
			newest = e.createdAt
		}
	}

	hits := s.hits.Load()
	misses := s.misses.Load()
	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}

	return Stats{
		Hits:        hits,
		Misses:      misses,
		Size:        len(s.entries),
		MaxSize:     s.config.MaxSize,
		HitRate:     rate,
		MemoryUsage: s.memBytes,
		OldestEntry: oldest,
		NewestEntry: newest,
	}
}
