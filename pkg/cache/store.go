package cache

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/framesight/respcache/pkg/logging"
)

// Store is the in-memory entry store. All mutations, including the
// bookkeeping writes performed by Get, are serialized under one lock;
// callers must never fetch from the network while holding an entry
// returned by the store, the snapshot is theirs to keep.
type Store[V any] struct {
	mu       sync.RWMutex
	entries  map[string]*Entry[V]
	config   Config
	patterns []Pattern
	triggers map[string][]Pattern
	memBytes int64

	// hit/miss counters are persistent: Clear resets entries, not them.
	hits   atomic.Uint64
	misses atomic.Uint64

	logger zerolog.Logger
}

// NewStore creates a store with the given configuration. Returns a
// *ConfigError when the configuration is invalid.
func NewStore[V any](cfg Config) (*Store[V], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Store[V]{
		entries:  make(map[string]*Entry[V]),
		config:   cfg,
		triggers: make(map[string][]Pattern),
		logger:   logging.NewLogger("cache"),
	}, nil
}

// Get returns the entry for key regardless of its age; whether a stale
// entry is usable is the caller's policy decision. A found entry has
// its lastAccessedAt and accessCount updated. The returned entry is a
// snapshot.
func (s *Store[V]) Get(key string) (*Entry[V], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	e.lastAccessedAt = time.Now()
	e.accessCount++
	return e.clone(), true
}

// Set stores value under key using the store's current configuration.
func (s *Store[V]) Set(key string, value V) error {
	return s.SetWith(key, value, s.Config())
}

// SetWith stores value under key using cfg for the compression and
// eviction decisions. The payload is serialized to JSON; when
// compression is enabled and the serialized form exceeds
// CompressionThreshold it is gzipped, with failures logged and the raw
// form stored instead. If the store is at or above cfg.MaxSize a batch
// eviction runs before the insert.
func (s *Store[V]) SetWith(key string, value V, cfg Config) error {
	raw, err := json.Marshal(value)
	if err != nil {
		StoreErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("encode cache entry %q: %w", key, err)
	}

	data := raw
	compressed := false
	var meta map[string]any
	if cfg.EnableCompression && len(raw) > CompressionThreshold {
		gz, cerr := compress(raw)
		if cerr != nil {
			s.logger.Warn().Str("key", key).Err(cerr).Msg("compression failed, storing uncompressed")
			Compressions.WithLabelValues("failed").Inc()
		} else {
			data = gz
			compressed = true
			meta = map[string]any{
				MetaOriginalSize:     len(raw),
				MetaCompressionRatio: float64(len(gz)) / float64(len(raw)),
			}
			Compressions.WithLabelValues("ok").Inc()
		}
	}

	now := time.Now()
	entry := &Entry[V]{
		key:            key,
		data:           data,
		createdAt:      now,
		lastAccessedAt: now,
		sizeBytes:      int64(len(data)),
		compressed:     compressed,
		metadata:       meta,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) >= cfg.MaxSize {
		s.evict(cfg)
	}
	if old, ok := s.entries[key]; ok {
		s.memBytes -= old.sizeBytes
	}
	s.entries[key] = entry
	s.memBytes += entry.sizeBytes
	s.syncGauges()
	return nil
}

// Delete removes the entry for key, reporting whether it existed.
func (s *Store[V]) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return false
	}
	delete(s.entries, key)
	s.memBytes -= e.sizeBytes
	s.syncGauges()
	return true
}

// Clear removes every entry. The hit/miss counters are kept so that
// hit rate remains meaningful across clears.
func (s *Store[V]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*Entry[V])
	s.memBytes = 0
	s.syncGauges()
}

// Touch resets the entry's createdAt, restarting its freshness window.
// Used after a revalidation confirms the cached payload is current.
func (s *Store[V]) Touch(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return false
	}
	e.createdAt = time.Now()
	return true
}

// Sweep removes every entry older than TTL plus SweepGrace and returns
// how many were removed.
func (s *Store[V]) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.config.TTL + s.config.SweepGrace
	now := time.Now()
	removed := 0
	for key, e := range s.entries {
		if now.Sub(e.createdAt) > cutoff {
			delete(s.entries, key)
			s.memBytes -= e.sizeBytes
			removed++
		}
	}
	if removed > 0 {
		SweptEntries.Add(float64(removed))
		s.syncGauges()
		s.logger.Debug().Int("removed", removed).Msg("cleanup sweep removed expired entries")
	}
	return removed
}

// Len returns the current entry count.
func (s *Store[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Config returns the current configuration.
func (s *Store[V]) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// Update applies a partial configuration change. The merged result is
// validated before it replaces the current configuration; on a
// *ConfigError nothing changes.
func (s *Store[V]) Update(p Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := p.Apply(s.config)
	if err := merged.Validate(); err != nil {
		return err
	}
	s.config = merged
	return nil
}

// RecordHit bumps the persistent hit counter. Hit/miss classification
// belongs to the request orchestrator: a stale entry found by Get still
// counts as a miss there.
func (s *Store[V]) RecordHit() {
	s.hits.Add(1)
	Hits.Inc()
}

// RecordMiss bumps the persistent miss counter.
func (s *Store[V]) RecordMiss() {
	s.misses.Add(1)
	Misses.Inc()
}

// syncGauges is called with s.mu held after every entry mutation.
func (s *Store[V]) syncGauges() {
	Entries.Set(float64(len(s.entries)))
	MemoryBytes.Set(float64(s.memBytes))
}
