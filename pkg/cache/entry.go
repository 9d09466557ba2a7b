package cache

import (
	"encoding/json"
	"fmt"
	"maps"
	"time"
)

// Metadata keys written by the store on the compression path.
const (
	// MetaOriginalSize is the serialized payload size before compression.
	MetaOriginalSize = "originalSize"

	// MetaCompressionRatio is stored size divided by original size.
	MetaCompressionRatio = "compressionRatio"
)

// Entry is a cached value with its bookkeeping. The stored payload is
// exclusively owned by the store: Value decodes a fresh copy on every
// call, so no caller ever holds a handle into the cached bytes.
type Entry[V any] struct {
	key            string
	data           []byte
	createdAt      time.Time
	lastAccessedAt time.Time
	accessCount    int64
	sizeBytes      int64
	compressed     bool
	metadata       map[string]any
}

// Key returns the entry's key.
func (e *Entry[V]) Key() string { return e.key }

// CreatedAt returns when the entry was inserted or last refreshed.
func (e *Entry[V]) CreatedAt() time.Time { return e.createdAt }

// LastAccessedAt returns the time of the most recent read.
func (e *Entry[V]) LastAccessedAt() time.Time { return e.lastAccessedAt }

// AccessCount returns how many reads the entry has served.
func (e *Entry[V]) AccessCount() int64 { return e.accessCount }

// SizeBytes returns the size of the stored representation, after
// compression when the compression path was taken.
func (e *Entry[V]) SizeBytes() int64 { return e.sizeBytes }

// Compressed reports whether the stored bytes are gzip-compressed.
func (e *Entry[V]) Compressed() bool { return e.compressed }

// Metadata returns a copy of the entry's free-form metadata.
func (e *Entry[V]) Metadata() map[string]any {
	if e.metadata == nil {
		return nil
	}
	return maps.Clone(e.metadata)
}

// Age returns how long ago the entry was created.
func (e *Entry[V]) Age() time.Duration {
	return time.Since(e.createdAt)
}

// Stale reports whether the entry's age exceeds ttl. Stale entries are
// not absent: they remain readable for offline fallback until swept or
// evicted.
func (e *Entry[V]) Stale(ttl time.Duration) bool {
	return e.Age() >= ttl
}

// Value decodes the stored payload into a fresh V.
func (e *Entry[V]) Value() (V, error) {
	var v V
	data := e.data
	if e.compressed {
		raw, err := decompress(data)
		if err != nil {
			return v, err
		}
		data = raw
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("decode cache entry %q: %w", e.key, err)
	}
	return v, nil
}

// clone returns a snapshot safe to hand out while the store keeps
// mutating the original under its lock. The payload bytes are shared;
// they are never written after insert.
func (e *Entry[V]) clone() *Entry[V] {
	c := *e
	return &c
}
