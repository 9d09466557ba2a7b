package cache

import (
	"fmt"
	"time"
)

// Strategy selects the eviction order when the store is at capacity.
type Strategy string

const (
	// StrategyLRU evicts the entries read least recently.
	StrategyLRU Strategy = "lru"

	// StrategyLFU evicts the entries read least often.
	StrategyLFU Strategy = "lfu"

	// StrategyFIFO evicts the entries created first.
	StrategyFIFO Strategy = "fifo"

	// StrategyTTL evicts the entries closest to expiry. With a uniform
	// TTL this is the creation order, so it shares the FIFO comparator.
	StrategyTTL Strategy = "ttl"
)

// InvalidationPolicy describes how consumers intend to invalidate
// entries. It is informational: invalidation is always an explicit
// call, the policy is carried for observability and configuration
// round-trips.
type InvalidationPolicy string

const (
	PolicyImmediate InvalidationPolicy = "immediate"
	PolicyLazy      InvalidationPolicy = "lazy"
	PolicyTimeBased InvalidationPolicy = "time-based"
	PolicyManual    InvalidationPolicy = "manual"
)

// DefaultTTL is the freshness window applied when no TTL is configured.
const DefaultTTL = 5 * time.Minute

// DefaultMaxSize is the default capacity bound in entries.
const DefaultMaxSize = 1000

// Config holds the cache store configuration.
type Config struct {
	// TTL is the duration after which an entry counts as stale.
	TTL time.Duration

	// MaxSize is the maximum number of entries (a count, not bytes).
	// A store at or above MaxSize evicts a batch before inserting.
	MaxSize int

	// Strategy governs eviction order.
	Strategy Strategy

	// InvalidationPolicy is informational, see the type docs.
	InvalidationPolicy InvalidationPolicy

	// SweepGrace extends how long past TTL an entry survives the
	// cleanup sweep. Zero means stale entries are swept as soon as the
	// sweeper sees them, which can starve offline fallback during long
	// outages. Deployments relying on EnableOfflineSupport typically
	// set this to about one TTL.
	SweepGrace time.Duration

	// EnableOfflineSupport serves stale entries when a fetch fails.
	EnableOfflineSupport bool

	// EnableBackgroundRefresh re-fetches aging entries ahead of expiry.
	EnableBackgroundRefresh bool

	// EnableCompression gzips payloads above the size threshold.
	EnableCompression bool
}

// DefaultConfig returns the configuration used when callers have no
// specific requirements: 5 minute TTL, 1000 entries, LRU eviction.
func DefaultConfig() Config {
	return Config{
		TTL:                     DefaultTTL,
		MaxSize:                 DefaultMaxSize,
		Strategy:                StrategyLRU,
		InvalidationPolicy:      PolicyManual,
		EnableOfflineSupport:    true,
		EnableBackgroundRefresh: true,
		EnableCompression:       true,
	}
}

// Validate checks the configuration, returning a *ConfigError for the
// first invalid field.
func (c Config) Validate() error {
	if c.TTL <= 0 {
		return &ConfigError{Field: "ttl", Message: "must be positive"}
	}
	if c.MaxSize < 0 {
		return &ConfigError{Field: "maxSize", Message: "must not be negative"}
	}
	if c.SweepGrace < 0 {
		return &ConfigError{Field: "sweepGrace", Message: "must not be negative"}
	}
	switch c.Strategy {
	case StrategyLRU, StrategyLFU, StrategyFIFO, StrategyTTL:
	default:
		return &ConfigError{Field: "strategy", Message: fmt.Sprintf("unknown strategy %q", c.Strategy)}
	}
	switch c.InvalidationPolicy {
	case PolicyImmediate, PolicyLazy, PolicyTimeBased, PolicyManual:
	default:
		return &ConfigError{Field: "invalidationPolicy", Message: fmt.Sprintf("unknown policy %q", c.InvalidationPolicy)}
	}
	return nil
}

// Patch is a partial configuration. Nil fields leave the current value
// unchanged. It serves both Update on the store and per-request
// overrides on a descriptor.
type Patch struct {
	TTL                     *time.Duration
	MaxSize                 *int
	Strategy                *Strategy
	InvalidationPolicy      *InvalidationPolicy
	SweepGrace              *time.Duration
	EnableOfflineSupport    *bool
	EnableBackgroundRefresh *bool
	EnableCompression       *bool
}

// Apply returns cfg with the non-nil patch fields applied. The result
// is not validated.
func (p *Patch) Apply(cfg Config) Config {
	if p == nil {
		return cfg
	}
	if p.TTL != nil {
		cfg.TTL = *p.TTL
	}
	if p.MaxSize != nil {
		cfg.MaxSize = *p.MaxSize
	}
	if p.Strategy != nil {
		cfg.Strategy = *p.Strategy
	}
	if p.InvalidationPolicy != nil {
		cfg.InvalidationPolicy = *p.InvalidationPolicy
	}
	if p.SweepGrace != nil {
		cfg.SweepGrace = *p.SweepGrace
	}
	if p.EnableOfflineSupport != nil {
		cfg.EnableOfflineSupport = *p.EnableOfflineSupport
	}
	if p.EnableBackgroundRefresh != nil {
		cfg.EnableBackgroundRefresh = *p.EnableBackgroundRefresh
	}
	if p.EnableCompression != nil {
		cfg.EnableCompression = *p.EnableCompression
	}
	return cfg
}
