// Package client implements the request orchestrator of the
// intelligent response cache: hit/miss/stale decisions, offline
// fallback, background refresh, cleanup sweeping and cache warming.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/framesight/respcache/pkg/cache"
	"github.com/framesight/respcache/pkg/logging"
)

// Default intervals and bounds applied by New for zero Config fields.
const (
	DefaultFetchTimeout    = 10 * time.Second
	DefaultRefreshInterval = 30 * time.Second
	DefaultSweepInterval   = 60 * time.Second
	DefaultWarmInterval    = 60 * time.Second
	DefaultMaxConcurrency  = 5
	DefaultWarmupBatchSize = 5
	DefaultWarmupDelay     = 100 * time.Millisecond
)

// refreshThreshold is the fraction of the TTL after which a hit also
// schedules a background refresh.
const refreshThreshold = 0.8

// Descriptor describes one cacheable request. Params are appended to
// the URL as query parameters; the engine adds no other URL knowledge.
type Descriptor struct {
	URL              string
	Method           string
	Headers          map[string]string
	Body             []byte
	Params           map[string]any
	CacheKeyOverride string

	// Config overrides the cache configuration for this request only.
	Config *cache.Patch
}

// Response is the envelope returned by Request.
type Response[V any] struct {
	Data      V
	Status    int
	Headers   map[string]string
	Timestamp time.Time
	FromCache bool
	CacheKey  string
}

// Cached is the stored shape of an upstream response: the decoded
// payload plus the origin metadata needed to rebuild a Response and to
// revalidate with If-None-Match.
type Cached[V any] struct {
	Data    V                 `json:"data"`
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers,omitempty"`
	ETag    string            `json:"etag,omitempty"`
}

// Config holds the client configuration. Zero fields take the package
// defaults; the zero Cache config takes cache.DefaultConfig.
type Config struct {
	// Cache configures the entry store.
	Cache cache.Config

	// Transport performs the network I/O. Nil selects an HTTPTransport
	// with a plain http.Client.
	Transport Transport

	// FetchTimeout bounds each upstream fetch, including retries. A
	// timeout counts as a fetch failure and feeds the offline
	// fallback rule.
	FetchTimeout time.Duration

	// RefreshInterval is the background refresh cadence.
	RefreshInterval time.Duration

	// SweepInterval is the cleanup sweeper cadence.
	SweepInterval time.Duration

	// WarmInterval is the background warmer cadence.
	WarmInterval time.Duration

	// MaxConcurrency bounds parallel fetches in refresh and preload.
	MaxConcurrency int

	// WarmupBatchSize is the number of warmup requests fetched
	// concurrently per batch.
	WarmupBatchSize int

	// WarmupDelay is the pause between warmup batches, keeping warmup
	// from bursting the upstream.
	WarmupDelay time.Duration

	// Retry configures fetch retries. The zero value selects
	// DefaultRetryConfig.
	Retry RetryConfig
}

// DefaultConfig returns a configuration with every field at its
// default.
func DefaultConfig() Config {
	return Config{
		Cache:           cache.DefaultConfig(),
		FetchTimeout:    DefaultFetchTimeout,
		RefreshInterval: DefaultRefreshInterval,
		SweepInterval:   DefaultSweepInterval,
		WarmInterval:    DefaultWarmInterval,
		MaxConcurrency:  DefaultMaxConcurrency,
		WarmupBatchSize: DefaultWarmupBatchSize,
		WarmupDelay:     DefaultWarmupDelay,
		Retry:           DefaultRetryConfig(),
	}
}

// Client is the response cache engine. Construct one per payload type
// with New and inject it where responses are consumed; Close releases
// its background tasks.
type Client[V any] struct {
	config    Config
	store     *cache.Store[Cached[V]]
	transport Transport
	refreshq  *refreshQueue
	logger    zerolog.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	bg        sync.WaitGroup
	closeOnce sync.Once
}

// New creates a client and starts its refresh and sweep tasks. The
// tasks are bound to the client's lifetime and stop when Close is
// called.
func New[V any](cfg Config) (*Client[V], error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	store, err := cache.NewStore[Cached[V]](cfg.Cache)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client[V]{
		config:    cfg,
		store:     store,
		transport: cfg.Transport,
		refreshq:  newRefreshQueue(),
		logger:    logging.NewLogger("client"),
		ctx:       ctx,
		cancel:    cancel,
	}

	c.bg.Add(2)
	go c.refreshLoop()
	go c.sweepLoop()

	c.logger.Info().
		Dur("ttl", cfg.Cache.TTL).
		Int("max_size", cfg.Cache.MaxSize).
		Str("strategy", string(cfg.Cache.Strategy)).
		Msg("response cache started")
	return c, nil
}

// NewDefault creates a client with DefaultConfig. Convenience for
// consumers without specific requirements; prefer New with an explicit
// configuration in long-lived services.
func NewDefault[V any]() (*Client[V], error) {
	return New[V](DefaultConfig())
}

func (cfg Config) withDefaults() Config {
	if cfg.Cache == (cache.Config{}) {
		cfg.Cache = cache.DefaultConfig()
	}
	if cfg.Transport == nil {
		cfg.Transport = NewHTTPTransport(nil, "")
	}
	if cfg.FetchTimeout == 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.WarmInterval == 0 {
		cfg.WarmInterval = DefaultWarmInterval
	}
	if cfg.MaxConcurrency == 0 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}
	if cfg.WarmupBatchSize == 0 {
		cfg.WarmupBatchSize = DefaultWarmupBatchSize
	}
	if cfg.WarmupDelay == 0 {
		cfg.WarmupDelay = DefaultWarmupDelay
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryConfig()
	}
	return cfg
}

func (cfg Config) validate() error {
	if cfg.FetchTimeout < 0 {
		return &cache.ConfigError{Field: "fetchTimeout", Message: "must not be negative"}
	}
	if cfg.RefreshInterval < 0 {
		return &cache.ConfigError{Field: "refreshInterval", Message: "must not be negative"}
	}
	if cfg.SweepInterval < 0 {
		return &cache.ConfigError{Field: "sweepInterval", Message: "must not be negative"}
	}
	if cfg.WarmInterval < 0 {
		return &cache.ConfigError{Field: "warmInterval", Message: "must not be negative"}
	}
	if cfg.MaxConcurrency < 1 {
		return &cache.ConfigError{Field: "maxConcurrency", Message: "must be at least 1"}
	}
	if cfg.WarmupBatchSize < 1 {
		return &cache.ConfigError{Field: "warmupBatchSize", Message: "must be at least 1"}
	}
	if cfg.WarmupDelay < 0 {
		return &cache.ConfigError{Field: "warmupDelay", Message: "must not be negative"}
	}
	return nil
}

// Request resolves a descriptor through the cache: a fresh entry is
// served from memory, anything else is fetched from the upstream and
// stored. When the fetch fails and a (possibly stale) entry exists
// with offline support enabled, the stale data is served instead of
// the error.
//
// Concurrent misses on the same key are not coalesced: each performs
// its own fetch and the last write wins in the store.
func (c *Client[V]) Request(ctx context.Context, d Descriptor) (*Response[V], error) {
	cfg := d.Config.Apply(c.store.Config())
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	key := DeriveKey(d)

	var stale *cache.Entry[Cached[V]]
	if entry, ok := c.store.Get(key); ok {
		if !entry.Stale(cfg.TTL) {
			c.store.RecordHit()
			env, err := entry.Value()
			if err != nil {
				return nil, fmt.Errorf("read cached response %q: %w", key, err)
			}
			if cfg.EnableBackgroundRefresh && entry.Age() > time.Duration(float64(cfg.TTL)*refreshThreshold) {
				c.scheduleRefresh(key, d, env.ETag)
			}
			c.logger.Debug().
				Str("key", key).
				Dur("age", entry.Age()).
				Msg("cache hit")
			return responseFrom(env, key, true), nil
		}
		stale = entry
	}
	c.store.RecordMiss()

	result, err := c.fetch(ctx, d)
	if err != nil {
		if stale != nil && cfg.EnableOfflineSupport {
			env, derr := stale.Value()
			if derr == nil {
				c.logger.Warn().
					Str("key", key).
					Str("url", d.URL).
					Err(err).
					Msg("fetch failed, serving stale entry")
				offlineFallbacks.Inc()
				return responseFrom(env, key, true), nil
			}
			c.logger.Warn().Str("key", key).Err(derr).Msg("stale entry unreadable, surfacing fetch error")
		}
		return nil, err
	}

	// A 304 can only appear here when the caller sent its own
	// conditional headers; the stale entry it validates is current
	// again.
	if result.Status == http.StatusNotModified {
		if stale == nil {
			return nil, &TransportError{
				Method:     d.Method,
				URL:        d.URL,
				StatusCode: result.Status,
				Class:      ErrorClassClient,
				Message:    "not modified without a cached entry",
			}
		}
		c.store.Touch(key)
		env, derr := stale.Value()
		if derr != nil {
			return nil, fmt.Errorf("read cached response %q: %w", key, derr)
		}
		return responseFrom(env, key, true), nil
	}

	env, err := decodePayload[V](result)
	if err != nil {
		return nil, err
	}
	if err := c.store.SetWith(key, env, cfg); err != nil {
		// The response is still usable, only the store write failed.
		c.logger.Warn().Str("key", key).Err(err).Msg("failed to cache response")
	}
	return &Response[V]{
		Data:      env.Data,
		Status:    result.Status,
		Headers:   result.Headers,
		Timestamp: time.Now(),
		FromCache: false,
		CacheKey:  key,
	}, nil
}

// fetch performs the upstream request outside any store lock, bounded
// by FetchTimeout and the retry policy.
func (c *Client[V]) fetch(ctx context.Context, d Descriptor) (*FetchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.FetchTimeout)
	defer cancel()

	f, err := buildFetch(d)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		upstreamDuration.Observe(time.Since(start).Seconds())
	}()

	var result *FetchResult
	err = retryWithBackoff(ctx, c.config.Retry, c.logger, func() error {
		var perr error
		result, perr = c.transport.Perform(ctx, f)
		return perr
	})
	if err != nil {
		upstreamRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	upstreamRequests.WithLabelValues("success").Inc()
	return result, nil
}

// buildFetch resolves a descriptor into a transport request, appending
// Params to the URL's query.
func buildFetch(d Descriptor) (Fetch, error) {
	u, err := url.Parse(d.URL)
	if err != nil {
		return Fetch{}, &TransportError{
			Method: d.Method,
			URL:    d.URL,
			Class:  ErrorClassClient,
			Err:    err,
		}
	}
	if len(d.Params) > 0 {
		q := u.Query()
		for k, v := range d.Params {
			q.Set(k, fmt.Sprint(v))
		}
		u.RawQuery = q.Encode()
	}

	method := d.Method
	if method == "" {
		method = http.MethodGet
	}

	return Fetch{
		URL:     u.String(),
		Method:  method,
		Headers: d.Headers,
		Body:    d.Body,
	}, nil
}

func decodePayload[V any](result *FetchResult) (Cached[V], error) {
	var v V
	if len(result.Data) > 0 {
		if err := json.Unmarshal(result.Data, &v); err != nil {
			return Cached[V]{}, fmt.Errorf("decode upstream response: %w", err)
		}
	}
	return Cached[V]{
		Data:    v,
		Status:  result.Status,
		Headers: result.Headers,
		ETag:    result.Header("ETag"),
	}, nil
}

func responseFrom[V any](env Cached[V], key string, fromCache bool) *Response[V] {
	return &Response[V]{
		Data:      env.Data,
		Status:    env.Status,
		Headers:   env.Headers,
		Timestamp: time.Now(),
		FromCache: fromCache,
		CacheKey:  key,
	}
}

// Get returns the entry for key regardless of freshness.
func (c *Client[V]) Get(key string) (*cache.Entry[Cached[V]], bool) {
	return c.store.Get(key)
}

// Set stores value under key as a synthetic successful response.
func (c *Client[V]) Set(key string, value V) error {
	return c.store.Set(key, Cached[V]{Data: value, Status: http.StatusOK})
}

// SetWith stores value under key with a per-call configuration patch.
func (c *Client[V]) SetWith(key string, value V, p cache.Patch) error {
	cfg := p.Apply(c.store.Config())
	if err := cfg.Validate(); err != nil {
		return err
	}
	return c.store.SetWith(key, Cached[V]{Data: value, Status: http.StatusOK}, cfg)
}

// Delete removes the entry for key, reporting whether it existed.
func (c *Client[V]) Delete(key string) bool {
	return c.store.Delete(key)
}

// Clear removes every entry, keeping the traffic counters.
func (c *Client[V]) Clear() {
	c.store.Clear()
}

// Invalidate removes entries matching the pattern, returning the
// count.
func (c *Client[V]) Invalidate(pattern string, typ cache.MatchType) (int, error) {
	return c.store.Invalidate(pattern, typ)
}

// AddPattern registers an invalidation pattern.
func (c *Client[V]) AddPattern(p cache.Pattern) error {
	return c.store.AddPattern(p)
}

// RemovePattern drops a registered invalidation pattern.
func (c *Client[V]) RemovePattern(pattern string) bool {
	return c.store.RemovePattern(pattern)
}

// RegisterTrigger binds an event name to invalidation patterns.
func (c *Client[V]) RegisterTrigger(event string, patterns ...cache.Pattern) error {
	return c.store.RegisterTrigger(event, patterns...)
}

// UnregisterTrigger removes an event binding.
func (c *Client[V]) UnregisterTrigger(event string) bool {
	return c.store.UnregisterTrigger(event)
}

// FireTrigger applies the patterns bound to event.
func (c *Client[V]) FireTrigger(event string) (int, error) {
	return c.store.FireTrigger(event)
}

// Stats returns the store's statistics snapshot.
func (c *Client[V]) Stats() cache.Stats {
	return c.store.Stats()
}

// Config returns the current cache configuration.
func (c *Client[V]) Config() cache.Config {
	return c.store.Config()
}

// UpdateConfig applies a partial cache configuration change.
func (c *Client[V]) UpdateConfig(p cache.Patch) error {
	return c.store.Update(p)
}

// Store exposes the underlying entry store.
func (c *Client[V]) Store() *cache.Store[Cached[V]] {
	return c.store
}

// Close stops the background tasks and waits for them, including any
// in-flight preload. Safe to call more than once.
func (c *Client[V]) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		c.bg.Wait()
		c.logger.Info().Msg("response cache stopped")
	})
	return nil
}

// sweepLoop periodically purges entries past TTL plus SweepGrace.
func (c *Client[V]) sweepLoop() {
	defer c.bg.Done()

	ticker := time.NewTicker(c.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.store.Sweep()
		}
	}
}

// cloneHeaders copies a header map before a mutation.
func cloneHeaders(h map[string]string) map[string]string {
	if h == nil {
		return make(map[string]string, 1)
	}
	return maps.Clone(h)
}
