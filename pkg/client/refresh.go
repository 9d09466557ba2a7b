package client

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// refreshItem is one scheduled refresh. The ETag captured at hit time
// lets the refresh revalidate instead of re-downloading.
type refreshItem struct {
	desc Descriptor
	etag string
}

// refreshQueue deduplicates scheduled refreshes by cache key until the
// next drain.
type refreshQueue struct {
	mu      sync.Mutex
	pending map[string]refreshItem
}

func newRefreshQueue() *refreshQueue {
	return &refreshQueue{pending: make(map[string]refreshItem)}
}

// enqueue records a refresh for key, reporting whether it was new.
func (q *refreshQueue) enqueue(key string, it refreshItem) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.pending[key]; ok {
		return false
	}
	q.pending[key] = it
	return true
}

// drain hands out the pending refreshes and resets the queue.
func (q *refreshQueue) drain() map[string]refreshItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.pending
	q.pending = make(map[string]refreshItem)
	return out
}

func (q *refreshQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// scheduleRefresh queues a background refresh for an aging entry.
func (c *Client[V]) scheduleRefresh(key string, d Descriptor, etag string) {
	if c.refreshq.enqueue(key, refreshItem{desc: d, etag: etag}) {
		c.logger.Debug().Str("key", key).Msg("scheduled background refresh")
	}
}

// refreshLoop drains the refresh queue at the configured interval.
func (c *Client[V]) refreshLoop() {
	defer c.bg.Done()

	ticker := time.NewTicker(c.config.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.drainRefreshQueue()
		}
	}
}

// drainRefreshQueue refreshes every queued entry with bounded
// concurrency. Failures keep the stale entry in place.
func (c *Client[V]) drainRefreshQueue() {
	items := c.refreshq.drain()
	if len(items) == 0 {
		return
	}

	g, _ := errgroup.WithContext(c.ctx)
	g.SetLimit(c.config.MaxConcurrency)
	for key, it := range items {
		g.Go(func() error {
			c.refreshOne(key, it)
			return nil
		})
	}
	g.Wait()

	c.logger.Debug().Int("count", len(items)).Msg("refresh queue drained")
}

// refreshOne revalidates or refetches a single entry.
func (c *Client[V]) refreshOne(key string, it refreshItem) {
	d := it.desc
	if it.etag != "" {
		headers := cloneHeaders(d.Headers)
		headers["If-None-Match"] = it.etag
		d.Headers = headers
	}

	result, err := c.fetch(c.ctx, d)
	if err != nil {
		refreshes.WithLabelValues("failed").Inc()
		c.logger.Warn().
			Str("key", key).
			Str("url", d.URL).
			Err(err).
			Msg("background refresh failed, keeping stale entry")
		return
	}

	if result.Status == http.StatusNotModified {
		c.store.Touch(key)
		refreshes.WithLabelValues("unchanged").Inc()
		c.logger.Debug().Str("key", key).Msg("entry revalidated")
		return
	}

	env, err := decodePayload[V](result)
	if err != nil {
		refreshes.WithLabelValues("failed").Inc()
		c.logger.Warn().Str("key", key).Err(err).Msg("background refresh failed, keeping stale entry")
		return
	}

	cfg := it.desc.Config.Apply(c.store.Config())
	if err := c.store.SetWith(key, env, cfg); err != nil {
		refreshes.WithLabelValues("failed").Inc()
		c.logger.Warn().Str("key", key).Err(err).Msg("failed to store refreshed entry")
		return
	}
	refreshes.WithLabelValues("refreshed").Inc()
	c.logger.Debug().Str("key", key).Msg("entry refreshed")
}
