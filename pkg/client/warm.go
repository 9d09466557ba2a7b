package client

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Priority orders warmup requests; higher priorities are fetched
// first.
type Priority int

const (
	PriorityLow Priority = iota + 1
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	case PriorityLow:
		return "low"
	default:
		return "unknown"
	}
}

// WarmupRequest is one prioritized entry of a warmup plan.
type WarmupRequest struct {
	Descriptor Descriptor
	Priority   Priority
}

// WarmupResult summarizes a warmup run.
type WarmupResult struct {
	Warmed   int
	Failed   int
	Duration time.Duration
}

// Preload fetches the descriptors in the background without blocking
// the caller. Failures are logged and dropped; preloading is best
// effort. The work stops when the client is closed.
func (c *Client[V]) Preload(descriptors []Descriptor) {
	if len(descriptors) == 0 {
		return
	}
	descs := make([]Descriptor, len(descriptors))
	copy(descs, descriptors)

	c.bg.Add(1)
	go func() {
		defer c.bg.Done()

		g, ctx := errgroup.WithContext(c.ctx)
		g.SetLimit(c.config.MaxConcurrency)
		for _, d := range descs {
			g.Go(func() error {
				if _, err := c.Request(ctx, d); err != nil {
					c.logger.Debug().Str("url", d.URL).Err(err).Msg("preload fetch failed")
				}
				return nil
			})
		}
		g.Wait()
		c.logger.Debug().Int("count", len(descs)).Msg("preload finished")
	}()
}

// Warmup fetches the requests in priority order, highest first, in
// batches of WarmupBatchSize separated by WarmupDelay. It blocks until
// every batch completed or ctx was cancelled; on cancellation it
// returns the partial result together with the context error.
func (c *Client[V]) Warmup(ctx context.Context, requests []WarmupRequest) (*WarmupResult, error) {
	start := time.Now()
	result := &WarmupResult{}
	if len(requests) == 0 {
		result.Duration = time.Since(start)
		return result, nil
	}

	reqs := make([]WarmupRequest, len(requests))
	copy(reqs, requests)
	sort.SliceStable(reqs, func(i, j int) bool {
		return reqs[i].Priority > reqs[j].Priority
	})

	var warmed, failed atomic.Int64
	batchSize := c.config.WarmupBatchSize

	for offset := 0; offset < len(reqs); offset += batchSize {
		if offset > 0 {
			select {
			case <-ctx.Done():
				result.Warmed = int(warmed.Load())
				result.Failed = int(failed.Load())
				result.Duration = time.Since(start)
				return result, ctx.Err()
			case <-time.After(c.config.WarmupDelay):
			}
		}

		batch := reqs[offset:min(offset+batchSize, len(reqs))]
		g, gctx := errgroup.WithContext(ctx)
		for _, r := range batch {
			g.Go(func() error {
				if _, err := c.Request(gctx, r.Descriptor); err != nil {
					failed.Add(1)
					warmupRequests.WithLabelValues("failed").Inc()
					c.logger.Debug().
						Str("url", r.Descriptor.URL).
						Str("priority", r.Priority.String()).
						Err(err).
						Msg("warmup fetch failed")
					return nil
				}
				warmed.Add(1)
				warmupRequests.WithLabelValues("warmed").Inc()
				return nil
			})
		}
		g.Wait()
	}

	result.Warmed = int(warmed.Load())
	result.Failed = int(failed.Load())
	result.Duration = time.Since(start)
	c.logger.Info().
		Int("warmed", result.Warmed).
		Int("failed", result.Failed).
		Dur("duration", result.Duration).
		Msg("cache warmup finished")
	return result, nil
}
