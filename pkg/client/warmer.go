package client

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/framesight/respcache/pkg/logging"
)

// WarmTask is a registered warm target refetched on every warmer
// cycle.
type WarmTask struct {
	ID         string
	Name       string
	Descriptor Descriptor
	Priority   Priority
}

// WarmerStats summarizes the warmer's activity.
type WarmerStats struct {
	Tasks   int       `json:"tasks"`
	Cycles  uint64    `json:"cycles"`
	Warmed  uint64    `json:"warmed"`
	Failed  uint64    `json:"failed"`
	LastRun time.Time `json:"lastRun"`
}

// Warmer keeps a set of registered descriptors warm by rerunning them
// through the client on a fixed interval. Tasks can be registered and
// removed while the warmer runs.
type Warmer[V any] struct {
	client   *Client[V]
	interval time.Duration
	logger   zerolog.Logger

	mu    sync.Mutex
	tasks map[string]WarmTask
	stats WarmerStats

	cancel context.CancelFunc
	done   chan struct{}
}

// NewWarmer creates a warmer bound to client. A non-positive interval
// selects the client's WarmInterval.
func NewWarmer[V any](client *Client[V], interval time.Duration) *Warmer[V] {
	if interval <= 0 {
		interval = client.config.WarmInterval
	}
	return &Warmer[V]{
		client:   client,
		interval: interval,
		logger:   logging.NewLogger("warmer"),
		tasks:    make(map[string]WarmTask),
	}
}

// Register adds a warm target and returns its generated task ID.
func (w *Warmer[V]) Register(name string, d Descriptor, p Priority) string {
	id := uuid.NewString()
	w.mu.Lock()
	w.tasks[id] = WarmTask{ID: id, Name: name, Descriptor: d, Priority: p}
	w.mu.Unlock()

	w.logger.Debug().Str("task_id", id).Str("name", name).Msg("warm task registered")
	return id
}

// Unregister removes a warm task, reporting whether it existed.
func (w *Warmer[V]) Unregister(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.tasks[id]; !ok {
		return false
	}
	delete(w.tasks, id)
	return true
}

// Tasks returns the registered warm tasks.
func (w *Warmer[V]) Tasks() []WarmTask {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]WarmTask, 0, len(w.tasks))
	for _, t := range w.tasks {
		out = append(out, t)
	}
	return out
}

// Stats returns a snapshot of the warmer's counters.
func (w *Warmer[V]) Stats() WarmerStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := w.stats
	s.Tasks = len(w.tasks)
	return s
}

// Start launches the warm loop. Starting a running warmer is a no-op.
func (w *Warmer[V]) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.loop(ctx, w.done)

	w.logger.Info().Dur("interval", w.interval).Msg("cache warmer started")
}

// Stop halts the warm loop and waits for the current cycle to finish.
// Safe to call on a stopped warmer.
func (w *Warmer[V]) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	w.logger.Info().Msg("cache warmer stopped")
}

func (w *Warmer[V]) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.WarmNow(ctx); err != nil {
				w.logger.Warn().Err(err).Msg("warm cycle interrupted")
			}
		}
	}
}

// WarmNow runs one warm cycle over the registered tasks immediately.
func (w *Warmer[V]) WarmNow(ctx context.Context) (*WarmupResult, error) {
	w.mu.Lock()
	reqs := make([]WarmupRequest, 0, len(w.tasks))
	for _, t := range w.tasks {
		reqs = append(reqs, WarmupRequest{Descriptor: t.Descriptor, Priority: t.Priority})
	}
	w.mu.Unlock()

	result, err := w.client.Warmup(ctx, reqs)

	w.mu.Lock()
	w.stats.Cycles++
	w.stats.Warmed += uint64(result.Warmed)
	w.stats.Failed += uint64(result.Failed)
	w.stats.LastRun = time.Now()
	w.mu.Unlock()

	return result, err
}
