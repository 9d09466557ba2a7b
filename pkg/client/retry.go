package client

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
)

// RetryConfig holds the configuration for fetch retry logic.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the
	// initial fetch). 1 disables retries.
	MaxAttempts int

	// InitialBackoff is the initial backoff duration.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration. The
// backoff is kept short; a fetch that keeps failing should fall back
// to a stale entry quickly rather than stall the caller.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       2,
		InitialBackoff:    200 * time.Millisecond,
		MaxBackoff:        2 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// retryWithBackoff executes fn with exponential backoff, retrying only
// failures whose error class is retriable. It respects context
// cancellation and adds jitter to prevent thundering herd. The last
// error is returned unwrapped so callers see the typed failure.
func retryWithBackoff(ctx context.Context, cfg RetryConfig, logger zerolog.Logger, fn func() error) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	backoff := cfg.InitialBackoff

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				logger.Debug().
					Int("attempt", attempt).
					Msg("fetch succeeded after retry")
			}
			return nil
		}
		lastErr = err

		var terr *TransportError
		if !errors.As(err, &terr) || !shouldRetry(terr.Class) {
			return lastErr
		}

		if attempt >= cfg.MaxAttempts {
			break
		}

		fetchRetries.WithLabelValues(string(terr.Class)).Inc()

		// Jitter of ±20% around the current backoff
		jitter := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))

		logger.Debug().
			Str("error_class", string(terr.Class)).
			Int("attempt", attempt).
			Dur("backoff", jitter).
			Msg("retrying fetch after backoff")

		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(jitter):
		}

		backoff = time.Duration(float64(backoff) * cfg.BackoffMultiplier)
		if backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}

	return lastErr
}
