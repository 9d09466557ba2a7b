package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func fastRetryConfig(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:       attempts,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestRetrySucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := retryWithBackoff(context.Background(), fastRetryConfig(3), zerolog.Nop(), func() error {
		calls++
		return nil
	})

	if err != nil {
		t.Fatalf("retryWithBackoff() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryRecoversAfterServerError(t *testing.T) {
	calls := 0
	err := retryWithBackoff(context.Background(), fastRetryConfig(3), zerolog.Nop(), func() error {
		calls++
		if calls < 3 {
			return &TransportError{Class: ErrorClassServer, StatusCode: 503}
		}
		return nil
	})

	if err != nil {
		t.Fatalf("retryWithBackoff() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetrySkipsClientErrors(t *testing.T) {
	calls := 0
	err := retryWithBackoff(context.Background(), fastRetryConfig(3), zerolog.Nop(), func() error {
		calls++
		return &TransportError{Class: ErrorClassClient, StatusCode: 404}
	})

	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (client errors repeat deterministically)", calls)
	}
}

func TestRetrySkipsUntypedErrors(t *testing.T) {
	sentinel := errors.New("decode failure")
	calls := 0
	err := retryWithBackoff(context.Background(), fastRetryConfig(3), zerolog.Nop(), func() error {
		calls++
		return sentinel
	})

	if !errors.Is(err, sentinel) {
		t.Errorf("error = %v, want %v", err, sentinel)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryExhaustionKeepsTypedError(t *testing.T) {
	calls := 0
	err := retryWithBackoff(context.Background(), fastRetryConfig(2), zerolog.Nop(), func() error {
		calls++
		return &TransportError{Class: ErrorClassServer, StatusCode: 502, Message: "bad gateway"}
	})

	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}

	// The caller still needs the typed failure for offline fallback.
	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("error = %T, want *TransportError", err)
	}
	if terr.StatusCode != 502 {
		t.Errorf("StatusCode = %d, want 502", terr.StatusCode)
	}
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	cfg := RetryConfig{
		MaxAttempts:       5,
		InitialBackoff:    time.Hour,
		MaxBackoff:        time.Hour,
		BackoffMultiplier: 1.0,
	}

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- retryWithBackoff(ctx, cfg, zerolog.Nop(), func() error {
			calls++
			return &TransportError{Class: ErrorClassNetwork}
		})
	}()

	// Let the first attempt fail, then cancel during the backoff wait.
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		var terr *TransportError
		if !errors.As(err, &terr) {
			t.Fatalf("error = %T, want *TransportError", err)
		}
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("retryWithBackoff did not return after cancellation")
	}
}

func TestRetryZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	err := retryWithBackoff(context.Background(), RetryConfig{}, zerolog.Nop(), func() error {
		calls++
		return nil
	})

	if err != nil {
		t.Fatalf("retryWithBackoff() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()

	if cfg.MaxAttempts < 1 {
		t.Errorf("MaxAttempts = %d, should be at least 1", cfg.MaxAttempts)
	}
	if cfg.InitialBackoff <= 0 {
		t.Errorf("InitialBackoff = %v, should be positive", cfg.InitialBackoff)
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		t.Errorf("MaxBackoff = %v, should be at least InitialBackoff", cfg.MaxBackoff)
	}
	if cfg.BackoffMultiplier < 1 {
		t.Errorf("BackoffMultiplier = %v, should be at least 1", cfg.BackoffMultiplier)
	}
}
