package cache

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() error = %v", err)
	}
	if cfg.TTL != DefaultTTL {
		t.Errorf("TTL = %v, want %v", cfg.TTL, DefaultTTL)
	}
	if cfg.MaxSize != DefaultMaxSize {
		t.Errorf("MaxSize = %d, want %d", cfg.MaxSize, DefaultMaxSize)
	}
	if cfg.Strategy != StrategyLRU {
		t.Errorf("Strategy = %q, want %q", cfg.Strategy, StrategyLRU)
	}
}

func TestConfigValidate(t *testing.T) {
	base := DefaultConfig()

	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{
			name:      "zero_ttl",
			mutate:    func(c *Config) { c.TTL = 0 },
			wantField: "ttl",
		},
		{
			name:      "negative_ttl",
			mutate:    func(c *Config) { c.TTL = -time.Second },
			wantField: "ttl",
		},
		{
			name:      "negative_max_size",
			mutate:    func(c *Config) { c.MaxSize = -5 },
			wantField: "maxSize",
		},
		{
			name:      "negative_sweep_grace",
			mutate:    func(c *Config) { c.SweepGrace = -time.Second },
			wantField: "sweepGrace",
		},
		{
			name:      "unknown_strategy",
			mutate:    func(c *Config) { c.Strategy = "mru" },
			wantField: "strategy",
		},
		{
			name:      "unknown_policy",
			mutate:    func(c *Config) { c.InvalidationPolicy = "eventually" },
			wantField: "invalidationPolicy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}

			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Expected *ConfigError, got %T", err)
			}
			if cfgErr.Field != tt.wantField {
				t.Errorf("ConfigError.Field = %q, want %q", cfgErr.Field, tt.wantField)
			}
		})
	}
}

func TestConfigValidateAcceptsZeroMaxSize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSize = 0

	// Zero is a legal capacity bound; the store still accepts inserts
	// by evicting first.
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v for MaxSize 0", err)
	}
}

func TestPatchApply(t *testing.T) {
	base := DefaultConfig()

	ttl := time.Minute
	maxSize := 10
	offline := false
	patched := (&Patch{
		TTL:                  &ttl,
		MaxSize:              &maxSize,
		EnableOfflineSupport: &offline,
	}).Apply(base)

	if patched.TTL != time.Minute {
		t.Errorf("TTL = %v, want %v", patched.TTL, time.Minute)
	}
	if patched.MaxSize != 10 {
		t.Errorf("MaxSize = %d, want 10", patched.MaxSize)
	}
	if patched.EnableOfflineSupport {
		t.Error("EnableOfflineSupport = true, want false")
	}
	// Nil fields stay untouched
	if patched.Strategy != base.Strategy {
		t.Errorf("Strategy = %q, want %q", patched.Strategy, base.Strategy)
	}
	if patched.EnableCompression != base.EnableCompression {
		t.Error("EnableCompression changed by a patch that did not set it")
	}
}

func TestNilPatchApply(t *testing.T) {
	base := DefaultConfig()

	var p *Patch
	if got := p.Apply(base); got != base {
		t.Errorf("nil Patch changed the config: %+v", got)
	}
}
