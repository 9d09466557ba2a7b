// Command cache-proxy exposes the response cache as a small HTTP
// service: dashboard backends point it at their upstream APIs and get
// cached, revalidated responses plus management endpoints for stats,
// invalidation, configuration and warmup.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/framesight/respcache/pkg/cache"
	"github.com/framesight/respcache/pkg/client"
	"github.com/framesight/respcache/pkg/logging"
	"github.com/framesight/respcache/pkg/metrics"
)

// ProxyConfig is the environment configuration of the proxy.
type ProxyConfig struct {
	Port            int           `env:"PORT" envDefault:"8080"`
	UpstreamBaseURL string        `env:"UPSTREAM_BASE_URL"`
	UserAgent       string        `env:"USER_AGENT" envDefault:"respcache-proxy/0.1.0"`
	CacheTTL        time.Duration `env:"CACHE_TTL" envDefault:"5m"`
	CacheMaxSize    int           `env:"CACHE_MAX_SIZE" envDefault:"1000"`
	CacheStrategy   string        `env:"CACHE_STRATEGY" envDefault:"lru"`
	SweepGrace      time.Duration `env:"SWEEP_GRACE" envDefault:"0"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty       bool          `env:"LOG_PRETTY" envDefault:"false"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

func main() {
	var cfg ProxyConfig
	if err := env.Parse(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "invalid environment: %v\n", err)
		os.Exit(1)
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.LogLevel(cfg.LogLevel)
	logCfg.Pretty = cfg.LogPretty
	logging.Setup(logCfg)
	logger := logging.NewLogger("proxy")

	var base *url.URL
	if cfg.UpstreamBaseURL != "" {
		u, err := url.Parse(cfg.UpstreamBaseURL)
		if err != nil || u.Host == "" {
			logger.Fatal().Str("url", cfg.UpstreamBaseURL).Msg("invalid UPSTREAM_BASE_URL")
		}
		base = u
	}

	engineCfg := client.DefaultConfig()
	engineCfg.Cache.TTL = cfg.CacheTTL
	engineCfg.Cache.MaxSize = cfg.CacheMaxSize
	engineCfg.Cache.Strategy = cache.Strategy(cfg.CacheStrategy)
	engineCfg.Cache.SweepGrace = cfg.SweepGrace
	engineCfg.Transport = client.NewHTTPTransport(nil, cfg.UserAgent)

	engine, err := client.New[json.RawMessage](engineCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create cache engine")
	}
	defer engine.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           newRouter(engine, base, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("cache proxy listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown incomplete")
	}
}

// engineAPI is the slice of the cache engine the handlers need.
type engineAPI = client.Client[json.RawMessage]

func newRouter(engine *engineAPI, base *url.URL, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Get("/healthz", healthHandler)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/proxy", proxyHandler(engine, base))
		r.Get("/stats", statsHandler(engine))
		r.Post("/invalidate", invalidateHandler(engine))
		r.Get("/config", getConfigHandler(engine))
		r.Patch("/config", patchConfigHandler(engine))
		r.Post("/warmup", warmupHandler(engine))
	})

	return r
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("request handled")
		})
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

func proxyHandler(engine *engineAPI, base *url.URL) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target := r.URL.Query().Get("url")
		if target == "" {
			writeError(w, http.StatusBadRequest, "missing url parameter")
			return
		}

		u, err := url.Parse(target)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			writeError(w, http.StatusBadRequest, "url must be absolute http or https")
			return
		}
		if base != nil && (u.Scheme != base.Scheme || u.Host != base.Host) {
			writeError(w, http.StatusForbidden, "url outside the configured upstream")
			return
		}

		resp, err := engine.Request(r.Context(), client.Descriptor{URL: target})
		if err != nil {
			writeEngineError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if resp.FromCache {
			w.Header().Set("X-Cache", "HIT")
		} else {
			w.Header().Set("X-Cache", "MISS")
		}
		w.Header().Set("X-Cache-Key", resp.CacheKey)
		w.WriteHeader(resp.Status)
		w.Write(resp.Data)
	}
}

func statsHandler(engine *engineAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, engine.Stats())
	}
}

type invalidateRequest struct {
	Pattern string `json:"pattern"`
	Type    string `json:"type"`
}

func invalidateHandler(engine *engineAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req invalidateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.Pattern == "" {
			writeError(w, http.StatusBadRequest, "missing pattern")
			return
		}
		if req.Type == "" {
			req.Type = string(cache.MatchExact)
		}

		removed, err := engine.Invalidate(req.Pattern, cache.MatchType(req.Type))
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
	}
}

// configPayload mirrors cache.Config with durations as strings, both
// for responses and partial updates.
type configPayload struct {
	TTL                     *string `json:"ttl,omitempty"`
	MaxSize                 *int    `json:"maxSize,omitempty"`
	Strategy                *string `json:"strategy,omitempty"`
	InvalidationPolicy      *string `json:"invalidationPolicy,omitempty"`
	SweepGrace              *string `json:"sweepGrace,omitempty"`
	EnableOfflineSupport    *bool   `json:"enableOfflineSupport,omitempty"`
	EnableBackgroundRefresh *bool   `json:"enableBackgroundRefresh,omitempty"`
	EnableCompression       *bool   `json:"enableCompression,omitempty"`
}

func configToPayload(cfg cache.Config) configPayload {
	ttl := cfg.TTL.String()
	grace := cfg.SweepGrace.String()
	strategy := string(cfg.Strategy)
	policy := string(cfg.InvalidationPolicy)
	return configPayload{
		TTL:                     &ttl,
		MaxSize:                 &cfg.MaxSize,
		Strategy:                &strategy,
		InvalidationPolicy:      &policy,
		SweepGrace:              &grace,
		EnableOfflineSupport:    &cfg.EnableOfflineSupport,
		EnableBackgroundRefresh: &cfg.EnableBackgroundRefresh,
		EnableCompression:       &cfg.EnableCompression,
	}
}

func (p configPayload) toPatch() (cache.Patch, error) {
	var patch cache.Patch
	if p.TTL != nil {
		d, err := time.ParseDuration(*p.TTL)
		if err != nil {
			return patch, fmt.Errorf("invalid ttl %q", *p.TTL)
		}
		patch.TTL = &d
	}
	if p.SweepGrace != nil {
		d, err := time.ParseDuration(*p.SweepGrace)
		if err != nil {
			return patch, fmt.Errorf("invalid sweepGrace %q", *p.SweepGrace)
		}
		patch.SweepGrace = &d
	}
	if p.MaxSize != nil {
		patch.MaxSize = p.MaxSize
	}
	if p.Strategy != nil {
		s := cache.Strategy(*p.Strategy)
		patch.Strategy = &s
	}
	if p.InvalidationPolicy != nil {
		pol := cache.InvalidationPolicy(*p.InvalidationPolicy)
		patch.InvalidationPolicy = &pol
	}
	patch.EnableOfflineSupport = p.EnableOfflineSupport
	patch.EnableBackgroundRefresh = p.EnableBackgroundRefresh
	patch.EnableCompression = p.EnableCompression
	return patch, nil
}

func getConfigHandler(engine *engineAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, configToPayload(engine.Config()))
	}
}

func patchConfigHandler(engine *engineAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload configPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		patch, err := payload.toPatch()
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := engine.UpdateConfig(patch); err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, configToPayload(engine.Config()))
	}
}

type warmupPayload struct {
	Requests []struct {
		URL      string `json:"url"`
		Method   string `json:"method"`
		Priority string `json:"priority"`
	} `json:"requests"`
}

func warmupHandler(engine *engineAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload warmupPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if len(payload.Requests) == 0 {
			writeError(w, http.StatusBadRequest, "no warmup requests")
			return
		}

		reqs := make([]client.WarmupRequest, 0, len(payload.Requests))
		for _, pr := range payload.Requests {
			if pr.URL == "" {
				writeError(w, http.StatusBadRequest, "warmup request without url")
				return
			}
			reqs = append(reqs, client.WarmupRequest{
				Descriptor: client.Descriptor{URL: pr.URL, Method: pr.Method},
				Priority:   parsePriority(pr.Priority),
			})
		}

		result, err := engine.Warmup(r.Context(), reqs)
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"warmed":   result.Warmed,
			"failed":   result.Failed,
			"duration": result.Duration.String(),
		})
	}
}

func parsePriority(s string) client.Priority {
	switch strings.ToLower(s) {
	case "critical":
		return client.PriorityCritical
	case "high":
		return client.PriorityHigh
	case "low":
		return client.PriorityLow
	default:
		return client.PriorityMedium
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeEngineError maps engine errors onto HTTP statuses: bad input is
// the caller's fault, upstream failures surface as a bad gateway.
func writeEngineError(w http.ResponseWriter, err error) {
	var cfgErr *cache.ConfigError
	var patternErr *cache.PatternError
	var transportErr *client.TransportError

	switch {
	case errors.As(err, &cfgErr), errors.As(err, &patternErr):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &transportErr):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
