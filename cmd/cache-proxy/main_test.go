package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/framesight/respcache/internal/testutil"
	"github.com/framesight/respcache/pkg/cache"
	"github.com/framesight/respcache/pkg/client"
)

func newTestEngine(t *testing.T) *engineAPI {
	t.Helper()

	cfg := client.DefaultConfig()
	cfg.RefreshInterval = time.Hour
	cfg.SweepInterval = time.Hour

	engine, err := client.New[json.RawMessage](cfg)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	t.Cleanup(func() { engine.Close() })
	return engine
}

func newTestRouter(t *testing.T) (http.Handler, *testutil.MockOrigin) {
	t.Helper()

	origin := testutil.NewMockOrigin()
	t.Cleanup(origin.Close)

	router := newRouter(newTestEngine(t), nil, zerolog.Nop())
	return router, origin
}

func TestHealthEndpoint(t *testing.T) {
	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()

	healthHandler(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if string(body) != "OK" {
		t.Errorf("Expected body 'OK', got %s", string(body))
	}
}

func TestProxyEndpoint(t *testing.T) {
	router, origin := newTestRouter(t)
	origin.SetClipAnalysisResponse("c1", testutil.NewJSONResponse(`{"clipId":"c1","score":0.93}`))

	target := origin.URL() + "/v1/clips/c1/analysis"

	get := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", "/v1/proxy?url="+target, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	w := get()
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Header().Get("X-Cache"); got != "MISS" {
		t.Errorf("X-Cache = %q, want MISS", got)
	}
	if !strings.Contains(w.Body.String(), `"clipId":"c1"`) {
		t.Errorf("body = %q", w.Body.String())
	}

	w = get()
	if got := w.Header().Get("X-Cache"); got != "HIT" {
		t.Errorf("X-Cache = %q, want HIT", got)
	}
	if w.Header().Get("X-Cache-Key") == "" {
		t.Error("X-Cache-Key header missing")
	}
	if origin.GetRequestCount() != 1 {
		t.Errorf("origin requests = %d, want 1", origin.GetRequestCount())
	}
}

func TestProxyEndpointValidation(t *testing.T) {
	router, _ := newTestRouter(t)

	tests := []struct {
		name   string
		target string
		status int
	}{
		{"missing url", "/v1/proxy", http.StatusBadRequest},
		{"relative url", "/v1/proxy?url=/v1/clips", http.StatusBadRequest},
		{"bad scheme", "/v1/proxy?url=ftp://origin/x", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.target, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
		})
	}
}

func TestProxyEndpointUpstreamGuard(t *testing.T) {
	origin := testutil.NewMockOrigin()
	t.Cleanup(origin.Close)

	base, _ := url.Parse(origin.URL())
	router := newRouter(newTestEngine(t), base, zerolog.Nop())

	req := httptest.NewRequest("GET", "/v1/proxy?url=http://elsewhere.example/v1/clips", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestProxyEndpointUpstreamFailure(t *testing.T) {
	router, origin := newTestRouter(t)
	origin.SetResponse("/v1/broken", testutil.NewServerErrorResponse())

	req := httptest.NewRequest("GET", "/v1/proxy?url="+origin.URL()+"/v1/broken", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}
	if !strings.Contains(w.Body.String(), "error") {
		t.Errorf("body = %q, want an error payload", w.Body.String())
	}
}

func TestStatsEndpoint(t *testing.T) {
	router, origin := newTestRouter(t)

	req := httptest.NewRequest("GET", "/v1/proxy?url="+origin.URL()+"/v1/feeds/recent", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/v1/stats", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var stats cache.Stats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("stats did not decode: %v", err)
	}
	if stats.Misses != 1 {
		t.Errorf("Misses = %d, want 1", stats.Misses)
	}
	if stats.Size != 1 {
		t.Errorf("Size = %d, want 1", stats.Size)
	}
}

func TestInvalidateEndpoint(t *testing.T) {
	router, origin := newTestRouter(t)

	req := httptest.NewRequest("GET", "/v1/proxy?url="+origin.URL()+"/v1/feeds/recent", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	body := strings.NewReader(`{"pattern":"rc:","type":"prefix"}`)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/v1/invalidate", body))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var result map[string]int
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("result did not decode: %v", err)
	}
	if result["removed"] != 1 {
		t.Errorf("removed = %d, want 1", result["removed"])
	}
}

func TestInvalidateEndpointRejectsBadInput(t *testing.T) {
	router, _ := newTestRouter(t)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"missing pattern", `{"type":"prefix"}`},
		{"bad regex", `{"pattern":"[unclosed","type":"regex"}`},
		{"unknown type", `{"pattern":"x","type":"fuzzy"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest("POST", "/v1/invalidate", strings.NewReader(tt.body)))

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestConfigEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/v1/config", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET status = %d, want 200", w.Code)
	}
	var payload configPayload
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("config did not decode: %v", err)
	}
	if payload.TTL == nil || *payload.TTL != "5m0s" {
		t.Errorf("ttl = %v, want 5m0s", payload.TTL)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("PATCH", "/v1/config",
		strings.NewReader(`{"ttl":"30s","strategy":"lfu"}`)))
	if w.Code != http.StatusOK {
		t.Fatalf("PATCH status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("updated config did not decode: %v", err)
	}
	if *payload.TTL != "30s" {
		t.Errorf("ttl = %q, want 30s", *payload.TTL)
	}
	if *payload.Strategy != "lfu" {
		t.Errorf("strategy = %q, want lfu", *payload.Strategy)
	}
}

func TestConfigPatchRejectsBadInput(t *testing.T) {
	router, _ := newTestRouter(t)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"unparseable duration", `{"ttl":"soon"}`},
		{"negative ttl", `{"ttl":"-5m"}`},
		{"unknown strategy", `{"strategy":"random"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest("PATCH", "/v1/config", strings.NewReader(tt.body)))

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestWarmupEndpoint(t *testing.T) {
	router, origin := newTestRouter(t)

	body := strings.NewReader(`{"requests":[
		{"url":"` + origin.URL() + `/v1/feeds/trending","priority":"critical"},
		{"url":"` + origin.URL() + `/v1/feeds/recent","priority":"low"}
	]}`)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/v1/warmup", body))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var result struct {
		Warmed int `json:"warmed"`
		Failed int `json:"failed"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("result did not decode: %v", err)
	}
	if result.Warmed != 2 || result.Failed != 0 {
		t.Errorf("warmed/failed = %d/%d, want 2/0", result.Warmed, result.Failed)
	}
	if origin.GetRequestCount() != 2 {
		t.Errorf("origin requests = %d, want 2", origin.GetRequestCount())
	}
}

func TestWarmupEndpointRejectsEmpty(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/v1/warmup", strings.NewReader(`{"requests":[]}`)))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	body := w.Body.String()
	if !strings.Contains(body, "# HELP") || !strings.Contains(body, "# TYPE") {
		t.Error("expected Prometheus format output")
	}
	if !strings.Contains(body, "respcache_hits_total") {
		t.Error("expected respcache_hits_total in metrics output")
	}
}
