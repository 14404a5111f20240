package httpapi

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-bot-dashboard/internal/config"
	"github.com/tbourn/go-bot-dashboard/internal/domain"
	"github.com/tbourn/go-bot-dashboard/internal/query"
)

// --- tiny fake upstream to satisfy query.StatisticsSource ---
type fakeSource struct{}

func (fakeSource) FetchStatistics(_ context.Context, _ domain.Period) (*domain.StatisticsSnapshot, error) {
	return &domain.StatisticsSnapshot{Summary: domain.Summary{TotalUsers: 150, TotalMessages: 4523, ActiveDialogs: 89}}, nil
}

func newDeps(t *testing.T) Deps {
	t.Helper()
	stats := query.NewStatistics(fakeSource{}, query.StatisticsOptions{Cache: query.Options{RefetchInterval: -1}})
	t.Cleanup(func() { _ = stats.Close() })
	return Deps{Stats: stats}
}

func baseConfig() config.Config {
	return config.Config{
		APIBasePath: "/api/v1",
		RateRPS:     100,
		RateBurst:   10,
		CORS:        config.CORSConfig{AllowedOrigins: nil}, // triggers AllowAllOrigins branch
		Security:    config.SecurityConfig{EnableHSTS: false, HSTSMaxAge: 0},
		OTEL:        config.OTELConfig{ServiceName: "test-svc"},
	}
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, newDeps(t), baseConfig())

	// /health works
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	// CORS (AllowAllOrigins) → header "*"
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}

	// /metrics is wired
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || len(w.Body.Bytes()) == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	// NoRoute → 404
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/nope", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}

	// NoMethod → 405 (POST /health)
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/health", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}

	// Swagger is off unless enabled
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("swagger disabled expected 404, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	cfg := baseConfig()
	cfg.APIBasePath = "/api/v2"
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://example.com"}}
	RegisterRoutes(r, newDeps(t), cfg)

	// Any request runs through CORS middleware; header should reflect origin.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://example.com")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}

	// API is mounted under the configured base path
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v2/stats?period=day", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/v2/stats = %d", w.Code)
	}
}

func TestRegisterRoutes_StatsGzipAndCacheHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, newDeps(t), baseConfig())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats?period=week", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/v1/stats = %d", w.Code)
	}
	if w.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("expected gzip response, headers=%#v", w.Header())
	}
	if got := w.Header().Get("Cache-Control"); got != "no-cache" {
		t.Fatalf("Cache-Control=%q", got)
	}
	if w.Header().Get("ETag") == "" {
		t.Fatalf("expected ETag")
	}

	zr, err := gzip.NewReader(w.Body)
	if err != nil {
		t.Fatalf("gzip: %v", err)
	}
	raw, _ := io.ReadAll(zr)
	var body struct {
		Period string                     `json:"period"`
		Data   *domain.StatisticsSnapshot `json:"data"`
		Error  any                        `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("json: %v (%s)", err, raw)
	}
	if body.Period != "week" || body.Data == nil || body.Data.Summary.TotalMessages != 4523 || body.Error != nil {
		t.Fatalf("unexpected body: %s", raw)
	}
}

func TestRegisterRoutes_SwaggerEnabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	cfg := baseConfig()
	cfg.SwaggerEnabled = true
	RegisterRoutes(r, newDeps(t), cfg)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte("/stats/stream")) {
		t.Fatalf("GET /swagger/doc.json = %d %s", w.Code, w.Body.String())
	}
}

func TestRegisterRoutes_RateLimitSkipsHealthChecks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	cfg := baseConfig()
	cfg.RateRPS = 0.001
	cfg.RateBurst = 1
	RegisterRoutes(r, newDeps(t), cfg)

	codes := make([]int, 0, 4)
	for _, p := range []string{"/api/v1/stats/cache", "/api/v1/stats/cache", "/health", "/health"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, p, nil))
		codes = append(codes, w.Code)
	}
	want := []int{http.StatusOK, http.StatusTooManyRequests, http.StatusOK, http.StatusOK}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("codes=%v want %v", codes, want)
		}
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	// tiny cap to trigger MaxBytesReader
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB")) // 12 bytes
	r.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix_and_joinPath(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	// "/" and "" should mount at root
	groupWithPrefix(r, "/").GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	groupWithPrefix(r, "").GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })
	// non-root prefix
	groupWithPrefix(r, "/api").GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK || rec.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, rec.Code, rec.Body.String())
		}
	}

	if got := joinPath("/api/v1", StreamPath); got != "/api/v1/stats/stream" {
		t.Fatalf("joinPath=%q", got)
	}
	if got := joinPath("/", StreamPath); got != StreamPath {
		t.Fatalf("joinPath root=%q", got)
	}
}

// Smoke test that a request traverses ratelimit + otel + security headers pipeline.
func TestPipeline_Smoke(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	cfg := baseConfig()
	cfg.Security = config.SecurityConfig{EnableHSTS: true, HSTSMaxAge: time.Hour} // enabled (but only set on https)
	cfg.LogRedact = true
	RegisterRoutes(r, newDeps(t), cfg)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("pipeline GET /health = %d", w.Code)
	}
	// RequestID header should be present (from RequestID middleware)
	if rid := w.Header().Get("X-Request-ID"); rid == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
	if w.Header().Get("Strict-Transport-Security") == "" {
		t.Fatalf("expected HSTS on forwarded https")
	}
}
