// Package httpapi wires the HTTP transport (Gin) to the statistics cache,
// the dashboard service, middleware, and route handlers. It centralizes
// cross-cutting concerns such as tracing, correlation IDs, logging/redaction,
// panic recovery, metrics, compression, CORS, security headers, and rate
// limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture for a browser dashboard
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	_ "github.com/tbourn/go-bot-dashboard/docs"
	"github.com/tbourn/go-bot-dashboard/internal/config"
	"github.com/tbourn/go-bot-dashboard/internal/http/handlers"
	"github.com/tbourn/go-bot-dashboard/internal/http/middleware"
)

// StreamPath is the event stream route relative to the API base path.
const StreamPath = "/stats/stream"

// Deps are the collaborators behind the routes. Views and Upstream are
// optional; their endpoints answer 503 when nil.
type Deps struct {
	Stats    handlers.StatisticsCache
	Views    handlers.DashboardViewer
	Upstream handlers.UpstreamChecker
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), rate limiting,
// CORS and security headers, compression, health and metrics endpoints, and
// then mounts the versioned public API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger or RedactingLogger (LOG_REDACT): structured access logs
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Rate limiter (per IP, health checks exempt)
//  8. CORS and Security headers
//  9. Gzip (event stream and /metrics exempt)
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	streamPath := joinPath(apiBase, StreamPath)

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging, with redaction when requested
	if cfg.LogRedact {
		r.Use(middleware.RedactingLogger(middleware.RedactOptions{
			MaskHeaders: []string{"X-API-Key"},
		}))
	} else {
		r.Use(middleware.Logger())
	}

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (64 KiB; the API takes no request bodies)
	r.Use(limitBody(64 << 10))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Token-bucket rate limiter per IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByClientIP()).
		WithSkip(middleware.SkipPaths("/health", "/metrics"))
	r.Use(rl.Handler())

	// 8) CORS posture (safe defaults: allow all if none configured)
	corsMethods := []string{"GET", "POST", "OPTIONS"}
	corsHeaders := []string{"Origin", "Content-Type", "Accept", "Authorization", "Cache-Control", "If-None-Match", "Last-Event-ID"}
	corsExpose := []string{"X-Request-ID", "Content-Length", "ETag"}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     corsMethods,
			AllowHeaders:     corsHeaders,
			ExposeHeaders:    corsExpose,
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     corsMethods,
			AllowHeaders:     corsHeaders,
			ExposeHeaders:    corsExpose,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		Revalidate:   true,
		EnablePolicy: true,
	}))

	// 9) Compression; streams must flush event by event
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{streamPath, "/metrics"})))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// API docs
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(deps.Stats, deps.Views, deps.Upstream)

	// Public API
	api := groupWithPrefix(r, apiBase)
	{
		// Statistics
		api.GET("/stats", h.GetStatistics)
		api.GET(StreamPath, h.StreamStatistics)
		api.POST("/stats/refetch", h.RefetchStatistics)
		api.GET("/stats/cache", h.CacheEntries)

		// Dashboard views
		api.GET("/dashboard", h.GetDashboard)

		// Upstream
		api.GET("/upstream/health", h.UpstreamHealth)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

// joinPath joins a normalized base path and a route.
func joinPath(base, route string) string {
	if base == "" || base == "/" {
		return route
	}
	return base + route
}
