// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file exposes Prometheus instrumentation for HTTP traffic. Labels are
// kept bounded: method, path (the registered route, or the raw path when no
// route matched) and status.
//
// Server-sent event streams live for minutes; their durations go to a separate
// histogram so they do not skew request latency percentiles. Conditional GETs
// (If-None-Match) are counted by outcome, which shows how much of the
// dashboard polling is answered with 304.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	// Status is left out to keep histogram cardinality low.
	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	httpStreamDur = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_stream_duration_seconds",
			Help:    "Lifetime of server-sent event streams in seconds.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
		[]string{"path"},
	)

	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "Current number of in-flight HTTP requests.",
		},
	)

	// Statistics payloads are a few KiB; the dashboard view is larger.
	httpRespSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Size of HTTP responses in bytes.",
			Buckets: prometheus.ExponentialBuckets(256, 2, 12), // 256B..512KiB
		},
		[]string{"method", "path"},
	)

	httpConditional = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_conditional_requests_total",
			Help: "Requests carrying If-None-Match, by outcome (not_modified, full).",
		},
		[]string{"path", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpStreamDur, httpInflight, httpRespSize, httpConditional)
}

// Metrics returns a Gin middleware that instruments requests:
//
//	http_requests_total(method, path, status)
//	http_request_duration_seconds(method, path)   non-stream responses
//	http_stream_duration_seconds(path)            text/event-stream responses
//	http_requests_inflight
//	http_response_size_bytes(method, path)        when the size is known
//	http_conditional_requests_total(path, outcome)
//
// Mount the scrape endpoint separately:
//
//	r.Use(middleware.Metrics())
//	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		dur := time.Since(start).Seconds()
		path := routePath(c)
		method := c.Request.Method
		status := c.Writer.Status()

		httpReqs.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
		if c.GetHeader("If-None-Match") != "" {
			outcome := "full"
			if status == http.StatusNotModified {
				outcome = "not_modified"
			}
			httpConditional.WithLabelValues(path, outcome).Inc()
		}
		if isEventStream(c) {
			httpStreamDur.WithLabelValues(path).Observe(dur)
			return
		}
		httpLat.WithLabelValues(method, path).Observe(dur)
		// -1 for body-less responses.
		if size := c.Writer.Size(); size >= 0 {
			httpRespSize.WithLabelValues(method, path).Observe(float64(size))
		}
	}
}

func isEventStream(c *gin.Context) bool {
	return strings.HasPrefix(c.Writer.Header().Get("Content-Type"), "text/event-stream")
}
