// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides the correlation ID injector, the structured access
// logger, and the panic-safe recovery handler:
//
//   - RequestID() reuses a well-formed X-Request-ID or generates a UUIDv4 and
//     stores it in the Gin context.
//   - Logger() emits one access log line per request and attaches a
//     request-scoped zerolog.Logger to both the Gin context and the request
//     context, so services can use zerolog.Ctx(ctx).
//   - Recovery() converts panics into the JSON error envelope.
//
// Recommended order: RequestID, Logger (or RedactingLogger), Recovery.
//
// Event streams are logged once, when the client disconnects, with the
// message "stream" so that long latencies are not mistaken for slow requests.
package middleware

import (
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// requestIDKey is the Gin context key under which the request ID is stored.
	requestIDKey = "requestID"
	// requestIDHeader is the HTTP header used to propagate the correlation ID.
	requestIDHeader = "X-Request-ID"
	// maxRequestIDLength bounds client supplied correlation IDs.
	maxRequestIDLength = 128
	// maxQueryLogLength caps the number of bytes of the raw query string logged.
	maxQueryLogLength = 2048
	// loggerKey holds the request-scoped *zerolog.Logger.
	loggerKey = "logger"
)

// healthPaths are polled by orchestrators and scrapers; their successful
// access logs are emitted at debug level.
var healthPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// RequestID attaches (or propagates) a correlation identifier per request.
// An incoming X-Request-ID is reused only when it is at most 128 characters
// of [A-Za-z0-9._-]; anything else is replaced by a fresh UUIDv4 so that
// arbitrary client input never reaches logs or response headers.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if !validRequestID(rid) {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

func validRequestID(s string) bool {
	if s == "" || len(s) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		switch ch := s[i]; {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
		case ch == '-', ch == '_', ch == '.':
		default:
			return false
		}
	}
	return true
}

// Logger writes a structured access log for each request.
//
// Fields: request_id, method, path (route pattern when matched), remote_ip,
// user_agent, referer, query, bytes_in, period (when requested), status,
// latency, bytes_out. Level is error for 5xx or Gin errors, warn for 4xx,
// debug for successful health checks and info otherwise.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := routePath(c)
		rid, _ := c.Get(requestIDKey)

		l := log.With().
			Str("request_id", asString(rid)).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("remote_ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Str("referer", c.Request.Referer()).
			Str("query", truncate(c.Request.URL.RawQuery, maxQueryLogLength)).
			Int64("bytes_in", c.Request.ContentLength). // -1 when unknown
			Logger()
		if p := c.Query("period"); p != "" {
			l = l.With().Str("period", truncate(p, 16)).Logger()
		}

		c.Set(loggerKey, &l)
		c.Request = c.Request.WithContext(l.WithContext(c.Request.Context()))

		c.Next()

		ev := accessEvent(&l, c, path)
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", c.Errors.String())
		}
		ev.Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Int("bytes_out", c.Writer.Size()).
			Msg(accessMessage(c, "request"))
	}
}

// accessEvent picks the level of an access log line from the outcome.
func accessEvent(l *zerolog.Logger, c *gin.Context, path string) *zerolog.Event {
	status := c.Writer.Status()
	switch {
	case len(c.Errors) > 0, status >= 500:
		return l.Error()
	case status >= 400:
		return l.Warn()
	}
	if _, ok := healthPaths[path]; ok {
		return l.Debug()
	}
	return l.Info()
}

// accessMessage returns "stream" for event-stream responses, def otherwise.
func accessMessage(c *gin.Context, def string) string {
	if isEventStream(c) {
		return "stream"
	}
	return def
}

// routePath is the matched route pattern, or the raw path for 404s.
func routePath(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return c.Request.URL.Path
}

// Recovery intercepts panics, logs a stack trace, and answers with the JSON
// error envelope (code internal_error) when nothing was written yet.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			v, _ := c.Get(requestIDKey)
			rid := asString(v)
			LoggerFrom(c).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("request_id", rid).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.Header(requestIDHeader, rid)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"request_id": rid,
				"code":       "internal_error",
				"message":    "internal server error",
			})
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped logger attached by Logger, or the
// global logger when there is none.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// truncate cuts s to max bytes plus an ellipsis. max <= 0 disables it.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return strings.ToValidUTF8(s[:max], "") + "…"
}
