// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides SecurityHeaders for the JSON and event-stream API. The
// header set is computed once when the middleware is built; only HSTS and the
// exposed request ID depend on the request.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// defaultHSTSMaxAge applies when SecurityOptions.HSTSMaxAge is not positive.
const defaultHSTSMaxAge = 180 * 24 * time.Hour

// SecurityOptions configures HTTP security headers emitted by SecurityHeaders.
//
// NoStore forbids caching entirely (Cache-Control: no-store plus legacy
// Pragma/Expires). Revalidate, used when NoStore is false, sends
// Cache-Control: no-cache so that dashboards keep responses but revalidate
// them with If-None-Match against the statistics ETag.
type SecurityOptions struct {
	EnableHSTS   bool          // set true only when traffic is HTTPS end-to-end
	HSTSMaxAge   time.Duration // e.g., 180 * 24h
	NoStore      bool          // add Cache-Control: no-store
	Revalidate   bool          // add Cache-Control: no-cache
	EnablePolicy bool          // include Permissions-Policy, etc.
}

type header struct{ name, value string }

// SecurityHeaders returns a Gin middleware that adds:
//
//	X-Content-Type-Options: nosniff
//	X-Frame-Options: DENY
//	Referrer-Policy: no-referrer
//	Permissions-Policy, X-Permitted-Cross-Domain-Policies   (EnablePolicy)
//	Cache-Control: no-store, Pragma, Expires                (NoStore)
//	Cache-Control: no-cache                                 (Revalidate)
//	Strict-Transport-Security                               (EnableHSTS, HTTPS only)
//
// and lists X-Request-ID in Access-Control-Expose-Headers when the response
// carries one.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	static := []header{
		{"X-Content-Type-Options", "nosniff"},
		{"X-Frame-Options", "DENY"},
		{"Referrer-Policy", "no-referrer"},
	}
	if opt.EnablePolicy {
		static = append(static,
			header{"Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()"},
			header{"X-Permitted-Cross-Domain-Policies", "none"},
		)
	}
	switch {
	case opt.NoStore:
		static = append(static,
			header{"Cache-Control", "no-store"},
			header{"Pragma", "no-cache"},
			header{"Expires", "0"},
		)
	case opt.Revalidate:
		static = append(static, header{"Cache-Control", "no-cache"})
	}

	maxAge := opt.HSTSMaxAge
	if maxAge <= 0 {
		maxAge = defaultHSTSMaxAge
	}
	hsts := "max-age=" + strconv.Itoa(int(maxAge.Seconds())) + "; includeSubDomains; preload"

	return func(c *gin.Context) {
		h := c.Writer.Header()
		for _, kv := range static {
			h.Set(kv.name, kv.value)
		}
		// Never for plain HTTP, including localhost.
		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}
		if h.Get(requestIDHeader) != "" {
			appendHeaderToken(h, "Access-Control-Expose-Headers", requestIDHeader)
		}
		c.Next()
	}
}

// appendHeaderToken adds token to a comma separated header unless present.
func appendHeaderToken(h http.Header, name, token string) {
	cur := h.Get(name)
	if cur == "" {
		h.Set(name, token)
		return
	}
	for _, t := range strings.Split(cur, ",") {
		if strings.EqualFold(strings.TrimSpace(t), token) {
			return
		}
	}
	h.Set(name, cur+", "+token)
}

// isHTTPS reports whether the request used TLS directly or via a proxy that
// set X-Forwarded-Proto: https.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
