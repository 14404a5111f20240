// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements an in-memory token-bucket rate limiter with one
// bucket per client identity (golang.org/x/time/rate). Idle buckets are
// dropped opportunistically. Health checks and event streams are exempted with a
// skip predicate: a stream is one long request and must not be throttled
// after it is accepted.
//
// The limiter is process-local and meant for abuse control in front of the
// statistics cache; it is not an authorization mechanism.
package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

const (
	// visitorTTL is how long an idle bucket survives.
	visitorTTL = 10 * time.Minute
	// gcEvery is the number of lookups between idle bucket sweeps.
	gcEvery = 5000
	// maxRetryAfter caps the Retry-After hint for very slow buckets.
	maxRetryAfter = time.Hour
)

// httpRateLimited counts rejected requests by route.
var httpRateLimited = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "http_rate_limited_total",
		Help: "Requests rejected by the rate limiter.",
	},
	[]string{"path"},
)

func init() {
	prometheus.MustRegister(httpRateLimited)
}

// keyFunc selects the identity used to key a rate-limit bucket.
type keyFunc func(*gin.Context) string

// KeyByClientIP buckets requests by client IP ("ip:203.0.113.7").
func KeyByClientIP() keyFunc {
	return func(c *gin.Context) string {
		return "ip:" + c.ClientIP()
	}
}

// SkipPaths returns a predicate matching requests whose registered route is
// one of paths.
func SkipPaths(paths ...string) func(*gin.Context) bool {
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}
	return func(c *gin.Context) bool {
		_, ok := set[c.FullPath()]
		return ok
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a per-key token-bucket rate limiter. It is safe for
// concurrent use.
type RateLimiter struct {
	rps   rate.Limit
	burst int
	keyFn keyFunc
	skip  func(*gin.Context) bool
	clock clockwork.Clock

	mu       sync.Mutex
	visitors map[string]*visitor
	ttl      time.Duration
	cleanupN uint64
}

// NewRateLimiter returns a limiter refilling rps tokens per second with the
// given burst (coerced to at least 1), keyed by keyFn.
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		keyFn:    keyFn,
		clock:    clockwork.NewRealClock(),
		visitors: make(map[string]*visitor),
		ttl:      visitorTTL,
	}
}

// WithSkip exempts requests for which skip returns true and returns rl.
func (rl *RateLimiter) WithSkip(skip func(*gin.Context) bool) *RateLimiter {
	rl.skip = skip
	return rl
}

// WithClock replaces the time source and returns rl.
func (rl *RateLimiter) WithClock(c clockwork.Clock) *RateLimiter {
	rl.clock = c
	return rl
}

// getVisitor returns the limiter for key, creating it if absent. Idle
// buckets are swept every gcEvery lookups, before the requested key is
// touched, so a stale bucket for key is replaced rather than refreshed.
func (rl *RateLimiter) getVisitor(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.cleanupN++; rl.cleanupN >= gcEvery {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) >= rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.cleanupN = 0
	}

	if v, ok := rl.visitors[key]; ok {
		v.lastSeen = now
		return v.limiter
	}
	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	return lim
}

// Handler enforces the limits. A rejected request gets 429 with the JSON
// error envelope (code too_many_requests) and Retry-After set to the whole
// seconds until the next token.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.skip != nil && rl.skip(c) {
			c.Next()
			return
		}

		now := rl.clock.Now()
		lim := rl.getVisitor(rl.keyFn(c), now)
		if lim.AllowN(now, 1) {
			c.Next()
			return
		}

		httpRateLimited.WithLabelValues(routePath(c)).Inc()
		c.Header("Retry-After", strconv.Itoa(retryAfter(lim, now)))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get(requestIDHeader),
			"code":       "too_many_requests",
			"message":    "rate limit exceeded",
		})
	}
}

// retryAfter is the number of whole seconds (at least 1) until lim has a
// token again.
// A limiter that never refills (rate 0) reports 1.
func retryAfter(lim *rate.Limiter, now time.Time) int {
	if lim.Limit() == 0 {
		return 1
	}
	r := lim.ReserveN(now, 1)
	if !r.OK() {
		return 1
	}
	d := r.DelayFrom(now)
	r.CancelAt(now)
	if d == rate.InfDuration || d > maxRetryAfter {
		d = maxRetryAfter
	}
	if secs := int(math.Ceil(d.Seconds())); secs > 1 {
		return secs
	}
	return 1
}
