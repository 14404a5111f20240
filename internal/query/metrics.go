package query

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tbourn/go-bot-dashboard/internal/statsclient"
)

var (
	// fetches counts completed fetch executions by resource, period and result.
	fetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "query_fetches_total",
			Help: "Completed cache fetches by result.",
		},
		[]string{"resource", "period", "result"},
	)

	// lookups counts observations by whether they were served from cache.
	// result is one of: hit, stale, miss.
	lookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "query_cache_lookups_total",
			Help: "Cache observations by outcome.",
		},
		[]string{"resource", "result"},
	)

	inflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "query_inflight_fetches",
			Help: "Fetches currently running.",
		},
	)

	observersGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "query_observers",
			Help: "Registered cache observers.",
		},
	)

	evictions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "query_evictions_total",
			Help: "Cache entries evicted by the LRU policy.",
		},
	)
)

func init() {
	prometheus.MustRegister(fetches, lookups, inflight, observersGauge, evictions)
}

func fetchResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, statsclient.ErrTransport):
		return "transport_error"
	case errors.Is(err, statsclient.ErrMalformedResponse):
		return "malformed"
	default:
		return "error"
	}
}
