package statsclient

import (
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// upstreamLat records statistics backend latency by endpoint path and outcome.
// outcome is "ok", "timeout", "network", or the numeric status code.
var upstreamLat = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "stats_upstream_request_duration_seconds",
		Help:    "Duration of requests to the statistics backend in seconds.",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"endpoint", "outcome"},
)

func init() {
	prometheus.MustRegister(upstreamLat)
}

func observeUpstream(endpoint string, status int, err error, d time.Duration) {
	upstreamLat.WithLabelValues(endpoint, outcome(status, err)).Observe(d.Seconds())
}

func outcome(status int, err error) string {
	if err == nil {
		return "ok"
	}
	if status != 0 {
		return strconv.Itoa(status)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return "timeout"
	}
	return "network"
}
