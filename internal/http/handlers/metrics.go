package handlers

import "github.com/prometheus/client_golang/prometheus"

var (
	// streamsActive gauges open server-sent event connections.
	streamsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dashboard_streams_active",
			Help: "Current number of open statistics event streams.",
		},
	)

	// streamEvents counts events written to streams by event name.
	streamEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_stream_events_total",
			Help: "Total number of server-sent events written, by event name.",
		},
		[]string{"event"},
	)
)

func init() {
	prometheus.MustRegister(streamsActive, streamEvents)
}
