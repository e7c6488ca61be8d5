package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tuntasinaja_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// HTTPInFlight tracks requests currently being served, long-lived streams excluded.
	HTTPInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tuntasinaja_http_in_flight_requests",
			Help: "Number of HTTP requests in progress",
		},
	)

	// PushDeliveries counts delivery attempts per channel (native|web) and result (success|failure).
	PushDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tuntasinaja_push_deliveries_total",
			Help: "Total number of push delivery attempts",
		},
		[]string{"channel", "result"},
	)

	// PushPruned counts device tokens and web-push endpoints removed after the provider rejected them.
	PushPruned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tuntasinaja_push_pruned_total",
			Help: "Total number of dead push identifiers deleted",
		},
		[]string{"channel"},
	)

	// FanoutDuration measures how long a class fan-out takes end to end.
	FanoutDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tuntasinaja_push_fanout_duration_seconds",
			Help:    "Duration of push fan-out calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"type"},
	)

	// ReminderRuns counts scheduled reminder executions by job and result.
	ReminderRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tuntasinaja_reminder_runs_total",
			Help: "Total number of reminder job executions",
		},
		[]string{"job", "result"},
	)

	// RealtimeConnections tracks open in-app notification streams.
	RealtimeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tuntasinaja_realtime_connections",
			Help: "Number of open notification stream connections",
		},
	)
)
