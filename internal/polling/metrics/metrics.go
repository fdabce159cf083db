package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectAttempts tracks connection attempts per backend
	ConnectAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dbwatch_connect_attempts_total",
			Help: "Total number of backend connection attempts",
		},
		[]string{"backend"},
	)

	// SessionFailures tracks sessions lost or never established, by normalized code
	SessionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dbwatch_session_failures_total",
			Help: "Total number of failed connects and lost sessions",
		},
		[]string{"backend", "code", "fatal"},
	)

	// QueriesTotal tracks executed checks by section and status code
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dbwatch_queries_total",
			Help: "Total number of checks executed",
		},
		[]string{"section", "status"},
	)

	// QueryLatency tracks check execution time
	QueryLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dbwatch_query_latency_seconds",
			Help:    "Check execution latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"section"},
	)

	// CycleDuration tracks the time spent on one polling cycle
	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dbwatch_cycle_duration_seconds",
			Help:    "Polling cycle duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	// ChecksLoaded tracks the size of the active check set
	ChecksLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dbwatch_checks_loaded",
			Help: "Number of checks in the active check set",
		},
	)

	// ChecksGeneration tracks the active check set generation
	ChecksGeneration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dbwatch_checks_generation",
			Help: "Generation number of the active check set",
		},
	)

	// BackoffSeconds tracks the current reconnect wait
	BackoffSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dbwatch_backoff_seconds",
			Help: "Current wait before the next reconnect attempt",
		},
	)

	// Connected is 1 while a session is open
	Connected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dbwatch_connected",
			Help: "Whether a backend session is open",
		},
	)

	// TransportTotal tracks output file handoffs by outcome
	TransportTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dbwatch_transport_total",
			Help: "Total number of output handoffs to the transport",
		},
		[]string{"outcome"},
	)
)
