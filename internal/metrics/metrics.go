package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion metrics
	MessagesRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatarchive_messages_recorded_total",
			Help: "Inbound chat events by record outcome",
		},
		[]string{"result"}, // "inserted" or "duplicate"
	)

	MalformedEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatarchive_malformed_events_total",
			Help: "Inbound events dropped for missing required fields",
		},
	)

	StorageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatarchive_storage_failures_total",
			Help: "Store operations that failed to complete",
		},
		[]string{"op"},
	)

	MessagesEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatarchive_messages_evicted_total",
			Help: "Messages removed by the retention sweeper",
		},
	)

	// Command and AI metrics
	Commands = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatarchive_commands_total",
			Help: "Handled commands by outcome",
		},
		[]string{"command", "outcome"},
	)

	AIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatarchive_ai_requests_total",
			Help: "AI collaborator calls by outcome",
		},
		[]string{"kind", "outcome"},
	)

	AILatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chatarchive_ai_latency_seconds",
			Help:    "AI collaborator call latency",
			Buckets: []float64{.25, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)
)
