package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueriesTotal counts inbound queries by terminal outcome: position,
	// failure, blocked, chat, reserved or dropped.
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "locate_queries_total",
			Help: "Total number of handled location queries by outcome",
		},
		[]string{"outcome"},
	)

	// AcquisitionDuration observes how long location acquisition took.
	AcquisitionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "locate_acquisition_duration_seconds",
			Help:    "Location acquisition duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// RelayFailures counts outbound posts that failed in transport.
	RelayFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "locate_relay_failures_total",
			Help: "Total number of failed relay posts",
		},
	)
)

// Query outcome label values.
const (
	OutcomePosition = "position"
	OutcomeFailure  = "failure"
	OutcomeBlocked  = "blocked"
	OutcomeChat     = "chat"
	OutcomeReserved = "reserved"
	OutcomeDropped  = "dropped"
)
