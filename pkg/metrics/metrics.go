// Package metrics provides Prometheus metrics for the bramble service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UpdatesTotal tracks processed updates by record kind and outcome status
	UpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bramble",
			Subsystem: "update",
			Name:      "requests_total",
			Help:      "Total number of update requests by record kind and status",
		},
		[]string{"kind", "status"},
	)

	// UpdateDuration tracks end-to-end update duration in seconds
	UpdateDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bramble",
			Subsystem: "update",
			Name:      "duration_seconds",
			Help:      "Duration of update requests in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"kind"},
	)

	// ActionsTotal tracks performed actions by action name and status
	ActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bramble",
			Subsystem: "actions",
			Name:      "performed_total",
			Help:      "Total number of performed actions by name and status",
		},
		[]string{"action", "status"},
	)

	// ActionDuration tracks individual action duration in seconds
	ActionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bramble",
			Subsystem: "actions",
			Name:      "duration_seconds",
			Help:      "Duration of individual actions in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"action"},
	)

	// CollaboratorCallsTotal tracks calls to external systems
	CollaboratorCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bramble",
			Subsystem: "collaborator",
			Name:      "calls_total",
			Help:      "Total number of calls to external collaborators",
		},
		[]string{"system", "operation", "status"},
	)

	// CollaboratorCallDuration tracks external call duration in seconds
	CollaboratorCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bramble",
			Subsystem: "collaborator",
			Name:      "call_duration_seconds",
			Help:      "Duration of calls to external collaborators in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"system", "operation"},
	)

	// EnqueuedRecordsTotal tracks records handed to the downstream queue
	EnqueuedRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bramble",
			Subsystem: "queue",
			Name:      "enqueued_total",
			Help:      "Total number of records enqueued by provider tag",
		},
		[]string{"provider"},
	)

	// DoubleRecordKeysTotal tracks issued and consumed double-record keys
	DoubleRecordKeysTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bramble",
			Subsystem: "doublerecord",
			Name:      "keys_total",
			Help:      "Total number of double record override keys by event",
		},
		[]string{"event"},
	)
)

// ObserveCollaboratorCall records one external call in both the counter
// and the duration histogram.
func ObserveCollaboratorCall(system, operation, status string, duration time.Duration) {
	CollaboratorCallsTotal.WithLabelValues(system, operation, status).Inc()
	CollaboratorCallDuration.WithLabelValues(system, operation).Observe(duration.Seconds())
}

// ObserveAction records one performed action.
func ObserveAction(action, status string, duration time.Duration) {
	ActionsTotal.WithLabelValues(action, status).Inc()
	ActionDuration.WithLabelValues(action).Observe(duration.Seconds())
}
