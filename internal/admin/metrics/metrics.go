// Package metrics exposes Prometheus counters for the admin surface.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	adminOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orgadmin_operations_total",
			Help: "Administrative operations by entity and action",
		},
		[]string{"entity", "action"},
	)

	operationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orgadmin_operation_failures_total",
			Help: "Failed administrative operations by entity and reason",
		},
		[]string{"entity", "reason"},
	)

	authFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orgadmin_auth_failures_total",
			Help: "Authentication and authorization failures by kind",
		},
		[]string{"kind"},
	)
)

// RecordOperation counts one administrative operation attempt.
func RecordOperation(entity, action string) {
	adminOperations.WithLabelValues(entity, action).Inc()
}

// RecordFailure counts one failed administrative operation.
func RecordFailure(entity, reason string) {
	operationFailures.WithLabelValues(entity, reason).Inc()
}

// RecordAuthFailure counts one authentication or authorization failure.
func RecordAuthFailure(kind string) {
	authFailures.WithLabelValues(kind).Inc()
}
