// Crosswatch - Multi-Provider Media Library Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crosswatch

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Snapshot metrics
	SnapshotBuilds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crosswatch_snapshot_builds_total",
			Help: "Total number of provider index builds",
		},
		[]string{"provider", "feature", "result"}, // result: "ok", "cached", "error", "suspect"
	)

	SnapshotItems = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "crosswatch_snapshot_items",
			Help: "Item count of the most recent provider snapshot",
		},
		[]string{"provider", "feature"},
	)

	// Planner metrics
	PlannedOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crosswatch_planned_operations_total",
			Help: "Total planned operations before guards",
		},
		[]string{"pair", "feature", "op"}, // op: "add", "remove", "upsert", "unrate"
	)

	BlockedOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crosswatch_blocked_operations_total",
			Help: "Operations suppressed by a guard",
		},
		[]string{"pair", "feature", "guard"}, // guard: "tombstone", "unresolved", "blackbox", "phantom", "mass_delete"
	)

	// Apply metrics
	AppliedOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crosswatch_applied_operations_total",
			Help: "Confirmed operations applied to a provider",
		},
		[]string{"provider", "feature", "op"},
	)

	UnresolvedItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crosswatch_unresolved_items_total",
			Help: "Items a provider declared unresolved during a write",
		},
		[]string{"provider", "feature"},
	)

	ApplyRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crosswatch_apply_retries_total",
			Help: "Retry attempts during chunked writes",
		},
		[]string{"provider", "feature", "op"},
	)

	// Provider API metrics
	APIHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crosswatch_api_hits_total",
			Help: "Provider API calls observed through api:hit events",
		},
		[]string{"provider", "endpoint", "method", "status"},
	)

	ProviderHealth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "crosswatch_provider_health",
			Help: "Provider health: 0 ok, 1 degraded, 2 auth_failed, 3 down",
		},
		[]string{"provider"},
	)

	// Circuit breaker metrics (provider adapter wrapper)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "crosswatch_circuit_breaker_state",
			Help: "Circuit breaker state: 0 closed, 1 half-open, 2 open",
		},
		[]string{"provider"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crosswatch_circuit_breaker_requests_total",
			Help: "Requests through provider circuit breakers by outcome",
		},
		[]string{"provider", "outcome"}, // outcome: "success", "failure", "rejected"
	)

	// Cycle metrics
	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crosswatch_cycle_duration_seconds",
			Help:    "Duration of full synchronization cycles",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)

	CycleTotals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crosswatch_cycle_operations_total",
			Help: "Cycle roll-up of added/removed/unresolved items",
		},
		[]string{"kind"}, // kind: "added", "removed", "unresolved"
	)
)

// HealthValue maps a provider status string onto the ProviderHealth gauge scale.
func HealthValue(status string) float64 {
	switch status {
	case "ok":
		return 0
	case "degraded":
		return 1
	case "auth_failed":
		return 2
	case "down":
		return 3
	default:
		return 1
	}
}
