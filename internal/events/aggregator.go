// Crosswatch - Multi-Provider Media Library Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crosswatch

package events

import (
	"fmt"
	"sync"

	"github.com/tomtom215/crosswatch/internal/metrics"
)

// hitKey identifies one api:hit bucket.
type hitKey struct {
	Provider string
	Endpoint string
	Feature  string
	Method   string
	Status   string
}

// APIAggregator wraps an emitter for the duration of a cycle, counting
// api:hit events by provider/endpoint/feature/method/status and merging any
// api:totals payloads providers emit themselves. All events are forwarded
// unchanged.
type APIAggregator struct {
	inner Emitter

	mu     sync.Mutex
	hits   map[hitKey]int64
	merged map[string]int64
}

// NewAPIAggregator wraps inner for one cycle.
func NewAPIAggregator(inner Emitter) *APIAggregator {
	return &APIAggregator{
		inner:  inner,
		hits:   make(map[hitKey]int64),
		merged: make(map[string]int64),
	}
}

// Emit implements Emitter.
func (a *APIAggregator) Emit(event string, fields Fields) {
	switch event {
	case "api:hit":
		a.recordHit(fields)
	case "api:totals":
		a.mergeTotals(fields)
	}
	if a.inner != nil {
		a.inner.Emit(event, fields)
	}
}

func (a *APIAggregator) recordHit(fields Fields) {
	key := hitKey{
		Provider: str(fields["provider"]),
		Endpoint: str(fields["endpoint"]),
		Feature:  str(fields["feature"]),
		Method:   str(fields["method"]),
		Status:   str(fields["status"]),
	}
	a.mu.Lock()
	a.hits[key]++
	a.mu.Unlock()
	metrics.APIHits.WithLabelValues(key.Provider, key.Endpoint, key.Method, key.Status).Inc()
}

func (a *APIAggregator) mergeTotals(fields Fields) {
	totals, ok := fields["totals"].(map[string]any)
	if !ok {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for k, v := range totals {
		a.merged[k] += toInt64(v)
	}
}

// Totals returns the cycle roll-up payload for the final api:totals event:
// per-provider hit counts plus any provider-merged totals.
func (a *APIAggregator) Totals() Fields {
	a.mu.Lock()
	defer a.mu.Unlock()

	byProvider := make(map[string]int64)
	byStatus := make(map[string]int64)
	var total int64
	for key, n := range a.hits {
		byProvider[key.Provider] += n
		byStatus[key.Status] += n
		total += n
	}
	out := Fields{
		"total":       total,
		"by_provider": byProvider,
		"by_status":   byStatus,
	}
	if len(a.merged) > 0 {
		merged := make(map[string]int64, len(a.merged))
		for k, v := range a.merged {
			merged[k] = v
		}
		out["provider_totals"] = merged
	}
	return out
}

func str(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", s)
	}
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	default:
		return 0
	}
}
