// Crosswatch - Multi-Provider Media Library Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crosswatch

package provider

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/crosswatch/internal/config"
	"github.com/tomtom215/crosswatch/internal/logging"
	"github.com/tomtom215/crosswatch/internal/metrics"
	"github.com/tomtom215/crosswatch/internal/models"
)

// BreakerAdapter wraps an Adapter with a circuit breaker so a provider that
// is hard-down stops burning its rate limit on doomed calls. An open circuit
// surfaces as an ordinary error; the applier treats it as transient for the
// current chunk and the driver records the items unresolved.
//
// The breaker uses real time for its interval and timeout. Tests should mock
// the wrapped adapter, not the breaker.
type BreakerAdapter struct {
	Adapter
	cb *gobreaker.CircuitBreaker[any]
}

// WrapWithBreaker wraps an adapter with the provider circuit breaker:
// opens after a 60% failure rate over at least 10 requests in a 1 minute
// window, probes again after 2 minutes.
func WrapWithBreaker(a Adapter) *BreakerAdapter {
	name := a.Name()
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio >= 0.6 {
				logging.Warn().Str("provider", name).Uint32("failures", counts.TotalFailures).Float64("failure_rate", ratio*100).Msg("opening provider circuit")
				return true
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("provider", name).Str("from", breakerStateString(from)).Str("to", breakerStateString(to)).Msg("provider circuit transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
		},
	})
	return &BreakerAdapter{Adapter: a, cb: cb}
}

// execute runs fn through the breaker and records the outcome.
func (b *BreakerAdapter) execute(fn func() (any, error)) (any, error) {
	result, err := b.cb.Execute(fn)
	name := b.Name()
	switch {
	case err == nil:
		metrics.CircuitBreakerRequests.WithLabelValues(name, "success").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(name, "rejected").Inc()
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(name, "failure").Inc()
	}
	return result, err
}

// BuildIndex calls through the breaker.
func (b *BreakerAdapter) BuildIndex(ctx context.Context, cfg *config.Config, feature string) (models.Index, error) {
	result, err := b.execute(func() (any, error) {
		return b.Adapter.BuildIndex(ctx, cfg, feature)
	})
	if err != nil {
		return nil, err
	}
	idx, _ := result.(models.Index)
	return idx, nil
}

// Add calls through the breaker.
func (b *BreakerAdapter) Add(ctx context.Context, cfg *config.Config, feature string, items []models.Item, dryRun bool) (WriteResult, error) {
	result, err := b.execute(func() (any, error) {
		return b.Adapter.Add(ctx, cfg, feature, items, dryRun)
	})
	if err != nil {
		return WriteResult{}, err
	}
	wr, _ := result.(WriteResult)
	return wr, nil
}

// Remove calls through the breaker.
func (b *BreakerAdapter) Remove(ctx context.Context, cfg *config.Config, feature string, items []models.Item, dryRun bool) (WriteResult, error) {
	result, err := b.execute(func() (any, error) {
		return b.Adapter.Remove(ctx, cfg, feature, items, dryRun)
	})
	if err != nil {
		return WriteResult{}, err
	}
	wr, _ := result.(WriteResult)
	return wr, nil
}

func breakerStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func breakerStateString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
