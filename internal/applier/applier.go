// Crosswatch - Multi-Provider Media Library Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crosswatch

package applier

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/tomtom215/crosswatch/internal/config"
	"github.com/tomtom215/crosswatch/internal/events"
	"github.com/tomtom215/crosswatch/internal/metrics"
	"github.com/tomtom215/crosswatch/internal/models"
	"github.com/tomtom215/crosswatch/internal/provider"
)

// Op distinguishes the two write directions.
type Op string

// Write operations.
const (
	OpAdd    Op = "add"
	OpRemove Op = "remove"
)

// Retry policy: 3 attempts, exponential backoff starting at 500ms.
const (
	retryAttempts     = 3
	retryInitialDelay = 500 * time.Millisecond
)

// rateSlowExtra is added to the inter-chunk pause when a provider is close
// to its rate limit.
const rateSlowExtra = time.Second

// Result is the outcome of one chunked write.
type Result struct {
	// Confirmed is the provider-confirmed item count across all chunks.
	Confirmed int
	// Unresolved collects provider-declared unresolved items.
	Unresolved []models.Item
	// Err is the last chunk error, set only when no chunk succeeded.
	Err error
}

// Applier issues chunked writes to a provider with retry, pacing and
// progress events.
type Applier struct {
	// ChunkSize splits writes; <= 0 disables chunking.
	ChunkSize int
	// ChunkPause is the pause between chunks.
	ChunkPause time.Duration
	// RateSlow marks the target provider as near its rate limit for this
	// cycle; it inflates ChunkPause by one second and emits rate:slow.
	RateSlow bool

	Emit events.Emitter
}

// Apply writes items to the adapter in chunks. Each chunk is retried up to
// three times with exponential backoff; a failed chunk contributes zero
// progress. Err is set only when every chunk failed, so partial progress is
// never reported as total failure.
func (a *Applier) Apply(ctx context.Context, adapter provider.Adapter, cfg *config.Config, op Op, dst, feature string, items []models.Item, dryRun bool) Result {
	emit := a.Emit
	if emit == nil {
		emit = events.Nop
	}
	if len(items) == 0 {
		return Result{}
	}

	prefix := "apply:" + string(op)
	emit.Emit(prefix+":start", events.Fields{
		"target":  dst,
		"feature": feature,
		"total":   len(items),
		"dry_run": dryRun,
	})

	pause := a.ChunkPause
	if a.RateSlow {
		pause += rateSlowExtra
		emit.Emit("rate:slow", events.Fields{
			"target":   dst,
			"feature":  feature,
			"pause_ms": pause.Milliseconds(),
		})
	}
	var limiter *rate.Limiter
	if pause > 0 {
		limiter = rate.NewLimiter(rate.Every(pause), 1)
		// burn the initial token so the first Wait paces the second chunk
		_ = limiter.Allow()
	}

	var res Result
	chunks := chunk(items, a.ChunkSize)
	okChunks := 0
	done := 0
	var lastErr error
	for i, part := range chunks {
		if i > 0 && limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				lastErr = err
				break
			}
		}
		wr, err := a.callWithRetry(ctx, adapter, cfg, op, feature, part, dryRun)
		done += len(part)
		if err != nil {
			lastErr = err
			emit.Emit(prefix+":progress", events.Fields{
				"target": dst, "feature": feature,
				"done": done, "total": len(items), "ok": false,
			})
			continue
		}
		okChunks++
		res.Confirmed += wr.Count
		if len(wr.Unresolved) > 0 {
			res.Unresolved = append(res.Unresolved, wr.Unresolved...)
			emit.Emit("apply:unresolved", events.Fields{
				"target": dst, "feature": feature, "count": len(wr.Unresolved),
			})
			metrics.UnresolvedItems.WithLabelValues(dst, feature).Add(float64(len(wr.Unresolved)))
		}
		emit.Emit(prefix+":progress", events.Fields{
			"target": dst, "feature": feature,
			"done": done, "total": len(items), "ok": true,
		})
	}

	if okChunks == 0 && lastErr != nil {
		res.Err = fmt.Errorf("%s %s on %s: %w", op, feature, dst, lastErr)
	}
	metrics.AppliedOperations.WithLabelValues(dst, feature, string(op)).Add(float64(res.Confirmed))
	emit.Emit(prefix+":done", events.Fields{
		"target":     dst,
		"feature":    feature,
		"confirmed":  res.Confirmed,
		"unresolved": len(res.Unresolved),
		"failed":     res.Err != nil,
	})
	return res
}

// callWithRetry issues one provider write with the 3-attempt backoff policy.
// Any error counts as transient for this chunk; the breaker wrapper decides
// when a provider is hard-down.
func (a *Applier) callWithRetry(ctx context.Context, adapter provider.Adapter, cfg *config.Config, op Op, feature string, items []models.Item, dryRun bool) (provider.WriteResult, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = retryInitialDelay
	policy.RandomizationFactor = 0
	policy.Multiplier = 2
	policy.MaxElapsedTime = 0

	var out provider.WriteResult
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		if attempt > 1 {
			metrics.ApplyRetries.WithLabelValues(adapter.Name(), feature, string(op)).Inc()
		}
		var err error
		if op == OpAdd {
			out, err = adapter.Add(ctx, cfg, feature, items, dryRun)
		} else {
			out, err = adapter.Remove(ctx, cfg, feature, items, dryRun)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(policy, retryAttempts-1), ctx))
	if err != nil {
		return provider.WriteResult{}, err
	}
	return out, nil
}

// chunk splits items into fixed-size parts; size <= 0 yields one part.
func chunk(items []models.Item, size int) [][]models.Item {
	if size <= 0 || len(items) <= size {
		return [][]models.Item{items}
	}
	var out [][]models.Item
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}
