// Crosswatch - Multi-Provider Media Library Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crosswatch

package engine

import (
	"context"
	"time"

	"github.com/tomtom215/crosswatch/internal/config"
	"github.com/tomtom215/crosswatch/internal/events"
	"github.com/tomtom215/crosswatch/internal/provider"
	"github.com/tomtom215/crosswatch/internal/snapshot"
	"github.com/tomtom215/crosswatch/internal/state"
)

// Engine is the synchronization facade. Construct it once per process with
// New; Run executes one cycle at a time (the state store's lock already
// serializes processes, Run serializes nothing itself).
type Engine struct {
	cfg     *config.Config
	reg     *provider.Registry
	store   *state.Store
	emit    events.Emitter
	builder *snapshot.Builder
}

// Options tunes one Run call.
type Options struct {
	// DryRun plans and reports without writing to providers or state.
	// The config-level dry_run flag forces it on regardless.
	DryRun bool
	// OnlyFeature restricts the cycle to a single feature name.
	OnlyFeature string
	// Progress, when set, receives every event of the cycle in addition to
	// the engine's configured emitter.
	Progress func(event string, fields events.Fields)
}

// New assembles an engine from its collaborators. emit may be nil.
func New(cfg *config.Config, reg *provider.Registry, store *state.Store, emit events.Emitter) *Engine {
	if emit == nil {
		emit = events.Nop
	}
	return &Engine{
		cfg:     cfg,
		reg:     reg,
		store:   store,
		emit:    emit,
		builder: snapshot.NewBuilder(time.Duration(cfg.Runtime.SnapshotTTLSec) * time.Second),
	}
}

// Run executes one full synchronization cycle and returns its roll-up.
// Individual pair and feature failures degrade to events rather than errors;
// the returned error reflects only context cancellation.
func (e *Engine) Run(ctx context.Context, opts Options) (state.RunResult, error) {
	emit := e.emit
	if opts.Progress != nil {
		emit = events.Tee(e.emit, events.Func(opts.Progress))
	}
	agg := events.NewAPIAggregator(emit)

	rc := &runContext{
		cfg:         e.cfg,
		reg:         e.reg,
		store:       e.store,
		emit:        agg,
		builder:     e.builder,
		st:          e.store.LoadState(),
		tombs:       e.store.LoadTombstones(),
		health:      make(map[string]provider.HealthReport),
		dryRun:      opts.DryRun || e.cfg.Sync.DryRun,
		removedKeys: make(map[string][]string),
	}
	total := rc.runCycle(ctx, agg, opts.OnlyFeature)

	res := state.RunResult{
		Added:      total.Added,
		Removed:    total.Removed,
		Unresolved: total.Unresolved,
	}
	return res, ctx.Err()
}
