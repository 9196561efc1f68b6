// Crosswatch - Multi-Provider Media Library Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crosswatch

package engine

import (
	"context"
	"strings"
	"time"

	"github.com/tomtom215/crosswatch/internal/applier"
	"github.com/tomtom215/crosswatch/internal/config"
	"github.com/tomtom215/crosswatch/internal/events"
	"github.com/tomtom215/crosswatch/internal/idmap"
	"github.com/tomtom215/crosswatch/internal/logging"
	"github.com/tomtom215/crosswatch/internal/metrics"
	"github.com/tomtom215/crosswatch/internal/models"
	"github.com/tomtom215/crosswatch/internal/planner"
	"github.com/tomtom215/crosswatch/internal/provider"
	"github.com/tomtom215/crosswatch/internal/snapshot"
	"github.com/tomtom215/crosswatch/internal/state"
)

// rateSlowFloor is the remaining-quota level below which writes to a
// provider are paced down for the rest of the cycle.
const rateSlowFloor = 10

// massDeleteRatio is the fraction of a destination baseline a single cycle
// may remove before the whole removal batch is blocked.
const massDeleteRatio = 0.10

// runContext carries everything one cycle shares across pairs and features.
type runContext struct {
	cfg     *config.Config
	reg     *provider.Registry
	store   *state.Store
	emit    events.Emitter
	builder *snapshot.Builder

	// st and tombs are loaded once per cycle; drivers mutate them in memory
	// and persist after each feature so the next feature sees durable state.
	st    *state.StateFile
	tombs *state.Tombstones

	// health is the per-provider probe result collected at cycle start.
	health map[string]provider.HealthReport

	dryRun bool

	// removedKeys collects confirmed-removed canonical keys per feature for
	// the end-of-cycle cascade bookkeeping.
	removedKeys map[string][]string
}

// totals is the running cycle roll-up.
type totals struct {
	Added      int
	Removed    int
	Unresolved int
}

func (t *totals) add(o totals) {
	t.Added += o.Added
	t.Removed += o.Removed
	t.Unresolved += o.Unresolved
}

// healthFor returns the cached health report for a provider, defaulting to
// an ok report for providers that were never probed (e.g. registered late).
func (rc *runContext) healthFor(name string) provider.HealthReport {
	if h, ok := rc.health[strings.ToUpper(name)]; ok {
		return h
	}
	return provider.HealthReport{OK: true, Status: provider.StatusOK}
}

// featureHealthy reports whether the provider's health allows this feature.
// A missing per-feature entry counts as healthy.
func (rc *runContext) featureHealthy(name, feature string) bool {
	h := rc.healthFor(name)
	if h.Features == nil {
		return true
	}
	enabled, ok := h.Features[feature]
	return !ok || enabled
}

// rateSlow reports whether writes to the provider should be paced down.
func (rc *runContext) rateSlow(name string) bool {
	h := rc.healthFor(name)
	return h.API != nil && h.API.RateLimit != nil && h.API.RateLimit.Remaining < rateSlowFloor
}

// newApplier builds the cycle applier for a destination provider.
func (rc *runContext) newApplier(dst string) *applier.Applier {
	return &applier.Applier{
		ChunkSize:  rc.cfg.Runtime.ApplyChunkSize,
		ChunkPause: time.Duration(rc.cfg.Runtime.ApplyChunkPauseMs) * time.Millisecond,
		RateSlow:   rc.rateSlow(dst),
		Emit:       rc.emit,
	}
}

// checkpointFor asks the adapter for its per-feature progress hint. Adapters
// without the ActivityReporter probe yield "".
func (rc *runContext) checkpointFor(ctx context.Context, a provider.Adapter, feature string) string {
	reporter, ok := a.(provider.ActivityReporter)
	if !ok {
		return ""
	}
	acts, err := reporter.Activities(ctx, rc.cfg)
	if err != nil {
		logging.Debug().Err(err).Str("provider", a.Name()).Msg("activities probe failed")
		return ""
	}
	return acts[feature]
}

// effectiveIndex composes the planning index for one side: providers with
// delta semantics plan on prev ∪ cur, present semantics on cur alone.
func effectiveIndex(semantics string, prev, cur models.Index) models.Index {
	if semantics == provider.SemanticsDelta {
		return planner.Union(prev, cur)
	}
	return cur
}

// persistFeatureState writes state.json and tombstones.json after a feature
// completes. Persistence failures are logged and swallowed: the in-memory
// result stands and the next cycle replans from the previous baseline.
func (rc *runContext) persistFeatureState() {
	if rc.dryRun {
		return
	}
	if err := rc.store.SaveState(rc.st); err != nil {
		logging.Err(err).Msg("persist state")
	}
	if err := rc.store.SaveTombstones(rc.tombs); err != nil {
		logging.Err(err).Msg("persist tombstones")
	}
}

// presenceKeys returns the keys an item may be recognized by on the opposing
// side: its id-derived aliases, or, for an id-less item, its canonical
// (title/year) key. The title/year fallback of an id-keyed item is too weak
// for presence — two unrelated id-only items would otherwise alias each other
// through an empty title.
func presenceKeys(it models.Item) map[string]struct{} {
	keys := idmap.IDKeys(it)
	if len(keys) == 0 {
		return map[string]struct{}{idmap.CanonicalKey(it): {}}
	}
	return keys
}

// aliasPresence builds the alias -> canonical map of an index for
// alias-aware presence checks.
func aliasPresence(idx models.Index) map[string]string {
	out := make(map[string]string, len(idx)*3)
	for key, it := range idx {
		for alias := range presenceKeys(it) {
			if _, exists := out[alias]; !exists {
				out[alias] = key
			}
		}
	}
	return out
}

// presentIn reports whether an item is present in an index, by canonical key
// or via any presence alias.
func presentIn(it models.Item, idx models.Index, aliases map[string]string) bool {
	if _, ok := idx[idmap.CanonicalKey(it)]; ok {
		return true
	}
	for alias := range presenceKeys(it) {
		if _, ok := aliases[alias]; ok {
			return true
		}
	}
	return false
}

// filterBlackboxRemoves drops planned removals for blackboxed keys when the
// blackbox is configured to guard removals too.
func (rc *runContext) filterBlackboxRemoves(removes []models.Item, dst, feature, pairKey string) []models.Item {
	bb := rc.cfg.Sync.Blackbox
	if !bb.Enabled || !bb.BlockRemoves || len(removes) == 0 {
		return removes
	}
	scope := ""
	if bb.PairScoped {
		scope = pairKey
	}
	blocked := rc.store.BlackboxKeys(dst, feature, scope)
	if len(blocked) == 0 {
		return removes
	}
	kept := removes[:0:0]
	for _, it := range removes {
		hit := false
		for alias := range idmap.KeysForItem(it) {
			if _, ok := blocked[alias]; ok {
				hit = true
				break
			}
		}
		if hit {
			metrics.BlockedOperations.WithLabelValues(pairKey, feature, "blackbox").Inc()
			continue
		}
		kept = append(kept, it)
	}
	return kept
}

// keysOf maps items to their canonical keys, preserving order.
func keysOf(items []models.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = idmap.CanonicalKey(it)
	}
	return out
}
