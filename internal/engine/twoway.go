// Crosswatch - Multi-Provider Media Library Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crosswatch

package engine

import (
	"context"
	"sort"
	"strings"

	"github.com/tomtom215/crosswatch/internal/config"
	"github.com/tomtom215/crosswatch/internal/events"
	"github.com/tomtom215/crosswatch/internal/guard"
	"github.com/tomtom215/crosswatch/internal/metrics"
	"github.com/tomtom215/crosswatch/internal/models"
	"github.com/tomtom215/crosswatch/internal/planner"
	"github.com/tomtom215/crosswatch/internal/provider"
	"github.com/tomtom215/crosswatch/internal/snapshot"
)

// pairResult is the detailed two-way roll-up, sides in sorted-name order.
type pairResult struct {
	AddsToA, AddsToB             int
	RemFromA, RemFromB           int
	UnresolvedToA, UnresolvedToB int
}

func (p pairResult) totals() totals {
	return totals{
		Added:      p.AddsToA + p.AddsToB,
		Removed:    p.RemFromA + p.RemFromB,
		Unresolved: p.UnresolvedToA + p.UnresolvedToB,
	}
}

// twoWaySide bundles everything the two-way driver tracks per provider.
type twoWaySide struct {
	name    string
	adapter provider.Adapter
	prev    models.Index
	eff     models.Index
	cp      string
	suspect bool
	// base is the working baseline mutated by confirmed writes.
	base models.Index
}

// runTwoWay converges both sides of a pair onto their union, minus genuine
// deletions. An item missing from one side is an add candidate unless a
// tombstone or a freshly observed deletion says it was removed on purpose —
// then it is deleted from the side that still has it.
func (rc *runContext) runTwoWay(ctx context.Context, pair config.PairConfig, feature string) pairResult {
	// Sides are ordered by name so state files and events are stable no
	// matter how the pair is written in config.
	nameA, nameB := strings.ToUpper(pair.Source), strings.ToUpper(pair.Target)
	if nameB < nameA {
		nameA, nameB = nameB, nameA
	}
	pairKey := config.PairKey(nameA, nameB)
	featCfg := pair.FeatureFor(feature)

	adapterA, errA := rc.reg.Lookup(nameA)
	adapterB, errB := rc.reg.Lookup(nameB)
	if errA != nil || errB != nil {
		rc.skipWrites(nameA, nameB, feature, "provider not registered")
		return pairResult{}
	}
	for _, name := range []string{nameA, nameB} {
		if h := rc.healthFor(name); h.Status == provider.StatusDown || h.Status == provider.StatusAuthFailed {
			rc.skipWrites(nameA, nameB, feature, name+" "+h.Status)
			return pairResult{}
		}
	}

	indexes, degraded := rc.builder.BuildForFeature(ctx, rc.cfg, feature, rc.reg, rc.emit)
	if degraded[nameA] || degraded[nameB] {
		rc.skipWrites(nameA, nameB, feature, "snapshot failed")
		return pairResult{}
	}

	load := func(a provider.Adapter, name string) *twoWaySide {
		cur := indexes[name]
		if cur == nil {
			cur = models.Index{}
		}
		prev := rc.st.BaselineFor(name, feature)
		storedCp := rc.st.CheckpointFor(name, feature)
		curCp := rc.checkpointFor(ctx, a, feature)
		advanced := curCp != "" && curCp != storedCp
		caps := a.Capabilities()
		guarded, suspect := snapshot.GuardShrink(name, feature, caps.IndexSemantics, prev, cur, advanced, snapshot.ShrinkParams{
			MinPrev: rc.cfg.Runtime.SuspectMinPrev,
			Ratio:   rc.cfg.Runtime.SuspectShrinkRatio,
		}, rc.emit)
		eff := effectiveIndex(caps.IndexSemantics, prev, guarded)
		cp := curCp
		if suspect {
			cp = storedCp
		}
		return &twoWaySide{name: name, adapter: a, prev: prev, eff: eff, cp: cp, suspect: suspect}
	}
	sideA := load(adapterA, nameA)
	sideB := load(adapterB, nameB)

	// Bootstrap: with no history on either side and no deletion record, every
	// one-sided item is a legitimate add. Removals would be guesses.
	bootstrap := len(sideA.prev) == 0 && len(sideB.prev) == 0 && !rc.hasFeatureTombstones(feature)

	// Observed-deletion inference is a pair-wide contract: unless BOTH
	// adapters attest their deletions, a disappearance on either side may be
	// a partial listing, so neither side's disappearances become tombstones.
	observedOK := adapterA.Capabilities().ObservedDeletes && adapterB.Capabilities().ObservedDeletes
	if !bootstrap && observedOK {
		rc.inferObservedDeletes(feature, pairKey, sideA)
		rc.inferObservedDeletes(feature, pairKey, sideB)
	}

	var addsToA, addsToB, removesFromA, removesFromB []models.Item
	if feature == models.FeatureRatings {
		planA := planner.FilterRatings(sideA.eff, featCfg.Types, featCfg.FromDate)
		planB := planner.FilterRatings(sideB.eff, featCfg.Types, featCfg.FromDate)
		var unratesB, unratesA []models.Item
		addsToB, unratesB = planner.DiffRatings(planA, planB, featCfg.PropagateTimestamps)
		addsToA, unratesA = planner.DiffRatings(planB, planA, featCfg.PropagateTimestamps)
		// A one-sided rating is an upsert candidate by default; it becomes an
		// unrate only when the item itself was deliberately deleted.
		removesFromB = keepTombstoned(rc, feature, pairKey, unratesB)
		removesFromA = keepTombstoned(rc, feature, pairKey, unratesA)
	} else {
		addsToB, removesFromA = rc.planDirection(feature, pairKey, sideA, sideB)
		addsToA, removesFromB = rc.planDirection(feature, pairKey, sideB, sideA)
	}

	allowAdd := featCfg.Add && rc.cfg.Sync.EnableAdd
	allowRemove := featCfg.Remove && rc.cfg.Sync.EnableRemove && !bootstrap
	if rc.cfg.Sync.DropGuard && (sideA.suspect || sideB.suspect) {
		allowRemove = false
	}
	if !allowAdd {
		addsToA, addsToB = nil, nil
	}
	if !allowRemove {
		removesFromA, removesFromB = nil, nil
	}
	for _, p := range []struct {
		adds, removes []models.Item
	}{{addsToA, removesFromA}, {addsToB, removesFromB}} {
		metrics.PlannedOperations.WithLabelValues(pairKey, feature, "add").Add(float64(len(p.adds)))
		metrics.PlannedOperations.WithLabelValues(pairKey, feature, "remove").Add(float64(len(p.removes)))
	}
	rc.emit.Emit("two:plan", events.Fields{
		"pair":       pairKey,
		"feature":    feature,
		"adds_to_a":  len(addsToA),
		"adds_to_b":  len(addsToB),
		"rem_from_a": len(removesFromA),
		"rem_from_b": len(removesFromB),
	})

	removesFromA = rc.filterBlackboxRemoves(removesFromA, nameA, feature, pairKey)
	removesFromB = rc.filterBlackboxRemoves(removesFromB, nameB, feature, pairKey)
	removesFromA, _ = guard.GuardMassDelete(removesFromA, len(sideA.eff), rc.cfg.Sync.AllowMassDelete, massDeleteRatio, nameA, feature, pairKey, rc.emit)
	removesFromB, _ = guard.GuardMassDelete(removesFromB, len(sideB.eff), rc.cfg.Sync.AllowMassDelete, massDeleteRatio, nameB, feature, pairKey, rc.emit)

	addsToA, _ = guard.ApplyBlocklist(rc.store, rc.tombs, addsToA, nameA, feature, pairKey, rc.cfg.Sync.Blackbox, rc.emit)
	addsToB, _ = guard.ApplyBlocklist(rc.store, rc.tombs, addsToB, nameB, feature, pairKey, rc.cfg.Sync.Blackbox, rc.emit)
	if !rc.dryRun {
		pg := guard.PhantomGuard{Store: rc.store, TTLSec: int64(rc.cfg.Sync.Blackbox.CooldownDays) * 86400}
		addsToA = pg.Filter(feature, nameB, nameA, pairKey, addsToA, rc.emit)
		addsToB = pg.Filter(feature, nameA, nameB, pairKey, addsToB, rc.emit)
	}

	sideA.base = models.CloneIndex(sideA.eff)
	sideB.base = models.CloneIndex(sideB.eff)

	// Each non-empty batch is bracketed by start/done events so a crashed
	// cycle's trail shows which side's write was in flight.
	apply := func(op, side string, count int, run func() int) int {
		if count == 0 {
			return 0
		}
		prefix := "two:apply:" + op + ":" + side
		rc.emit.Emit(prefix+":start", events.Fields{"pair": pairKey, "feature": feature, "count": count})
		confirmed := run()
		rc.emit.Emit(prefix+":done", events.Fields{"pair": pairKey, "feature": feature, "confirmed": confirmed})
		return confirmed
	}

	// Removals land first so a deletion on one side is never raced by the
	// re-add planned for the same cycle.
	var res pairResult
	res.RemFromA = apply("remove", "A", len(removesFromA), func() int {
		return rc.applyRemoves(ctx, sideA.adapter, nameA, feature, pairKey, removesFromA, sideA.base)
	})
	res.RemFromB = apply("remove", "B", len(removesFromB), func() int {
		return rc.applyRemoves(ctx, sideB.adapter, nameB, feature, pairKey, removesFromB, sideB.base)
	})
	res.AddsToA = apply("add", "A", len(addsToA), func() int {
		added, unresolved := rc.applyAdds(ctx, sideA.adapter, nameB, nameA, feature, pairKey, addsToA, sideA.base)
		res.UnresolvedToA = unresolved
		return added
	})
	res.AddsToB = apply("add", "B", len(addsToB), func() int {
		added, unresolved := rc.applyAdds(ctx, sideB.adapter, nameA, nameB, feature, pairKey, addsToB, sideB.base)
		res.UnresolvedToB = unresolved
		return added
	})

	if !rc.dryRun {
		rc.st.SetBaseline(nameA, feature, sideA.base, sideA.cp)
		rc.st.SetBaseline(nameB, feature, sideB.base, sideB.cp)
		rc.persistFeatureState()
	}
	return res
}

// planDirection plans from one side onto its peer: items the peer lacks are
// adds to the peer, unless a tombstone marks a deliberate deletion — then the
// surviving copy on this side is removed instead.
func (rc *runContext) planDirection(feature, pairKey string, from, peer *twoWaySide) (addsToPeer, removesFromThis []models.Item) {
	peerAliases := aliasPresence(peer.eff)
	for _, key := range sortedIndexKeys(from.eff) {
		it := from.eff[key]
		if presentIn(it, peer.eff, peerAliases) {
			continue
		}
		if rc.tombs.HasItem(feature, pairKey, it) {
			removesFromThis = append(removesFromThis, it.Clone())
			continue
		}
		addsToPeer = append(addsToPeer, it.Clone())
	}
	return addsToPeer, removesFromThis
}

// inferObservedDeletes tombstones items that vanished from a side between
// cycles. The caller has already established the pair-wide observed_deletes
// capability; this side still has to report present semantics, and the
// cycle's snapshot must not be suspect.
func (rc *runContext) inferObservedDeletes(feature, pairKey string, side *twoWaySide) {
	if !rc.cfg.Sync.IncludeObservedDeletes || side.suspect {
		return
	}
	if side.adapter.Capabilities().IndexSemantics != provider.SemanticsPresent {
		return
	}
	now := rc.store.Now()
	observed := 0
	for key, it := range side.prev {
		if _, ok := side.eff[key]; ok {
			continue
		}
		if rc.tombs.HasItem(feature, pairKey, it) {
			continue
		}
		if rc.dryRun {
			observed++
			continue
		}
		rc.tombs.MarkRemoved(feature, pairKey, it, now)
		observed++
	}
	if observed > 0 {
		rc.emit.Emit("deletes:observed", events.Fields{
			"provider": side.name,
			"feature":  feature,
			"pair":     pairKey,
			"count":    observed,
		})
	}
}

// hasFeatureTombstones reports whether any tombstone token exists for the
// feature, in either the global or a pair-scoped form.
func (rc *runContext) hasFeatureTombstones(feature string) bool {
	for token := range rc.tombs.Keys {
		if strings.HasPrefix(token, feature+"|") || strings.HasPrefix(token, feature+":") {
			return true
		}
	}
	return false
}

// keepTombstoned retains only items whose deletion is evidenced by a
// tombstone.
func keepTombstoned(rc *runContext, feature, pairKey string, items []models.Item) []models.Item {
	var out []models.Item
	for _, it := range items {
		if rc.tombs.HasItem(feature, pairKey, it) {
			out = append(out, it)
		}
	}
	return out
}

// sortedIndexKeys returns the canonical keys of an index in sorted order so
// plans stay deterministic.
func sortedIndexKeys(idx models.Index) []string {
	out := make([]string, 0, len(idx))
	for key := range idx {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
