// Crosswatch - Multi-Provider Media Library Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crosswatch

package engine

import (
	"context"
	"strings"

	"github.com/tomtom215/crosswatch/internal/applier"
	"github.com/tomtom215/crosswatch/internal/config"
	"github.com/tomtom215/crosswatch/internal/events"
	"github.com/tomtom215/crosswatch/internal/guard"
	"github.com/tomtom215/crosswatch/internal/idmap"
	"github.com/tomtom215/crosswatch/internal/logging"
	"github.com/tomtom215/crosswatch/internal/metrics"
	"github.com/tomtom215/crosswatch/internal/models"
	"github.com/tomtom215/crosswatch/internal/planner"
	"github.com/tomtom215/crosswatch/internal/provider"
	"github.com/tomtom215/crosswatch/internal/snapshot"
	"github.com/tomtom215/crosswatch/internal/state"
)

// unresolvedReason is the annotation recorded for provider-declared
// unresolved items.
const unresolvedReason = "provider-unresolved"

// runOneWay mirrors one feature from pair.Source onto pair.Target. The
// source is authoritative: the target converges toward it, limited by the
// pair's add/remove flags and every safety guard.
func (rc *runContext) runOneWay(ctx context.Context, pair config.PairConfig, feature string) totals {
	src := strings.ToUpper(pair.Source)
	dst := strings.ToUpper(pair.Target)
	pairKey := config.PairKey(src, dst)
	featCfg := pair.FeatureFor(feature)

	srcAdapter, err := rc.reg.Lookup(src)
	if err != nil {
		rc.skipWrites(src, dst, feature, "source not registered")
		return totals{}
	}
	dstAdapter, err := rc.reg.Lookup(dst)
	if err != nil {
		rc.skipWrites(src, dst, feature, "target not registered")
		return totals{}
	}
	if h := rc.healthFor(dst); h.Status == provider.StatusDown || h.Status == provider.StatusAuthFailed {
		rc.skipWrites(src, dst, feature, "target "+h.Status)
		return totals{}
	}
	if h := rc.healthFor(src); h.Status == provider.StatusDown {
		rc.skipWrites(src, dst, feature, "source down")
		return totals{}
	}

	// Snapshot both sides. A failed source snapshot means nothing can be
	// planned; a failed target snapshot would turn every source item into a
	// blind add, so it is skipped too.
	indexes, degraded := rc.builder.BuildForFeature(ctx, rc.cfg, feature, rc.reg, rc.emit)
	if degraded[src] {
		rc.skipWrites(src, dst, feature, "source snapshot failed")
		return totals{}
	}
	if degraded[dst] {
		rc.skipWrites(src, dst, feature, "target snapshot failed")
		return totals{}
	}
	srcCur, dstCur := indexes[src], indexes[dst]
	if srcCur == nil {
		srcCur = models.Index{}
	}
	if dstCur == nil {
		dstCur = models.Index{}
	}

	side := func(a provider.Adapter, name string, cur models.Index) (models.Index, string, bool) {
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
		return eff, cp, suspect
	}
	srcEff, srcCp, srcSuspect := side(srcAdapter, src, srcCur)
	dstEff, dstCp, dstSuspect := side(dstAdapter, dst, dstCur)

	// Plan. Ratings diff on the filtered views; everything else on presence.
	var adds, removes []models.Item
	if feature == models.FeatureRatings {
		srcPlan := planner.FilterRatings(srcEff, featCfg.Types, featCfg.FromDate)
		dstPlan := planner.FilterRatings(dstEff, featCfg.Types, featCfg.FromDate)
		adds, removes = planner.DiffRatings(srcPlan, dstPlan, featCfg.PropagateTimestamps)
	} else {
		adds, removes = planner.Diff(srcEff, dstEff)
	}

	// A target-only item seen for the first time is not a removal candidate:
	// with no baseline entry for it, there is no observation that the source
	// ever held and then dropped it. It becomes removable once a successful
	// cycle has recorded it in the destination baseline.
	removes = keepBaselined(removes, rc.st.BaselineFor(dst, feature))

	allowAdd := featCfg.Add && rc.cfg.Sync.EnableAdd
	allowRemove := featCfg.Remove && rc.cfg.Sync.EnableRemove
	if rc.cfg.Sync.DropGuard && (srcSuspect || dstSuspect) {
		allowRemove = false
	}
	if !allowAdd {
		adds = nil
	}
	if !allowRemove {
		removes = nil
	}
	metrics.PlannedOperations.WithLabelValues(pairKey, feature, "add").Add(float64(len(adds)))
	metrics.PlannedOperations.WithLabelValues(pairKey, feature, "remove").Add(float64(len(removes)))
	rc.emit.Emit("one:plan", events.Fields{
		"source":  src,
		"target":  dst,
		"feature": feature,
		"adds":    len(adds),
		"removes": len(removes),
	})

	removes = rc.filterBlackboxRemoves(removes, dst, feature, pairKey)
	removes, _ = guard.GuardMassDelete(removes, len(dstEff), rc.cfg.Sync.AllowMassDelete, massDeleteRatio, dst, feature, pairKey, rc.emit)
	adds, _ = guard.ApplyBlocklist(rc.store, rc.tombs, adds, dst, feature, pairKey, rc.cfg.Sync.Blackbox, rc.emit)
	if !rc.dryRun {
		pg := guard.PhantomGuard{Store: rc.store, TTLSec: int64(rc.cfg.Sync.Blackbox.CooldownDays) * 86400}
		adds = pg.Filter(feature, src, dst, pairKey, adds, rc.emit)
	}

	var out totals
	dstBase := models.CloneIndex(dstEff)

	added, unresolved := rc.applyAdds(ctx, dstAdapter, src, dst, feature, pairKey, adds, dstBase)
	out.Added = added
	out.Unresolved = unresolved

	out.Removed = rc.applyRemoves(ctx, dstAdapter, dst, feature, pairKey, removes, dstBase)

	if !rc.dryRun {
		rc.st.SetBaseline(src, feature, srcEff, srcCp)
		rc.st.SetBaseline(dst, feature, dstBase, dstCp)
		rc.persistFeatureState()
	}
	return out
}

// applyAdds writes planned additions to the destination and reconciles the
// provider's claimed count against observed unresolved growth. Unless
// verify-after-write is both configured and supported by the adapter, any new
// unresolved item voids the claim and the effective add count is zero.
// Confirmed items land in dstBase.
func (rc *runContext) applyAdds(ctx context.Context, dstAdapter provider.Adapter, src, dst, feature, pairKey string, adds []models.Item, dstBase models.Index) (added, unresolved int) {
	if len(adds) == 0 {
		return 0, 0
	}
	before := rc.store.UnresolvedKeys(dst, feature)

	ap := rc.newApplier(dst)
	res := ap.Apply(ctx, dstAdapter, rc.cfg, applier.OpAdd, dst, feature, adds, rc.dryRun)
	if res.Err != nil {
		logging.Err(res.Err).Str("target", dst).Str("feature", feature).Msg("add batch failed")
	}
	if rc.dryRun {
		return res.Confirmed, len(res.Unresolved)
	}

	if err := rc.store.AppendPending(dst, feature, res.Unresolved, idmap.CanonicalKey, unresolvedReason, ""); err != nil {
		logging.Err(err).Str("target", dst).Str("feature", feature).Msg("persist pending unresolved")
	}
	after := rc.store.UnresolvedKeys(dst, feature)
	newUnresolved := 0
	for key := range after {
		if _, ok := before[key]; !ok {
			newUnresolved++
		}
	}

	// Split the plan into confirmed and failed keys by what the unresolved
	// set says now.
	var confirmedItems []models.Item
	var failedKeys []string
	for _, it := range adds {
		if _, ok := after[idmap.CanonicalKey(it)]; ok {
			failedKeys = append(failedKeys, idmap.CanonicalKey(it))
		} else {
			confirmedItems = append(confirmedItems, it)
		}
	}

	effective := res.Confirmed
	if n := len(confirmedItems); effective > n {
		effective = n
	}
	verify := rc.cfg.Sync.VerifyAfterWrite && dstAdapter.Capabilities().VerifyAfterWrite
	if newUnresolved > 0 && !verify {
		rc.emit.Emit("apply:add:corrected", events.Fields{
			"target":         dst,
			"feature":        feature,
			"claimed":        res.Confirmed,
			"corrected":      0,
			"new_unresolved": newUnresolved,
		})
		effective = 0
	}
	if effective > 0 {
		confirmedItems = confirmedItems[:effective]
	} else {
		confirmedItems = nil
	}

	confirmedKeys := keysOf(confirmedItems)
	var changes []state.RatingsChange
	for _, it := range confirmedItems {
		key := idmap.CanonicalKey(it)
		if feature == models.FeatureRatings {
			change := state.RatingsChange{Key: key, Rating: it.Rating, Pair: pairKey, TS: rc.store.Now()}
			if prev, ok := dstBase[key]; ok {
				change.PrevRating = prev.Rating
			}
			changes = append(changes, change)
		}
		dstBase[key] = it.Clone()
	}
	if err := rc.store.AppendRatingsChanges(changes); err != nil {
		logging.Err(err).Str("target", dst).Msg("persist ratings journal")
	}

	bb := rc.cfg.Sync.Blackbox
	scope := ""
	if bb.PairScoped {
		scope = pairKey
	}
	if bb.Enabled && len(failedKeys) > 0 {
		promoted := rc.store.RecordBlackboxFailure(dst, feature, scope, failedKeys, "add-failed", bb.PromoteAfter, bb.UnresolvedDays)
		if len(promoted) > 0 {
			logging.Warn().Str("target", dst).Str("feature", feature).Int("promoted", len(promoted)).Msg("keys promoted to blackbox")
		}
	}
	if len(confirmedKeys) > 0 {
		rc.store.RecordBlackboxSuccess(dst, feature, scope, confirmedKeys)
		if err := rc.store.ClearUnresolved(dst, feature, confirmedKeys); err != nil {
			logging.Err(err).Str("target", dst).Str("feature", feature).Msg("clear unresolved")
		}
		pg := guard.PhantomGuard{Store: rc.store}
		pg.Confirm(feature, src, dst, confirmedKeys)
	}
	return effective, len(res.Unresolved)
}

// applyRemoves writes planned removals and tombstones each confirmed one.
// When the provider confirms fewer removals than attempted, the confirmed
// count is attributed to the batch prefix in plan order.
func (rc *runContext) applyRemoves(ctx context.Context, dstAdapter provider.Adapter, dst, feature, pairKey string, removes []models.Item, dstBase models.Index) int {
	if len(removes) == 0 {
		return 0
	}
	ap := rc.newApplier(dst)
	res := ap.Apply(ctx, dstAdapter, rc.cfg, applier.OpRemove, dst, feature, removes, rc.dryRun)
	if res.Err != nil {
		logging.Err(res.Err).Str("target", dst).Str("feature", feature).Msg("remove batch failed")
	}
	if rc.dryRun {
		return res.Confirmed
	}

	confirmed := res.Confirmed
	if confirmed > len(removes) {
		confirmed = len(removes)
	}
	now := rc.store.Now()
	for _, it := range removes[:confirmed] {
		key := idmap.CanonicalKey(it)
		rc.tombs.MarkRemoved(feature, pairKey, it, now)
		delete(dstBase, key)
		rc.removedKeys[feature] = append(rc.removedKeys[feature], key)
	}
	return confirmed
}

// keepBaselined keeps removal candidates whose key the previous destination
// baseline contains. With no previous baseline nothing is removable.
func keepBaselined(removes []models.Item, prev models.Index) []models.Item {
	if len(removes) == 0 || len(prev) == 0 {
		return nil
	}
	kept := removes[:0:0]
	for _, it := range removes {
		if _, ok := prev[idmap.CanonicalKey(it)]; ok {
			kept = append(kept, it)
		}
	}
	return kept
}

// skipWrites emits the writes:skipped marker for a feature that could not
// run safely.
func (rc *runContext) skipWrites(src, dst, feature, reason string) {
	logging.Warn().Str("source", src).Str("target", dst).Str("feature", feature).Str("reason", reason).Msg("writes skipped")
	rc.emit.Emit("writes:skipped", events.Fields{
		"source":  src,
		"target":  dst,
		"feature": feature,
		"reason":  reason,
	})
}
