// Crosswatch - Multi-Provider Media Library Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crosswatch

package guard

import (
	"github.com/tomtom215/crosswatch/internal/events"
	"github.com/tomtom215/crosswatch/internal/idmap"
	"github.com/tomtom215/crosswatch/internal/logging"
	"github.com/tomtom215/crosswatch/internal/metrics"
	"github.com/tomtom215/crosswatch/internal/models"
	"github.com/tomtom215/crosswatch/internal/state"
)

// phantomReason is the blackbox reason recorded when the guard suppresses a
// re-add.
const phantomReason = "phantom-replan"

// PhantomGuard suppresses re-adding items that already succeeded on this
// directed pair-feature very recently. A key that succeeded last cycle and
// is planned again means the item silently vanished from the target between
// cycles — re-adding it every cycle would ping-pong forever, so the guard
// parks it in the phantoms file and blackbox instead.
type PhantomGuard struct {
	Store *state.Store
	// TTLSec bounds how old a last-success entry may be and still block.
	// Callers default it to the blackbox cooldown.
	TTLSec int64
}

// Filter removes phantom-blocked items from a planned add list. Blocked
// minimals are persisted to the phantoms file and recorded in the pair's
// blackbox with reason "phantom-replan".
func (g PhantomGuard) Filter(feature, src, dst, pairKey string, adds []models.Item, emit events.Emitter) []models.Item {
	if len(adds) == 0 {
		return adds
	}
	lastSuccess := g.Store.LoadLastSuccess(feature, src, dst)
	phantoms := g.Store.LoadPhantoms(feature, src, dst)
	now := g.Store.Now()

	kept := make([]models.Item, 0, len(adds))
	var blockedKeys []string
	for _, it := range adds {
		key := idmap.CanonicalKey(it)
		blocked := false
		if ts, ok := lastSuccess[key]; ok && (g.TTLSec <= 0 || now-ts <= g.TTLSec) {
			blocked = true
		}
		if _, ok := phantoms[key]; ok {
			blocked = true
		}
		if !blocked {
			kept = append(kept, it)
			continue
		}
		phantoms[key] = it.Clone()
		blockedKeys = append(blockedKeys, key)
		metrics.BlockedOperations.WithLabelValues(pairKey, feature, "phantom").Inc()
	}

	if len(blockedKeys) == 0 {
		return kept
	}
	if err := g.Store.SavePhantoms(feature, src, dst, phantoms); err != nil {
		logging.Err(err).Str("feature", feature).Msg("persist phantoms")
	}
	bb := g.Store.LoadBlackbox(dst, feature, pairKey)
	for _, key := range blockedKeys {
		if _, ok := bb[key]; !ok {
			bb[key] = state.BlackboxEntry{Reason: phantomReason, Since: now}
		}
	}
	if err := g.Store.SaveBlackbox(dst, feature, pairKey, bb); err != nil {
		logging.Err(err).Str("feature", feature).Msg("persist phantom blackbox")
	}
	if emit != nil {
		emit.Emit("blocked.counts", events.Fields{
			"target":  dst,
			"feature": feature,
			"pair":    pairKey,
			"phantom": len(blockedKeys),
			"total":   len(blockedKeys),
		})
	}
	return kept
}

// Confirm records a successful add cycle: each confirmed key gets the
// current timestamp in the last-success map and leaves the phantoms file.
func (g PhantomGuard) Confirm(feature, src, dst string, keys []string) {
	if len(keys) == 0 {
		return
	}
	lastSuccess := g.Store.LoadLastSuccess(feature, src, dst)
	phantoms := g.Store.LoadPhantoms(feature, src, dst)
	now := g.Store.Now()
	for _, key := range keys {
		lastSuccess[key] = now
		delete(phantoms, key)
	}
	if err := g.Store.SaveLastSuccess(feature, src, dst, lastSuccess); err != nil {
		logging.Err(err).Str("feature", feature).Msg("persist last-success map")
	}
	if err := g.Store.SavePhantoms(feature, src, dst, phantoms); err != nil {
		logging.Err(err).Str("feature", feature).Msg("persist phantoms")
	}
}
