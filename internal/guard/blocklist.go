// Crosswatch - Multi-Provider Media Library Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crosswatch

package guard

import (
	"github.com/tomtom215/crosswatch/internal/config"
	"github.com/tomtom215/crosswatch/internal/events"
	"github.com/tomtom215/crosswatch/internal/idmap"
	"github.com/tomtom215/crosswatch/internal/metrics"
	"github.com/tomtom215/crosswatch/internal/models"
	"github.com/tomtom215/crosswatch/internal/state"
)

// BlockCounts reports how many items each blocklist source suppressed.
type BlockCounts struct {
	Tombstone  int `json:"tombstone"`
	Unresolved int `json:"unresolved"`
	Blackbox   int `json:"blackbox"`
}

// Total returns the sum over all sources.
func (c BlockCounts) Total() int { return c.Tombstone + c.Unresolved + c.Blackbox }

// ApplyBlocklist filters a planned add list for a destination, dropping any
// item whose canonical key or alias key is tombstoned for the feature
// (globally or pair-scoped), pending/committed unresolved on the target, or
// blackboxed. Returns the surviving items and per-source counts.
func ApplyBlocklist(store *state.Store, tombs *state.Tombstones, items []models.Item, dst, feature, pairKey string, bb config.BlackboxConfig, emit events.Emitter) ([]models.Item, BlockCounts) {
	if len(items) == 0 {
		return items, BlockCounts{}
	}

	unresolved := store.UnresolvedKeys(dst, feature)
	var blackbox map[string]struct{}
	if bb.Enabled && bb.BlockAdds {
		scope := ""
		if bb.PairScoped {
			scope = pairKey
		}
		blackbox = store.BlackboxKeys(dst, feature, scope)
	}

	kept := make([]models.Item, 0, len(items))
	var counts BlockCounts
	for _, it := range items {
		aliases := idmap.KeysForItem(it)
		switch {
		case tombstoned(tombs, feature, pairKey, aliases):
			counts.Tombstone++
			metrics.BlockedOperations.WithLabelValues(pairKey, feature, "tombstone").Inc()
		case intersects(unresolved, aliases):
			counts.Unresolved++
			metrics.BlockedOperations.WithLabelValues(pairKey, feature, "unresolved").Inc()
		case intersects(blackbox, aliases):
			counts.Blackbox++
			metrics.BlockedOperations.WithLabelValues(pairKey, feature, "blackbox").Inc()
		default:
			kept = append(kept, it)
		}
	}

	if total := counts.Total(); total > 0 && emit != nil {
		emit.Emit("blocked.counts", events.Fields{
			"target":     dst,
			"feature":    feature,
			"pair":       pairKey,
			"tombstone":  counts.Tombstone,
			"unresolved": counts.Unresolved,
			"blackbox":   counts.Blackbox,
			"total":      total,
		})
	}
	return kept, counts
}

func tombstoned(tombs *state.Tombstones, feature, pairKey string, aliases map[string]struct{}) bool {
	if tombs == nil {
		return false
	}
	for key := range aliases {
		if tombs.Has(feature, pairKey, key) {
			return true
		}
	}
	return false
}

func intersects(set map[string]struct{}, aliases map[string]struct{}) bool {
	if len(set) == 0 {
		return false
	}
	for key := range aliases {
		if _, ok := set[key]; ok {
			return true
		}
	}
	return false
}
