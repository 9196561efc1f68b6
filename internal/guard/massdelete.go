// Crosswatch - Multi-Provider Media Library Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crosswatch

package guard

import (
	"github.com/tomtom215/crosswatch/internal/events"
	"github.com/tomtom215/crosswatch/internal/metrics"
	"github.com/tomtom215/crosswatch/internal/models"
)

// GuardMassDelete drops an entire removal batch when it exceeds the allowed
// fraction of the baseline, emitting mass_delete:blocked. Adds are never
// affected. Returns the surviving removes and whether the batch was blocked.
func GuardMassDelete(removes []models.Item, baselineSize int, allow bool, ratio float64, dst, feature, pairKey string, emit events.Emitter) ([]models.Item, bool) {
	if allow || len(removes) == 0 {
		return removes, false
	}
	threshold := int(float64(baselineSize) * ratio)
	if threshold < 0 {
		threshold = 0
	}
	if len(removes) <= threshold {
		return removes, false
	}
	if emit != nil {
		emit.Emit("mass_delete:blocked", events.Fields{
			"target":    dst,
			"feature":   feature,
			"pair":      pairKey,
			"attempted": len(removes),
			"baseline":  baselineSize,
			"threshold": threshold,
		})
	}
	metrics.BlockedOperations.WithLabelValues(pairKey, feature, "mass_delete").Add(float64(len(removes)))
	return nil, true
}
