// Crosswatch - Multi-Provider Media Library Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crosswatch

package snapshot

import (
	"github.com/tomtom215/crosswatch/internal/events"
	"github.com/tomtom215/crosswatch/internal/metrics"
	"github.com/tomtom215/crosswatch/internal/models"
	"github.com/tomtom215/crosswatch/internal/provider"
)

// suspectReason is the reason string carried by snapshot:suspect events.
const suspectReason = "suspect:no-progress+shrunk"

// ShrinkParams tunes the suspect-shrink guard.
type ShrinkParams struct {
	// MinPrev is the minimum previous-baseline size for the guard to engage.
	MinPrev int
	// Ratio is the shrink fraction below which a snapshot is suspect.
	Ratio float64
}

// GuardShrink decides whether a freshly built snapshot can be trusted for
// planning. A provider with "present" semantics whose index collapsed to a
// fraction of the previous baseline without checkpoint progress is treated
// as a degraded upstream response: the previous baseline is substituted and
// snapshot:suspect emitted. Delta-semantics providers are exempt — a small
// delta is normal.
func GuardShrink(providerName, feature, semantics string, prev, cur models.Index, checkpointAdvanced bool, p ShrinkParams, emit events.Emitter) (models.Index, bool) {
	if semantics != provider.SemanticsPresent {
		return cur, false
	}
	if len(prev) < p.MinPrev || p.MinPrev <= 0 {
		return cur, false
	}
	threshold := int(float64(len(prev)) * p.Ratio)
	if threshold < 1 {
		threshold = 1
	}
	if len(cur) > threshold || checkpointAdvanced {
		return cur, false
	}

	metrics.SnapshotBuilds.WithLabelValues(providerName, feature, "suspect").Inc()
	if emit != nil {
		emit.Emit("snapshot:suspect", events.Fields{
			"provider": providerName,
			"feature":  feature,
			"previous": len(prev),
			"current":  len(cur),
			"reason":   suspectReason,
		})
	}
	return prev, true
}
