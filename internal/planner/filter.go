// Crosswatch - Multi-Provider Media Library Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crosswatch

package planner

import (
	"github.com/tomtom215/crosswatch/internal/models"
)

// FilterRatings narrows a ratings index before planning. types is an
// allow-list of media types (plural aliases accepted, empty = all);
// fromDate is a "YYYY-MM-DD" floor on the rated_at date prefix (empty = no
// floor). Items without a rated_at pass the date filter: presence alone is
// meaningful when a provider withholds timestamps.
func FilterRatings(idx models.Index, types []string, fromDate string) models.Index {
	allow := map[string]bool{}
	for _, t := range types {
		allow[models.NormalizeType(t)] = true
	}
	out := make(models.Index, len(idx))
	for key, it := range idx {
		if len(allow) > 0 && !allow[models.NormalizeType(it.Type)] {
			continue
		}
		if fromDate != "" && it.RatedAt != "" {
			if datePrefix(it.RatedAt) < fromDate {
				continue
			}
		}
		out[key] = it
	}
	return out
}

// datePrefix extracts the YYYY-MM-DD prefix of an RFC 3339 timestamp.
func datePrefix(ts string) string {
	if len(ts) < 10 {
		return ts
	}
	return ts[:10]
}
