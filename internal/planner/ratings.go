// Crosswatch - Multi-Provider Media Library Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crosswatch

package planner

import (
	"sort"
	"time"

	"github.com/tomtom215/crosswatch/internal/models"
)

// DiffRatings plans rating reconciliation from src onto dst.
//
// An upsert is emitted for every rated src item that is absent in dst, has a
// different rating, or — when propagateTimestamps is set — carries a strictly
// newer rated_at. Rated dst items missing from src become unrates. Unrated
// items on either side never participate.
func DiffRatings(src, dst models.Index, propagateTimestamps bool) (upserts, unrates []models.Item) {
	upsertKeys := make([]string, 0)
	for key, s := range src {
		if s.Rating == 0 {
			continue
		}
		d, ok := dst[key]
		switch {
		case !ok, d.Rating != s.Rating:
			upsertKeys = append(upsertKeys, key)
		case propagateTimestamps && newerTimestamp(s.RatedAt, d.RatedAt):
			upsertKeys = append(upsertKeys, key)
		}
	}
	unrateKeys := make([]string, 0)
	for key, d := range dst {
		if d.Rating == 0 {
			continue
		}
		if _, ok := src[key]; !ok {
			unrateKeys = append(unrateKeys, key)
		}
	}
	sort.Strings(upsertKeys)
	sort.Strings(unrateKeys)

	upserts = make([]models.Item, 0, len(upsertKeys))
	for _, key := range upsertKeys {
		upserts = append(upserts, src[key].Clone())
	}
	unrates = make([]models.Item, 0, len(unrateKeys))
	for _, key := range unrateKeys {
		unrates = append(unrates, dst[key].Clone())
	}
	return upserts, unrates
}

// newerTimestamp reports whether a is strictly after b. Unparseable or
// missing timestamps never count as newer.
func newerTimestamp(a, b string) bool {
	if a == "" {
		return false
	}
	ta, err := time.Parse(time.RFC3339, a)
	if err != nil {
		return false
	}
	if b == "" {
		return true
	}
	tb, err := time.Parse(time.RFC3339, b)
	if err != nil {
		return true
	}
	return ta.After(tb)
}
