// Crosswatch - Multi-Provider Media Library Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crosswatch

package planner

import (
	"sort"

	"github.com/tomtom215/crosswatch/internal/models"
)

// Diff computes the minimal operation set turning dst into src:
// adds = src \ dst, removes = dst \ src, both on canonical keys.
// Results are sorted by key so plans (and their event trails) are
// deterministic.
func Diff(src, dst models.Index) (adds, removes []models.Item) {
	addKeys := make([]string, 0)
	for key := range src {
		if _, ok := dst[key]; !ok {
			addKeys = append(addKeys, key)
		}
	}
	removeKeys := make([]string, 0)
	for key := range dst {
		if _, ok := src[key]; !ok {
			removeKeys = append(removeKeys, key)
		}
	}
	sort.Strings(addKeys)
	sort.Strings(removeKeys)

	adds = make([]models.Item, 0, len(addKeys))
	for _, key := range addKeys {
		adds = append(adds, src[key].Clone())
	}
	removes = make([]models.Item, 0, len(removeKeys))
	for _, key := range removeKeys {
		removes = append(removes, dst[key].Clone())
	}
	return adds, removes
}

// Union overlays cur on top of prev without mutating either. Drivers use it
// to compose the effective index for providers with delta semantics.
func Union(prev, cur models.Index) models.Index {
	out := make(models.Index, len(prev)+len(cur))
	for key, it := range prev {
		out[key] = it
	}
	for key, it := range cur {
		out[key] = it
	}
	return out
}
