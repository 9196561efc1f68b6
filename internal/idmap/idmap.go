// Crosswatch - Multi-Provider Media Library Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crosswatch

package idmap

import (
	"regexp"
	"strings"

	"github.com/tomtom215/crosswatch/internal/models"
)

// Priority lists identifier kinds from most to least authoritative. Canonical
// keys always use the highest-priority id present on the item.
var Priority = []string{
	"imdb", "tmdb", "tvdb", "trakt", "mal", "anilist",
	"kitsu", "anidb", "simkl", "plex", "guid", "slug",
}

// numericKinds are identifier kinds whose values are digit strings; any
// non-digit characters are stripped on normalization.
var numericKinds = map[string]bool{
	"tmdb": true, "tvdb": true, "trakt": true, "simkl": true,
	"mal": true, "anilist": true, "kitsu": true, "anidb": true,
	"plex": true, "jellyfin": true,
}

// sentinels are placeholder values that mean "no id".
var sentinels = map[string]bool{
	"": true, "none": true, "null": true, "nan": true,
	"undefined": true, "unknown": true, "0": true,
}

var (
	imdbRe     = regexp.MustCompile(`^tt\d+$`)
	nonDigitRe = regexp.MustCompile(`\D`)
)

// NormalizeID normalizes a single identifier value for the given kind.
// It returns the empty string when the value is unusable.
func NormalizeID(kind, value string) string {
	kind = strings.ToLower(strings.TrimSpace(kind))
	value = strings.TrimSpace(value)
	if sentinels[strings.ToLower(value)] {
		return ""
	}
	switch {
	case kind == "imdb":
		v := strings.ToLower(value)
		if imdbRe.MatchString(v) {
			return v
		}
		if digits := nonDigitRe.ReplaceAllString(v, ""); digits != "" && digits == v {
			return "tt" + digits
		}
		// Mixed garbage such as "tt" or "imdb:abc" carries no id.
		return ""
	case numericKinds[kind]:
		digits := nonDigitRe.ReplaceAllString(value, "")
		if digits == "" || sentinels[digits] {
			return ""
		}
		return digits
	case kind == "slug":
		return strings.ToLower(value)
	case kind == "guid":
		return value
	default:
		return value
	}
}

// NormalizeIDs normalizes every id in the map and drops unusable entries.
func NormalizeIDs(ids map[string]string) map[string]string {
	if len(ids) == 0 {
		return nil
	}
	out := make(map[string]string, len(ids))
	for kind, value := range ids {
		k := strings.ToLower(strings.TrimSpace(kind))
		if k == "" {
			continue
		}
		if v := NormalizeID(k, value); v != "" {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Normalize enforces id and type normalization on an item, strips empty
// fields, and preserves show ids, library id, rating and timestamp fields.
func Normalize(it models.Item) models.Item {
	out := it.Clone()
	out.Type = models.NormalizeType(it.Type)
	out.Title = strings.TrimSpace(it.Title)
	out.IDs = NormalizeIDs(it.IDs)
	out.ShowIDs = NormalizeIDs(it.ShowIDs)
	if !models.IsEpisodic(out.Type) {
		out.ShowIDs = nil
		out.Season = nil
		out.Episode = nil
		out.SeriesTitle = ""
	}
	if out.Rating < 0 {
		out.Rating = 0
	}
	if out.Rating > 10 {
		out.Rating = 10
	}
	return out
}

// NormalizeRating maps a provider rating onto the canonical 1..10 scale.
// scale is the provider's maximum (5, 10 or 100). Zero or negative input
// means unrated and returns 0.
func NormalizeRating(value float64, scale int) int {
	if value <= 0 {
		return 0
	}
	var r float64
	switch scale {
	case 5:
		r = value * 2
	case 100:
		r = value / 10
	default:
		r = value
	}
	n := int(r + 0.5)
	if n < 1 {
		n = 1
	}
	if n > 10 {
		n = 10
	}
	return n
}

// MergeIDs combines two id maps. Priority kinds keep the existing value and
// fill gaps from the incoming map; remaining kinds are swept in afterwards.
func MergeIDs(existing, incoming map[string]string) map[string]string {
	existing = NormalizeIDs(existing)
	incoming = NormalizeIDs(incoming)
	out := make(map[string]string, len(existing)+len(incoming))
	for _, kind := range Priority {
		if v, ok := existing[kind]; ok {
			out[kind] = v
		} else if v, ok := incoming[kind]; ok {
			out[kind] = v
		}
	}
	for kind, v := range existing {
		if _, ok := out[kind]; !ok {
			out[kind] = v
		}
	}
	for kind, v := range incoming {
		if _, ok := out[kind]; !ok {
			out[kind] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
