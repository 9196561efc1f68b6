// Crosswatch - Multi-Provider Media Library Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crosswatch

package idmap

import (
	"fmt"
	"strings"

	"github.com/tomtom215/crosswatch/internal/models"
)

// bestID returns the highest-priority normalized id as "kind:value", or "".
func bestID(ids map[string]string) string {
	ids = NormalizeIDs(ids)
	for _, kind := range Priority {
		if v, ok := ids[kind]; ok {
			return kind + ":" + strings.ToLower(v)
		}
	}
	return ""
}

// episodicFragment renders the season/episode suffix appended to the parent
// show key: "#season:N" for seasons, "#sNNeMM" for episodes.
func episodicFragment(it models.Item) string {
	typ := models.NormalizeType(it.Type)
	switch typ {
	case models.TypeSeason:
		if it.Season != nil {
			return fmt.Sprintf("#season:%d", *it.Season)
		}
	case models.TypeEpisode:
		if it.Season != nil && it.Episode != nil {
			return fmt.Sprintf("#s%02de%02d", *it.Season, *it.Episode)
		}
	}
	return ""
}

// fallbackKey is the id-less last resort: type, lowercased title, year.
// Anime is folded into show here so that the same title keys identically
// across providers that disagree about the anime/show distinction.
func fallbackKey(it models.Item) string {
	typ := models.NormalizeType(it.Type)
	if typ == "" {
		typ = "unknown"
	}
	title := strings.ToLower(strings.TrimSpace(it.Title))
	return fmt.Sprintf("%s|title:%s|year:%d", typ, title, it.Year)
}

// CanonicalKey computes the deterministic key of an item:
//
//  1. season/episode items with a usable show id key off the show id plus an
//     episodic fragment,
//  2. otherwise the highest-priority own id as "kind:value",
//  3. otherwise the type/title/year fallback.
//
// CanonicalKey is total: it never fails, and an item with no usable content
// yields "unknown:".
func CanonicalKey(it models.Item) string {
	typ := models.NormalizeType(it.Type)
	if models.IsEpisodic(typ) {
		if show := bestID(it.ShowIDs); show != "" {
			if frag := episodicFragment(it); frag != "" {
				return show + frag
			}
			return show
		}
	}
	if best := bestID(it.IDs); best != "" {
		return best
	}
	if typ == "" && it.Title == "" && it.Year == 0 {
		return "unknown:"
	}
	return fallbackKey(it)
}

// IDKeys returns the id-derived alias keys of an item: every "kind:value" id
// plus the show-scoped episodic composites. Unlike KeysForItem it excludes
// the title/year fallback, so an id-keyed item with no title never aliases
// another one through the empty fallback string.
func IDKeys(it models.Item) map[string]struct{} {
	keys := make(map[string]struct{}, 8)
	for kind, v := range NormalizeIDs(it.IDs) {
		keys[kind+":"+strings.ToLower(v)] = struct{}{}
	}
	frag := ""
	if models.IsEpisodic(models.NormalizeType(it.Type)) {
		frag = episodicFragment(it)
	}
	for kind, v := range NormalizeIDs(it.ShowIDs) {
		show := kind + ":" + strings.ToLower(v)
		if frag != "" {
			keys[show+frag] = struct{}{}
		} else {
			keys[show] = struct{}{}
		}
	}
	return keys
}

// KeysForItem returns the full alias key set of an item: the id-derived keys,
// the title/year fallback, and the canonical key. Blocklist and tombstone
// checks use this set to cross-reference items that expose different id
// subsets on different providers.
func KeysForItem(it models.Item) map[string]struct{} {
	keys := IDKeys(it)
	keys[fallbackKey(it)] = struct{}{}
	keys[CanonicalKey(it)] = struct{}{}
	return keys
}
