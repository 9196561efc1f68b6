// Crosswatch - Multi-Provider Media Library Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crosswatch

package state

import (
	"github.com/tomtom215/crosswatch/internal/idmap"
	"github.com/tomtom215/crosswatch/internal/models"
)

// Tombstones is the tombstones.json document: deletion markers keyed by
// token, valued with the epoch seconds of the deletion.
//
// Tokens take two forms:
//
//	"{feature}|{key}"            global
//	"{feature}:{PAIR-KEY}|{key}" pair-scoped
//
// where key is the canonical key or any alias key of the removed item.
type Tombstones struct {
	Keys     map[string]int64 `json:"keys"`
	PrunedAt *int64           `json:"pruned_at"`
	TTLSec   *int64           `json:"ttl_sec"`
}

// GlobalToken builds the global tombstone token for a feature and key.
func GlobalToken(feature, key string) string {
	return feature + "|" + key
}

// PairToken builds the pair-scoped tombstone token. pairKey must already be
// the canonical uppercase sorted "A-B" form (config.PairKey).
func PairToken(feature, pairKey, key string) string {
	return feature + ":" + pairKey + "|" + key
}

// LoadTombstones reads tombstones.json, returning an empty document when
// absent.
func (s *Store) LoadTombstones() *Tombstones {
	t := &Tombstones{Keys: map[string]int64{}}
	readJSON(s.path("tombstones.json"), t)
	if t.Keys == nil {
		t.Keys = map[string]int64{}
	}
	return t
}

// SaveTombstones atomically writes tombstones.json.
func (s *Store) SaveTombstones(t *Tombstones) error {
	return writeJSON(s.path("tombstones.json"), t)
}

// MarkRemoved writes tombstones for a confirmed removal: the canonical key
// plus every alias key, at both the global and the pair-scoped prefix.
func (t *Tombstones) MarkRemoved(feature, pairKey string, it models.Item, ts int64) {
	for key := range idmap.KeysForItem(it) {
		t.Keys[GlobalToken(feature, key)] = ts
		if pairKey != "" {
			t.Keys[PairToken(feature, pairKey, key)] = ts
		}
	}
}

// MarkKey writes tombstones for a bare key (used by observed-deletion
// inference where only the previous baseline key set is known).
func (t *Tombstones) MarkKey(feature, pairKey, key string, ts int64) {
	t.Keys[GlobalToken(feature, key)] = ts
	if pairKey != "" {
		t.Keys[PairToken(feature, pairKey, key)] = ts
	}
}

// Has reports whether any tombstone (global or pair-scoped) exists for the
// feature and key.
func (t *Tombstones) Has(feature, pairKey, key string) bool {
	if _, ok := t.Keys[GlobalToken(feature, key)]; ok {
		return true
	}
	if pairKey != "" {
		if _, ok := t.Keys[PairToken(feature, pairKey, key)]; ok {
			return true
		}
	}
	return false
}

// HasItem reports whether any alias key of the item is tombstoned for the
// feature (globally or pair-scoped).
func (t *Tombstones) HasItem(feature, pairKey string, it models.Item) bool {
	for key := range idmap.KeysForItem(it) {
		if t.Has(feature, pairKey, key) {
			return true
		}
	}
	return false
}

// Prune drops every entry older than ttlSec and stamps pruned_at/ttl_sec.
// It returns the number of removed entries.
func (t *Tombstones) Prune(now, ttlSec int64) int {
	removed := 0
	for token, ts := range t.Keys {
		if now-ts > ttlSec {
			delete(t.Keys, token)
			removed++
		}
	}
	t.PrunedAt = &now
	t.TTLSec = &ttlSec
	return removed
}
