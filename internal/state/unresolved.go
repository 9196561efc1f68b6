// Crosswatch - Multi-Provider Media Library Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crosswatch

package state

import (
	"github.com/tomtom215/crosswatch/internal/models"
)

// UnresolvedEntry records one item a target provider could not apply.
type UnresolvedEntry struct {
	Attempts int         `json:"attempts"`
	Item     models.Item `json:"item"`
	Reason   string      `json:"reason,omitempty"`
	Hint     string      `json:"hint,omitempty"`
	TS       int64       `json:"ts,omitempty"`
}

// UnresolvedFile maps canonical key -> entry for one (target, feature).
type UnresolvedFile map[string]UnresolvedEntry

func (s *Store) unresolvedPath(dst, feature string, pending bool) string {
	stem := providerFeature(dst, feature) + ".unresolved"
	if pending {
		stem += ".pending"
	}
	return s.cachePath(stem + ".json")
}

// LoadUnresolved reads the committed unresolved file for (dst, feature).
func (s *Store) LoadUnresolved(dst, feature string) UnresolvedFile {
	out := UnresolvedFile{}
	readJSON(s.unresolvedPath(dst, feature, false), &out)
	return out
}

// LoadPendingUnresolved reads the pending unresolved file for (dst, feature).
func (s *Store) LoadPendingUnresolved(dst, feature string) UnresolvedFile {
	out := UnresolvedFile{}
	readJSON(s.unresolvedPath(dst, feature, true), &out)
	return out
}

// SaveUnresolved atomically writes the committed unresolved file.
func (s *Store) SaveUnresolved(dst, feature string, f UnresolvedFile) error {
	return writeJSON(s.unresolvedPath(dst, feature, false), f)
}

// AppendPending upserts provider-declared unresolved items into the pending
// file, bumping attempt counters and stamping the annotation. The key
// function is supplied by the caller so state stays free of key algebra.
func (s *Store) AppendPending(dst, feature string, items []models.Item, keyOf func(models.Item) string, reason, hint string) error {
	if len(items) == 0 {
		return nil
	}
	pending := s.LoadPendingUnresolved(dst, feature)
	now := s.Now()
	for _, it := range items {
		key := keyOf(it)
		entry := pending[key]
		entry.Attempts++
		entry.Item = it.Clone()
		entry.Reason = reason
		entry.Hint = hint
		entry.TS = now
		pending[key] = entry
	}
	return writeJSON(s.unresolvedPath(dst, feature, true), pending)
}

// CommitPending folds the pending file into the committed file and clears
// pending. The runner commits at the start of each cycle so blocklists see
// the previous cycle's failures.
func (s *Store) CommitPending(dst, feature string) error {
	pending := s.LoadPendingUnresolved(dst, feature)
	if len(pending) == 0 {
		return nil
	}
	committed := s.LoadUnresolved(dst, feature)
	for key, entry := range pending {
		prev := committed[key]
		entry.Attempts += prev.Attempts
		committed[key] = entry
	}
	if err := writeJSON(s.unresolvedPath(dst, feature, false), committed); err != nil {
		return err
	}
	return writeJSON(s.unresolvedPath(dst, feature, true), UnresolvedFile{})
}

// UnresolvedKeys returns the union of committed and pending keys for
// (dst, feature). The drivers sample this before and after a write to detect
// new unresolved items introduced by the current call.
func (s *Store) UnresolvedKeys(dst, feature string) map[string]struct{} {
	out := make(map[string]struct{})
	for key := range s.LoadUnresolved(dst, feature) {
		out[key] = struct{}{}
	}
	for key := range s.LoadPendingUnresolved(dst, feature) {
		out[key] = struct{}{}
	}
	return out
}

// ClearUnresolved removes keys from both the committed and pending files
// after a confirmed success.
func (s *Store) ClearUnresolved(dst, feature string, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	committed := s.LoadUnresolved(dst, feature)
	pending := s.LoadPendingUnresolved(dst, feature)
	for _, key := range keys {
		delete(committed, key)
		delete(pending, key)
	}
	if err := writeJSON(s.unresolvedPath(dst, feature, false), committed); err != nil {
		return err
	}
	return writeJSON(s.unresolvedPath(dst, feature, true), pending)
}
