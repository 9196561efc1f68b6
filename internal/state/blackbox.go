// Crosswatch - Multi-Provider Media Library Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crosswatch

package state

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/tomtom215/crosswatch/internal/logging"
)

// BlackboxEntry marks a key that persistently failed on a target and should
// not be retried until the cooldown elapses.
type BlackboxEntry struct {
	Reason string `json:"reason"`
	Since  int64  `json:"since"`
}

// BlackboxFile maps canonical key -> entry for one (target, feature) and
// optionally one pair.
type BlackboxFile map[string]BlackboxEntry

// FlapFile counts consecutive failures per key; it backs the promote_after
// rule across cycles and resets on success.
type FlapFile map[string]int

func (s *Store) blackboxPath(dst, feature, pairKey string) string {
	stem := providerFeature(dst, feature)
	if pairKey != "" {
		stem += "." + pairKey + ".pair"
	}
	return s.cachePath(stem + ".blackbox.json")
}

func (s *Store) flapPath(dst, feature string) string {
	return s.cachePath(providerFeature(dst, feature) + ".flap.json")
}

// LoadBlackbox reads the blackbox file for (dst, feature) and pair scope.
func (s *Store) LoadBlackbox(dst, feature, pairKey string) BlackboxFile {
	out := BlackboxFile{}
	readJSON(s.blackboxPath(dst, feature, pairKey), &out)
	return out
}

// SaveBlackbox atomically writes a blackbox file.
func (s *Store) SaveBlackbox(dst, feature, pairKey string, f BlackboxFile) error {
	return writeJSON(s.blackboxPath(dst, feature, pairKey), f)
}

// LoadFlap reads the consecutive-failure counters for (dst, feature).
func (s *Store) LoadFlap(dst, feature string) FlapFile {
	out := FlapFile{}
	readJSON(s.flapPath(dst, feature), &out)
	return out
}

// SaveFlap atomically writes the flap counters.
func (s *Store) SaveFlap(dst, feature string, f FlapFile) error {
	return writeJSON(s.flapPath(dst, feature), f)
}

// RecordBlackboxFailure bumps the flap counter for each failed key and
// promotes a key into the blackbox when its counter reaches promoteAfter or
// its unresolved entry is older than unresolvedDays. Returns the promoted
// keys.
func (s *Store) RecordBlackboxFailure(dst, feature, pairKey string, keys []string, reason string, promoteAfter, unresolvedDays int) []string {
	if len(keys) == 0 {
		return nil
	}
	flap := s.LoadFlap(dst, feature)
	bb := s.LoadBlackbox(dst, feature, pairKey)
	committed := s.LoadUnresolved(dst, feature)
	now := s.Now()

	var promoted []string
	for _, key := range keys {
		flap[key]++
		promote := promoteAfter > 0 && flap[key] >= promoteAfter
		if !promote && unresolvedDays > 0 {
			if entry, ok := committed[key]; ok && entry.TS > 0 {
				promote = now-entry.TS >= int64(unresolvedDays)*86400
			}
		}
		if promote {
			if _, exists := bb[key]; !exists {
				bb[key] = BlackboxEntry{Reason: reason, Since: now}
				promoted = append(promoted, key)
			}
		}
	}
	if err := s.SaveFlap(dst, feature, flap); err != nil {
		logging.Err(err).Str("target", dst).Str("feature", feature).Msg("persist flap counters")
	}
	if err := s.SaveBlackbox(dst, feature, pairKey, bb); err != nil {
		logging.Err(err).Str("target", dst).Str("feature", feature).Msg("persist blackbox")
	}
	return promoted
}

// RecordBlackboxSuccess clears flap counters and blackbox entries for keys
// that were confirmed applied.
func (s *Store) RecordBlackboxSuccess(dst, feature, pairKey string, keys []string) {
	if len(keys) == 0 {
		return
	}
	flap := s.LoadFlap(dst, feature)
	bb := s.LoadBlackbox(dst, feature, pairKey)
	for _, key := range keys {
		delete(flap, key)
		delete(bb, key)
	}
	if err := s.SaveFlap(dst, feature, flap); err != nil {
		logging.Err(err).Str("target", dst).Str("feature", feature).Msg("persist flap counters")
	}
	if err := s.SaveBlackbox(dst, feature, pairKey, bb); err != nil {
		logging.Err(err).Str("target", dst).Str("feature", feature).Msg("persist blackbox")
	}
}

// BlackboxKeys returns the blocked key set for (dst, feature), merging the
// global file with the pair-scoped file when pairKey is non-empty.
func (s *Store) BlackboxKeys(dst, feature, pairKey string) map[string]struct{} {
	out := make(map[string]struct{})
	for key := range s.LoadBlackbox(dst, feature, "") {
		out[key] = struct{}{}
	}
	if pairKey != "" {
		for key := range s.LoadBlackbox(dst, feature, pairKey) {
			out[key] = struct{}{}
		}
	}
	return out
}

// PruneBlackbox walks every blackbox file under the cache directory and
// drops entries older than cooldownSec. Returns the total removed.
func (s *Store) PruneBlackbox(cooldownSec int64) int {
	matches, err := filepath.Glob(s.cachePath("*.blackbox.json"))
	if err != nil {
		return 0
	}
	now := s.Now()
	total := 0
	for _, path := range matches {
		bb := BlackboxFile{}
		if !readJSON(path, &bb) {
			continue
		}
		removed := 0
		for key, entry := range bb {
			if now-entry.Since > cooldownSec {
				delete(bb, key)
				removed++
			}
		}
		if removed == 0 {
			continue
		}
		total += removed
		if err := writeJSON(path, bb); err != nil {
			logging.Err(err).Str("path", filepath.Base(path)).Msg("persist pruned blackbox")
		}
	}
	return total
}

// cacheFiles lists cache files matching a suffix; used by tests and the
// runner's bookkeeping.
func (s *Store) cacheFiles(suffix string) []string {
	entries, err := os.ReadDir(filepath.Join(s.base, cacheDir))
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), suffix) {
			out = append(out, e.Name())
		}
	}
	return out
}
