// Crosswatch - Multi-Provider Media Library Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crosswatch

package state

import (
	"strings"

	"github.com/tomtom215/crosswatch/internal/models"
)

// pairFeatureStem renders "{feature}.{SRC}-{DST}" for the directed
// pair-feature cache files. Unlike tombstone pair keys, phantom files are
// directional: adds to A and adds to B track separately.
func pairFeatureStem(feature, src, dst string) string {
	return feature + "." + strings.ToUpper(src) + "-" + strings.ToUpper(dst)
}

// LastSuccessMap maps canonical key -> epoch seconds of the last confirmed
// add on this directed pair-feature.
type LastSuccessMap map[string]int64

// PhantomsFile holds the minimal form of items whose re-add was blocked by
// the phantom guard, so the next plan can surface them for inspection.
type PhantomsFile map[string]models.Item

// LoadLastSuccess reads the last-success map for a directed pair-feature.
func (s *Store) LoadLastSuccess(feature, src, dst string) LastSuccessMap {
	out := LastSuccessMap{}
	readJSON(s.cachePath(pairFeatureStem(feature, src, dst)+".last_success.json"), &out)
	return out
}

// SaveLastSuccess atomically writes the last-success map.
func (s *Store) SaveLastSuccess(feature, src, dst string, m LastSuccessMap) error {
	return writeJSON(s.cachePath(pairFeatureStem(feature, src, dst)+".last_success.json"), m)
}

// LoadPhantoms reads the planned-but-blocked items for a directed
// pair-feature.
func (s *Store) LoadPhantoms(feature, src, dst string) PhantomsFile {
	out := PhantomsFile{}
	readJSON(s.cachePath(pairFeatureStem(feature, src, dst)+".phantoms.json"), &out)
	return out
}

// SavePhantoms atomically writes the phantoms file.
func (s *Store) SavePhantoms(feature, src, dst string, f PhantomsFile) error {
	return writeJSON(s.cachePath(pairFeatureStem(feature, src, dst)+".phantoms.json"), f)
}
