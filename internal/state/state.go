// Crosswatch - Multi-Provider Media Library Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crosswatch

package state

import (
	"sort"
	"strings"

	"github.com/tomtom215/crosswatch/internal/models"
)

// Baseline is the last successfully reconciled index for one
// (provider, feature).
type Baseline struct {
	Items models.Index `json:"items"`
}

// FeatureState couples a baseline with the provider-supplied checkpoint that
// was current when the baseline was written.
type FeatureState struct {
	Baseline   Baseline `json:"baseline"`
	Checkpoint *string  `json:"checkpoint"`
}

// StateFile is the root state.json document.
type StateFile struct {
	// Providers maps UPPER provider name -> feature -> state.
	Providers map[string]map[string]FeatureState `json:"providers"`
	// Wall is the deduplicated union of all watchlist baselines, kept for
	// front-ends that render a combined overview.
	Wall []models.Item `json:"wall"`
	// LastSyncEpoch is the finish time of the last successful cycle.
	LastSyncEpoch *int64 `json:"last_sync_epoch"`
}

// LoadState reads state.json, returning an initialized document when absent.
func (s *Store) LoadState() *StateFile {
	st := &StateFile{Providers: map[string]map[string]FeatureState{}, Wall: []models.Item{}}
	readJSON(s.path("state.json"), st)
	if st.Providers == nil {
		st.Providers = map[string]map[string]FeatureState{}
	}
	if st.Wall == nil {
		st.Wall = []models.Item{}
	}
	return st
}

// SaveState atomically writes state.json.
func (s *Store) SaveState(st *StateFile) error {
	return writeJSON(s.path("state.json"), st)
}

// Baseline returns the stored baseline index for (provider, feature).
// Missing entries yield an empty index.
func (st *StateFile) BaselineFor(provider, feature string) models.Index {
	provider = strings.ToUpper(provider)
	if fs, ok := st.Providers[provider][feature]; ok && fs.Baseline.Items != nil {
		return fs.Baseline.Items
	}
	return models.Index{}
}

// Checkpoint returns the stored checkpoint for (provider, feature), or "".
func (st *StateFile) CheckpointFor(provider, feature string) string {
	provider = strings.ToUpper(provider)
	if fs, ok := st.Providers[provider][feature]; ok && fs.Checkpoint != nil {
		return *fs.Checkpoint
	}
	return ""
}

// SetBaseline replaces the baseline and checkpoint for (provider, feature).
// An empty checkpoint is stored as null.
func (st *StateFile) SetBaseline(provider, feature string, idx models.Index, checkpoint string) {
	provider = strings.ToUpper(provider)
	if st.Providers[provider] == nil {
		st.Providers[provider] = map[string]FeatureState{}
	}
	fs := FeatureState{Baseline: Baseline{Items: models.CloneIndex(idx)}}
	if checkpoint != "" {
		fs.Checkpoint = &checkpoint
	}
	st.Providers[provider][feature] = fs
}

// RebuildWall derives the deduplicated wall overview from every provider's
// watchlist baseline. First occurrence per canonical key wins; iteration is
// over sorted provider names so the result is deterministic.
func (st *StateFile) RebuildWall(keyOf func(models.Item) string) {
	seen := make(map[string]struct{})
	wall := make([]models.Item, 0)
	for _, provider := range sortedKeys(st.Providers) {
		fs, ok := st.Providers[provider][models.FeatureWatchlist]
		if !ok {
			continue
		}
		for _, key := range sortedKeys(fs.Baseline.Items) {
			it := fs.Baseline.Items[key]
			k := keyOf(it)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			wall = append(wall, it.Clone())
		}
	}
	st.Wall = wall
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
