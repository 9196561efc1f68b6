// Crosswatch - Multi-Provider Media Library Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crosswatch

package models

import "strings"

// Media types recognized by the engine. Synonyms from provider payloads
// (e.g. "tv", "series", "anime") are folded into these by NormalizeType.
const (
	TypeMovie   = "movie"
	TypeShow    = "show"
	TypeSeason  = "season"
	TypeEpisode = "episode"
)

// Features the engine can reconcile between providers.
const (
	FeatureWatchlist = "watchlist"
	FeatureRatings   = "ratings"
	FeatureHistory   = "history"
	FeaturePlaylists = "playlists"
)

// DefaultFeatures is the feature list used when a pair enables "multi"
// without an explicit features map.
var DefaultFeatures = []string{FeatureWatchlist, FeatureRatings, FeatureHistory, FeaturePlaylists}

// Item is the normalized minimal form of a media entry as exchanged with
// provider adapters. All fields except Type are optional; absent numeric
// fields are nil pointers and absent string fields are empty.
//
// Timestamps (RatedAt, WatchedAt) are RFC 3339 UTC strings. Rating is the
// normalized 1..10 value; zero means unrated.
type Item struct {
	Type        string            `json:"type"`
	Title       string            `json:"title,omitempty"`
	Year        int               `json:"year,omitempty"`
	IDs         map[string]string `json:"ids,omitempty"`
	ShowIDs     map[string]string `json:"show_ids,omitempty"`
	Season      *int              `json:"season,omitempty"`
	Episode     *int              `json:"episode,omitempty"`
	SeriesTitle string            `json:"series_title,omitempty"`
	Rating      int               `json:"rating,omitempty"`
	RatedAt     string            `json:"rated_at,omitempty"`
	WatchedAt   string            `json:"watched_at,omitempty"`
	LibraryID   string            `json:"library_id,omitempty"`
}

// Index is a snapshot of a provider's inventory for one feature, keyed by
// canonical key.
type Index = map[string]Item

// NormalizeType folds provider type synonyms into the canonical set.
// Unknown inputs are returned lowercased so the caller can still key on them.
func NormalizeType(t string) string {
	switch s := strings.ToLower(strings.TrimSpace(t)); s {
	case "movie", "movies", "film":
		return TypeMovie
	case "show", "shows", "tv", "series", "anime":
		return TypeShow
	case "season", "seasons":
		return TypeSeason
	case "episode", "episodes", "ep":
		return TypeEpisode
	default:
		return s
	}
}

// IsEpisodic reports whether the item type refers to part of a show.
func IsEpisodic(t string) bool {
	return t == TypeSeason || t == TypeEpisode
}

// Clone returns a deep copy of the item. The engine hands items to guards
// and appliers that may mutate maps; baselines must stay isolated.
func (it Item) Clone() Item {
	out := it
	if it.IDs != nil {
		out.IDs = make(map[string]string, len(it.IDs))
		for k, v := range it.IDs {
			out.IDs[k] = v
		}
	}
	if it.ShowIDs != nil {
		out.ShowIDs = make(map[string]string, len(it.ShowIDs))
		for k, v := range it.ShowIDs {
			out.ShowIDs[k] = v
		}
	}
	if it.Season != nil {
		s := *it.Season
		out.Season = &s
	}
	if it.Episode != nil {
		e := *it.Episode
		out.Episode = &e
	}
	return out
}

// CloneIndex deep-copies an index.
func CloneIndex(idx Index) Index {
	out := make(Index, len(idx))
	for k, v := range idx {
		out[k] = v.Clone()
	}
	return out
}

// IntPtr is a convenience for building Season/Episode fields.
func IntPtr(v int) *int { return &v }
