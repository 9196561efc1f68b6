// Crosswatch - Multi-Provider Media Library Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crosswatch

package state

// RunResult is the cycle roll-up persisted in last_sync.json.
type RunResult struct {
	Added      int `json:"added"`
	Removed    int `json:"removed"`
	Unresolved int `json:"unresolved"`
}

// LastSync is the last_sync.json document.
type LastSync struct {
	StartedAt  int64     `json:"started_at"`
	FinishedAt int64     `json:"finished_at"`
	Result     RunResult `json:"result"`
}

// LoadLastSync reads last_sync.json, returning a zero record when absent.
func (s *Store) LoadLastSync() LastSync {
	var ls LastSync
	readJSON(s.path("last_sync.json"), &ls)
	return ls
}

// SaveLastSync atomically writes last_sync.json.
func (s *Store) SaveLastSync(ls LastSync) error {
	return writeJSON(s.path("last_sync.json"), ls)
}

// LoadWatchlistHide reads the UI-hide list; missing files yield nil.
func (s *Store) LoadWatchlistHide() []string {
	var hide []string
	readJSON(s.path("watchlist_hide.json"), &hide)
	return hide
}

// SaveWatchlistHide atomically writes the UI-hide list.
func (s *Store) SaveWatchlistHide(hide []string) error {
	if hide == nil {
		hide = []string{}
	}
	return writeJSON(s.path("watchlist_hide.json"), hide)
}

// ClearWatchlistHide empties the hide file after a watchlist cycle, so items
// the sync re-added reappear in front-ends.
func (s *Store) ClearWatchlistHide() error {
	return s.SaveWatchlistHide([]string{})
}

// RatingsChange is one confirmed rating upsert, journaled for front-ends.
type RatingsChange struct {
	Key        string `json:"key"`
	Rating     int    `json:"rating"`
	PrevRating int    `json:"prev_rating,omitempty"`
	Pair       string `json:"pair"`
	TS         int64  `json:"ts"`
}

// ratingsJournalMax caps ratings_changes.json; the newest entries win.
const ratingsJournalMax = 1000

// AppendRatingsChanges appends confirmed upserts to ratings_changes.json,
// trimming the journal to its cap.
func (s *Store) AppendRatingsChanges(changes []RatingsChange) error {
	if len(changes) == 0 {
		return nil
	}
	var journal []RatingsChange
	readJSON(s.path("ratings_changes.json"), &journal)
	journal = append(journal, changes...)
	if len(journal) > ratingsJournalMax {
		journal = journal[len(journal)-ratingsJournalMax:]
	}
	return writeJSON(s.path("ratings_changes.json"), journal)
}
