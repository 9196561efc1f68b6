// Crosswatch - Multi-Provider Media Library Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crosswatch

// Package planner computes minimal operation sets between two canonical-keyed
// indexes: plain set difference for presence features (watchlist, history,
// playlists) and the rating-aware upsert/unrate variant for ratings.
//
// Planners are pure: all guard and blocklist decisions happen in the drivers
// after planning.
package planner
