// Crosswatch - Multi-Provider Media Library Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crosswatch

// Package idmap implements identifier canonicalization and the key algebra
// the whole engine plans on.
//
// Every provider exposes a different subset of external ids (imdb, tmdb,
// tvdb, trakt, anime databases, plex GUIDs). idmap normalizes those ids,
// derives a deterministic canonical key per item, and computes the alias key
// set used by tombstone and presence checks to recognize the same title
// across providers that disagree about which ids to expose.
package idmap
