// Crosswatch - Multi-Provider Media Library Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crosswatch

// Package models defines the normalized item record exchanged between the
// engine and provider adapters, plus the feature and media-type vocabulary.
//
// Items are heterogeneous: a watchlist entry carries ids and title, a rating
// adds Rating/RatedAt, a history entry adds WatchedAt, and season/episode
// entries carry parent show ids and SxxExx coordinates. The engine never
// interprets provider-native payloads; adapters are responsible for mapping
// their wire formats into this minimal form.
package models
