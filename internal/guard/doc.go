// Crosswatch - Multi-Provider Media Library Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crosswatch

// Package guard holds the three safety filters applied between planning and
// writing: the blocklist (tombstones, unresolved, blackbox), the phantom
// guard (suppresses immediate re-adds of recently confirmed keys), and the
// mass-delete guard (refuses removal batches that would gut a baseline).
package guard
