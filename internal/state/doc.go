// Crosswatch - Multi-Provider Media Library Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crosswatch

// Package state persists everything the engine needs between cycles:
// baselines and checkpoints (state.json), tombstones, the last-run summary,
// and the per-provider/per-pair caches under .cw_state/ (unresolved,
// blackbox, flap counters, phantoms, last-success maps).
//
// Every write goes through renameio (temp file, fsync, atomic rename) so
// readers never observe torn JSON, and the whole directory is guarded by a
// flock so two engine processes cannot interleave writes. Reads return typed
// zero values for missing files; a corrupt file is logged and treated as
// missing rather than failing the cycle.
package state
