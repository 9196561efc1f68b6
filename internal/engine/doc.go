// Crosswatch - Multi-Provider Media Library Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crosswatch

// Package engine orchestrates synchronization cycles. The facade (Engine,
// Run) drives the pair runner, which dispatches each pair feature to the
// one-way or two-way driver. Drivers compose the leaf packages: snapshot
// building and the shrink guard, planning, blocklists and the phantom and
// mass-delete guards, then chunked application with pessimistic result
// accounting. All state mutations go through the state store; all progress
// surfaces as events.
package engine
