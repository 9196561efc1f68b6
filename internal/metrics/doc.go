// Crosswatch - Multi-Provider Media Library Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crosswatch

// Package metrics registers the prometheus collectors for the engine:
// snapshot builds, planner decisions, guard suppressions, apply outcomes,
// provider API hits and circuit breaker state.
package metrics
