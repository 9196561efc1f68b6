// Crosswatch - Multi-Provider Media Library Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crosswatch

// Package events defines the engine's structured event stream.
//
// Events are named with a colon taxonomy (run:start, apply:add:progress,
// snapshot:suspect, ...) and emitted as JSON lines. The APIAggregator wraps
// an emitter per cycle to count api:hit traffic and roll it up into the
// closing api:totals event.
package events
