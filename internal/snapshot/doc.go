// Crosswatch - Multi-Provider Media Library Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crosswatch

// Package snapshot collects provider indexes for planning: TTL-memoized
// fetches with bounded parallelism, empty-index degradation on provider
// errors, and the suspect-shrink guard that refuses to plan deletions off a
// collapsed upstream response.
package snapshot
