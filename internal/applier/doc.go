// Crosswatch - Multi-Provider Media Library Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crosswatch

// Package applier turns planned item lists into provider writes: fixed-size
// chunks, three-attempt exponential backoff per chunk, rate-aware pauses
// between chunks, and a progress event per chunk. Input order is preserved
// within and across chunks.
package applier
