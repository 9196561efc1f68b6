// Crosswatch - Multi-Provider Media Library Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crosswatch

// Package provider defines the adapter contract, the process-wide adapter
// registry and the circuit-breaker wrapper.
//
// Adapters are external collaborators: they own HTTP clients, service quirks
// and timeouts, and exchange only normalized items with the engine. Optional
// abilities (activity checkpoints, event-streaming health probes) are
// expressed as extra interfaces discovered with type assertions, never with
// dynamic attribute sniffing.
package provider
