// Crosswatch - Multi-Provider Media Library Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crosswatch

// Package logging provides the centralized zerolog-based logger.
//
// Structured logging only: always terminate chains with .Msg() or .Send(),
// and prefer typed fields over string formatting:
//
//	logging.Info().Str("provider", name).Int("count", n).Msg("snapshot built")
package logging
