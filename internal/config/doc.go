// Crosswatch - Multi-Provider Media Library Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crosswatch

// Package config loads and validates the crosswatch configuration.
//
// Configuration is layered with koanf: struct defaults, then a YAML file,
// then CW_* environment variables (double underscore for nesting). Semantic
// validation uses go-playground/validator plus explicit pair checks.
package config
