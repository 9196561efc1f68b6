// Crosswatch - Multi-Provider Media Library Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crosswatch

package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate runs struct-tag validation plus the semantic checks the tags
// cannot express (pair references, feature names).
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	for i, pair := range cfg.Pairs {
		if !pair.Enabled {
			continue
		}
		src := strings.ToUpper(pair.Source)
		dst := strings.ToUpper(pair.Target)
		if src == dst {
			return fmt.Errorf("pair %d: source and target are both %s", i, src)
		}
		// Providers may be registered at runtime without a config block, but
		// a pair naming a configured-and-disabled provider is a user mistake.
		if pc, ok := lookupProvider(cfg, src); ok && !pc.Enabled {
			return fmt.Errorf("pair %d: source provider %s is disabled", i, src)
		}
		if pc, ok := lookupProvider(cfg, dst); ok && !pc.Enabled {
			return fmt.Errorf("pair %d: target provider %s is disabled", i, dst)
		}
	}
	return nil
}

func lookupProvider(cfg *Config, name string) (ProviderConfig, bool) {
	for key, pc := range cfg.Providers {
		if strings.EqualFold(key, name) {
			return pc, true
		}
	}
	return ProviderConfig{}, false
}

// Provider returns the config block for a provider name (case-insensitive).
func (c *Config) Provider(name string) ProviderConfig {
	pc, _ := lookupProvider(c, name)
	return pc
}
