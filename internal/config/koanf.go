// Crosswatch - Multi-Provider Media Library Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crosswatch

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order
// of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/crosswatch/config.yaml",
	"/etc/crosswatch/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CW_CONFIG_PATH"

// envPrefix is the prefix for environment overrides; nesting uses "__":
// CW_SYNC__TOMBSTONE_TTL_DAYS=14 sets sync.tombstone_ttl_days.
const envPrefix = "CW_"

// defaultConfig returns a Config with all engine defaults applied. Defaults
// are layered first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		StatePath: "/data/crosswatch",
		Sync: SyncConfig{
			DryRun:                 false,
			EnableAdd:              true,
			EnableRemove:           true,
			IncludeObservedDeletes: true,
			AllowMassDelete:        false,
			VerifyAfterWrite:       false,
			TombstoneTTLDays:       30,
			Blackbox: BlackboxConfig{
				Enabled:        true,
				PromoteAfter:   3,
				UnresolvedDays: 7,
				PairScoped:     true,
				CooldownDays:   30,
				BlockAdds:      true,
				BlockRemoves:   false,
			},
		},
		Runtime: RuntimeConfig{
			SuspectMinPrev:     20,
			SuspectShrinkRatio: 0.10,
			SnapshotTTLSec:     90,
			ApplyChunkSize:     50,
			ApplyChunkPauseMs:  250,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Metrics: MetricsConfig{Enabled: false, Listen: ":9464"},
	}
}

// Load builds the effective configuration: defaults, then the YAML file (if
// any), then CW_* environment variables, then validation.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		path = os.Getenv(ConfigPathEnvVar)
	}
	if path == "" {
		for _, candidate := range DefaultConfigPaths {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envTransform maps CW_SYNC__DRY_RUN to sync.dry_run.
func envTransform(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "__", ".")
}
