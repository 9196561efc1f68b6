// Crosswatch - Multi-Provider Media Library Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crosswatch

package config

import (
	"sort"
	"strings"

	"github.com/goccy/go-json"
)

// Config is the root configuration for a crosswatch process.
type Config struct {
	// StatePath is the base directory for all persisted state files.
	StatePath string `koanf:"state_path" validate:"required"`

	Providers map[string]ProviderConfig `koanf:"providers"`
	Pairs     []PairConfig              `koanf:"pairs" validate:"dive"`
	Sync      SyncConfig                `koanf:"sync"`
	Runtime   RuntimeConfig             `koanf:"runtime"`
	Logging   LoggingConfig             `koanf:"logging"`
	Metrics   MetricsConfig             `koanf:"metrics"`
}

// ProviderConfig carries adapter-specific settings. The engine treats the
// payload as opaque; adapters read what they need from Settings.
type ProviderConfig struct {
	Enabled  bool              `koanf:"enabled"`
	URL      string            `koanf:"url"`
	APIKey   string            `koanf:"api_key"`
	Token    string            `koanf:"token"`
	Username string            `koanf:"username"`
	UserID   string            `koanf:"user_id"`
	Settings map[string]string `koanf:"settings"`
}

// PairConfig describes one source/target synchronization pair.
type PairConfig struct {
	Enabled bool   `koanf:"enabled"`
	Source  string `koanf:"source" validate:"required"`
	Target  string `koanf:"target" validate:"required"`
	// Mode is "one-way" or "two-way".
	Mode string `koanf:"mode" validate:"omitempty,oneof=one-way two-way"`
	// Feature is a single feature name, or "multi" to consult Features.
	Feature  string                   `koanf:"feature"`
	Features map[string]FeatureConfig `koanf:"features"`
}

// FeatureConfig is the per-feature toggle block inside a pair. In YAML/JSON a
// bare `true` is accepted as shorthand for {enable: true, add: true, remove: true}.
type FeatureConfig struct {
	Enable bool `koanf:"enable" json:"enable"`
	Add    bool `koanf:"add" json:"add"`
	Remove bool `koanf:"remove" json:"remove"`
	// Types restricts ratings sync to these media types (plural aliases ok).
	Types []string `koanf:"types" json:"types,omitempty"`
	// FromDate drops ratings older than this YYYY-MM-DD date.
	FromDate string `koanf:"from_date" json:"from_date,omitempty"`
	// PropagateTimestamps re-upserts ratings whose source rated_at is newer.
	PropagateTimestamps bool `koanf:"propagate_timestamps" json:"propagate_timestamps,omitempty"`
}

// UnmarshalJSON accepts the `feature: true` shorthand.
func (fc *FeatureConfig) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*fc = FeatureConfig{Enable: b, Add: b, Remove: b}
		return nil
	}
	type alias FeatureConfig
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*fc = FeatureConfig(a)
	return nil
}

// SyncConfig carries the sync-level safety flags.
type SyncConfig struct {
	DryRun                 bool           `koanf:"dry_run"`
	EnableAdd              bool           `koanf:"enable_add"`
	EnableRemove           bool           `koanf:"enable_remove"`
	IncludeObservedDeletes bool           `koanf:"include_observed_deletes"`
	AllowMassDelete        bool           `koanf:"allow_mass_delete"`
	VerifyAfterWrite       bool           `koanf:"verify_after_write"`
	DropGuard              bool           `koanf:"drop_guard"`
	TombstoneTTLDays       int            `koanf:"tombstone_ttl_days" validate:"gte=0"`
	Blackbox               BlackboxConfig `koanf:"blackbox"`
}

// BlackboxConfig controls promotion of persistently failing keys.
type BlackboxConfig struct {
	Enabled        bool `koanf:"enabled"`
	PromoteAfter   int  `koanf:"promote_after" validate:"gte=0"`
	UnresolvedDays int  `koanf:"unresolved_days" validate:"gte=0"`
	PairScoped     bool `koanf:"pair_scoped"`
	CooldownDays   int  `koanf:"cooldown_days" validate:"gte=0"`
	BlockAdds      bool `koanf:"block_adds"`
	BlockRemoves   bool `koanf:"block_removes"`
}

// RuntimeConfig holds the tunable knobs of the engine.
type RuntimeConfig struct {
	SuspectMinPrev     int     `koanf:"suspect_min_prev" validate:"gte=0"`
	SuspectShrinkRatio float64 `koanf:"suspect_shrink_ratio" validate:"gte=0,lte=1"`
	SnapshotTTLSec     int     `koanf:"snapshot_ttl_sec" validate:"gte=0"`
	ApplyChunkSize     int     `koanf:"apply_chunk_size"`
	ApplyChunkPauseMs  int     `koanf:"apply_chunk_pause_ms" validate:"gte=0"`
}

// LoggingConfig mirrors logging.Config for koanf.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=trace debug info warn error disabled"`
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// MetricsConfig controls the prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Listen  string `koanf:"listen"`
}

// Mode reports the pair mode with the one-way default applied.
func (p PairConfig) ModeOrDefault() string {
	if p.Mode == "" {
		return "one-way"
	}
	return p.Mode
}

// FeatureList resolves the features a pair syncs: an explicit non-multi
// Feature wins, then the enabled keys of Features (sorted for determinism),
// then the engine defaults.
func (p PairConfig) FeatureList(defaults []string) []string {
	if p.Feature != "" && p.Feature != "multi" {
		return []string{p.Feature}
	}
	if len(p.Features) > 0 {
		out := make([]string, 0, len(p.Features))
		for name, fc := range p.Features {
			if fc.Enable {
				out = append(out, name)
			}
		}
		sort.Strings(out)
		return out
	}
	return defaults
}

// FeatureFor returns the effective feature config for a feature name.
// A pair with no explicit features map inherits full add/remove permission.
func (p PairConfig) FeatureFor(feature string) FeatureConfig {
	if p.Feature != "" && p.Feature != "multi" {
		if p.Feature == feature {
			return FeatureConfig{Enable: true, Add: true, Remove: true}
		}
		return FeatureConfig{}
	}
	if len(p.Features) == 0 {
		return FeatureConfig{Enable: true, Add: true, Remove: true}
	}
	return p.Features[feature]
}

// PairKey is the canonical pair token: provider names uppercased, sorted,
// joined by "-". Tombstone pair scoping and two-way state files key on it.
func PairKey(a, b string) string {
	a, b = strings.ToUpper(a), strings.ToUpper(b)
	if b < a {
		a, b = b, a
	}
	return a + "-" + b
}
