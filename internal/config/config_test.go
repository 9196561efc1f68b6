// Crosswatch - Multi-Provider Media Library Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crosswatch

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
)

func TestPairKey(t *testing.T) {
	if got := PairKey("trakt", "plex"); got != "PLEX-TRAKT" {
		t.Errorf("PairKey = %q, want PLEX-TRAKT", got)
	}
	if PairKey("plex", "trakt") != PairKey("trakt", "plex") {
		t.Error("PairKey must be order independent")
	}
}

func TestFeatureConfigShorthand(t *testing.T) {
	var fc FeatureConfig
	if err := json.Unmarshal([]byte(`true`), &fc); err != nil {
		t.Fatal(err)
	}
	if !fc.Enable || !fc.Add || !fc.Remove {
		t.Errorf("shorthand true = %+v", fc)
	}

	if err := json.Unmarshal([]byte(`{"enable":true,"add":true,"remove":false}`), &fc); err != nil {
		t.Fatal(err)
	}
	if !fc.Enable || !fc.Add || fc.Remove {
		t.Errorf("object form = %+v", fc)
	}
}

func TestFeatureList(t *testing.T) {
	defaults := []string{"watchlist", "ratings"}

	single := PairConfig{Feature: "ratings"}
	if got := single.FeatureList(defaults); len(got) != 1 || got[0] != "ratings" {
		t.Errorf("single feature = %v", got)
	}

	multi := PairConfig{Feature: "multi", Features: map[string]FeatureConfig{
		"history":   {Enable: true},
		"watchlist": {Enable: true},
		"playlists": {Enable: false},
	}}
	if got := multi.FeatureList(defaults); len(got) != 2 || got[0] != "history" || got[1] != "watchlist" {
		t.Errorf("multi features = %v, want sorted enabled set", got)
	}

	empty := PairConfig{}
	if got := empty.FeatureList(defaults); len(got) != 2 {
		t.Errorf("default features = %v", got)
	}
}

func TestFeatureFor(t *testing.T) {
	p := PairConfig{Feature: "watchlist"}
	if fc := p.FeatureFor("watchlist"); !fc.Enable || !fc.Add || !fc.Remove {
		t.Errorf("explicit feature config = %+v", fc)
	}
	if fc := p.FeatureFor("ratings"); fc.Enable {
		t.Error("other features should be disabled for a single-feature pair")
	}

	inherit := PairConfig{}
	if fc := inherit.FeatureFor("history"); !fc.Enable || !fc.Add || !fc.Remove {
		t.Errorf("pair without features map should inherit full permission, got %+v", fc)
	}
}

func TestModeOrDefault(t *testing.T) {
	if (PairConfig{}).ModeOrDefault() != "one-way" {
		t.Error("default mode should be one-way")
	}
	if (PairConfig{Mode: "two-way"}).ModeOrDefault() != "two-way" {
		t.Error("explicit mode ignored")
	}
}

func TestLoadLayersFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
state_path: /tmp/cw-test
providers:
  plex:
    enabled: true
    token: abc
  trakt:
    enabled: true
pairs:
  - enabled: true
    source: plex
    target: trakt
    mode: one-way
    feature: watchlist
sync:
  tombstone_ttl_days: 14
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CW_SYNC__TOMBSTONE_TTL_DAYS", "7")
	t.Setenv("CW_RUNTIME__APPLY_CHUNK_SIZE", "25")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StatePath != "/tmp/cw-test" {
		t.Errorf("state_path = %q", cfg.StatePath)
	}
	if cfg.Sync.TombstoneTTLDays != 7 {
		t.Errorf("env override lost: ttl = %d", cfg.Sync.TombstoneTTLDays)
	}
	if cfg.Runtime.ApplyChunkSize != 25 {
		t.Errorf("chunk size = %d", cfg.Runtime.ApplyChunkSize)
	}
	// Defaults survive where nothing overrides them.
	if cfg.Runtime.SuspectMinPrev != 20 || cfg.Runtime.SuspectShrinkRatio != 0.10 {
		t.Errorf("defaults lost: %+v", cfg.Runtime)
	}
	if cfg.Provider("PLEX").Token != "abc" {
		t.Error("provider lookup should be case-insensitive")
	}
}

func TestValidateRejectsSelfPair(t *testing.T) {
	cfg := defaultConfig()
	cfg.Pairs = []PairConfig{{Enabled: true, Source: "plex", Target: "PLEX"}}
	if err := Validate(cfg); err == nil {
		t.Error("self pair must be rejected")
	}
}

func TestValidateRejectsDisabledProvider(t *testing.T) {
	cfg := defaultConfig()
	cfg.Providers = map[string]ProviderConfig{"trakt": {Enabled: false}}
	cfg.Pairs = []PairConfig{{Enabled: true, Source: "plex", Target: "trakt"}}
	if err := Validate(cfg); err == nil {
		t.Error("pair naming a disabled provider must be rejected")
	}
}

func TestValidateRejectsBadMode(t *testing.T) {
	cfg := defaultConfig()
	cfg.Pairs = []PairConfig{{Enabled: true, Source: "plex", Target: "trakt", Mode: "sideways"}}
	if err := Validate(cfg); err == nil {
		t.Error("unknown mode must be rejected")
	}
}
