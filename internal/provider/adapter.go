// Crosswatch - Multi-Provider Media Library Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crosswatch

package provider

import (
	"context"

	"github.com/tomtom215/crosswatch/internal/config"
	"github.com/tomtom215/crosswatch/internal/events"
	"github.com/tomtom215/crosswatch/internal/idmap"
	"github.com/tomtom215/crosswatch/internal/models"
)

// Provider health statuses.
const (
	StatusOK         = "ok"
	StatusDegraded   = "degraded"
	StatusAuthFailed = "auth_failed"
	StatusDown       = "down"
)

// Index semantics advertised by adapters. "present" means BuildIndex returns
// the full current inventory; "delta" means it returns changes since the
// last checkpoint and must be unioned with the previous baseline.
const (
	SemanticsPresent = "present"
	SemanticsDelta   = "delta"
)

// Capabilities describes what an adapter can do beyond its feature list.
type Capabilities struct {
	Features         map[string]bool `json:"features"`
	ObservedDeletes  bool            `json:"observed_deletes"`
	IndexSemantics   string          `json:"index_semantics"`
	VerifyAfterWrite bool            `json:"verify_after_write"`
}

// RateLimit is the remaining-quota hint surfaced through health responses.
type RateLimit struct {
	Remaining int   `json:"remaining"`
	ResetAt   int64 `json:"reset_at,omitempty"`
}

// APIStatus carries per-endpoint status codes and rate-limit state from a
// health probe. Endpoint statuses are synthesized into api:hit events by the
// runner.
type APIStatus struct {
	RateLimit *RateLimit     `json:"rate_limit,omitempty"`
	Endpoints map[string]int `json:"endpoints,omitempty"`
}

// HealthReport is the result of a provider health probe.
type HealthReport struct {
	OK        bool            `json:"ok"`
	Status    string          `json:"status"`
	Features  map[string]bool `json:"features,omitempty"`
	Details   map[string]any  `json:"details,omitempty"`
	API       *APIStatus      `json:"api,omitempty"`
	LatencyMS int64           `json:"latency_ms"`
}

// WriteResult is the outcome of an Add or Remove call. Count is the number
// of items the provider confirmed; Unresolved lists items the provider could
// not map to its own catalog. Adapters must never partial-fail silently:
// anything not confirmed belongs in Unresolved or in the returned error.
type WriteResult struct {
	OK         bool          `json:"ok"`
	Count      int           `json:"count"`
	Unresolved []models.Item `json:"unresolved,omitempty"`
}

// Adapter is the contract every provider module implements. Adapters own all
// HTTP specifics, per-service quirks, timeouts and pagination; the engine
// sees only normalized items and canonical-keyed indexes.
type Adapter interface {
	// Name returns the upper-case provider identifier (e.g. "TRAKT").
	Name() string
	// Label returns a human-readable provider label.
	Label() string
	// Features reports which features this adapter can sync.
	Features() map[string]bool
	// Capabilities reports index semantics and optional abilities.
	Capabilities() Capabilities
	// IsConfigured reports whether the provider is usable under cfg.
	IsConfigured(cfg *config.Config) bool
	// Health probes the provider.
	Health(ctx context.Context, cfg *config.Config) HealthReport
	// BuildIndex returns the present-state snapshot for a feature, keyed by
	// canonical key.
	BuildIndex(ctx context.Context, cfg *config.Config, feature string) (models.Index, error)
	// Add applies additions (or rating upserts) to the provider.
	Add(ctx context.Context, cfg *config.Config, feature string, items []models.Item, dryRun bool) (WriteResult, error)
	// Remove applies removals (or unrates) from the provider.
	Remove(ctx context.Context, cfg *config.Config, feature string, items []models.Item, dryRun bool) (WriteResult, error)
}

// ActivityReporter is the optional checkpoint probe. Adapters that can cheaply
// report per-feature progress hints (usually activity timestamps) implement
// it; the snapshot guard uses the hints to tell a real purge from a degraded
// response.
type ActivityReporter interface {
	Activities(ctx context.Context, cfg *config.Config) (map[string]string, error)
}

// HealthEmitter is the optional health variant that streams api:hit events
// while probing. The runner prefers it when implemented.
type HealthEmitter interface {
	HealthWithEmit(ctx context.Context, cfg *config.Config, emit events.Emitter) HealthReport
}

// IndexFromItems coerces a list-shaped snapshot into a canonical-keyed index.
// Later duplicates win, mirroring how providers report the freshest state
// last in paginated listings.
func IndexFromItems(items []models.Item) models.Index {
	idx := make(models.Index, len(items))
	for _, it := range items {
		n := idmap.Normalize(it)
		idx[idmap.CanonicalKey(n)] = n
	}
	return idx
}
