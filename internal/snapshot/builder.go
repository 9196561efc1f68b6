// Crosswatch - Multi-Provider Media Library Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crosswatch

package snapshot

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/crosswatch/internal/config"
	"github.com/tomtom215/crosswatch/internal/events"
	"github.com/tomtom215/crosswatch/internal/logging"
	"github.com/tomtom215/crosswatch/internal/metrics"
	"github.com/tomtom215/crosswatch/internal/models"
	"github.com/tomtom215/crosswatch/internal/provider"
)

// fetchConcurrency bounds parallel BuildIndex calls within one feature.
const fetchConcurrency = 4

type cacheKey struct {
	Provider string
	Feature  string
}

type cacheEntry struct {
	at    time.Time
	index models.Index
}

// Builder fetches provider indexes with TTL memoization. The cache is keyed
// by (provider, feature); concurrent misses may both call BuildIndex but
// last-writer-wins on the cache slot.
type Builder struct {
	TTL time.Duration

	mu    sync.Mutex
	cache map[cacheKey]cacheEntry
	now   func() time.Time
}

// NewBuilder creates a builder with the given cache TTL.
func NewBuilder(ttl time.Duration) *Builder {
	return &Builder{TTL: ttl, cache: make(map[cacheKey]cacheEntry), now: time.Now}
}

// SetClock overrides the builder clock for tests.
func (b *Builder) SetClock(now func() time.Time) { b.now = now }

// Invalidate drops the cached index for (provider, feature).
func (b *Builder) Invalidate(providerName, feature string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.cache, cacheKey{strings.ToUpper(providerName), feature})
}

// RelevantProviders returns the sorted union of sources and targets of
// enabled pairs that sync the feature.
func RelevantProviders(cfg *config.Config, feature string) []string {
	set := make(map[string]struct{})
	for _, pair := range cfg.Pairs {
		if !pair.Enabled {
			continue
		}
		for _, f := range pair.FeatureList(models.DefaultFeatures) {
			if f == feature {
				set[strings.ToUpper(pair.Source)] = struct{}{}
				set[strings.ToUpper(pair.Target)] = struct{}{}
				break
			}
		}
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// BuildForFeature snapshots every provider relevant to the feature. Each
// provider that fails yields an empty index and is reported in degraded;
// empty or degraded results are never cached.
func (b *Builder) BuildForFeature(ctx context.Context, cfg *config.Config, feature string, reg *provider.Registry, emit events.Emitter) (map[string]models.Index, map[string]bool) {
	indexes := make(map[string]models.Index)
	degraded := make(map[string]bool)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)

	for _, name := range RelevantProviders(cfg, feature) {
		adapter, err := reg.Lookup(name)
		if err != nil {
			logging.Warn().Str("provider", name).Str("feature", feature).Msg("provider not registered; skipping")
			continue
		}
		if !adapter.IsConfigured(cfg) || !adapter.Features()[feature] {
			continue
		}
		g.Go(func() error {
			idx, err := b.buildOne(gctx, cfg, adapter, feature, emit)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				indexes[adapter.Name()] = models.Index{}
				degraded[adapter.Name()] = true
				return nil // a degraded provider never fails the feature
			}
			indexes[adapter.Name()] = idx
			return nil
		})
	}
	_ = g.Wait()
	return indexes, degraded
}

// buildOne resolves one provider snapshot through the TTL cache.
func (b *Builder) buildOne(ctx context.Context, cfg *config.Config, adapter provider.Adapter, feature string, emit events.Emitter) (models.Index, error) {
	key := cacheKey{adapter.Name(), feature}

	b.mu.Lock()
	entry, ok := b.cache[key]
	fresh := ok && b.now().Sub(entry.at) < b.TTL
	b.mu.Unlock()
	if fresh {
		metrics.SnapshotBuilds.WithLabelValues(key.Provider, feature, "cached").Inc()
		return entry.index, nil
	}

	idx, err := adapter.BuildIndex(ctx, cfg, feature)
	if err != nil {
		logging.Err(err).Str("provider", key.Provider).Str("feature", feature).Msg("build index failed; treating provider as degraded")
		metrics.SnapshotBuilds.WithLabelValues(key.Provider, feature, "error").Inc()
		if emit != nil {
			emit.Emit("debug", events.Fields{
				"op":       "snapshot",
				"provider": key.Provider,
				"feature":  feature,
				"error":    err.Error(),
			})
		}
		return nil, err
	}
	if idx == nil {
		idx = models.Index{}
	}
	metrics.SnapshotBuilds.WithLabelValues(key.Provider, feature, "ok").Inc()
	metrics.SnapshotItems.WithLabelValues(key.Provider, feature).Set(float64(len(idx)))

	if len(idx) > 0 {
		b.mu.Lock()
		b.cache[key] = cacheEntry{at: b.now(), index: idx}
		b.mu.Unlock()
	}
	return idx, nil
}
