// Crosswatch - Multi-Provider Media Library Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crosswatch

package engine

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/tomtom215/crosswatch/internal/config"
	"github.com/tomtom215/crosswatch/internal/events"
	"github.com/tomtom215/crosswatch/internal/idmap"
	"github.com/tomtom215/crosswatch/internal/logging"
	"github.com/tomtom215/crosswatch/internal/metrics"
	"github.com/tomtom215/crosswatch/internal/models"
	"github.com/tomtom215/crosswatch/internal/provider"
	"github.com/tomtom215/crosswatch/internal/snapshot"
	"github.com/tomtom215/crosswatch/internal/state"
)

// runCycle executes one full synchronization cycle: housekeeping, health
// probes, then every enabled pair feature by feature. The per-pair loop never
// aborts the cycle — a broken pair degrades to skip events and the rest keeps
// going.
func (rc *runContext) runCycle(ctx context.Context, agg *events.APIAggregator, onlyFeature string) totals {
	started := rc.store.Now()

	// Housekeeping before any planning: fold last cycle's pending unresolved
	// into the committed files and expire old tombstones.
	prunedTombstones := rc.tombs.Prune(started, int64(rc.cfg.Sync.TombstoneTTLDays)*86400)
	if !rc.dryRun {
		if err := rc.store.SaveTombstones(rc.tombs); err != nil {
			logging.Err(err).Msg("persist pruned tombstones")
		}
		rc.commitPendingUnresolved()
	}

	rc.collectHealth(ctx)

	enabled := enabledPairs(rc.cfg)
	rc.emit.Emit("run:start", events.Fields{
		"pairs":   len(enabled),
		"dry_run": rc.dryRun,
	})

	var total totals
	ranWatchlist := false
	for _, pair := range enabled {
		src := strings.ToUpper(pair.Source)
		dst := strings.ToUpper(pair.Target)
		mode := pair.ModeOrDefault()
		rc.emit.Emit("run:pair", events.Fields{
			"source": src,
			"target": dst,
			"mode":   mode,
		})

		if reason := rc.pairSkipReason(src, dst); reason != "" {
			rc.emit.Emit("pair:skip", events.Fields{
				"source": src,
				"target": dst,
				"reason": reason,
			})
			continue
		}

		for _, feature := range pair.FeatureList(models.DefaultFeatures) {
			if onlyFeature != "" && feature != onlyFeature {
				continue
			}
			if !rc.featureSupported(src, dst, feature) {
				rc.emit.Emit("feature:unsupported", events.Fields{
					"source":  src,
					"target":  dst,
					"feature": feature,
				})
				continue
			}
			if !rc.featureHealthy(src, feature) || !rc.featureHealthy(dst, feature) {
				rc.skipWrites(src, dst, feature, "feature unhealthy")
				continue
			}

			rc.emit.Emit("feature:start", events.Fields{
				"source":  src,
				"target":  dst,
				"feature": feature,
				"mode":    mode,
			})
			var res totals
			if mode == "two-way" {
				res = rc.runTwoWay(ctx, pair, feature).totals()
			} else {
				res = rc.runOneWay(ctx, pair, feature)
			}
			rc.emit.Emit("feature:done", events.Fields{
				"source":     src,
				"target":     dst,
				"feature":    feature,
				"added":      res.Added,
				"removed":    res.Removed,
				"unresolved": res.Unresolved,
			})
			total.add(res)
			if feature == models.FeatureWatchlist {
				ranWatchlist = true
			}
		}
	}

	finished := rc.store.Now()
	if !rc.dryRun {
		if ranWatchlist {
			// The hide list carries exactly this cycle's confirmed watchlist
			// removals so downstream consumers can suppress them; anything
			// older is stale.
			hide := dedupeSorted(rc.removedKeys[models.FeatureWatchlist])
			if len(hide) == 0 {
				if err := rc.store.ClearWatchlistHide(); err != nil {
					logging.Err(err).Msg("clear watchlist hide list")
				}
			} else if err := rc.store.SaveWatchlistHide(hide); err != nil {
				logging.Err(err).Msg("persist watchlist hide list")
			}
		}
		rc.st.LastSyncEpoch = &finished
		rc.st.RebuildWall(idmap.CanonicalKey)
		if err := rc.store.SaveState(rc.st); err != nil {
			logging.Err(err).Msg("persist state")
		}
		if err := rc.store.SaveLastSync(state.LastSync{
			StartedAt:  started,
			FinishedAt: finished,
			Result: state.RunResult{
				Added:      total.Added,
				Removed:    total.Removed,
				Unresolved: total.Unresolved,
			},
		}); err != nil {
			logging.Err(err).Msg("persist last sync record")
		}
	}

	prunedBlackbox := 0
	bb := rc.cfg.Sync.Blackbox
	if bb.Enabled && !rc.dryRun {
		prunedBlackbox = rc.store.PruneBlackbox(int64(bb.CooldownDays) * 86400)
	}

	apiTotals := agg.Totals()
	rc.emit.Emit("api:totals", apiTotals)
	rc.emit.Emit("http:overview", events.Fields{
		"total":       apiTotals["total"],
		"by_provider": apiTotals["by_provider"],
	})
	rc.emit.Emit("stats:overview", events.Fields{
		"added":             total.Added,
		"removed":           total.Removed,
		"unresolved":        total.Unresolved,
		"pruned_tombstones": prunedTombstones,
		"pruned_blackbox":   prunedBlackbox,
		"duration_ms":       (finished - started) * 1000,
	})
	rc.emit.Emit("run:done", events.Fields{
		"added":      total.Added,
		"removed":    total.Removed,
		"unresolved": total.Unresolved,
		"dry_run":    rc.dryRun,
	})

	metrics.CycleDuration.Observe(float64(finished - started))
	metrics.CycleTotals.WithLabelValues("added").Add(float64(total.Added))
	metrics.CycleTotals.WithLabelValues("removed").Add(float64(total.Removed))
	metrics.CycleTotals.WithLabelValues("unresolved").Add(float64(total.Unresolved))
	return total
}

// commitPendingUnresolved folds pending unresolved files into the committed
// ones for every provider/feature this cycle may touch, so blocklists see
// the previous cycle's failures.
func (rc *runContext) commitPendingUnresolved() {
	for _, feature := range models.DefaultFeatures {
		for _, name := range snapshot.RelevantProviders(rc.cfg, feature) {
			if err := rc.store.CommitPending(name, feature); err != nil {
				logging.Err(err).Str("provider", name).Str("feature", feature).Msg("commit pending unresolved")
			}
		}
	}
}

// collectHealth probes every provider participating in an enabled pair once
// per cycle, caches the reports and surfaces them as events and metrics.
// Endpoint statuses from the probe are synthesized into api:hit events so
// the cycle aggregator counts probe traffic too.
func (rc *runContext) collectHealth(ctx context.Context) {
	for _, name := range relevantProviderNames(rc.cfg) {
		adapter, err := rc.reg.Lookup(name)
		if err != nil {
			continue
		}
		startedAt := time.Now()
		var report provider.HealthReport
		if he, ok := adapter.(provider.HealthEmitter); ok {
			report = he.HealthWithEmit(ctx, rc.cfg, rc.emit)
		} else {
			report = adapter.Health(ctx, rc.cfg)
		}
		if report.LatencyMS == 0 {
			report.LatencyMS = time.Since(startedAt).Milliseconds()
		}
		rc.health[name] = report

		if report.API != nil {
			for endpoint, status := range report.API.Endpoints {
				rc.emit.Emit("api:hit", events.Fields{
					"provider": name,
					"endpoint": endpoint,
					"method":   "GET",
					"status":   statusClass(status),
				})
			}
		}
		rc.emit.Emit("health", events.Fields{
			"provider":   name,
			"status":     report.Status,
			"ok":         report.OK,
			"latency_ms": report.LatencyMS,
		})
		metrics.ProviderHealth.WithLabelValues(name).Set(metrics.HealthValue(report.Status))
	}
}

// pairSkipReason returns a non-empty reason when the whole pair must be
// skipped this cycle.
func (rc *runContext) pairSkipReason(src, dst string) string {
	for _, name := range []string{src, dst} {
		if _, err := rc.reg.Lookup(name); err != nil {
			return name + " not registered"
		}
		if h := rc.healthFor(name); h.Status == provider.StatusAuthFailed {
			return name + " auth_failed"
		}
	}
	return ""
}

// featureSupported reports whether both adapters advertise the feature.
func (rc *runContext) featureSupported(src, dst, feature string) bool {
	for _, name := range []string{src, dst} {
		adapter, err := rc.reg.Lookup(name)
		if err != nil || !adapter.Features()[feature] {
			return false
		}
	}
	return true
}

// enabledPairs returns the enabled pairs in config order.
func enabledPairs(cfg *config.Config) []config.PairConfig {
	out := make([]config.PairConfig, 0, len(cfg.Pairs))
	for _, pair := range cfg.Pairs {
		if pair.Enabled {
			out = append(out, pair)
		}
	}
	return out
}

// dedupeSorted returns the unique keys in sorted order.
func dedupeSorted(keys []string) []string {
	if len(keys) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// relevantProviderNames returns the sorted union of providers referenced by
// enabled pairs.
func relevantProviderNames(cfg *config.Config) []string {
	set := make(map[string]struct{})
	for _, pair := range cfg.Pairs {
		if !pair.Enabled {
			continue
		}
		set[strings.ToUpper(pair.Source)] = struct{}{}
		set[strings.ToUpper(pair.Target)] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// statusClass folds an HTTP status code into the coarse class api:hit uses.
func statusClass(code int) string {
	switch {
	case code == 0:
		return "error"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
