// Crosswatch - Multi-Provider Media Library Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crosswatch

// Package main is the crosswatch entry point.
//
// Crosswatch keeps watchlists, ratings, watch history and playlists in sync
// across media services. One invocation runs one synchronization cycle over
// the configured pairs; with -interval it keeps cycling until signalled.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (CW_ prefix, "__" for nesting)
//   - Config file (-config flag, CW_CONFIG_PATH, or config.yaml)
//   - Built-in defaults
//
// # Usage
//
// Single cycle (default, suitable for cron or a systemd timer):
//
//	crosswatch -config /etc/crosswatch/config.yaml
//
// Preview without writing anything:
//
//	crosswatch -dry-run -only-feature watchlist
//
// Long-running with a 15 minute cadence and metrics exposition:
//
//	CW_METRICS__ENABLED=true crosswatch -interval 15m
//
// The process exits 0 when every cycle completed, 1 on configuration or
// state-lock errors, and 2 when a cycle was interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/crosswatch/internal/config"
	"github.com/tomtom215/crosswatch/internal/engine"
	"github.com/tomtom215/crosswatch/internal/events"
	"github.com/tomtom215/crosswatch/internal/logging"
	"github.com/tomtom215/crosswatch/internal/provider"
	"github.com/tomtom215/crosswatch/internal/state"
)

// adapterConstructors maps upper-case provider names to adapter factories.
// Provider modules register themselves here from their own init functions;
// builds that link no adapter packages still run (pairs referencing unknown
// providers skip with an event).
var adapterConstructors = map[string]func() provider.Adapter{}

func main() {
	var (
		configPath  = flag.String("config", "", "path to config file (default: CW_CONFIG_PATH or config.yaml)")
		statePath   = flag.String("state", "", "override the state directory")
		dryRun      = flag.Bool("dry-run", false, "plan and report without writing")
		onlyFeature = flag.String("only-feature", "", "restrict the cycle to one feature")
		once        = flag.Bool("once", true, "run a single cycle and exit")
		interval    = flag.Duration("interval", 0, "cycle cadence; implies -once=false when > 0")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}
	if *statePath != "" {
		cfg.StatePath = *statePath
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().Str("state_path", cfg.StatePath).Int("pairs", len(cfg.Pairs)).Msg("starting crosswatch")

	store, err := state.Open(cfg.StatePath)
	if err != nil {
		if errors.Is(err, state.ErrLocked) {
			logging.Fatal().Str("state_path", cfg.StatePath).Msg("another crosswatch process holds the state lock")
		}
		logging.Fatal().Err(err).Msg("failed to open state store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("error releasing state lock")
		}
	}()

	reg := buildRegistry(cfg)

	sink, closer := events.NewRotatingSink(filepath.Join(cfg.StatePath, "events.jsonl"))
	defer func() {
		if err := closer.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing event sink")
		}
	}()
	logging.Info().Str("run_id", sink.RunID()).Msg("event sink opened")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsServer = startMetricsServer(cfg.Metrics.Listen)
		defer shutdownMetricsServer(metricsServer)
	}

	eng := engine.New(cfg, reg, store, sink)
	opts := engine.Options{DryRun: *dryRun, OnlyFeature: *onlyFeature}

	runOnce := *once && *interval <= 0
	for {
		res, err := eng.Run(ctx, opts)
		if err != nil {
			logging.Error().Err(err).Msg("cycle interrupted")
			os.Exit(2)
		}
		logging.Info().
			Int("added", res.Added).
			Int("removed", res.Removed).
			Int("unresolved", res.Unresolved).
			Msg("cycle complete")

		if runOnce {
			return
		}
		select {
		case <-ctx.Done():
			logging.Info().Msg("stopped")
			return
		case <-time.After(*interval):
		}
	}
}

// buildRegistry instantiates an adapter for every enabled provider the build
// knows a constructor for, wrapped in the per-provider circuit breaker.
func buildRegistry(cfg *config.Config) *provider.Registry {
	reg := provider.NewRegistry()
	for name, pc := range cfg.Providers {
		if !pc.Enabled {
			continue
		}
		construct, ok := adapterConstructors[strings.ToUpper(name)]
		if !ok {
			logging.Warn().Str("provider", name).Msg("no adapter compiled in for provider; pairs using it will skip")
			continue
		}
		adapter := provider.WrapWithBreaker(construct())
		reg.Register(adapter)
		logging.Info().Str("provider", adapter.Name()).Str("label", adapter.Label()).Msg("provider registered")
	}
	return reg
}

// startMetricsServer serves /metrics and /healthz on the configured address.
func startMetricsServer(listen string) *http.Server {
	router := chi.NewRouter()
	router.Use(chimiddleware.Recoverer)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	server := &http.Server{
		Addr:         listen,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		logging.Info().Str("addr", listen).Msg("metrics endpoint listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error().Err(err).Msg("metrics server error")
		}
	}()
	return server
}

func shutdownMetricsServer(server *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logging.Error().Err(err).Msg("metrics server shutdown")
	}
}
