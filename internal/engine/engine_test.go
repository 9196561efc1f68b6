// Crosswatch - Multi-Provider Media Library Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crosswatch

package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"go.uber.org/goleak"

	"github.com/tomtom215/crosswatch/internal/config"
	"github.com/tomtom215/crosswatch/internal/events"
	"github.com/tomtom215/crosswatch/internal/idmap"
	"github.com/tomtom215/crosswatch/internal/models"
	"github.com/tomtom215/crosswatch/internal/provider"
	"github.com/tomtom215/crosswatch/internal/state"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeAdapter is an in-memory provider for engine tests. Writes are recorded
// and, by default, fully confirmed.
type fakeAdapter struct {
	name  string
	caps  provider.Capabilities
	index models.Index

	mu      sync.Mutex
	adds    [][]models.Item
	removes [][]models.Item
	dryRuns []bool
	addFn   func(items []models.Item) (provider.WriteResult, error)
}

func (f *fakeAdapter) Name() string  { return f.name }
func (f *fakeAdapter) Label() string { return f.name }
func (f *fakeAdapter) Features() map[string]bool {
	return map[string]bool{models.FeatureWatchlist: true, models.FeatureRatings: true}
}
func (f *fakeAdapter) Capabilities() provider.Capabilities { return f.caps }
func (f *fakeAdapter) IsConfigured(*config.Config) bool    { return true }
func (f *fakeAdapter) Health(context.Context, *config.Config) provider.HealthReport {
	return provider.HealthReport{OK: true, Status: provider.StatusOK}
}

func (f *fakeAdapter) BuildIndex(context.Context, *config.Config, string) (models.Index, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return models.CloneIndex(f.index), nil
}

func (f *fakeAdapter) Add(_ context.Context, _ *config.Config, _ string, items []models.Item, dryRun bool) (provider.WriteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adds = append(f.adds, items)
	f.dryRuns = append(f.dryRuns, dryRun)
	if f.addFn != nil {
		return f.addFn(items)
	}
	return provider.WriteResult{OK: true, Count: len(items)}, nil
}

func (f *fakeAdapter) Remove(_ context.Context, _ *config.Config, _ string, items []models.Item, dryRun bool) (provider.WriteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removes = append(f.removes, items)
	f.dryRuns = append(f.dryRuns, dryRun)
	return provider.WriteResult{OK: true, Count: len(items)}, nil
}

func (f *fakeAdapter) addCalls() [][]models.Item {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.adds
}

func (f *fakeAdapter) removeCalls() [][]models.Item {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.removes
}

// recorder is a concurrency-safe event capture.
type recorder struct {
	mu     sync.Mutex
	events []string
	fields []events.Fields
}

func (r *recorder) Emit(event string, fields events.Fields) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	r.fields = append(r.fields, fields)
}

func (r *recorder) count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == event {
			n++
		}
	}
	return n
}

func (r *recorder) last(event string) events.Fields {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i] == event {
			return r.fields[i]
		}
	}
	return nil
}

func testConfig(t *testing.T, mode string) *config.Config {
	t.Helper()
	return &config.Config{
		StatePath: t.TempDir(),
		Sync: config.SyncConfig{
			EnableAdd:              true,
			EnableRemove:           true,
			IncludeObservedDeletes: true,
			TombstoneTTLDays:       30,
			Blackbox: config.BlackboxConfig{
				Enabled:      true,
				PromoteAfter: 3,
				PairScoped:   true,
				CooldownDays: 30,
				BlockAdds:    true,
			},
		},
		Runtime: config.RuntimeConfig{
			SuspectMinPrev:     20,
			SuspectShrinkRatio: 0.10,
		},
		Pairs: []config.PairConfig{{
			Enabled: true,
			Source:  "plex",
			Target:  "trakt",
			Mode:    mode,
			Feature: models.FeatureWatchlist,
		}},
	}
}

func openStore(t *testing.T, cfg *config.Config) *state.Store {
	t.Helper()
	s, err := state.Open(cfg.StatePath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func movie(imdb string) models.Item {
	return models.Item{Type: models.TypeMovie, IDs: map[string]string{"imdb": imdb}}
}

// indexRange builds an index of movies imdb:tt<from>..imdb:tt<to-1>.
func indexRange(from, to int) models.Index {
	idx := models.Index{}
	for i := from; i < to; i++ {
		id := fmt.Sprintf("tt%04d", i)
		idx["imdb:"+id] = movie(id)
	}
	return idx
}

func registryOf(adapters ...*fakeAdapter) *provider.Registry {
	reg := provider.NewRegistry()
	for _, a := range adapters {
		reg.Register(a)
	}
	return reg
}

func TestOneWayConverges(t *testing.T) {
	cfg := testConfig(t, "one-way")
	store := openStore(t, cfg)
	plex := &fakeAdapter{name: "PLEX", caps: provider.Capabilities{IndexSemantics: provider.SemanticsPresent}, index: indexRange(0, 20)}
	trakt := &fakeAdapter{name: "TRAKT", caps: provider.Capabilities{IndexSemantics: provider.SemanticsPresent}, index: models.Index{}}
	rec := &recorder{}
	eng := New(cfg, registryOf(plex, trakt), store, rec)

	res, err := eng.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Added != 20 || res.Removed != 0 || res.Unresolved != 0 {
		t.Fatalf("first cycle = %+v", res)
	}
	if plan := rec.last("one:plan"); plan == nil || plan["adds"] != 20 || plan["removes"] != 0 {
		t.Errorf("plan = %v", plan)
	}
	if calls := trakt.addCalls(); len(calls) != 1 || len(calls[0]) != 20 {
		t.Fatalf("add calls = %d", len(calls))
	}
	if base := store.LoadState().BaselineFor("TRAKT", models.FeatureWatchlist); len(base) != 20 {
		t.Errorf("target baseline = %d items, want 20", len(base))
	}
	if hide := store.LoadWatchlistHide(); len(hide) != 0 {
		t.Errorf("hide list = %v, want empty with no removals", hide)
	}

	// The source drops one item; the target follows and the removal is
	// tombstoned.
	plex.mu.Lock()
	delete(plex.index, "imdb:tt0000")
	plex.mu.Unlock()
	trakt.mu.Lock()
	trakt.index = indexRange(0, 20)
	trakt.mu.Unlock()

	res, err = eng.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if res.Added != 0 || res.Removed != 1 {
		t.Fatalf("second cycle = %+v", res)
	}
	if calls := trakt.removeCalls(); len(calls) != 1 || len(calls[0]) != 1 {
		t.Fatalf("remove calls = %v", calls)
	}
	tombs := store.LoadTombstones()
	if !tombs.HasItem(models.FeatureWatchlist, config.PairKey("PLEX", "TRAKT"), movie("tt0000")) {
		t.Error("confirmed removal not tombstoned")
	}
	if base := store.LoadState().BaselineFor("TRAKT", models.FeatureWatchlist); len(base) != 19 {
		t.Errorf("target baseline = %d items after removal, want 19", len(base))
	}
	if plan := rec.last("one:plan"); plan == nil || plan["adds"] != 0 || plan["removes"] != 1 {
		t.Errorf("second plan = %v", plan)
	}
	if n := rec.count("http:overview"); n != 2 {
		t.Errorf("http:overview count = %d, want one per cycle", n)
	}
	if hide := store.LoadWatchlistHide(); len(hide) != 1 || hide[0] != "imdb:tt0000" {
		t.Errorf("hide list = %v, want the cycle's removed key", hide)
	}
}

func TestOneWayPessimisticAddCounting(t *testing.T) {
	cfg := testConfig(t, "one-way")
	store := openStore(t, cfg)
	plex := &fakeAdapter{name: "PLEX", caps: provider.Capabilities{IndexSemantics: provider.SemanticsPresent},
		index: models.Index{"imdb:tt1": movie("tt1"), "imdb:tt2": movie("tt2"), "imdb:tt3": movie("tt3")}}
	trakt := &fakeAdapter{name: "TRAKT", caps: provider.Capabilities{IndexSemantics: provider.SemanticsPresent}, index: models.Index{}}
	// The provider claims everything landed but reports one item it could not
	// map. Without verify-after-write that voids the whole claim.
	trakt.addFn = func(items []models.Item) (provider.WriteResult, error) {
		return provider.WriteResult{OK: true, Count: len(items), Unresolved: []models.Item{movie("tt2")}}, nil
	}

	rec := &recorder{}
	eng := New(cfg, registryOf(plex, trakt), store, rec)
	res, err := eng.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Added != 0 {
		t.Errorf("added = %d, want 0 (claim voided)", res.Added)
	}
	if res.Unresolved != 1 {
		t.Errorf("unresolved = %d, want 1", res.Unresolved)
	}
	fields := rec.last("apply:add:corrected")
	if fields == nil {
		t.Fatal("apply:add:corrected not emitted")
	}
	if fields["claimed"] != 3 || fields["corrected"] != 0 || fields["new_unresolved"] != 1 {
		t.Errorf("correction fields = %v", fields)
	}
	if base := store.LoadState().BaselineFor("TRAKT", models.FeatureWatchlist); len(base) != 0 {
		t.Errorf("voided adds must not advance the baseline, got %d", len(base))
	}
	if _, ok := store.UnresolvedKeys("TRAKT", models.FeatureWatchlist)["imdb:tt2"]; !ok {
		t.Error("unmapped key missing from unresolved set")
	}

	// Next cycle the committed unresolved key is blocked up front, the two
	// clean items go through and are counted.
	res, err = eng.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if res.Added != 2 {
		t.Errorf("second cycle added = %d, want 2", res.Added)
	}
	calls := trakt.addCalls()
	if len(calls) != 2 || len(calls[1]) != 2 {
		t.Fatalf("second add batch = %v", calls)
	}
	for _, it := range calls[1] {
		if it.IDs["imdb"] == "tt2" {
			t.Error("unresolved key replanned despite blocklist")
		}
	}
	if base := store.LoadState().BaselineFor("TRAKT", models.FeatureWatchlist); len(base) != 2 {
		t.Errorf("baseline = %d after confirmed adds, want 2", len(base))
	}
}

func TestOneWaySuspectSuppressesRemovals(t *testing.T) {
	cfg := testConfig(t, "one-way")
	cfg.Sync.DropGuard = true
	store := openStore(t, cfg)

	// The target has history: 30 items last cycle. This cycle it reports 2
	// with no checkpoint progress, so its snapshot is suspect.
	st := store.LoadState()
	st.SetBaseline("TRAKT", models.FeatureWatchlist, indexRange(0, 30), "")
	if err := store.SaveState(st); err != nil {
		t.Fatal(err)
	}

	plex := &fakeAdapter{name: "PLEX", caps: provider.Capabilities{IndexSemantics: provider.SemanticsPresent}, index: indexRange(0, 25)}
	trakt := &fakeAdapter{name: "TRAKT", caps: provider.Capabilities{IndexSemantics: provider.SemanticsPresent}, index: indexRange(0, 2)}

	eng := New(cfg, registryOf(plex, trakt), store, events.Nop)
	res, err := eng.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Removed != 0 {
		t.Errorf("removed = %d, want 0 under drop guard", res.Removed)
	}
	if calls := trakt.removeCalls(); len(calls) != 0 {
		t.Errorf("remove calls = %v, want none", calls)
	}
	if base := store.LoadState().BaselineFor("TRAKT", models.FeatureWatchlist); len(base) != 30 {
		t.Errorf("suspect baseline = %d, want the previous 30 kept", len(base))
	}
}

func TestOneWayFirstCycleKeepsTargetOnlyItems(t *testing.T) {
	cfg := testConfig(t, "one-way")
	store := openStore(t, cfg)
	// The target holds one item the source never had. With no baseline there
	// is no evidence the source ever dropped it, so the first cycle must
	// leave it alone.
	plex := &fakeAdapter{name: "PLEX", caps: provider.Capabilities{IndexSemantics: provider.SemanticsPresent}, index: indexRange(0, 20)}
	trakt := &fakeAdapter{name: "TRAKT", caps: provider.Capabilities{IndexSemantics: provider.SemanticsPresent}, index: indexRange(0, 21)}

	eng := New(cfg, registryOf(plex, trakt), store, events.Nop)
	res, err := eng.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Removed != 0 {
		t.Fatalf("first cycle removed = %d, want 0", res.Removed)
	}
	if calls := trakt.removeCalls(); len(calls) != 0 {
		t.Fatalf("remove calls on the first cycle = %v, want none", calls)
	}

	// Once baselined, the extra item is a legitimate removal candidate.
	res, err = eng.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if res.Removed != 1 {
		t.Fatalf("second cycle removed = %d, want 1", res.Removed)
	}
	if calls := trakt.removeCalls(); len(calls) != 1 || calls[0][0].IDs["imdb"] != "tt0020" {
		t.Errorf("remove calls = %v", calls)
	}
}

func TestOneWayVerifyAfterWriteGating(t *testing.T) {
	run := func(t *testing.T, verifyConfigured bool) (state.RunResult, *recorder) {
		cfg := testConfig(t, "one-way")
		cfg.Sync.VerifyAfterWrite = verifyConfigured
		store := openStore(t, cfg)
		plex := &fakeAdapter{name: "PLEX", caps: provider.Capabilities{IndexSemantics: provider.SemanticsPresent},
			index: models.Index{"imdb:tt1": movie("tt1"), "imdb:tt2": movie("tt2"), "imdb:tt3": movie("tt3")}}
		trakt := &fakeAdapter{name: "TRAKT",
			caps:  provider.Capabilities{IndexSemantics: provider.SemanticsPresent, VerifyAfterWrite: true},
			index: models.Index{}}
		trakt.addFn = func(items []models.Item) (provider.WriteResult, error) {
			return provider.WriteResult{OK: true, Count: len(items), Unresolved: []models.Item{movie("tt2")}}, nil
		}
		rec := &recorder{}
		eng := New(cfg, registryOf(plex, trakt), store, rec)
		res, err := eng.Run(context.Background(), Options{})
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		return res, rec
	}

	t.Run("capability alone does not lift the pessimistic count", func(t *testing.T) {
		res, rec := run(t, false)
		if res.Added != 0 {
			t.Errorf("added = %d, want 0 while verification is not configured", res.Added)
		}
		if rec.count("apply:add:corrected") != 1 {
			t.Error("unverified claim not voided")
		}
	})

	t.Run("configured and supported verification keeps confirmed adds", func(t *testing.T) {
		res, rec := run(t, true)
		if res.Added != 2 {
			t.Errorf("added = %d, want the 2 resolved items", res.Added)
		}
		if res.Unresolved != 1 {
			t.Errorf("unresolved = %d, want 1", res.Unresolved)
		}
		if rec.count("apply:add:corrected") != 0 {
			t.Error("verified write must not be corrected")
		}
	})
}

func TestPresenceIgnoresWeakFallback(t *testing.T) {
	peer := models.Index{"imdb:tt2": movie("tt2")}
	aliases := aliasPresence(peer)

	if presentIn(movie("tt1"), peer, aliases) {
		t.Error("distinct id-only items must not alias each other through empty titles")
	}
	overlapping := models.Item{Type: models.TypeMovie, IDs: map[string]string{"imdb": "tt2", "tmdb": "7"}}
	if !presentIn(overlapping, peer, aliases) {
		t.Error("shared imdb id not recognized")
	}

	titled := models.Item{Type: models.TypeMovie, Title: "The Fall", Year: 2006}
	idx := models.Index{idmap.CanonicalKey(titled): titled}
	if !presentIn(models.Item{Type: models.TypeMovie, Title: "the fall", Year: 2006}, idx, aliasPresence(idx)) {
		t.Error("id-less items must still match by title and year")
	}
}

func TestTwoWayBootstrapAddsOnly(t *testing.T) {
	cfg := testConfig(t, "two-way")
	store := openStore(t, cfg)
	plex := &fakeAdapter{name: "PLEX", caps: provider.Capabilities{IndexSemantics: provider.SemanticsPresent, ObservedDeletes: true},
		index: models.Index{"imdb:tt1": movie("tt1")}}
	trakt := &fakeAdapter{name: "TRAKT", caps: provider.Capabilities{IndexSemantics: provider.SemanticsPresent, ObservedDeletes: true},
		index: models.Index{"imdb:tt2": movie("tt2")}}

	rec := &recorder{}
	eng := New(cfg, registryOf(plex, trakt), store, rec)
	res, err := eng.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Added != 2 || res.Removed != 0 {
		t.Fatalf("bootstrap cycle = %+v, want 2 adds and no removals", res)
	}
	if len(plex.removeCalls()) != 0 || len(trakt.removeCalls()) != 0 {
		t.Error("bootstrap must never remove")
	}
	if calls := plex.addCalls(); len(calls) != 1 || calls[0][0].IDs["imdb"] != "tt2" {
		t.Errorf("adds to PLEX = %v", calls)
	}
	if calls := trakt.addCalls(); len(calls) != 1 || calls[0][0].IDs["imdb"] != "tt1" {
		t.Errorf("adds to TRAKT = %v", calls)
	}
	if plan := rec.last("two:plan"); plan == nil || plan["adds_to_a"] != 1 || plan["adds_to_b"] != 1 || plan["rem_from_a"] != 0 {
		t.Errorf("plan = %v", plan)
	}
	if rec.count("two:apply:add:A:start") != 1 || rec.count("two:apply:add:B:done") != 1 {
		t.Error("apply envelopes missing")
	}
	if rec.count("two:apply:remove:A:start") != 0 {
		t.Error("empty removal batch must not emit an envelope")
	}
	if done := rec.last("two:apply:add:A:done"); done == nil || done["confirmed"] != 1 {
		t.Errorf("apply done = %v", done)
	}
}

func TestTwoWayObservedDeletePropagates(t *testing.T) {
	run := func(t *testing.T, plexObserved, traktObserved bool) (state.RunResult, *fakeAdapter, *fakeAdapter, *state.Store, *recorder) {
		cfg := testConfig(t, "two-way")
		store := openStore(t, cfg)

		st := store.LoadState()
		st.SetBaseline("PLEX", models.FeatureWatchlist, indexRange(0, 20), "")
		st.SetBaseline("TRAKT", models.FeatureWatchlist, indexRange(0, 20), "")
		if err := store.SaveState(st); err != nil {
			t.Fatal(err)
		}

		// tt0000 vanished from PLEX between cycles; TRAKT still has it.
		plexIdx := indexRange(0, 20)
		delete(plexIdx, "imdb:tt0000")
		plex := &fakeAdapter{name: "PLEX", caps: provider.Capabilities{IndexSemantics: provider.SemanticsPresent, ObservedDeletes: plexObserved}, index: plexIdx}
		trakt := &fakeAdapter{name: "TRAKT", caps: provider.Capabilities{IndexSemantics: provider.SemanticsPresent, ObservedDeletes: traktObserved}, index: indexRange(0, 20)}

		rec := &recorder{}
		eng := New(cfg, registryOf(plex, trakt), store, rec)
		res, err := eng.Run(context.Background(), Options{})
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		return res, plex, trakt, store, rec
	}

	t.Run("capable pair deletes on the peer", func(t *testing.T) {
		res, _, trakt, store, rec := run(t, true, true)
		if res.Removed != 1 || res.Added != 0 {
			t.Fatalf("cycle = %+v, want 1 removal and no adds", res)
		}
		if calls := trakt.removeCalls(); len(calls) != 1 || calls[0][0].IDs["imdb"] != "tt0000" {
			t.Errorf("removes from TRAKT = %v", calls)
		}
		fields := rec.last("deletes:observed")
		if fields == nil || fields["provider"] != "PLEX" || fields["count"] != 1 {
			t.Errorf("deletes:observed = %v", fields)
		}
		if !store.LoadTombstones().HasItem(models.FeatureWatchlist, config.PairKey("PLEX", "TRAKT"), movie("tt0000")) {
			t.Error("observed delete not tombstoned")
		}
	})

	t.Run("one incapable side disables inference for the pair", func(t *testing.T) {
		res, plex, trakt, store, _ := run(t, true, false)
		if res.Added != 1 || res.Removed != 0 {
			t.Fatalf("cycle = %+v, want the item re-added", res)
		}
		if calls := plex.addCalls(); len(calls) != 1 || calls[0][0].IDs["imdb"] != "tt0000" {
			t.Errorf("adds to PLEX = %v", calls)
		}
		if len(trakt.removeCalls()) != 0 {
			t.Error("no tombstone means no removal")
		}
		if n := len(store.LoadTombstones().Keys); n != 0 {
			t.Errorf("tombstone tokens = %d, want none when one side cannot attest deletions", n)
		}
	})
}

func TestRunDryRunWritesNothing(t *testing.T) {
	cfg := testConfig(t, "one-way")
	store := openStore(t, cfg)
	plex := &fakeAdapter{name: "PLEX", caps: provider.Capabilities{IndexSemantics: provider.SemanticsPresent},
		index: models.Index{"imdb:tt1": movie("tt1"), "imdb:tt2": movie("tt2")}}
	trakt := &fakeAdapter{name: "TRAKT", caps: provider.Capabilities{IndexSemantics: provider.SemanticsPresent}, index: models.Index{}}

	rec := &recorder{}
	eng := New(cfg, registryOf(plex, trakt), store, rec)
	res, err := eng.Run(context.Background(), Options{DryRun: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Added != 2 {
		t.Errorf("dry-run still reports the planned adds, got %d", res.Added)
	}
	trakt.mu.Lock()
	dryRuns := append([]bool(nil), trakt.dryRuns...)
	trakt.mu.Unlock()
	if len(dryRuns) != 1 || !dryRuns[0] {
		t.Errorf("adapter not called with dry_run: %v", dryRuns)
	}
	if base := store.LoadState().BaselineFor("TRAKT", models.FeatureWatchlist); len(base) != 0 {
		t.Error("dry run must not persist baselines")
	}
	fields := rec.last("run:done")
	if fields == nil || fields["dry_run"] != true {
		t.Errorf("run:done = %v", fields)
	}
}

func TestRunOnlyFeature(t *testing.T) {
	cfg := testConfig(t, "one-way")
	cfg.Pairs[0].Feature = "multi"
	cfg.Pairs[0].Features = map[string]config.FeatureConfig{
		models.FeatureWatchlist: {Enable: true, Add: true, Remove: true},
		models.FeatureRatings:   {Enable: true, Add: true, Remove: true},
	}
	store := openStore(t, cfg)
	plex := &fakeAdapter{name: "PLEX", caps: provider.Capabilities{IndexSemantics: provider.SemanticsPresent}, index: models.Index{}}
	trakt := &fakeAdapter{name: "TRAKT", caps: provider.Capabilities{IndexSemantics: provider.SemanticsPresent}, index: models.Index{}}

	rec := &recorder{}
	eng := New(cfg, registryOf(plex, trakt), store, rec)
	if _, err := eng.Run(context.Background(), Options{OnlyFeature: models.FeatureRatings}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rec.count("feature:start") != 1 {
		t.Fatalf("feature:start count = %d, want 1", rec.count("feature:start"))
	}
	if rec.last("feature:start")["feature"] != models.FeatureRatings {
		t.Errorf("wrong feature ran: %v", rec.last("feature:start"))
	}
}

func TestRunSkipsUnregisteredPair(t *testing.T) {
	cfg := testConfig(t, "one-way")
	store := openStore(t, cfg)
	plex := &fakeAdapter{name: "PLEX", caps: provider.Capabilities{IndexSemantics: provider.SemanticsPresent}, index: models.Index{}}

	rec := &recorder{}
	eng := New(cfg, registryOf(plex), store, rec)
	if _, err := eng.Run(context.Background(), Options{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	fields := rec.last("pair:skip")
	if fields == nil || fields["reason"] != "TRAKT not registered" {
		t.Errorf("pair:skip = %v", fields)
	}
	if rec.count("feature:start") != 0 {
		t.Error("skipped pair must not run features")
	}
}

func TestRunProgressReceivesEvents(t *testing.T) {
	cfg := testConfig(t, "one-way")
	store := openStore(t, cfg)
	plex := &fakeAdapter{name: "PLEX", caps: provider.Capabilities{IndexSemantics: provider.SemanticsPresent}, index: models.Index{}}
	trakt := &fakeAdapter{name: "TRAKT", caps: provider.Capabilities{IndexSemantics: provider.SemanticsPresent}, index: models.Index{}}

	progress := &recorder{}
	eng := New(cfg, registryOf(plex, trakt), store, events.Nop)
	if _, err := eng.Run(context.Background(), Options{Progress: progress.Emit}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if progress.count("run:start") != 1 || progress.count("run:done") != 1 {
		t.Error("progress callback did not see the cycle envelope events")
	}
}
