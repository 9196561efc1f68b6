// Crosswatch - Multi-Provider Media Library Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crosswatch

package applier

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/tomtom215/crosswatch/internal/config"
	"github.com/tomtom215/crosswatch/internal/events"
	"github.com/tomtom215/crosswatch/internal/models"
	"github.com/tomtom215/crosswatch/internal/provider"
)

// scriptedAdapter replays canned write outcomes call by call.
type scriptedAdapter struct {
	calls   [][]models.Item
	results []func(items []models.Item) (provider.WriteResult, error)
}

func (a *scriptedAdapter) Name() string                        { return "TRAKT" }
func (a *scriptedAdapter) Label() string                       { return "Trakt" }
func (a *scriptedAdapter) Features() map[string]bool           { return map[string]bool{models.FeatureWatchlist: true} }
func (a *scriptedAdapter) Capabilities() provider.Capabilities { return provider.Capabilities{} }
func (a *scriptedAdapter) IsConfigured(*config.Config) bool    { return true }
func (a *scriptedAdapter) Health(context.Context, *config.Config) provider.HealthReport {
	return provider.HealthReport{OK: true, Status: provider.StatusOK}
}
func (a *scriptedAdapter) BuildIndex(context.Context, *config.Config, string) (models.Index, error) {
	return models.Index{}, nil
}

func (a *scriptedAdapter) write(items []models.Item) (provider.WriteResult, error) {
	a.calls = append(a.calls, items)
	i := len(a.calls) - 1
	if i < len(a.results) {
		return a.results[i](items)
	}
	return provider.WriteResult{OK: true, Count: len(items)}, nil
}

func (a *scriptedAdapter) Add(_ context.Context, _ *config.Config, _ string, items []models.Item, _ bool) (provider.WriteResult, error) {
	return a.write(items)
}

func (a *scriptedAdapter) Remove(_ context.Context, _ *config.Config, _ string, items []models.Item, _ bool) (provider.WriteResult, error) {
	return a.write(items)
}

func ok(items []models.Item) (provider.WriteResult, error) {
	return provider.WriteResult{OK: true, Count: len(items)}, nil
}

func fail([]models.Item) (provider.WriteResult, error) {
	return provider.WriteResult{}, errors.New("upstream 503")
}

func nItems(n int) []models.Item {
	out := make([]models.Item, n)
	for i := range out {
		out[i] = models.Item{Type: models.TypeMovie, IDs: map[string]string{"imdb": fmt.Sprintf("tt%03d", i)}}
	}
	return out
}

type recorder struct {
	events []string
	fields []events.Fields
}

func (r *recorder) Emit(event string, fields events.Fields) {
	r.events = append(r.events, event)
	r.fields = append(r.fields, fields)
}

func (r *recorder) count(event string) int {
	n := 0
	for _, e := range r.events {
		if e == event {
			n++
		}
	}
	return n
}

func TestApplyChunksInOrder(t *testing.T) {
	adapter := &scriptedAdapter{}
	rec := &recorder{}
	a := &Applier{ChunkSize: 4, Emit: rec}

	res := a.Apply(context.Background(), adapter, &config.Config{}, OpAdd, "TRAKT", models.FeatureWatchlist, nItems(10), false)
	if res.Err != nil {
		t.Fatalf("Err = %v", res.Err)
	}
	if res.Confirmed != 10 {
		t.Errorf("confirmed = %d, want 10", res.Confirmed)
	}
	if len(adapter.calls) != 3 {
		t.Fatalf("chunks = %d, want 3", len(adapter.calls))
	}
	if len(adapter.calls[0]) != 4 || len(adapter.calls[1]) != 4 || len(adapter.calls[2]) != 2 {
		t.Errorf("chunk sizes = %d/%d/%d", len(adapter.calls[0]), len(adapter.calls[1]), len(adapter.calls[2]))
	}
	if adapter.calls[0][0].IDs["imdb"] != "tt000" || adapter.calls[2][1].IDs["imdb"] != "tt009" {
		t.Error("input order not preserved across chunks")
	}
	if rec.count("apply:add:start") != 1 || rec.count("apply:add:progress") != 3 || rec.count("apply:add:done") != 1 {
		t.Errorf("event trail = %v", rec.events)
	}
}

func TestApplyChunkingDisabled(t *testing.T) {
	adapter := &scriptedAdapter{}
	a := &Applier{ChunkSize: 0, Emit: events.Nop}
	a.Apply(context.Background(), adapter, &config.Config{}, OpRemove, "TRAKT", models.FeatureWatchlist, nItems(100), false)
	if len(adapter.calls) != 1 || len(adapter.calls[0]) != 100 {
		t.Errorf("chunk_size<=0 should issue one call, got %d calls", len(adapter.calls))
	}
}

func TestApplyEmptyInputIsNoop(t *testing.T) {
	adapter := &scriptedAdapter{}
	rec := &recorder{}
	a := &Applier{Emit: rec}
	res := a.Apply(context.Background(), adapter, &config.Config{}, OpAdd, "TRAKT", models.FeatureWatchlist, nil, false)
	if res.Confirmed != 0 || res.Err != nil || len(adapter.calls) != 0 || len(rec.events) != 0 {
		t.Error("empty input should not touch the adapter or emit")
	}
}

func TestApplyRetriesTransientFailure(t *testing.T) {
	adapter := &scriptedAdapter{results: []func([]models.Item) (provider.WriteResult, error){
		fail, fail, ok,
	}}
	a := &Applier{Emit: events.Nop}
	res := a.Apply(context.Background(), adapter, &config.Config{}, OpAdd, "TRAKT", models.FeatureWatchlist, nItems(3), false)
	if res.Err != nil {
		t.Fatalf("third attempt succeeded but Err = %v", res.Err)
	}
	if res.Confirmed != 3 {
		t.Errorf("confirmed = %d, want 3", res.Confirmed)
	}
	if len(adapter.calls) != 3 {
		t.Errorf("attempts = %d, want 3", len(adapter.calls))
	}
}

func TestApplyPartialChunkFailure(t *testing.T) {
	// First chunk fails all three attempts; second chunk succeeds.
	adapter := &scriptedAdapter{results: []func([]models.Item) (provider.WriteResult, error){
		fail, fail, fail, ok,
	}}
	a := &Applier{ChunkSize: 2, Emit: events.Nop}
	res := a.Apply(context.Background(), adapter, &config.Config{}, OpAdd, "TRAKT", models.FeatureWatchlist, nItems(4), false)
	if res.Err != nil {
		t.Errorf("partial progress must not surface as Err: %v", res.Err)
	}
	if res.Confirmed != 2 {
		t.Errorf("confirmed = %d, want 2 (second chunk only)", res.Confirmed)
	}
}

func TestApplyTotalFailureSetsErr(t *testing.T) {
	adapter := &scriptedAdapter{results: []func([]models.Item) (provider.WriteResult, error){
		fail, fail, fail,
	}}
	a := &Applier{Emit: events.Nop}
	res := a.Apply(context.Background(), adapter, &config.Config{}, OpAdd, "TRAKT", models.FeatureWatchlist, nItems(2), false)
	if res.Err == nil {
		t.Error("all chunks failed, Err must be set")
	}
	if res.Confirmed != 0 {
		t.Errorf("confirmed = %d, want 0", res.Confirmed)
	}
}

func TestApplyCollectsUnresolved(t *testing.T) {
	adapter := &scriptedAdapter{results: []func([]models.Item) (provider.WriteResult, error){
		func(items []models.Item) (provider.WriteResult, error) {
			return provider.WriteResult{OK: true, Count: len(items) - 1, Unresolved: items[:1]}, nil
		},
	}}
	rec := &recorder{}
	a := &Applier{Emit: rec}
	res := a.Apply(context.Background(), adapter, &config.Config{}, OpAdd, "TRAKT", models.FeatureWatchlist, nItems(3), false)
	if len(res.Unresolved) != 1 {
		t.Errorf("unresolved = %d, want 1", len(res.Unresolved))
	}
	if rec.count("apply:unresolved") != 1 {
		t.Errorf("apply:unresolved events = %d", rec.count("apply:unresolved"))
	}
}

func TestApplyRateSlowEmits(t *testing.T) {
	adapter := &scriptedAdapter{}
	rec := &recorder{}
	a := &Applier{RateSlow: true, Emit: rec}
	a.Apply(context.Background(), adapter, &config.Config{}, OpAdd, "TRAKT", models.FeatureWatchlist, nItems(1), false)
	if rec.count("rate:slow") != 1 {
		t.Error("rate:slow not emitted for a near-limit provider")
	}
}

func TestChunkSplit(t *testing.T) {
	if got := chunk(nItems(5), 2); len(got) != 3 {
		t.Errorf("chunk(5,2) = %d parts", len(got))
	}
	if got := chunk(nItems(4), 4); len(got) != 1 {
		t.Errorf("chunk(4,4) = %d parts, want 1", len(got))
	}
	if got := chunk(nItems(3), -1); len(got) != 1 {
		t.Errorf("chunk(3,-1) = %d parts, want 1", len(got))
	}
}
