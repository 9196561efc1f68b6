// Crosswatch - Multi-Provider Media Library Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crosswatch

package events

import (
	"bufio"
	"bytes"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestJSONLinesStamping(t *testing.T) {
	var buf bytes.Buffer
	j := NewJSONLines(&buf)
	j.now = func() time.Time { return time.Unix(1_700_000_000, 0) }

	j.Emit("run:start", Fields{"pairs": 2})
	j.Emit("run:done", nil)

	sc := bufio.NewScanner(&buf)
	var lines []map[string]any
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("line not valid JSON: %v", err)
		}
		lines = append(lines, m)
	}
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}
	if lines[0]["event"] != "run:start" || lines[0]["pairs"] != float64(2) {
		t.Errorf("first line = %v", lines[0])
	}
	if lines[0]["ts"] != "2023-11-14T22:13:20Z" {
		t.Errorf("ts = %v", lines[0]["ts"])
	}
	if lines[0]["run_id"] != j.RunID() || lines[1]["run_id"] != j.RunID() {
		t.Error("run_id must be stable across a run")
	}
}

func TestTeeForwardsInOrder(t *testing.T) {
	var order []string
	a := Func(func(event string, _ Fields) { order = append(order, "a:"+event) })
	b := Func(func(event string, _ Fields) { order = append(order, "b:"+event) })

	tee := Tee(a, nil, b)
	tee.Emit("x", nil)
	if len(order) != 2 || order[0] != "a:x" || order[1] != "b:x" {
		t.Errorf("order = %v", order)
	}
}

func TestAPIAggregatorCountsHits(t *testing.T) {
	var forwarded []string
	inner := Func(func(event string, _ Fields) { forwarded = append(forwarded, event) })
	agg := NewAPIAggregator(inner)

	agg.Emit("api:hit", Fields{"provider": "PLEX", "endpoint": "/library", "method": "GET", "status": "2xx"})
	agg.Emit("api:hit", Fields{"provider": "PLEX", "endpoint": "/library", "method": "GET", "status": "2xx"})
	agg.Emit("api:hit", Fields{"provider": "TRAKT", "endpoint": "/sync", "method": "POST", "status": "5xx"})
	agg.Emit("feature:done", nil)

	totals := agg.Totals()
	if totals["total"] != int64(3) {
		t.Errorf("total = %v", totals["total"])
	}
	byProvider := totals["by_provider"].(map[string]int64)
	if byProvider["PLEX"] != 2 || byProvider["TRAKT"] != 1 {
		t.Errorf("by_provider = %v", byProvider)
	}
	byStatus := totals["by_status"].(map[string]int64)
	if byStatus["2xx"] != 2 || byStatus["5xx"] != 1 {
		t.Errorf("by_status = %v", byStatus)
	}
	if _, ok := totals["provider_totals"]; ok {
		t.Error("provider_totals present without any merged api:totals")
	}

	// All events pass through to the wrapped emitter.
	if len(forwarded) != 4 {
		t.Errorf("forwarded = %v", forwarded)
	}
}

func TestAPIAggregatorMergesProviderTotals(t *testing.T) {
	agg := NewAPIAggregator(Nop)
	agg.Emit("api:totals", Fields{"totals": map[string]any{"plex.search": 5, "plex.meta": float64(2)}})
	agg.Emit("api:totals", Fields{"totals": map[string]any{"plex.search": int64(1)}})
	agg.Emit("api:totals", Fields{"no_totals_key": true})

	merged := agg.Totals()["provider_totals"].(map[string]int64)
	if merged["plex.search"] != 6 || merged["plex.meta"] != 2 {
		t.Errorf("merged = %v", merged)
	}
}
