package reconcile

import (
	"bytes"
	"context"
	"math"
	"os"
	"testing"
	"time"

	"github.com/riftlabs/controlplane/internal/broker"
	"github.com/riftlabs/controlplane/internal/scope"
)

type fakeAdapter struct {
	broker.Adapter
	fills []broker.Fill
}

func (f *fakeAdapter) ListFills(ctx context.Context, since time.Time) ([]broker.Fill, error) {
	var out []broker.Fill
	for _, fill := range f.fills {
		if !fill.Timestamp.Before(since) {
			out = append(out, fill)
		}
	}
	return out, nil
}

// fakeAdapterOnce returns its configured fills on the first ListFills call
// and none thereafter, modeling a broker with nothing new to report once
// everything has already been seen.
type fakeAdapterOnce struct {
	broker.Adapter
	fills  []broker.Fill
	served bool
}

func (f *fakeAdapterOnce) ListFills(ctx context.Context, since time.Time) ([]broker.Fill, error) {
	if f.served {
		return nil, nil
	}
	f.served = true
	return f.fills, nil
}

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	tm, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return tm
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

// anchorCursor places the engine's fetch window (cursor minus the 24h
// safety window) over the fixed-date fixtures below; without it the
// first-run lookback is measured back from the wall clock and excludes them.
func anchorCursor(e *Engine) {
	e.cursor.LastSeenFillTimeUTC = "2026-01-02T00:00:00Z"
}

func TestReconcileRebuildsPFEAndKOFromFills(t *testing.T) {
	adapter := &fakeAdapter{fills: []broker.Fill{
		{FillID: "f1", OrderID: "o1", Symbol: "PFE", Side: broker.Buy, Quantity: 0.03755163, Price: 26.628, Timestamp: mustParse(t, "2026-02-02T20:55:29Z")},
		{FillID: "f2", OrderID: "o2", Symbol: "PFE", Side: broker.Buy, Quantity: 0.04752182, Price: 25.778, Timestamp: mustParse(t, "2026-02-03T20:55:29Z")},
		{FillID: "f3", OrderID: "o3", Symbol: "PFE", Side: broker.Buy, Quantity: 0.04500565, Price: 26.528, Timestamp: mustParse(t, "2026-02-05T20:55:55Z")},
		{FillID: "f4", OrderID: "o4", Symbol: "KO", Side: broker.Buy, Quantity: 0.01590747, Price: 77.038, Timestamp: mustParse(t, "2026-02-03T20:55:29Z")},
	}}

	layout := scope.NewLayout(t.TempDir(), scope.Scope{Env: scope.EnvPaper, Broker: "alpaca", Market: "us-equity", Region: "na"})

	engine := NewEngine(adapter, layout, nil)
	anchorCursor(engine)
	result := engine.Reconcile(context.Background())

	if result.Status != "OK" {
		t.Fatalf("status = %q, want OK (err=%s)", result.Status, result.Error)
	}
	if !almostEqual(result.Positions["PFE"], 0.1300791) {
		t.Errorf("PFE qty = %v, want 0.1300791", result.Positions["PFE"])
	}
	if !almostEqual(result.Positions["KO"], 0.01590747) {
		t.Errorf("KO qty = %v, want 0.01590747", result.Positions["KO"])
	}

	pfe := engine.positions["PFE"]
	if pfe.EntryTimestamp[:10] != "2026-02-02" {
		t.Errorf("PFE entry_timestamp = %q, want to begin 2026-02-02", pfe.EntryTimestamp)
	}
	if pfe.LastEntryTime[:10] != "2026-02-05" {
		t.Errorf("PFE last_entry_time = %q, want to begin 2026-02-05", pfe.LastEntryTime)
	}

	// Re-running rebuild_from_fills with the same fills must be idempotent.
	engine.rebuildFromFills(adapter.fills, time.Now().UTC())
	if !almostEqual(engine.positions["PFE"].EntryQuantity, 0.1300791) {
		t.Errorf("second rebuild PFE qty = %v, want 0.1300791", engine.positions["PFE"].EntryQuantity)
	}
	if !almostEqual(engine.positions["KO"].EntryQuantity, 0.01590747) {
		t.Errorf("second rebuild KO qty = %v, want 0.01590747", engine.positions["KO"].EntryQuantity)
	}
}

func TestReconcileDropsFullyClosedSymbol(t *testing.T) {
	adapter := &fakeAdapter{fills: []broker.Fill{
		{FillID: "f1", OrderID: "o1", Symbol: "ABC", Side: broker.Buy, Quantity: 10, Price: 50, Timestamp: mustParse(t, "2026-01-01T00:00:00Z")},
		{FillID: "f2", OrderID: "o2", Symbol: "ABC", Side: broker.Sell, Quantity: 10, Price: 55, Timestamp: mustParse(t, "2026-01-02T00:00:00Z")},
	}}
	layout := scope.NewLayout(t.TempDir(), scope.Scope{Env: scope.EnvPaper, Broker: "alpaca", Market: "us-equity", Region: "na"})

	engine := NewEngine(adapter, layout, nil)
	anchorCursor(engine)
	result := engine.Reconcile(context.Background())

	if _, ok := result.Positions["ABC"]; ok {
		t.Errorf("expected fully-closed symbol ABC to be absent from rebuilt positions")
	}
}

func TestReconcileDedupesByFillID(t *testing.T) {
	fill := broker.Fill{FillID: "dup", OrderID: "o1", Symbol: "XYZ", Side: broker.Buy, Quantity: 1, Price: 10, Timestamp: mustParse(t, "2026-01-01T00:00:00Z")}
	adapter := &fakeAdapter{fills: []broker.Fill{fill, fill}}
	layout := scope.NewLayout(t.TempDir(), scope.Scope{Env: scope.EnvPaper, Broker: "alpaca", Market: "us-equity", Region: "na"})

	engine := NewEngine(adapter, layout, nil)
	anchorCursor(engine)
	fills, err := engine.fetchFillsSinceCursor(context.Background(), time.Now().UTC())
	if err != nil {
		t.Fatalf("fetchFillsSinceCursor failed: %v", err)
	}
	if len(fills) != 1 {
		t.Errorf("expected dedup to 1 fill, got %d", len(fills))
	}
}

func TestReconcilePersistsAtomicallyAndReloads(t *testing.T) {
	adapter := &fakeAdapter{fills: []broker.Fill{
		{FillID: "f1", OrderID: "o1", Symbol: "KO", Side: broker.Buy, Quantity: 1, Price: 60, Timestamp: mustParse(t, "2026-01-01T00:00:00Z")},
	}}
	layout := scope.NewLayout(t.TempDir(), scope.Scope{Env: scope.EnvPaper, Broker: "alpaca", Market: "us-equity", Region: "na"})

	engine := NewEngine(adapter, layout, nil)
	anchorCursor(engine)
	engine.Reconcile(context.Background())

	reloaded := NewEngine(&fakeAdapter{}, layout, nil)
	if len(reloaded.positions) != 1 {
		t.Fatalf("expected reload to find 1 persisted position, got %d", len(reloaded.positions))
	}
	if reloaded.cursor.LastSeenFillID != "f1" {
		t.Errorf("reloaded cursor last_seen_fill_id = %q, want f1", reloaded.cursor.LastSeenFillID)
	}
}

func TestReconcileWithNoNewFillsLeavesPositionsAndCursorByteIdentical(t *testing.T) {
	adapter := &fakeAdapterOnce{fills: []broker.Fill{
		{FillID: "f1", OrderID: "o1", Symbol: "KO", Side: broker.Buy, Quantity: 1, Price: 60, Timestamp: mustParse(t, "2026-01-01T00:00:00Z")},
	}}
	layout := scope.NewLayout(t.TempDir(), scope.Scope{Env: scope.EnvPaper, Broker: "alpaca", Market: "us-equity", Region: "na"})

	engine := NewEngine(adapter, layout, nil)
	if result := engine.Reconcile(context.Background()); result.Status != "OK" {
		t.Fatalf("first reconcile status = %q, want OK (err=%s)", result.Status, result.Error)
	}

	positionsBefore, err := os.ReadFile(layout.OpenPositions())
	if err != nil {
		t.Fatalf("read positions: %v", err)
	}
	cursorBefore, err := os.ReadFile(layout.ReconciliationCursor())
	if err != nil {
		t.Fatalf("read cursor: %v", err)
	}

	// Reconciling again with no new fills (ListFills returns nothing past the
	// cursor) must leave both files byte-identical.
	if result := engine.Reconcile(context.Background()); result.Status != "OK" {
		t.Fatalf("second reconcile status = %q, want OK (err=%s)", result.Status, result.Error)
	}

	positionsAfter, err := os.ReadFile(layout.OpenPositions())
	if err != nil {
		t.Fatalf("read positions: %v", err)
	}
	cursorAfter, err := os.ReadFile(layout.ReconciliationCursor())
	if err != nil {
		t.Fatalf("read cursor: %v", err)
	}

	if !bytes.Equal(positionsBefore, positionsAfter) {
		t.Errorf("positions file changed across a no-op reconciliation:\nbefore: %s\nafter:  %s", positionsBefore, positionsAfter)
	}
	if !bytes.Equal(cursorBefore, cursorAfter) {
		t.Errorf("cursor file changed across a no-op reconciliation:\nbefore: %s\nafter:  %s", cursorBefore, cursorAfter)
	}
}
