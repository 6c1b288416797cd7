// Package reconcile rebuilds local open-position state from broker fills.
// The broker is the source of truth: local state is never incrementally
// patched, it is rebuilt wholesale from every fill in the safety window on
// every run, so a crash mid-reconciliation never leaves stale positions
// behind.
package reconcile

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/riftlabs/controlplane/internal/broker"
	"github.com/riftlabs/controlplane/internal/eventlog"
	"github.com/riftlabs/controlplane/internal/scope"
)

// safetyWindow is subtracted from the cursor's last-seen-fill time before
// refetching, so a fill reported late by the venue after a prior
// reconciliation is still picked up.
const safetyWindow = 24 * time.Hour

// firstRunLookback bounds how far back the very first reconciliation on a
// fresh scope looks, since there is no cursor to anchor from yet.
const firstRunLookback = 7 * 24 * time.Hour

// OpenPosition is the locally persisted view of one open position,
// rebuilt wholly from broker fills on every reconciliation run.
type OpenPosition struct {
	Symbol         string   `json:"symbol"`
	EntryOrderID   string   `json:"entry_order_id"`
	EntryTimestamp string   `json:"entry_timestamp"`
	EntryPrice     float64  `json:"entry_price"`
	EntryQuantity  float64  `json:"entry_quantity"`
	FillIDs        []string `json:"fill_ids"`
	Source         string   `json:"source"`
	ReconciledAt   string   `json:"reconciled_at"`
	EntryCount     int      `json:"entry_count"`
	LastEntryTime  string   `json:"last_entry_time"`
	LastEntryPrice float64  `json:"last_entry_price"`
}

// Cursor is the durable marker of the last fill a reconciliation run has
// incorporated, used to bound the next fetch window.
type Cursor struct {
	LastSeenFillID          string `json:"last_seen_fill_id"`
	LastSeenFillTimeUTC     string `json:"last_seen_fill_time_utc"`
	LastReconciliationUTC   string `json:"last_reconciliation_time_utc"`
}

// Result summarizes one reconciliation run.
type Result struct {
	Status        string                  `json:"status"`
	Positions     map[string]float64      `json:"positions"`
	FillsProcessed int                    `json:"fills_processed"`
	Timestamp     string                  `json:"timestamp"`
	Error         string                  `json:"error,omitempty"`
}

// Engine orchestrates fetch, rebuild, and atomic persistence for one scope.
type Engine struct {
	adapter broker.Adapter
	layout  scope.Layout
	errLog  *eventlog.Sink

	positions map[string]OpenPosition
	cursor    Cursor
}

// NewEngine loads any prior positions/cursor state for layout and returns an
// engine ready to reconcile.
func NewEngine(adapter broker.Adapter, layout scope.Layout, errLog *eventlog.Sink) *Engine {
	e := &Engine{adapter: adapter, layout: layout, errLog: errLog, positions: map[string]OpenPosition{}}

	var positions map[string]OpenPosition
	if err := scope.ReadJSON(layout.OpenPositions(), &positions); err == nil {
		e.positions = positions
	}
	var cursor Cursor
	if err := scope.ReadJSON(layout.ReconciliationCursor(), &cursor); err == nil {
		e.cursor = cursor
	}
	return e
}

// Reconcile fetches fills since the cursor's safety window, rebuilds open
// positions, advances the cursor, and persists both atomically. It is safe
// to call repeatedly; re-running with the same fills is a no-op.
func (e *Engine) Reconcile(ctx context.Context) Result {
	now := time.Now().UTC()

	fills, err := e.fetchFillsSinceCursor(ctx, now)
	if err != nil {
		e.logError(fmt.Sprintf("fetch fills: %v", err))
		return Result{Status: "ERROR", Error: err.Error(), Timestamp: now.Format(time.RFC3339Nano)}
	}

	e.rebuildFromFills(fills, now)

	// A no-op reconciliation (no new fills) must leave the cursor untouched:
	// advancing LastReconciliationUTC here would make the cursor file differ
	// across otherwise-identical runs.
	if len(fills) > 0 {
		last := fills[len(fills)-1]
		e.cursor = Cursor{
			LastSeenFillID:        last.FillID,
			LastSeenFillTimeUTC:   last.Timestamp.UTC().Format(time.RFC3339Nano),
			LastReconciliationUTC: now.Format(time.RFC3339Nano),
		}
	}

	if err := e.persist(); err != nil {
		e.logError(fmt.Sprintf("persist: %v", err))
		return Result{Status: "ERROR", Error: err.Error(), Timestamp: now.Format(time.RFC3339Nano)}
	}

	positions := make(map[string]float64, len(e.positions))
	for symbol, p := range e.positions {
		positions[symbol] = p.EntryQuantity
	}

	return Result{
		Status:         "OK",
		Positions:      positions,
		FillsProcessed: len(fills),
		Timestamp:      now.Format(time.RFC3339Nano),
	}
}

func (e *Engine) fetchFillsSinceCursor(ctx context.Context, now time.Time) ([]broker.Fill, error) {
	var start time.Time
	if e.cursor.LastSeenFillTimeUTC != "" {
		cursorTime, err := time.Parse(time.RFC3339Nano, e.cursor.LastSeenFillTimeUTC)
		if err != nil {
			cursorTime, err = time.Parse(time.RFC3339, e.cursor.LastSeenFillTimeUTC)
			if err != nil {
				return nil, fmt.Errorf("parse cursor timestamp %q: %w", e.cursor.LastSeenFillTimeUTC, err)
			}
		}
		start = cursorTime.Add(-safetyWindow)
	} else {
		start = now.Add(-firstRunLookback)
	}

	fills, err := e.adapter.ListFills(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("list fills since %s: %w", start, err)
	}

	seen := make(map[string]bool, len(fills))
	deduped := make([]broker.Fill, 0, len(fills))
	for _, f := range fills {
		if f.FillID == "" || seen[f.FillID] {
			continue
		}
		seen[f.FillID] = true
		deduped = append(deduped, f)
	}

	sort.Slice(deduped, func(i, j int) bool {
		return deduped[i].Timestamp.Before(deduped[j].Timestamp)
	})

	return deduped, nil
}

// rebuildFromFills recomputes open positions wholesale from fills. Symbols
// with net quantity <= 0 (fully sold, or sold more than bought) are dropped
// rather than persisted as a negative or flat position.
func (e *Engine) rebuildFromFills(fills []broker.Fill, now time.Time) {
	if len(fills) == 0 {
		return
	}

	bySymbol := make(map[string][]broker.Fill)
	for _, f := range fills {
		bySymbol[f.Symbol] = append(bySymbol[f.Symbol], f)
	}

	rebuilt := make(map[string]OpenPosition, len(bySymbol))
	for symbol, symbolFills := range bySymbol {
		var netQty float64
		for _, f := range symbolFills {
			if f.Side == broker.Buy {
				netQty += f.Quantity
			} else {
				netQty -= f.Quantity
			}
		}
		if netQty <= 0 {
			continue
		}

		var buyFills []broker.Fill
		for _, f := range symbolFills {
			if f.Side == broker.Buy {
				buyFills = append(buyFills, f)
			}
		}
		if len(buyFills) == 0 {
			continue
		}

		firstBuy := buyFills[0]
		lastBuy := buyFills[0]
		var totalCost, totalQty float64
		fillIDs := make([]string, 0, len(buyFills))
		for _, f := range buyFills {
			if f.Timestamp.Before(firstBuy.Timestamp) {
				firstBuy = f
			}
			if f.Timestamp.After(lastBuy.Timestamp) {
				lastBuy = f
			}
			totalCost += f.Quantity * f.Price
			totalQty += f.Quantity
			fillIDs = append(fillIDs, f.FillID)
		}
		avgEntryPrice := 0.0
		if totalQty > 0 {
			avgEntryPrice = totalCost / totalQty
		}

		rebuilt[symbol] = OpenPosition{
			Symbol:         symbol,
			EntryOrderID:   firstBuy.OrderID,
			EntryTimestamp: firstBuy.Timestamp.UTC().Format(time.RFC3339Nano),
			EntryPrice:     avgEntryPrice,
			EntryQuantity:  netQty,
			FillIDs:        fillIDs,
			Source:         "BROKER_RECONCILIATION",
			ReconciledAt:   now.Format(time.RFC3339Nano),
			EntryCount:     len(buyFills),
			LastEntryTime:  lastBuy.Timestamp.UTC().Format(time.RFC3339Nano),
			LastEntryPrice: lastBuy.Price,
		}
	}

	e.positions = rebuilt
}

func (e *Engine) persist() error {
	if err := scope.WriteJSONAtomic(e.layout.OpenPositions(), e.positions); err != nil {
		return fmt.Errorf("persist positions: %w", err)
	}
	if err := scope.WriteJSONAtomic(e.layout.ReconciliationCursor(), e.cursor); err != nil {
		return fmt.Errorf("persist cursor: %w", err)
	}
	return nil
}

func (e *Engine) logError(msg string) {
	log.Error().Str("component", "reconcile").Msg(msg)
	if e.errLog == nil {
		return
	}
	_ = e.errLog.Append(eventlog.ErrorEvent{
		Envelope:  eventlog.NewEnvelope(),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Component: "reconcile",
		Message:   msg,
	})
}
