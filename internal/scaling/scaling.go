// Package scaling implements the position-scaling decision engine: given a
// proposed add to an existing position, decide BLOCK / SKIP / SCALE with a
// structured reason code. Checks run in a fixed order; the first failure
// wins. BLOCK is a hard safety violation (execution-layer enforced); SKIP
// means conditions aren't met yet but the signal may qualify later.
package scaling

import "time"

// ScalingType is how a strategy intends to add to a winning or losing
// position.
type ScalingType string

const (
	// ScalingPyramid adds at progressively better prices (higher for longs).
	ScalingPyramid ScalingType = "pyramid"
	// ScalingAverage adds at progressively worse prices (lower for longs).
	ScalingAverage ScalingType = "average"
)

// Decision is the outcome of a scaling evaluation.
type Decision string

const (
	DecisionBlock Decision = "BLOCK"
	DecisionSkip  Decision = "SKIP"
	DecisionScale Decision = "SCALE"
)

// ReasonCode is a structured, stable identifier for why a decision was
// reached.
type ReasonCode string

const (
	ReasonStrategyDisallowsScaling ReasonCode = "strategy_disallows_scaling"
	ReasonMaxEntriesExceeded       ReasonCode = "max_entries_exceeded"
	ReasonMaxPositionSizeExceeded  ReasonCode = "max_position_size_exceeded"
	ReasonPendingBuyExists         ReasonCode = "pending_buy_exists"
	ReasonConflictingSellExists    ReasonCode = "conflicting_sell_exists"
	ReasonBrokerLedgerMismatch     ReasonCode = "broker_ledger_mismatch"
	ReasonRiskBudgetExceeded       ReasonCode = "risk_budget_exceeded"
	ReasonOrderSizeBelowMinimum    ReasonCode = "order_size_below_minimum"
	ReasonMinimumBarsNotMet        ReasonCode = "minimum_bars_not_met"
	ReasonMinimumTimeNotMet        ReasonCode = "minimum_time_not_met"
	ReasonSignalConfidenceTooLow   ReasonCode = "signal_confidence_too_low"
	ReasonSignalQualityInsufficient ReasonCode = "signal_quality_insufficient"
	ReasonPriceStructureViolation  ReasonCode = "price_structure_violation"
	ReasonVolatilityRegimeInvalid  ReasonCode = "volatility_regime_invalid"
	ReasonAllChecksPassed          ReasonCode = "all_checks_passed"
)

// Policy is a strategy-declared scaling policy. The zero value is the
// single-entry default: no scaling permitted.
type Policy struct {
	AllowsMultipleEntries        bool
	MaxEntriesPerSymbol          int
	MaxTotalPositionPct          float64
	ScalingType                  ScalingType
	MinBarsBetweenEntries        int
	MinTimeBetweenEntries        time.Duration
	MinSignalStrengthForAdd      float64
	MaxATRDrawdownMultiple       float64
	RequireNoLowerLow            bool
	RequireVolatilityAboveMedian bool
}

// DefaultPolicy is the fail-safe single-entry policy.
func DefaultPolicy() Policy {
	return Policy{MaxEntriesPerSymbol: 1, MaxTotalPositionPct: 5.0}
}

// Validate checks policy field consistency.
func (p Policy) Validate() error {
	if !p.AllowsMultipleEntries {
		return nil
	}
	if p.MaxEntriesPerSymbol < 1 {
		return errInvalidPolicy("max_entries_per_symbol must be >= 1")
	}
	if p.MaxTotalPositionPct <= 0 {
		return errInvalidPolicy("max_total_position_pct must be > 0")
	}
	if p.MinBarsBetweenEntries < 0 {
		return errInvalidPolicy("min_bars_between_entries must be >= 0")
	}
	if p.MinTimeBetweenEntries < 0 {
		return errInvalidPolicy("min_time_between_entries must be >= 0")
	}
	return nil
}

type policyError string

func (e policyError) Error() string { return string(e) }
func errInvalidPolicy(msg string) error { return policyError(msg) }

// LedgerEntry is one locally tracked entry into a position.
type LedgerEntry struct {
	Price  float64
	Qty    float64
	Status string // "open" or "closed"
}

// PendingOrder is an order submitted but not yet filled or cancelled.
type PendingOrder struct {
	Symbol string
	Side   string // "buy" or "sell"
	Qty    float64
}

// Context carries everything a scaling decision needs. Zero-valued fields
// read as "no signal yet" except where noted.
type Context struct {
	Symbol                  string
	CurrentSignalConfidence float64 // 0-10
	ProposedEntryPrice      float64
	ProposedEntrySize       float64

	CurrentPositionQty   float64
	CurrentPositionValue float64
	LedgerEntries        []LedgerEntry
	PendingBuyOrders     []PendingOrder
	PendingSellOrders    []PendingOrder

	CurrentPrice                float64
	ATR                         float64
	ATRRollingMedian            float64
	BarsSinceLastEntry          int
	TimeSinceLastEntry          time.Duration
	PriceHighestSinceLastEntry  float64
	PriceLowestSinceLastEntry   float64
	HasLowerLow                 bool
	HasHigherHigh               bool

	HasBearishDivergence            bool
	SignalMatchesPositionDirection  bool

	AccountEquity         float64
	AvailableRiskBudget   float64
	ProposedRiskAmount    float64

	StrategyName  string
	ScalingPolicy *Policy
}

// Result is the outcome of one scaling evaluation.
type Result struct {
	Decision           Decision
	ReasonCode         ReasonCode
	ReasonText         string
	CurrentEntryCount  int
	WouldExceedMax     bool
	ProposedPositionPct float64
	EstimatedRisk      float64
}

// CountEntries returns the number of open ledger entries.
func CountEntries(entries []LedgerEntry) int {
	n := 0
	for _, e := range entries {
		if e.Status == "open" {
			n++
		}
	}
	return n
}

// LastEntryPrice returns the price of the most recently added open entry, or
// ok=false if there are none.
func LastEntryPrice(entries []LedgerEntry) (float64, bool) {
	var last float64
	found := false
	for _, e := range entries {
		if e.Status == "open" {
			last = e.Price
			found = true
		}
	}
	return last, found
}

func hasPendingConflictingOrder(orders []PendingOrder, symbol, side string) bool {
	for _, o := range orders {
		if o.Symbol == symbol && o.Side == side {
			return true
		}
	}
	return false
}
