package scaling

import "fmt"

// check is one ordered rule. A nil result means the check passed; any
// non-nil result (BLOCK or SKIP) short-circuits the remaining checks.
type check func(ctx Context) *Result

// orderedChecks is the fixed evaluation order. Ordering matters: hard
// safety checks (BLOCK-capable) run before strategy-qualification checks
// (SKIP-capable), so a disqualified signal never masks a safety violation.
var orderedChecks = []check{
	checkStrategyPermitsScaling,
	checkMaxEntriesNotExceeded,
	checkMaxPositionSize,
	checkPendingOrderConflicts,
	checkBrokerLedgerConsistency,
	checkRiskBudget,
	checkOrderSizeMinimum,
	checkMinimumBarsSinceEntry,
	checkMinimumTimeSinceEntry,
	checkSignalQuality,
	checkPriceStructure,
	checkVolatilityRegime,
}

func checkStrategyPermitsScaling(ctx Context) *Result {
	if ctx.ScalingPolicy == nil || !ctx.ScalingPolicy.AllowsMultipleEntries {
		return &Result{
			Decision:   DecisionBlock,
			ReasonCode: ReasonStrategyDisallowsScaling,
			ReasonText: "strategy does not permit multiple entries",
		}
	}
	return nil
}

func checkMaxEntriesNotExceeded(ctx Context) *Result {
	count := CountEntries(ctx.LedgerEntries)
	max := ctx.ScalingPolicy.MaxEntriesPerSymbol
	if count >= max {
		return &Result{
			Decision:          DecisionBlock,
			ReasonCode:        ReasonMaxEntriesExceeded,
			ReasonText:        fmt.Sprintf("already at max entries (%d/%d)", count, max),
			CurrentEntryCount: count,
			WouldExceedMax:    true,
		}
	}
	return nil
}

func checkMaxPositionSize(ctx Context) *Result {
	if ctx.AccountEquity <= 0 {
		return nil
	}
	proposedValue := ctx.ProposedEntrySize * ctx.ProposedEntryPrice
	totalValue := ctx.CurrentPositionValue + proposedValue
	pct := totalValue / ctx.AccountEquity * 100

	if pct > ctx.ScalingPolicy.MaxTotalPositionPct {
		return &Result{
			Decision:            DecisionBlock,
			ReasonCode:          ReasonMaxPositionSizeExceeded,
			ReasonText:          fmt.Sprintf("proposed position %.2f%% exceeds max %.2f%%", pct, ctx.ScalingPolicy.MaxTotalPositionPct),
			ProposedPositionPct: pct,
			WouldExceedMax:      true,
		}
	}
	return nil
}

func checkPendingOrderConflicts(ctx Context) *Result {
	if hasPendingConflictingOrder(ctx.PendingBuyOrders, ctx.Symbol, "buy") {
		return &Result{
			Decision:   DecisionBlock,
			ReasonCode: ReasonPendingBuyExists,
			ReasonText: "a pending buy order already exists for this symbol",
		}
	}
	if hasPendingConflictingOrder(ctx.PendingSellOrders, ctx.Symbol, "sell") {
		return &Result{
			Decision:   DecisionBlock,
			ReasonCode: ReasonConflictingSellExists,
			ReasonText: "a pending sell order conflicts with this add",
		}
	}
	return nil
}

func checkBrokerLedgerConsistency(ctx Context) *Result {
	var ledgerQty float64
	for _, e := range ctx.LedgerEntries {
		if e.Status == "open" {
			ledgerQty += e.Qty
		}
	}
	if ledgerQty != ctx.CurrentPositionQty {
		return &Result{
			Decision:   DecisionBlock,
			ReasonCode: ReasonBrokerLedgerMismatch,
			ReasonText: fmt.Sprintf("broker qty %.6f does not match ledger qty %.6f", ctx.CurrentPositionQty, ledgerQty),
		}
	}
	return nil
}

func checkRiskBudget(ctx Context) *Result {
	if ctx.ProposedRiskAmount > ctx.AvailableRiskBudget {
		return &Result{
			Decision:      DecisionBlock,
			ReasonCode:    ReasonRiskBudgetExceeded,
			ReasonText:    fmt.Sprintf("proposed risk %.2f exceeds available budget %.2f", ctx.ProposedRiskAmount, ctx.AvailableRiskBudget),
			EstimatedRisk: ctx.ProposedRiskAmount,
		}
	}
	return nil
}

// minOrderNotional is the smallest tradeable order value this system will
// submit, below which venue minimums or fee drag make the add pointless.
const minOrderNotional = 10.0

func checkOrderSizeMinimum(ctx Context) *Result {
	if ctx.ProposedEntrySize <= 0 {
		return &Result{
			Decision:   DecisionBlock,
			ReasonCode: ReasonOrderSizeBelowMinimum,
			ReasonText: "proposed entry size must be positive",
		}
	}
	notional := ctx.ProposedEntrySize * ctx.ProposedEntryPrice
	if notional < minOrderNotional {
		return &Result{
			Decision:   DecisionBlock,
			ReasonCode: ReasonOrderSizeBelowMinimum,
			ReasonText: fmt.Sprintf("order notional %.2f below minimum %.2f", notional, minOrderNotional),
		}
	}
	return nil
}

func checkMinimumBarsSinceEntry(ctx Context) *Result {
	if ctx.BarsSinceLastEntry < ctx.ScalingPolicy.MinBarsBetweenEntries {
		return &Result{
			Decision:   DecisionSkip,
			ReasonCode: ReasonMinimumBarsNotMet,
			ReasonText: fmt.Sprintf("%d bars since last entry, need %d", ctx.BarsSinceLastEntry, ctx.ScalingPolicy.MinBarsBetweenEntries),
		}
	}
	return nil
}

func checkMinimumTimeSinceEntry(ctx Context) *Result {
	if ctx.TimeSinceLastEntry < ctx.ScalingPolicy.MinTimeBetweenEntries {
		return &Result{
			Decision:   DecisionSkip,
			ReasonCode: ReasonMinimumTimeNotMet,
			ReasonText: fmt.Sprintf("%s since last entry, need %s", ctx.TimeSinceLastEntry, ctx.ScalingPolicy.MinTimeBetweenEntries),
		}
	}
	return nil
}

func checkSignalQuality(ctx Context) *Result {
	if ctx.CurrentSignalConfidence < ctx.ScalingPolicy.MinSignalStrengthForAdd {
		return &Result{
			Decision:   DecisionSkip,
			ReasonCode: ReasonSignalConfidenceTooLow,
			ReasonText: fmt.Sprintf("signal confidence %.1f below minimum %.1f", ctx.CurrentSignalConfidence, ctx.ScalingPolicy.MinSignalStrengthForAdd),
		}
	}
	if ctx.HasBearishDivergence {
		return &Result{
			Decision:   DecisionSkip,
			ReasonCode: ReasonSignalQualityInsufficient,
			ReasonText: "bearish divergence detected since last entry",
		}
	}
	return nil
}

func checkPriceStructure(ctx Context) *Result {
	lastPrice, ok := LastEntryPrice(ctx.LedgerEntries)
	if !ok {
		return nil
	}

	switch ctx.ScalingPolicy.ScalingType {
	case ScalingPyramid:
		if ctx.ProposedEntryPrice <= lastPrice {
			return &Result{
				Decision:   DecisionSkip,
				ReasonCode: ReasonPriceStructureViolation,
				ReasonText: fmt.Sprintf("pyramid requires entry above last entry %.4f, got %.4f", lastPrice, ctx.ProposedEntryPrice),
			}
		}
		if ctx.ScalingPolicy.RequireNoLowerLow && ctx.HasLowerLow {
			return &Result{
				Decision:   DecisionSkip,
				ReasonCode: ReasonPriceStructureViolation,
				ReasonText: "pyramid requires no lower low since last entry",
			}
		}
	case ScalingAverage:
		if ctx.ProposedEntryPrice >= lastPrice {
			return &Result{
				Decision:   DecisionSkip,
				ReasonCode: ReasonPriceStructureViolation,
				ReasonText: fmt.Sprintf("average requires entry below last entry %.4f, got %.4f", lastPrice, ctx.ProposedEntryPrice),
			}
		}
		if ctx.ATR > 0 && ctx.ScalingPolicy.MaxATRDrawdownMultiple > 0 {
			drawdown := lastPrice - ctx.PriceLowestSinceLastEntry
			if drawdown > ctx.ATR*ctx.ScalingPolicy.MaxATRDrawdownMultiple {
				return &Result{
					Decision:   DecisionSkip,
					ReasonCode: ReasonPriceStructureViolation,
					ReasonText: fmt.Sprintf("drawdown %.4f exceeds max %.1fx ATR (%.4f)", drawdown, ctx.ScalingPolicy.MaxATRDrawdownMultiple, ctx.ATR*ctx.ScalingPolicy.MaxATRDrawdownMultiple),
				}
			}
		}
	}
	return nil
}

func checkVolatilityRegime(ctx Context) *Result {
	if ctx.ScalingPolicy.RequireVolatilityAboveMedian && ctx.ATR < ctx.ATRRollingMedian {
		return &Result{
			Decision:   DecisionSkip,
			ReasonCode: ReasonVolatilityRegimeInvalid,
			ReasonText: fmt.Sprintf("ATR %.4f below rolling median %.4f", ctx.ATR, ctx.ATRRollingMedian),
		}
	}
	return nil
}

// ShouldScale runs every check in order and returns the first BLOCK/SKIP, or
// SCALE if all checks pass.
func ShouldScale(ctx Context) Result {
	if ctx.ScalingPolicy == nil {
		return Result{Decision: DecisionBlock, ReasonCode: ReasonStrategyDisallowsScaling, ReasonText: "no scaling policy configured"}
	}

	for _, c := range orderedChecks {
		if result := c(ctx); result != nil {
			return *result
		}
	}

	return Result{
		Decision:          DecisionScale,
		ReasonCode:        ReasonAllChecksPassed,
		ReasonText:        "all scaling checks passed",
		CurrentEntryCount: CountEntries(ctx.LedgerEntries) + 1,
	}
}
