// Package execgate implements the execution-realism gate: entry/exit price
// computation with slippage, time-safety (no lookahead), and liquidity
// checks. It is deliberately pure — no broker calls, no persistence — so
// every rule is independently testable against fixed price series.
package execgate

import (
	"fmt"
	"strings"
)

// Direction distinguishes entry from exit slippage application, since
// slippage always moves the fill against the trader.
type Direction string

const (
	DirectionEntry Direction = "entry"
	DirectionExit  Direction = "exit"
)

// ApplySlippage worsens price by slippageBps basis points in the given
// direction: higher on entry, lower on exit.
func ApplySlippage(price float64, slippageBps int, direction Direction) (float64, error) {
	pct := float64(slippageBps) / 10000.0
	switch direction {
	case DirectionEntry:
		return price * (1 + pct), nil
	case DirectionExit:
		return price * (1 - pct), nil
	default:
		return 0, fmt.Errorf("execgate: direction must be %q or %q, got %q", DirectionEntry, DirectionExit, direction)
	}
}

// Bar is one OHLC price observation, indexed by an opaque sequence position
// (a trading-day index, not a calendar date) so entry/exit computation never
// needs calendar math.
type Bar struct {
	Open  float64
	Close float64
}

// Series is an ordered sequence of bars, oldest first.
type Series []Bar

// EntryPrice computes the realistic entry price for a signal raised at
// signalIdx. With useNextOpen, entry happens at signalIdx+1's open (no
// lookahead — a signal on the last bar of the series has no next bar and
// entry is unavailable); otherwise entry happens at signalIdx's own close.
func EntryPrice(series Series, signalIdx int, useNextOpen bool, entrySlippageBps int) (float64, bool) {
	if signalIdx < 0 || signalIdx >= len(series) {
		return 0, false
	}

	var ref float64
	if useNextOpen {
		if signalIdx >= len(series)-1 {
			return 0, false
		}
		ref = series[signalIdx+1].Open
	} else {
		ref = series[signalIdx].Close
	}

	price, err := ApplySlippage(ref, entrySlippageBps, DirectionEntry)
	if err != nil {
		return 0, false
	}
	return price, true
}

// ExitPrice computes the realistic exit price for a position closed at
// exitIdx. With useNextOpen, exit uses exitIdx's own open (a market-open
// exit on the exit day itself, not the following day); otherwise exit uses
// exitIdx's close.
func ExitPrice(series Series, exitIdx int, useNextOpen bool, exitSlippageBps int) (float64, bool) {
	if exitIdx < 0 || exitIdx >= len(series) {
		return 0, false
	}

	ref := series[exitIdx].Close
	if useNextOpen {
		ref = series[exitIdx].Open
	}

	price, err := ApplySlippage(ref, exitSlippageBps, DirectionExit)
	if err != nil {
		return 0, false
	}
	return price, true
}

// CheckLiquidity rejects a position whose notional exceeds maxADVPct of the
// average daily dollar volume. The reason string's exact wording is part of
// the contract other components match against.
func CheckLiquidity(positionNotional, avgDailyDollarVolume, maxADVPct float64) (bool, string) {
	if avgDailyDollarVolume <= 0 {
		return false, "Invalid ADV: must be > 0"
	}

	pct := positionNotional / avgDailyDollarVolume
	if pct > maxADVPct {
		reason := fmt.Sprintf(
			"Position too large: %s is %s of ADV (%s), exceeds limit of %s",
			formatDollars(positionNotional),
			formatPercent(pct),
			formatDollars(avgDailyDollarVolume),
			formatPercent(maxADVPct),
		)
		return false, reason
	}
	return true, ""
}

// formatDollars renders v with comma-grouped thousands and no decimal
// places, matching Python's "{:,.0f}" (e.g. 600000 -> "600,000").
func formatDollars(v float64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	digits := fmt.Sprintf("%.0f", v)

	var grouped strings.Builder
	for i, d := range digits {
		if i > 0 {
			if remaining := len(digits) - i; remaining%3 == 0 {
				grouped.WriteByte(',')
			}
		}
		grouped.WriteRune(d)
	}
	return sign + grouped.String()
}

func formatPercent(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}

// SlippageCost summarizes the dollar and bps difference between idealized
// (no-slippage) and realistic fills for one round-trip position.
type SlippageCost struct {
	EntrySlippageCost float64
	ExitSlippageCost  float64
	TotalSlippageCost float64
	EntrySlippageBps  float64
	ExitSlippageBps   float64
}

// ComputeSlippageCost computes SlippageCost for a position of positionSize
// shares traded at the given idealized and realistic entry/exit prices.
func ComputeSlippageCost(entryIdeal, exitIdeal, entryReal, exitReal, positionSize float64) SlippageCost {
	entryCost := (entryReal - entryIdeal) * positionSize
	exitCost := (exitIdeal - exitReal) * positionSize

	var entryBps, exitBps float64
	if entryIdeal != 0 {
		entryBps = (entryReal/entryIdeal - 1) * 10000
	}
	if exitReal != 0 {
		exitBps = (exitIdeal/exitReal - 1) * 10000
	}

	return SlippageCost{
		EntrySlippageCost: entryCost,
		ExitSlippageCost:  exitCost,
		TotalSlippageCost: entryCost + exitCost,
		EntrySlippageBps:  entryBps,
		ExitSlippageBps:   exitBps,
	}
}
