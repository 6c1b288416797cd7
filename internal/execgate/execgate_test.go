package execgate

import (
	"errors"
	"math"
	"testing"
	"time"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestApplySlippageEntryAndExit(t *testing.T) {
	entry, err := ApplySlippage(100.0, 5, DirectionEntry)
	if err != nil {
		t.Fatalf("ApplySlippage entry failed: %v", err)
	}
	if !almostEqual(entry, 100.05) {
		t.Errorf("entry = %v, want 100.05", entry)
	}

	exit, err := ApplySlippage(100.0, 5, DirectionExit)
	if err != nil {
		t.Fatalf("ApplySlippage exit failed: %v", err)
	}
	if !almostEqual(exit, 99.95) {
		t.Errorf("exit = %v, want 99.95", exit)
	}
}

func TestEntryPriceTimeSafety(t *testing.T) {
	series := Series{
		{Open: 100, Close: 100},
		{Open: 101, Close: 101},
		{Open: 102, Close: 102},
		{Open: 103, Close: 103},
		{Open: 104, Close: 104},
	}

	price, ok := EntryPrice(series, 0, true, 5)
	if !ok {
		t.Fatalf("expected entry price for day 0")
	}
	if !almostEqual(price, 101.0*1.0005) {
		t.Errorf("entry price = %v, want %v", price, 101.0*1.0005)
	}

	_, ok = EntryPrice(series, 4, true, 5)
	if ok {
		t.Errorf("expected no entry price for last bar (no lookahead available)")
	}
}

func TestExitPriceUsesSameDayOpenWhenUseNextOpen(t *testing.T) {
	series := Series{
		{Open: 100, Close: 105},
		{Open: 110, Close: 115},
	}

	price, ok := ExitPrice(series, 1, true, 10)
	if !ok {
		t.Fatalf("expected exit price")
	}
	want, _ := ApplySlippage(110.0, 10, DirectionExit)
	if !almostEqual(price, want) {
		t.Errorf("exit price = %v, want %v (same-day open of exit bar)", price, want)
	}
}

func TestExitPriceUsesCloseWhenNotUseNextOpen(t *testing.T) {
	series := Series{{Open: 100, Close: 105}}
	price, ok := ExitPrice(series, 0, false, 0)
	if !ok {
		t.Fatalf("expected exit price")
	}
	if !almostEqual(price, 105.0) {
		t.Errorf("exit price = %v, want 105", price)
	}
}

func TestCheckLiquidityBoundary(t *testing.T) {
	adv := 10_000_000.0
	maxPct := 0.05

	ok, reason := CheckLiquidity(500_000, adv, maxPct)
	if !ok || reason != "" {
		t.Errorf("500k notional should pass: ok=%v reason=%q", ok, reason)
	}

	ok, reason = CheckLiquidity(600_000, adv, maxPct)
	if ok {
		t.Errorf("600k notional should be rejected")
	}
	want := "Position too large: 600,000 is 6.00% of ADV (10,000,000), exceeds limit of 5.00%"
	if reason != want {
		t.Errorf("reason = %q, want %q", reason, want)
	}

	ok, reason = CheckLiquidity(100_000, 0, maxPct)
	if ok || reason == "" {
		t.Errorf("zero ADV should be rejected with a reason")
	}
}

func TestFormatDollarsGroupsThousands(t *testing.T) {
	cases := map[float64]string{
		0:           "0",
		999:         "999",
		1000:        "1,000",
		600000:      "600,000",
		10000000:    "10,000,000",
		1234567.89:  "1,234,568",
		-600000:     "-600,000",
	}
	for v, want := range cases {
		if got := formatDollars(v); got != want {
			t.Errorf("formatDollars(%v) = %q, want %q", v, got, want)
		}
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (func() bool {
		for i := 0; i+len(substr) <= len(s); i++ {
			if s[i:i+len(substr)] == substr {
				return true
			}
		}
		return false
	})()
}

func TestComputeSlippageCost(t *testing.T) {
	cost := ComputeSlippageCost(100, 110, 100.05, 109.9, 10)
	if !almostEqual(cost.EntrySlippageCost, 0.5) {
		t.Errorf("entry slippage cost = %v, want 0.5", cost.EntrySlippageCost)
	}
	if !almostEqual(cost.ExitSlippageCost, 1.0) {
		t.Errorf("exit slippage cost = %v, want 1.0", cost.ExitSlippageCost)
	}
	if !almostEqual(cost.TotalSlippageCost, 1.5) {
		t.Errorf("total slippage cost = %v, want 1.5", cost.TotalSlippageCost)
	}
}

type fakeProvider struct {
	windows []BlackoutWindow
	err     error
}

func (f *fakeProvider) BlackoutWindows(symbol string) ([]BlackoutWindow, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.windows, nil
}

func TestBlackoutGateBlocksDuringWindow(t *testing.T) {
	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)
	gate := NewBlackoutGate(&fakeProvider{windows: []BlackoutWindow{{Start: start, End: end, Event: "earnings"}}})

	blocked, reason := gate.Check("KO", time.Date(2026, 2, 2, 12, 0, 0, 0, time.UTC))
	if !blocked {
		t.Errorf("expected blocked inside window")
	}
	if !contains(reason, "earnings") {
		t.Errorf("reason = %q, want to mention earnings", reason)
	}

	blocked, _ = gate.Check("KO", time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC))
	if blocked {
		t.Errorf("expected not blocked outside window")
	}
}

func TestBlackoutGateFailsSafeOnProviderError(t *testing.T) {
	gate := NewBlackoutGate(&fakeProvider{err: errors.New("network down")})
	blocked, reason := gate.Check("KO", time.Now())
	if !blocked {
		t.Errorf("expected fail-safe block when provider errors")
	}
	if reason == "" {
		t.Errorf("expected a reason when failing safe")
	}
}

func TestBlackoutGateFailsSafeWithNilProvider(t *testing.T) {
	gate := NewBlackoutGate(nil)
	blocked, _ := gate.Check("KO", time.Now())
	if !blocked {
		t.Errorf("expected fail-safe block with nil provider")
	}
}
