package universe

import (
	"math"
	"testing"
	"time"

	"github.com/riftlabs/controlplane/internal/scope"
)

func almostEqual(a, b, tol float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= tol
}

func TestScoreRegimeMapping(t *testing.T) {
	cases := map[string]float64{
		"risk_on":  100.0,
		"neutral":  70.0,
		"risk_off": 40.0,
		"panic":    10.0,
		"unknown":  50.0,
	}
	for label, want := range cases {
		if got := scoreRegime(label); got != want {
			t.Errorf("scoreRegime(%q) = %v, want %v", label, got, want)
		}
	}
}

func TestScorePerformanceNoHistoryIsNeutral(t *testing.T) {
	if got := scorePerformance(nil); got != 50.0 {
		t.Errorf("scorePerformance(nil) = %v, want 50.0", got)
	}
}

func TestScorePerformanceAllWinsScoresHigh(t *testing.T) {
	trades := []TradeRecord{{NetPnLPct: 2.0}, {NetPnLPct: 3.0}, {NetPnLPct: 1.5}}
	got := scorePerformance(trades)
	if got <= 50.0 {
		t.Errorf("scorePerformance(all wins) = %v, want > 50.0", got)
	}
}

func TestScoreLiquidityNoMedianIsNeutral(t *testing.T) {
	bars := make([]Bar, 20)
	for i := range bars {
		bars[i] = Bar{Close: 10, Volume: 1000}
	}
	if got := scoreLiquidity(bars, 0); got != 50.0 {
		t.Errorf("scoreLiquidity(no median) = %v, want 50.0", got)
	}
}

func TestScoreLiquidityAboveMedianScoresHigher(t *testing.T) {
	bars := make([]Bar, 20)
	for i := range bars {
		bars[i] = Bar{Close: 10, Volume: 2000}
	}
	got := scoreLiquidity(bars, 1000) // ratio 2.0 -> 50 + 25*log2(2) = 75
	want := 75.0
	if !almostEqual(got, want, 0.01) {
		t.Errorf("scoreLiquidity(2x median) = %v, want %v", got, want)
	}
}

func TestScoreVolatilityFlatSeriesScoresLow(t *testing.T) {
	// A series with essentially zero daily variance scores at the low end.
	bars := make([]Bar, 21)
	price := 100.0
	for i := range bars {
		bars[i] = Bar{Close: price}
	}
	got := scoreVolatility(bars)
	if got != 20.0 {
		t.Errorf("scoreVolatility(flat) = %v, want 20.0 (insufficient variance -> low score)", got)
	}
}

func TestScoreSentimentDefaultsToNeutralWithoutVerdict(t *testing.T) {
	if got := scoreSentiment(nil); got != 50.0 {
		t.Errorf("scoreSentiment(nil) = %v, want 50.0", got)
	}
}

func TestScoreSentimentValidatedHighConfidenceHighConsistency(t *testing.T) {
	v := &Verdict{VerdictType: "REGIME_VALIDATED", RegimeConfidence: 1.0, NarrativeConsistency: "HIGH"}
	got := scoreSentiment(v)
	want := 80.0 + (1.0-0.5)*20.0 + 10.0
	if !almostEqual(got, math.Min(want, 100.0), 0.01) {
		t.Errorf("scoreSentiment(validated/high) = %v, want %v", got, want)
	}
}

func TestScoreUniverseSkipsInsufficientData(t *testing.T) {
	scorer := NewScorer(DefaultWeights())
	bars := map[string][]Bar{
		"AAA": {{Close: 1, Volume: 100}}, // only 1 bar, below the 5-bar floor
		"BBB": make([]Bar, 20),
	}
	for i := range bars["BBB"] {
		bars["BBB"][i] = Bar{Close: 100 + float64(i), Volume: 5000}
	}
	scored := scorer.ScoreUniverse([]string{"AAA", "BBB"}, bars, nil, "neutral", nil, time.Now())
	if len(scored) != 1 || scored[0].Symbol != "BBB" {
		t.Errorf("expected only BBB scored, got %+v", scored)
	}
}

func TestScoreUniverseSortedDescending(t *testing.T) {
	scorer := NewScorer(DefaultWeights())
	barsA := make([]Bar, 20)
	barsB := make([]Bar, 20)
	for i := range barsA {
		barsA[i] = Bar{Close: 100, Volume: 1000}
		barsB[i] = Bar{Close: 100, Volume: 1000}
	}
	bars := map[string][]Bar{"LOSER": barsA, "WINNER": barsB}
	trades := map[string][]TradeRecord{
		"LOSER":  {{NetPnLPct: -5}, {NetPnLPct: -3}},
		"WINNER": {{NetPnLPct: 5}, {NetPnLPct: 3}},
	}
	scored := scorer.ScoreUniverse([]string{"LOSER", "WINNER"}, bars, trades, "neutral", nil, time.Now())
	if len(scored) != 2 || scored[0].Symbol != "WINNER" {
		t.Errorf("expected WINNER ranked first, got %+v", scored)
	}
}

func TestGuardrailsCheckAdditionRejectsBelowMinScore(t *testing.T) {
	g := NewGuardrails(DefaultConfig())
	allowed, reason := g.CheckAddition("XYZ", 10.0, 5, 0, nil, time.Now())
	if allowed {
		t.Errorf("expected addition rejected for low score, reason=%s", reason)
	}
}

func TestGuardrailsCheckAdditionRejectsDuringCooldown(t *testing.T) {
	g := NewGuardrails(DefaultConfig())
	now := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	cooldowns := map[string]string{"XYZ": now.Add(-24 * time.Hour).Format(time.RFC3339Nano)}
	allowed, reason := g.CheckAddition("XYZ", 90.0, 5, 0, cooldowns, now)
	if allowed {
		t.Errorf("expected cooldown to block addition, reason=%s", reason)
	}
}

func TestGuardrailsCheckAdditionToleratesUnparsableCooldownDate(t *testing.T) {
	g := NewGuardrails(DefaultConfig())
	cooldowns := map[string]string{"XYZ": "not-a-date"}
	allowed, _ := g.CheckAddition("XYZ", 90.0, 5, 0, cooldowns, time.Now())
	if !allowed {
		t.Errorf("expected unparsable cooldown date to be tolerated, not block the addition")
	}
}

func TestGuardrailsCheckAdditionAllowsAfterCooldownExpires(t *testing.T) {
	g := NewGuardrails(DefaultConfig())
	now := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	cooldowns := map[string]string{"XYZ": now.Add(-10 * 24 * time.Hour).Format(time.RFC3339Nano)}
	allowed, reason := g.CheckAddition("XYZ", 90.0, 5, 0, cooldowns, now)
	if !allowed {
		t.Errorf("expected cooldown (7d) to have expired after 10d, reason=%s", reason)
	}
}

func TestGuardrailsCheckRemovalProtectsOpenPositions(t *testing.T) {
	g := NewGuardrails(DefaultConfig())
	allowed, reason := g.CheckRemoval("XYZ", 10.0, 20, 0, map[string]bool{"XYZ": true})
	if allowed {
		t.Errorf("expected removal blocked for open position, reason=%s", reason)
	}
}

func TestGuardrailsCheckRemovalRespectsMinSize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinUniverseSize = 10
	g := NewGuardrails(cfg)
	allowed, reason := g.CheckRemoval("XYZ", 10.0, 10, 0, nil)
	if allowed {
		t.Errorf("expected removal blocked at min universe size, reason=%s", reason)
	}
}

func TestValidateFinalUniverseFlagsExcessiveAdditions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxAdditionsPerCycle = 2
	g := NewGuardrails(cfg)
	previous := []string{"A", "B", "C"}
	final := []string{"A", "B", "C", "D", "E", "F"}
	violations := g.ValidateFinalUniverse(final, previous)
	found := false
	for _, v := range violations {
		if v.CheckType == "max_additions" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected max_additions violation, got %+v", violations)
	}
}

func TestValidateFinalUniverseNoViolationsWithinBounds(t *testing.T) {
	g := NewGuardrails(DefaultConfig())
	previous := []string{"A", "B", "C"}
	final := []string{"A", "B", "C"}
	violations := g.ValidateFinalUniverse(final, previous)
	if len(violations) != 0 {
		t.Errorf("expected no violations, got %+v", violations)
	}
}

func TestRunCycleDiscardsEntireChangeSetOnViolation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxUniverseSize = 2 // previous universe is already at 3, a pre-existing violation
	guardrails := NewGuardrails(cfg)
	scorer := NewScorer(DefaultWeights())

	s := testScope()
	l := testLayout(t, s)
	gov := NewGovernor(s, l, scorer, guardrails, nil, nil)

	bars := map[string][]Bar{}
	for _, sym := range []string{"A", "B", "C"} {
		b := make([]Bar, 20)
		for i := range b {
			b[i] = Bar{Close: 100, Volume: 5000}
		}
		bars[sym] = b
	}

	input := CycleInput{
		CandidatePool:   nil,
		CurrentUniverse: []string{"A", "B", "C"},
		BarsBySymbol:    bars,
		RegimeLabel:     "neutral",
		Now:             time.Now(),
	}

	decision, err := gov.RunCycle(input)
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	if !decision.Discarded {
		t.Errorf("expected change set discarded when final universe size already exceeds the max-size guardrail, got %+v", decision)
	}
	if len(decision.FinalUniverse) != 3 {
		t.Errorf("expected previous universe retained unchanged, got %v", decision.FinalUniverse)
	}
}

func testScope() scope.Scope {
	return scope.Scope{Env: scope.EnvPaper, Broker: "alpaca", Market: "us-equity", Region: "na"}
}

func testLayout(t *testing.T, s scope.Scope) scope.Layout {
	t.Helper()
	return scope.NewLayout(t.TempDir(), s)
}
