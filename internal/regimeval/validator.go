// Package regimeval validates whether the system's internal market-regime
// assessment still holds against a freshly recalculated regime and external
// evidence, then conservatively decides whether drift has occurred. Neither
// stage ever applies a regime change itself — drift is raised as a proposal
// for a human or the governance pipeline to act on.
package regimeval

import "math"

// PhaseFVerdict is the upstream signal-quality verdict this validator
// blends into its external-confidence score.
type PhaseFVerdict struct {
	VerdictType       string
	RegimeConfidence  float64
}

// ValidationContext carries every input a validation cycle needs.
type ValidationContext struct {
	Scope                     string
	CurrentRegime             *string
	CurrentRegimeConfidence   float64
	RecalculatedRegime        *string
	RecalculatedConfidence    float64
	PhaseFVerdict             *PhaseFVerdict
	CrossAssetRegime          *string
	Volatility                float64
	VolatilityPercentile      float64
	Drawdown                  float64
	CurrentRegimeDurationHours float64
	HistoricalRegimeDurations []float64
	NumExternalSources        int
	EntryVolatility           float64
}

// ValidationScores are the four 0-1 validation dimensions.
type ValidationScores struct {
	InternalScore   float64
	ExternalScore   float64
	DriftScore      float64
	CrossAssetScore float64
}

const (
	VerdictValidated         = "REGIME_VALIDATED"
	VerdictInsufficientData  = "REGIME_INSUFFICIENT_DATA"
	VerdictUncertain         = "REGIME_UNCERTAIN"
	VerdictDriftDetected     = "REGIME_DRIFT_DETECTED"
)

// ValidationResult is the outcome of one validation cycle.
type ValidationResult struct {
	Scope              string
	CurrentRegime      *string
	RecalculatedRegime *string
	Scores             ValidationScores
	Verdict            string
	Evidence           map[string]any
}

// Validate computes the four scores and determines the verdict. When neither
// the validated nor the drift thresholds hold it returns REGIME_UNCERTAIN
// rather than declaring drift on weak evidence.
func Validate(ctx ValidationContext) ValidationResult {
	if ctx.CurrentRegime == nil && ctx.RecalculatedRegime == nil {
		return ValidationResult{
			Scope:   ctx.Scope,
			Scores:  ValidationScores{0.5, 0.5, 0.0, 0.5},
			Verdict: VerdictInsufficientData,
			Evidence: map[string]any{"reason": "no regime data available"},
		}
	}
	if ctx.RecalculatedRegime == nil {
		return ValidationResult{
			Scope:              ctx.Scope,
			CurrentRegime:      ctx.CurrentRegime,
			Scores:             ValidationScores{0.5, 0.5, 0.0, 0.5},
			Verdict:            VerdictInsufficientData,
			Evidence:           map[string]any{"reason": "could not recalculate regime from data"},
		}
	}

	internal := RegimeAgreementScore(ctx.CurrentRegime, ctx.RecalculatedRegime)
	external := computeExternalScore(ctx)
	drift := computeDriftScore(ctx)
	crossAsset := computeCrossAssetScore(ctx)

	scores := ValidationScores{
		InternalScore:   round4(internal),
		ExternalScore:   round4(external),
		DriftScore:      round4(drift),
		CrossAssetScore: round4(crossAsset),
	}

	verdict := determineVerdict(scores)

	return ValidationResult{
		Scope:              ctx.Scope,
		CurrentRegime:      ctx.CurrentRegime,
		RecalculatedRegime: ctx.RecalculatedRegime,
		Scores:             scores,
		Verdict:            verdict,
		Evidence: map[string]any{
			"current_regime":       derefOr(ctx.CurrentRegime, ""),
			"recalculated_regime":  derefOr(ctx.RecalculatedRegime, ""),
			"cross_asset_regime":   derefOr(ctx.CrossAssetRegime, ""),
			"volatility":           round2(ctx.Volatility),
			"drawdown":             round2(ctx.Drawdown),
			"duration_hours":       round1(ctx.CurrentRegimeDurationHours),
			"num_external_sources": ctx.NumExternalSources,
		},
	}
}

func computeExternalScore(ctx ValidationContext) float64 {
	if ctx.PhaseFVerdict == nil {
		return 0.5
	}
	baseMap := map[string]float64{
		"REGIME_VALIDATED":                   0.85,
		"POSSIBLE_STRUCTURAL_SHIFT_OBSERVE":  0.50,
		"REGIME_QUESTIONABLE":                0.30,
		"HIGH_NOISE_NO_ACTION":               0.20,
	}
	base, ok := baseMap[ctx.PhaseFVerdict.VerdictType]
	if !ok {
		base = 0.5
	}
	score := base*0.6 + ctx.PhaseFVerdict.RegimeConfidence*0.4
	return clamp01(score)
}

func computeDriftScore(ctx ValidationContext) float64 {
	agreement := RegimeAgreementScore(ctx.CurrentRegime, ctx.RecalculatedRegime)
	disagreement := 1.0 - agreement

	pct := DurationPercentile(ctx.CurrentRegimeDurationHours, ctx.HistoricalRegimeDurations)
	durationAnomaly := math.Max(0.0, (pct-50.0)/50.0)

	volShifted := 0.0
	if VolatilityShiftDetected(ctx.EntryVolatility, ctx.Volatility) {
		volShifted = 1.0
	}

	total := disagreement*0.5 + durationAnomaly*0.3 + volShifted*0.2
	return math.Min(1.0, total)
}

func computeCrossAssetScore(ctx ValidationContext) float64 {
	if ctx.CrossAssetRegime == nil {
		return 0.5
	}
	return RegimeAgreementScore(ctx.CurrentRegime, ctx.CrossAssetRegime)
}

// determineVerdict is conservative: drift is only declared when internal
// agreement is low AND drift evidence is high. Everything else not
// qualifying as validated falls to uncertain rather than drift.
func determineVerdict(scores ValidationScores) string {
	if scores.InternalScore >= 0.6 && scores.DriftScore < 0.4 {
		return VerdictValidated
	}
	if scores.InternalScore < 0.5 && scores.DriftScore >= 0.5 {
		return VerdictDriftDetected
	}
	return VerdictUncertain
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round1(v float64) float64 { return math.Round(v*10) / 10 }

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
