package regimeval

import "testing"

func strPtr(s string) *string { return &s }

func TestValidateInsufficientDataWhenBothRegimesMissing(t *testing.T) {
	result := Validate(ValidationContext{Scope: "test"})
	if result.Verdict != VerdictInsufficientData {
		t.Errorf("Verdict = %v, want %v", result.Verdict, VerdictInsufficientData)
	}
}

func TestValidateInsufficientDataWhenRecalculatedMissing(t *testing.T) {
	result := Validate(ValidationContext{
		Scope:         "test",
		CurrentRegime: strPtr("risk_on"),
	})
	if result.Verdict != VerdictInsufficientData {
		t.Errorf("Verdict = %v, want %v", result.Verdict, VerdictInsufficientData)
	}
}

func TestValidateReturnsValidatedWhenRegimesAgree(t *testing.T) {
	result := Validate(ValidationContext{
		Scope:                     "test",
		CurrentRegime:             strPtr("risk_on"),
		RecalculatedRegime:        strPtr("risk_on"),
		CurrentRegimeDurationHours: 10,
		HistoricalRegimeDurations: []float64{5, 8, 12, 20},
		EntryVolatility:           15,
		Volatility:                18,
	})
	if result.Verdict != VerdictValidated {
		t.Errorf("Verdict = %v, want %v (scores=%+v)", result.Verdict, VerdictValidated, result.Scores)
	}
	if result.Scores.InternalScore != 1.0 {
		t.Errorf("InternalScore = %v, want 1.0", result.Scores.InternalScore)
	}
}

func TestValidateReturnsDriftDetectedWhenRegimesMaximallyDisagreeAndAnomalous(t *testing.T) {
	result := Validate(ValidationContext{
		Scope:                      "test",
		CurrentRegime:              strPtr("risk_on"),
		RecalculatedRegime:         strPtr("panic"),
		CurrentRegimeDurationHours: 500,
		HistoricalRegimeDurations:  []float64{5, 8, 12, 20, 30},
		EntryVolatility:            15,
		Volatility:                90,
	})
	if result.Verdict != VerdictDriftDetected {
		t.Errorf("Verdict = %v, want %v (scores=%+v)", result.Verdict, VerdictDriftDetected, result.Scores)
	}
}

func TestValidateReturnsUncertainInMiddleGround(t *testing.T) {
	result := Validate(ValidationContext{
		Scope:              "test",
		CurrentRegime:      strPtr("risk_on"),
		RecalculatedRegime: strPtr("risk_off"),
	})
	if result.Verdict != VerdictUncertain {
		t.Errorf("Verdict = %v, want %v (scores=%+v)", result.Verdict, VerdictUncertain, result.Scores)
	}
}

func TestExternalScoreBlendsVerdictBaseAndConfidence(t *testing.T) {
	ctx := ValidationContext{
		CurrentRegime:      strPtr("risk_on"),
		RecalculatedRegime: strPtr("risk_on"),
		PhaseFVerdict:      &PhaseFVerdict{VerdictType: "REGIME_VALIDATED", RegimeConfidence: 1.0},
	}
	score := computeExternalScore(ctx)
	want := 0.85*0.6 + 1.0*0.4
	if !almostEqual(score, want, 1e-9) {
		t.Errorf("external score = %v, want %v", score, want)
	}
}

func TestCrossAssetScoreDefaultsToHalfWhenAbsent(t *testing.T) {
	score := computeCrossAssetScore(ValidationContext{CurrentRegime: strPtr("risk_on")})
	if score != 0.5 {
		t.Errorf("cross asset score = %v, want 0.5", score)
	}
}

func TestDetectRequiresAllFiveConditions(t *testing.T) {
	ctx := DriftContext{
		ScopeType:                  "swing",
		InternalConfidence:         0.9,
		PhaseFVerdict:              &PhaseFVerdict{RegimeConfidence: 0.5},
		CurrentRegimeDurationHours: 100,
		HistoricalRegimeDurations:  []float64{5, 8, 12, 20, 30},
		EntryVolatility:            15,
		CurrentVolatility:          90,
		NumExternalSources:         6,
		RecalculatedRegime:         strPtr("panic"),
	}
	scores := ValidationScores{DriftScore: 0.9}
	result := Detect(ctx, scores)
	if !result.DriftDetected {
		t.Errorf("expected drift detected, got conditions=%+v", result.Conditions)
	}
	if result.SuggestedRegime == nil || *result.SuggestedRegime != "panic" {
		t.Errorf("expected suggested regime 'panic', got %v", result.SuggestedRegime)
	}
}

func TestDetectNoDriftWhenOneConditionFails(t *testing.T) {
	ctx := DriftContext{
		ScopeType:                  "swing",
		InternalConfidence:         0.9,
		PhaseFVerdict:              &PhaseFVerdict{RegimeConfidence: 0.5},
		CurrentRegimeDurationHours: 100,
		HistoricalRegimeDurations:  []float64{5, 8, 12, 20, 30},
		EntryVolatility:            15,
		CurrentVolatility:          90,
		NumExternalSources:         2, // below the minimum-sources threshold of 5
		RecalculatedRegime:         strPtr("panic"),
	}
	scores := ValidationScores{DriftScore: 0.9}
	result := Detect(ctx, scores)
	if result.DriftDetected {
		t.Errorf("expected no drift when minimum_sources fails, got conditions=%+v", result.Conditions)
	}
	if result.SuggestedRegime != nil {
		t.Errorf("expected nil suggested regime when drift not detected")
	}
	metCount := 0
	for _, c := range result.Conditions {
		if c.Met {
			metCount++
		}
	}
	if metCount != 4 {
		t.Errorf("expected exactly 4 of 5 conditions met, got %d: %+v", metCount, result.Conditions)
	}
}

func TestDetectCryptoEmergencyOverrideBypassesDwell(t *testing.T) {
	ctx := DriftContext{
		ScopeType:                  "crypto",
		InternalConfidence:         0.9,
		PhaseFVerdict:              &PhaseFVerdict{RegimeConfidence: 0.5},
		CurrentRegimeDurationHours: 0.5, // well under the 4h crypto dwell floor
		HistoricalRegimeDurations:  []float64{0.1, 0.2, 0.3, 0.4, 1.0},
		EntryVolatility:            15,
		CurrentVolatility:          90,
		NumExternalSources:         6,
		RecalculatedRegime:         strPtr("panic"),
		Drawdown:                   -30.0, // breaches emergencyDrawdownThreshold of -25
	}
	scores := ValidationScores{DriftScore: 0.9}
	result := Detect(ctx, scores)
	if !result.DriftDetected {
		t.Errorf("expected emergency override to allow drift detection despite short dwell, got %+v", result.Conditions)
	}
}

func TestDetectCryptoWithoutEmergencyRespectsDwell(t *testing.T) {
	ctx := DriftContext{
		ScopeType:                  "crypto",
		InternalConfidence:         0.9,
		PhaseFVerdict:              &PhaseFVerdict{RegimeConfidence: 0.5},
		CurrentRegimeDurationHours: 0.5,
		HistoricalRegimeDurations:  []float64{5, 8, 12, 20, 30},
		EntryVolatility:            15,
		CurrentVolatility:          90,
		NumExternalSources:         6,
		RecalculatedRegime:         strPtr("panic"),
		Drawdown:                   -5.0, // no emergency
	}
	scores := ValidationScores{DriftScore: 0.9}
	result := Detect(ctx, scores)
	if result.DriftDetected {
		t.Errorf("expected dwell floor to block drift without emergency drawdown")
	}
}

func TestRegimeDistanceUnknownRegimeTreatedAsModerate(t *testing.T) {
	unknown := "something_else"
	riskOn := "risk_on"
	if d := RegimeDistance(&unknown, &riskOn); d != 1 {
		t.Errorf("RegimeDistance(unknown, risk_on) = %d, want 1 (unknown maps to neutral position 1)", d)
	}
}

func TestVolatilityBandThresholds(t *testing.T) {
	cases := []struct {
		vol  float64
		want string
	}{
		{10, "low"},
		{19.99, "low"},
		{20, "medium"},
		{49.99, "medium"},
		{50, "high"},
		{79.99, "high"},
		{80, "extreme"},
		{200, "extreme"},
	}
	for _, c := range cases {
		if got := VolatilityBand(c.vol); got != c.want {
			t.Errorf("VolatilityBand(%v) = %q, want %q", c.vol, got, c.want)
		}
	}
}

func almostEqual(a, b, tol float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= tol
}
