package regimeval

// Dwell floors by scope type: how long a regime must persist before drift
// is even considered, so a single noisy bar can't trigger a flip.
var minDwellHours = map[string]float64{
	"crypto": 4.0,
	"swing":  72.0,
}

const (
	confidenceDeltaThreshold  = 0.25
	durationPercentileThreshold = 80.0
	minExternalSources        = 5
	emergencyDrawdownThreshold = -25.0
)

// DriftCondition records whether one of the five drift conditions was met,
// for audit purposes.
type DriftCondition struct {
	Name string
	Met  bool
	Detail string
}

// DriftDetectionResult is the outcome of one drift-detection cycle. Drift is
// only declared when every condition is met.
type DriftDetectionResult struct {
	DriftDetected   bool
	SuggestedRegime *string
	Confidence      float64
	Conditions      []DriftCondition
}

// DriftContext carries the inputs needed to evaluate the five drift
// conditions on top of an already-computed ValidationResult.
type DriftContext struct {
	ScopeType                string // "crypto" or "swing"
	InternalConfidence       float64
	PhaseFVerdict            *PhaseFVerdict
	CurrentRegimeDurationHours float64
	HistoricalRegimeDurations []float64
	EntryVolatility          float64
	CurrentVolatility        float64
	Drawdown                 float64
	NumExternalSources       int
	RecalculatedRegime       *string
}

// Detect evaluates the five independent drift conditions and combines them
// with AND logic: all five must hold before a regime change is suggested.
func Detect(ctx DriftContext, scores ValidationScores) DriftDetectionResult {
	conditions := []DriftCondition{
		checkExternalConfidenceDelta(ctx),
		checkMinimumDwell(ctx),
		checkDurationAnomaly(ctx),
		checkVolatilityShift(ctx),
		checkMinimumSources(ctx),
	}

	metCount := 0
	allMet := true
	for _, c := range conditions {
		if c.Met {
			metCount++
		} else {
			allMet = false
		}
	}

	result := DriftDetectionResult{
		DriftDetected: allMet,
		Conditions:    conditions,
	}

	if allMet {
		result.SuggestedRegime = ctx.RecalculatedRegime
		result.Confidence = (float64(metCount) / float64(len(conditions))) * scores.DriftScore
	}

	return result
}

func checkExternalConfidenceDelta(ctx DriftContext) DriftCondition {
	externalConfidence := 0.5
	if ctx.PhaseFVerdict != nil {
		externalConfidence = ctx.PhaseFVerdict.RegimeConfidence
	}
	delta := ctx.InternalConfidence - externalConfidence
	if delta < 0 {
		delta = -delta
	}
	return DriftCondition{
		Name: "external_confidence_delta",
		Met:  delta > confidenceDeltaThreshold,
	}
}

func checkMinimumDwell(ctx DriftContext) DriftCondition {
	floor, ok := minDwellHours[ctx.ScopeType]
	if !ok {
		floor = 4.0
	}

	if ctx.ScopeType == "crypto" && ctx.Drawdown < emergencyDrawdownThreshold {
		return DriftCondition{Name: "minimum_dwell", Met: true, Detail: "emergency drawdown override"}
	}

	return DriftCondition{
		Name: "minimum_dwell",
		Met:  ctx.CurrentRegimeDurationHours >= floor,
	}
}

func checkDurationAnomaly(ctx DriftContext) DriftCondition {
	pct := DurationPercentile(ctx.CurrentRegimeDurationHours, ctx.HistoricalRegimeDurations)
	return DriftCondition{
		Name: "duration_anomaly",
		Met:  pct >= durationPercentileThreshold,
	}
}

func checkVolatilityShift(ctx DriftContext) DriftCondition {
	return DriftCondition{
		Name: "volatility_shift",
		Met:  VolatilityShiftDetected(ctx.EntryVolatility, ctx.CurrentVolatility),
	}
}

func checkMinimumSources(ctx DriftContext) DriftCondition {
	return DriftCondition{
		Name: "minimum_sources",
		Met:  ctx.NumExternalSources >= minExternalSources,
	}
}
