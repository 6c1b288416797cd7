package universe

import (
	"math"
	"sort"
	"time"
)

// Scorer computes the 5-dimension score for a candidate symbol.
type Scorer struct {
	Weights Weights
}

// NewScorer returns a Scorer using w.
func NewScorer(w Weights) *Scorer {
	return &Scorer{Weights: w}
}

// ScoreSymbol scores a single symbol across all 5 dimensions. bars must be
// ordered oldest to newest. universeMedianVolume is 0 when unavailable.
func (s *Scorer) ScoreSymbol(symbol string, bars []Bar, trades []TradeRecord, regimeLabel string, verdict *Verdict, universeMedianVolume float64, now time.Time) ScoredCandidate {
	dims := DimensionScores{
		Performance: scorePerformance(trades),
		Regime:      scoreRegime(regimeLabel),
		Liquidity:   scoreLiquidity(bars, universeMedianVolume),
		Volatility:  scoreVolatility(bars),
		Sentiment:   scoreSentiment(verdict),
	}

	weighted := DimensionScores{
		Performance: round2(dims.Performance * s.Weights.Performance),
		Regime:      round2(dims.Regime * s.Weights.Regime),
		Liquidity:   round2(dims.Liquidity * s.Weights.Liquidity),
		Volatility:  round2(dims.Volatility * s.Weights.Volatility),
		Sentiment:   round2(dims.Sentiment * s.Weights.Sentiment),
	}

	total := weighted.Performance + weighted.Regime + weighted.Liquidity + weighted.Volatility + weighted.Sentiment

	return ScoredCandidate{
		Symbol:          symbol,
		TotalScore:      round2(total),
		DimensionScores: roundDims(dims),
		WeightedScores:  weighted,
		RegimeLabel:     regimeLabel,
		TimestampUTC:    now,
	}
}

// ScoreUniverse scores every candidate and returns them sorted by total
// score descending. A candidate with fewer than 5 bars is skipped entirely
// (insufficient data to score responsibly).
func (s *Scorer) ScoreUniverse(candidates []string, barsBySymbol map[string][]Bar, tradesBySymbol map[string][]TradeRecord, regimeLabel string, verdict *Verdict, now time.Time) []ScoredCandidate {
	universeMedianVolume := medianVolume(candidates, barsBySymbol)

	scored := make([]ScoredCandidate, 0, len(candidates))
	for _, symbol := range candidates {
		bars := barsBySymbol[symbol]
		if len(bars) < 5 {
			continue
		}
		scored = append(scored, s.ScoreSymbol(symbol, bars, tradesBySymbol[symbol], regimeLabel, verdict, universeMedianVolume, now))
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].TotalScore > scored[j].TotalScore
	})
	return scored
}

func medianVolume(candidates []string, barsBySymbol map[string][]Bar) float64 {
	var volumes []float64
	for _, symbol := range candidates {
		bars := barsBySymbol[symbol]
		if len(bars) < 20 {
			continue
		}
		avg := tailMeanVolume(bars, 20)
		if avg > 0 {
			volumes = append(volumes, avg)
		}
	}
	if len(volumes) == 0 {
		return 0
	}
	sort.Float64s(volumes)
	n := len(volumes)
	if n%2 == 1 {
		return volumes[n/2]
	}
	return (volumes[n/2-1] + volumes[n/2]) / 2
}

func tailMeanVolume(bars []Bar, lookback int) float64 {
	if lookback > len(bars) {
		lookback = len(bars)
	}
	tail := bars[len(bars)-lookback:]
	var sum float64
	for _, b := range tail {
		sum += b.Volume
	}
	return sum / float64(len(tail))
}

// scorePerformance scores trade ledger win rate and a Sharpe proxy over the
// last 30 trades. No history scores neutral.
func scorePerformance(trades []TradeRecord) float64 {
	if len(trades) == 0 {
		return 50.0
	}

	recent := trades
	if len(recent) > 30 {
		recent = recent[len(recent)-30:]
	}

	var returns []float64
	wins := 0
	for _, t := range recent {
		returns = append(returns, t.NetPnLPct)
		if t.NetPnLPct > 0 {
			wins++
		}
	}

	winRate := float64(wins) / float64(len(recent))
	avgReturn := mean(returns)

	var sharpeProxy float64
	if len(returns) > 1 {
		std := stdev(returns, avgReturn)
		if std > 0 {
			sharpeProxy = avgReturn / std
		}
	}

	winScore := clamp(winRate*100.0, 0, 100)
	sharpeScore := clamp(50.0+sharpeProxy*25.0, 0, 100)

	return clamp(winScore*0.6+sharpeScore*0.4, 0, 100)
}

func scoreRegime(regimeLabel string) float64 {
	switch regimeLabel {
	case "risk_on":
		return 100.0
	case "neutral":
		return 70.0
	case "risk_off":
		return 40.0
	case "panic":
		return 10.0
	default:
		return 50.0
	}
}

func scoreLiquidity(bars []Bar, universeMedianVolume float64) float64 {
	if len(bars) < 5 {
		return 50.0
	}
	lookback := 20
	if lookback > len(bars) {
		lookback = len(bars)
	}
	avgVol := tailMeanVolume(bars, lookback)

	if universeMedianVolume <= 0 {
		return 50.0
	}

	ratio := avgVol / universeMedianVolume
	if ratio <= 0 {
		return 0.0
	}
	if ratio < 0.01 {
		ratio = 0.01
	}
	score := 50.0 + 25.0*math.Log2(ratio)
	return clamp(score, 0, 100)
}

func scoreVolatility(bars []Bar) float64 {
	if len(bars) < 10 {
		return 50.0
	}
	lookback := 21
	if lookback > len(bars) {
		lookback = len(bars)
	}
	tail := bars[len(bars)-lookback:]

	var returns []float64
	for i := 1; i < len(tail); i++ {
		if tail[i].Close > 0 && tail[i-1].Close > 0 {
			returns = append(returns, math.Log(tail[i].Close/tail[i-1].Close))
		}
	}
	if len(returns) < 5 {
		return 50.0
	}

	avg := mean(returns)
	stdDaily := stdev(returns, avg)
	realizedVol := stdDaily * math.Sqrt(365) * 100

	var score float64
	switch {
	case realizedVol < 5:
		score = 20.0
	case realizedVol < 15:
		score = 20.0 + (realizedVol-5)*4.0
	case realizedVol < 40:
		score = 60.0 + (realizedVol-15)*1.6
	case realizedVol <= 70:
		score = 100.0
	case realizedVol <= 120:
		score = 100.0 - (realizedVol-70)*1.0
	default:
		score = math.Max(10.0, 50.0-(realizedVol-120)*0.5)
	}

	return clamp(score, 0, 100)
}

func scoreSentiment(verdict *Verdict) float64 {
	if verdict == nil {
		return 50.0
	}

	base, ok := map[string]float64{
		"REGIME_VALIDATED":                  80.0,
		"POSSIBLE_STRUCTURAL_SHIFT_OBSERVE": 60.0,
		"REGIME_QUESTIONABLE":               40.0,
		"HIGH_NOISE_NO_ACTION":              30.0,
	}[verdict.VerdictType]
	if !ok {
		base = 50.0
	}

	confidenceAdj := (verdict.RegimeConfidence - 0.5) * 20.0

	consistencyAdj := map[string]float64{
		"HIGH":  10.0,
		"MIXED": 0.0,
		"LOW":   -10.0,
	}[verdict.NarrativeConsistency]

	return clamp(base+confidenceAdj+consistencyAdj, 0, 100)
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

func stdev(vs []float64, avg float64) float64 {
	if len(vs) < 2 {
		return 0
	}
	var sumSq float64
	for _, v := range vs {
		d := v - avg
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(vs)-1))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func roundDims(d DimensionScores) DimensionScores {
	return DimensionScores{
		Performance: round2(d.Performance),
		Regime:      round2(d.Regime),
		Liquidity:   round2(d.Liquidity),
		Volatility:  round2(d.Volatility),
		Sentiment:   round2(d.Sentiment),
	}
}
