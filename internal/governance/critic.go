package governance

import "strings"

// Critic takes an adversarial pass over a proposal, looking for reasons the
// Proposer's confidence may be overstated. It records criticisms and a
// PROCEED/CAUTION/REJECT recommendation derived from them; it does not change
// the proposal's confidence, and constitutional compliance is the Auditor's job.
type Critic struct{}

// NewCritic returns a Critic.
func NewCritic() *Critic { return &Critic{} }

// CritiqueProposal runs every adversarial check against p and returns the
// accumulated criticism.
func (c *Critic) CritiqueProposal(p Proposal) Criticism {
	var criticisms []string
	adjustment := 0.0

	if crit, hit := checkRecencyBias(p); hit {
		criticisms = append(criticisms, crit)
		adjustment += 0.1
	}
	if crit, hit := checkOverfitting(p); hit {
		criticisms = append(criticisms, crit)
		adjustment += 0.15
	}
	if crit, hit := checkLiquidityRisk(p); hit {
		criticisms = append(criticisms, crit)
		adjustment += 0.1
	}
	if crit, hit := checkCapacityRisk(p); hit {
		criticisms = append(criticisms, crit)
		adjustment += 0.1
	}
	if crit, hit := checkTimingRisk(p); hit {
		criticisms = append(criticisms, crit)
		adjustment += 0.1
	}

	// The critic always finds at least one thing worth flagging: proposals
	// are, by definition, uncertain enough to need a human look.
	if len(criticisms) == 0 {
		criticisms = append(criticisms, "No major red flags identified, but all proposals carry inherent uncertainty and should be reviewed before approval.")
	}

	recommendation := determineRecommendation(len(criticisms), adjustment)

	return Criticism{
		ProposalID:      p.ProposalID,
		Criticisms:      criticisms,
		CounterEvidence: generateCounterEvidence(p),
		Recommendation:  recommendation,
	}
}

func checkRecencyBias(p Proposal) (string, bool) {
	if p.Evidence.MissedSignals > 10 {
		return "Proposal may be overreacting to a recent short window of missed signals rather than a durable trend.", true
	}
	return "", false
}

func checkOverfitting(p Proposal) (string, bool) {
	if p.ProposalType == ProposalAddSymbols && p.Evidence.PerformanceNotes != "" && strings.Contains(p.Evidence.PerformanceNotes, "+$") {
		pnl := extractPnL(p.Evidence.PerformanceNotes)
		if pnl > 500.0 {
			return "Strong recent PnL may be driving symbol-addition confidence; verify this isn't overfit to a short favorable window.", true
		}
	}
	return "", false
}

func checkLiquidityRisk(p Proposal) (string, bool) {
	if p.ProposalType != ProposalAddSymbols {
		return "", false
	}
	for _, sym := range p.Symbols {
		if sym != "BTC" && sym != "ETH" {
			return "Adding non-major symbols (altcoins) carries elevated liquidity and slippage risk relative to BTC/ETH.", true
		}
	}
	return "", false
}

func checkCapacityRisk(p Proposal) (string, bool) {
	if len(p.Symbols) > 3 {
		return "Proposal affects more than 3 symbols at once; review execution capacity before approving a batch this size.", true
	}
	return "", false
}

func checkTimingRisk(p Proposal) (string, bool) {
	starved := len(p.Evidence.ScanStarvation)
	if starved > 2 {
		return "Scan starvation across multiple symbols may reflect a data or infrastructure issue rather than a genuine universe-fit problem.", true
	}
	return "", false
}

func determineRecommendation(numCriticisms int, adjustment float64) CriticRecommendation {
	switch {
	case numCriticisms >= 4 || adjustment >= 0.3:
		return RecommendReject
	case numCriticisms >= 2 || adjustment >= 0.15:
		return RecommendCaution
	default:
		return RecommendProceed
	}
}

func generateCounterEvidence(p Proposal) string {
	switch p.ProposalType {
	case ProposalAddSymbols:
		return "Historical paper performance for new symbols is unproven in live conditions; slippage and fees were not modeled."
	case ProposalRemoveSymbols:
		return "Low scan coverage may reflect a transient liquidity dip rather than a structural reason to exit the symbol permanently."
	case ProposalAdjustThreshold:
		return "Lowering thresholds to capture missed signals may also admit lower-quality signals; win rate impact is unverified."
	default:
		return "Rule adjustments have second-order effects across the full universe that are difficult to isolate from a single proposal."
	}
}

func extractPnL(notes string) float64 {
	idx := strings.Index(notes, "+$")
	if idx < 0 {
		return 0
	}
	rest := notes[idx+2:]
	end := strings.IndexAny(rest, ", ")
	if end > 0 {
		rest = rest[:end]
	}
	var val float64
	var whole, frac int
	var fracDigits int
	parsing := "whole"
	for _, r := range rest {
		if r == '.' {
			parsing = "frac"
			continue
		}
		if r < '0' || r > '9' {
			break
		}
		d := int(r - '0')
		if parsing == "whole" {
			whole = whole*10 + d
		} else {
			frac = frac*10 + d
			fracDigits++
		}
	}
	val = float64(whole)
	if fracDigits > 0 {
		div := 1.0
		for i := 0; i < fracDigits; i++ {
			div *= 10
		}
		val += float64(frac) / div
	}
	return val
}
