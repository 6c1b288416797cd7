package governance

import "fmt"

// Synthesizer combines the proposal, critique, and audit into a single
// human-readable recommendation packet. It never applies anything itself;
// the only artifact that makes a proposal actionable is an external
// Approval written by a human operator.
type Synthesizer struct{}

// NewSynthesizer returns a Synthesizer.
func NewSynthesizer() *Synthesizer { return &Synthesizer{} }

// Synthesize combines p, crit, and audit into a Synthesis.
func (s *Synthesizer) Synthesize(p Proposal, crit Criticism, audit Audit) Synthesis {
	summary := generateSummary(p, audit)
	keyRisks := extractKeyRisks(audit, crit, p)
	recommendation := determineFinalRecommendation(audit, crit, p)
	confidence := calculateFinalConfidence(p, crit, audit)

	return Synthesis{
		ProposalID:          p.ProposalID,
		Summary:             summary,
		KeyRisks:            keyRisks,
		FinalRecommendation: recommendation,
		Confidence:          confidence,
	}
}

func generateSummary(p Proposal, audit Audit) string {
	var base string
	switch p.ProposalType {
	case ProposalAddSymbols:
		base = fmt.Sprintf("Proposal to add %d symbol(s) to the %s universe.", len(p.Symbols), p.Environment)
	case ProposalRemoveSymbols:
		base = fmt.Sprintf("Proposal to remove %d symbol(s) from the %s universe.", len(p.Symbols), p.Environment)
	case ProposalAdjustThreshold:
		base = fmt.Sprintf("Proposal to adjust signal threshold for the %s environment.", p.Environment)
	default:
		base = fmt.Sprintf("Proposal to adjust scanning rules for the %s environment.", p.Environment)
	}
	if !audit.ConstitutionPassed {
		base += " [Constitutional compliance review required]"
	}
	return base
}

func extractKeyRisks(audit Audit, crit Criticism, p Proposal) []string {
	var risks []string

	for _, v := range audit.Violations {
		risks = append(risks, fmt.Sprintf("Constitutional: %s", v.Violation))
	}

	n := 2
	if len(crit.Criticisms) < n {
		n = len(crit.Criticisms)
	}
	risks = append(risks, crit.Criticisms[:n]...)

	if p.RiskNotes != "" {
		risks = append(risks, p.RiskNotes)
	}

	if len(risks) == 0 {
		risks = append(risks, "Proceed with caution and monitor closely after approval.")
	}

	if len(risks) > 5 {
		risks = risks[:5]
	}
	return risks
}

func determineFinalRecommendation(audit Audit, crit Criticism, p Proposal) FinalRecommendation {
	if !audit.ConstitutionPassed {
		return RecommendationReject
	}
	switch crit.Recommendation {
	case RecommendReject:
		return RecommendationReject
	case RecommendCaution:
		return RecommendationDefer
	case RecommendProceed:
		if p.Confidence > 0.65 {
			return RecommendationApprove
		}
		return RecommendationDefer
	default:
		return RecommendationDefer
	}
}

func calculateFinalConfidence(p Proposal, crit Criticism, audit Audit) float64 {
	multiplier := 0.6
	switch crit.Recommendation {
	case RecommendReject:
		multiplier = 0.3
	case RecommendCaution:
		multiplier = 0.6
	case RecommendProceed:
		multiplier = 0.9
	}

	confidence := p.Confidence * multiplier
	if !audit.ConstitutionPassed {
		confidence *= 0.2
	}

	if confidence < 0.0 {
		confidence = 0.0
	}
	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}
