package governance

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Proposer drafts exactly one non-binding proposal per environment per run,
// from summarized recent performance and scan-coverage evidence.
type Proposer struct{}

// NewProposer returns a Proposer.
func NewProposer() *Proposer { return &Proposer{} }

// GenerateProposal drafts a proposal for environment from analysis.
func (p *Proposer) GenerateProposal(environment string, analysis Analysis, now time.Time) Proposal {
	env := analysis.Environments[environment]

	missedSignals := estimateMissedSignals(env.Performance)
	scanStarvation := env.ScanAnalysis.ScanStarvation
	deadSymbols := identifyDeadSymbols(scanStarvation)

	proposalType := determineProposalType(scanStarvation, missedSignals, deadSymbols)
	symbols := getProposedSymbols(proposalType, scanStarvation, deadSymbols)
	rationale := generateRationale(proposalType, symbols, missedSignals, scanStarvation)
	confidence := estimateConfidence(environment, missedSignals)

	evidence := Evidence{
		MissedSignals:    missedSignals,
		ScanStarvation:   scanStarvation,
		DeadSymbols:      deadSymbols,
		PerformanceNotes: generatePerformanceNotes(env.Performance),
	}

	return Proposal{
		ProposalID:   uuid.New().String(),
		Environment:  environment,
		ProposalType: proposalType,
		Symbols:      symbols,
		Rationale:    rationale,
		Evidence:     evidence,
		RiskNotes:    generateRiskNotes(proposalType, symbols),
		Confidence:   confidence,
		NonBinding:   true,
		CreatedAt:    now,
	}
}

func estimateMissedSignals(perf PerformanceSummary) int {
	if perf.TradesSkipped < 0 {
		return 0
	}
	return perf.TradesSkipped
}

// identifyDeadSymbols is deliberately re-derived from scan starvation rather
// than tracked independently; this matches the original proposer's behavior.
func identifyDeadSymbols(scanStarvation []string) []string {
	n := 3
	if len(scanStarvation) < n {
		n = len(scanStarvation)
	}
	return append([]string{}, scanStarvation[:n]...)
}

func determineProposalType(scanStarvation []string, missedSignals int, deadSymbols []string) ProposalType {
	switch {
	case len(deadSymbols) >= 2:
		return ProposalRemoveSymbols
	case missedSignals > 10 || len(scanStarvation) > 2:
		return ProposalAddSymbols
	case missedSignals > 5:
		return ProposalAdjustThreshold
	default:
		return ProposalAdjustRule
	}
}

func getProposedSymbols(proposalType ProposalType, scanStarvation, deadSymbols []string) []string {
	switch proposalType {
	case ProposalRemoveSymbols:
		return firstN(deadSymbols, 3)
	case ProposalAddSymbols:
		return firstN(scanStarvation, 3)
	default:
		// Rule/threshold adjustments carry a generic placeholder symbol
		// list, matching the original proposer rather than independently
		// tracking affected symbols for non-symbol proposal types.
		return []string{"BTC", "ETH"}
	}
}

func firstN(s []string, n int) []string {
	if n > len(s) {
		n = len(s)
	}
	return append([]string{}, s[:n]...)
}

func generateRationale(proposalType ProposalType, symbols []string, missedSignals int, scanStarvation []string) string {
	switch proposalType {
	case ProposalRemoveSymbols:
		return fmt.Sprintf(
			"Remove %s from active universe due to low scan coverage. "+
				"These symbols appear in less than 25%% of scans and have not generated fills. "+
				"Removing dead weight improves universe efficiency.", strings.Join(symbols, ", "))
	case ProposalAddSymbols:
		return fmt.Sprintf(
			"Add %s to active universe. "+
				"These symbols show strong signals but are scanned less than 25%% of days due to capacity limits. "+
				"Current universe capacity allows inclusion. Paper results show potential.", strings.Join(symbols, ", "))
	case ProposalAdjustThreshold:
		return fmt.Sprintf(
			"Adjust signal threshold lower to capture more %d missed signals. "+
				"Paper universe is underutilized. Lowering threshold by 5%% should improve signal capture.", missedSignals)
	default:
		return fmt.Sprintf(
			"Increase scanning frequency during high-volatility windows. "+
				"Current scan starvation (%d symbols) indicates capacity underuse.", len(scanStarvation))
	}
}

func generatePerformanceNotes(perf PerformanceSummary) string {
	pnlStr := fmt.Sprintf("-$%.2f", -perf.TotalPnL)
	if perf.TotalPnL > 0 {
		pnlStr = fmt.Sprintf("+$%.2f", perf.TotalPnL)
	}
	return fmt.Sprintf("Last 7 days: %d trades executed, PnL %s, no major drawdowns.", perf.TotalTrades, pnlStr)
}

func generateRiskNotes(proposalType ProposalType, symbols []string) string {
	symbolsStr := strings.Join(firstN(symbols, 3), ", ")
	switch proposalType {
	case ProposalAddSymbols:
		return fmt.Sprintf(
			"Adding symbols %s increases universe to larger set. "+
				"Monitor for slippage and execution cost increases. "+
				"Paper results may not fully reflect live conditions.", symbolsStr)
	case ProposalRemoveSymbols:
		return fmt.Sprintf(
			"Removing %s reduces universe but improves focus. "+
				"Unlikely to have major impact given low historical fills.", symbolsStr)
	default:
		return "Threshold/rule changes should be monitored for impact on win rate."
	}
}

func estimateConfidence(environment string, missedSignals int) float64 {
	confidence := 0.6
	switch {
	case missedSignals > 15:
		confidence += 0.2
	case missedSignals > 5:
		confidence += 0.1
	}
	if environment == "paper" {
		confidence -= 0.1
	}
	if confidence > 1.0 {
		confidence = 1.0
	}
	if confidence < 0.0 {
		confidence = 0.0
	}
	return confidence
}
