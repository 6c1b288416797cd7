package governance

import (
	"testing"
	"time"

	"github.com/riftlabs/controlplane/internal/scope"
)

func testScope() scope.Scope {
	return scope.Scope{Env: scope.EnvPaper, Broker: "alpaca", Market: "us-equity", Region: "na"}
}

func testLayout(t *testing.T, s scope.Scope) scope.Layout {
	t.Helper()
	return scope.NewLayout(t.TempDir(), s)
}

func baseProposal(proposalType ProposalType, symbols []string) Proposal {
	return Proposal{
		ProposalID:   "11111111-1111-1111-1111-111111111111",
		Environment:  "paper",
		ProposalType: proposalType,
		Symbols:      symbols,
		Rationale:    "scanner coverage is low for these symbols",
		RiskNotes:    "monitor after change",
		Confidence:   0.7,
		NonBinding:   true,
		CreatedAt:    time.Now(),
	}
}

func TestValidateProposalAcceptsFiveAddedSymbols(t *testing.T) {
	p := baseProposal(ProposalAddSymbols, []string{"AAA", "BBB", "CCC", "DDD", "EEE"})
	ok, violations := ValidateProposal(p)
	if !ok {
		t.Errorf("expected 5 added symbols accepted, violations=%v", violations)
	}
}

func TestValidateProposalRejectsSixAddedSymbols(t *testing.T) {
	p := baseProposal(ProposalAddSymbols, []string{"AAA", "BBB", "CCC", "DDD", "EEE", "FFF"})
	ok, violations := ValidateProposal(p)
	if ok {
		t.Fatalf("expected 6 added symbols rejected")
	}
	found := false
	for _, v := range violations {
		if containsSub(v, "Too many symbols to add") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected max-symbols-added violation, got %v", violations)
	}
}

func TestValidateProposalRejectsForbiddenProposalType(t *testing.T) {
	p := baseProposal("EXECUTE_TRADE", []string{"BTC"})
	ok, violations := ValidateProposal(p)
	if ok {
		t.Fatalf("expected EXECUTE_TRADE rejected")
	}
	found := false
	for _, v := range violations {
		if containsSub(v, "forbidden by constitution") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected forbidden-proposal-type violation, got %v", violations)
	}
}

func TestValidateProposalRejectsNonBindingFalse(t *testing.T) {
	p := baseProposal(ProposalAddSymbols, []string{"BTC"})
	p.NonBinding = false
	ok, _ := ValidateProposal(p)
	if ok {
		t.Errorf("expected non_binding=false rejected")
	}
}

func TestValidateProposalRejectsForbiddenLanguageInRationale(t *testing.T) {
	p := baseProposal(ProposalAddSymbols, []string{"BTC"})
	p.Rationale = "auto-apply this change and bypass the usual review"
	ok, violations := ValidateProposal(p)
	if ok {
		t.Fatalf("expected forbidden language rejected")
	}
	found := false
	for _, v := range violations {
		if containsSub(v, "forbidden language") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected forbidden-language violation, got %v", violations)
	}
}

func TestValidateProposalRejectsLowercaseSymbol(t *testing.T) {
	p := baseProposal(ProposalAddSymbols, []string{"btc"})
	ok, _ := ValidateProposal(p)
	if ok {
		t.Errorf("expected lowercase symbol rejected")
	}
}

func TestProposerDeterminesRemoveSymbolsWhenTwoDeadSymbols(t *testing.T) {
	pr := NewProposer()
	analysis := Analysis{Environments: map[string]EnvironmentAnalysis{
		"paper": {
			Performance:  PerformanceSummary{TotalTrades: 10, TotalPnL: 50, TradesSkipped: 1},
			ScanAnalysis: ScanAnalysis{ScanStarvation: []string{"XRP", "DOGE"}},
		},
	}}
	p := pr.GenerateProposal("paper", analysis, time.Now())
	if p.ProposalType != ProposalRemoveSymbols {
		t.Errorf("expected REMOVE_SYMBOLS, got %s", p.ProposalType)
	}
	if len(p.Evidence.DeadSymbols) != 2 {
		t.Errorf("expected dead_symbols re-derived from scan_starvation, got %v", p.Evidence.DeadSymbols)
	}
}

func TestProposerDeterminesAddSymbolsWhenManyMissedSignals(t *testing.T) {
	pr := NewProposer()
	analysis := Analysis{Environments: map[string]EnvironmentAnalysis{
		"paper": {
			Performance:  PerformanceSummary{TotalTrades: 10, TotalPnL: 50, TradesSkipped: 15},
			ScanAnalysis: ScanAnalysis{ScanStarvation: []string{"SOL"}},
		},
	}}
	p := pr.GenerateProposal("paper", analysis, time.Now())
	if p.ProposalType != ProposalAddSymbols {
		t.Errorf("expected ADD_SYMBOLS, got %s", p.ProposalType)
	}
}

func TestProposerUsesPlaceholderSymbolsForRuleAdjustment(t *testing.T) {
	pr := NewProposer()
	analysis := Analysis{Environments: map[string]EnvironmentAnalysis{
		"paper": {
			Performance:  PerformanceSummary{TotalTrades: 10, TotalPnL: 50, TradesSkipped: 1},
			ScanAnalysis: ScanAnalysis{ScanStarvation: nil},
		},
	}}
	p := pr.GenerateProposal("paper", analysis, time.Now())
	if p.ProposalType != ProposalAdjustRule {
		t.Errorf("expected ADJUST_RULE, got %s", p.ProposalType)
	}
	if len(p.Symbols) != 2 || p.Symbols[0] != "BTC" || p.Symbols[1] != "ETH" {
		t.Errorf("expected hardcoded BTC/ETH placeholder symbols, got %v", p.Symbols)
	}
}

func TestProposerAlwaysNonBinding(t *testing.T) {
	pr := NewProposer()
	analysis := Analysis{Environments: map[string]EnvironmentAnalysis{
		"live": {Performance: PerformanceSummary{}, ScanAnalysis: ScanAnalysis{}},
	}}
	p := pr.GenerateProposal("live", analysis, time.Now())
	if !p.NonBinding {
		t.Errorf("expected proposals to always be non_binding")
	}
}

func TestCriticAlwaysProducesAtLeastOneCriticism(t *testing.T) {
	c := NewCritic()
	p := baseProposal(ProposalAdjustRule, []string{"BTC", "ETH"})
	crit := c.CritiqueProposal(p)
	if len(crit.Criticisms) == 0 {
		t.Errorf("expected at least one criticism always")
	}
}

func TestCriticFlagsAltcoinLiquidityRisk(t *testing.T) {
	c := NewCritic()
	p := baseProposal(ProposalAddSymbols, []string{"DOGE"})
	crit := c.CritiqueProposal(p)
	found := false
	for _, cr := range crit.Criticisms {
		if containsSub(cr, "liquidity") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected liquidity-risk criticism for altcoin addition, got %v", crit.Criticisms)
	}
}

func TestCriticFlagsCapacityRiskAboveThreeSymbols(t *testing.T) {
	c := NewCritic()
	p := baseProposal(ProposalAddSymbols, []string{"BTC", "ETH", "SOL", "ADA"})
	crit := c.CritiqueProposal(p)
	found := false
	for _, cr := range crit.Criticisms {
		if containsSub(cr, "more than 3 symbols") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected capacity-risk criticism for >3 symbols, got %v", crit.Criticisms)
	}
}

func TestCriticRejectsWithFourOrMoreCriticisms(t *testing.T) {
	c := NewCritic()
	p := baseProposal(ProposalAddSymbols, []string{"DOGE", "SOL", "ADA", "XRP"})
	p.Evidence.MissedSignals = 20
	p.Evidence.ScanStarvation = []string{"A", "B", "C"}
	crit := c.CritiqueProposal(p)
	if len(crit.Criticisms) < 4 {
		t.Fatalf("expected scenario to accumulate >=4 criticisms, got %v", crit.Criticisms)
	}
	if crit.Recommendation != RecommendReject {
		t.Errorf("expected REJECT with >=4 criticisms, got %s", crit.Recommendation)
	}
}

func TestAuditorPassesCleanProposal(t *testing.T) {
	a := NewAuditor()
	p := baseProposal(ProposalAddSymbols, []string{"BTC", "ETH"})
	audit := a.AuditProposal(p)
	if !audit.ConstitutionPassed {
		t.Errorf("expected clean proposal to pass, violations=%+v", audit.Violations)
	}
}

func TestAuditorFlagsExecuteTradeAsCritical(t *testing.T) {
	a := NewAuditor()
	p := baseProposal("EXECUTE_TRADE", []string{"BTC"})
	audit := a.AuditProposal(p)
	if audit.ConstitutionPassed {
		t.Fatalf("expected EXECUTE_TRADE to fail constitution")
	}
	if len(audit.Violations) == 0 || audit.Violations[0].Severity != SeverityCritical {
		t.Errorf("expected CRITICAL violation for EXECUTE_TRADE, got %+v", audit.Violations)
	}
}

func TestSynthesizerRejectsOnConstitutionalFailure(t *testing.T) {
	syn := NewSynthesizer()
	p := baseProposal("EXECUTE_TRADE", []string{"BTC"})
	crit := Criticism{ProposalID: p.ProposalID, Criticisms: []string{"n/a"}, Recommendation: RecommendProceed}
	a := NewAuditor()
	audit := a.AuditProposal(p)

	synthesis := syn.Synthesize(p, crit, audit)
	if synthesis.FinalRecommendation != RecommendationReject {
		t.Errorf("expected REJECT on constitutional failure, got %s", synthesis.FinalRecommendation)
	}
}

func TestSynthesizerApprovesHighConfidenceProceed(t *testing.T) {
	syn := NewSynthesizer()
	p := baseProposal(ProposalAddSymbols, []string{"BTC", "ETH"})
	p.Confidence = 0.9
	crit := Criticism{ProposalID: p.ProposalID, Criticisms: []string{"minor note"}, Recommendation: RecommendProceed}
	audit := Audit{ProposalID: p.ProposalID, ConstitutionPassed: true}

	synthesis := syn.Synthesize(p, crit, audit)
	if synthesis.FinalRecommendation != RecommendationApprove {
		t.Errorf("expected APPROVE for high-confidence proceed, got %s", synthesis.FinalRecommendation)
	}
}

func TestSynthesizerDefersOnCaution(t *testing.T) {
	syn := NewSynthesizer()
	p := baseProposal(ProposalAddSymbols, []string{"BTC", "ETH"})
	p.Confidence = 0.9
	crit := Criticism{ProposalID: p.ProposalID, Criticisms: []string{"a", "b"}, Recommendation: RecommendCaution}
	audit := Audit{ProposalID: p.ProposalID, ConstitutionPassed: true}

	synthesis := syn.Synthesize(p, crit, audit)
	if synthesis.FinalRecommendation != RecommendationDefer {
		t.Errorf("expected DEFER on CAUTION, got %s", synthesis.FinalRecommendation)
	}
}

func TestPipelineRunPersistsAllFourArtifacts(t *testing.T) {
	s := testScope()
	l := testLayout(t, s)
	pipeline := NewPipeline(s, l, nil)

	analysis := Analysis{Environments: map[string]EnvironmentAnalysis{
		"paper": {
			Performance:  PerformanceSummary{TotalTrades: 5, TotalPnL: 100, TradesSkipped: 2},
			ScanAnalysis: ScanAnalysis{ScanStarvation: []string{"SOL"}},
		},
	}}

	result, err := pipeline.Run("paper", analysis, time.Now())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Proposal.ProposalID == "" {
		t.Fatalf("expected a proposal ID to be assigned")
	}
	if result.Synthesis.ProposalID != result.Proposal.ProposalID {
		t.Errorf("expected synthesis to reference the same proposal ID")
	}
}

func containsSub(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}
