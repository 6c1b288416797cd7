package governance

import "time"

// Evidence backs a proposal with the observations that motivated it.
type Evidence struct {
	MissedSignals     int      `json:"missed_signals"`
	ScanStarvation    []string `json:"scan_starvation"`
	PerformanceNotes  string   `json:"performance_notes"`
	DeadSymbols       []string `json:"dead_symbols"`
}

// Proposal is the Proposer's output: a single, non-binding change
// suggestion for one environment. Immutable once written.
type Proposal struct {
	ProposalID   string       `json:"proposal_id"`
	Environment  string       `json:"environment"` // "paper" or "live"
	ProposalType ProposalType `json:"proposal_type"`
	Symbols      []string     `json:"symbols"`
	Rationale    string       `json:"rationale"`
	Evidence     Evidence     `json:"evidence"`
	RiskNotes    string       `json:"risk_notes"`
	Confidence   float64      `json:"confidence"`
	NonBinding   bool         `json:"non_binding"`
	CreatedAt    time.Time    `json:"created_at"`
}

// CriticRecommendation is the Critic's overall stance on a proposal.
type CriticRecommendation string

const (
	RecommendProceed CriticRecommendation = "PROCEED"
	RecommendCaution CriticRecommendation = "CAUTION"
	RecommendReject  CriticRecommendation = "REJECT"
)

// Criticism is the Critic's adversarial pass over a proposal.
type Criticism struct {
	ProposalID      string                `json:"proposal_id"`
	Criticisms      []string              `json:"criticisms"`
	CounterEvidence string                `json:"counter_evidence"`
	Recommendation  CriticRecommendation  `json:"recommendation"`
}

// ConstitutionalViolation is one rule breach found by the Auditor.
type ConstitutionalViolation struct {
	RuleName  string   `json:"rule_name"`
	Violation string   `json:"violation"`
	Severity  Severity `json:"severity"`
}

// Audit is the Auditor's pure constitutional-compliance pass: zero market
// judgment, format and limits only.
type Audit struct {
	ProposalID          string                    `json:"proposal_id"`
	ConstitutionPassed  bool                      `json:"constitution_passed"`
	Violations          []ConstitutionalViolation `json:"violations"`
}

// FinalRecommendation is the Synthesizer's ultimate disposition for a
// proposal.
type FinalRecommendation string

const (
	RecommendationApprove FinalRecommendation = "APPROVE"
	RecommendationReject  FinalRecommendation = "REJECT"
	RecommendationDefer   FinalRecommendation = "DEFER"
)

// Synthesis combines the proposal, critique, and audit into a
// human-readable decision packet. It never applies anything by itself.
type Synthesis struct {
	ProposalID           string               `json:"proposal_id"`
	Summary              string               `json:"summary"`
	KeyRisks             []string             `json:"key_risks"`
	FinalRecommendation  FinalRecommendation  `json:"final_recommendation"`
	Confidence           float64              `json:"confidence"`
}

// Approval is the sole artifact that makes a proposal actionable. It is
// written exclusively by an external human-operator flow; the pipeline
// itself never produces one.
type Approval struct {
	ProposalID string    `json:"proposal_id"`
	ApprovedAt time.Time `json:"approved_at"`
	ApprovedBy string    `json:"approved_by"`
	Notes      string    `json:"notes"`
}

// Analysis is the summarized input the Proposer reasons over: per-environment
// trading performance and scan coverage.
type Analysis struct {
	Environments map[string]EnvironmentAnalysis
}

// EnvironmentAnalysis is one environment's slice of Analysis.
type EnvironmentAnalysis struct {
	Performance  PerformanceSummary
	ScanAnalysis ScanAnalysis
}

// PerformanceSummary is a rollup of recent trading performance.
type PerformanceSummary struct {
	TotalTrades   int
	TotalPnL      float64
	TradesSkipped int
}

// ScanAnalysis summarizes which symbols the scanner starves of attention.
type ScanAnalysis struct {
	ScanStarvation []string
}
