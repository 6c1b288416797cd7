package eventlog

// DecisionEvent records a single execution-gate or scaling-policy decision
// for the append-only decisions.jsonl sink.
type DecisionEvent struct {
	Envelope
	Timestamp string         `json:"timestamp"`
	Scope     string         `json:"scope"`
	Symbol    string         `json:"symbol"`
	Kind      string         `json:"kind"` // "entry", "exit", "scale"
	Approved  bool           `json:"approved"`
	Reason    string         `json:"reason,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
}

// ErrorEvent records an operational error for the errors.jsonl sink.
type ErrorEvent struct {
	Envelope
	Timestamp string `json:"timestamp"`
	Scope     string `json:"scope"`
	Component string `json:"component"`
	Message   string `json:"message"`
}

// DailySummaryEvent records one end-of-day rollup.
type DailySummaryEvent struct {
	Envelope
	Timestamp      string  `json:"timestamp"`
	Scope          string  `json:"scope"`
	OpenPositions  int     `json:"open_positions"`
	RealizedPnL    float64 `json:"realized_pnl"`
	UnrealizedPnL  float64 `json:"unrealized_pnl"`
	EquityEstimate float64 `json:"equity_estimate"`
}

// AIAdvisorCallEvent records one call made to an LLM-backed advisor during
// the constitutional governance pipeline.
type AIAdvisorCallEvent struct {
	Envelope
	Timestamp    string `json:"timestamp"`
	Scope        string `json:"scope"`
	Agent        string `json:"agent"` // proposer, critic, auditor, synthesizer
	ProposalID   string `json:"proposal_id"`
	PromptTokens int    `json:"prompt_tokens,omitempty"`
	LatencyMS    int64  `json:"latency_ms"`
	Success      bool   `json:"success"`
}

// GovernanceEvent records a single transition in the constitutional
// governance pipeline (proposal drafted, critiqued, audited, synthesized,
// approved, rejected).
type GovernanceEvent struct {
	Envelope
	Timestamp  string `json:"timestamp"`
	Scope      string `json:"scope"`
	ProposalID string `json:"proposal_id"`
	Stage      string `json:"stage"`
	Status     string `json:"status"`
	Detail     string `json:"detail,omitempty"`
}

// UniverseDecisionEvent records one universe-membership change decision.
type UniverseDecisionEvent struct {
	Envelope
	Timestamp string   `json:"timestamp"`
	Scope     string   `json:"scope"`
	Added     []string `json:"added,omitempty"`
	Removed   []string `json:"removed,omitempty"`
	Discarded bool     `json:"discarded"`
	Reason    string   `json:"reason,omitempty"`
}

// ScoringHistoryEvent records one symbol's governance score at scoring time.
type ScoringHistoryEvent struct {
	Envelope
	Timestamp  string  `json:"timestamp"`
	Scope      string  `json:"scope"`
	Symbol     string  `json:"symbol"`
	Score      float64 `json:"score"`
	Perf       float64 `json:"performance_component"`
	Regime     float64 `json:"regime_component"`
	Liquidity  float64 `json:"liquidity_component"`
	Volatility float64 `json:"volatility_component"`
	Sentiment  float64 `json:"sentiment_component"`
}

// RegimeRunEvent records one regime-validation run.
type RegimeRunEvent struct {
	Envelope
	Timestamp string  `json:"timestamp"`
	Scope     string  `json:"scope"`
	Internal  float64 `json:"internal_score"`
	External  float64 `json:"external_score"`
	Drift     float64 `json:"drift_score"`
	CrossAsset float64 `json:"cross_asset_score"`
	Verdict   string  `json:"verdict"`
}
