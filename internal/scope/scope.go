// Package scope namespaces all persistent state by (env, broker, market, region)
// and provides the single atomic-write primitive every other component routes
// through when it overwrites a file on disk.
package scope

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Env is the trading environment a scope runs under.
type Env string

const (
	EnvPaper Env = "paper"
	EnvLive  Env = "live"
)

// Scope is the 4-tuple that roots all persistent state. It is created once at
// process start from configuration and is immutable for the process lifetime.
type Scope struct {
	Env    Env
	Broker string
	Market string
	Region string
}

// Slug returns the directory-safe identifier for this scope, used as the
// single path component under the persistence root.
func (s Scope) Slug() string {
	parts := []string{string(s.Env), s.Broker, s.Market, s.Region}
	for i, p := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(p))
	}
	return strings.Join(parts, "-")
}

func (s Scope) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", s.Env, s.Broker, s.Market, s.Region)
}

// Layout resolves every persisted file and directory path for a scope rooted
// at root, matching the file layout in spec §6.
type Layout struct {
	Root  string
	Scope Scope
}

// NewLayout returns a Layout rooted at root for the given scope.
func NewLayout(root string, s Scope) Layout {
	return Layout{Root: root, Scope: s}
}

func (l Layout) base() string {
	return filepath.Join(l.Root, l.Scope.Slug())
}

func (l Layout) OpenPositions() string        { return filepath.Join(l.base(), "state", "open_positions.json") }
func (l Layout) ReconciliationCursor() string  { return filepath.Join(l.base(), "state", "reconciliation_cursor.json") }
func (l Layout) BrokerState() string           { return filepath.Join(l.base(), "state", "broker_state.json") }
func (l Layout) SchedulerLastRun() string      { return filepath.Join(l.base(), "state", "scheduler_last_run.json") }
func (l Layout) LegacyLedgerPositions() string { return filepath.Join(l.base(), "ledger", "open_positions.json") }
func (l Layout) DailySummaryLog() string       { return filepath.Join(l.base(), "logs", "daily_summary.jsonl") }
func (l Layout) ErrorsLog() string             { return filepath.Join(l.base(), "logs", "errors.jsonl") }
func (l Layout) AIAdvisorCallsLog() string     { return filepath.Join(l.base(), "logs", "ai_advisor_calls.jsonl") }
func (l Layout) DecisionsLog() string          { return filepath.Join(l.base(), "logs", "decisions.jsonl") }
func (l Layout) LatestSnapshot() string {
	return filepath.Join(l.base(), "observability", "latest_snapshot.json")
}
func (l Layout) ProposalDir(proposalID string) string {
	return filepath.Join(l.base(), "governance", "proposals", proposalID)
}
func (l Layout) GovernanceEventsLog() string {
	return filepath.Join(l.base(), "governance", "logs", "governance_events.jsonl")
}
func (l Layout) ActiveUniverse() string  { return filepath.Join(l.base(), "universe", "active_universe.json") }
func (l Layout) Cooldowns() string       { return filepath.Join(l.base(), "universe", "cooldowns.json") }
func (l Layout) UniverseDecisionsLog() string {
	return filepath.Join(l.base(), "universe", "decisions.jsonl")
}
func (l Layout) ScoringHistoryLog() string {
	return filepath.Join(l.base(), "universe", "scoring_history.jsonl")
}
func (l Layout) RegimeRunsLog() string  { return filepath.Join(l.base(), "regime", "runs.jsonl") }
func (l Layout) RegimeRunState() string { return filepath.Join(l.base(), "regime", "run_state.json") }

// RegimeValidationInput, UniverseCycleInput, and GovernanceAnalysisInput
// point at operator-maintained input files for the scheduled tasks that
// consume external market analytics this module does not itself compute.
// A missing input file means that cycle is skipped, not an error.
func (l Layout) RegimeValidationInput() string {
	return filepath.Join(l.base(), "input", "regime_validation_context.json")
}
func (l Layout) UniverseCycleInput() string {
	return filepath.Join(l.base(), "input", "universe_cycle_input.json")
}
func (l Layout) GovernanceAnalysisInput() string {
	return filepath.Join(l.base(), "input", "governance_analysis_input.json")
}
