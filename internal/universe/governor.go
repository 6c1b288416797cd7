package universe

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/riftlabs/controlplane/internal/eventlog"
	"github.com/riftlabs/controlplane/internal/scope"
)

// cooldownFile is the on-disk shape of universe/cooldowns.json: symbol to
// removal timestamp (RFC3339Nano, UTC).
type cooldownFile map[string]string

// activeUniverseFile is the on-disk shape of universe/active_universe.json.
type activeUniverseFile struct {
	Symbols []string `json:"symbols"`
}

// Governor orchestrates one full governance cycle: score every candidate,
// rank, apply guardrails for removals then additions, validate the result,
// and persist.
type Governor struct {
	Scope      scope.Scope
	Layout     scope.Layout
	Scorer     *Scorer
	Guardrails *Guardrails
	Decisions  *eventlog.Sink
	Scoring    *eventlog.Sink
}

// NewGovernor wires a Governor for scope s at layout l.
func NewGovernor(s scope.Scope, l scope.Layout, scorer *Scorer, guardrails *Guardrails, decisions, scoring *eventlog.Sink) *Governor {
	return &Governor{Scope: s, Layout: l, Scorer: scorer, Guardrails: guardrails, Decisions: decisions, Scoring: scoring}
}

// CycleInput carries everything one governance cycle needs.
type CycleInput struct {
	CandidatePool    []string
	CurrentUniverse  []string
	BarsBySymbol     map[string][]Bar
	TradesBySymbol   map[string][]TradeRecord
	RegimeLabel      string
	Verdict          *Verdict
	OpenSymbols      map[string]bool
	DryRun           bool
	Now              time.Time
}

// RunCycle executes one full governance cycle and persists the result. When
// input.DryRun is true, the active universe and cooldown registry are left
// untouched; only the decision record and score history are persisted.
func (g *Governor) RunCycle(input CycleInput) (Decision, error) {
	runID := fmt.Sprintf("gov_%s_%s", input.Now.UTC().Format("20060102_150405"), uuid.New().String()[:8])

	allCandidates := unionSorted(input.CandidatePool, input.CurrentUniverse)
	scored := g.Scorer.ScoreUniverse(allCandidates, input.BarsBySymbol, input.TradesBySymbol, input.RegimeLabel, input.Verdict, input.Now)

	for _, sc := range scored {
		g.appendScore(input.Now, sc)
	}

	currentSet := toSet(input.CurrentUniverse)

	var potentialAdds []ScoredCandidate
	var currentScored []ScoredCandidate
	for _, sc := range scored {
		if currentSet[sc.Symbol] {
			currentScored = append(currentScored, sc)
		} else {
			potentialAdds = append(potentialAdds, sc)
		}
	}
	sort.SliceStable(currentScored, func(i, j int) bool {
		return currentScored[i].TotalScore < currentScored[j].TotalScore
	})

	cooldowns, err := g.loadCooldowns()
	if err != nil {
		return Decision{}, fmt.Errorf("load cooldowns: %w", err)
	}

	var checks []GuardrailCheck
	var removals []string
	removalsCount := 0

	for _, candidate := range currentScored {
		if candidate.TotalScore > g.Guardrails.Config.MaxScoreToRemove {
			break // sorted ascending; nothing further qualifies
		}

		allowed, reason := g.Guardrails.CheckRemoval(candidate.Symbol, candidate.TotalScore, len(input.CurrentUniverse)-removalsCount, removalsCount, input.OpenSymbols)
		checks = append(checks, GuardrailCheck{CheckType: "removal", Symbol: candidate.Symbol, Score: candidate.TotalScore, Allowed: allowed, Reason: reason})

		if allowed {
			removals = append(removals, candidate.Symbol)
			removalsCount++
		}
	}

	var additions []string
	additionsCount := 0
	effectiveSize := len(input.CurrentUniverse) - removalsCount

	for _, candidate := range potentialAdds {
		allowed, reason := g.Guardrails.CheckAddition(candidate.Symbol, candidate.TotalScore, effectiveSize+additionsCount, additionsCount, cooldowns, input.Now)
		checks = append(checks, GuardrailCheck{CheckType: "addition", Symbol: candidate.Symbol, Score: candidate.TotalScore, Allowed: allowed, Reason: reason})

		if allowed {
			additions = append(additions, candidate.Symbol)
			additionsCount++
		}
	}

	retained := subtract(input.CurrentUniverse, removals)
	finalUniverse := append(append([]string{}, retained...), additions...)

	discarded := false
	violations := g.Guardrails.ValidateFinalUniverse(finalUniverse, input.CurrentUniverse)
	if len(violations) > 0 {
		for _, v := range violations {
			log.Warn().Str("check", v.CheckType).Str("symbol", v.Symbol).Str("reason", v.Reason).Msg("universe guardrail violation, discarding change set")
		}
		discarded = true
		additions = nil
		removals = nil
		retained = append([]string{}, input.CurrentUniverse...)
		finalUniverse = append([]string{}, input.CurrentUniverse...)
	}

	decision := Decision{
		RunID:           runID,
		TimestampUTC:    input.Now.UTC(),
		Scope:           g.Scope.String(),
		RegimeLabel:     input.RegimeLabel,
		Additions:       additions,
		Removals:        removals,
		Retained:        retained,
		FinalUniverse:   finalUniverse,
		GuardrailChecks: checks,
		DryRun:          input.DryRun,
		Discarded:       discarded,
		Reasoning:       buildReasoning(input.RegimeLabel, len(scored), additions, removals, retained, input.DryRun, discarded),
	}

	if err := g.appendDecision(decision); err != nil {
		return decision, fmt.Errorf("append decision: %w", err)
	}

	if !input.DryRun && !discarded {
		if err := scope.WriteJSONAtomic(g.Layout.ActiveUniverse(), activeUniverseFile{Symbols: finalUniverse}); err != nil {
			return decision, fmt.Errorf("write active universe: %w", err)
		}
		if len(removals) > 0 {
			nowStr := input.Now.UTC().Format(time.RFC3339Nano)
			for _, symbol := range removals {
				cooldowns[symbol] = nowStr
			}
			if err := scope.WriteJSONAtomic(g.Layout.Cooldowns(), cooldowns); err != nil {
				return decision, fmt.Errorf("save cooldowns: %w", err)
			}
		}
	}

	return decision, nil
}

func (g *Governor) loadCooldowns() (cooldownFile, error) {
	var c cooldownFile
	err := scope.ReadJSON(g.Layout.Cooldowns(), &c)
	if os.IsNotExist(err) {
		return cooldownFile{}, nil
	}
	if err != nil {
		return nil, err
	}
	if c == nil {
		c = cooldownFile{}
	}
	return c, nil
}

func (g *Governor) appendDecision(d Decision) error {
	if g.Decisions == nil {
		return nil
	}
	return g.Decisions.Append(eventlog.UniverseDecisionEvent{
		Envelope:  eventlog.NewEnvelope(),
		Timestamp: d.TimestampUTC.Format(time.RFC3339Nano),
		Scope:     d.Scope,
		Added:     d.Additions,
		Removed:   d.Removals,
		Discarded: d.Discarded,
		Reason:    d.Reasoning,
	})
}

func (g *Governor) appendScore(now time.Time, sc ScoredCandidate) {
	if g.Scoring == nil {
		return
	}
	_ = g.Scoring.Append(eventlog.ScoringHistoryEvent{
		Envelope:   eventlog.NewEnvelope(),
		Timestamp:  now.UTC().Format(time.RFC3339Nano),
		Symbol:     sc.Symbol,
		Score:      sc.TotalScore,
		Perf:       sc.WeightedScores.Performance,
		Regime:     sc.WeightedScores.Regime,
		Liquidity:  sc.WeightedScores.Liquidity,
		Volatility: sc.WeightedScores.Volatility,
		Sentiment:  sc.WeightedScores.Sentiment,
	})
}

func buildReasoning(regimeLabel string, scoredCount int, additions, removals, retained []string, dryRun, discarded bool) string {
	if discarded {
		return "guardrail violation on final universe; change set discarded, previous universe retained"
	}
	reasoning := fmt.Sprintf("Regime: %s. Scored %d symbols.", regimeLabel, scoredCount)
	if len(additions) > 0 {
		reasoning += fmt.Sprintf(" Adding %d.", len(additions))
	} else {
		reasoning += " No additions."
	}
	if len(removals) > 0 {
		reasoning += fmt.Sprintf(" Removing %d.", len(removals))
	} else {
		reasoning += " No removals."
	}
	reasoning += fmt.Sprintf(" Retaining %d. Final universe: %d symbols.", len(retained), len(retained)+len(additions))
	if dryRun {
		reasoning += " [DRY RUN - no changes applied]"
	}
	return reasoning
}

func unionSorted(a, b []string) []string {
	set := map[string]bool{}
	for _, s := range a {
		set[s] = true
	}
	for _, s := range b {
		set[s] = true
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func subtract(from []string, remove []string) []string {
	removeSet := toSet(remove)
	out := make([]string, 0, len(from))
	for _, s := range from {
		if !removeSet[s] {
			out = append(out, s)
		}
	}
	return out
}
