package universe

import (
	"fmt"
	"time"
)

// Guardrails enforces the constitutional constraints on universe
// membership changes: per-cycle caps, size bounds, score thresholds, open
// position protection, and the removal cooldown.
type Guardrails struct {
	Config Config
}

// NewGuardrails returns a Guardrails enforcing cfg.
func NewGuardrails(cfg Config) *Guardrails {
	return &Guardrails{Config: cfg}
}

// CheckAddition reports whether symbol may be added given the current
// cycle's running counters. cooldownRegistry maps symbol to its last
// removal time as an RFC3339 string; an unparsable entry is passed
// through rather than blocking the addition, matching the
// tolerant-by-design behavior of the cooldown registry.
func (g *Guardrails) CheckAddition(symbol string, score float64, currentSize, additionsThisCycle int, cooldownRegistry map[string]string, now time.Time) (bool, string) {
	if additionsThisCycle >= g.Config.MaxAdditionsPerCycle {
		return false, fmt.Sprintf("max additions per cycle reached (%d)", g.Config.MaxAdditionsPerCycle)
	}
	if currentSize >= g.Config.MaxUniverseSize {
		return false, fmt.Sprintf("universe at max size (%d)", g.Config.MaxUniverseSize)
	}
	if score < g.Config.MinScoreToAdd {
		return false, fmt.Sprintf("score %.1f below minimum %.1f", score, g.Config.MinScoreToAdd)
	}

	if removalDateStr, ok := cooldownRegistry[symbol]; ok {
		removalDate, err := parseCooldownDate(removalDateStr)
		if err != nil {
			// Tolerant by design: an unparsable stored date must never
			// block an otherwise-valid addition.
			return true, "passed all checks"
		}
		cooldownEnd := removalDate.Add(time.Duration(g.Config.CooldownDaysAfterRemove) * 24 * time.Hour)
		if now.Before(cooldownEnd) {
			daysLeft := int(cooldownEnd.Sub(now).Hours() / 24)
			return false, fmt.Sprintf("cooldown active (%dd remaining, removed %s)", daysLeft, removalDateStr)
		}
	}

	return true, "passed all checks"
}

func parseCooldownDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unparsable cooldown date %q", s)
}

// CheckRemoval reports whether symbol may be removed given the current
// cycle's running counters.
func (g *Guardrails) CheckRemoval(symbol string, score float64, currentSize, removalsThisCycle int, openSymbols map[string]bool) (bool, string) {
	if removalsThisCycle >= g.Config.MaxRemovalsPerCycle {
		return false, fmt.Sprintf("max removals per cycle reached (%d)", g.Config.MaxRemovalsPerCycle)
	}
	if currentSize <= g.Config.MinUniverseSize {
		return false, fmt.Sprintf("universe at min size (%d)", g.Config.MinUniverseSize)
	}
	if score > g.Config.MaxScoreToRemove {
		return false, fmt.Sprintf("score %.1f above removal threshold %.1f", score, g.Config.MaxScoreToRemove)
	}
	if openSymbols[symbol] {
		return false, "symbol has open position"
	}
	return true, "passed all checks"
}

// ValidateFinalUniverse re-checks the resulting universe against size and
// per-cycle-change bounds after additions/removals have been applied.
func (g *Guardrails) ValidateFinalUniverse(finalUniverse, previousUniverse []string) []GuardrailViolation {
	var violations []GuardrailViolation

	if len(finalUniverse) < g.Config.MinUniverseSize {
		violations = append(violations, GuardrailViolation{
			CheckType: "min_universe_size",
			Symbol:    "*",
			Reason:    fmt.Sprintf("universe size %d below minimum %d", len(finalUniverse), g.Config.MinUniverseSize),
		})
	}
	if len(finalUniverse) > g.Config.MaxUniverseSize {
		violations = append(violations, GuardrailViolation{
			CheckType: "max_universe_size",
			Symbol:    "*",
			Reason:    fmt.Sprintf("universe size %d above maximum %d", len(finalUniverse), g.Config.MaxUniverseSize),
		})
	}

	prevSet := toSet(previousUniverse)
	finalSet := toSet(finalUniverse)

	added := 0
	for s := range finalSet {
		if !prevSet[s] {
			added++
		}
	}
	removed := 0
	for s := range prevSet {
		if !finalSet[s] {
			removed++
		}
	}

	if added > g.Config.MaxAdditionsPerCycle {
		violations = append(violations, GuardrailViolation{
			CheckType: "max_additions",
			Symbol:    "*",
			Reason:    fmt.Sprintf("%d additions exceeds max %d", added, g.Config.MaxAdditionsPerCycle),
		})
	}
	if removed > g.Config.MaxRemovalsPerCycle {
		violations = append(violations, GuardrailViolation{
			CheckType: "max_removals",
			Symbol:    "*",
			Reason:    fmt.Sprintf("%d removals exceeds max %d", removed, g.Config.MaxRemovalsPerCycle),
		})
	}

	return violations
}

func toSet(symbols []string) map[string]bool {
	set := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		set[s] = true
	}
	return set
}
