// Package governance implements the constitutional multi-agent pipeline:
// Proposer drafts a non-binding change proposal, Critic takes an adversarial
// pass, Auditor enforces hard-coded constitutional rules with zero market
// judgment, and Synthesizer combines all three into a human-approvable
// recommendation. No agent output is ever auto-applied; an external
// approval.json artifact is the only thing that makes a proposal
// actionable.
package governance

import (
	"fmt"
	"regexp"
	"strings"
)

// ProposalType is one of the four proposal shapes the Proposer may emit.
type ProposalType string

const (
	ProposalAddSymbols       ProposalType = "ADD_SYMBOLS"
	ProposalRemoveSymbols    ProposalType = "REMOVE_SYMBOLS"
	ProposalAdjustRule       ProposalType = "ADJUST_RULE"
	ProposalAdjustThreshold  ProposalType = "ADJUST_THRESHOLD"
)

// AllowedProposalTypes is the constitution's allow-list.
var AllowedProposalTypes = []ProposalType{
	ProposalAddSymbols, ProposalRemoveSymbols, ProposalAdjustRule, ProposalAdjustThreshold,
}

// ForbiddenProposalTypes can never be emitted or approved; any appearance is
// a CRITICAL constitutional violation.
var ForbiddenProposalTypes = []string{
	"EXECUTE_TRADE", "MODIFY_POSITION", "BYPASS_RISK", "DISABLE_SAFETY", "OVERRIDE_RULE",
}

// forbiddenLanguagePatterns flags text that reads like an auto-execution
// directive rather than a proposal.
var forbiddenLanguagePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bexecute\b`),
	regexp.MustCompile(`\bauto[-]?apply\b`),
	regexp.MustCompile(`\bbypass\b`),
	regexp.MustCompile(`\boverride\b`),
	regexp.MustCompile(`\bforce\b`),
	regexp.MustCompile(`\bdisable\b`),
	regexp.MustCompile(`\bskip\b`),
	regexp.MustCompile(`\binject\b`),
}

var validSymbolPattern = regexp.MustCompile(`^[A-Z][A-Z0-9-]*$`)

const (
	MaxSymbolsAddedPerProposal   = 5
	MaxSymbolsRemovedPerProposal = 3
	MaxProposalSize              = 10
)

// Severity is the constitutional weight of a violation.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityMajor    Severity = "MAJOR"
	SeverityMinor    Severity = "MINOR"
)

func isForbiddenProposalType(t string) bool {
	for _, f := range ForbiddenProposalTypes {
		if f == t {
			return true
		}
	}
	return false
}

func isAllowedProposalType(t string) bool {
	for _, a := range AllowedProposalTypes {
		if string(a) == t {
			return true
		}
	}
	return false
}

func validateProposalType(proposalType string) (bool, string) {
	if isForbiddenProposalType(proposalType) {
		return false, fmt.Sprintf("Proposal type '%s' is forbidden by constitution", proposalType)
	}
	if !isAllowedProposalType(proposalType) {
		allowed := make([]string, len(AllowedProposalTypes))
		for i, a := range AllowedProposalTypes {
			allowed[i] = string(a)
		}
		return false, fmt.Sprintf("Proposal type '%s' not allowed. Allowed: %s", proposalType, strings.Join(allowed, ", "))
	}
	return true, ""
}

func validateNonBinding(nonBinding bool) (bool, string) {
	if !nonBinding {
		return false, "Constitutional violation: non_binding must be True (proposals are never auto-applied)"
	}
	return true, ""
}

func validateSymbols(symbols []string) (bool, string) {
	if len(symbols) == 0 {
		return false, "symbols list cannot be empty"
	}
	if len(symbols) > MaxProposalSize {
		return false, fmt.Sprintf("symbols list too large: %d > %d", len(symbols), MaxProposalSize)
	}
	for _, symbol := range symbols {
		if !validSymbolPattern.MatchString(symbol) {
			return false, fmt.Sprintf("Invalid symbol format: '%s' (must be uppercase, e.g., 'BTC', 'ETH-USD')", symbol)
		}
	}
	return true, ""
}

func validateSymbolCountByType(proposalType string, symbols []string) (bool, string) {
	switch proposalType {
	case string(ProposalAddSymbols):
		if len(symbols) > MaxSymbolsAddedPerProposal {
			return false, fmt.Sprintf("Too many symbols to add: %d > %d. Make multiple proposals.", len(symbols), MaxSymbolsAddedPerProposal)
		}
	case string(ProposalRemoveSymbols):
		if len(symbols) > MaxSymbolsRemovedPerProposal {
			return false, fmt.Sprintf("Too many symbols to remove: %d > %d. Make multiple proposals.", len(symbols), MaxSymbolsRemovedPerProposal)
		}
	}
	return true, ""
}

func validateNoForbiddenLanguage(text string) (bool, string) {
	lower := strings.ToLower(text)
	for _, pattern := range forbiddenLanguagePatterns {
		if match := pattern.FindString(lower); match != "" {
			return false, fmt.Sprintf("Proposal contains forbidden language: '%s' (proposals must not include execution/automation directives)", match)
		}
	}
	return true, ""
}

// ValidateProposal runs every constitutional check and returns all
// violations found, not just the first.
func ValidateProposal(p Proposal) (bool, []string) {
	var violations []string

	if valid, msg := validateProposalType(string(p.ProposalType)); !valid {
		violations = append(violations, msg)
	}
	if valid, msg := validateNonBinding(p.NonBinding); !valid {
		violations = append(violations, msg)
	}
	if valid, msg := validateSymbols(p.Symbols); !valid {
		violations = append(violations, msg)
	} else if valid2, msg2 := validateSymbolCountByType(string(p.ProposalType), p.Symbols); !valid2 {
		violations = append(violations, msg2)
	}

	for _, text := range []string{p.Rationale, p.RiskNotes} {
		if text == "" {
			continue
		}
		if valid, msg := validateNoForbiddenLanguage(text); !valid {
			violations = append(violations, msg)
		}
	}

	return len(violations) == 0, violations
}
