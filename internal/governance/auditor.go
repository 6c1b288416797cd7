package governance

import "strings"

// Auditor performs pure constitutional-compliance checking: format, limits,
// and forbidden-language scanning. It does zero market or strategy
// judgment — that is the Critic's role upstream of it.
type Auditor struct{}

// NewAuditor returns an Auditor.
func NewAuditor() *Auditor { return &Auditor{} }

// AuditProposal runs ValidateProposal and maps any violations to a rule
// name and severity.
func (a *Auditor) AuditProposal(p Proposal) Audit {
	passed, messages := ValidateProposal(p)

	violations := make([]ConstitutionalViolation, 0, len(messages))
	for _, msg := range messages {
		violations = append(violations, ConstitutionalViolation{
			RuleName:  ruleNameFor(msg),
			Violation: msg,
			Severity:  severityFor(msg),
		})
	}

	return Audit{
		ProposalID:         p.ProposalID,
		ConstitutionPassed: passed,
		Violations:         violations,
	}
}

func ruleNameFor(msg string) string {
	switch {
	case strings.Contains(msg, "forbidden by constitution"):
		return "forbidden_proposal_type"
	case strings.Contains(msg, "not allowed"):
		return "proposal_type_allowlist"
	case strings.Contains(msg, "non_binding"):
		return "non_binding_required"
	case strings.Contains(msg, "symbols list cannot be empty"):
		return "symbols_required"
	case strings.Contains(msg, "symbols list too large"):
		return "max_proposal_size"
	case strings.Contains(msg, "Invalid symbol format"):
		return "symbol_format"
	case strings.Contains(msg, "Too many symbols to add"):
		return "max_symbols_added"
	case strings.Contains(msg, "Too many symbols to remove"):
		return "max_symbols_removed"
	case strings.Contains(msg, "forbidden language"):
		return "forbidden_language"
	default:
		return "unknown_rule"
	}
}

func severityFor(msg string) Severity {
	switch {
	case strings.Contains(msg, "forbidden by constitution"):
		return SeverityCritical
	case strings.Contains(msg, "non_binding"):
		return SeverityCritical
	case strings.Contains(msg, "forbidden language"):
		return SeverityCritical
	case strings.Contains(msg, "not allowed"):
		return SeverityMajor
	case strings.Contains(msg, "Too many symbols"):
		return SeverityMajor
	case strings.Contains(msg, "symbols list too large"):
		return SeverityMajor
	default:
		return SeverityMinor
	}
}
