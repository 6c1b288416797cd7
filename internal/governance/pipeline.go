package governance

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/riftlabs/controlplane/internal/eventlog"
	"github.com/riftlabs/controlplane/internal/scope"
)

// Pipeline runs the four governance agents in sequence and persists every
// artifact. It never writes an Approval; that is produced exclusively by an
// external human-operator flow.
type Pipeline struct {
	Scope     scope.Scope
	Layout    scope.Layout
	Proposer  *Proposer
	Critic    *Critic
	Auditor   *Auditor
	Synth     *Synthesizer
	Events    *eventlog.Sink
}

// NewPipeline wires the four agents against a scope's layout. events may be
// nil, in which case stage transitions are not logged.
func NewPipeline(s scope.Scope, l scope.Layout, events *eventlog.Sink) *Pipeline {
	return &Pipeline{
		Scope:    s,
		Layout:   l,
		Proposer: NewProposer(),
		Critic:   NewCritic(),
		Auditor:  NewAuditor(),
		Synth:    NewSynthesizer(),
		Events:   events,
	}
}

// Result bundles every artifact the pipeline produced for one proposal run.
type Result struct {
	Proposal  Proposal
	Critique  Criticism
	Audit     Audit
	Synthesis Synthesis
}

// Run drafts and evaluates one proposal for environment, persisting every
// stage's artifact under the proposal's directory and logging each
// transition to the governance events log.
func (p *Pipeline) Run(environment string, analysis Analysis, now time.Time) (Result, error) {
	proposal := p.Proposer.GenerateProposal(environment, analysis, now)
	p.logStage(proposal.ProposalID, "proposed", "ok", fmt.Sprintf("type=%s symbols=%v", proposal.ProposalType, proposal.Symbols))
	if err := p.persist(proposal.ProposalID, "proposal.json", proposal); err != nil {
		return Result{}, err
	}

	critique := p.Critic.CritiqueProposal(proposal)
	p.logStage(proposal.ProposalID, "critiqued", "ok", fmt.Sprintf("recommendation=%s criticisms=%d", critique.Recommendation, len(critique.Criticisms)))
	if err := p.persist(proposal.ProposalID, "critique.json", critique); err != nil {
		return Result{}, err
	}

	audit := p.Auditor.AuditProposal(proposal)
	status := "pass"
	if !audit.ConstitutionPassed {
		status = "fail"
	}
	p.logStage(proposal.ProposalID, "audited", status, fmt.Sprintf("violations=%d", len(audit.Violations)))
	if err := p.persist(proposal.ProposalID, "audit.json", audit); err != nil {
		return Result{}, err
	}

	synthesis := p.Synth.Synthesize(proposal, critique, audit)
	p.logStage(proposal.ProposalID, "synthesized", string(synthesis.FinalRecommendation), synthesis.Summary)
	if err := p.persist(proposal.ProposalID, "synthesis.json", synthesis); err != nil {
		return Result{}, err
	}

	return Result{Proposal: proposal, Critique: critique, Audit: audit, Synthesis: synthesis}, nil
}

func (p *Pipeline) persist(proposalID, filename string, v any) error {
	path := filepath.Join(p.Layout.ProposalDir(proposalID), filename)
	return scope.WriteJSONAtomic(path, v)
}

func (p *Pipeline) logStage(proposalID, stage, status, detail string) {
	if p.Events == nil {
		return
	}
	_ = p.Events.Append(eventlog.GovernanceEvent{
		Envelope:   eventlog.NewEnvelope(),
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		Scope:      p.Scope.String(),
		ProposalID: proposalID,
		Stage:      stage,
		Status:     status,
		Detail:     detail,
	})
}
