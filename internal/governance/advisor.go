package governance

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"github.com/riftlabs/controlplane/internal/eventlog"
)

// Advisor is an optional external call (an LLM-backed advisor, a research
// API) that an agent stage may consult for extra evidence before drafting
// its output. It is never required: every agent function works with
// no advisor configured, and a failing advisor degrades to the proposal's
// own evidence rather than blocking the pipeline.
type Advisor interface {
	Advise(ctx context.Context, agent, prompt string) (string, error)
}

// AdvisorClient wraps an Advisor in a circuit breaker so a flapping external
// service can't stall governance runs, which happen far less often than the
// reconciliation hot path and tolerate the breaker's slower generation-counter
// recovery model.
type AdvisorClient struct {
	advisor Advisor
	breaker *gobreaker.CircuitBreaker
	events  *eventlog.Sink
	scope   string
}

// NewAdvisorClient wraps advisor with a circuit breaker. events may be nil,
// in which case calls are not logged.
func NewAdvisorClient(advisor Advisor, scopeLabel string, events *eventlog.Sink) *AdvisorClient {
	return &AdvisorClient{
		advisor: advisor,
		scope:   scopeLabel,
		events:  events,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "governance-advisor",
			MaxRequests: 1,
			Interval:    0,
			Timeout:     60 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
	}
}

// Consult calls the advisor for proposalID under agent's name, logging
// latency and outcome. A breaker trip or advisor error returns ("", err);
// callers fall back to evidence already in hand rather than treating this
// as fatal.
func (c *AdvisorClient) Consult(ctx context.Context, agent, proposalID, prompt string) (string, error) {
	start := time.Now()
	result, err := c.breaker.Execute(func() (any, error) {
		return c.advisor.Advise(ctx, agent, prompt)
	})
	latency := time.Since(start)

	if c.events != nil {
		_ = c.events.Append(eventlog.AIAdvisorCallEvent{
			Envelope:   eventlog.NewEnvelope(),
			Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
			Scope:      c.scope,
			Agent:      agent,
			ProposalID: proposalID,
			LatencyMS:  latency.Milliseconds(),
			Success:    err == nil,
		})
	}

	if err != nil {
		return "", err
	}
	return result.(string), nil
}
