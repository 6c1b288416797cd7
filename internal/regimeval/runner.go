package regimeval

import (
	"os"
	"time"

	"github.com/riftlabs/controlplane/internal/eventlog"
	"github.com/riftlabs/controlplane/internal/scope"
)

// RunEvent is one regime-validation cycle's persisted outcome, appended to
// runs.jsonl and mirrored as the latest snapshot in run_state.json.
type RunEvent struct {
	eventlog.Envelope
	Timestamp string           `json:"timestamp"`
	Scope     string           `json:"scope"`
	RunID     string           `json:"run_id"`
	Result    ValidationResult `json:"result"`
}

// Runner wires Validate to its persisted state: every call appends to the
// append-only run log (when Runs is non-nil) and overwrites the latest-state
// snapshot that /regime/latest and staleness checks read from.
type Runner struct {
	Scope  scope.Scope
	Layout scope.Layout
	Runs   *eventlog.Sink
}

// NewRunner returns a Runner bound to s/l, appending completed runs to runs.
func NewRunner(s scope.Scope, l scope.Layout, runs *eventlog.Sink) *Runner {
	return &Runner{Scope: s, Layout: l, Runs: runs}
}

// Run executes one validation cycle, persists it, and returns the result.
func (r *Runner) Run(runID string, ctx ValidationContext, now time.Time) (ValidationResult, error) {
	result := Validate(ctx)

	event := RunEvent{
		Envelope:  eventlog.NewEnvelope(),
		Timestamp: now.UTC().Format(time.RFC3339),
		Scope:     r.Scope.String(),
		RunID:     runID,
		Result:    result,
	}

	if r.Runs != nil {
		if err := r.Runs.Append(event); err != nil {
			return result, err
		}
	}
	if err := scope.WriteJSONAtomic(r.Layout.RegimeRunState(), event); err != nil {
		return result, err
	}
	return result, nil
}

// LatestRunState reads the most recently persisted RunEvent, or ok=false if
// no validation cycle has ever completed for this scope.
func LatestRunState(l scope.Layout) (RunEvent, bool, error) {
	var event RunEvent
	if err := scope.ReadJSON(l.RegimeRunState(), &event); err != nil {
		if os.IsNotExist(err) {
			return RunEvent{}, false, nil
		}
		return RunEvent{}, false, err
	}
	return event, true, nil
}
