package scheduler

import (
	"os"
	"time"

	"github.com/riftlabs/controlplane/internal/scope"
)

// DefaultMaxAgeSeconds is the default staleness threshold for a task's
// last successful run.
const DefaultMaxAgeSeconds = 3600

// lastRunFile is the on-disk shape of the last-run registry: one entry per
// task name, keyed by Task.Name.
type lastRunFile struct {
	Runs map[string]lastRunEntry `json:"runs"`
}

type lastRunEntry struct {
	LastSuccessAt time.Time `json:"last_success_at"`
	LastStatus    string    `json:"last_status"`
	LastError     string    `json:"last_error,omitempty"`
}

// Registry persists the last-run timestamp per task for a scope. A
// cancelled or failed run never advances its entry.
type Registry struct {
	path string
}

// NewRegistry opens the last-run registry at the scope's layout path.
func NewRegistry(l scope.Layout) *Registry {
	return &Registry{path: l.SchedulerLastRun()}
}

func (r *Registry) load() (lastRunFile, error) {
	var f lastRunFile
	f.Runs = map[string]lastRunEntry{}
	err := scope.ReadJSON(r.path, &f)
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return f, err
	}
	if f.Runs == nil {
		f.Runs = map[string]lastRunEntry{}
	}
	return f, nil
}

// RecordSuccess marks task as having completed successfully at when.
func (r *Registry) RecordSuccess(task string, when time.Time) error {
	f, err := r.load()
	if err != nil {
		return err
	}
	f.Runs[task] = lastRunEntry{LastSuccessAt: when, LastStatus: "success"}
	return scope.WriteJSONAtomic(r.path, f)
}

// RecordFailure records a failed run without advancing LastSuccessAt.
func (r *Registry) RecordFailure(task string, errMsg string) error {
	f, err := r.load()
	if err != nil {
		return err
	}
	entry := f.Runs[task]
	entry.LastStatus = "failure"
	entry.LastError = errMsg
	f.Runs[task] = entry
	return scope.WriteJSONAtomic(r.path, f)
}

// LastSuccess returns the last successful run time for task, and whether
// one has ever been recorded.
func (r *Registry) LastSuccess(task string) (time.Time, bool, error) {
	f, err := r.load()
	if err != nil {
		return time.Time{}, false, err
	}
	entry, ok := f.Runs[task]
	if !ok || entry.LastSuccessAt.IsZero() {
		return time.Time{}, false, nil
	}
	return entry.LastSuccessAt, true, nil
}

// IsStale reports whether task's last successful run is older than maxAge,
// or has never run.
func (r *Registry) IsStale(task string, maxAge time.Duration, now time.Time) (bool, error) {
	last, ok, err := r.LastSuccess(task)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	return now.Sub(last) > maxAge, nil
}
