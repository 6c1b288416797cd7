package scheduler

import (
	"context"
	"time"
)

// Task is one periodic job the scheduler runs for a single scope. Tasks
// never share mutable state directly — they read and write only their own
// slice of the persisted scope directory.
type Task struct {
	// Name identifies the task within a scope's last-run registry, e.g.
	// "reconcile", "regime_validate", "universe_governance",
	// "constitutional_governance".
	Name string
	// Cadence is how often the task is attempted.
	Cadence time.Duration
	// Timeout bounds a single run; an overrun run is cancelled and the
	// next tick is skipped rather than allowed to overlap.
	Timeout time.Duration
	// MaxAge is the staleness threshold for this task's last successful
	// run. Zero means DefaultMaxAgeSeconds.
	MaxAge time.Duration
	// Run executes one iteration of the task. It must return promptly
	// when ctx is cancelled and must not partially advance any cursor it
	// owns.
	Run func(ctx context.Context) error
}

func (t Task) maxAge() time.Duration {
	if t.MaxAge <= 0 {
		return DefaultMaxAgeSeconds * time.Second
	}
	return t.MaxAge
}
