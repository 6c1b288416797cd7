// Package scheduler runs one goroutine per (scope, task) pair, each with its
// own ticker and per-run timeout. This replaces a single shared run loop: a
// slow or wedged task never delays its siblings, and no two ticks of the
// same task ever run concurrently.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/riftlabs/controlplane/internal/scope"
)

// Scheduler owns a set of tasks for a single scope and runs each on its own
// goroutine until the process-wide context is cancelled.
type Scheduler struct {
	Scope    scope.Scope
	Registry *Registry
	tasks    []Task
}

// New builds a Scheduler for scope s, persisting last-run state through l.
func New(s scope.Scope, l scope.Layout, tasks []Task) *Scheduler {
	return &Scheduler{
		Scope:    s,
		Registry: NewRegistry(l),
		tasks:    tasks,
	}
}

// Start launches one goroutine per task and blocks until ctx is cancelled
// and every task goroutine has exited.
func (s *Scheduler) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for _, task := range s.tasks {
		wg.Add(1)
		go func(t Task) {
			defer wg.Done()
			s.runLoop(ctx, t)
		}(task)
	}
	wg.Wait()
}

func (s *Scheduler) runLoop(ctx context.Context, t Task) {
	ticker := time.NewTicker(t.Cadence)
	defer ticker.Stop()

	log.Info().Str("scope", s.Scope.String()).Str("task", t.Name).
		Dur("cadence", t.Cadence).Msg("scheduler: task loop started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("scope", s.Scope.String()).Str("task", t.Name).Msg("scheduler: task loop stopped")
			return
		case <-ticker.C:
			s.runOnce(ctx, t)
		}
	}
}

// runOnce executes a single tick of t under its own timeout, recording
// success or failure in the last-run registry. A context cancellation
// during the run is never recorded as a success or a failure — the task
// simply did not complete and its cursor/last-run state is left untouched.
func (s *Scheduler) runOnce(ctx context.Context, t Task) {
	runCtx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()

	start := time.Now()
	err := t.Run(runCtx)
	duration := time.Since(start)

	if runCtx.Err() == context.Canceled && ctx.Err() == context.Canceled {
		return
	}

	if err != nil {
		log.Warn().Str("scope", s.Scope.String()).Str("task", t.Name).
			Dur("duration", duration).Err(err).Msg("scheduler: task run failed")
		if recErr := s.Registry.RecordFailure(t.Name, err.Error()); recErr != nil {
			log.Error().Str("scope", s.Scope.String()).Str("task", t.Name).
				Err(recErr).Msg("scheduler: failed to persist failure record")
		}
		return
	}

	log.Info().Str("scope", s.Scope.String()).Str("task", t.Name).
		Dur("duration", duration).Msg("scheduler: task run succeeded")
	if recErr := s.Registry.RecordSuccess(t.Name, start); recErr != nil {
		log.Error().Str("scope", s.Scope.String()).Str("task", t.Name).
			Err(recErr).Msg("scheduler: failed to persist success record")
	}
}

// RunOnce runs task immediately, outside the periodic loop, for manual
// single-task execution (e.g. a CLI subcommand). It participates in the
// same last-run registry as the periodic loop.
func (s *Scheduler) RunOnce(ctx context.Context, name string) error {
	for _, t := range s.tasks {
		if t.Name == name {
			runCtx, cancel := context.WithTimeout(ctx, t.Timeout)
			defer cancel()
			start := time.Now()
			if err := t.Run(runCtx); err != nil {
				_ = s.Registry.RecordFailure(t.Name, err.Error())
				return err
			}
			return s.Registry.RecordSuccess(t.Name, start)
		}
	}
	return errTaskNotFound(name)
}

type errTaskNotFound string

func (e errTaskNotFound) Error() string { return "scheduler: task not found: " + string(e) }

// TaskStatus summarizes one task's health for the ops query layer.
type TaskStatus struct {
	Name          string    `json:"name"`
	Cadence       string    `json:"cadence"`
	LastSuccessAt time.Time `json:"last_success_at,omitempty"`
	HasRun        bool      `json:"has_run"`
	Stale         bool      `json:"stale"`
}

// Status reports the current health of every registered task.
func (s *Scheduler) Status(now time.Time) ([]TaskStatus, error) {
	statuses := make([]TaskStatus, 0, len(s.tasks))
	for _, t := range s.tasks {
		last, ok, err := s.Registry.LastSuccess(t.Name)
		if err != nil {
			return nil, err
		}
		stale, err := s.Registry.IsStale(t.Name, t.maxAge(), now)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, TaskStatus{
			Name:          t.Name,
			Cadence:       t.Cadence.String(),
			LastSuccessAt: last,
			HasRun:        ok,
			Stale:         stale,
		})
	}
	return statuses, nil
}
