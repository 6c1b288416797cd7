package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/riftlabs/controlplane/internal/scope"
)

func testScope() scope.Scope {
	return scope.Scope{Env: scope.EnvPaper, Broker: "alpaca", Market: "us-equity", Region: "na"}
}

func testLayout(t *testing.T) scope.Layout {
	t.Helper()
	return scope.NewLayout(t.TempDir(), testScope())
}

func TestRegistryRecordsSuccessAndStaleness(t *testing.T) {
	l := testLayout(t)
	r := NewRegistry(l)

	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	if err := r.RecordSuccess("reconcile", now); err != nil {
		t.Fatalf("RecordSuccess: %v", err)
	}

	stale, err := r.IsStale("reconcile", time.Hour, now.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("IsStale: %v", err)
	}
	if stale {
		t.Errorf("expected not stale 30m after a successful run with 1h max age")
	}

	stale, err = r.IsStale("reconcile", time.Hour, now.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("IsStale: %v", err)
	}
	if !stale {
		t.Errorf("expected stale 2h after a successful run with 1h max age")
	}
}

func TestRegistryNeverRunTaskIsStale(t *testing.T) {
	l := testLayout(t)
	r := NewRegistry(l)
	stale, err := r.IsStale("never_run", time.Hour, time.Now())
	if err != nil {
		t.Fatalf("IsStale: %v", err)
	}
	if !stale {
		t.Errorf("expected a task with no recorded run to be considered stale")
	}
}

func TestRegistryFailureDoesNotAdvanceLastSuccess(t *testing.T) {
	l := testLayout(t)
	r := NewRegistry(l)
	now := time.Now()
	if err := r.RecordSuccess("regime_validate", now); err != nil {
		t.Fatalf("RecordSuccess: %v", err)
	}
	if err := r.RecordFailure("regime_validate", "boom"); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	last, ok, err := r.LastSuccess("regime_validate")
	if err != nil {
		t.Fatalf("LastSuccess: %v", err)
	}
	if !ok || !last.Equal(now) {
		t.Errorf("expected last success to remain at %v after a later failure, got %v (ok=%v)", now, last, ok)
	}
}

func TestSchedulerRunOnceRecordsSuccess(t *testing.T) {
	l := testLayout(t)
	var calls int32
	task := Task{
		Name:    "universe_governance",
		Cadence: time.Hour,
		Timeout: time.Second,
		Run: func(ctx context.Context) error {
			atomic.AddInt32(&calls, 1)
			return nil
		},
	}
	s := New(testScope(), l, []Task{task})

	if err := s.RunOnce(context.Background(), "universe_governance"); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("expected task to run exactly once, got %d", calls)
	}
	if _, ok, _ := s.Registry.LastSuccess("universe_governance"); !ok {
		t.Errorf("expected a success to be recorded")
	}
}

func TestSchedulerRunOnceRecordsFailureWithoutPanicking(t *testing.T) {
	l := testLayout(t)
	task := Task{
		Name:    "constitutional_governance",
		Cadence: time.Hour,
		Timeout: time.Second,
		Run: func(ctx context.Context) error {
			return errors.New("advisor unreachable")
		},
	}
	s := New(testScope(), l, []Task{task})

	if err := s.RunOnce(context.Background(), "constitutional_governance"); err == nil {
		t.Fatalf("expected RunOnce to propagate the task error")
	}
	if _, ok, _ := s.Registry.LastSuccess("constitutional_governance"); ok {
		t.Errorf("expected no success recorded for a failed run")
	}
}

func TestSchedulerRunOnceUnknownTask(t *testing.T) {
	l := testLayout(t)
	s := New(testScope(), l, nil)
	if err := s.RunOnce(context.Background(), "nope"); err == nil {
		t.Errorf("expected an error for an unknown task name")
	}
}

func TestSchedulerStartRunsEachTaskIndependently(t *testing.T) {
	l := testLayout(t)
	var fastCalls, slowCalls int32
	fast := Task{
		Name:    "fast",
		Cadence: 5 * time.Millisecond,
		Timeout: 50 * time.Millisecond,
		Run: func(ctx context.Context) error {
			atomic.AddInt32(&fastCalls, 1)
			return nil
		},
	}
	slow := Task{
		Name:    "slow",
		Cadence: 5 * time.Millisecond,
		Timeout: 50 * time.Millisecond,
		Run: func(ctx context.Context) error {
			time.Sleep(30 * time.Millisecond)
			atomic.AddInt32(&slowCalls, 1)
			return nil
		},
	}
	s := New(testScope(), l, []Task{fast, slow})

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	s.Start(ctx)

	if atomic.LoadInt32(&fastCalls) <= atomic.LoadInt32(&slowCalls) {
		t.Errorf("expected the fast task to complete more ticks than the slow task in the same window: fast=%d slow=%d", fastCalls, slowCalls)
	}
}

func TestSchedulerStatusReportsStaleness(t *testing.T) {
	l := testLayout(t)
	task := Task{Name: "reconcile", Cadence: time.Minute, Timeout: time.Second, MaxAge: time.Hour}
	s := New(testScope(), l, []Task{task})

	now := time.Now()
	statuses, err := s.Status(now)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(statuses) != 1 || !statuses[0].Stale || statuses[0].HasRun {
		t.Errorf("expected an unreported task to be stale and has_run=false, got %+v", statuses)
	}

	if err := s.Registry.RecordSuccess("reconcile", now); err != nil {
		t.Fatalf("RecordSuccess: %v", err)
	}
	statuses, err = s.Status(now.Add(time.Minute))
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if statuses[0].Stale || !statuses[0].HasRun {
		t.Errorf("expected a recent success to be fresh and has_run=true, got %+v", statuses)
	}
}
