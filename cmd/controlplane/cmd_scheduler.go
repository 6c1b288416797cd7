package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/riftlabs/controlplane/internal/config"
	"github.com/riftlabs/controlplane/internal/eventlog"
	"github.com/riftlabs/controlplane/internal/governance"
	"github.com/riftlabs/controlplane/internal/reconcile"
	"github.com/riftlabs/controlplane/internal/regimeval"
	"github.com/riftlabs/controlplane/internal/scheduler"
	"github.com/riftlabs/controlplane/internal/scope"
	"github.com/riftlabs/controlplane/internal/telemetry"
	"github.com/riftlabs/controlplane/internal/universe"
)

var schedulerEnv string

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run or inspect the periodic task loop for a scope",
}

var schedulerRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the reconcile/regime/universe/governance task loop until interrupted",
	RunE:  runSchedulerRun,
}

var schedulerStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the last-run status of every scheduled task",
	RunE:  runSchedulerStatus,
}

func init() {
	schedulerRunCmd.Flags().StringVar(&schedulerEnv, "environment", "paper", "environment key to use for the constitutional_governance task")
	schedulerCmd.AddCommand(schedulerRunCmd)
	schedulerCmd.AddCommand(schedulerStatusCmd)
	rootCmd.AddCommand(schedulerCmd)
}

// errSkipCycle is returned by a task's Run closure when its
// operator-maintained input file is absent or its feature flag is off.
// skippable turns it into a nil result, so the scheduler records the
// skipped tick as a successful run and never as a failure.
var errSkipCycle = errors.New("scheduler: input absent, cycle skipped")

// loadInputOrSkip reads path into v, returning errSkipCycle if the file
// does not exist yet.
func loadInputOrSkip(path string, v any, taskName string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Info().Str("task", taskName).Str("input", path).Msg("scheduler: input file absent, skipping cycle")
			return errSkipCycle
		}
		return err
	}
	return json.Unmarshal(data, v)
}

// skippable wraps a task's Run closure so a returned errSkipCycle never
// reaches the scheduler's failure-recording path.
func skippable(run func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := run(ctx); errors.Is(err, errSkipCycle) {
			return nil
		} else {
			return err
		}
	}
}

// buildTasks wires the four fixed scheduled tasks onto the domain engines
// for scope s, reusing the same open event-log sinks across every tick.
func buildTasks(ctx context.Context, s scope.Scope, layout scope.Layout, cfg config.Config, registry *telemetry.Registry, environment string) ([]scheduler.Task, func(), error) {
	adapter, err := appBroker(ctx, s, layout, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("build broker adapter: %w", err)
	}

	errLog, err := eventlog.Open(layout.ErrorsLog())
	if err != nil {
		return nil, nil, fmt.Errorf("open error log: %w", err)
	}
	runsLog, err := eventlog.Open(layout.RegimeRunsLog())
	if err != nil {
		return nil, nil, fmt.Errorf("open regime run log: %w", err)
	}
	universeDecisions, err := eventlog.Open(layout.UniverseDecisionsLog())
	if err != nil {
		return nil, nil, fmt.Errorf("open universe decisions log: %w", err)
	}
	scoringHistory, err := eventlog.Open(layout.ScoringHistoryLog())
	if err != nil {
		return nil, nil, fmt.Errorf("open scoring history log: %w", err)
	}
	governanceEvents, err := eventlog.Open(layout.GovernanceEventsLog())
	if err != nil {
		return nil, nil, fmt.Errorf("open governance events log: %w", err)
	}
	closeAll := func() {
		errLog.Close()
		runsLog.Close()
		universeDecisions.Close()
		scoringHistory.Close()
		governanceEvents.Close()
	}

	reconcileEngine := reconcile.NewEngine(adapter, layout, errLog)
	regimeRunner := regimeval.NewRunner(s, layout, runsLog)
	scorer := universe.NewScorer(universe.DefaultWeights())
	guardrails := universe.NewGuardrails(cfg.Universe)
	governor := universe.NewGovernor(s, layout, scorer, guardrails, universeDecisions, scoringHistory)
	governancePipeline := governance.NewPipeline(s, layout, governanceEvents)

	tasks := []scheduler.Task{
		{
			Name:    "reconcile",
			Cadence: cfg.Scheduler.ReconcileCadence(),
			Timeout: cfg.Scheduler.ReconcileTimeout(),
			MaxAge:  cfg.Scheduler.StalenessMaxAge(),
			Run: func(ctx context.Context) error {
				timer := registry.StartReconcileTimer(s.Slug())
				result := reconcileEngine.Reconcile(ctx)
				status := "error"
				if result.Status == "OK" {
					status = "ok"
				}
				timer.Stop(status)
				registry.ReconcileFills.WithLabelValues(s.Slug(), "_all").Add(float64(result.FillsProcessed))
				if result.Status != "OK" {
					return fmt.Errorf("reconcile finished with status %s", result.Status)
				}
				return nil
			},
		},
		{
			Name:    "regime_validate",
			Cadence: cfg.Scheduler.RegimeValidateCadence(),
			Timeout: cfg.Scheduler.RegimeValidateTimeout(),
			MaxAge:  cfg.Scheduler.StalenessMaxAge(),
			Run: skippable(func(ctx context.Context) error {
				if !cfg.Flags.PhaseGEnabled {
					return errSkipCycle
				}
				var input regimeval.ValidationContext
				if err := loadInputOrSkip(layout.RegimeValidationInput(), &input, "regime_validate"); err != nil {
					return err
				}
				_, err := regimeRunner.Run(fmt.Sprintf("regime_%s", uuid.New().String()[:8]), input, time.Now())
				return err
			}),
		},
		{
			Name:    "universe_governance",
			Cadence: cfg.Scheduler.UniverseGovernanceCadence(),
			Timeout: cfg.Scheduler.UniverseGovernanceTimeout(),
			MaxAge:  cfg.Scheduler.StalenessMaxAge(),
			Run: skippable(func(ctx context.Context) error {
				var input universe.CycleInput
				if err := loadInputOrSkip(layout.UniverseCycleInput(), &input, "universe_governance"); err != nil {
					return err
				}
				_, err := governor.RunCycle(input)
				return err
			}),
		},
		{
			Name:    "constitutional_governance",
			Cadence: cfg.Scheduler.ConstitutionalGovernanceCadence(),
			Timeout: cfg.Scheduler.ConstitutionalGovernanceTimeout(),
			MaxAge:  cfg.Scheduler.StalenessMaxAge(),
			Run: skippable(func(ctx context.Context) error {
				if !cfg.Flags.GovernanceEnabled {
					return errSkipCycle
				}
				var analysis governance.Analysis
				if err := loadInputOrSkip(layout.GovernanceAnalysisInput(), &analysis, "constitutional_governance"); err != nil {
					return err
				}
				_, err := governancePipeline.Run(environment, analysis, time.Now())
				return err
			}),
		},
	}
	return tasks, closeAll, nil
}

func runSchedulerRun(cmd *cobra.Command, args []string) error {
	s, layout := appScope()
	cfg, err := appConfig(s)
	if err != nil {
		return err
	}
	registry := telemetry.NewRegistry()

	tasks, closeAll, err := buildTasks(cmd.Context(), s, layout, cfg, registry, schedulerEnv)
	if err != nil {
		return err
	}
	defer closeAll()

	sched := scheduler.New(s, layout, tasks)

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info().Str("scope", s.String()).Msg("scheduler: starting task loop")
	sched.Start(ctx)
	log.Info().Str("scope", s.String()).Msg("scheduler: task loop stopped")
	return nil
}

func runSchedulerStatus(cmd *cobra.Command, args []string) error {
	s, layout := appScope()
	cfg, err := appConfig(s)
	if err != nil {
		return err
	}
	registry := telemetry.NewRegistry()

	tasks, closeAll, err := buildTasks(cmd.Context(), s, layout, cfg, registry, schedulerEnv)
	if err != nil {
		return err
	}
	defer closeAll()

	sched := scheduler.New(s, layout, tasks)
	statuses, err := sched.Status(time.Now())
	if err != nil {
		return fmt.Errorf("read status: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(statuses)
}
