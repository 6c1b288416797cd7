package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/riftlabs/controlplane/internal/ops"
	"github.com/riftlabs/controlplane/internal/ops/httpapi"
	"github.com/riftlabs/controlplane/internal/scheduler"
	"github.com/riftlabs/controlplane/internal/telemetry"
)

var opsWithScheduler bool

var opsCmd = &cobra.Command{
	Use:   "ops",
	Short: "Operator-facing HTTP/WS surface commands",
}

var opsServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read-only ops HTTP API and decision stream until interrupted",
	RunE:  runOpsServe,
}

func init() {
	opsServeCmd.Flags().BoolVar(&opsWithScheduler, "with-scheduler", false, "also run the periodic task loop in this process")
	opsCmd.AddCommand(opsServeCmd)
	rootCmd.AddCommand(opsCmd)
}

func runOpsServe(cmd *cobra.Command, args []string) error {
	s, layout := appScope()
	cfg, err := appConfig(s)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	query := ops.NewQuery(layout)
	flags := ops.NewFlagManager(cfg.Flags)

	var sched *scheduler.Scheduler
	if opsWithScheduler {
		registry := telemetry.NewRegistry()
		tasks, closeAll, err := buildTasks(ctx, s, layout, cfg, registry, "paper")
		if err != nil {
			return fmt.Errorf("build scheduled tasks: %w", err)
		}
		defer closeAll()
		sched = scheduler.New(s, layout, tasks)
		go sched.Start(ctx)
	}

	hub := httpapi.NewHub()
	go hub.Run(ctx)

	go func() {
		if err := httpapi.TailDecisions(ctx, layout.DecisionsLog(), hub, 2*time.Second); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("ops: decision tailer stopped")
		}
	}()

	serverConfig := httpapi.DefaultServerConfig()
	server, err := httpapi.NewServer(serverConfig, query, flags, sched, hub)
	if err != nil {
		return fmt.Errorf("build ops server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("ops: shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown ops server: %w", err)
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}
