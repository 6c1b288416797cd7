package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/riftlabs/controlplane/internal/eventlog"
	"github.com/riftlabs/controlplane/internal/reconcile"
	"github.com/riftlabs/controlplane/internal/telemetry"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Run one reconciliation cycle against the broker and print the result as JSON",
	RunE:  runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	s, layout := appScope()
	cfg, err := appConfig(s)
	if err != nil {
		return err
	}
	adapter, err := appBroker(cmd.Context(), s, layout, cfg)
	if err != nil {
		return fmt.Errorf("build broker adapter: %w", err)
	}

	errLog, err := eventlog.Open(layout.ErrorsLog())
	if err != nil {
		return fmt.Errorf("open error log: %w", err)
	}
	defer errLog.Close()

	registry := telemetry.NewRegistry()
	timer := registry.StartReconcileTimer(s.Slug())

	engine := reconcile.NewEngine(adapter, layout, errLog)
	result := engine.Reconcile(cmd.Context())

	status := "error"
	if result.Status == "OK" {
		status = "ok"
	}
	timer.Stop(status)
	registry.ReconcileFills.WithLabelValues(s.Slug(), "_all").Add(float64(result.FillsProcessed))

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
