package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/riftlabs/controlplane/internal/eventlog"
	"github.com/riftlabs/controlplane/internal/execgate"
	"github.com/riftlabs/controlplane/internal/telemetry"
)

var (
	gateSymbol               string
	gatePositionNotionalUSD  float64
	gateADV                  float64
)

var gateCmd = &cobra.Command{
	Use:   "gate",
	Short: "Execution-gate check: liquidity against average daily volume",
	RunE:  runGateCheck,
}

func init() {
	gateCmd.Flags().StringVar(&gateSymbol, "symbol", "", "symbol to check (required)")
	gateCmd.Flags().Float64Var(&gatePositionNotionalUSD, "position-notional", 0, "proposed position notional in USD")
	gateCmd.Flags().Float64Var(&gateADV, "adv", 0, "average daily dollar volume for the symbol")
	rootCmd.AddCommand(gateCmd)
}

func runGateCheck(cmd *cobra.Command, args []string) error {
	if gateSymbol == "" {
		return fmt.Errorf("--symbol is required")
	}

	s, layout := appScope()
	cfg, err := appConfig(s)
	if err != nil {
		return err
	}

	decisions, err := eventlog.Open(layout.DecisionsLog())
	if err != nil {
		return fmt.Errorf("open decisions log: %w", err)
	}
	defer decisions.Close()

	registry := telemetry.NewRegistry()

	ok, reason := execgate.CheckLiquidity(gatePositionNotionalUSD, gateADV, cfg.Execution.MaxADVPct)

	decision := "approved"
	if !ok {
		decision = "rejected"
	}
	registry.RecordGateDecision(s.Slug(), decision)

	event := eventlog.DecisionEvent{
		Envelope:  eventlog.NewEnvelope(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Scope:     s.String(),
		Symbol:    gateSymbol,
		Kind:      "entry",
		Approved:  ok,
		Reason:    reason,
	}
	if err := decisions.Append(event); err != nil {
		return fmt.Errorf("log decision: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(event)
}
