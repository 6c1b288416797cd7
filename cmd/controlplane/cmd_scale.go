package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/riftlabs/controlplane/internal/eventlog"
	"github.com/riftlabs/controlplane/internal/scaling"
	"github.com/riftlabs/controlplane/internal/telemetry"
)

var scaleInputPath string

var scaleCmd = &cobra.Command{
	Use:   "scale",
	Short: "Evaluate a scaling.Context from a JSON file against the scaling policy",
	RunE:  runScaleCheck,
}

func init() {
	scaleCmd.Flags().StringVar(&scaleInputPath, "input", "", "path to a JSON scaling.Context file (required)")
	rootCmd.AddCommand(scaleCmd)
}

func runScaleCheck(cmd *cobra.Command, args []string) error {
	if scaleInputPath == "" {
		return fmt.Errorf("--input is required: a JSON scaling.Context file")
	}
	data, err := os.ReadFile(scaleInputPath)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	var scaleCtx scaling.Context
	if err := json.Unmarshal(data, &scaleCtx); err != nil {
		return fmt.Errorf("parse input: %w", err)
	}

	s, layout := appScope()
	cfg, err := appConfig(s)
	if err != nil {
		return err
	}
	if scaleCtx.ScalingPolicy == nil {
		scaleCtx.ScalingPolicy = &cfg.Scaling
	}

	decisions, err := eventlog.Open(layout.DecisionsLog())
	if err != nil {
		return fmt.Errorf("open decisions log: %w", err)
	}
	defer decisions.Close()

	registry := telemetry.NewRegistry()
	result := scaling.ShouldScale(scaleCtx)
	registry.RecordScalingDecision(s.Slug(), string(result.Decision), string(result.ReasonCode))

	event := eventlog.DecisionEvent{
		Envelope:  eventlog.NewEnvelope(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Scope:     s.String(),
		Symbol:    scaleCtx.Symbol,
		Kind:      "scale",
		Approved:  result.Decision == scaling.DecisionScale,
		Reason:    result.ReasonText,
		Detail: map[string]any{
			"reason_code":          result.ReasonCode,
			"proposed_position_pct": result.ProposedPositionPct,
			"estimated_risk":        result.EstimatedRisk,
		},
	}
	if err := decisions.Append(event); err != nil {
		return fmt.Errorf("log decision: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
