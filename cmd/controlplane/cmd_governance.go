package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/riftlabs/controlplane/internal/eventlog"
	"github.com/riftlabs/controlplane/internal/governance"
)

var (
	governanceInputPath string
	governanceEnv        string
)

var governanceCmd = &cobra.Command{
	Use:   "governance",
	Short: "Constitutional governance pipeline commands",
}

var governanceProposeCmd = &cobra.Command{
	Use:   "propose",
	Short: "Run the full propose/critique/audit/synthesize pipeline for one environment",
	RunE:  runGovernancePropose,
}

func init() {
	governanceProposeCmd.Flags().StringVar(&governanceInputPath, "input", "", "path to a JSON governance.Analysis file (required)")
	governanceProposeCmd.Flags().StringVar(&governanceEnv, "environment", "paper", "environment key within the Analysis to propose for")
	governanceCmd.AddCommand(governanceProposeCmd)
	rootCmd.AddCommand(governanceCmd)
}

func runGovernancePropose(cmd *cobra.Command, args []string) error {
	if governanceInputPath == "" {
		return fmt.Errorf("--input is required: a JSON governance.Analysis file")
	}
	data, err := os.ReadFile(governanceInputPath)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	var analysis governance.Analysis
	if err := json.Unmarshal(data, &analysis); err != nil {
		return fmt.Errorf("parse input: %w", err)
	}

	s, layout := appScope()
	cfg, err := appConfig(s)
	if err != nil {
		return err
	}
	if !cfg.Flags.GovernanceEnabled {
		return fmt.Errorf("governance_enabled flag is off for this scope")
	}

	events, err := eventlog.Open(layout.GovernanceEventsLog())
	if err != nil {
		return fmt.Errorf("open governance events log: %w", err)
	}
	defer events.Close()

	pipeline := governance.NewPipeline(s, layout, events)
	result, err := pipeline.Run(governanceEnv, analysis, time.Now())
	if err != nil {
		return fmt.Errorf("run pipeline: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
