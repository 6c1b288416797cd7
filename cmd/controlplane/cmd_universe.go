package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/riftlabs/controlplane/internal/eventlog"
	"github.com/riftlabs/controlplane/internal/ops"
	"github.com/riftlabs/controlplane/internal/universe"
)

var universeInputPath string

var universeCmd = &cobra.Command{
	Use:   "universe",
	Short: "Universe governance commands",
}

var universeGovernCmd = &cobra.Command{
	Use:   "govern",
	Short: "Run one universe-governance cycle from a JSON CycleInput file and print the decision",
	RunE:  runUniverseGovern,
}

var universeShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the currently active universe",
	RunE:  runUniverseShow,
}

func init() {
	universeGovernCmd.Flags().StringVar(&universeInputPath, "input", "", "path to a JSON universe.CycleInput file (required)")
	universeCmd.AddCommand(universeGovernCmd)
	universeCmd.AddCommand(universeShowCmd)
	rootCmd.AddCommand(universeCmd)
}

func runUniverseGovern(cmd *cobra.Command, args []string) error {
	if universeInputPath == "" {
		return fmt.Errorf("--input is required: a JSON universe.CycleInput file")
	}
	data, err := os.ReadFile(universeInputPath)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	var input universe.CycleInput
	if err := json.Unmarshal(data, &input); err != nil {
		return fmt.Errorf("parse input: %w", err)
	}

	s, layout := appScope()
	cfg, err := appConfig(s)
	if err != nil {
		return err
	}

	decisions, err := eventlog.Open(layout.UniverseDecisionsLog())
	if err != nil {
		return fmt.Errorf("open universe decisions log: %w", err)
	}
	defer decisions.Close()
	scoring, err := eventlog.Open(layout.ScoringHistoryLog())
	if err != nil {
		return fmt.Errorf("open scoring history log: %w", err)
	}
	defer scoring.Close()

	scorer := universe.NewScorer(universe.DefaultWeights())
	guardrails := universe.NewGuardrails(cfg.Universe)
	governor := universe.NewGovernor(s, layout, scorer, guardrails, decisions, scoring)

	decision, err := governor.RunCycle(input)
	if err != nil {
		return fmt.Errorf("run governance cycle: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(decision)
}

func runUniverseShow(cmd *cobra.Command, args []string) error {
	_, layout := appScope()
	symbols, err := ops.NewQuery(layout).ActiveUniverse()
	if err != nil {
		return fmt.Errorf("read active universe: %w", err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{"symbols": symbols})
}
