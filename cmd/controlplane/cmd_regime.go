package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/riftlabs/controlplane/internal/eventlog"
	"github.com/riftlabs/controlplane/internal/regimeval"
)

var regimeInputPath string

var regimeCmd = &cobra.Command{
	Use:   "regime",
	Short: "Regime validation commands",
}

var regimeValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Run one regime-validation cycle from a JSON ValidationContext file and print the result",
	RunE:  runRegimeValidate,
}

func init() {
	regimeValidateCmd.Flags().StringVar(&regimeInputPath, "input", "", "path to a JSON regimeval.ValidationContext file (required)")
	regimeCmd.AddCommand(regimeValidateCmd)
	rootCmd.AddCommand(regimeCmd)
}

func runRegimeValidate(cmd *cobra.Command, args []string) error {
	if regimeInputPath == "" {
		return fmt.Errorf("--input is required: a JSON regimeval.ValidationContext file")
	}
	data, err := os.ReadFile(regimeInputPath)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	var ctx regimeval.ValidationContext
	if err := json.Unmarshal(data, &ctx); err != nil {
		return fmt.Errorf("parse input: %w", err)
	}

	s, layout := appScope()
	runs, err := eventlog.Open(layout.RegimeRunsLog())
	if err != nil {
		return fmt.Errorf("open regime run log: %w", err)
	}
	defer runs.Close()

	runner := regimeval.NewRunner(s, layout, runs)
	result, err := runner.Run(fmt.Sprintf("regime_%s", uuid.New().String()[:8]), ctx, time.Now())
	if err != nil {
		return fmt.Errorf("run validation: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
