package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/riftlabs/controlplane/internal/broker"
	"github.com/riftlabs/controlplane/internal/config"
	"github.com/riftlabs/controlplane/internal/ops"
	"github.com/riftlabs/controlplane/internal/scope"
)

var (
	flagEnv      string
	flagBroker   string
	flagMarket   string
	flagRegion   string
	flagBaseDir  string
	flagConfig   string
	flagCashUSD  float64
)

var rootCmd = &cobra.Command{
	Use:     appName,
	Short:   "Operator CLI for a single autonomous trading control-plane scope",
	Version: "0.1.0",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagEnv, "env", "paper", "trading environment: paper or live")
	rootCmd.PersistentFlags().StringVar(&flagBroker, "broker", "stub", "broker adapter: alpaca, kraken, nsesim, stub")
	rootCmd.PersistentFlags().StringVar(&flagMarket, "market", "us-equity", "market identifier")
	rootCmd.PersistentFlags().StringVar(&flagRegion, "region", "na", "region identifier")
	rootCmd.PersistentFlags().StringVar(&flagBaseDir, "base-dir", "./state", "root directory for persisted scope state")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "optional YAML config file path")
	rootCmd.PersistentFlags().Float64Var(&flagCashUSD, "starting-cash", 100000, "starting cash for a simulated broker adapter")
}

// appScope resolves the scope.Scope and scope.Layout from persistent flags.
func appScope() (scope.Scope, scope.Layout) {
	s := scope.Scope{
		Env:    scope.Env(flagEnv),
		Broker: flagBroker,
		Market: flagMarket,
		Region: flagRegion,
	}
	return s, scope.NewLayout(flagBaseDir, s)
}

// appConfig loads configuration from --config (if set) layered over
// defaults and environment overrides, then validates it against the
// resolved scope's liveness.
func appConfig(s scope.Scope) (config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return cfg, err
	}
	if err := cfg.Validate(s.Env == scope.EnvLive); err != nil {
		return cfg, fmt.Errorf("config invalid for scope %s: %w", s.String(), err)
	}
	return cfg, nil
}

// appBroker builds the broker adapter for the resolved scope, preflights it
// when trading live, and wraps it in a dry-run guard driven by the loaded
// flags.
func appBroker(ctx context.Context, s scope.Scope, l scope.Layout, cfg config.Config) (broker.Adapter, error) {
	adapter, err := broker.New(s, l, flagCashUSD)
	if err != nil {
		return nil, err
	}
	if s.Env == scope.EnvLive {
		if preflighter, ok := adapter.(interface{ Preflight(context.Context) error }); ok {
			if err := preflighter.Preflight(ctx); err != nil {
				return nil, fmt.Errorf("broker preflight failed: %w", err)
			}
		}
	}
	dryRun := cfg.Flags.DryRun && !cfg.Flags.EnableLiveOrders
	return ops.NewDryRunGuard(adapter, dryRun), nil
}
