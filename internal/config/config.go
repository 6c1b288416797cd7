// Package config loads the scope-aware constants and feature flags every
// other component is parameterized by: scheduler cadences and timeouts,
// execution thresholds, scaling caps, and universe bounds. Values load from an optional YAML file and are then
// overridden by a small set of environment variables, matching the
// teacher's provider-config load-then-validate pattern.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/riftlabs/controlplane/internal/scaling"
	"github.com/riftlabs/controlplane/internal/universe"
)

// Flags is the global feature-flag set a process consults before doing
// anything observable. dry_run and enable_live_orders together gate every
// broker-mutating call; governance_enabled and phase_g_enabled gate their
// respective scheduled tasks.
type Flags struct {
	DryRun             bool `yaml:"dry_run"`
	EnableLiveOrders   bool `yaml:"enable_live_orders"`
	GovernanceEnabled  bool `yaml:"governance_enabled"`
	PhaseGEnabled      bool `yaml:"phase_g_enabled"`
	PhaseGDryRun       bool `yaml:"phase_g_dry_run"`
}

// DefaultFlags is the fail-safe flag set: dry-run, no live orders, both
// phase-G (regime validation) and governance enabled, with phase-G in
// dry-run.
func DefaultFlags() Flags {
	return Flags{
		DryRun:            true,
		EnableLiveOrders:  false,
		GovernanceEnabled: true,
		PhaseGEnabled:     true,
		PhaseGDryRun:      true,
	}
}

// SchedulerConfig holds per-task cadence, timeout, and staleness settings,
// in seconds as loaded from YAML and converted to time.Duration for use.
type SchedulerConfig struct {
	ReconcileCadenceSeconds            int `yaml:"reconcile_cadence_seconds"`
	ReconcileTimeoutSeconds            int `yaml:"reconcile_timeout_seconds"`
	RegimeValidateCadenceSeconds       int `yaml:"regime_validate_cadence_seconds"`
	RegimeValidateTimeoutSeconds       int `yaml:"regime_validate_timeout_seconds"`
	UniverseGovernanceCadenceSeconds   int `yaml:"universe_governance_cadence_seconds"`
	UniverseGovernanceTimeoutSeconds   int `yaml:"universe_governance_timeout_seconds"`
	ConstitutionalGovernanceCadenceSeconds int `yaml:"constitutional_governance_cadence_seconds"`
	ConstitutionalGovernanceTimeoutSeconds int `yaml:"constitutional_governance_timeout_seconds"`
	StalenessMaxAgeSeconds             int `yaml:"staleness_max_age_seconds"`
}

// DefaultSchedulerConfig matches spec §4.8's named example (90s regime-run
// timeout) and a 3600s staleness default.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		ReconcileCadenceSeconds:                60,
		ReconcileTimeoutSeconds:                30,
		RegimeValidateCadenceSeconds:           300,
		RegimeValidateTimeoutSeconds:           90,
		UniverseGovernanceCadenceSeconds:       3600,
		UniverseGovernanceTimeoutSeconds:       120,
		ConstitutionalGovernanceCadenceSeconds: 86400,
		ConstitutionalGovernanceTimeoutSeconds: 60,
		StalenessMaxAgeSeconds:                 3600,
	}
}

func (s SchedulerConfig) ReconcileCadence() time.Duration {
	return time.Duration(s.ReconcileCadenceSeconds) * time.Second
}
func (s SchedulerConfig) ReconcileTimeout() time.Duration {
	return time.Duration(s.ReconcileTimeoutSeconds) * time.Second
}
func (s SchedulerConfig) RegimeValidateCadence() time.Duration {
	return time.Duration(s.RegimeValidateCadenceSeconds) * time.Second
}
func (s SchedulerConfig) RegimeValidateTimeout() time.Duration {
	return time.Duration(s.RegimeValidateTimeoutSeconds) * time.Second
}
func (s SchedulerConfig) UniverseGovernanceCadence() time.Duration {
	return time.Duration(s.UniverseGovernanceCadenceSeconds) * time.Second
}
func (s SchedulerConfig) UniverseGovernanceTimeout() time.Duration {
	return time.Duration(s.UniverseGovernanceTimeoutSeconds) * time.Second
}
func (s SchedulerConfig) ConstitutionalGovernanceCadence() time.Duration {
	return time.Duration(s.ConstitutionalGovernanceCadenceSeconds) * time.Second
}
func (s SchedulerConfig) ConstitutionalGovernanceTimeout() time.Duration {
	return time.Duration(s.ConstitutionalGovernanceTimeoutSeconds) * time.Second
}
func (s SchedulerConfig) StalenessMaxAge() time.Duration {
	return time.Duration(s.StalenessMaxAgeSeconds) * time.Second
}

// ExecutionConfig holds the ADV/slippage constants execgate checks are
// parameterized by.
type ExecutionConfig struct {
	MaxADVPct        float64 `yaml:"max_adv_pct"`
	EntrySlippageBps int     `yaml:"entry_slippage_bps"`
	ExitSlippageBps  int     `yaml:"exit_slippage_bps"`
}

// DefaultExecutionConfig is a conservative 1% of ADV cap with a 10bps
// slippage assumption on both sides of a trade.
func DefaultExecutionConfig() ExecutionConfig {
	return ExecutionConfig{MaxADVPct: 0.01, EntrySlippageBps: 10, ExitSlippageBps: 10}
}

// Config is the full scope-aware configuration set.
type Config struct {
	Flags     Flags               `yaml:"flags"`
	Scheduler SchedulerConfig     `yaml:"scheduler"`
	Execution ExecutionConfig     `yaml:"execution"`
	Scaling   scaling.Policy      `yaml:"-"`
	Universe  universe.Config     `yaml:"-"`
}

// Default returns the fail-safe configuration every scope starts from
// before any YAML file or environment override is applied.
func Default() Config {
	return Config{
		Flags:     DefaultFlags(),
		Scheduler: DefaultSchedulerConfig(),
		Execution: DefaultExecutionConfig(),
		Scaling:   scaling.DefaultPolicy(),
		Universe:  universe.DefaultConfig(),
	}
}

// Load reads path (if non-empty and present) as YAML over the default
// configuration, then applies environment overrides, and returns the
// result. A missing path is not an error: the process runs on defaults and
// env overrides alone.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

// applyEnvOverrides maps CONTROLPLANE_-prefixed environment variables onto
// boolean feature flags, mirroring the broker adapters' APCA_*-style
// direct os.Getenv reads rather than a reflection-based binder.
func applyEnvOverrides(cfg *Config) {
	if v, ok := boolEnv("CONTROLPLANE_DRY_RUN"); ok {
		cfg.Flags.DryRun = v
	}
	if v, ok := boolEnv("CONTROLPLANE_ENABLE_LIVE_ORDERS"); ok {
		cfg.Flags.EnableLiveOrders = v
	}
	if v, ok := boolEnv("CONTROLPLANE_GOVERNANCE_ENABLED"); ok {
		cfg.Flags.GovernanceEnabled = v
	}
	if v, ok := boolEnv("CONTROLPLANE_PHASE_G_ENABLED"); ok {
		cfg.Flags.PhaseGEnabled = v
	}
	if v, ok := boolEnv("CONTROLPLANE_PHASE_G_DRY_RUN"); ok {
		cfg.Flags.PhaseGDryRun = v
	}
}

func boolEnv(name string) (bool, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

// Validate enforces the configuration-error class spec §9 calls fatal at
// startup: a live scope with dry_run=false requires enable_live_orders=true
// as an explicit, separate confirmation.
func (c Config) Validate(live bool) error {
	if live && !c.Flags.DryRun && !c.Flags.EnableLiveOrders {
		return fmt.Errorf("config: live scope with dry_run=false requires enable_live_orders=true")
	}
	return nil
}
