package ops

import (
	"sync"
	"time"

	"github.com/riftlabs/controlplane/internal/config"
)

// FlagManager is a mutex-guarded, runtime-mutable view over config.Flags —
// the feature-flag set every task and broker call consults before doing
// anything observable. Changes take effect immediately for every reader;
// nothing here is persisted, matching the teacher's in-memory
// SwitchManager (persistence of operator-toggled state is a deploy-level
// concern, not this process's).
type FlagManager struct {
	mu          sync.RWMutex
	flags       config.Flags
	lastUpdated map[string]time.Time
}

// NewFlagManager seeds a FlagManager from an initial flag set, typically
// config.Config.Flags as loaded at startup.
func NewFlagManager(initial config.Flags) *FlagManager {
	return &FlagManager{
		flags:       initial,
		lastUpdated: make(map[string]time.Time),
	}
}

// Snapshot returns the current flag values.
func (f *FlagManager) Snapshot() config.Flags {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.flags
}

// DryRun reports whether order submission is currently in dry-run mode.
func (f *FlagManager) DryRun() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.flags.DryRun
}

// LiveOrdersEnabled reports whether live order submission is armed.
func (f *FlagManager) LiveOrdersEnabled() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.flags.EnableLiveOrders
}

// GovernanceEnabled reports whether the constitutional governance task
// should run on its next scheduled tick.
func (f *FlagManager) GovernanceEnabled() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.flags.GovernanceEnabled
}

// PhaseGEnabled reports whether the regime-validation task should run.
func (f *FlagManager) PhaseGEnabled() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.flags.PhaseGEnabled
}

// PhaseGDryRun reports whether regime validation runs in observe-only mode.
func (f *FlagManager) PhaseGDryRun() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.flags.PhaseGDryRun
}

// Set updates one named flag. Unknown names are a no-op, matching the
// teacher's SetEmergencySwitch's tolerant switch statement.
func (f *FlagManager) Set(name string, value bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch name {
	case "dry_run":
		f.flags.DryRun = value
	case "enable_live_orders":
		f.flags.EnableLiveOrders = value
	case "governance_enabled":
		f.flags.GovernanceEnabled = value
	case "phase_g_enabled":
		f.flags.PhaseGEnabled = value
	case "phase_g_dry_run":
		f.flags.PhaseGDryRun = value
	default:
		return
	}
	f.lastUpdated[name] = time.Now()
}

// LastUpdated returns when name was last changed via Set, and whether it
// has ever been changed.
func (f *FlagManager) LastUpdated(name string) (time.Time, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	t, ok := f.lastUpdated[name]
	return t, ok
}
