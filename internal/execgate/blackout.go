package execgate

import "time"

// EventProvider supplies corporate-event blackout windows (earnings, splits,
// dividends) for a symbol. A pluggable provider: the control plane does not
// own event sourcing.
type EventProvider interface {
	// BlackoutWindows returns the [start, end) windows during which symbol
	// must not be entered or scaled. An error indicates the provider could
	// not be reached.
	BlackoutWindows(symbol string) ([]BlackoutWindow, error)
}

// BlackoutWindow is one date range during which trading a symbol is blocked.
type BlackoutWindow struct {
	Start time.Time
	End   time.Time
	Event string
}

// BlackoutGate evaluates whether a symbol is inside a corporate-event
// blackout window. If the event provider is unavailable, the gate fails
// safe: it blocks rather than silently allowing a trade it couldn't check.
type BlackoutGate struct {
	provider EventProvider
}

// NewBlackoutGate wraps provider. A nil provider always fails safe (blocks
// everything), since there is nothing to check against.
func NewBlackoutGate(provider EventProvider) *BlackoutGate {
	return &BlackoutGate{provider: provider}
}

// Check reports whether symbol is currently inside a blackout window at t.
// When the provider is nil or returns an error, it reports blocked=true with
// a reason saying the provider is unavailable and the gate failed safe.
func (g *BlackoutGate) Check(symbol string, t time.Time) (blocked bool, reason string) {
	if g.provider == nil {
		return true, "corporate event provider unavailable, failing safe"
	}

	windows, err := g.provider.BlackoutWindows(symbol)
	if err != nil {
		return true, "corporate event provider unavailable, failing safe: " + err.Error()
	}

	for _, w := range windows {
		if !t.Before(w.Start) && t.Before(w.End) {
			return true, "blackout window active: " + w.Event
		}
	}
	return false, ""
}
