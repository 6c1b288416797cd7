package broker

import (
	"fmt"
	"strings"

	"github.com/riftlabs/controlplane/internal/scope"
)

// New builds the Adapter for a scope's broker name. Broker selection is
// driven entirely by configuration (scope.Broker); no call site hardcodes a
// broker dependency.
func New(s scope.Scope, layout scope.Layout, startingCashUSD float64) (Adapter, error) {
	switch strings.ToLower(s.Broker) {
	case "alpaca":
		return NewAlpacaAdapter()
	case "kraken":
		return NewKrakenAdapter(layout.Root, startingCashUSD)
	case "nsesim", "nse_simulator":
		return NewSimulatedAdapter("nsesim", layout.Root, startingCashUSD)
	case "stub":
		return NewSimulatedAdapter("stub", layout.Root, startingCashUSD)
	default:
		return nil, fmt.Errorf("broker: unsupported broker %q (supported: alpaca, kraken, nsesim, stub)", s.Broker)
	}
}
