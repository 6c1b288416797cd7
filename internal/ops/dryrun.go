package ops

import (
	"context"
	"time"

	"github.com/riftlabs/controlplane/internal/broker"
)

// DryRunReason is the RejectionReason stamped on every synthetic order the
// dry-run guard produces instead of contacting the broker.
const DryRunReason = "DRY_RUN"

// DryRunGuard wraps a broker.Adapter and, when DryRun is true, intercepts
// every order-submitting call with a synthetic REJECTED result instead of
// reaching the venue. Read-only calls (positions, equity, fills) pass
// through unchanged so reconciliation keeps working in dry-run mode.
type DryRunGuard struct {
	broker.Adapter
	DryRun bool
}

// NewDryRunGuard wraps adapter; dryRun should come from Flags.DryRun &&
// !Flags.EnableLiveOrders evaluated once at scope startup.
func NewDryRunGuard(adapter broker.Adapter, dryRun bool) *DryRunGuard {
	return &DryRunGuard{Adapter: adapter, DryRun: dryRun}
}

// SubmitMarketOrder short-circuits to a synthetic rejection when dry-run is
// active; otherwise it delegates to the wrapped adapter.
func (g *DryRunGuard) SubmitMarketOrder(ctx context.Context, symbol string, quantity float64, side broker.OrderSide, tif broker.TimeInForce) (broker.OrderResult, error) {
	if g.DryRun {
		return broker.OrderResult{
			Symbol:          symbol,
			Side:            side,
			Quantity:        quantity,
			Status:          broker.OrderRejected,
			SubmitTime:      time.Now().UTC(),
			RejectionReason: DryRunReason,
		}, nil
	}
	return g.Adapter.SubmitMarketOrder(ctx, symbol, quantity, side, tif)
}

// ClosePosition short-circuits the same way: a dry-run close never reaches
// the venue.
func (g *DryRunGuard) ClosePosition(ctx context.Context, symbol string) (broker.OrderResult, error) {
	if g.DryRun {
		return broker.OrderResult{
			Symbol:          symbol,
			Status:          broker.OrderRejected,
			SubmitTime:      time.Now().UTC(),
			RejectionReason: DryRunReason,
		}, nil
	}
	return g.Adapter.ClosePosition(ctx, symbol)
}
