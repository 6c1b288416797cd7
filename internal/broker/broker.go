// Package broker defines the adapter contract every execution venue must
// satisfy and the paper-trading safety invariant enforced across all of
// them: an adapter that cannot prove it is trading on paper refuses to
// start.
package broker

import (
	"context"
	"fmt"
	"time"
)

// OrderSide is the direction of an order.
type OrderSide string

const (
	Buy  OrderSide = "buy"
	Sell OrderSide = "sell"
)

// TimeInForce mirrors the broker-level order lifetime flags this system
// actually issues. OPG (at-the-open) is the default for swing-entry orders
// submitted ahead of the next session; Day is used for same-session closes.
type TimeInForce string

const (
	TimeInForceOPG TimeInForce = "opg"
	TimeInForceDay TimeInForce = "day"
)

// OrderStatus is the adapter-normalized status of a submitted order,
// collapsing each venue's own status vocabulary onto one small set.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPartial   OrderStatus = "partial"
	OrderFilled    OrderStatus = "filled"
	OrderCancelled OrderStatus = "cancelled"
	OrderRejected  OrderStatus = "rejected"
	OrderExpired   OrderStatus = "expired"
)

// OrderResult is the adapter-normalized result of submitting or querying an
// order.
type OrderResult struct {
	OrderID         string
	Symbol          string
	Side            OrderSide
	Quantity        float64
	Status          OrderStatus
	FilledQty       float64
	FilledPrice     float64
	SubmitTime      time.Time
	FillTime        time.Time
	RejectionReason string
}

// Position is the adapter-normalized view of a single open position.
type Position struct {
	Symbol           string
	Quantity         float64
	AvgEntryPrice    float64
	CurrentPrice     float64
	UnrealizedPnL    float64
	UnrealizedPnLPct float64
}

// IsLong reports whether the position is a long position.
func (p Position) IsLong() bool { return p.Quantity > 0 }

// Fill is one execution reported by the venue, as consumed by the
// reconciliation engine.
type Fill struct {
	FillID    string
	OrderID   string
	Symbol    string
	Side      OrderSide
	Quantity  float64
	Price     float64
	Timestamp time.Time
}

// Adapter is the contract every broker integration implements. All methods
// take a context so callers can bound venue latency; adapters are expected
// to wrap their own network calls with a rate limiter and circuit breaker.
type Adapter interface {
	// Name identifies the adapter for logging, metrics, and circuit-breaker
	// keying.
	Name() string

	// IsPaperTrading must return true. An adapter that cannot verify this
	// invariant must return an error rather than guess.
	IsPaperTrading(ctx context.Context) (bool, error)

	AccountEquity(ctx context.Context) (float64, error)
	BuyingPower(ctx context.Context) (float64, error)

	SubmitMarketOrder(ctx context.Context, symbol string, quantity float64, side OrderSide, tif TimeInForce) (OrderResult, error)
	GetOrderStatus(ctx context.Context, orderID string) (OrderResult, error)

	GetPositions(ctx context.Context) (map[string]Position, error)
	GetPosition(ctx context.Context, symbol string) (Position, bool, error)
	ClosePosition(ctx context.Context, symbol string) (OrderResult, error)

	// ListFills returns every fill reported since since (inclusive), used by
	// the reconciliation engine to rebuild position state from source of
	// truth.
	ListFills(ctx context.Context, since time.Time) ([]Fill, error)

	IsMarketOpen(ctx context.Context) (bool, error)
}

// ErrLiveTradingDetected is returned by an adapter's safety check when
// configuration points at a live trading endpoint. Submitting orders is
// refused; the process should not start.
type ErrLiveTradingDetected struct {
	Adapter string
	Detail  string
}

func (e *ErrLiveTradingDetected) Error() string {
	return fmt.Sprintf("broker %s: live trading detected, refusing to proceed: %s", e.Adapter, e.Detail)
}

// VerifyPaperTrading calls a.IsPaperTrading and turns a false result into an
// error, so callers can treat "verified paper" as the only success path.
func VerifyPaperTrading(ctx context.Context, a Adapter) error {
	ok, err := a.IsPaperTrading(ctx)
	if err != nil {
		return fmt.Errorf("broker %s: verify paper trading: %w", a.Name(), err)
	}
	if !ok {
		return &ErrLiveTradingDetected{Adapter: a.Name(), Detail: "adapter reported non-paper account"}
	}
	return nil
}
