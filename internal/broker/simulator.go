package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/riftlabs/controlplane/internal/scope"
)

// SimulatedAdapter is a paper-only broker backed by local state, used for
// markets without a live paper sandbox (e.g. an NSE simulator) and for
// tests. It always reports IsPaperTrading true.
type SimulatedAdapter struct {
	name      string
	statePath string

	mu        sync.Mutex
	cashUSD   float64
	positions map[string]Position
	fills     []Fill
}

type simulatedState struct {
	CashUSD   float64             `json:"cash_usd"`
	Positions map[string]Position `json:"positions"`
	Fills     []Fill              `json:"fills"`
}

// NewSimulatedAdapter creates a simulated adapter that persists its book
// under stateDir, starting with startingCashUSD if no prior state exists.
func NewSimulatedAdapter(name, stateDir string, startingCashUSD float64) (*SimulatedAdapter, error) {
	a := &SimulatedAdapter{
		name:      name,
		statePath: stateDir + "/" + name + "_simulated_state.json",
		cashUSD:   startingCashUSD,
		positions: map[string]Position{},
	}

	var st simulatedState
	err := scope.ReadJSON(a.statePath, &st)
	if err == nil {
		a.cashUSD = st.CashUSD
		a.positions = st.Positions
		a.fills = st.Fills
	}
	return a, nil
}

func (a *SimulatedAdapter) Name() string { return a.name }

func (a *SimulatedAdapter) persist() error {
	st := simulatedState{CashUSD: a.cashUSD, Positions: a.positions, Fills: a.fills}
	return scope.WriteJSONAtomic(a.statePath, st)
}

func (a *SimulatedAdapter) IsPaperTrading(ctx context.Context) (bool, error) {
	return true, nil
}

func (a *SimulatedAdapter) AccountEquity(ctx context.Context) (float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	equity := a.cashUSD
	for _, p := range a.positions {
		equity += p.Quantity * p.CurrentPrice
	}
	return equity, nil
}

func (a *SimulatedAdapter) BuyingPower(ctx context.Context) (float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cashUSD, nil
}

func (a *SimulatedAdapter) SubmitMarketOrder(ctx context.Context, symbol string, quantity float64, side OrderSide, tif TimeInForce) (OrderResult, error) {
	if quantity <= 0 {
		return OrderResult{}, fmt.Errorf("simulated %s: quantity must be positive, got %v", a.name, quantity)
	}
	if side != Buy && side != Sell {
		return OrderResult{}, fmt.Errorf("simulated %s: side must be buy or sell, got %q", a.name, side)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	pos := a.positions[symbol]
	price := pos.CurrentPrice
	if price == 0 {
		price = 1.0
	}

	signedQty := quantity
	if side == Sell {
		signedQty = -quantity
	}

	newQty := pos.Quantity + signedQty
	if side == Buy {
		totalCost := pos.Quantity*pos.AvgEntryPrice + quantity*price
		if newQty != 0 {
			pos.AvgEntryPrice = totalCost / newQty
		}
	}
	pos.Symbol = symbol
	pos.Quantity = newQty
	pos.CurrentPrice = price
	a.positions[symbol] = pos

	a.cashUSD -= signedQty * price

	now := time.Now().UTC()
	orderID := uuid.NewString()
	a.fills = append(a.fills, Fill{
		FillID:    uuid.NewString(),
		OrderID:   orderID,
		Symbol:    symbol,
		Side:      side,
		Quantity:  quantity,
		Price:     price,
		Timestamp: now,
	})

	if err := a.persist(); err != nil {
		return OrderResult{}, fmt.Errorf("simulated %s: persist state: %w", a.name, err)
	}

	return OrderResult{
		OrderID:     orderID,
		Symbol:      symbol,
		Side:        side,
		Quantity:    quantity,
		Status:      OrderFilled,
		FilledQty:   quantity,
		FilledPrice: price,
		SubmitTime:  now,
		FillTime:    now,
	}, nil
}

func (a *SimulatedAdapter) GetOrderStatus(ctx context.Context, orderID string) (OrderResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, f := range a.fills {
		if f.OrderID == orderID {
			return OrderResult{
				OrderID:     f.OrderID,
				Symbol:      f.Symbol,
				Side:        f.Side,
				Quantity:    f.Quantity,
				Status:      OrderFilled,
				FilledQty:   f.Quantity,
				FilledPrice: f.Price,
				SubmitTime:  f.Timestamp,
				FillTime:    f.Timestamp,
			}, nil
		}
	}
	return OrderResult{}, fmt.Errorf("simulated %s: order not found %s", a.name, orderID)
}

func (a *SimulatedAdapter) GetPositions(ctx context.Context) (map[string]Position, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]Position, len(a.positions))
	for k, v := range a.positions {
		out[k] = v
	}
	return out, nil
}

func (a *SimulatedAdapter) GetPosition(ctx context.Context, symbol string) (Position, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.positions[symbol]
	return p, ok, nil
}

func (a *SimulatedAdapter) ClosePosition(ctx context.Context, symbol string) (OrderResult, error) {
	pos, ok, err := a.GetPosition(ctx, symbol)
	if err != nil {
		return OrderResult{}, err
	}
	if !ok {
		return OrderResult{}, fmt.Errorf("simulated %s: no position found for %s", a.name, symbol)
	}
	side := Sell
	qty := pos.Quantity
	if !pos.IsLong() {
		side = Buy
		qty = -qty
	}
	return a.SubmitMarketOrder(ctx, symbol, qty, side, TimeInForceDay)
}

func (a *SimulatedAdapter) ListFills(ctx context.Context, since time.Time) ([]Fill, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Fill, 0, len(a.fills))
	for _, f := range a.fills {
		if !f.Timestamp.Before(since) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (a *SimulatedAdapter) IsMarketOpen(ctx context.Context) (bool, error) {
	return true, nil
}

// SetPrice updates the mark used for unrealized PnL and the next fill, as
// would be fed by a market-data feed in the real system.
func (a *SimulatedAdapter) SetPrice(symbol string, price float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	pos := a.positions[symbol]
	pos.Symbol = symbol
	pos.CurrentPrice = price
	if pos.AvgEntryPrice != 0 {
		pos.UnrealizedPnL = pos.Quantity * (price - pos.AvgEntryPrice)
		if pos.AvgEntryPrice != 0 {
			pos.UnrealizedPnLPct = (price - pos.AvgEntryPrice) / pos.AvgEntryPrice
		}
	}
	a.positions[symbol] = pos
}
