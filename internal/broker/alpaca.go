package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/riftlabs/controlplane/internal/net/circuit"
	"github.com/riftlabs/controlplane/internal/net/ratelimit"
)

const alpacaPaperBaseURL = "https://paper-api.alpaca.markets"

// AlpacaAdapter talks to the Alpaca Markets trading API. It refuses to
// operate against anything other than the paper trading base URL.
type AlpacaAdapter struct {
	httpClient *http.Client
	baseURL    string
	keyID      string
	secretKey  string
	limiter    *ratelimit.Limiter
	breaker    *circuit.Breaker
}

// NewAlpacaAdapter builds an adapter from environment configuration,
// matching APCA_API_KEY_ID / APCA_API_SECRET_KEY / APCA_API_BASE_URL.
func NewAlpacaAdapter() (*AlpacaAdapter, error) {
	keyID := os.Getenv("APCA_API_KEY_ID")
	secretKey := os.Getenv("APCA_API_SECRET_KEY")
	baseURL := os.Getenv("APCA_API_BASE_URL")
	if baseURL == "" {
		baseURL = alpacaPaperBaseURL
	}
	if keyID == "" || secretKey == "" {
		return nil, fmt.Errorf("alpaca: missing APCA_API_KEY_ID/APCA_API_SECRET_KEY")
	}
	if !strings.Contains(baseURL, "paper-api") {
		return nil, &ErrLiveTradingDetected{Adapter: "alpaca", Detail: fmt.Sprintf("base url %q is not the paper endpoint", baseURL)}
	}

	return &AlpacaAdapter{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
		keyID:      keyID,
		secretKey:  secretKey,
		limiter:    ratelimit.NewLimiter(3, 5),
		breaker: circuit.NewBreaker(circuit.Config{
			FailureThreshold: 5,
			SuccessThreshold: 2,
			Timeout:          30 * time.Second,
			RequestTimeout:   10 * time.Second,
		}),
	}, nil
}

func (a *AlpacaAdapter) Name() string { return "alpaca" }

func (a *AlpacaAdapter) do(ctx context.Context, method, path string, body any, out any) error {
	if err := a.limiter.Wait(ctx, "alpaca"); err != nil {
		return fmt.Errorf("alpaca: rate limit wait: %w", err)
	}
	return a.breaker.Call(ctx, func(ctx context.Context) error {
		var bodyReader *strings.Reader
		if body != nil {
			data, err := json.Marshal(body)
			if err != nil {
				return fmt.Errorf("alpaca: marshal request: %w", err)
			}
			bodyReader = strings.NewReader(string(data))
		} else {
			bodyReader = strings.NewReader("")
		}

		req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, bodyReader)
		if err != nil {
			return fmt.Errorf("alpaca: build request: %w", err)
		}
		req.Header.Set("APCA-API-KEY-ID", a.keyID)
		req.Header.Set("APCA-API-SECRET-KEY", a.secretKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := a.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("alpaca: %s %s: %w", method, path, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return fmt.Errorf("alpaca: %s %s: status %d", method, path, resp.StatusCode)
		}
		if out != nil {
			return json.NewDecoder(resp.Body).Decode(out)
		}
		return nil
	})
}

type alpacaAccount struct {
	Equity          string `json:"equity"`
	BuyingPower     string `json:"buying_power"`
	TradingBlocked  bool   `json:"trading_blocked"`
	AccountBlocked  bool   `json:"account_blocked"`
	Status          string `json:"status"`
}

func (a *AlpacaAdapter) account(ctx context.Context) (alpacaAccount, error) {
	var acct alpacaAccount
	if err := a.do(ctx, http.MethodGet, "/v2/account", nil, &acct); err != nil {
		return alpacaAccount{}, err
	}
	return acct, nil
}

func (a *AlpacaAdapter) IsPaperTrading(ctx context.Context) (bool, error) {
	if !strings.Contains(a.baseURL, "paper-api") {
		return false, nil
	}
	acct, err := a.account(ctx)
	if err != nil {
		return false, fmt.Errorf("alpaca: verify paper trading: %w", err)
	}
	if acct.TradingBlocked || acct.AccountBlocked {
		return false, fmt.Errorf("alpaca: account blocked (trading_blocked=%v account_blocked=%v)", acct.TradingBlocked, acct.AccountBlocked)
	}
	return true, nil
}

func (a *AlpacaAdapter) AccountEquity(ctx context.Context) (float64, error) {
	acct, err := a.account(ctx)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(acct.Equity, 64)
}

func (a *AlpacaAdapter) BuyingPower(ctx context.Context) (float64, error) {
	acct, err := a.account(ctx)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(acct.BuyingPower, 64)
}

type alpacaOrderRequest struct {
	Symbol      string `json:"symbol"`
	Qty         string `json:"qty"`
	Side        string `json:"side"`
	Type        string `json:"type"`
	TimeInForce string `json:"time_in_force"`
}

type alpacaOrder struct {
	ID             string `json:"id"`
	Symbol         string `json:"symbol"`
	Side           string `json:"side"`
	Qty            string `json:"qty"`
	Status         string `json:"status"`
	FilledQty      string `json:"filled_qty"`
	FilledAvgPrice string `json:"filled_avg_price"`
	CreatedAt      string `json:"created_at"`
	FilledAt       string `json:"filled_at"`
	CancelReason   string `json:"cancel_reason"`
}

func alpacaStatusToStandard(s string) OrderStatus {
	switch s {
	case "filled":
		return OrderFilled
	case "partially_filled":
		return OrderPartial
	case "cancelled", "pending_cancel", "rejected_cancel":
		return OrderCancelled
	case "rejected", "stopped":
		return OrderRejected
	case "expired":
		return OrderExpired
	default:
		return OrderPending
	}
}

func (o alpacaOrder) toResult() OrderResult {
	qty, _ := strconv.ParseFloat(o.Qty, 64)
	filledQty, _ := strconv.ParseFloat(o.FilledQty, 64)
	filledPrice, _ := strconv.ParseFloat(o.FilledAvgPrice, 64)
	submitTime, _ := time.Parse(time.RFC3339, o.CreatedAt)
	var fillTime time.Time
	if o.FilledAt != "" {
		fillTime, _ = time.Parse(time.RFC3339, o.FilledAt)
	}
	return OrderResult{
		OrderID:         o.ID,
		Symbol:          o.Symbol,
		Side:            OrderSide(strings.ToLower(o.Side)),
		Quantity:        qty,
		Status:          alpacaStatusToStandard(o.Status),
		FilledQty:       filledQty,
		FilledPrice:     filledPrice,
		SubmitTime:      submitTime,
		FillTime:        fillTime,
		RejectionReason: o.CancelReason,
	}
}

func (a *AlpacaAdapter) SubmitMarketOrder(ctx context.Context, symbol string, quantity float64, side OrderSide, tif TimeInForce) (OrderResult, error) {
	if symbol == "" {
		return OrderResult{}, fmt.Errorf("alpaca: invalid symbol %q", symbol)
	}
	if quantity <= 0 {
		return OrderResult{}, fmt.Errorf("alpaca: quantity must be positive, got %v", quantity)
	}
	if side != Buy && side != Sell {
		return OrderResult{}, fmt.Errorf("alpaca: side must be buy or sell, got %q", side)
	}

	req := alpacaOrderRequest{
		Symbol:      strings.ToUpper(symbol),
		Qty:         strconv.FormatFloat(quantity, 'f', -1, 64),
		Side:        string(side),
		Type:        "market",
		TimeInForce: string(tif),
	}

	var order alpacaOrder
	if err := a.do(ctx, http.MethodPost, "/v2/orders", req, &order); err != nil {
		return OrderResult{}, fmt.Errorf("alpaca: submit order for %s: %w", symbol, err)
	}
	return order.toResult(), nil
}

func (a *AlpacaAdapter) GetOrderStatus(ctx context.Context, orderID string) (OrderResult, error) {
	if orderID == "" {
		return OrderResult{}, fmt.Errorf("alpaca: order_id cannot be empty")
	}
	var order alpacaOrder
	if err := a.do(ctx, http.MethodGet, "/v2/orders/"+orderID, nil, &order); err != nil {
		return OrderResult{}, fmt.Errorf("alpaca: order not found %s: %w", orderID, err)
	}
	return order.toResult(), nil
}

type alpacaPosition struct {
	Symbol         string `json:"symbol"`
	Qty            string `json:"qty"`
	AvgEntryPrice  string `json:"avg_entry_price"`
	CurrentPrice   string `json:"current_price"`
	UnrealizedPL   string `json:"unrealized_pl"`
	UnrealizedPLPC string `json:"unrealized_plpc"`
}

func (a *AlpacaAdapter) GetPositions(ctx context.Context) (map[string]Position, error) {
	var positions []alpacaPosition
	if err := a.do(ctx, http.MethodGet, "/v2/positions", nil, &positions); err != nil {
		return map[string]Position{}, nil
	}

	result := make(map[string]Position, len(positions))
	for _, p := range positions {
		qty, _ := strconv.ParseFloat(p.Qty, 64)
		avg, _ := strconv.ParseFloat(p.AvgEntryPrice, 64)
		cur, _ := strconv.ParseFloat(p.CurrentPrice, 64)
		pnl, _ := strconv.ParseFloat(p.UnrealizedPL, 64)
		pnlPct, _ := strconv.ParseFloat(p.UnrealizedPLPC, 64)
		result[p.Symbol] = Position{
			Symbol:           p.Symbol,
			Quantity:         qty,
			AvgEntryPrice:    avg,
			CurrentPrice:     cur,
			UnrealizedPnL:    pnl,
			UnrealizedPnLPct: pnlPct,
		}
	}
	return result, nil
}

func (a *AlpacaAdapter) GetPosition(ctx context.Context, symbol string) (Position, bool, error) {
	positions, err := a.GetPositions(ctx)
	if err != nil {
		return Position{}, false, err
	}
	p, ok := positions[strings.ToUpper(symbol)]
	return p, ok, nil
}

func (a *AlpacaAdapter) ClosePosition(ctx context.Context, symbol string) (OrderResult, error) {
	pos, ok, err := a.GetPosition(ctx, symbol)
	if err != nil {
		return OrderResult{}, err
	}
	if !ok {
		return OrderResult{}, fmt.Errorf("alpaca: no position found for %s", symbol)
	}
	side := Sell
	if !pos.IsLong() {
		side = Buy
	}
	qty := pos.Quantity
	if qty < 0 {
		qty = -qty
	}
	return a.SubmitMarketOrder(ctx, symbol, qty, side, TimeInForceDay)
}

type alpacaFillActivity struct {
	ID              string `json:"id"`
	ActivityType    string `json:"activity_type"`
	TransactionTime string `json:"transaction_time"`
	OrderID         string `json:"order_id"`
	Symbol          string `json:"symbol"`
	Side            string `json:"side"`
	Qty             string `json:"qty"`
	Price           string `json:"price"`
}

func (a *AlpacaAdapter) ListFills(ctx context.Context, since time.Time) ([]Fill, error) {
	path := fmt.Sprintf("/v2/account/activities/FILL?after=%s", since.UTC().Format(time.RFC3339))
	var activities []alpacaFillActivity
	if err := a.do(ctx, http.MethodGet, path, nil, &activities); err != nil {
		return nil, fmt.Errorf("alpaca: list fills since %s: %w", since, err)
	}

	fills := make([]Fill, 0, len(activities))
	for _, act := range activities {
		ts, _ := time.Parse(time.RFC3339, act.TransactionTime)
		qty, _ := strconv.ParseFloat(act.Qty, 64)
		price, _ := strconv.ParseFloat(act.Price, 64)
		fills = append(fills, Fill{
			FillID:    act.ID,
			OrderID:   act.OrderID,
			Symbol:    act.Symbol,
			Side:      OrderSide(strings.ToLower(act.Side)),
			Quantity:  qty,
			Price:     price,
			Timestamp: ts,
		})
	}
	return fills, nil
}

type alpacaClock struct {
	IsOpen bool `json:"is_open"`
}

func (a *AlpacaAdapter) IsMarketOpen(ctx context.Context) (bool, error) {
	var clock alpacaClock
	if err := a.do(ctx, http.MethodGet, "/v2/clock", nil, &clock); err != nil {
		return false, fmt.Errorf("alpaca: get market clock: %w", err)
	}
	return clock.IsOpen, nil
}
