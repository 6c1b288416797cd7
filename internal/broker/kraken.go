package broker

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/riftlabs/controlplane/internal/net/circuit"
	"github.com/riftlabs/controlplane/internal/net/ratelimit"
)

const krakenBaseURL = "https://api.kraken.com"

// krakenSymbols maps this system's canonical "BASE/QUOTE" symbols onto
// Kraken's own pair names, and back.
var krakenSymbols = map[string]string{
	"BTC/USD":  "XBTUSD",
	"ETH/USD":  "ETHUSD",
	"SOL/USD":  "SOLUSD",
	"LINK/USD": "LINKUSD",
	"AVAX/USD": "AVAXUSD",
	"BTC/USDT": "XBTUSDT",
	"ETH/USDT": "ETHUSDT",
	"SOL/USDT": "SOLUSDT",
}

var krakenSymbolsReverse = func() map[string]string {
	m := make(map[string]string, len(krakenSymbols))
	for canonical, kraken := range krakenSymbols {
		m[kraken] = canonical
	}
	return m
}()

func toKrakenSymbol(symbol string) string {
	if k, ok := krakenSymbols[symbol]; ok {
		return k
	}
	return symbol
}

func fromKrakenSymbol(kraken string) string {
	if s, ok := krakenSymbolsReverse[kraken]; ok {
		return s
	}
	return kraken
}

// KrakenAdapter talks to the Kraken spot exchange REST API. Kraken has no
// venue-hosted paper-trading sandbox of its own (unlike Alpaca's
// paper-api.alpaca.markets), so without live credentials this adapter
// delegates every call to the same local, persisted book
// NewSimulatedAdapter already provides for other sandbox-less venues.
type KrakenAdapter struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	apiSecret  string
	limiter    *ratelimit.Limiter
	breaker    *circuit.Breaker

	paper *SimulatedAdapter
}

// NewKrakenAdapter builds an adapter from KRAKEN_API_KEY / KRAKEN_API_SECRET.
// Without both set it falls back to a local SimulatedAdapter, matching the
// original's paper_mode default; credentials alone never enable live order
// submission without the broker's own dry-run guard also being disarmed.
func NewKrakenAdapter(stateDir string, startingCashUSD float64) (*KrakenAdapter, error) {
	apiKey := os.Getenv("KRAKEN_API_KEY")
	apiSecret := os.Getenv("KRAKEN_API_SECRET")
	baseURL := os.Getenv("KRAKEN_API_BASE_URL")
	if baseURL == "" {
		baseURL = krakenBaseURL
	}

	adapter := &KrakenAdapter{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		limiter:    ratelimit.NewLimiter(3, 5),
		breaker: circuit.NewBreaker(circuit.Config{
			FailureThreshold: 5,
			SuccessThreshold: 2,
			Timeout:          30 * time.Second,
			RequestTimeout:   10 * time.Second,
		}),
	}
	if apiKey == "" || apiSecret == "" {
		paper, err := NewSimulatedAdapter("kraken", stateDir, startingCashUSD)
		if err != nil {
			return nil, err
		}
		adapter.paper = paper
	}
	return adapter, nil
}

func (a *KrakenAdapter) Name() string { return "kraken" }

// sign computes the Kraken API-Sign header per spec: HMAC-SHA512(urlpath +
// SHA256(nonce + postdata), base64-decoded api secret).
func (a *KrakenAdapter) sign(urlpath, nonce, postdata string) (string, error) {
	secret, err := base64.StdEncoding.DecodeString(a.apiSecret)
	if err != nil {
		return "", fmt.Errorf("kraken: decode api secret: %w", err)
	}
	shaSum := sha256.Sum256([]byte(nonce + postdata))
	mac := hmac.New(sha512.New, secret)
	mac.Write([]byte(urlpath))
	mac.Write(shaSum[:])
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

func (a *KrakenAdapter) requestPrivate(ctx context.Context, endpoint string, params url.Values, out any) error {
	if a.apiKey == "" || a.apiSecret == "" {
		return fmt.Errorf("kraken: missing KRAKEN_API_KEY/KRAKEN_API_SECRET")
	}
	if err := a.limiter.Wait(ctx, "kraken"); err != nil {
		return fmt.Errorf("kraken: rate limit wait: %w", err)
	}
	return a.breaker.Call(ctx, func(ctx context.Context) error {
		urlpath := "/0/private/" + endpoint
		if params == nil {
			params = url.Values{}
		}
		nonce := strconv.FormatInt(time.Now().UnixMilli(), 10)
		params.Set("nonce", nonce)
		postdata := encodeSorted(params)

		signature, err := a.sign(urlpath, nonce, postdata)
		if err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+urlpath, strings.NewReader(postdata))
		if err != nil {
			return fmt.Errorf("kraken: build request: %w", err)
		}
		req.Header.Set("API-Key", a.apiKey)
		req.Header.Set("API-Sign", signature)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		return a.doKraken(req, endpoint, out)
	})
}

func (a *KrakenAdapter) requestPublic(ctx context.Context, endpoint string, params url.Values, out any) error {
	if err := a.limiter.Wait(ctx, "kraken"); err != nil {
		return fmt.Errorf("kraken: rate limit wait: %w", err)
	}
	return a.breaker.Call(ctx, func(ctx context.Context) error {
		u := a.baseURL + "/0/public/" + endpoint
		if len(params) > 0 {
			u += "?" + params.Encode()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return fmt.Errorf("kraken: build request: %w", err)
		}
		return a.doKraken(req, endpoint, out)
	})
}

type krakenEnvelope struct {
	Error  []string `json:"error"`
	Result json.RawMessage `json:"result"`
}

func (a *KrakenAdapter) doKraken(req *http.Request, endpoint string, out any) error {
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("kraken: %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	var envelope krakenEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("kraken: %s: decode response: %w", endpoint, err)
	}
	if len(envelope.Error) > 0 {
		return fmt.Errorf("kraken: %s: %s", endpoint, strings.Join(envelope.Error, "; "))
	}
	if out != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("kraken: %s: decode result: %w", endpoint, err)
		}
	}
	return nil
}

// encodeSorted URL-encodes params in key-sorted order, matching
// KrakenSigner.sign_request's deterministic postdata construction (needed so
// the computed signature matches the body actually sent).
func encodeSorted(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params.Get(k)))
	}
	return b.String()
}

// IsPaperTrading is true whenever no live credentials are configured; a
// Kraken adapter with credentials set is always treated as a live venue
// since Kraken has no separate paper-trading endpoint to verify against.
func (a *KrakenAdapter) IsPaperTrading(ctx context.Context) (bool, error) {
	return a.paper != nil, nil
}

func (a *KrakenAdapter) AccountEquity(ctx context.Context) (float64, error) {
	if a.paper != nil {
		return a.paper.AccountEquity(ctx)
	}
	var balances map[string]string
	if err := a.requestPrivate(ctx, "Balance", nil, &balances); err != nil {
		return 0, fmt.Errorf("kraken: account equity: %w", err)
	}
	usd, _ := strconv.ParseFloat(balances["ZUSD"], 64)
	return usd, nil
}

func (a *KrakenAdapter) BuyingPower(ctx context.Context) (float64, error) {
	return a.AccountEquity(ctx)
}

func (a *KrakenAdapter) SubmitMarketOrder(ctx context.Context, symbol string, quantity float64, side OrderSide, tif TimeInForce) (OrderResult, error) {
	if symbol == "" {
		return OrderResult{}, fmt.Errorf("kraken: invalid symbol %q", symbol)
	}
	if quantity <= 0 {
		return OrderResult{}, fmt.Errorf("kraken: quantity must be positive, got %v", quantity)
	}
	if side != Buy && side != Sell {
		return OrderResult{}, fmt.Errorf("kraken: side must be buy or sell, got %q", side)
	}

	if a.paper != nil {
		return a.paper.SubmitMarketOrder(ctx, symbol, quantity, side, tif)
	}

	params := url.Values{
		"pair":      {toKrakenSymbol(symbol)},
		"type":      {string(side)},
		"ordertype": {"market"},
		"volume":    {strconv.FormatFloat(quantity, 'f', -1, 64)},
	}
	var result struct {
		TxID []string `json:"txid"`
	}
	if err := a.requestPrivate(ctx, "AddOrder", params, &result); err != nil {
		return OrderResult{}, fmt.Errorf("kraken: submit order for %s: %w", symbol, err)
	}
	if len(result.TxID) == 0 {
		return OrderResult{}, fmt.Errorf("kraken: submit order for %s: no order id in response", symbol)
	}
	return OrderResult{
		OrderID:    result.TxID[0],
		Symbol:     symbol,
		Side:       side,
		Quantity:   quantity,
		Status:     OrderPending,
		SubmitTime: time.Now().UTC(),
	}, nil
}

func (a *KrakenAdapter) GetOrderStatus(ctx context.Context, orderID string) (OrderResult, error) {
	if orderID == "" {
		return OrderResult{}, fmt.Errorf("kraken: order_id cannot be empty")
	}
	if a.paper != nil {
		return a.paper.GetOrderStatus(ctx, orderID)
	}

	params := url.Values{"txid": {orderID}}
	var result map[string]struct {
		Status string `json:"status"`
		Vol    string `json:"vol"`
		VolExe string `json:"vol_exec"`
		Descr  struct {
			Type string `json:"type"`
			Pair string `json:"pair"`
		} `json:"descr"`
	}
	if err := a.requestPrivate(ctx, "QueryOrders", params, &result); err != nil {
		return OrderResult{}, fmt.Errorf("kraken: order not found %s: %w", orderID, err)
	}
	order, ok := result[orderID]
	if !ok {
		return OrderResult{}, fmt.Errorf("kraken: order not found %s", orderID)
	}
	qty, _ := strconv.ParseFloat(order.Vol, 64)
	filledQty, _ := strconv.ParseFloat(order.VolExe, 64)
	return OrderResult{
		OrderID:   orderID,
		Symbol:    fromKrakenSymbol(order.Descr.Pair),
		Side:      OrderSide(strings.ToLower(order.Descr.Type)),
		Quantity:  qty,
		Status:    krakenStatusToStandard(order.Status),
		FilledQty: filledQty,
	}, nil
}

func krakenStatusToStandard(s string) OrderStatus {
	switch s {
	case "closed":
		return OrderFilled
	case "canceled":
		return OrderCancelled
	case "expired":
		return OrderExpired
	default:
		return OrderPending
	}
}

func (a *KrakenAdapter) GetPositions(ctx context.Context) (map[string]Position, error) {
	if a.paper != nil {
		return a.paper.GetPositions(ctx)
	}
	var balances map[string]string
	if err := a.requestPrivate(ctx, "Balance", nil, &balances); err != nil {
		return map[string]Position{}, nil
	}
	result := make(map[string]Position, len(balances))
	for krakenSymbol, balanceStr := range balances {
		symbol := fromKrakenSymbol(krakenSymbol)
		qty, _ := strconv.ParseFloat(balanceStr, 64)
		if qty <= 0 {
			continue
		}
		result[symbol] = Position{Symbol: symbol, Quantity: qty}
	}
	return result, nil
}

func (a *KrakenAdapter) GetPosition(ctx context.Context, symbol string) (Position, bool, error) {
	positions, err := a.GetPositions(ctx)
	if err != nil {
		return Position{}, false, err
	}
	p, ok := positions[symbol]
	return p, ok, nil
}

func (a *KrakenAdapter) ClosePosition(ctx context.Context, symbol string) (OrderResult, error) {
	pos, ok, err := a.GetPosition(ctx, symbol)
	if err != nil {
		return OrderResult{}, err
	}
	if !ok {
		return OrderResult{}, fmt.Errorf("kraken: no position found for %s", symbol)
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

func (a *KrakenAdapter) ListFills(ctx context.Context, since time.Time) ([]Fill, error) {
	if a.paper != nil {
		return a.paper.ListFills(ctx, since)
	}

	params := url.Values{"start": {strconv.FormatInt(since.Unix(), 10)}}
	var result struct {
		Trades map[string]struct {
			OrderTxID string `json:"ordertxid"`
			Pair      string `json:"pair"`
			Time      float64 `json:"time"`
			Type      string `json:"type"`
			Vol       string `json:"vol"`
			Price     string `json:"price"`
		} `json:"trades"`
	}
	if err := a.requestPrivate(ctx, "TradesHistory", params, &result); err != nil {
		return nil, fmt.Errorf("kraken: list fills since %s: %w", since, err)
	}
	fills := make([]Fill, 0, len(result.Trades))
	for txID, trade := range result.Trades {
		qty, _ := strconv.ParseFloat(trade.Vol, 64)
		price, _ := strconv.ParseFloat(trade.Price, 64)
		fills = append(fills, Fill{
			FillID:    txID,
			OrderID:   trade.OrderTxID,
			Symbol:    fromKrakenSymbol(trade.Pair),
			Side:      OrderSide(strings.ToLower(trade.Type)),
			Quantity:  qty,
			Price:     price,
			Timestamp: time.Unix(int64(trade.Time), 0).UTC(),
		})
	}
	return fills, nil
}

// IsMarketOpen is always true: Kraken's spot market trades 24/7.
func (a *KrakenAdapter) IsMarketOpen(ctx context.Context) (bool, error) {
	return true, nil
}

// Preflight validates connectivity and authentication before trading
// begins, ported from KrakenPreflight.check_all: ping the public
// SystemStatus endpoint, then (when live credentials are configured)
// confirm the private Balance endpoint authenticates. In paper mode there
// is nothing to preflight since every call stays local.
func (a *KrakenAdapter) Preflight(ctx context.Context) error {
	if a.paper != nil {
		return nil
	}
	var status struct {
		Status string `json:"status"`
	}
	if err := a.requestPublic(ctx, "SystemStatus", nil, &status); err != nil {
		return fmt.Errorf("kraken: preflight connectivity check: %w", err)
	}
	if status.Status != "online" {
		return fmt.Errorf("kraken: preflight: system status is %q, want online", status.Status)
	}
	if _, err := a.AccountEquity(ctx); err != nil {
		return fmt.Errorf("kraken: preflight authentication check: %w", err)
	}
	return nil
}
