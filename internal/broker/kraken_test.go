package broker

import (
	"context"
	"net/url"
	"testing"
)

func TestKrakenSigningIsDeterministicForAFixedNonce(t *testing.T) {
	a := &KrakenAdapter{apiSecret: "dGVzdHNlY3JldA=="} // base64("testsecret")
	urlpath := "/0/private/AddOrder"
	vals := url.Values{
		"pair":      {"XBTUSD"},
		"type":      {"buy"},
		"ordertype": {"market"},
		"volume":    {"1.0"},
	}
	postdata := encodeSorted(vals)

	sig1, err := a.sign(urlpath, "1234567890", postdata)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	sig2, err := a.sign(urlpath, "1234567890", postdata)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if sig1 != sig2 {
		t.Errorf("signature not deterministic for a fixed nonce: %q != %q", sig1, sig2)
	}
}

func TestKrakenSigningChangesWithNonce(t *testing.T) {
	a := &KrakenAdapter{apiSecret: "dGVzdHNlY3JldA=="}
	sig1, err := a.sign("/0/private/Balance", "1", "nonce=1")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	sig2, err := a.sign("/0/private/Balance", "2", "nonce=2")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if sig1 == sig2 {
		t.Error("signature should differ when the nonce differs")
	}
}

func TestKrakenSymbolNormalizationRoundTrips(t *testing.T) {
	for _, symbol := range []string{"BTC/USD", "ETH/USD", "SOL/USD"} {
		kraken := toKrakenSymbol(symbol)
		if kraken == "" {
			t.Fatalf("failed to normalize %s", symbol)
		}
		restored := fromKrakenSymbol(kraken)
		if restored != symbol {
			t.Errorf("roundtrip failed: %s -> %s -> %s", symbol, kraken, restored)
		}
	}
}

func TestNewKrakenAdapterFallsBackToPaperModeWithoutCredentials(t *testing.T) {
	t.Setenv("KRAKEN_API_KEY", "")
	t.Setenv("KRAKEN_API_SECRET", "")

	a, err := NewKrakenAdapter(t.TempDir(), 10000)
	if err != nil {
		t.Fatalf("NewKrakenAdapter: %v", err)
	}
	ok, err := a.IsPaperTrading(context.Background())
	if err != nil {
		t.Fatalf("IsPaperTrading: %v", err)
	}
	if !ok {
		t.Error("adapter without credentials should report paper trading")
	}

	equity, err := a.AccountEquity(context.Background())
	if err != nil {
		t.Fatalf("AccountEquity: %v", err)
	}
	if equity <= 0 {
		t.Errorf("AccountEquity() = %v, want > 0", equity)
	}
}

func TestKrakenPaperOrderSubmissionFillsImmediately(t *testing.T) {
	t.Setenv("KRAKEN_API_KEY", "")
	t.Setenv("KRAKEN_API_SECRET", "")
	a, err := NewKrakenAdapter(t.TempDir(), 10000)
	if err != nil {
		t.Fatalf("NewKrakenAdapter: %v", err)
	}

	result, err := a.SubmitMarketOrder(context.Background(), "BTC/USD", 0.5, Buy, TimeInForceDay)
	if err != nil {
		t.Fatalf("SubmitMarketOrder: %v", err)
	}
	if result.OrderID == "" {
		t.Error("expected an order id")
	}
	if result.Status != OrderFilled {
		t.Errorf("Status = %q, want filled (paper mode simulates immediate fills)", result.Status)
	}
	if result.FilledQty != 0.5 {
		t.Errorf("FilledQty = %v, want 0.5", result.FilledQty)
	}
}

func TestKrakenRejectsInvalidOrderQuantity(t *testing.T) {
	t.Setenv("KRAKEN_API_KEY", "")
	t.Setenv("KRAKEN_API_SECRET", "")
	a, err := NewKrakenAdapter(t.TempDir(), 10000)
	if err != nil {
		t.Fatalf("NewKrakenAdapter: %v", err)
	}
	if _, err := a.SubmitMarketOrder(context.Background(), "BTC/USD", -0.1, Buy, TimeInForceDay); err == nil {
		t.Error("expected an error for a negative quantity")
	}
	if _, err := a.SubmitMarketOrder(context.Background(), "BTC/USD", 0, Buy, TimeInForceDay); err == nil {
		t.Error("expected an error for a zero quantity")
	}
}

func TestKrakenMarketIsAlwaysOpen(t *testing.T) {
	a := &KrakenAdapter{}
	open, err := a.IsMarketOpen(context.Background())
	if err != nil {
		t.Fatalf("IsMarketOpen: %v", err)
	}
	if !open {
		t.Error("Kraken's spot market should always report open")
	}
}

func TestFactoryBuildsKrakenAdapter(t *testing.T) {
	t.Setenv("KRAKEN_API_KEY", "")
	t.Setenv("KRAKEN_API_SECRET", "")
	a, err := New(scopeFor("kraken"), layoutFor(t), 5000)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if a.Name() != "kraken" {
		t.Errorf("Name() = %q, want %q", a.Name(), "kraken")
	}
}
