package broker

import (
	"context"
	"testing"
)

func TestSimulatedAdapterIsAlwaysPaper(t *testing.T) {
	a, err := NewSimulatedAdapter("stub", t.TempDir(), 10000)
	if err != nil {
		t.Fatalf("NewSimulatedAdapter failed: %v", err)
	}
	ok, err := a.IsPaperTrading(context.Background())
	if err != nil || !ok {
		t.Fatalf("IsPaperTrading() = %v, %v; want true, nil", ok, err)
	}
	if err := VerifyPaperTrading(context.Background(), a); err != nil {
		t.Errorf("VerifyPaperTrading failed: %v", err)
	}
}

func TestSimulatedAdapterBuyThenSellRoundTrip(t *testing.T) {
	ctx := context.Background()
	a, err := NewSimulatedAdapter("stub", t.TempDir(), 10000)
	if err != nil {
		t.Fatalf("NewSimulatedAdapter failed: %v", err)
	}
	a.SetPrice("KO", 60.0)

	res, err := a.SubmitMarketOrder(ctx, "KO", 10, Buy, TimeInForceOPG)
	if err != nil {
		t.Fatalf("buy failed: %v", err)
	}
	if res.Status != OrderFilled || res.FilledQty != 10 {
		t.Errorf("unexpected buy result: %+v", res)
	}

	pos, ok, err := a.GetPosition(ctx, "KO")
	if err != nil || !ok {
		t.Fatalf("GetPosition failed: ok=%v err=%v", ok, err)
	}
	if pos.Quantity != 10 {
		t.Errorf("position quantity = %v, want 10", pos.Quantity)
	}

	closeRes, err := a.ClosePosition(ctx, "KO")
	if err != nil {
		t.Fatalf("ClosePosition failed: %v", err)
	}
	if closeRes.Side != Sell || closeRes.FilledQty != 10 {
		t.Errorf("unexpected close result: %+v", closeRes)
	}

	_, ok, err = a.GetPosition(ctx, "KO")
	if err != nil {
		t.Fatalf("GetPosition after close failed: %v", err)
	}
	if ok {
		pos, _, _ := a.GetPosition(ctx, "KO")
		if pos.Quantity != 0 {
			t.Errorf("expected flat position after close, got %+v", pos)
		}
	}
}

func TestSimulatedAdapterListFillsFiltersBySince(t *testing.T) {
	ctx := context.Background()
	a, err := NewSimulatedAdapter("stub", t.TempDir(), 10000)
	if err != nil {
		t.Fatalf("NewSimulatedAdapter failed: %v", err)
	}
	a.SetPrice("KO", 60.0)
	if _, err := a.SubmitMarketOrder(ctx, "KO", 5, Buy, TimeInForceOPG); err != nil {
		t.Fatalf("buy failed: %v", err)
	}

	fills, err := a.ListFills(ctx, a.fills[0].Timestamp)
	if err != nil {
		t.Fatalf("ListFills failed: %v", err)
	}
	if len(fills) != 1 {
		t.Fatalf("expected 1 fill, got %d", len(fills))
	}
}

func TestFactoryRejectsUnsupportedBroker(t *testing.T) {
	_, err := New(
		scopeFor("weirdbroker"),
		layoutFor(t),
		1000,
	)
	if err == nil {
		t.Error("expected error for unsupported broker")
	}
}
