package broker

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"quantcore/internal/domain/models"
)

func fixedQuote(price float64) QuoteFunc {
	return func(context.Context, string) (float64, error) { return price, nil }
}

func TestPaperAccountBuySell(t *testing.T) {
	acc := NewPaperAccount(decimal.NewFromInt(1000), fixedQuote(100), nil)
	ctx := context.Background()

	id, err := acc.ResolveInstrument(ctx, "SBER")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if _, err := acc.PlaceMarketOrder(ctx, id, models.Buy, 2); err != nil {
		t.Fatalf("buy: %v", err)
	}
	bal, err := acc.Balance(ctx)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !bal.Equal(decimal.NewFromInt(800)) {
		t.Fatalf("balance after buy = %s, want 800", bal)
	}

	if _, err := acc.PlaceMarketOrder(ctx, id, models.Sell, 2); err != nil {
		t.Fatalf("sell: %v", err)
	}
	bal, err = acc.Balance(ctx)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !bal.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("balance after round trip = %s, want 1000", bal)
	}
}

func TestPaperAccountResolveStable(t *testing.T) {
	acc := NewPaperAccount(decimal.NewFromInt(1000), fixedQuote(100), nil)
	ctx := context.Background()

	a, err := acc.ResolveInstrument(ctx, "SBER")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	b, err := acc.ResolveInstrument(ctx, "SBER")
	if err != nil {
		t.Fatalf("resolve again: %v", err)
	}
	if a != b {
		t.Fatalf("instrument id changed: %s vs %s", a, b)
	}

	if _, err := acc.ResolveInstrument(ctx, ""); err == nil {
		t.Fatalf("expected error for empty ticker")
	}
}

func TestPaperAccountInsufficientFunds(t *testing.T) {
	acc := NewPaperAccount(decimal.NewFromInt(50), fixedQuote(100), nil)
	ctx := context.Background()

	id, err := acc.ResolveInstrument(ctx, "SBER")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	_, err = acc.PlaceMarketOrder(ctx, id, models.Buy, 1)
	var fatal *FatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("err = %v, want FatalError", err)
	}
	if IsTransient(err) {
		t.Fatalf("insufficient funds must not be retryable")
	}

	bal, err := acc.Balance(ctx)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !bal.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("failed order moved the balance to %s", bal)
	}
}

func TestPaperAccountQuoteFailureTransient(t *testing.T) {
	quote := func(context.Context, string) (float64, error) {
		return 0, errors.New("feed down")
	}
	acc := NewPaperAccount(decimal.NewFromInt(1000), quote, nil)
	ctx := context.Background()

	id, err := acc.ResolveInstrument(ctx, "SBER")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	_, err = acc.PlaceMarketOrder(ctx, id, models.Buy, 1)
	if !IsTransient(err) {
		t.Fatalf("err = %v, want transient", err)
	}
}

func TestPaperAccountRejectsBadOrders(t *testing.T) {
	acc := NewPaperAccount(decimal.NewFromInt(1000), fixedQuote(100), nil)
	ctx := context.Background()

	id, err := acc.ResolveInstrument(ctx, "SBER")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	var fatal *FatalError
	if _, err := acc.PlaceMarketOrder(ctx, id, models.Buy, 0); !errors.As(err, &fatal) {
		t.Fatalf("zero quantity: err = %v, want FatalError", err)
	}
	if _, err := acc.PlaceMarketOrder(ctx, "unknown", models.Buy, 1); !errors.As(err, &fatal) {
		t.Fatalf("unknown instrument: err = %v, want FatalError", err)
	}
	if _, err := acc.PlaceMarketOrder(ctx, id, models.OrderDirection("HOLD"), 1); !errors.As(err, &fatal) {
		t.Fatalf("bad direction: err = %v, want FatalError", err)
	}
}
