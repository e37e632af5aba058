package repository

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"quantcore/internal/domain/models"
)

func ledgerEntry(ticker string, action models.OrderDirection, price float64) models.LedgerEntry {
	return models.LedgerEntry{
		Time:         time.Date(2025, 6, 2, 10, 30, 0, 0, time.UTC),
		Ticker:       ticker,
		Action:       action,
		Price:        price,
		Quantity:     3,
		Reason:       "Z=-2.50",
		BalanceAfter: decimal.RequireFromString("99698.5"),
	}
}

func TestCSVLedgerRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.csv")
	ledger, err := NewCSVLedger(path)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	defer ledger.Close()

	if err := ledger.Append(ledgerEntry("SBER", models.Buy, 100.5)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := ledger.Append(ledgerEntry("GAZP", models.Sell, 212.34)); err != nil {
		t.Fatalf("append: %v", err)
	}

	entries, err := ledger.List("")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}

	got := entries[0]
	if got.Ticker != "SBER" || got.Action != models.Buy || got.Price != 100.5 {
		t.Fatalf("entry = %+v", got)
	}
	if got.Quantity != 3 || got.Reason != "Z=-2.50" {
		t.Fatalf("entry = %+v", got)
	}
	if !got.BalanceAfter.Equal(decimal.RequireFromString("99698.5")) {
		t.Fatalf("balance = %s", got.BalanceAfter)
	}
	if !got.Time.Equal(time.Date(2025, 6, 2, 10, 30, 0, 0, time.UTC)) {
		t.Fatalf("time = %v", got.Time)
	}
}

func TestCSVLedgerFiltersByTicker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.csv")
	ledger, err := NewCSVLedger(path)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	defer ledger.Close()

	for _, ticker := range []string{"SBER", "GAZP", "SBER"} {
		if err := ledger.Append(ledgerEntry(ticker, models.Buy, 100)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	entries, err := ledger.List("SBER")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	for _, e := range entries {
		if e.Ticker != "SBER" {
			t.Fatalf("unexpected ticker %s", e.Ticker)
		}
	}
}

func TestCSVLedgerReopenAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.csv")

	first, err := NewCSVLedger(path)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	if err := first.Append(ledgerEntry("SBER", models.Buy, 100)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	second, err := NewCSVLedger(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	if err := second.Append(ledgerEntry("SBER", models.Sell, 101)); err != nil {
		t.Fatalf("append after reopen: %v", err)
	}

	entries, err := second.List("")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2 across reopen", len(entries))
	}
	if entries[0].Action != models.Buy || entries[1].Action != models.Sell {
		t.Fatalf("actions = %v, %v", entries[0].Action, entries[1].Action)
	}
}
