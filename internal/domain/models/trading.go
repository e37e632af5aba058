package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderDirection is the side of a market order.
type OrderDirection string

const (
	Buy  OrderDirection = "BUY"
	Sell OrderDirection = "SELL"
)

// Position is the engine's local view of its holding in one ticker.
// Exactly one instance exists per ticker per running engine and it is
// mutated only by engine transitions.
type Position struct {
	Ticker     string
	IsOpen     bool
	EntryPrice float64
	EntryTime  time.Time
}

// LedgerEntry is one append-only trade record. Entries are never
// mutated or deleted.
type LedgerEntry struct {
	Time         time.Time
	Ticker       string
	Action       OrderDirection
	Price        float64
	Quantity     int64
	Reason       string
	BalanceAfter decimal.Decimal
}

// TickSignal is the fused per-tick view the decision engine acts on.
type TickSignal struct {
	Ticker   string
	Time     time.Time
	Price    float64
	ZScore   float64
	Forecast float64 // normalized forward-volatility forecast
}
