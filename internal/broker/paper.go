package broker

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"quantcore/internal/domain/models"
	"quantcore/pkg/logger"
)

// QuoteFunc returns the current fill price for an instrument. The
// paper account fills market orders at this quote.
type QuoteFunc func(ctx context.Context, ticker string) (float64, error)

// PaperAccount is an in-memory sandbox implementation of the
// execution port. Orders fill immediately at the quoted price and
// mutate a single cash balance.
type PaperAccount struct {
	mu          sync.Mutex
	balance     decimal.Decimal
	instruments map[string]string // ticker -> instrument id
	tickers     map[string]string // instrument id -> ticker
	quote       QuoteFunc
	log         *logger.Logger
}

// NewPaperAccount opens a sandbox account funded with the given
// starting balance.
func NewPaperAccount(startingBalance decimal.Decimal, quote QuoteFunc, log *logger.Logger) *PaperAccount {
	return &PaperAccount{
		balance:     startingBalance,
		instruments: make(map[string]string),
		tickers:     make(map[string]string),
		quote:       quote,
		log:         log,
	}
}

// ResolveInstrument returns a stable instrument id for a ticker,
// minting one on first use.
func (p *PaperAccount) ResolveInstrument(_ context.Context, ticker string) (string, error) {
	if ticker == "" {
		return "", &FatalError{Op: "resolve", Err: fmt.Errorf("empty ticker")}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if id, ok := p.instruments[ticker]; ok {
		return id, nil
	}
	id := uuid.NewString()
	p.instruments[ticker] = id
	p.tickers[id] = ticker
	return id, nil
}

// PlaceMarketOrder fills a market order at the current quote and
// returns the order id.
func (p *PaperAccount) PlaceMarketOrder(ctx context.Context, instrumentID string, dir models.OrderDirection, quantity int64) (string, error) {
	if quantity <= 0 {
		return "", &FatalError{Op: "order", Err: fmt.Errorf("quantity %d", quantity)}
	}

	p.mu.Lock()
	ticker, ok := p.tickers[instrumentID]
	p.mu.Unlock()
	if !ok {
		return "", &FatalError{Op: "order", Err: fmt.Errorf("unknown instrument %s", instrumentID)}
	}

	price, err := p.quote(ctx, ticker)
	if err != nil {
		return "", &TransientError{Op: "quote", Err: err}
	}
	if price <= 0 {
		return "", &TransientError{Op: "quote", Err: fmt.Errorf("no quote for %s", ticker)}
	}

	cost := decimal.NewFromFloat(price).Mul(decimal.NewFromInt(quantity))

	p.mu.Lock()
	defer p.mu.Unlock()
	switch dir {
	case models.Buy:
		if p.balance.LessThan(cost) {
			return "", &FatalError{Op: "order", Err: fmt.Errorf("insufficient funds: balance %s, cost %s", p.balance, cost)}
		}
		p.balance = p.balance.Sub(cost)
	case models.Sell:
		p.balance = p.balance.Add(cost)
	default:
		return "", &FatalError{Op: "order", Err: fmt.Errorf("direction %q", dir)}
	}

	orderID := uuid.NewString()
	if p.log != nil {
		p.log.Info("paper order filled",
			logger.String("ticker", ticker),
			logger.String("direction", string(dir)),
			logger.Int64("quantity", quantity),
			logger.Float64("price", price),
			logger.String("order_id", orderID),
		)
	}
	return orderID, nil
}

// Balance returns the account cash balance.
func (p *PaperAccount) Balance(_ context.Context) (decimal.Decimal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balance, nil
}
