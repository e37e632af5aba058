package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"quantcore/internal/domain/models"
)

// CandleStore is the ordered per-ticker OHLCV history. Upsert is
// idempotent on (ticker, time); queries return candles ascending by
// time.
type CandleStore interface {
	Upsert(ctx context.Context, candles []models.Candle) error
	Query(ctx context.Context, ticker string) ([]models.Candle, error)
	QueryLastN(ctx context.Context, ticker string, n int) ([]models.Candle, error)
	LastTimestamp(ctx context.Context, ticker string) (time.Time, error)
	Health(ctx context.Context) error
}

// CandleRefresher pulls missing recent history for a ticker into the
// store before a decision tick reads it.
type CandleRefresher interface {
	Refresh(ctx context.Context, ticker string) error
}

// WeightStore persists trained model weights keyed by ticker.
// Load returns an error matching ml.ErrModelNotFound when no weights
// have been published for the ticker.
type WeightStore interface {
	Load(ticker string) ([]byte, error)
	Save(ticker string, blob []byte) error
}

// TradeLedger is the append-only record stream of executed trades.
type TradeLedger interface {
	Append(entry models.LedgerEntry) error
}

// TradeLogReader serves historical ledger entries. An empty ticker
// means all tickers.
type TradeLogReader interface {
	List(ticker string) ([]models.LedgerEntry, error)
}

// ExecutionPort is the narrow broker surface the decision engine
// depends on. Implementations must classify failures as
// broker.TransientError or broker.FatalError.
type ExecutionPort interface {
	ResolveInstrument(ctx context.Context, ticker string) (string, error)
	PlaceMarketOrder(ctx context.Context, instrumentID string, dir models.OrderDirection, quantity int64) (string, error)
	Balance(ctx context.Context) (decimal.Decimal, error)
}

// Metrics records operational metrics for the pipeline.
type Metrics interface {
	RecordCandleIngested(ticker string)
	RecordOrderPlaced(ticker, direction string)
	RecordError(kind string)
	RecordZScore(ticker string, z float64)
	RecordCalibration(ticker string, alpha, r2 float64)
	RecordLastPrice(ticker string, price float64)
	RecordPositionOpen(ticker string, open bool)
	RecordTickDuration(seconds float64)
}
