package trading

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"quantcore/internal/broker"
	"quantcore/internal/domain/models"
	domrepo "quantcore/internal/domain/repository"
	"quantcore/internal/ml"
	"quantcore/internal/physics"
	"quantcore/pkg/logger"
)

// Signaler produces the fused per-tick signal for a ticker. Skippable
// conditions surface as the physics/ml typed errors.
type Signaler interface {
	Signal(ctx context.Context, ticker string) (models.TickSignal, error)
}

// EngineConfig controls one decision engine instance.
type EngineConfig struct {
	Ticker           string
	Quantity         int64
	TickInterval     time.Duration // decision cadence
	RetryDelay       time.Duration // wait after a skipped tick
	MaxOrderAttempts int           // bounded retries for transient broker failures
	OrderBackoff     time.Duration // fixed backoff between order attempts
}

func (c *EngineConfig) setDefaults() {
	if c.Quantity <= 0 {
		c.Quantity = 1
	}
	if c.TickInterval <= 0 {
		c.TickInterval = 60 * time.Second
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 10 * time.Second
	}
	if c.MaxOrderAttempts <= 0 {
		c.MaxOrderAttempts = 3
	}
	if c.OrderBackoff <= 0 {
		c.OrderBackoff = 5 * time.Second
	}
}

// Engine is the per-ticker trading state machine. One instance owns
// exactly one ticker and one position flag; state is single-owner
// mutable, driven by a single goroutine.
type Engine struct {
	cfg     EngineConfig
	signals Signaler
	refresh domrepo.CandleRefresher
	exec    domrepo.ExecutionPort
	ledger  domrepo.TradeLedger
	metrics domrepo.Metrics
	log     *logger.Logger

	pos          models.Position
	instrumentID string
}

// NewEngine builds an engine and verifies trained weights exist for
// the ticker. A missing model is fatal here: the engine refuses to
// start rather than trade without a forecast.
func NewEngine(
	cfg EngineConfig,
	signals Signaler,
	refresh domrepo.CandleRefresher,
	exec domrepo.ExecutionPort,
	ledger domrepo.TradeLedger,
	weights domrepo.WeightStore,
	metrics domrepo.Metrics,
	log *logger.Logger,
) (*Engine, error) {
	cfg.setDefaults()
	if cfg.Ticker == "" {
		return nil, fmt.Errorf("engine: ticker required")
	}

	blob, err := weights.Load(cfg.Ticker)
	if err != nil {
		if errors.Is(err, ml.ErrModelNotFound) {
			return nil, fmt.Errorf("engine: no trained model for %s, train first: %w", cfg.Ticker, err)
		}
		return nil, fmt.Errorf("engine: load model for %s: %w", cfg.Ticker, err)
	}
	if _, err := ml.UnmarshalWeights(blob); err != nil {
		return nil, fmt.Errorf("engine: model for %s unreadable: %w", cfg.Ticker, err)
	}

	return &Engine{
		cfg:     cfg,
		signals: signals,
		refresh: refresh,
		exec:    exec,
		ledger:  ledger,
		metrics: metrics,
		log:     log,
		pos:     models.Position{Ticker: cfg.Ticker},
	}, nil
}

// Position returns a copy of the current position state.
func (e *Engine) Position() models.Position { return e.pos }

// Run drives the decision loop until ctx is cancelled. Cancellation is
// cooperative: the stop signal is checked between ticks only.
func (e *Engine) Run(ctx context.Context) error {
	id, err := e.exec.ResolveInstrument(ctx, e.cfg.Ticker)
	if err != nil {
		return fmt.Errorf("engine: resolve %s: %w", e.cfg.Ticker, err)
	}
	e.instrumentID = id

	e.log.Info("decision engine started",
		logger.String("ticker", e.cfg.Ticker),
		logger.Int64("quantity", e.cfg.Quantity),
		logger.Duration("tick", e.cfg.TickInterval),
	)

	for {
		start := time.Now()
		delay := e.cfg.TickInterval

		if err := e.Tick(ctx); err != nil {
			delay = e.classify(err)
		}
		e.metrics.RecordTickDuration(time.Since(start).Seconds())

		select {
		case <-ctx.Done():
			e.log.Info("decision engine stopped", logger.String("ticker", e.cfg.Ticker))
			return nil
		case <-time.After(delay):
		}
	}
}

// classify maps a tick error to the delay before the next attempt,
// logging it with the context that caused it. No error crashes the
// loop.
func (e *Engine) classify(err error) time.Duration {
	var insufPhysics *physics.InsufficientDataError
	var insufML *ml.InsufficientDataError
	var calErr *physics.CalibrationError
	var degen *physics.DegenerateResidualError
	var fatal *broker.FatalError

	switch {
	case errors.As(err, &insufPhysics), errors.As(err, &insufML):
		e.log.Warn("tick skipped: not enough data", logger.String("ticker", e.cfg.Ticker), logger.Error(err))
		e.metrics.RecordError("insufficient_data")
		return e.cfg.RetryDelay
	case errors.As(err, &calErr):
		e.log.Warn("tick skipped: calibration failed", logger.String("ticker", e.cfg.Ticker), logger.Error(err))
		e.metrics.RecordError("calibration")
		return e.cfg.RetryDelay
	case errors.As(err, &degen):
		e.log.Warn("tick skipped: anomaly score unavailable", logger.String("ticker", e.cfg.Ticker), logger.Error(err))
		e.metrics.RecordError("degenerate_residual")
		return e.cfg.RetryDelay
	case errors.As(err, &fatal):
		e.log.Error("broker fatal error, continuing", logger.String("ticker", e.cfg.Ticker), logger.Error(err))
		e.metrics.RecordError("broker_fatal")
		return e.cfg.TickInterval
	default:
		e.log.Error("tick aborted", logger.String("ticker", e.cfg.Ticker), logger.Error(err))
		e.metrics.RecordError("tick")
		return e.cfg.TickInterval
	}
}

// Tick runs one decision cycle: refresh, score, fuse, act.
func (e *Engine) Tick(ctx context.Context) error {
	if err := e.refresh.Refresh(ctx, e.cfg.Ticker); err != nil {
		// Stale data is still usable; decide on what the store has.
		e.log.Warn("candle refresh failed, using stored history",
			logger.String("ticker", e.cfg.Ticker), logger.Error(err))
		e.metrics.RecordError("refresh")
	}

	sig, err := e.signals.Signal(ctx, e.cfg.Ticker)
	if err != nil {
		return err
	}

	e.metrics.RecordZScore(e.cfg.Ticker, sig.ZScore)
	e.metrics.RecordLastPrice(e.cfg.Ticker, sig.Price)

	switch {
	case !e.pos.IsOpen && BuyTrigger(sig.ZScore, sig.Forecast):
		return e.enter(ctx, sig)
	case e.pos.IsOpen:
		return e.manage(ctx, sig)
	default:
		e.log.Info("holding flat",
			logger.String("ticker", e.cfg.Ticker),
			logger.Float64("price", sig.Price),
			logger.Float64("z", sig.ZScore),
			logger.Float64("forecast", sig.Forecast),
		)
		return nil
	}
}

func (e *Engine) enter(ctx context.Context, sig models.TickSignal) error {
	e.log.Info("buy signal",
		logger.String("ticker", e.cfg.Ticker),
		logger.Float64("price", sig.Price),
		logger.Float64("z", sig.ZScore),
		logger.Float64("forecast", sig.Forecast),
	)

	if err := e.placeOrder(ctx, models.Buy); err != nil {
		return err
	}

	e.pos.IsOpen = true
	e.pos.EntryPrice = sig.Price
	e.pos.EntryTime = sig.Time
	e.metrics.RecordOrderPlaced(e.cfg.Ticker, string(models.Buy))
	e.metrics.RecordPositionOpen(e.cfg.Ticker, true)

	e.appendLedger(ctx, models.Buy, sig.Price, fmt.Sprintf("Z=%.2f", sig.ZScore))
	return nil
}

func (e *Engine) manage(ctx context.Context, sig models.TickSignal) error {
	profit := ProfitPct(e.pos.EntryPrice, sig.Price)
	if !ExitTrigger(profit, sig.ZScore) {
		e.log.Info("holding long",
			logger.String("ticker", e.cfg.Ticker),
			logger.Float64("price", sig.Price),
			logger.Float64("pnl_pct", profit),
			logger.Float64("z", sig.ZScore),
		)
		return nil
	}

	e.log.Info("exit signal",
		logger.String("ticker", e.cfg.Ticker),
		logger.Float64("price", sig.Price),
		logger.Float64("pnl_pct", profit),
		logger.Float64("z", sig.ZScore),
	)

	if err := e.placeOrder(ctx, models.Sell); err != nil {
		return err
	}

	e.pos.IsOpen = false
	e.pos.EntryPrice = 0
	e.pos.EntryTime = time.Time{}
	e.metrics.RecordOrderPlaced(e.cfg.Ticker, string(models.Sell))
	e.metrics.RecordPositionOpen(e.cfg.Ticker, false)

	e.appendLedger(ctx, models.Sell, sig.Price, fmt.Sprintf("PnL=%.2f%%", profit))
	return nil
}

// placeOrder submits a market order, retrying transient broker
// failures with fixed backoff up to the configured attempt bound.
func (e *Engine) placeOrder(ctx context.Context, dir models.OrderDirection) error {
	var lastErr error
	for attempt := 1; attempt <= e.cfg.MaxOrderAttempts; attempt++ {
		_, err := e.exec.PlaceMarketOrder(ctx, e.instrumentID, dir, e.cfg.Quantity)
		if err == nil {
			return nil
		}
		lastErr = err
		if !broker.IsTransient(err) {
			return err
		}
		e.log.Warn("order attempt failed",
			logger.String("ticker", e.cfg.Ticker),
			logger.String("direction", string(dir)),
			logger.Int("attempt", attempt),
			logger.Error(err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(e.cfg.OrderBackoff):
		}
	}
	e.metrics.RecordError("broker_transient")
	return fmt.Errorf("engine: order %s %s failed after %d attempts: %w",
		dir, e.cfg.Ticker, e.cfg.MaxOrderAttempts, lastErr)
}

// appendLedger records the executed trade. The order is already
// acknowledged at this point; a ledger failure is logged, never
// allowed to unwind the position state.
func (e *Engine) appendLedger(ctx context.Context, action models.OrderDirection, price float64, reason string) {
	balance, err := e.exec.Balance(ctx)
	if err != nil {
		e.log.Warn("balance query failed", logger.String("ticker", e.cfg.Ticker), logger.Error(err))
		balance = decimal.Zero
	}

	entry := models.LedgerEntry{
		Time:         time.Now().UTC(),
		Ticker:       e.cfg.Ticker,
		Action:       action,
		Price:        price,
		Quantity:     e.cfg.Quantity,
		Reason:       reason,
		BalanceAfter: balance,
	}
	if err := e.ledger.Append(entry); err != nil {
		e.log.Error("ledger append failed",
			logger.String("ticker", e.cfg.Ticker),
			logger.String("action", string(action)),
			logger.Error(err),
		)
		e.metrics.RecordError("ledger")
	}
}
