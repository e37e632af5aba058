package usecase

import (
	"context"
	"fmt"
	"math"

	domrepo "quantcore/internal/domain/repository"
	"quantcore/internal/physics"
	applogger "quantcore/pkg/logger"
)

// Thresholds for the historical scan report.
const (
	// SignificantMovePct is the minimum absolute forward move, in
	// percent, for an anomaly event to count as significant.
	SignificantMovePct = 0.1

	// Alpha band a confirmed law is expected to fall into for
	// liquid equities.
	alphaBandLo = 0.4
	alphaBandHi = 0.6
)

// AnomalyEvent is one historical threshold crossing with its forward
// price move.
type AnomalyEvent struct {
	Index      int
	ZScore     float64
	EntryPrice float64
	ExitPrice  float64
	MovePct    float64
}

// BacktestReport summarizes how often anomalies preceded a real move.
type BacktestReport struct {
	Ticker         string
	Candles        int
	Alpha          float64
	R2             float64
	LawConfirmed   bool
	Events         []AnomalyEvent
	Significant    int
	MeanAbsMovePct float64
}

// Verdict is the one-line assessment printed at the end of a scan.
func (r *BacktestReport) Verdict() string {
	if r.LawConfirmed {
		return fmt.Sprintf("power law holds (alpha=%.3f, r2=%.3f)", r.Alpha, r.R2)
	}
	return fmt.Sprintf("power law not confirmed (alpha=%.3f, r2=%.3f)", r.Alpha, r.R2)
}

// Backtester replays the deviation detector over stored history and
// measures the forward move after each anomaly.
type Backtester struct {
	store      domrepo.CandleStore
	calibrator *physics.Calibrator
	horizon    int
	log        *applogger.Logger
}

// NewBacktester builds a scanner that looks horizon candles ahead of
// each anomaly. A non-positive horizon defaults to 10.
func NewBacktester(store domrepo.CandleStore, calibrator *physics.Calibrator, horizon int, log *applogger.Logger) *Backtester {
	if horizon <= 0 {
		horizon = 10
	}
	return &Backtester{store: store, calibrator: calibrator, horizon: horizon, log: log}
}

// Scan calibrates the ticker's full history, collects every candle
// whose z-score crosses the anomaly threshold and reports the price
// move over the following horizon candles. Events too close to the
// end of history to have a full forward window are dropped.
func (b *Backtester) Scan(ctx context.Context, ticker string) (*BacktestReport, error) {
	candles, err := b.store.Query(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("query candles for %s: %w", ticker, err)
	}
	cal, err := b.calibrator.Calibrate(ticker, candles)
	if err != nil {
		return nil, err
	}
	devs, err := physics.ScoreDeviations(cal)
	if err != nil {
		return nil, err
	}

	report := &BacktestReport{
		Ticker:       ticker,
		Candles:      len(devs),
		Alpha:        cal.Alpha,
		R2:           cal.R2,
		LawConfirmed: cal.Confirmed() && cal.Alpha >= alphaBandLo && cal.Alpha <= alphaBandHi,
	}

	var absSum float64
	for i, dev := range devs {
		if dev.ZScore >= physics.AnomalyThreshold {
			continue
		}
		if i+b.horizon >= len(devs) {
			continue
		}
		exit := devs[i+b.horizon].Close
		move := (exit - dev.Close) / dev.Close * 100

		report.Events = append(report.Events, AnomalyEvent{
			Index:      i,
			ZScore:     dev.ZScore,
			EntryPrice: dev.Close,
			ExitPrice:  exit,
			MovePct:    move,
		})
		absSum += math.Abs(move)
		if math.Abs(move) > SignificantMovePct {
			report.Significant++
		}
	}
	if n := len(report.Events); n > 0 {
		report.MeanAbsMovePct = absSum / float64(n)
	}

	b.log.Info("historical scan complete",
		applogger.String("ticker", ticker),
		applogger.Int("candles", report.Candles),
		applogger.Int("events", len(report.Events)),
		applogger.Int("significant", report.Significant),
		applogger.Float64("mean_abs_move_pct", report.MeanAbsMovePct),
		applogger.String("verdict", report.Verdict()),
	)
	return report, nil
}
