package usecase

import (
	"context"
	"fmt"
	"time"

	"quantcore/internal/domain/models"
	domrepo "quantcore/internal/domain/repository"
	"quantcore/internal/physics"
	applogger "quantcore/pkg/logger"
)

// MonitorConfig holds the watchlist scanned by the anomaly monitor.
type MonitorConfig struct {
	Tickers  []string
	Interval time.Duration
}

func (c *MonitorConfig) setDefaults() {
	if c.Interval <= 0 {
		c.Interval = time.Minute
	}
}

// Monitor periodically recalibrates every watchlist ticker and logs
// when the latest candle's deviation crosses the anomaly threshold.
// It never places orders; the decision engine handles one ticker at a
// time while the monitor covers the rest of the universe.
type Monitor struct {
	cfg        MonitorConfig
	store      domrepo.CandleStore
	refresher  domrepo.CandleRefresher
	calibrator *physics.Calibrator
	metrics    domrepo.Metrics
	log        *applogger.Logger
}

func NewMonitor(
	cfg MonitorConfig,
	store domrepo.CandleStore,
	refresher domrepo.CandleRefresher,
	calibrator *physics.Calibrator,
	metrics domrepo.Metrics,
	log *applogger.Logger,
) *Monitor {
	cfg.setDefaults()
	return &Monitor{
		cfg:        cfg,
		store:      store,
		refresher:  refresher,
		calibrator: calibrator,
		metrics:    metrics,
		log:        log,
	}
}

// Run scans the watchlist on every interval tick until the context is
// cancelled. A failed ticker never stops the scan of the others.
func (m *Monitor) Run(ctx context.Context) error {
	m.log.Info("monitor started",
		applogger.Int("tickers", len(m.cfg.Tickers)),
		applogger.Duration("interval", m.cfg.Interval),
	)

	m.scan(ctx)
	for {
		select {
		case <-ctx.Done():
			m.log.Info("monitor stopped")
			return ctx.Err()
		case <-time.After(m.cfg.Interval):
			m.scan(ctx)
		}
	}
}

func (m *Monitor) scan(ctx context.Context) {
	for _, ticker := range m.cfg.Tickers {
		if ctx.Err() != nil {
			return
		}
		dev, err := m.scanTicker(ctx, ticker)
		if err != nil {
			m.log.Warn("watchlist scan skipped",
				applogger.String("ticker", ticker),
				applogger.Error(err),
			)
			continue
		}
		m.metrics.RecordZScore(ticker, dev.ZScore)
		if dev.ZScore < physics.AnomalyThreshold {
			m.log.Warn("volume absorption anomaly",
				applogger.String("ticker", ticker),
				applogger.Float64("z_score", dev.ZScore),
				applogger.Float64("close", dev.Close),
				applogger.Time("candle_time", dev.Time),
			)
		}
	}
}

func (m *Monitor) scanTicker(ctx context.Context, ticker string) (models.Deviation, error) {
	if m.refresher != nil {
		if err := m.refresher.Refresh(ctx, ticker); err != nil {
			m.log.Warn("refresh failed, scoring stored candles",
				applogger.String("ticker", ticker),
				applogger.Error(err),
			)
		}
	}

	candles, err := m.store.Query(ctx, ticker)
	if err != nil {
		return models.Deviation{}, fmt.Errorf("query candles: %w", err)
	}
	cal, err := m.calibrator.Calibrate(ticker, candles)
	if err != nil {
		return models.Deviation{}, err
	}
	m.metrics.RecordCalibration(ticker, cal.Alpha, cal.R2)

	devs, err := physics.ScoreDeviations(cal)
	if err != nil {
		return models.Deviation{}, err
	}
	return devs[len(devs)-1], nil
}
