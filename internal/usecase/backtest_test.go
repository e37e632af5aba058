package usecase

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"quantcore/internal/domain/models"
	"quantcore/internal/physics"
	applogger "quantcore/pkg/logger"
)

type fakeCandleStore struct {
	candles []models.Candle
}

func (s *fakeCandleStore) Upsert(context.Context, []models.Candle) error { return nil }

func (s *fakeCandleStore) Query(context.Context, string) ([]models.Candle, error) {
	return s.candles, nil
}

func (s *fakeCandleStore) QueryLastN(_ context.Context, _ string, n int) ([]models.Candle, error) {
	if n >= len(s.candles) {
		return s.candles, nil
	}
	return s.candles[len(s.candles)-n:], nil
}

func (s *fakeCandleStore) LastTimestamp(context.Context, string) (time.Time, error) {
	if len(s.candles) == 0 {
		return time.Time{}, nil
	}
	return s.candles[len(s.candles)-1].Time, nil
}

func (s *fakeCandleStore) Health(context.Context) error { return nil }

func scanLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	log, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

// scanCandles follows I = 0.5 * Q^0.44 with a mild perturbation so the
// law calibrates cleanly.
func scanCandles(n int) []models.Candle {
	base := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	out := make([]models.Candle, n)
	for i := 0; i < n; i++ {
		volume := 1000 + 250*float64(i)
		vol := 0.5 * math.Pow(volume, 0.44) * math.Exp(0.01*math.Sin(float64(i)))
		price := 100 + 0.05*float64(i)
		out[i] = models.Candle{
			Ticker: "TEST",
			Time:   base.Add(time.Duration(i) * time.Minute),
			Open:   price,
			High:   price + vol,
			Low:    price,
			Close:  price,
			Volume: volume,
		}
	}
	return out
}

// absorb rewrites one bar into a volume-absorption anomaly.
func absorb(candles []models.Candle, i int) {
	candles[i].Volume = 50000
	candles[i].High = candles[i].Low + 0.001
}

func TestBacktesterCleanHistory(t *testing.T) {
	store := &fakeCandleStore{candles: scanCandles(300)}
	b := NewBacktester(store, physics.NewCalibrator(0), 10, scanLogger(t))

	report, err := b.Scan(context.Background(), "TEST")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if report.Candles != 300 {
		t.Fatalf("candles = %d, want 300", report.Candles)
	}
	if !report.LawConfirmed {
		t.Fatalf("expected confirmed law, got alpha=%v r2=%v", report.Alpha, report.R2)
	}
	if len(report.Events) != 0 {
		t.Fatalf("events = %d, want none on clean history", len(report.Events))
	}
	if !strings.Contains(report.Verdict(), "power law holds") {
		t.Fatalf("verdict = %q", report.Verdict())
	}
}

func TestBacktesterFindsAnomalyEvents(t *testing.T) {
	candles := scanCandles(300)
	absorb(candles, 280)
	store := &fakeCandleStore{candles: candles}
	b := NewBacktester(store, physics.NewCalibrator(0), 10, scanLogger(t))

	report, err := b.Scan(context.Background(), "TEST")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	var event *AnomalyEvent
	for i := range report.Events {
		if report.Events[i].Index == 280 {
			event = &report.Events[i]
		}
	}
	if event == nil {
		t.Fatalf("no event at the absorption bar, events = %+v", report.Events)
	}
	if event.ZScore >= physics.AnomalyThreshold {
		t.Fatalf("event z = %v", event.ZScore)
	}
	if event.MovePct <= SignificantMovePct {
		t.Fatalf("move = %v%%, want a significant forward move", event.MovePct)
	}
	if report.Significant < 1 {
		t.Fatalf("significant = %d, want >= 1", report.Significant)
	}
	if report.MeanAbsMovePct <= 0 {
		t.Fatalf("mean abs move = %v", report.MeanAbsMovePct)
	}
}

func TestBacktesterDropsTruncatedEvents(t *testing.T) {
	candles := scanCandles(300)
	absorb(candles, 295) // fewer than horizon candles remain after it
	store := &fakeCandleStore{candles: candles}
	b := NewBacktester(store, physics.NewCalibrator(0), 10, scanLogger(t))

	report, err := b.Scan(context.Background(), "TEST")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	for _, e := range report.Events {
		if e.Index == 295 {
			t.Fatalf("event without a full forward window was kept")
		}
	}
}

func TestBacktesterInsufficientHistory(t *testing.T) {
	store := &fakeCandleStore{candles: scanCandles(50)}
	b := NewBacktester(store, physics.NewCalibrator(0), 10, scanLogger(t))

	if _, err := b.Scan(context.Background(), "TEST"); err == nil {
		t.Fatalf("expected calibration error on short history")
	}
}
