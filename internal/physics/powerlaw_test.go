package physics

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"quantcore/internal/domain/models"
)

// lawCandles builds a synthetic tail that follows I = 0.5 * Q^alpha
// with a small deterministic perturbation encoded into the bar range.
func lawCandles(n int, alpha float64, noise func(i int) float64) []models.Candle {
	base := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	out := make([]models.Candle, n)
	for i := 0; i < n; i++ {
		volume := 1000 + 250*float64(i)
		vol := 0.5 * math.Pow(volume, alpha) * math.Exp(noise(i))
		price := 100 + 0.01*float64(i)
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

func smallNoise(i int) float64 { return 0.01 * math.Sin(float64(i)) }

func TestCalibrateRecoversExponent(t *testing.T) {
	candles := lawCandles(300, 0.44, smallNoise)

	cal, err := NewCalibrator(DefaultBins).Calibrate("TEST", candles)
	if err != nil {
		t.Fatalf("calibrate: %v", err)
	}
	if math.Abs(cal.Alpha-0.44) > 0.02 {
		t.Fatalf("alpha = %v, want close to 0.44", cal.Alpha)
	}
	if cal.R2 <= 0.9 {
		t.Fatalf("r2 = %v, want > 0.9", cal.R2)
	}
	if !cal.Confirmed() {
		t.Fatalf("expected confirmed fit")
	}
	if len(cal.Raw) != 300 {
		t.Fatalf("raw points = %d, want 300", len(cal.Raw))
	}
	if len(cal.SmartMoney) < minSmartBuckets {
		t.Fatalf("smart buckets = %d, want >= %d", len(cal.SmartMoney), minSmartBuckets)
	}
	if len(cal.SmartMoney) >= len(cal.Binned) {
		t.Fatalf("smart subset %d should be a strict subset of %d buckets", len(cal.SmartMoney), len(cal.Binned))
	}
}

func TestCalibrateDeterministic(t *testing.T) {
	candles := lawCandles(200, 0.5, smallNoise)
	c := NewCalibrator(0)

	a, err := c.Calibrate("TEST", candles)
	if err != nil {
		t.Fatalf("first calibrate: %v", err)
	}
	b, err := c.Calibrate("TEST", candles)
	if err != nil {
		t.Fatalf("second calibrate: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("identical inputs produced different calibrations")
	}
}

func TestCalibrateInsufficientData(t *testing.T) {
	candles := lawCandles(80, 0.44, smallNoise)

	_, err := NewCalibrator(DefaultBins).Calibrate("TEST", candles)
	var insuf *InsufficientDataError
	if !errors.As(err, &insuf) {
		t.Fatalf("err = %v, want InsufficientDataError", err)
	}
	if insuf.Candles != 80 || insuf.Required != minCleanCandles {
		t.Fatalf("got %d/%d, want 80/%d", insuf.Candles, insuf.Required, minCleanCandles)
	}
}

func TestCalibrateDropsUnusableCandles(t *testing.T) {
	candles := lawCandles(150, 0.44, smallNoise)
	// Flat bars have zero dispersion and must not count as clean.
	for i := 0; i < 60; i++ {
		candles[i].High = candles[i].Low
	}

	_, err := NewCalibrator(DefaultBins).Calibrate("TEST", candles)
	var insuf *InsufficientDataError
	if !errors.As(err, &insuf) {
		t.Fatalf("err = %v, want InsufficientDataError", err)
	}
	if insuf.Candles != 90 {
		t.Fatalf("clean candles = %d, want 90", insuf.Candles)
	}
}

func TestCalibrateConstantVolume(t *testing.T) {
	candles := lawCandles(120, 0.44, smallNoise)
	for i := range candles {
		candles[i].Volume = 500
	}

	_, err := NewCalibrator(DefaultBins).Calibrate("TEST", candles)
	var calErr *CalibrationError
	if !errors.As(err, &calErr) {
		t.Fatalf("err = %v, want CalibrationError", err)
	}
	if calErr.SmartBuckets != 0 {
		t.Fatalf("smart buckets = %d, want 0", calErr.SmartBuckets)
	}
}
