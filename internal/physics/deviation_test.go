package physics

import (
	"errors"
	"math"
	"testing"
	"time"

	"quantcore/internal/domain/models"
)

func TestScoreDeviationsCentered(t *testing.T) {
	candles := lawCandles(300, 0.44, smallNoise)
	cal, err := NewCalibrator(DefaultBins).Calibrate("TEST", candles)
	if err != nil {
		t.Fatalf("calibrate: %v", err)
	}

	devs, err := ScoreDeviations(cal)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if len(devs) != len(cal.Raw) {
		t.Fatalf("deviations = %d, want %d", len(devs), len(cal.Raw))
	}

	var sum float64
	for _, d := range devs {
		sum += d.ZScore
	}
	if mean := sum / float64(len(devs)); math.Abs(mean) > 1e-9 {
		t.Fatalf("mean z = %v, want 0", mean)
	}

	for i := 1; i < len(devs); i++ {
		if devs[i].Time.Before(devs[i-1].Time) {
			t.Fatalf("deviations not ordered by time at %d", i)
		}
	}
}

func TestScoreDeviationsFlagsAbsorption(t *testing.T) {
	candles := lawCandles(300, 0.44, smallNoise)
	// One bar absorbs heavy volume with almost no dispersion.
	last := candles[len(candles)-1]
	candles = append(candles, models.Candle{
		Ticker: "TEST",
		Time:   last.Time.Add(time.Minute),
		Open:   200,
		High:   200.001,
		Low:    200,
		Close:  200,
		Volume: 50000,
	})

	cal, err := NewCalibrator(DefaultBins).Calibrate("TEST", candles)
	if err != nil {
		t.Fatalf("calibrate: %v", err)
	}
	devs, err := ScoreDeviations(cal)
	if err != nil {
		t.Fatalf("score: %v", err)
	}

	anomaly := devs[len(devs)-1]
	if anomaly.Volume != 50000 {
		t.Fatalf("last deviation volume = %v, want the absorption bar", anomaly.Volume)
	}
	if anomaly.ZScore >= AnomalyThreshold {
		t.Fatalf("z = %v, want below %v", anomaly.ZScore, AnomalyThreshold)
	}
}

func TestScoreDeviationsDegenerate(t *testing.T) {
	base := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	cal := &models.Calibration{Ticker: "TEST", Alpha: 0, Intercept: 2}
	for i := 0; i < 120; i++ {
		cal.Raw = append(cal.Raw, models.RawPoint{
			Time:   base.Add(time.Duration(i) * time.Minute),
			Close:  100,
			Volume: float64(1000 + i),
			LogQ:   math.Log(float64(1000 + i)),
			LogI:   2,
		})
	}

	_, err := ScoreDeviations(cal)
	var degen *DegenerateResidualError
	if !errors.As(err, &degen) {
		t.Fatalf("err = %v, want DegenerateResidualError", err)
	}
	if degen.Std != 0 {
		t.Fatalf("std = %v, want 0", degen.Std)
	}
}

func TestScoreDeviationsEmptyCalibration(t *testing.T) {
	_, err := ScoreDeviations(&models.Calibration{Ticker: "TEST"})
	var degen *DegenerateResidualError
	if !errors.As(err, &degen) {
		t.Fatalf("err = %v, want DegenerateResidualError", err)
	}
}
