package ml

import (
	"errors"
	"math"
	"testing"
	"time"

	"quantcore/internal/domain/models"
)

func windowCandles(n int) []models.Candle {
	base := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	out := make([]models.Candle, n)
	for i := 0; i < n; i++ {
		price := 100 + math.Sin(float64(i)/5)
		spread := 0.2 + 0.1*math.Abs(math.Cos(float64(i)/3))
		out[i] = models.Candle{
			Ticker: "TEST",
			Time:   base.Add(time.Duration(i) * time.Minute),
			Open:   price,
			High:   price + spread,
			Low:    price - spread,
			Close:  price + 0.05,
			Volume: float64(1000 + 37*i),
		}
	}
	return out
}

func TestWindowerBuildCount(t *testing.T) {
	w := NewWindower(60, 10)
	if w.MinCandles() != 70 {
		t.Fatalf("min candles = %d, want 70", w.MinCandles())
	}

	for _, tc := range []struct {
		candles int
		want    int
	}{
		{69, 0},
		{70, 1},
		{100, 31},
	} {
		wins, _ := w.Build(windowCandles(tc.candles))
		if len(wins) != tc.want {
			t.Fatalf("%d candles yielded %d windows, want %d", tc.candles, len(wins), tc.want)
		}
	}
}

func TestWindowerWindowShape(t *testing.T) {
	w := NewWindower(60, 10)
	wins, _ := w.Build(windowCandles(80))
	if len(wins) != 11 {
		t.Fatalf("windows = %d, want 11", len(wins))
	}

	for _, win := range wins {
		if len(win.X) != 60 {
			t.Fatalf("window has %d steps, want 60", len(win.X))
		}
		for _, step := range win.X {
			if len(step) != InputDim {
				t.Fatalf("step has %d features, want %d", len(step), InputDim)
			}
			for _, v := range step {
				if v < 0 || v > 1 {
					t.Fatalf("feature %v outside [0, 1]", v)
				}
			}
		}
		if win.Y < 0 || win.Y > 1 {
			t.Fatalf("target %v outside [0, 1]", win.Y)
		}
	}
}

func TestWindowerLatest(t *testing.T) {
	w := NewWindower(60, 10)
	candles := windowCandles(85)

	win, _, err := w.Latest("TEST", candles)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}

	var want float64
	for _, c := range candles[75:] {
		want += c.Volume
	}
	want /= 10
	if win.FutureVolume != want {
		t.Fatalf("future volume = %v, want mean of newest forecast bars %v", win.FutureVolume, want)
	}
}

func TestWindowerLatestInsufficient(t *testing.T) {
	w := NewWindower(60, 10)

	_, _, err := w.Latest("TEST", windowCandles(69))
	var insuf *InsufficientDataError
	if !errors.As(err, &insuf) {
		t.Fatalf("err = %v, want InsufficientDataError", err)
	}
	if insuf.Candles != 69 || insuf.Required != 70 {
		t.Fatalf("got %d/%d, want 69/70", insuf.Candles, insuf.Required)
	}
}

func TestWindowerConstantSeries(t *testing.T) {
	candles := make([]models.Candle, 70)
	base := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	for i := range candles {
		candles[i] = models.Candle{
			Ticker: "TEST",
			Time:   base.Add(time.Duration(i) * time.Minute),
			Open:   100, High: 100.5, Low: 99.5, Close: 100,
			Volume: 1000,
		}
	}

	wins, _ := NewWindower(60, 10).Build(candles)
	if len(wins) != 1 {
		t.Fatalf("windows = %d, want 1", len(wins))
	}
	// Degenerate min-max bounds collapse every channel to zero.
	if wins[0].Y != 0 {
		t.Fatalf("target = %v, want 0 on a flat tail", wins[0].Y)
	}
	for _, step := range wins[0].X {
		for _, v := range step {
			if v != 0 {
				t.Fatalf("feature = %v, want 0 on a flat tail", v)
			}
		}
	}
	if wins[0].FutureVolume != 1000 {
		t.Fatalf("future volume = %v, want raw 1000", wins[0].FutureVolume)
	}
}
