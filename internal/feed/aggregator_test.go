package feed

import (
	"testing"
	"time"

	"quantcore/internal/domain/models"
)

func tradeAt(ticker string, ts time.Time, price, volume float64) models.Trade {
	return models.Trade{Ticker: ticker, Time: ts, Price: price, Volume: volume}
}

func TestAggregatorEmitsOnRollover(t *testing.T) {
	agg := NewAggregator(time.Minute)
	bar := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	if c := agg.Add(tradeAt("SBER", bar.Add(5*time.Second), 100, 10)); c != nil {
		t.Fatalf("first trade emitted a candle: %+v", c)
	}
	if c := agg.Add(tradeAt("SBER", bar.Add(20*time.Second), 102, 5)); c != nil {
		t.Fatalf("in-bar trade emitted a candle: %+v", c)
	}
	if c := agg.Add(tradeAt("SBER", bar.Add(40*time.Second), 99, 7)); c != nil {
		t.Fatalf("in-bar trade emitted a candle: %+v", c)
	}

	done := agg.Add(tradeAt("SBER", bar.Add(61*time.Second), 101, 3))
	if done == nil {
		t.Fatalf("rollover did not emit the completed candle")
	}
	if !done.Time.Equal(bar) {
		t.Fatalf("candle time = %v, want %v", done.Time, bar)
	}
	if done.Open != 100 || done.High != 102 || done.Low != 99 || done.Close != 99 {
		t.Fatalf("ohlc = %v/%v/%v/%v", done.Open, done.High, done.Low, done.Close)
	}
	if done.Volume != 22 {
		t.Fatalf("volume = %v, want 22", done.Volume)
	}
}

func TestAggregatorTracksTickersIndependently(t *testing.T) {
	agg := NewAggregator(time.Minute)
	bar := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	agg.Add(tradeAt("SBER", bar.Add(time.Second), 100, 1))
	agg.Add(tradeAt("GAZP", bar.Add(2*time.Second), 200, 2))

	done := agg.Add(tradeAt("SBER", bar.Add(70*time.Second), 101, 1))
	if done == nil || done.Ticker != "SBER" {
		t.Fatalf("rollover candle = %+v, want SBER", done)
	}

	flushed := agg.Flush()
	if len(flushed) != 2 {
		t.Fatalf("flushed = %d candles, want 2 in-progress bars", len(flushed))
	}
	if len(agg.Flush()) != 0 {
		t.Fatalf("flush did not reset the aggregator")
	}
}

func TestAggregatorFlushOrdered(t *testing.T) {
	agg := NewAggregator(time.Minute)
	bar := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	agg.Add(tradeAt("GAZP", bar.Add(90*time.Second), 200, 2))
	agg.Add(tradeAt("SBER", bar.Add(time.Second), 100, 1))

	flushed := agg.Flush()
	if len(flushed) != 2 {
		t.Fatalf("flushed = %d, want 2", len(flushed))
	}
	if flushed[0].Ticker != "SBER" || flushed[1].Ticker != "GAZP" {
		t.Fatalf("flush order = %s, %s; want oldest bar first", flushed[0].Ticker, flushed[1].Ticker)
	}
}
