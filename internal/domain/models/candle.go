package models

import "time"

// Candle is one OHLCV bar for a ticker. Candles are immutable once
// stored and identified by (Ticker, Time).
type Candle struct {
	Ticker string
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Volatility is the intrabar price dispersion, high minus low.
func (c Candle) Volatility() float64 {
	return c.High - c.Low
}
