package models

import "time"

// Trade is one tick from the live market stream before aggregation
// into minute candles.
type Trade struct {
	Ticker string
	Time   time.Time
	Price  float64
	Volume float64
}
