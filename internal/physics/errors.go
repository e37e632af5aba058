package physics

import "fmt"

// InsufficientDataError reports too few usable candles for calibration.
type InsufficientDataError struct {
	Ticker   string
	Candles  int
	Required int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("physics: %s has %d usable candles, need %d", e.Ticker, e.Candles, e.Required)
}

// CalibrationError reports too few smart-money buckets to fit the law.
type CalibrationError struct {
	Ticker       string
	SmartBuckets int
}

func (e *CalibrationError) Error() string {
	return fmt.Sprintf("physics: %s has %d smart-money buckets, need %d", e.Ticker, e.SmartBuckets, minSmartBuckets)
}

// DegenerateResidualError reports a residual series with zero or
// non-finite variance, for which z-scores are undefined.
type DegenerateResidualError struct {
	Ticker string
	Std    float64
}

func (e *DegenerateResidualError) Error() string {
	return fmt.Sprintf("physics: %s residual std %v, z-scores undefined", e.Ticker, e.Std)
}
