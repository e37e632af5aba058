package models

import "time"

// LogPoint is one observation in log-log space: x = ln(volume),
// y = ln(volatility).
type LogPoint struct {
	LogQ float64 // ln(volume)
	LogI float64 // ln(volatility)
}

// RawPoint is a cleaned candle observation carried through calibration
// so deviation scoring can reuse the exact fitted snapshot.
type RawPoint struct {
	Time   time.Time
	Close  float64
	Volume float64
	LogQ   float64
	LogI   float64
}

// Calibration is a fitted power law I ~ Q^alpha for one ticker.
// It is produced fresh per call and never persisted; callers recompute
// when new candles arrive.
type Calibration struct {
	Ticker     string
	Alpha      float64 // slope in log-log space
	Intercept  float64
	R2         float64
	Binned     []LogPoint // all bucket averages
	SmartMoney []LogPoint // above-median-volume buckets used for the fit
	Raw        []RawPoint // cleaned observations the fit was derived from
}

// Confirmed reports whether the fit is tight enough to treat the law
// as holding for this ticker. Below this the calibration is still
// usable for scoring but flagged anomalous.
func (c Calibration) Confirmed() bool {
	return c.R2 > 0.9
}

// Deviation is one candle's standardized residual against a
// calibration. A strongly negative ZScore means volume was absorbed
// without the dispersion the law predicts.
type Deviation struct {
	Time       time.Time
	Close      float64
	Volume     float64
	Volatility float64
	ZScore     float64
}
