package ml

import (
	"fmt"
	"math"

	"quantcore/internal/domain/models"
)

// Default learning-window horizons, in one-minute candles.
const (
	DefaultLookback = 60
	DefaultForecast = 10
)

// InsufficientDataError reports a candle tail too short to build any
// learning window.
type InsufficientDataError struct {
	Ticker   string
	Candles  int
	Required int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("ml: %s has %d candles, need %d for one window", e.Ticker, e.Candles, e.Required)
}

// Scaling holds the min-max bounds fitted on a candle tail. The three
// feature channels are scaled independently. The scaling that produced
// a trained model is persisted inside its weights.
type Scaling struct {
	RetMin, RetMax       float64
	VolMin, VolMax       float64
	LogVolMin, LogVolMax float64
}

func (s Scaling) scaleRet(v float64) float64    { return minmax(v, s.RetMin, s.RetMax) }
func (s Scaling) scaleVol(v float64) float64    { return minmax(v, s.VolMin, s.VolMax) }
func (s Scaling) scaleLogVol(v float64) float64 { return minmax(v, s.LogVolMin, s.LogVolMax) }

func minmax(v, lo, hi float64) float64 {
	if hi <= lo {
		return 0
	}
	return (v - lo) / (hi - lo)
}

// Window is one fixed-length learning sample: a lookback x 3 feature
// matrix, the normalized forward-volatility target, and the raw
// average volume over the forecast horizon used by the physics loss.
type Window struct {
	X            [][]float64
	Y            float64
	FutureVolume float64
}

// Windower turns a raw candle tail into normalized learning windows.
// Scaling is fitted on the given tail, local to each call.
type Windower struct {
	lookback int
	forecast int
}

func NewWindower(lookback, forecast int) *Windower {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	if forecast <= 0 {
		forecast = DefaultForecast
	}
	return &Windower{lookback: lookback, forecast: forecast}
}

func (w *Windower) Lookback() int { return w.lookback }
func (w *Windower) Forecast() int { return w.forecast }

// MinCandles is the shortest tail that yields one window.
func (w *Windower) MinCandles() int { return w.lookback + w.forecast }

// Build computes the feature channels over the tail, fits the scaling,
// and emits every complete window. A tail shorter than
// lookback+forecast yields zero windows.
func (w *Windower) Build(candles []models.Candle) ([]Window, Scaling) {
	n := len(candles)
	logRet := make([]float64, n)
	vol := make([]float64, n)
	logVol := make([]float64, n)
	rawVol := make([]float64, n)
	for i, c := range candles {
		if i == 0 || candles[i-1].Close <= 0 || c.Close <= 0 {
			logRet[i] = 0
		} else {
			logRet[i] = math.Log(c.Close / candles[i-1].Close)
		}
		vol[i] = c.Volatility()
		logVol[i] = math.Log(c.Volume + 1)
		rawVol[i] = c.Volume
	}

	sc := fitScaling(logRet, vol, logVol)

	count := n - w.lookback - w.forecast + 1
	if count < 0 {
		count = 0
	}
	out := make([]Window, 0, count)
	for i := 0; i < count; i++ {
		x := make([][]float64, w.lookback)
		for t := 0; t < w.lookback; t++ {
			j := i + t
			x[t] = []float64{
				sc.scaleRet(logRet[j]),
				sc.scaleVol(vol[j]),
				sc.scaleLogVol(logVol[j]),
			}
		}
		var ySum, vSum float64
		for j := i + w.lookback; j < i+w.lookback+w.forecast; j++ {
			ySum += sc.scaleVol(vol[j])
			vSum += rawVol[j]
		}
		out = append(out, Window{
			X:            x,
			Y:            ySum / float64(w.forecast),
			FutureVolume: vSum / float64(w.forecast),
		})
	}
	return out, sc
}

// Latest builds the newest complete window from the tail: the lookback
// slice covering candles [n-lookback-forecast, n-forecast). Returns an
// InsufficientDataError when the tail is too short.
func (w *Windower) Latest(ticker string, candles []models.Candle) (Window, Scaling, error) {
	if len(candles) < w.MinCandles() {
		return Window{}, Scaling{}, &InsufficientDataError{
			Ticker:   ticker,
			Candles:  len(candles),
			Required: w.MinCandles(),
		}
	}
	tail := candles[len(candles)-w.MinCandles():]
	wins, sc := w.Build(tail)
	return wins[len(wins)-1], sc, nil
}

func fitScaling(logRet, vol, logVol []float64) Scaling {
	retMin, retMax := bounds(logRet)
	volMin, volMax := bounds(vol)
	lvMin, lvMax := bounds(logVol)
	return Scaling{
		RetMin: retMin, RetMax: retMax,
		VolMin: volMin, VolMax: volMax,
		LogVolMin: lvMin, LogVolMax: lvMax,
	}
}

func bounds(xs []float64) (lo, hi float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	lo, hi = xs[0], xs[0]
	for _, v := range xs[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}
