package physics

import (
	"math"
	"sort"

	"quantcore/internal/domain/models"
)

const (
	// DefaultBins is the number of volume quantile buckets.
	DefaultBins = 40

	minCleanCandles = 100
	minSmartBuckets = 3
)

// Calibrator fits the power law I ~ Q^alpha (volatility vs volume)
// from a candle history snapshot. The fit is ordinary least squares in
// log-log space over the high-volume half of the binned observations,
// where the tail of the law is most reliably estimated.
type Calibrator struct {
	bins int
}

// NewCalibrator returns a calibrator with the given bucket count.
// Non-positive bins falls back to DefaultBins.
func NewCalibrator(bins int) *Calibrator {
	if bins <= 0 {
		bins = DefaultBins
	}
	return &Calibrator{bins: bins}
}

// Calibrate fits the law for one ticker. Candles must be ordered
// ascending by time. Identical inputs always produce identical results.
func (c *Calibrator) Calibrate(ticker string, candles []models.Candle) (*models.Calibration, error) {
	raw := cleanCandles(candles)
	if len(raw) < minCleanCandles {
		return nil, &InsufficientDataError{Ticker: ticker, Candles: len(raw), Required: minCleanCandles}
	}

	binned := binByVolume(raw, c.bins)

	smart := smartMoneySubset(binned)
	if len(smart) < minSmartBuckets {
		return nil, &CalibrationError{Ticker: ticker, SmartBuckets: len(smart)}
	}

	alpha, intercept, r2 := fitOLS(smart)

	return &models.Calibration{
		Ticker:     ticker,
		Alpha:      alpha,
		Intercept:  intercept,
		R2:         r2,
		Binned:     binned,
		SmartMoney: smart,
		Raw:        raw,
	}, nil
}

// cleanCandles drops candles whose volatility or volume is
// non-positive; both enter the fit through a logarithm.
func cleanCandles(candles []models.Candle) []models.RawPoint {
	out := make([]models.RawPoint, 0, len(candles))
	for _, cd := range candles {
		vol := cd.Volatility()
		if vol <= 0 || cd.Volume <= 0 {
			continue
		}
		out = append(out, models.RawPoint{
			Time:   cd.Time,
			Close:  cd.Close,
			Volume: cd.Volume,
			LogQ:   math.Log(cd.Volume),
			LogI:   math.Log(vol),
		})
	}
	return out
}

// binByVolume partitions points into quantile buckets on raw volume and
// averages log coordinates per bucket. When quantile edges collapse
// (low volume cardinality), it falls back to equal-width buckets over
// the volume range.
func binByVolume(raw []models.RawPoint, bins int) []models.LogPoint {
	vols := make([]float64, len(raw))
	for i, p := range raw {
		vols[i] = p.Volume
	}
	sorted := append([]float64(nil), vols...)
	sort.Float64s(sorted)

	edges := quantileEdges(sorted, bins)
	if len(edges) < 3 {
		edges = equalWidthEdges(sorted[0], sorted[len(sorted)-1], bins)
	}

	nb := len(edges) - 1
	sumQ := make([]float64, nb)
	sumI := make([]float64, nb)
	count := make([]int, nb)
	for _, p := range raw {
		b := bucketIndex(edges, p.Volume)
		sumQ[b] += p.LogQ
		sumI[b] += p.LogI
		count[b]++
	}

	out := make([]models.LogPoint, 0, nb)
	for b := 0; b < nb; b++ {
		if count[b] == 0 {
			continue
		}
		n := float64(count[b])
		out = append(out, models.LogPoint{LogQ: sumQ[b] / n, LogI: sumI[b] / n})
	}
	return out
}

// quantileEdges computes bucket boundaries at quantiles i/bins over the
// sorted volumes, dropping duplicates. Linear interpolation between
// order statistics.
func quantileEdges(sorted []float64, bins int) []float64 {
	edges := make([]float64, 0, bins+1)
	n := len(sorted)
	for i := 0; i <= bins; i++ {
		q := float64(i) / float64(bins)
		pos := q * float64(n-1)
		lo := int(math.Floor(pos))
		hi := int(math.Ceil(pos))
		v := sorted[lo]
		if hi > lo {
			frac := pos - float64(lo)
			v = sorted[lo]*(1-frac) + sorted[hi]*frac
		}
		if len(edges) == 0 || v > edges[len(edges)-1] {
			edges = append(edges, v)
		}
	}
	return edges
}

func equalWidthEdges(min, max float64, bins int) []float64 {
	if max <= min {
		return []float64{min, max}
	}
	edges := make([]float64, bins+1)
	step := (max - min) / float64(bins)
	for i := 0; i <= bins; i++ {
		edges[i] = min + float64(i)*step
	}
	edges[bins] = max
	return edges
}

// bucketIndex places v into the half-open bucket [edges[i], edges[i+1]),
// with the last bucket closed on the right.
func bucketIndex(edges []float64, v float64) int {
	i := sort.SearchFloat64s(edges, v)
	if i > 0 && (i == len(edges) || edges[i] != v) {
		i--
	}
	if i >= len(edges)-1 {
		i = len(edges) - 2
	}
	return i
}

// smartMoneySubset keeps the buckets whose average log volume exceeds
// the median across buckets: the high-volume half presumed to carry
// informed flow.
func smartMoneySubset(binned []models.LogPoint) []models.LogPoint {
	if len(binned) == 0 {
		return nil
	}
	qs := make([]float64, len(binned))
	for i, p := range binned {
		qs[i] = p.LogQ
	}
	sort.Float64s(qs)
	var median float64
	mid := len(qs) / 2
	if len(qs)%2 == 1 {
		median = qs[mid]
	} else {
		median = (qs[mid-1] + qs[mid]) / 2
	}

	out := make([]models.LogPoint, 0, len(binned))
	for _, p := range binned {
		if p.LogQ > median {
			out = append(out, p)
		}
	}
	return out
}

// fitOLS fits log_I = alpha*log_Q + intercept and returns the
// coefficient of determination of the fit.
func fitOLS(points []models.LogPoint) (alpha, intercept, r2 float64) {
	n := float64(len(points))
	var sumX, sumY, sumXX, sumYY, sumXY float64
	for _, p := range points {
		sumX += p.LogQ
		sumY += p.LogI
		sumXX += p.LogQ * p.LogQ
		sumYY += p.LogI * p.LogI
		sumXY += p.LogQ * p.LogI
	}

	varX := sumXX - sumX*sumX/n
	varY := sumYY - sumY*sumY/n
	covXY := sumXY - sumX*sumY/n

	if varX == 0 {
		return 0, sumY / n, 0
	}
	alpha = covXY / varX
	intercept = (sumY - alpha*sumX) / n
	if varY == 0 {
		return alpha, intercept, 0
	}
	r := covXY / math.Sqrt(varX*varY)
	return alpha, intercept, r * r
}
