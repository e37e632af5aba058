package physics

import (
	"math"
	"sort"

	"quantcore/internal/domain/models"
)

// Anomaly thresholds on the deviation z-score. A candle far below the
// law absorbed volume without the expected dispersion; a score back
// above zero means the law is restored.
const (
	AnomalyThreshold = -2.5
	LawRestoredLevel = 0.0
)

// ScoreDeviations standardizes every cleaned observation in the
// calibration snapshot against the fitted law. Residuals are centered
// and divided by their population standard deviation, so the output
// mean z-score is zero by construction. Output is ordered ascending by
// time.
func ScoreDeviations(cal *models.Calibration) ([]models.Deviation, error) {
	raw := cal.Raw
	n := len(raw)
	if n == 0 {
		return nil, &DegenerateResidualError{Ticker: cal.Ticker, Std: 0}
	}

	residuals := make([]float64, n)
	var sum float64
	for i, p := range raw {
		pred := cal.Alpha*p.LogQ + cal.Intercept
		residuals[i] = p.LogI - pred
		sum += residuals[i]
	}
	mean := sum / float64(n)

	var ss float64
	for _, r := range residuals {
		d := r - mean
		ss += d * d
	}
	std := math.Sqrt(ss / float64(n))
	if std == 0 || math.IsNaN(std) || math.IsInf(std, 0) {
		return nil, &DegenerateResidualError{Ticker: cal.Ticker, Std: std}
	}

	out := make([]models.Deviation, n)
	for i, p := range raw {
		out[i] = models.Deviation{
			Time:       p.Time,
			Close:      p.Close,
			Volume:     p.Volume,
			Volatility: math.Exp(p.LogI),
			ZScore:     (residuals[i] - mean) / std,
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}
