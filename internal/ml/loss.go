package ml

import "math"

// Compound objective constants. The physics term pulls the forecast
// toward what the power law alone would predict from future volume;
// the penalty regularizes the exponent toward the law's expected
// value.
const (
	PhysicsWeight = 0.5
	PenaltyWeight = 0.1
	PhysicsScale  = 0.01
	TargetAlpha   = 0.44
	volEpsilon    = 1e-6
)

// LossTerms breaks the compound objective into its components.
type LossTerms struct {
	Data    float64
	Physics float64
	Penalty float64
}

// Total is data + 0.5*physics + 0.1*penalty.
func (t LossTerms) Total() float64 {
	return t.Data + PhysicsWeight*t.Physics + PenaltyWeight*t.Penalty
}

// TheoreticalVolatility is the dispersion the power law predicts from
// volume alone, scaled into normalized target space.
func TheoreticalVolatility(futureVolume, alpha float64) float64 {
	return math.Pow(futureVolume+volEpsilon, alpha) * PhysicsScale
}

// ComputeLoss evaluates the compound objective over a batch of
// predictions. preds, targets and futureVolumes must be equal length.
func ComputeLoss(preds, targets, futureVolumes []float64, alpha float64) LossTerms {
	n := float64(len(preds))
	var data, phys float64
	for k, p := range preds {
		d := p - targets[k]
		data += d * d
		pd := p - TheoreticalVolatility(futureVolumes[k], alpha)
		phys += pd * pd
	}
	diff := alpha - TargetAlpha
	return LossTerms{
		Data:    data / n,
		Physics: phys / n,
		Penalty: diff * diff,
	}
}

// lossGradients returns d(total)/d(pred) for every sample and
// d(total)/d(alpha) for the learned-exponent mode.
func lossGradients(preds, targets, futureVolumes []float64, alpha float64) (dPreds []float64, dAlpha float64) {
	n := float64(len(preds))
	dPreds = make([]float64, len(preds))
	for k, p := range preds {
		theo := TheoreticalVolatility(futureVolumes[k], alpha)
		dPreds[k] = (2*(p-targets[k]) + PhysicsWeight*2*(p-theo)) / n
		// d theo / d alpha = theo * ln(volume + eps)
		dAlpha += PhysicsWeight * (-2 * (p - theo) * theo * math.Log(futureVolumes[k]+volEpsilon)) / n
	}
	dAlpha += PenaltyWeight * 2 * (alpha - TargetAlpha)
	return dPreds, dAlpha
}
