package ml

import (
	"math"
	"testing"
)

func TestLossComposition(t *testing.T) {
	preds := []float64{0.3, 0.1, 0.5}
	targets := []float64{0.2, 0.4, 0.45}
	futVols := []float64{1200, 4800, 9100}

	terms := ComputeLoss(preds, targets, futVols, 0.5)
	want := terms.Data + PhysicsWeight*terms.Physics + PenaltyWeight*terms.Penalty
	if terms.Total() != want {
		t.Fatalf("total = %v, want %v", terms.Total(), want)
	}
	if terms.Data <= 0 || terms.Physics <= 0 || terms.Penalty <= 0 {
		t.Fatalf("expected strictly positive terms, got %+v", terms)
	}
}

func TestLossPenaltyZeroAtTarget(t *testing.T) {
	terms := ComputeLoss([]float64{0.3}, []float64{0.2}, []float64{1000}, TargetAlpha)
	if terms.Penalty != 0 {
		t.Fatalf("penalty = %v, want 0 at the target exponent", terms.Penalty)
	}
}

func TestLossPhysicsZeroAtTheory(t *testing.T) {
	futVols := []float64{800, 2500, 16000}
	alpha := 0.44
	preds := make([]float64, len(futVols))
	for k, v := range futVols {
		preds[k] = TheoreticalVolatility(v, alpha)
	}

	terms := ComputeLoss(preds, preds, futVols, alpha)
	if terms.Physics != 0 {
		t.Fatalf("physics = %v, want 0 when predictions match the law", terms.Physics)
	}
	if terms.Data != 0 {
		t.Fatalf("data = %v, want 0", terms.Data)
	}
}

func TestLossGradientsMatchFiniteDifference(t *testing.T) {
	preds := []float64{0.31, 0.12, 0.47, 0.05}
	targets := []float64{0.25, 0.3, 0.4, 0.1}
	futVols := []float64{900, 3100, 7600, 15000}
	alpha := 0.52
	const h = 1e-6

	dPreds, dAlpha := lossGradients(preds, targets, futVols, alpha)

	for k := range preds {
		bumped := append([]float64(nil), preds...)
		bumped[k] = preds[k] + h
		up := ComputeLoss(bumped, targets, futVols, alpha).Total()
		bumped[k] = preds[k] - h
		down := ComputeLoss(bumped, targets, futVols, alpha).Total()

		numeric := (up - down) / (2 * h)
		if math.Abs(numeric-dPreds[k]) > 1e-5 {
			t.Fatalf("dPred[%d] = %v, finite difference %v", k, dPreds[k], numeric)
		}
	}

	up := ComputeLoss(preds, targets, futVols, alpha+h).Total()
	down := ComputeLoss(preds, targets, futVols, alpha-h).Total()
	numeric := (up - down) / (2 * h)
	if math.Abs(numeric-dAlpha) > 1e-4*math.Max(1, math.Abs(dAlpha)) {
		t.Fatalf("dAlpha = %v, finite difference %v", dAlpha, numeric)
	}
}

func TestTheoreticalVolatilityMonotone(t *testing.T) {
	lo := TheoreticalVolatility(1000, 0.44)
	hi := TheoreticalVolatility(50000, 0.44)
	if hi <= lo {
		t.Fatalf("theory not increasing in volume: %v vs %v", lo, hi)
	}
}
