package ml

import (
	"errors"
	"math"
	"reflect"
	"testing"
)

func tinyTrainerConfig() TrainerConfig {
	return TrainerConfig{
		Lookback:  8,
		Forecast:  2,
		Hidden:    4,
		Layers:    1,
		Epochs:    3,
		BatchSize: 4,
		LearnRate: 0.01,
		Mode:      ExponentFixed,
		Seed:      7,
	}
}

func TestTrainerProducesValidWeights(t *testing.T) {
	cfg := tinyTrainerConfig()
	candles := windowCandles(40)

	w, err := NewTrainer(cfg, nil).Train("TEST", candles)
	if err != nil {
		t.Fatalf("train: %v", err)
	}

	if w.Hidden != 4 {
		t.Fatalf("hidden = %d, want 4", w.Hidden)
	}
	if len(w.Layers) != 1 {
		t.Fatalf("layers = %d, want 1", len(w.Layers))
	}
	l := w.Layers[0]
	if len(l.Wx) != 16 || len(l.Wh) != 16 || len(l.B) != 16 {
		t.Fatalf("gate rows = %d/%d/%d, want 16 each", len(l.Wx), len(l.Wh), len(l.B))
	}
	if len(l.Wx[0]) != InputDim {
		t.Fatalf("input columns = %d, want %d", len(l.Wx[0]), InputDim)
	}
	if len(l.Wh[0]) != 4 {
		t.Fatalf("hidden columns = %d, want 4", len(l.Wh[0]))
	}
	if len(w.HeadW) != 4 {
		t.Fatalf("head = %d, want 4", len(w.HeadW))
	}
	if w.Alpha != TargetAlpha {
		t.Fatalf("fixed mode moved alpha to %v", w.Alpha)
	}
	if w.Mode != ExponentFixed {
		t.Fatalf("mode = %q, want fixed", w.Mode)
	}
}

func TestTrainerLearnedExponentMoves(t *testing.T) {
	cfg := tinyTrainerConfig()
	cfg.Mode = ExponentLearned

	w, err := NewTrainer(cfg, nil).Train("TEST", windowCandles(40))
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if w.Mode != ExponentLearned {
		t.Fatalf("mode = %q, want learned", w.Mode)
	}
	if w.Alpha == TargetAlpha {
		t.Fatalf("learned mode left alpha pinned at %v", w.Alpha)
	}
	if math.IsNaN(w.Alpha) || math.IsInf(w.Alpha, 0) {
		t.Fatalf("alpha = %v", w.Alpha)
	}
}

func TestTrainerDeterministic(t *testing.T) {
	cfg := tinyTrainerConfig()
	candles := windowCandles(40)

	a, err := NewTrainer(cfg, nil).Train("TEST", candles)
	if err != nil {
		t.Fatalf("first train: %v", err)
	}
	b, err := NewTrainer(cfg, nil).Train("TEST", candles)
	if err != nil {
		t.Fatalf("second train: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("same seed produced different weights")
	}
}

func TestTrainerInsufficientData(t *testing.T) {
	cfg := tinyTrainerConfig()

	_, err := NewTrainer(cfg, nil).Train("TEST", windowCandles(9))
	var insuf *InsufficientDataError
	if !errors.As(err, &insuf) {
		t.Fatalf("err = %v, want InsufficientDataError", err)
	}
	if insuf.Required != 10 {
		t.Fatalf("required = %d, want 10", insuf.Required)
	}
}

func TestWeightsRoundTrip(t *testing.T) {
	w, err := NewTrainer(tinyTrainerConfig(), nil).Train("TEST", windowCandles(40))
	if err != nil {
		t.Fatalf("train: %v", err)
	}

	blob, err := w.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := UnmarshalWeights(blob)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(w, got) {
		t.Fatalf("weights changed across the store round trip")
	}
}

func TestUnmarshalWeightsRejectsBadShape(t *testing.T) {
	w, err := NewTrainer(tinyTrainerConfig(), nil).Train("TEST", windowCandles(40))
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	w.HeadW = w.HeadW[:2]
	blob, err := w.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	if _, err := UnmarshalWeights(blob); err == nil {
		t.Fatalf("expected shape error")
	}
	if _, err := UnmarshalWeights([]byte("{")); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestPredictorFiniteOutput(t *testing.T) {
	cfg := tinyTrainerConfig()
	candles := windowCandles(40)

	w, err := NewTrainer(cfg, nil).Train("TEST", candles)
	if err != nil {
		t.Fatalf("train: %v", err)
	}

	win, _, err := NewWindower(cfg.Lookback, cfg.Forecast).Latest("TEST", candles)
	if err != nil {
		t.Fatalf("latest window: %v", err)
	}
	out := NewPredictor(w).Predict(win)
	if math.IsNaN(out) || math.IsInf(out, 0) {
		t.Fatalf("forecast = %v", out)
	}
}
