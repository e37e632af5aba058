package ml

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrModelNotFound means no trained weights exist for a ticker. The
// trading engine treats this as fatal at construction: weights must be
// published by the training loop before live inference.
var ErrModelNotFound = errors.New("ml: model weights not found")

// ExponentMode selects how the physics-consistency exponent is
// handled by the loss: pinned to the law's expected value, or trained
// as a free scalar parameter.
type ExponentMode string

const (
	ExponentFixed   ExponentMode = "fixed"
	ExponentLearned ExponentMode = "learned"
)

// Weights is the full persisted state of a trained predictor: the
// recurrent stack, the linear head, the exponent term the model
// settled on, and the feature scaling fitted at training time.
type Weights struct {
	Hidden  int            `json:"hidden"`
	Layers  []LayerWeights `json:"layers"`
	HeadW   []float64      `json:"head_w"`
	HeadB   float64        `json:"head_b"`
	Alpha   float64        `json:"alpha"`
	Mode    ExponentMode   `json:"mode"`
	Scaling Scaling        `json:"scaling"`
}

// Marshal encodes weights for the weight store.
func (w *Weights) Marshal() ([]byte, error) {
	return json.Marshal(w)
}

// UnmarshalWeights decodes a weight blob and validates its shape.
func UnmarshalWeights(blob []byte) (*Weights, error) {
	var w Weights
	if err := json.Unmarshal(blob, &w); err != nil {
		return nil, fmt.Errorf("decode weights: %w", err)
	}
	if w.Hidden <= 0 || len(w.Layers) == 0 || len(w.HeadW) != w.Hidden {
		return nil, fmt.Errorf("decode weights: inconsistent shape (hidden=%d layers=%d head=%d)",
			w.Hidden, len(w.Layers), len(w.HeadW))
	}
	for i, l := range w.Layers {
		if len(l.Wx) != 4*w.Hidden || len(l.Wh) != 4*w.Hidden || len(l.B) != 4*w.Hidden {
			return nil, fmt.Errorf("decode weights: layer %d has wrong gate rows", i)
		}
	}
	return &w, nil
}
