package ml

import (
	"math"
	"math/rand"
)

// Model dimensions. The predictor is a stacked recurrent encoder over
// 3-channel feature steps; the final hidden state is projected to one
// scalar, the normalized forward-volatility forecast.
const (
	InputDim         = 3
	DefaultHidden    = 64
	DefaultNumLayers = 2
)

// LayerWeights holds one LSTM layer. Gate rows are packed in the order
// input, forget, cell, output: Wx and Wh have 4*Hidden rows.
type LayerWeights struct {
	Wx [][]float64 `json:"wx"` // 4H x in
	Wh [][]float64 `json:"wh"` // 4H x H
	B  []float64   `json:"b"`  // 4H
}

// Predictor maps a learning window to a scalar forecast. It is a pure
// function of the loaded weights: no mutable state across calls.
type Predictor struct {
	w *Weights
}

func NewPredictor(w *Weights) *Predictor {
	return &Predictor{w: w}
}

// Predict runs the stacked recurrent encoder over the window and
// projects the final hidden state.
func (p *Predictor) Predict(win Window) float64 {
	seq := win.X
	for _, layer := range p.w.Layers {
		seq = lstmForward(layer, seq, nil)
	}
	last := seq[len(seq)-1]
	out := p.w.HeadB
	for i, v := range last {
		out += p.w.HeadW[i] * v
	}
	return out
}

// stepCache keeps per-step activations needed for backpropagation.
type stepCache struct {
	x          []float64 // layer input at this step
	i, f, g, o []float64 // gate activations
	c          []float64 // cell state
	tc         []float64 // tanh(c)
	hPrev      []float64
	cPrev      []float64
}

// lstmForward runs one layer over the sequence and returns the hidden
// state at every step. When caches is non-nil it must have len(seq)
// entries and is filled for backpropagation.
func lstmForward(lw LayerWeights, seq [][]float64, caches []stepCache) [][]float64 {
	hidden := len(lw.Wh[0])
	h := make([]float64, hidden)
	c := make([]float64, hidden)
	out := make([][]float64, len(seq))

	for t, x := range seq {
		var hPrev, cPrev []float64
		if caches != nil {
			hPrev = append([]float64(nil), h...)
			cPrev = append([]float64(nil), c...)
		}

		gi := make([]float64, hidden)
		gf := make([]float64, hidden)
		gg := make([]float64, hidden)
		og := make([]float64, hidden)
		nh := make([]float64, hidden)
		nc := make([]float64, hidden)
		tc := make([]float64, hidden)

		for j := 0; j < hidden; j++ {
			zi := lw.B[j]
			zf := lw.B[hidden+j]
			zg := lw.B[2*hidden+j]
			zo := lw.B[3*hidden+j]
			for k, xv := range x {
				zi += lw.Wx[j][k] * xv
				zf += lw.Wx[hidden+j][k] * xv
				zg += lw.Wx[2*hidden+j][k] * xv
				zo += lw.Wx[3*hidden+j][k] * xv
			}
			for k, hv := range h {
				zi += lw.Wh[j][k] * hv
				zf += lw.Wh[hidden+j][k] * hv
				zg += lw.Wh[2*hidden+j][k] * hv
				zo += lw.Wh[3*hidden+j][k] * hv
			}
			gi[j] = sigmoid(zi)
			gf[j] = sigmoid(zf)
			gg[j] = math.Tanh(zg)
			og[j] = sigmoid(zo)
			nc[j] = gf[j]*c[j] + gi[j]*gg[j]
			tc[j] = math.Tanh(nc[j])
			nh[j] = og[j] * tc[j]
		}

		h, c = nh, nc
		out[t] = h
		if caches != nil {
			caches[t] = stepCache{
				x: x, i: gi, f: gf, g: gg, o: og,
				c: nc, tc: tc, hPrev: hPrev, cPrev: cPrev,
			}
		}
	}
	return out
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

// newLayerWeights initializes a layer with small uniform weights.
func newLayerWeights(rng *rand.Rand, inputDim, hidden int) LayerWeights {
	scale := 1 / math.Sqrt(float64(hidden))
	lw := LayerWeights{
		Wx: randMatrix(rng, 4*hidden, inputDim, scale),
		Wh: randMatrix(rng, 4*hidden, hidden, scale),
		B:  make([]float64, 4*hidden),
	}
	// Forget-gate bias starts at 1 so early training retains state.
	for j := hidden; j < 2*hidden; j++ {
		lw.B[j] = 1
	}
	return lw
}

func randMatrix(rng *rand.Rand, rows, cols int, scale float64) [][]float64 {
	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, cols)
		for j := range m[i] {
			m[i][j] = (rng.Float64()*2 - 1) * scale
		}
	}
	return m
}
