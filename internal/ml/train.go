package ml

import (
	"math"
	"math/rand"

	"quantcore/internal/domain/models"
	"quantcore/pkg/logger"
)

// TrainerConfig controls the offline training loop.
type TrainerConfig struct {
	Lookback  int
	Forecast  int
	Hidden    int
	Layers    int
	Epochs    int
	BatchSize int
	LearnRate float64
	Mode      ExponentMode
	Seed      int64
}

func (c *TrainerConfig) setDefaults() {
	if c.Lookback <= 0 {
		c.Lookback = DefaultLookback
	}
	if c.Forecast <= 0 {
		c.Forecast = DefaultForecast
	}
	if c.Hidden <= 0 {
		c.Hidden = DefaultHidden
	}
	if c.Layers <= 0 {
		c.Layers = DefaultNumLayers
	}
	if c.Epochs <= 0 {
		c.Epochs = 100
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 32
	}
	if c.LearnRate <= 0 {
		c.LearnRate = 0.001
	}
	if c.Mode == "" {
		c.Mode = ExponentFixed
	}
	if c.Seed == 0 {
		c.Seed = 1
	}
}

// Trainer runs the offline batch optimizer and produces weights for a
// ticker. It is never run concurrently with live trading for the same
// ticker; the engine loads whatever the trainer last published.
type Trainer struct {
	cfg TrainerConfig
	log *logger.Logger
}

func NewTrainer(cfg TrainerConfig, log *logger.Logger) *Trainer {
	cfg.setDefaults()
	return &Trainer{cfg: cfg, log: log}
}

// Train fits the predictor on the full candle history of one ticker.
func (t *Trainer) Train(ticker string, candles []models.Candle) (*Weights, error) {
	wd := NewWindower(t.cfg.Lookback, t.cfg.Forecast)
	wins, scaling := wd.Build(candles)
	if len(wins) == 0 {
		return nil, &InsufficientDataError{Ticker: ticker, Candles: len(candles), Required: wd.MinCandles()}
	}

	rng := rand.New(rand.NewSource(t.cfg.Seed))
	w := &Weights{
		Hidden:  t.cfg.Hidden,
		Layers:  make([]LayerWeights, t.cfg.Layers),
		HeadW:   make([]float64, t.cfg.Hidden),
		Alpha:   TargetAlpha,
		Mode:    t.cfg.Mode,
		Scaling: scaling,
	}
	inDim := InputDim
	for l := range w.Layers {
		w.Layers[l] = newLayerWeights(rng, inDim, t.cfg.Hidden)
		inDim = t.cfg.Hidden
	}
	scale := 1 / math.Sqrt(float64(t.cfg.Hidden))
	for i := range w.HeadW {
		w.HeadW[i] = (rng.Float64()*2 - 1) * scale
	}

	g := newGradients(w)
	opt := newAdam(w, g, t.cfg.LearnRate, t.cfg.Mode == ExponentLearned)

	order := make([]int, len(wins))
	for i := range order {
		order[i] = i
	}

	for epoch := 1; epoch <= t.cfg.Epochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		var epochLoss float64
		var batches int
		for start := 0; start < len(order); start += t.cfg.BatchSize {
			end := start + t.cfg.BatchSize
			if end > len(order) {
				end = len(order)
			}
			batch := order[start:end]

			g.zero()
			loss := t.trainBatch(w, g, wins, batch)
			opt.apply()

			epochLoss += loss
			batches++
		}

		if t.log != nil && (epoch%10 == 0 || epoch == 1 || epoch == t.cfg.Epochs) {
			t.log.Info("training epoch",
				logger.String("ticker", ticker),
				logger.Int("epoch", epoch),
				logger.Int("windows", len(wins)),
				logger.Float64("loss", epochLoss/float64(batches)),
				logger.Float64("alpha", w.Alpha),
			)
		}
	}
	return w, nil
}

// trainBatch accumulates gradients for one minibatch and returns the
// batch loss.
func (t *Trainer) trainBatch(w *Weights, g *gradients, wins []Window, batch []int) float64 {
	preds := make([]float64, len(batch))
	targets := make([]float64, len(batch))
	futVols := make([]float64, len(batch))
	caches := make([][][]stepCache, len(batch))
	outs := make([][][]float64, len(batch))

	for k, idx := range batch {
		win := wins[idx]
		seq := win.X
		caches[k] = make([][]stepCache, len(w.Layers))
		for l := range w.Layers {
			caches[k][l] = make([]stepCache, len(seq))
			seq = lstmForward(w.Layers[l], seq, caches[k][l])
		}
		outs[k] = seq
		last := seq[len(seq)-1]
		pred := w.HeadB
		for i, v := range last {
			pred += w.HeadW[i] * v
		}
		preds[k] = pred
		targets[k] = win.Y
		futVols[k] = win.FutureVolume
	}

	dPreds, dAlpha := lossGradients(preds, targets, futVols, w.Alpha)
	g.alpha += dAlpha

	for k := range batch {
		t.backprop(w, g, caches[k], outs[k], dPreds[k])
	}
	return ComputeLoss(preds, targets, futVols, w.Alpha).Total()
}

// backprop pushes d(loss)/d(pred) for one sample back through the head
// and the recurrent stack, accumulating parameter gradients.
func (t *Trainer) backprop(w *Weights, g *gradients, caches [][]stepCache, topOut [][]float64, dPred float64) {
	steps := len(topOut)
	hidden := w.Hidden

	last := topOut[steps-1]
	dhSeq := make([][]float64, steps)
	for i := range dhSeq {
		dhSeq[i] = make([]float64, hidden)
	}
	for i := 0; i < hidden; i++ {
		g.headW[i] += last[i] * dPred
		dhSeq[steps-1][i] = w.HeadW[i] * dPred
	}
	g.headB += dPred

	for l := len(w.Layers) - 1; l >= 0; l-- {
		dhSeq = lstmBackward(w.Layers[l], caches[l], dhSeq, &g.layers[l])
	}
}

// lstmBackward backpropagates through one layer over time, returning
// the gradient with respect to the layer inputs at every step.
func lstmBackward(lw LayerWeights, caches []stepCache, dhSeq [][]float64, g *layerGradients) [][]float64 {
	steps := len(caches)
	hidden := len(lw.Wh[0])

	dh := make([]float64, hidden)
	dc := make([]float64, hidden)
	dxSeq := make([][]float64, steps)

	dz := make([]float64, 4*hidden)
	for t := steps - 1; t >= 0; t-- {
		cc := caches[t]
		dcPrev := make([]float64, hidden)
		for j := 0; j < hidden; j++ {
			dhTot := dhSeq[t][j] + dh[j]
			dcj := dc[j] + dhTot*cc.o[j]*(1-cc.tc[j]*cc.tc[j])

			dz[j] = dcj * cc.g[j] * cc.i[j] * (1 - cc.i[j])
			dz[hidden+j] = dcj * cc.cPrev[j] * cc.f[j] * (1 - cc.f[j])
			dz[2*hidden+j] = dcj * cc.i[j] * (1 - cc.g[j]*cc.g[j])
			dz[3*hidden+j] = dhTot * cc.tc[j] * cc.o[j] * (1 - cc.o[j])
			dcPrev[j] = dcj * cc.f[j]
		}

		dx := make([]float64, len(cc.x))
		dhPrev := make([]float64, hidden)
		for r := 0; r < 4*hidden; r++ {
			dzr := dz[r]
			if dzr == 0 {
				continue
			}
			g.b[r] += dzr
			for k, xv := range cc.x {
				g.wx[r][k] += dzr * xv
				dx[k] += lw.Wx[r][k] * dzr
			}
			for k, hv := range cc.hPrev {
				g.wh[r][k] += dzr * hv
				dhPrev[k] += lw.Wh[r][k] * dzr
			}
		}
		dxSeq[t] = dx
		dh = dhPrev
		dc = dcPrev
	}
	return dxSeq
}

// --- gradient buffers and optimizer ---

type layerGradients struct {
	wx, wh [][]float64
	b      []float64
}

type gradients struct {
	layers []layerGradients
	headW  []float64
	headB  float64
	alpha  float64
}

func newGradients(w *Weights) *gradients {
	g := &gradients{
		layers: make([]layerGradients, len(w.Layers)),
		headW:  make([]float64, len(w.HeadW)),
	}
	for l, lw := range w.Layers {
		g.layers[l] = layerGradients{
			wx: zeroLike(lw.Wx),
			wh: zeroLike(lw.Wh),
			b:  make([]float64, len(lw.B)),
		}
	}
	return g
}

func (g *gradients) zero() {
	for l := range g.layers {
		for _, row := range g.layers[l].wx {
			clear(row)
		}
		for _, row := range g.layers[l].wh {
			clear(row)
		}
		clear(g.layers[l].b)
	}
	clear(g.headW)
	g.headB = 0
	g.alpha = 0
}

func zeroLike(m [][]float64) [][]float64 {
	out := make([][]float64, len(m))
	for i := range m {
		out[i] = make([]float64, len(m[i]))
	}
	return out
}

// adam is a standard adaptive gradient optimizer over a flat view of
// every trainable parameter.
type adam struct {
	params []*float64
	grads  []*float64
	m, v   []float64
	lr     float64
	step   int
}

const (
	adamBeta1 = 0.9
	adamBeta2 = 0.999
	adamEps   = 1e-8
)

func newAdam(w *Weights, g *gradients, lr float64, learnAlpha bool) *adam {
	var params, grads []*float64
	for l := range w.Layers {
		params, grads = collectMatrix(params, grads, w.Layers[l].Wx, g.layers[l].wx)
		params, grads = collectMatrix(params, grads, w.Layers[l].Wh, g.layers[l].wh)
		params, grads = collectVector(params, grads, w.Layers[l].B, g.layers[l].b)
	}
	params, grads = collectVector(params, grads, w.HeadW, g.headW)
	params = append(params, &w.HeadB)
	grads = append(grads, &g.headB)
	if learnAlpha {
		params = append(params, &w.Alpha)
		grads = append(grads, &g.alpha)
	}
	return &adam{
		params: params,
		grads:  grads,
		m:      make([]float64, len(params)),
		v:      make([]float64, len(params)),
		lr:     lr,
	}
}

func collectMatrix(params, grads []*float64, w, g [][]float64) ([]*float64, []*float64) {
	for i := range w {
		for j := range w[i] {
			params = append(params, &w[i][j])
			grads = append(grads, &g[i][j])
		}
	}
	return params, grads
}

func collectVector(params, grads []*float64, w, g []float64) ([]*float64, []*float64) {
	for i := range w {
		params = append(params, &w[i])
		grads = append(grads, &g[i])
	}
	return params, grads
}

func (a *adam) apply() {
	a.step++
	c1 := 1 - math.Pow(adamBeta1, float64(a.step))
	c2 := 1 - math.Pow(adamBeta2, float64(a.step))
	for i, p := range a.params {
		grad := *a.grads[i]
		a.m[i] = adamBeta1*a.m[i] + (1-adamBeta1)*grad
		a.v[i] = adamBeta2*a.v[i] + (1-adamBeta2)*grad*grad
		mHat := a.m[i] / c1
		vHat := a.v[i] / c2
		*p -= a.lr * mHat / (math.Sqrt(vHat) + adamEps)
	}
}
