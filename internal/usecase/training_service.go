package usecase

import (
	"context"
	"fmt"

	domrepo "quantcore/internal/domain/repository"
	"quantcore/internal/ml"
	applogger "quantcore/pkg/logger"
)

// ModelInvalidator drops a cached predictor after new weights are
// published. SignalService satisfies it.
type ModelInvalidator interface {
	InvalidateModel(ticker string)
}

// TrainOptions overrides parts of the configured training run. Zero
// values fall back to the service config.
type TrainOptions struct {
	Epochs    int
	BatchSize int
	LearnRate float64
	Exponent  string
	Seed      int64
}

// TrainingService runs the offline training loop for a ticker and
// publishes the resulting weights.
type TrainingService struct {
	store      domrepo.CandleStore
	weights    domrepo.WeightStore
	cfg        ml.TrainerConfig
	invalidate ModelInvalidator
	log        *applogger.Logger
}

func NewTrainingService(
	store domrepo.CandleStore,
	weights domrepo.WeightStore,
	cfg ml.TrainerConfig,
	invalidate ModelInvalidator,
	log *applogger.Logger,
) *TrainingService {
	return &TrainingService{
		store:      store,
		weights:    weights,
		cfg:        cfg,
		invalidate: invalidate,
		log:        log,
	}
}

// Train fits a fresh model on the ticker's full stored history, saves
// the weights and invalidates any cached predictor.
func (s *TrainingService) Train(ctx context.Context, ticker string, opts TrainOptions) (*ml.Weights, error) {
	candles, err := s.store.Query(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("query candles for %s: %w", ticker, err)
	}

	cfg := s.cfg
	if opts.Epochs > 0 {
		cfg.Epochs = opts.Epochs
	}
	if opts.BatchSize > 0 {
		cfg.BatchSize = opts.BatchSize
	}
	if opts.LearnRate > 0 {
		cfg.LearnRate = opts.LearnRate
	}
	if opts.Exponent != "" {
		cfg.Mode = ml.ExponentMode(opts.Exponent)
	}
	if opts.Seed != 0 {
		cfg.Seed = opts.Seed
	}

	w, err := ml.NewTrainer(cfg, s.log).Train(ticker, candles)
	if err != nil {
		return nil, err
	}

	blob, err := w.Marshal()
	if err != nil {
		return nil, fmt.Errorf("marshal weights for %s: %w", ticker, err)
	}
	if err := s.weights.Save(ticker, blob); err != nil {
		return nil, fmt.Errorf("save weights for %s: %w", ticker, err)
	}
	if s.invalidate != nil {
		s.invalidate.InvalidateModel(ticker)
	}

	s.log.Info("model published",
		applogger.String("ticker", ticker),
		applogger.Int("candles", len(candles)),
		applogger.Float64("alpha", w.Alpha),
		applogger.String("exponent_mode", string(w.Mode)),
	)
	return w, nil
}
