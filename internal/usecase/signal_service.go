package usecase

import (
	"context"
	"fmt"
	"sync"

	"quantcore/internal/cache"
	"quantcore/internal/domain/models"
	domrepo "quantcore/internal/domain/repository"
	"quantcore/internal/ml"
	"quantcore/internal/physics"
	applogger "quantcore/pkg/logger"
)

// SignalService runs the analytics half of the pipeline: calibration,
// deviation scoring and model inference over the stored candle
// history. It implements trading.Signaler for the decision engine and
// serves the same views to the HTTP API.
type SignalService struct {
	store      domrepo.CandleStore
	weights    domrepo.WeightStore
	calibrator *physics.Calibrator
	windower   *ml.Windower
	calCache   cache.CalibrationCache
	metrics    domrepo.Metrics
	log        *applogger.Logger

	mu         sync.Mutex
	predictors map[string]*ml.Predictor
}

func NewSignalService(
	store domrepo.CandleStore,
	weights domrepo.WeightStore,
	calibrator *physics.Calibrator,
	windower *ml.Windower,
	calCache cache.CalibrationCache,
	metrics domrepo.Metrics,
	log *applogger.Logger,
) *SignalService {
	return &SignalService{
		store:      store,
		weights:    weights,
		calibrator: calibrator,
		windower:   windower,
		calCache:   calCache,
		metrics:    metrics,
		log:        log,
		predictors: make(map[string]*ml.Predictor),
	}
}

// Signal computes the fused per-tick view for one ticker: the latest
// candle's deviation z-score plus the model's volatility forecast.
// Skippable conditions surface as the physics/ml typed errors.
func (s *SignalService) Signal(ctx context.Context, ticker string) (models.TickSignal, error) {
	candles, err := s.store.Query(ctx, ticker)
	if err != nil {
		return models.TickSignal{}, fmt.Errorf("query candles for %s: %w", ticker, err)
	}

	cal, err := s.calibrator.Calibrate(ticker, candles)
	if err != nil {
		return models.TickSignal{}, err
	}
	s.metrics.RecordCalibration(ticker, cal.Alpha, cal.R2)
	if s.calCache != nil {
		s.calCache.Put(ctx, ticker, cal)
	}

	devs, err := physics.ScoreDeviations(cal)
	if err != nil {
		return models.TickSignal{}, err
	}
	last := devs[len(devs)-1]

	forecast, err := s.Forecast(ctx, ticker, candles)
	if err != nil {
		return models.TickSignal{}, err
	}

	return models.TickSignal{
		Ticker:   ticker,
		Time:     last.Time,
		Price:    last.Close,
		ZScore:   last.ZScore,
		Forecast: forecast,
	}, nil
}

// Calibration returns the fitted power law for a ticker, serving a
// cached snapshot when one is fresh.
func (s *SignalService) Calibration(ctx context.Context, ticker string) (*models.Calibration, error) {
	if s.calCache != nil {
		if cal, ok := s.calCache.Get(ctx, ticker); ok {
			return cal, nil
		}
	}
	candles, err := s.store.Query(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("query candles for %s: %w", ticker, err)
	}
	cal, err := s.calibrator.Calibrate(ticker, candles)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordCalibration(ticker, cal.Alpha, cal.R2)
	if s.calCache != nil {
		s.calCache.Put(ctx, ticker, cal)
	}
	return cal, nil
}

// Deviations scores the ticker's history and returns the most recent
// records, newest last.
func (s *SignalService) Deviations(ctx context.Context, ticker string, limit int) ([]models.Deviation, error) {
	cal, err := s.Calibration(ctx, ticker)
	if err != nil {
		return nil, err
	}
	devs, err := physics.ScoreDeviations(cal)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(devs) > limit {
		devs = devs[len(devs)-limit:]
	}
	return devs, nil
}

// Forecast runs the predictor over the newest window of the candle
// tail. Candles may be nil, in which case the tail is fetched.
func (s *SignalService) Forecast(ctx context.Context, ticker string, candles []models.Candle) (float64, error) {
	if candles == nil {
		var err error
		candles, err = s.store.QueryLastN(ctx, ticker, s.windower.MinCandles())
		if err != nil {
			return 0, fmt.Errorf("query tail for %s: %w", ticker, err)
		}
	}

	win, _, err := s.windower.Latest(ticker, candles)
	if err != nil {
		return 0, err
	}

	pred, err := s.predictor(ticker)
	if err != nil {
		return 0, err
	}
	return pred.Predict(win), nil
}

// predictor loads and caches the trained model for a ticker.
func (s *SignalService) predictor(ticker string) (*ml.Predictor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.predictors[ticker]; ok {
		return p, nil
	}

	blob, err := s.weights.Load(ticker)
	if err != nil {
		return nil, err
	}
	w, err := ml.UnmarshalWeights(blob)
	if err != nil {
		return nil, err
	}

	p := ml.NewPredictor(w)
	s.predictors[ticker] = p
	s.log.Info("model loaded",
		applogger.String("ticker", ticker),
		applogger.Int("hidden", w.Hidden),
		applogger.Int("layers", len(w.Layers)),
		applogger.String("exponent_mode", string(w.Mode)),
	)
	return p, nil
}

// InvalidateModel drops the cached predictor so freshly published
// weights are picked up on the next forecast.
func (s *SignalService) InvalidateModel(ticker string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.predictors, ticker)
}
