package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"quantcore/internal/domain/models"
	domrepo "quantcore/internal/domain/repository"
	"quantcore/internal/ml"
	"quantcore/internal/physics"
	"quantcore/internal/usecase"
	xhttp "quantcore/pkg/http"
	xlogger "quantcore/pkg/logger"
	"quantcore/pkg/queue"
)

// Handler serves the analytics and trading views over HTTP.
type Handler struct {
	logger   *xlogger.Logger
	signals  *usecase.SignalService
	backtest *usecase.Backtester
	ledger   domrepo.TradeLogReader
	trainQ   queue.QueueService
	trainer  *usecase.TrainingService
	store    domrepo.CandleStore
}

func NewHandler(
	logger *xlogger.Logger,
	signals *usecase.SignalService,
	backtest *usecase.Backtester,
	ledger domrepo.TradeLogReader,
	trainQ queue.QueueService,
	trainer *usecase.TrainingService,
	store domrepo.CandleStore,
) *Handler {
	return &Handler{
		logger:   logger,
		signals:  signals,
		backtest: backtest,
		ledger:   ledger,
		trainQ:   trainQ,
		trainer:  trainer,
		store:    store,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api/v1")
	g.GET("/physics/:ticker", h.Physics)
	g.GET("/deviations/:ticker", h.Deviations)
	g.GET("/forecast/:ticker", h.Forecast)
	g.GET("/scan/:ticker", h.Scan)
	g.GET("/trades/:ticker", h.Trades)
	g.POST("/train/:ticker", h.Train)
}

// Health reports storage reachability.
func (h *Handler) Health(c echo.Context) error {
	if err := h.store.Health(c.Request().Context()); err != nil {
		h.logger.Error("health check failed", xlogger.Error(err))
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, "storage unreachable")
	}
	return xhttp.SuccessResponse(c, "ok")
}

type physicsResponse struct {
	Ticker     string            `json:"ticker"`
	Alpha      float64           `json:"alpha"`
	Intercept  float64           `json:"intercept"`
	R2         float64           `json:"r2"`
	Confirmed  bool              `json:"confirmed"`
	Binned     []models.LogPoint `json:"binned"`
	SmartMoney []models.LogPoint `json:"smart_money"`
}

// Physics returns the fitted power law for a ticker.
func (h *Handler) Physics(c echo.Context) error {
	ticker := c.Param("ticker")
	cal, err := h.signals.Calibration(c.Request().Context(), ticker)
	if err != nil {
		return h.pipelineError(c, err)
	}
	return xhttp.SuccessResponse(c, physicsResponse{
		Ticker:     cal.Ticker,
		Alpha:      cal.Alpha,
		Intercept:  cal.Intercept,
		R2:         cal.R2,
		Confirmed:  cal.Confirmed(),
		Binned:     cal.Binned,
		SmartMoney: cal.SmartMoney,
	})
}

// Deviations returns scored history, newest last.
func (h *Handler) Deviations(c echo.Context) error {
	req := &models.DeviationsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	devs, err := h.signals.Deviations(c.Request().Context(), c.Param("ticker"), req.Limit)
	if err != nil {
		return h.pipelineError(c, err)
	}
	return xhttp.ListResponse(c, devs, int64(len(devs)))
}

type forecastResponse struct {
	Ticker   string  `json:"ticker"`
	Forecast float64 `json:"forecast"`
}

// Forecast returns the model's scaled volatility forecast.
func (h *Handler) Forecast(c echo.Context) error {
	ticker := c.Param("ticker")
	f, err := h.signals.Forecast(c.Request().Context(), ticker, nil)
	if err != nil {
		return h.pipelineError(c, err)
	}
	return xhttp.SuccessResponse(c, forecastResponse{Ticker: ticker, Forecast: f})
}

// Scan replays the anomaly detector over stored history.
func (h *Handler) Scan(c echo.Context) error {
	report, err := h.backtest.Scan(c.Request().Context(), c.Param("ticker"))
	if err != nil {
		return h.pipelineError(c, err)
	}
	return xhttp.SuccessResponse(c, report)
}

// Trades lists executed paper trades for a ticker.
func (h *Handler) Trades(c echo.Context) error {
	req := &models.TradesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	entries, err := h.ledger.List(c.Param("ticker"))
	if err != nil {
		h.logger.Error("ledger read failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("ledger read failed"))
	}
	if req.Limit > 0 && len(entries) > req.Limit {
		entries = entries[len(entries)-req.Limit:]
	}
	return xhttp.ListResponse(c, entries, int64(len(entries)))
}

// Train enqueues a training run for the ticker. Without a queue the
// run executes in-request.
func (h *Handler) Train(c echo.Context) error {
	req := &models.TrainRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	ticker := c.Param("ticker")
	opts := usecase.TrainOptions{
		Epochs:    req.Epochs,
		BatchSize: req.BatchSize,
		LearnRate: req.LearnRate,
		Exponent:  req.Exponent,
		Seed:      req.Seed,
	}

	if h.trainQ != nil {
		payload := usecase.TrainPayload{Ticker: ticker, TrainOptions: opts}
		if err := h.trainQ.PublishMessage(c.Request().Context(), usecase.TrainMessageType, payload); err != nil {
			h.logger.Error("train enqueue failed", xlogger.Error(err), xlogger.String("ticker", ticker))
			return xhttp.AppErrorResponse(c, xhttp.InternalError("training enqueue failed"))
		}
		return xhttp.DataResponse(c, http.StatusAccepted, map[string]string{"ticker": ticker, "status": "queued"})
	}

	w, err := h.trainer.Train(c.Request().Context(), ticker, opts)
	if err != nil {
		return h.pipelineError(c, err)
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"ticker": ticker,
		"status": "trained",
		"alpha":  w.Alpha,
		"mode":   string(w.Mode),
	})
}

// pipelineError maps the typed calibration and model errors onto HTTP
// statuses.
func (h *Handler) pipelineError(c echo.Context, err error) error {
	var (
		insufficient *physics.InsufficientDataError
		window       *ml.InsufficientDataError
		calErr       *physics.CalibrationError
		degenerate   *physics.DegenerateResidualError
	)
	switch {
	case errors.Is(err, ml.ErrModelNotFound):
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no trained model for ticker"))
	case errors.As(err, &insufficient), errors.As(err, &window):
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("not enough history: %v", err))
	case errors.As(err, &calErr), errors.As(err, &degenerate):
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("calibration not possible: %v", err))
	default:
		h.logger.Error("pipeline error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
}
