package feed

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"quantcore/internal/domain/models"
	domrepo "quantcore/internal/domain/repository"
	"quantcore/internal/service/ratelimit"
	xhttp "quantcore/pkg/http"
	applogger "quantcore/pkg/logger"
)

// BackfillConfig configures the REST history refresher.
type BackfillConfig struct {
	BaseURL    string
	APIKey     string
	Resolution string        // candle resolution, "1" = one minute
	Lookback   time.Duration // history window for a ticker with no stored candles
	RateCap    float64       // request burst capacity
	RatePerSec float64       // sustained requests per second
}

func (c *BackfillConfig) setDefaults() {
	if c.Resolution == "" {
		c.Resolution = "1"
	}
	if c.Lookback <= 0 {
		c.Lookback = 7 * 24 * time.Hour
	}
	if c.RateCap <= 0 {
		c.RateCap = 30
	}
	if c.RatePerSec <= 0 {
		c.RatePerSec = 0.5
	}
}

// Backfiller pulls candle history over REST and upserts it into the
// store. It implements the refresher the decision engine and monitor
// call before each scoring pass.
type Backfiller struct {
	cfg     BackfillConfig
	client  *xhttp.Client
	store   domrepo.CandleStore
	limiter *ratelimit.Limiter
	metrics domrepo.Metrics
	log     *applogger.Logger
}

func NewBackfiller(cfg BackfillConfig, client *xhttp.Client, store domrepo.CandleStore, metrics domrepo.Metrics, log *applogger.Logger) *Backfiller {
	cfg.setDefaults()
	return &Backfiller{
		cfg:     cfg,
		client:  client,
		store:   store,
		limiter: ratelimit.New(),
		metrics: metrics,
		log:     log,
	}
}

var _ domrepo.CandleRefresher = (*Backfiller)(nil)

// candleResponse is the column-oriented candle payload the market
// data API returns.
type candleResponse struct {
	Status string    `json:"s"`
	T      []int64   `json:"t"`
	O      []float64 `json:"o"`
	H      []float64 `json:"h"`
	L      []float64 `json:"l"`
	C      []float64 `json:"c"`
	V      []float64 `json:"v"`
}

// Refresh downloads candles from the last stored timestamp forward
// and upserts them. A ticker with no stored history is filled from
// the configured lookback window.
func (b *Backfiller) Refresh(ctx context.Context, ticker string) error {
	if !b.limiter.Allow("backfill:"+ticker, b.cfg.RateCap, b.cfg.RatePerSec) {
		return nil // under rate cap, stored candles stay authoritative
	}

	now := time.Now().UTC()
	from := now.Add(-b.cfg.Lookback)
	if last, err := b.store.LastTimestamp(ctx, ticker); err == nil && !last.IsZero() {
		from = last.Add(time.Minute)
	}
	if !from.Before(now) {
		return nil
	}

	candles, err := b.fetch(ctx, ticker, from, now)
	if err != nil {
		b.metrics.RecordError("backfill_fetch")
		return err
	}
	if len(candles) == 0 {
		return nil
	}

	if err := b.store.Upsert(ctx, candles); err != nil {
		b.metrics.RecordError("backfill_upsert")
		return fmt.Errorf("upsert %d candles for %s: %w", len(candles), ticker, err)
	}
	for range candles {
		b.metrics.RecordCandleIngested(ticker)
	}
	b.log.Debug("history refreshed",
		applogger.String("ticker", ticker),
		applogger.Int("candles", len(candles)),
		applogger.Time("from", from),
	)
	return nil
}

func (b *Backfiller) fetch(ctx context.Context, ticker string, from, to time.Time) ([]models.Candle, error) {
	var resp candleResponse
	err := b.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    b.cfg.BaseURL + "/stock/candle",
		QueryParams: map[string][]string{
			"symbol":     {ticker},
			"resolution": {b.cfg.Resolution},
			"from":       {strconv.FormatInt(from.Unix(), 10)},
			"to":         {strconv.FormatInt(to.Unix(), 10)},
			"token":      {b.cfg.APIKey},
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("fetch candles for %s: %w", ticker, err)
	}
	if resp.Status == "no_data" {
		return nil, nil
	}
	if resp.Status != "ok" {
		return nil, fmt.Errorf("fetch candles for %s: status %q", ticker, resp.Status)
	}

	n := len(resp.T)
	if len(resp.O) != n || len(resp.H) != n || len(resp.L) != n || len(resp.C) != n || len(resp.V) != n {
		return nil, fmt.Errorf("fetch candles for %s: ragged columns", ticker)
	}

	candles := make([]models.Candle, 0, n)
	for i := 0; i < n; i++ {
		candles = append(candles, models.Candle{
			Ticker: ticker,
			Time:   time.Unix(resp.T[i], 0).UTC(),
			Open:   resp.O[i],
			High:   resp.H[i],
			Low:    resp.L[i],
			Close:  resp.C[i],
			Volume: resp.V[i],
		})
	}
	return candles, nil
}
