package feed

import (
	"context"
	"encoding/json"
	"fmt"

	"quantcore/internal/domain/models"
	domrepo "quantcore/internal/domain/repository"
	applogger "quantcore/pkg/logger"
)

// CandleIngester consumes collected candles from Kafka and persists
// them. Upserts are idempotent, so redelivery after a consumer
// rebalance is harmless.
type CandleIngester struct {
	topic   string
	store   domrepo.CandleStore
	metrics domrepo.Metrics
	log     *applogger.Logger
}

func NewCandleIngester(topic string, store domrepo.CandleStore, metrics domrepo.Metrics, log *applogger.Logger) *CandleIngester {
	if topic == "" {
		topic = DefaultCandleTopic
	}
	return &CandleIngester{topic: topic, store: store, metrics: metrics, log: log}
}

// Topic implements kafka.MessageHandler.
func (i *CandleIngester) Topic() string { return i.topic }

// Handle implements kafka.MessageHandler. Malformed payloads are
// dropped, not retried.
func (i *CandleIngester) Handle(ctx context.Context, data []byte) error {
	var candle models.Candle
	if err := json.Unmarshal(data, &candle); err != nil {
		i.log.Warn("dropping malformed candle message", applogger.Error(err))
		return nil
	}
	if candle.Ticker == "" {
		i.log.Warn("dropping candle without ticker")
		return nil
	}

	if err := i.store.Upsert(ctx, []models.Candle{candle}); err != nil {
		i.metrics.RecordError("candle_upsert")
		return fmt.Errorf("upsert candle %s@%s: %w", candle.Ticker, candle.Time, err)
	}
	i.metrics.RecordCandleIngested(candle.Ticker)
	return nil
}
