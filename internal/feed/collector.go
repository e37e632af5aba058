package feed

import (
	"context"
	"time"

	"quantcore/internal/domain/models"
	pkgkafka "quantcore/pkg/kafka"
	applogger "quantcore/pkg/logger"
)

// DefaultCandleTopic is the Kafka topic collected candles flow
// through before the ingester persists them.
const DefaultCandleTopic = "quantcore.candles.1m"

// Collector runs the live path: WebSocket trades in, aggregated
// minute candles out to Kafka. Persistence happens on the consuming
// side so a collector restart never loses stored history.
type Collector struct {
	stream   *Stream
	agg      *Aggregator
	producer *pkgkafka.Producer
	topic    string
	log      *applogger.Logger
}

func NewCollector(stream *Stream, producer *pkgkafka.Producer, topic string, log *applogger.Logger) *Collector {
	if topic == "" {
		topic = DefaultCandleTopic
	}
	return &Collector{
		stream:   stream,
		agg:      NewAggregator(time.Minute),
		producer: producer,
		topic:    topic,
		log:      log,
	}
}

// Run streams until the context is cancelled, reconnecting on read
// failures. Partial bars are flushed on shutdown.
func (c *Collector) Run(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	defer c.stream.Close()

	for {
		trades, errs := c.stream.Read(ctx)
	consume:
		for {
			select {
			case <-ctx.Done():
				c.flush(context.Background())
				return ctx.Err()
			case tr, ok := <-trades:
				if !ok {
					break consume
				}
				if done := c.agg.Add(tr); done != nil {
					c.publish(ctx, *done)
				}
			case err, ok := <-errs:
				if !ok {
					break consume
				}
				c.log.Warn("stream read failed, reconnecting", applogger.Error(err))
				break consume
			}
		}

		if ctx.Err() != nil {
			c.flush(context.Background())
			return ctx.Err()
		}
		if err := c.stream.Reconnect(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Warn("reconnect failed", applogger.Error(err))
		}
	}
}

func (c *Collector) publish(ctx context.Context, candle models.Candle) {
	if err := c.producer.Publish(ctx, c.topic, []byte(candle.Ticker), candle); err != nil {
		c.log.Error("publish candle",
			applogger.Error(err),
			applogger.String("ticker", candle.Ticker),
			applogger.Time("candle_time", candle.Time),
		)
	}
}

func (c *Collector) flush(ctx context.Context) {
	for _, candle := range c.agg.Flush() {
		c.publish(ctx, candle)
	}
}
