package di

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"quantcore/internal/broker"
	"quantcore/internal/cache"
	"quantcore/internal/domain/repository"
	"quantcore/internal/feed"
	"quantcore/internal/handler/api"
	"quantcore/internal/ml"
	"quantcore/internal/physics"
	internalrepo "quantcore/internal/repository"
	"quantcore/internal/trading"
	"quantcore/internal/usecase"
	pkgch "quantcore/pkg/clickhouse"
	"quantcore/pkg/config"
	xhttp "quantcore/pkg/http"
	pkgkafka "quantcore/pkg/kafka"
	applogger "quantcore/pkg/logger"
	"quantcore/pkg/metrics"
	"quantcore/pkg/queue"
	"quantcore/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	format := "json"
	if cfg.Environment == "development" {
		format = "console"
	}
	return applogger.New(&applogger.Config{Level: "info", Format: format, Output: "stdout"})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client and initializes
// the candle schema.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db := cfg.ClickHouse.Database
	table := candleTable(cfg)
	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + db,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            ticker String,
            ts DateTime,
            open Float64,
            high Float64,
            low Float64,
            close Float64,
            volume Float64
        ) ENGINE=ReplacingMergeTree ORDER BY (ticker, ts)`, table),
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

func candleTable(cfg *config.Config) string {
	table := cfg.ClickHouse.CandleTable
	if table == "" {
		table = "candles_1m"
	}
	return cfg.ClickHouse.Database + "." + table
}

// ProvideCandleStore creates the ClickHouse candle repository.
func ProvideCandleStore(chClient *pkgch.Client, cfg *config.Config, log *applogger.Logger) repository.CandleStore {
	store := internalrepo.NewCHCandleStore(chClient, candleTable(cfg))
	store.SetLogger(log)
	return store
}

// ProvideRedisClient creates a Redis client, nil when disabled.
func ProvideRedisClient(cfg *config.Config) *redis.Client {
	if !cfg.Redis.Enabled {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// ProvideCalibrationCache picks Redis when available, in-process
// otherwise.
func ProvideCalibrationCache(cfg *config.Config, rdb *redis.Client) cache.CalibrationCache {
	ttl := cfg.Physics.CacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	if rdb != nil {
		return cache.NewRedisCalibrationCache(rdb, ttl)
	}
	return cache.NewMemoryCalibrationCache(ttl)
}

// ProvideCalibrator creates the power-law calibrator.
func ProvideCalibrator(cfg *config.Config) *physics.Calibrator {
	return physics.NewCalibrator(cfg.Physics.Bins)
}

// ProvideWindower creates the feature windower.
func ProvideWindower(cfg *config.Config) *ml.Windower {
	return ml.NewWindower(cfg.Model.Lookback, cfg.Model.Forecast)
}

// ProvideWeightStore creates the on-disk model weight store.
func ProvideWeightStore(cfg *config.Config) (repository.WeightStore, error) {
	dir := cfg.Model.Dir
	if dir == "" {
		dir = "models"
	}
	return internalrepo.NewFileWeightStore(dir)
}

// ProvideSignalService wires the analytics pipeline.
func ProvideSignalService(
	store repository.CandleStore,
	weights repository.WeightStore,
	calibrator *physics.Calibrator,
	windower *ml.Windower,
	calCache cache.CalibrationCache,
	m repository.Metrics,
	log *applogger.Logger,
) *usecase.SignalService {
	return usecase.NewSignalService(store, weights, calibrator, windower, calCache, m, log)
}

// ProvideTrainerConfig maps model config onto the training loop.
func ProvideTrainerConfig(cfg *config.Config) ml.TrainerConfig {
	return ml.TrainerConfig{
		Lookback:  cfg.Model.Lookback,
		Forecast:  cfg.Model.Forecast,
		Hidden:    cfg.Model.Hidden,
		Layers:    cfg.Model.Layers,
		Epochs:    cfg.Model.Epochs,
		BatchSize: cfg.Model.BatchSize,
		LearnRate: cfg.Model.LearnRate,
		Mode:      ml.ExponentMode(cfg.Model.Exponent),
		Seed:      cfg.Model.Seed,
	}
}

// ProvideTrainingService wires offline training.
func ProvideTrainingService(
	store repository.CandleStore,
	weights repository.WeightStore,
	tcfg ml.TrainerConfig,
	signals *usecase.SignalService,
	log *applogger.Logger,
) *usecase.TrainingService {
	return usecase.NewTrainingService(store, weights, tcfg, signals, log)
}

// ProvideTrainPublisher creates the queue handle the API enqueues
// training runs on. Nil when Redis is disabled.
func ProvideTrainPublisher(log *applogger.Logger, rdb *redis.Client) queue.QueueService {
	if rdb == nil {
		return nil
	}
	return queue.NewRedisPublisher(log, rdb)
}

// ProvideTrainConsumer creates the worker queue that executes queued
// training runs. Nil when Redis is disabled.
func ProvideTrainConsumer(log *applogger.Logger, rdb *redis.Client, svc *usecase.TrainingService) *queue.RedisQueue {
	if rdb == nil {
		return nil
	}
	job := usecase.NewTrainJob(svc, log)
	return queue.NewRedisConsumer(log, &queue.QueueConfig{Workers: 1, RetryLimit: 2}, rdb, []queue.Job{job})
}

// ProvideBacktester creates the historical anomaly scanner.
func ProvideBacktester(store repository.CandleStore, calibrator *physics.Calibrator, cfg *config.Config, log *applogger.Logger) *usecase.Backtester {
	return usecase.NewBacktester(store, calibrator, cfg.Model.Forecast, log)
}

// ProvideLedger opens the CSV trade ledger.
func ProvideLedger(cfg *config.Config) (*internalrepo.CSVLedger, error) {
	path := cfg.Trading.LedgerPath
	if path == "" {
		path = "trade_log.csv"
	}
	return internalrepo.NewCSVLedger(path)
}

// ProvideHTTPClient creates the outbound REST client.
func ProvideHTTPClient() *xhttp.Client {
	return xhttp.NewClient(xhttp.WithTimeout(30 * time.Second))
}

// ProvideBackfiller creates the REST history refresher.
func ProvideBackfiller(
	cfg *config.Config,
	client *xhttp.Client,
	store repository.CandleStore,
	m repository.Metrics,
	log *applogger.Logger,
) repository.CandleRefresher {
	return feed.NewBackfiller(feed.BackfillConfig{
		BaseURL:    cfg.Backfill.BaseURL,
		APIKey:     cfg.Stream.APIKey,
		Resolution: cfg.Backfill.Resolution,
		Lookback:   cfg.Backfill.Lookback,
		RateCap:    cfg.Backfill.RateCap,
		RatePerSec: cfg.Backfill.RatePerSec,
	}, client, store, m, log)
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.BatchTimeout),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideCandleIngester registers the candle topic handler.
func ProvideCandleIngester(cfg *config.Config, store repository.CandleStore, m repository.Metrics, log *applogger.Logger) *feed.CandleIngester {
	return feed.NewCandleIngester(cfg.Kafka.CandleTopic, store, m, log)
}

// ProvideStream creates the WebSocket market stream.
func ProvideStream(cfg *config.Config, log *applogger.Logger) *feed.Stream {
	return feed.NewStream(feed.StreamConfig{
		URL:            cfg.Stream.WebSocketURL,
		APIKey:         cfg.Stream.APIKey,
		Tickers:        cfg.Watchlist.Tickers,
		ReconnectDelay: cfg.Stream.ReconnectDelay,
		PingInterval:   cfg.Stream.PingInterval,
	}, log)
}

// ProvideCollector creates the trade-to-candle collector.
func ProvideCollector(stream *feed.Stream, producer *pkgkafka.Producer, cfg *config.Config, log *applogger.Logger) *feed.Collector {
	return feed.NewCollector(stream, producer, cfg.Kafka.CandleTopic, log)
}

// ProvidePaperAccount creates the simulated broker. Fills are priced
// from the latest stored candle close.
func ProvidePaperAccount(cfg *config.Config, store repository.CandleStore, log *applogger.Logger) repository.ExecutionPort {
	quote := func(ctx context.Context, ticker string) (float64, error) {
		candles, err := store.QueryLastN(ctx, ticker, 1)
		if err != nil {
			return 0, err
		}
		if len(candles) == 0 {
			return 0, fmt.Errorf("no quote for %s", ticker)
		}
		return candles[len(candles)-1].Close, nil
	}
	balance := decimal.NewFromFloat(cfg.Trading.StartingBalance)
	if balance.IsZero() {
		balance = decimal.NewFromInt(100000)
	}
	return broker.NewPaperAccount(balance, quote, log)
}

// ProvideEngine creates the paper-trading decision engine.
func ProvideEngine(
	cfg *config.Config,
	signals *usecase.SignalService,
	refresh repository.CandleRefresher,
	exec repository.ExecutionPort,
	ledger *internalrepo.CSVLedger,
	weights repository.WeightStore,
	m repository.Metrics,
	log *applogger.Logger,
) (*trading.Engine, error) {
	return trading.NewEngine(trading.EngineConfig{
		Ticker:           cfg.Trading.Ticker,
		Quantity:         cfg.Trading.Quantity,
		TickInterval:     cfg.Trading.TickInterval,
		RetryDelay:       cfg.Trading.RetryDelay,
		MaxOrderAttempts: cfg.Trading.MaxOrderAttempts,
		OrderBackoff:     cfg.Trading.OrderBackoff,
	}, signals, refresh, exec, ledger, weights, m, log)
}

// ProvideMonitor creates the watchlist anomaly monitor.
func ProvideMonitor(
	cfg *config.Config,
	store repository.CandleStore,
	refresh repository.CandleRefresher,
	calibrator *physics.Calibrator,
	m repository.Metrics,
	log *applogger.Logger,
) *usecase.Monitor {
	return usecase.NewMonitor(usecase.MonitorConfig{
		Tickers:  cfg.Watchlist.Tickers,
		Interval: cfg.Watchlist.Interval,
	}, store, refresh, calibrator, m, log)
}

// ProvideAPIHandler creates the HTTP handler.
func ProvideAPIHandler(
	log *applogger.Logger,
	signals *usecase.SignalService,
	backtest *usecase.Backtester,
	ledger *internalrepo.CSVLedger,
	trainQ queue.QueueService,
	trainer *usecase.TrainingService,
	store repository.CandleStore,
) *api.Handler {
	return api.NewHandler(log, signals, backtest, ledger, trainQ, trainer, store)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	handler *api.Handler,
	consumer *pkgkafka.Consumer,
	ingester *feed.CandleIngester,
	trainQueue *queue.RedisQueue,
	chClient *pkgch.Client,
	ledger *internalrepo.CSVLedger,
) *server.App {
	return server.New(cfg, log, handler, consumer, ingester, trainQueue, chClient, ledger)
}
