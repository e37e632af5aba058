//go:build wireinject
// +build wireinject

package di

import (
	"quantcore/internal/feed"
	"quantcore/internal/trading"
	"quantcore/internal/usecase"
	"quantcore/pkg/config"
	"quantcore/pkg/server"

	"github.com/google/wire"
)

var baseSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,
	ProvideClickHouseClient,
	ProvideCandleStore,
	ProvideRedisClient,
	ProvideCalibrationCache,
	ProvideCalibrator,
	ProvideWindower,
	ProvideWeightStore,
	ProvideSignalService,
)

// InitializeApp wires the serve mode: HTTP API, Kafka candle
// ingestion and the training worker queue.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		baseSet,
		ProvideTrainerConfig,
		ProvideTrainingService,
		ProvideTrainPublisher,
		ProvideTrainConsumer,
		ProvideBacktester,
		ProvideLedger,
		ProvideKafkaConsumer,
		ProvideCandleIngester,
		ProvideAPIHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}

// InitializeEngine wires the trade mode.
func InitializeEngine(cfg *config.Config) (*trading.Engine, error) {
	wire.Build(
		baseSet,
		ProvideHTTPClient,
		ProvideBackfiller,
		ProvidePaperAccount,
		ProvideLedger,
		ProvideEngine,
	)
	return nil, nil
}

// InitializeMonitor wires the watchlist monitor mode.
func InitializeMonitor(cfg *config.Config) (*usecase.Monitor, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,
		ProvideClickHouseClient,
		ProvideCandleStore,
		ProvideCalibrator,
		ProvideHTTPClient,
		ProvideBackfiller,
		ProvideMonitor,
	)
	return nil, nil
}

// InitializeBacktester wires the historical scan mode.
func InitializeBacktester(cfg *config.Config) (*usecase.Backtester, error) {
	wire.Build(
		ProvideLogger,
		ProvideClickHouseClient,
		ProvideCandleStore,
		ProvideCalibrator,
		ProvideBacktester,
	)
	return nil, nil
}

// InitializeTraining wires the one-shot train mode.
func InitializeTraining(cfg *config.Config) (*usecase.TrainingService, error) {
	wire.Build(
		baseSet,
		ProvideTrainerConfig,
		ProvideTrainingService,
	)
	return nil, nil
}

// InitializeCollector wires the collect mode.
func InitializeCollector(cfg *config.Config) (*feed.Collector, error) {
	wire.Build(
		ProvideLogger,
		ProvideStream,
		ProvideKafkaProducer,
		ProvideCollector,
	)
	return nil, nil
}
