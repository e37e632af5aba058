package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"quantcore/internal/feed"
	internalrepo "quantcore/internal/repository"
	pkgch "quantcore/pkg/clickhouse"
	"quantcore/pkg/config"
	xhttp "quantcore/pkg/http"
	pkgkafka "quantcore/pkg/kafka"
	applogger "quantcore/pkg/logger"
	"quantcore/pkg/queue"
)

// App is the serve-mode process: the HTTP API, the Kafka candle
// ingester and the Redis training worker under one lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	handler    xhttp.Handler
	consumer   *pkgkafka.Consumer
	ingester   *feed.CandleIngester
	trainQueue *queue.RedisQueue
	chClient   *pkgch.Client
	ledger     *internalrepo.CSVLedger
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	handler xhttp.Handler,
	consumer *pkgkafka.Consumer,
	ingester *feed.CandleIngester,
	trainQueue *queue.RedisQueue,
	chClient *pkgch.Client,
	ledger *internalrepo.CSVLedger,
) *App {
	return &App{
		cfg:        cfg,
		log:        log,
		handler:    handler,
		consumer:   consumer,
		ingester:   ingester,
		trainQueue: trainQueue,
		chClient:   chClient,
		ledger:     ledger,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	if a.consumer != nil && a.ingester != nil {
		a.consumer.RegisterHandler(a.ingester)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.log.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.log.Info("kafka consumer started", applogger.String("topic", a.ingester.Topic()))
	}

	if a.trainQueue != nil {
		if err := a.trainQueue.Start(); err != nil {
			a.log.Error("train queue start error", applogger.Error(err))
		} else {
			a.log.Info("train queue started")
		}
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.trainQueue != nil {
		if err := a.trainQueue.Stop(shutdownCtx); err != nil {
			a.log.Warn("train queue stop error", applogger.Error(err))
		}
	}

	if a.ledger != nil {
		if err := a.ledger.Close(); err != nil {
			a.log.Warn("ledger close error", applogger.Error(err))
		}
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
