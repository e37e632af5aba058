package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"quantcore/internal/di"
	"quantcore/internal/usecase"
	"quantcore/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	mode := flag.String("mode", "serve", "run mode: serve|trade|monitor|scan|train|collect")
	ticker := flag.String("ticker", "", "ticker override for scan/train modes")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s mode=%s", cfg.Environment, *mode)

	if err := run(cfg, *mode, *ticker); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, mode, ticker string) error {
	switch mode {
	case "serve":
		app, err := di.InitializeApp(cfg)
		if err != nil {
			return fmt.Errorf("app initialization: %w", err)
		}
		return app.Run()

	case "trade":
		engine, err := di.InitializeEngine(cfg)
		if err != nil {
			return fmt.Errorf("engine initialization: %w", err)
		}
		return engine.Run(signalContext())

	case "monitor":
		monitor, err := di.InitializeMonitor(cfg)
		if err != nil {
			return fmt.Errorf("monitor initialization: %w", err)
		}
		return monitor.Run(signalContext())

	case "scan":
		bt, err := di.InitializeBacktester(cfg)
		if err != nil {
			return fmt.Errorf("backtester initialization: %w", err)
		}
		ctx := signalContext()
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		for _, t := range targetTickers(cfg, ticker) {
			report, err := bt.Scan(ctx, t)
			if err != nil {
				return fmt.Errorf("scan %s: %w", t, err)
			}
			if err := enc.Encode(report); err != nil {
				return err
			}
		}
		return nil

	case "train":
		ts, err := di.InitializeTraining(cfg)
		if err != nil {
			return fmt.Errorf("training initialization: %w", err)
		}
		ctx := signalContext()
		for _, t := range targetTickers(cfg, ticker) {
			if _, err := ts.Train(ctx, t, usecase.TrainOptions{}); err != nil {
				return fmt.Errorf("train %s: %w", t, err)
			}
		}
		return nil

	case "collect":
		collector, err := di.InitializeCollector(cfg)
		if err != nil {
			return fmt.Errorf("collector initialization: %w", err)
		}
		return collector.Run(signalContext())

	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
}

// targetTickers resolves the ticker set a one-shot mode operates on:
// the -ticker flag, then the trading ticker, then the watchlist.
func targetTickers(cfg *config.Config, override string) []string {
	if override != "" {
		return []string{override}
	}
	if cfg.Trading.Ticker != "" {
		return []string{cfg.Trading.Ticker}
	}
	return cfg.Watchlist.Tickers
}

func signalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx
}
