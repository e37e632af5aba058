package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testYAML = `
environment: development
server:
  port: 8080
clickhouse:
  host: localhost
  port: 9000
  database: quantcore
kafka:
  brokers: ["localhost:9092"]
  candle_topic: quantcore.candles.1m
model:
  lookback: 60
  forecast: 10
  exponent: fixed
trading:
  ticker: SBER
  tick_interval: 60s
watchlist:
  tickers: [SBER, GAZP]
  interval: 1m
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	c, err := Load(writeConfig(t, testYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if c.Environment != "development" {
		t.Fatalf("environment = %q", c.Environment)
	}
	if c.ClickHouse.Host != "localhost" || c.ClickHouse.Port != 9000 {
		t.Fatalf("clickhouse = %s:%d", c.ClickHouse.Host, c.ClickHouse.Port)
	}
	if len(c.Kafka.Brokers) != 1 || c.Kafka.Brokers[0] != "localhost:9092" {
		t.Fatalf("brokers = %v", c.Kafka.Brokers)
	}
	if c.Trading.TickInterval != 60*time.Second {
		t.Fatalf("tick interval = %v", c.Trading.TickInterval)
	}
	if c.Model.Exponent != "fixed" {
		t.Fatalf("exponent = %q", c.Model.Exponent)
	}
	if len(c.Watchlist.Tickers) != 2 {
		t.Fatalf("watchlist = %v", c.Watchlist.Tickers)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("TRADING_TICKER", "LKOH")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("STREAM_API_KEY", "secret")

	c, err := LoadWithEnv(writeConfig(t, testYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if c.Trading.Ticker != "LKOH" {
		t.Fatalf("ticker = %q, want env override", c.Trading.Ticker)
	}
	if len(c.Kafka.Brokers) != 2 || c.Kafka.Brokers[1] != "k2:9092" {
		t.Fatalf("brokers = %v", c.Kafka.Brokers)
	}
	if c.Stream.APIKey != "secret" {
		t.Fatalf("api key not overridden")
	}
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		name string
		body string
	}{
		{"missing environment", "clickhouse:\n  host: localhost\ntrading:\n  ticker: SBER\n"},
		{"missing clickhouse host", "environment: development\ntrading:\n  ticker: SBER\n"},
		{"bad exponent", "environment: development\nclickhouse:\n  host: localhost\nmodel:\n  exponent: adaptive\ntrading:\n  ticker: SBER\n"},
		{"no tickers", "environment: development\nclickhouse:\n  host: localhost\n"},
	} {
		if _, err := Load(writeConfig(t, tc.body)); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}
