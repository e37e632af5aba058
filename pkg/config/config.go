package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		CandleTable      string        `yaml:"candle_table"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		CandleTopic  string   `yaml:"candle_topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			BatchTimeout time.Duration `yaml:"batch_timeout"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Stream struct {
		APIKey         string        `yaml:"api_key"`
		WebSocketURL   string        `yaml:"websocket_url"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
	} `yaml:"stream"`
	Backfill struct {
		BaseURL    string        `yaml:"base_url"`
		Resolution string        `yaml:"resolution"`
		Lookback   time.Duration `yaml:"lookback"`
		RateCap    float64       `yaml:"rate_cap"`
		RatePerSec float64       `yaml:"rate_per_sec"`
	} `yaml:"backfill"`
	Physics struct {
		Bins     int           `yaml:"bins"`
		CacheTTL time.Duration `yaml:"cache_ttl"`
	} `yaml:"physics"`
	Model struct {
		Dir       string  `yaml:"dir"`
		Lookback  int     `yaml:"lookback"`
		Forecast  int     `yaml:"forecast"`
		Hidden    int     `yaml:"hidden"`
		Layers    int     `yaml:"layers"`
		Epochs    int     `yaml:"epochs"`
		BatchSize int     `yaml:"batch_size"`
		LearnRate float64 `yaml:"learn_rate"`
		Exponent  string  `yaml:"exponent"` // fixed | learned
		Seed      int64   `yaml:"seed"`
	} `yaml:"model"`
	Trading struct {
		Ticker           string        `yaml:"ticker"`
		Quantity         int64         `yaml:"quantity"`
		TickInterval     time.Duration `yaml:"tick_interval"`
		RetryDelay       time.Duration `yaml:"retry_delay"`
		MaxOrderAttempts int           `yaml:"max_order_attempts"`
		OrderBackoff     time.Duration `yaml:"order_backoff"`
		StartingBalance  float64       `yaml:"starting_balance"`
		LedgerPath       string        `yaml:"ledger_path"`
	} `yaml:"trading"`
	Watchlist struct {
		Tickers  []string      `yaml:"tickers"`
		Interval time.Duration `yaml:"interval"`
	} `yaml:"watchlist"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("STREAM_API_KEY"); v != "" {
		c.Stream.APIKey = v
	}
	if v := os.Getenv("WATCHLIST"); v != "" {
		c.Watchlist.Tickers = strings.Split(v, ",")
	}
	if v := os.Getenv("TRADING_TICKER"); v != "" {
		c.Trading.Ticker = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required")
	}
	if c.Model.Exponent != "" && c.Model.Exponent != "fixed" && c.Model.Exponent != "learned" {
		return fmt.Errorf("model.exponent must be 'fixed' or 'learned', got '%s'", c.Model.Exponent)
	}
	if c.Trading.Ticker == "" && len(c.Watchlist.Tickers) == 0 {
		return fmt.Errorf("either trading.ticker or watchlist.tickers is required")
	}
	return nil
}
