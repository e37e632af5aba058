package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"quantcore/internal/domain/models"
	applogger "quantcore/pkg/logger"
)

// StreamConfig configures the live trade stream.
type StreamConfig struct {
	URL            string
	APIKey         string
	Tickers        []string
	ReconnectDelay time.Duration
	PingInterval   time.Duration
}

// Stream is a WebSocket trade feed. It pushes raw trades downstream;
// the collector owns aggregation and reconnects.
type Stream struct {
	cfg StreamConfig
	log *applogger.Logger

	conn      *websocket.Conn
	connected bool
}

func NewStream(cfg StreamConfig, log *applogger.Logger) *Stream {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 20 * time.Second
	}
	return &Stream{cfg: cfg, log: log}
}

// Connect establishes the WebSocket connection.
func (s *Stream) Connect(ctx context.Context) error {
	u := s.cfg.URL
	if s.cfg.APIKey != "" {
		u = fmt.Sprintf("%s?token=%s", s.cfg.URL, s.cfg.APIKey)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("stream connect: %w", err)
	}
	s.conn = conn
	s.connected = true
	s.log.Info("market stream connected", applogger.String("url", s.cfg.URL))
	return nil
}

// Subscribe subscribes to the configured tickers.
func (s *Stream) Subscribe(ctx context.Context) error {
	if s.conn == nil || !s.connected {
		return fmt.Errorf("stream not connected")
	}
	for _, t := range s.cfg.Tickers {
		msg := map[string]string{"type": "subscribe", "symbol": t}
		if err := s.conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", t, err)
		}
		s.log.Debug("subscribed", applogger.String("ticker", t))
	}
	return nil
}

type wsTrade struct {
	S string  `json:"s"`
	P float64 `json:"p"`
	V float64 `json:"v"`
	T int64   `json:"t"` // ms
}

type wsFrame struct {
	Type string    `json:"type"`
	Data []wsTrade `json:"data"`
}

// Read streams trades and errors until the context is cancelled or
// the connection drops. Both channels close on return.
func (s *Stream) Read(ctx context.Context) (<-chan models.Trade, <-chan error) {
	trades := make(chan models.Trade, 1024)
	errs := make(chan error, 1)

	go func() {
		ticker := time.NewTicker(s.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if s.conn != nil {
					_ = s.conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	go func() {
		defer close(trades)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if s.conn == nil {
					errs <- fmt.Errorf("stream conn nil")
					return
				}
				_, b, err := s.conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("stream read: %w", err)
					return
				}
				var f wsFrame
				if err := json.Unmarshal(b, &f); err != nil {
					// ignore non-trade frames
					continue
				}
				if f.Type != "trade" {
					continue
				}
				for _, d := range f.Data {
					tr := models.Trade{
						Ticker: d.S,
						Time:   time.UnixMilli(d.T).UTC(),
						Price:  d.P,
						Volume: d.V,
					}
					select {
					case trades <- tr:
					default:
						// drop on backpressure
					}
				}
			}
		}
	}()

	return trades, errs
}

// Reconnect closes and re-establishes the connection after the
// configured delay.
func (s *Stream) Reconnect(ctx context.Context) error {
	_ = s.Close()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.cfg.ReconnectDelay):
	}
	if err := s.Connect(ctx); err != nil {
		return err
	}
	return s.Subscribe(ctx)
}

// Close closes the connection.
func (s *Stream) Close() error {
	s.connected = false
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// IsConnected reports connection status.
func (s *Stream) IsConnected() bool { return s.connected }
