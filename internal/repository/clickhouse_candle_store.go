package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"quantcore/internal/domain/models"
	domrepo "quantcore/internal/domain/repository"
	pkgch "quantcore/pkg/clickhouse"
	applogger "quantcore/pkg/logger"
)

// CHCandleStore implements CandleStore backed by ClickHouse. The
// candles table is a ReplacingMergeTree ordered by (ticker, ts), so an
// insert of an existing (ticker, ts) row is an idempotent no-op after
// merge; reads use FINAL to observe the deduplicated view.
type CHCandleStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHCandleStore(ch *pkgch.Client, table string) *CHCandleStore {
	return &CHCandleStore{db: ch.DB(), table: table}
}

// SetLogger injects a structured logger.
func (s *CHCandleStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHCandleStore) Upsert(ctx context.Context, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	// Chunked multi-row VALUES insert to bound round-trips.
	const chunkSize = 2000
	for start := 0; start < len(candles); start += chunkSize {
		end := start + chunkSize
		if end > len(candles) {
			end = len(candles)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*7)
		for _, c := range candles[start:end] {
			if c.Ticker == "" || c.Time.IsZero() {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?)")
			args = append(args, c.Ticker, c.Time, c.Open, c.High, c.Low, c.Close, c.Volume)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (ticker, ts, open, high, low, close, volume) VALUES %s",
			s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse upsert error",
					applogger.String("table", s.table),
					applogger.Int("rows", len(values)),
					applogger.Error(err),
				)
			}
			return fmt.Errorf("upsert candles: %w", err)
		}
	}
	return nil
}

func (s *CHCandleStore) Query(ctx context.Context, ticker string) ([]models.Candle, error) {
	q := fmt.Sprintf(`
        SELECT ticker, ts, open, high, low, close, volume
        FROM %s FINAL
        WHERE ticker = ?
        ORDER BY ts ASC
    `, s.table)
	rows, err := s.db.QueryContext(ctx, q, ticker)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse query error",
				applogger.String("ticker", ticker), applogger.Error(err))
		}
		return nil, fmt.Errorf("query candles: %w", err)
	}
	defer rows.Close()
	return s.scanCandles(rows)
}

func (s *CHCandleStore) QueryLastN(ctx context.Context, ticker string, n int) ([]models.Candle, error) {
	q := fmt.Sprintf(`
        SELECT ticker, ts, open, high, low, close, volume
        FROM %s FINAL
        WHERE ticker = ?
        ORDER BY ts DESC
        LIMIT ?
    `, s.table)
	rows, err := s.db.QueryContext(ctx, q, ticker, n)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse last_n query error",
				applogger.String("ticker", ticker), applogger.Int("limit", n), applogger.Error(err))
		}
		return nil, fmt.Errorf("query last candles: %w", err)
	}
	defer rows.Close()

	out, err := s.scanCandles(rows)
	if err != nil {
		return nil, err
	}
	// reverse to ASC
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *CHCandleStore) LastTimestamp(ctx context.Context, ticker string) (time.Time, error) {
	q := fmt.Sprintf("SELECT max(ts) FROM %s WHERE ticker = ?", s.table)
	var ts time.Time
	if err := s.db.QueryRowContext(ctx, q, ticker).Scan(&ts); err != nil {
		return time.Time{}, fmt.Errorf("last timestamp: %w", err)
	}
	return ts, nil
}

func (s *CHCandleStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHCandleStore) scanCandles(rows *sql.Rows) ([]models.Candle, error) {
	out := make([]models.Candle, 0, 1024)
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Ticker, &c.Time, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

var _ domrepo.CandleStore = (*CHCandleStore)(nil)
