package repository

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"quantcore/internal/domain/models"
	domrepo "quantcore/internal/domain/repository"
)

var ledgerHeader = []string{"time", "ticker", "action", "price", "quantity", "reason", "balance_after"}

// CSVLedger is an append-only trade ledger backed by a CSV file. Rows
// are flushed per append; nothing is ever rewritten.
type CSVLedger struct {
	mu   sync.Mutex
	path string
	file *os.File
	w    *csv.Writer
}

// NewCSVLedger opens (or creates) the ledger file, writing the header
// on first creation.
func NewCSVLedger(path string) (*CSVLedger, error) {
	_, statErr := os.Stat(path)
	fresh := os.IsNotExist(statErr)

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	l := &CSVLedger{path: path, file: file, w: csv.NewWriter(file)}
	if fresh {
		if err := l.w.Write(ledgerHeader); err != nil {
			file.Close()
			return nil, fmt.Errorf("ledger header: %w", err)
		}
		l.w.Flush()
		if err := l.w.Error(); err != nil {
			file.Close()
			return nil, fmt.Errorf("ledger header flush: %w", err)
		}
	}
	return l, nil
}

func (l *CSVLedger) Append(e models.LedgerEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	row := []string{
		e.Time.UTC().Format(time.RFC3339),
		e.Ticker,
		string(e.Action),
		strconv.FormatFloat(e.Price, 'f', -1, 64),
		strconv.FormatInt(e.Quantity, 10),
		e.Reason,
		e.BalanceAfter.String(),
	}
	if err := l.w.Write(row); err != nil {
		return fmt.Errorf("ledger write: %w", err)
	}
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		return fmt.Errorf("ledger flush: %w", err)
	}
	return nil
}

// List reads the ledger back, oldest first. An empty ticker returns
// every entry. Reads open the file independently so appends are not
// disturbed.
func (l *CSVLedger) List(ticker string) ([]models.LedgerEntry, error) {
	l.mu.Lock()
	l.w.Flush()
	l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}

	entries := make([]models.LedgerEntry, 0, len(rows))
	for i, row := range rows {
		if i == 0 && len(row) > 0 && row[0] == ledgerHeader[0] {
			continue
		}
		if len(row) != len(ledgerHeader) {
			return nil, fmt.Errorf("ledger row %d: want %d columns, got %d", i, len(ledgerHeader), len(row))
		}
		e, err := parseLedgerRow(row)
		if err != nil {
			return nil, fmt.Errorf("ledger row %d: %w", i, err)
		}
		if ticker != "" && e.Ticker != ticker {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func parseLedgerRow(row []string) (models.LedgerEntry, error) {
	t, err := time.Parse(time.RFC3339, row[0])
	if err != nil {
		return models.LedgerEntry{}, fmt.Errorf("parse time: %w", err)
	}
	price, err := strconv.ParseFloat(row[3], 64)
	if err != nil {
		return models.LedgerEntry{}, fmt.Errorf("parse price: %w", err)
	}
	qty, err := strconv.ParseInt(row[4], 10, 64)
	if err != nil {
		return models.LedgerEntry{}, fmt.Errorf("parse quantity: %w", err)
	}
	bal, err := decimal.NewFromString(row[6])
	if err != nil {
		return models.LedgerEntry{}, fmt.Errorf("parse balance: %w", err)
	}
	return models.LedgerEntry{
		Time:         t,
		Ticker:       row[1],
		Action:       models.OrderDirection(row[2]),
		Price:        price,
		Quantity:     qty,
		Reason:       row[5],
		BalanceAfter: bal,
	}, nil
}

func (l *CSVLedger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Flush()
	return l.file.Close()
}

var _ domrepo.TradeLedger = (*CSVLedger)(nil)
