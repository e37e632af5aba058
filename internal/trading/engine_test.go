package trading

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"quantcore/internal/broker"
	"quantcore/internal/domain/models"
	"quantcore/internal/ml"
	"quantcore/internal/physics"
	"quantcore/pkg/logger"
)

type scriptSignaler struct {
	sigs []models.TickSignal
	i    int
}

func (s *scriptSignaler) Signal(context.Context, string) (models.TickSignal, error) {
	sig := s.sigs[s.i]
	if s.i < len(s.sigs)-1 {
		s.i++
	}
	return sig, nil
}

type nopRefresher struct{}

func (nopRefresher) Refresh(context.Context, string) error { return nil }

type fakeExec struct {
	orders    []models.OrderDirection
	transient int // failures to return before accepting an order
	fatal     bool
}

func (f *fakeExec) ResolveInstrument(context.Context, string) (string, error) {
	return "inst-1", nil
}

func (f *fakeExec) PlaceMarketOrder(_ context.Context, _ string, dir models.OrderDirection, _ int64) (string, error) {
	if f.fatal {
		return "", &broker.FatalError{Op: "order", Err: errors.New("rejected")}
	}
	if f.transient > 0 {
		f.transient--
		return "", &broker.TransientError{Op: "order", Err: errors.New("timeout")}
	}
	f.orders = append(f.orders, dir)
	return "order-1", nil
}

func (f *fakeExec) Balance(context.Context) (decimal.Decimal, error) {
	return decimal.NewFromInt(1000), nil
}

type memLedger struct {
	entries []models.LedgerEntry
}

func (m *memLedger) Append(e models.LedgerEntry) error {
	m.entries = append(m.entries, e)
	return nil
}

type memWeights struct {
	blob []byte
	err  error
}

func (m *memWeights) Load(string) ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.blob, nil
}

func (m *memWeights) Save(string, []byte) error { return nil }

type nopMetrics struct{}

func (nopMetrics) RecordCandleIngested(string)                {}
func (nopMetrics) RecordOrderPlaced(string, string)           {}
func (nopMetrics) RecordError(string)                         {}
func (nopMetrics) RecordZScore(string, float64)               {}
func (nopMetrics) RecordCalibration(string, float64, float64) {}
func (nopMetrics) RecordLastPrice(string, float64)            {}
func (nopMetrics) RecordPositionOpen(string, bool)            {}
func (nopMetrics) RecordTickDuration(float64)                 {}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func validWeightsBlob(t *testing.T) []byte {
	t.Helper()
	row := func(cols int) [][]float64 {
		rows := make([][]float64, 4)
		for i := range rows {
			rows[i] = make([]float64, cols)
		}
		return rows
	}
	w := &ml.Weights{
		Hidden: 1,
		Layers: []ml.LayerWeights{{Wx: row(ml.InputDim), Wh: row(1), B: make([]float64, 4)}},
		HeadW:  []float64{0.1},
		Alpha:  ml.TargetAlpha,
		Mode:   ml.ExponentFixed,
	}
	blob, err := w.Marshal()
	if err != nil {
		t.Fatalf("marshal weights: %v", err)
	}
	return blob
}

func testEngine(t *testing.T, sigs []models.TickSignal, exec *fakeExec) (*Engine, *memLedger) {
	t.Helper()
	cfg := EngineConfig{
		Ticker:           "TEST",
		Quantity:         1,
		TickInterval:     time.Second,
		RetryDelay:       time.Millisecond,
		MaxOrderAttempts: 3,
		OrderBackoff:     time.Millisecond,
	}
	ledger := &memLedger{}
	e, err := NewEngine(cfg, &scriptSignaler{sigs: sigs}, nopRefresher{}, exec, ledger,
		&memWeights{blob: validWeightsBlob(t)}, nopMetrics{}, testLogger(t))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e, ledger
}

func TestNewEngineMissingModel(t *testing.T) {
	cfg := EngineConfig{Ticker: "TEST"}
	_, err := NewEngine(cfg, &scriptSignaler{}, nopRefresher{}, &fakeExec{}, &memLedger{},
		&memWeights{err: ml.ErrModelNotFound}, nopMetrics{}, testLogger(t))
	if !errors.Is(err, ml.ErrModelNotFound) {
		t.Fatalf("err = %v, want ErrModelNotFound", err)
	}
}

func TestEngineBuySellCycle(t *testing.T) {
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	sigs := []models.TickSignal{
		{Ticker: "TEST", Time: now, Price: 100, ZScore: -2.5, Forecast: 0.2},
		{Ticker: "TEST", Time: now.Add(time.Minute), Price: 100.1, ZScore: -1.0, Forecast: 0.2},
		{Ticker: "TEST", Time: now.Add(2 * time.Minute), Price: 100.5, ZScore: -1.0, Forecast: 0.2},
	}
	exec := &fakeExec{}
	e, ledger := testEngine(t, sigs, exec)
	ctx := context.Background()

	if err := e.Tick(ctx); err != nil {
		t.Fatalf("entry tick: %v", err)
	}
	pos := e.Position()
	if !pos.IsOpen || pos.EntryPrice != 100 {
		t.Fatalf("position after entry = %+v", pos)
	}

	if err := e.Tick(ctx); err != nil {
		t.Fatalf("hold tick: %v", err)
	}
	if !e.Position().IsOpen {
		t.Fatalf("position closed below the profit target")
	}

	if err := e.Tick(ctx); err != nil {
		t.Fatalf("exit tick: %v", err)
	}
	if e.Position().IsOpen {
		t.Fatalf("position still open past the profit target")
	}

	if len(exec.orders) != 2 || exec.orders[0] != models.Buy || exec.orders[1] != models.Sell {
		t.Fatalf("orders = %v, want [BUY SELL]", exec.orders)
	}
	if len(ledger.entries) != 2 {
		t.Fatalf("ledger entries = %d, want 2", len(ledger.entries))
	}
	if ledger.entries[0].Reason != "Z=-2.50" {
		t.Fatalf("entry reason = %q", ledger.entries[0].Reason)
	}
	if ledger.entries[1].Reason != "PnL=0.50%" {
		t.Fatalf("exit reason = %q", ledger.entries[1].Reason)
	}
	if !ledger.entries[0].BalanceAfter.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("balance after = %s", ledger.entries[0].BalanceAfter)
	}
}

func TestEngineExitOnRestoredLaw(t *testing.T) {
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	sigs := []models.TickSignal{
		{Ticker: "TEST", Time: now, Price: 100, ZScore: -2.5, Forecast: 0.2},
		{Ticker: "TEST", Time: now.Add(time.Minute), Price: 99.5, ZScore: 0.5, Forecast: 0.2},
	}
	exec := &fakeExec{}
	e, ledger := testEngine(t, sigs, exec)
	ctx := context.Background()

	if err := e.Tick(ctx); err != nil {
		t.Fatalf("entry tick: %v", err)
	}
	if err := e.Tick(ctx); err != nil {
		t.Fatalf("exit tick: %v", err)
	}
	if e.Position().IsOpen {
		t.Fatalf("restored law should close the position even at a loss")
	}
	if ledger.entries[1].Reason != "PnL=-0.50%" {
		t.Fatalf("exit reason = %q", ledger.entries[1].Reason)
	}
}

func TestEngineRetriesTransientOrders(t *testing.T) {
	sigs := []models.TickSignal{{Ticker: "TEST", Price: 100, ZScore: -2.5, Forecast: 0.2}}
	exec := &fakeExec{transient: 2}
	e, ledger := testEngine(t, sigs, exec)

	if err := e.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if len(exec.orders) != 1 || exec.orders[0] != models.Buy {
		t.Fatalf("orders = %v, want one BUY after retries", exec.orders)
	}
	if !e.Position().IsOpen {
		t.Fatalf("expected open position")
	}
	if len(ledger.entries) != 1 {
		t.Fatalf("ledger entries = %d, want 1", len(ledger.entries))
	}
}

func TestEngineGivesUpAfterAttemptBound(t *testing.T) {
	sigs := []models.TickSignal{{Ticker: "TEST", Price: 100, ZScore: -2.5, Forecast: 0.2}}
	exec := &fakeExec{transient: 10}
	e, ledger := testEngine(t, sigs, exec)

	err := e.Tick(context.Background())
	if err == nil {
		t.Fatalf("expected order failure")
	}
	if e.Position().IsOpen {
		t.Fatalf("failed order must not open a position")
	}
	if len(ledger.entries) != 0 {
		t.Fatalf("ledger entries = %d, want 0", len(ledger.entries))
	}
	if exec.transient != 7 {
		t.Fatalf("attempts = %d, want 3", 10-exec.transient)
	}
}

func TestEngineFatalOrderKeepsRunning(t *testing.T) {
	sigs := []models.TickSignal{{Ticker: "TEST", Price: 100, ZScore: -2.5, Forecast: 0.2}}
	exec := &fakeExec{fatal: true}
	e, _ := testEngine(t, sigs, exec)

	err := e.Tick(context.Background())
	var fatal *broker.FatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("err = %v, want FatalError", err)
	}
	if got := e.classify(err); got != e.cfg.TickInterval {
		t.Fatalf("classify delay = %v, want tick interval", got)
	}
}

func TestClassifySkippableErrors(t *testing.T) {
	e, _ := testEngine(t, nil, &fakeExec{})

	for _, err := range []error{
		&physics.InsufficientDataError{Ticker: "TEST", Candles: 10, Required: 100},
		&ml.InsufficientDataError{Ticker: "TEST", Candles: 10, Required: 70},
		&physics.CalibrationError{Ticker: "TEST", SmartBuckets: 1},
		&physics.DegenerateResidualError{Ticker: "TEST"},
	} {
		if got := e.classify(err); got != e.cfg.RetryDelay {
			t.Fatalf("classify(%T) = %v, want retry delay", err, got)
		}
	}

	if got := e.classify(errors.New("boom")); got != e.cfg.TickInterval {
		t.Fatalf("classify(unknown) = %v, want tick interval", got)
	}
}
