package feed

import (
	"sort"
	"time"

	"quantcore/internal/domain/models"
)

// Aggregator folds raw trades into one-minute candles. A candle is
// emitted only once its minute has rolled over, so in-progress bars
// never leave the aggregator.
type Aggregator struct {
	interval time.Duration
	open     map[string]*models.Candle // keyed by ticker
}

func NewAggregator(interval time.Duration) *Aggregator {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Aggregator{interval: interval, open: make(map[string]*models.Candle)}
}

// Add folds one trade in and returns the completed candle when the
// trade opens a new bar for its ticker, nil otherwise.
func (a *Aggregator) Add(tr models.Trade) *models.Candle {
	bar := tr.Time.Truncate(a.interval)

	cur, ok := a.open[tr.Ticker]
	if !ok {
		a.open[tr.Ticker] = newBar(tr, bar)
		return nil
	}
	if cur.Time.Equal(bar) {
		if tr.Price > cur.High {
			cur.High = tr.Price
		}
		if tr.Price < cur.Low {
			cur.Low = tr.Price
		}
		cur.Close = tr.Price
		cur.Volume += tr.Volume
		return nil
	}

	done := *cur
	a.open[tr.Ticker] = newBar(tr, bar)
	return &done
}

// Flush returns every in-progress candle, oldest first, and resets
// the aggregator. Used on shutdown so partial bars are not lost.
func (a *Aggregator) Flush() []models.Candle {
	out := make([]models.Candle, 0, len(a.open))
	for _, c := range a.open {
		out = append(out, *c)
	}
	a.open = make(map[string]*models.Candle)
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}

func newBar(tr models.Trade, bar time.Time) *models.Candle {
	return &models.Candle{
		Ticker: tr.Ticker,
		Time:   bar,
		Open:   tr.Price,
		High:   tr.Price,
		Low:    tr.Price,
		Close:  tr.Price,
		Volume: tr.Volume,
	}
}
