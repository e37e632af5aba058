package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain repository.Metrics using Prometheus.
type Recorder struct {
	candlesIngested *prometheus.CounterVec
	ordersPlaced    *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	zScore          *prometheus.GaugeVec
	alpha           *prometheus.GaugeVec
	r2              *prometheus.GaugeVec
	lastPrice       *prometheus.GaugeVec
	positionOpen    *prometheus.GaugeVec
	tickDuration    prometheus.Histogram
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		candlesIngested: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quantcore_candles_ingested_total",
				Help: "Total number of candles upserted into the store",
			},
			[]string{"ticker"},
		),
		ordersPlaced: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quantcore_orders_placed_total",
				Help: "Total number of market orders acknowledged by the broker",
			},
			[]string{"ticker", "direction"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quantcore_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		zScore: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "quantcore_deviation_zscore",
				Help: "Latest power-law deviation z-score per ticker",
			},
			[]string{"ticker"},
		),
		alpha: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "quantcore_calibration_alpha",
				Help: "Latest fitted power-law exponent per ticker",
			},
			[]string{"ticker"},
		),
		r2: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "quantcore_calibration_r2",
				Help: "Latest calibration coefficient of determination per ticker",
			},
			[]string{"ticker"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "quantcore_last_price",
				Help: "Last observed close price per ticker",
			},
			[]string{"ticker"},
		),
		positionOpen: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "quantcore_position_open",
				Help: "1 when the engine holds a long position, 0 when flat",
			},
			[]string{"ticker"},
		),
		tickDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "quantcore_tick_duration_seconds",
				Help:    "Duration of decision ticks in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

func (r *Recorder) RecordCandleIngested(ticker string) {
	r.candlesIngested.WithLabelValues(ticker).Inc()
}

func (r *Recorder) RecordOrderPlaced(ticker, direction string) {
	r.ordersPlaced.WithLabelValues(ticker, direction).Inc()
}

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordZScore(ticker string, z float64) {
	r.zScore.WithLabelValues(ticker).Set(z)
}

func (r *Recorder) RecordCalibration(ticker string, alpha, r2 float64) {
	r.alpha.WithLabelValues(ticker).Set(alpha)
	r.r2.WithLabelValues(ticker).Set(r2)
}

func (r *Recorder) RecordLastPrice(ticker string, price float64) {
	r.lastPrice.WithLabelValues(ticker).Set(price)
}

func (r *Recorder) RecordPositionOpen(ticker string, open bool) {
	v := 0.0
	if open {
		v = 1
	}
	r.positionOpen.WithLabelValues(ticker).Set(v)
}

func (r *Recorder) RecordTickDuration(seconds float64) {
	r.tickDuration.Observe(seconds)
}
