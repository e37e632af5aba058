package trading

// Fusion thresholds. A buy fires only when the statistical anomaly and
// the learned forecast agree: volume absorbed well below the law's
// prediction while the model expects elevated forward volatility.
const (
	BuyZThreshold    = -2.0
	BuyForecastFloor = 0.10
	ProfitTargetPct  = 0.3
	ExitZLevel       = 0.0
)

// BuyTrigger fuses the z-score anomaly signal with the model forecast.
func BuyTrigger(zScore, forecast float64) bool {
	return zScore < BuyZThreshold && forecast > BuyForecastFloor
}

// ExitTrigger fires on the profit target or when the z-score crossing
// back above zero signals the law is restored.
func ExitTrigger(profitPct, zScore float64) bool {
	return profitPct > ProfitTargetPct || zScore > ExitZLevel
}

// ProfitPct is the open-position return in percent.
func ProfitPct(entryPrice, currentPrice float64) float64 {
	return (currentPrice - entryPrice) / entryPrice * 100
}
