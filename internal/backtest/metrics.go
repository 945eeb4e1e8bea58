package backtest

import (
	"math"

	"github.com/Alias1177/Foresight/models"
)

const tradingDaysPerYear = 252

func summarize(
	ledger []models.TradeLedgerEntry,
	window []models.PricePoint,
	equity []float64,
	returns []float64,
	hits, scored, trades int,
	totalCosts float64,
) models.SummaryMetrics {
	metrics := models.SummaryMetrics{
		Days:             len(ledger),
		Trades:           trades,
		TransactionCosts: totalCosts,
	}
	if len(ledger) > 0 {
		metrics.CumulativeReturn = ledger[len(ledger)-1].CumulativePnL
	}
	metrics.MaxDrawdown = maxDrawdown(equity)
	if scored > 0 {
		metrics.HitRate = float64(hits) / float64(scored)
	}
	metrics.SharpeRatio = sharpe(returns)

	// Buy-and-hold over the same test span
	if len(window) > 1 && window[0].Close != 0 {
		metrics.BuyHoldReturn = window[len(window)-1].Close/window[0].Close - 1
	}
	return metrics
}

// maxDrawdown walks the cumulative-pnl curve with a high-water mark.
func maxDrawdown(equity []float64) float64 {
	highWater := 0.0
	maxDD := 0.0
	for _, v := range equity {
		if v > highWater {
			highWater = v
		}
		if dd := highWater - v; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// sharpe is the annualized mean/stddev of daily strategy returns, zero
// risk-free rate.
func sharpe(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		diff := r - mean
		variance += diff * diff
	}
	stdDev := math.Sqrt(variance / float64(len(returns)-1))
	if stdDev == 0 {
		return 0
	}
	return mean / stdDev * math.Sqrt(tradingDaysPerYear)
}
