// Package backtest replays an ordered signal stream against historical
// prices under strict temporal ordering and reports realized performance
// versus a buy-and-hold baseline.
package backtest

import (
	"fmt"

	"github.com/Alias1177/Foresight/models"
)

// Config holds the backtest cost model.
type Config struct {
	// CostBps is the transaction cost in basis points of traded notional,
	// charged on every position change.
	CostBps float64
}

// Run converts signals into position changes and computes the trade ledger
// plus summary metrics. Signals and prices must share a gapless common
// trading-day index over the evaluation window; gaps are the caller's
// problem to resolve, not ours to skip.
func Run(signals []models.Signal, prices []models.PricePoint, cfg Config) ([]models.TradeLedgerEntry, models.SummaryMetrics, error) {
	if len(signals) == 0 {
		return nil, models.SummaryMetrics{}, fmt.Errorf("no signals to backtest")
	}

	start, err := alignSeries(signals, prices)
	if err != nil {
		return nil, models.SummaryMetrics{}, err
	}
	window := prices[start : start+len(signals)]

	ledger := make([]models.TradeLedgerEntry, 0, len(signals))
	position := models.PositionFlat

	var (
		cumulative float64
		totalCosts float64
		trades     int
		hits       int
		scored     int
		equity     []float64
		returns    []float64
	)

	for i, sig := range signals {
		entry := models.TradeLedgerEntry{
			Timestamp:      sig.Timestamp,
			PositionBefore: position,
			PositionAfter:  sig.Position,
		}

		// P&L from the close-to-close move while holding yesterday's position
		var pnl float64
		if i > 0 && window[i-1].Close != 0 {
			dayReturn := window[i].Close/window[i-1].Close - 1
			pnl = position.Sign() * dayReturn
			returns = append(returns, pnl)
			if position != models.PositionFlat {
				scored++
				if sameSign(position.Sign(), dayReturn) {
					hits++
				}
			}
		}

		// Transaction cost on every position change
		if sig.Position != position {
			cost := cfg.CostBps / 10000.0 * turnover(position, sig.Position)
			pnl -= cost
			totalCosts += cost
			trades++
		}

		cumulative += pnl
		entry.PnLDelta = pnl
		entry.CumulativePnL = cumulative
		ledger = append(ledger, entry)
		equity = append(equity, cumulative)

		position = sig.Position
	}

	metrics := summarize(ledger, window, equity, returns, hits, scored, trades, totalCosts)
	return ledger, metrics, nil
}

// alignSeries locates the signal window inside the price series and verifies
// a gapless one-to-one timestamp match.
func alignSeries(signals []models.Signal, prices []models.PricePoint) (int, error) {
	start := -1
	for i, p := range prices {
		if p.Timestamp.Equal(signals[0].Timestamp) {
			start = i
			break
		}
	}
	if start < 0 {
		return 0, fmt.Errorf("%w: first signal %s not found in price series",
			models.ErrMisalignedSeries, signals[0].Timestamp.Format("2006-01-02"))
	}
	if start+len(signals) > len(prices) {
		return 0, fmt.Errorf("%w: price series ends before the signal window",
			models.ErrMisalignedSeries)
	}
	for i, sig := range signals {
		if !prices[start+i].Timestamp.Equal(sig.Timestamp) {
			return 0, fmt.Errorf("%w: signal %s vs price %s at offset %d",
				models.ErrMisalignedSeries,
				sig.Timestamp.Format("2006-01-02"),
				prices[start+i].Timestamp.Format("2006-01-02"), i)
		}
	}
	return start, nil
}

// turnover is the traded size of a position change in position units.
func turnover(from, to models.Position) float64 {
	diff := to.Sign() - from.Sign()
	if diff < 0 {
		return -diff
	}
	return diff
}

func sameSign(a, b float64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}
