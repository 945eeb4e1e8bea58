// Package features builds the immutable feature/target table the forecasting
// pipeline trains on. Indicators at row i use prices up to and including i;
// targets use the close N days ahead. Rows missing either side are dropped,
// never imputed.
package features

import (
	"fmt"
	"math"

	"github.com/Alias1177/Foresight/config"
	"github.com/Alias1177/Foresight/models"
)

// Build computes the feature table from an ordered price series. It is a pure
// function: the same input always yields the same output.
func Build(prices []models.PricePoint, cfg config.IndicatorConfig) ([]models.FeatureRow, error) {
	if err := validatePrices(prices); err != nil {
		return nil, err
	}

	lookback := minLookback(cfg)
	if len(prices) < lookback+cfg.Horizon+1 {
		return nil, fmt.Errorf("%w: need at least %d price points, got %d",
			models.ErrInsufficientHistory, lookback+cfg.Horizon+1, len(prices))
	}

	closes := make([]float64, len(prices))
	for i, p := range prices {
		closes[i] = p.Close
	}

	// Daily returns; returns[0] is undefined
	returns := nanSlice(len(closes))
	for i := 1; i < len(closes); i++ {
		if closes[i-1] != 0 {
			returns[i] = closes[i]/closes[i-1] - 1
		}
	}

	named := map[string][]float64{
		"EMA_" + itoa(cfg.EMAPeriod): emaSeries(closes, cfg.EMAPeriod),
		"RSI_" + itoa(cfg.RSIPeriod): rsiSeries(closes, cfg.RSIPeriod),
		"ROC_" + itoa(cfg.ROCPeriod): rocSeries(closes, cfg.ROCPeriod),
		"VOL_" + itoa(cfg.VolWindow): volatilitySeries(returns, cfg.VolWindow),
	}
	for _, w := range cfg.SMAWindows {
		named["SMA_"+itoa(w)] = smaSeries(closes, w)
	}
	macd, signal := macdSeries(closes, cfg.MACDFastPeriod, cfg.MACDSlowPeriod, cfg.MACDSignalPeriod)
	named["MACD"] = macd
	named["MACD_signal"] = signal
	for lag := 1; lag <= cfg.LagDepth; lag++ {
		named["lag_"+itoa(lag)] = lagSeries(returns, lag)
	}

	rows := make([]models.FeatureRow, 0, len(prices))
	for i := lookback; i < len(prices)-cfg.Horizon; i++ {
		indicators := make(map[string]float64, len(named))
		complete := true
		for name, series := range named {
			v := series[i]
			if math.IsNaN(v) {
				complete = false
				break
			}
			indicators[name] = v
		}
		if !complete {
			continue
		}

		fwd := closes[i+cfg.Horizon]/closes[i] - 1
		rows = append(rows, models.FeatureRow{
			Timestamp:       prices[i].Timestamp,
			Indicators:      indicators,
			TargetDirection: directionOf(fwd, cfg.FlatEpsilon),
			TargetReturn:    fwd,
		})
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no row has a complete lookback and lookahead window",
			models.ErrInsufficientHistory)
	}
	return rows, nil
}

// MinLookback reports the warmup the indicator configuration requires.
func MinLookback(cfg config.IndicatorConfig) int {
	return minLookback(cfg)
}

func minLookback(cfg config.IndicatorConfig) int {
	max := cfg.EMAPeriod
	for _, w := range cfg.SMAWindows {
		if w > max {
			max = w
		}
	}
	if v := cfg.RSIPeriod + 1; v > max {
		max = v
	}
	if v := cfg.MACDSlowPeriod + cfg.MACDSignalPeriod; v > max {
		max = v
	}
	if v := cfg.ROCPeriod + 1; v > max {
		max = v
	}
	if v := cfg.VolWindow + 1; v > max {
		max = v
	}
	if v := cfg.LagDepth + 1; v > max {
		max = v
	}
	return max
}

func validatePrices(prices []models.PricePoint) error {
	for i, p := range prices {
		if p.Open < 0 || p.High < 0 || p.Low < 0 || p.Close < 0 || p.Volume < 0 {
			return fmt.Errorf("price point %d (%s): negative field", i, p.Timestamp.Format("2006-01-02"))
		}
		if i > 0 && !prices[i-1].Timestamp.Before(p.Timestamp) {
			return fmt.Errorf("price point %d (%s): timestamps must be strictly increasing",
				i, p.Timestamp.Format("2006-01-02"))
		}
	}
	return nil
}

func lagSeries(returns []float64, lag int) []float64 {
	out := nanSlice(len(returns))
	for i := lag; i < len(returns); i++ {
		out[i] = returns[i-lag]
	}
	return out
}

func directionOf(fwd, epsilon float64) models.Direction {
	switch {
	case fwd > epsilon:
		return models.DirectionUp
	case fwd < -epsilon:
		return models.DirectionDown
	default:
		return models.DirectionFlat
	}
}

func itoa(n int) string {
	return fmt.Sprintf("%d", n)
}
