package features

import "math"

// Indicator series are computed in single forward passes so that the value at
// index i depends only on closes[0..i]. NaN marks indices without enough
// lookback; rows containing NaN are dropped by Build.

func smaSeries(closes []float64, period int) []float64 {
	out := nanSlice(len(closes))
	if period <= 0 {
		return out
	}
	var sum float64
	for i, c := range closes {
		sum += c
		if i >= period {
			sum -= closes[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

func emaSeries(closes []float64, period int) []float64 {
	out := nanSlice(len(closes))
	if period <= 0 || len(closes) < period {
		return out
	}
	// Seed with the SMA of the first period, then roll forward
	var seed float64
	for _, c := range closes[:period] {
		seed += c
	}
	ema := seed / float64(period)
	out[period-1] = ema

	multiplier := 2.0 / float64(period+1)
	for i := period; i < len(closes); i++ {
		ema = (closes[i]-ema)*multiplier + ema
		out[i] = ema
	}
	return out
}

// rsiSeries uses Wilder smoothing of gains and losses.
func rsiSeries(closes []float64, period int) []float64 {
	out := nanSlice(len(closes))
	if period <= 0 || len(closes) < period+1 {
		return out
	}

	var gains, losses float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change >= 0 {
			gains += change
		} else {
			losses -= change
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change >= 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

// macdSeries returns the MACD line and its signal line.
func macdSeries(closes []float64, fast, slow, signal int) ([]float64, []float64) {
	macd := nanSlice(len(closes))
	fastEMA := emaSeries(closes, fast)
	slowEMA := emaSeries(closes, slow)
	for i := range closes {
		if !math.IsNaN(fastEMA[i]) && !math.IsNaN(slowEMA[i]) {
			macd[i] = fastEMA[i] - slowEMA[i]
		}
	}

	// Signal line: EMA of the MACD line, seeded where MACD becomes defined
	sig := nanSlice(len(closes))
	start := slow - 1
	if start+signal > len(closes) || signal <= 0 {
		return macd, sig
	}
	var seed float64
	for i := start; i < start+signal; i++ {
		seed += macd[i]
	}
	ema := seed / float64(signal)
	sig[start+signal-1] = ema

	multiplier := 2.0 / float64(signal+1)
	for i := start + signal; i < len(closes); i++ {
		ema = (macd[i]-ema)*multiplier + ema
		sig[i] = ema
	}
	return macd, sig
}

// rocSeries is the percentage rate of change over period bars.
func rocSeries(closes []float64, period int) []float64 {
	out := nanSlice(len(closes))
	for i := period; i < len(closes); i++ {
		if closes[i-period] != 0 {
			out[i] = (closes[i] - closes[i-period]) / closes[i-period]
		}
	}
	return out
}

// volatilitySeries is the rolling standard deviation of daily returns.
func volatilitySeries(returns []float64, window int) []float64 {
	out := nanSlice(len(returns))
	if window < 2 {
		return out
	}
	for i := window; i < len(returns); i++ {
		mean := 0.0
		for j := i - window + 1; j <= i; j++ {
			mean += returns[j]
		}
		mean /= float64(window)

		variance := 0.0
		for j := i - window + 1; j <= i; j++ {
			diff := returns[j] - mean
			variance += diff * diff
		}
		out[i] = math.Sqrt(variance / float64(window-1))
	}
	return out
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
