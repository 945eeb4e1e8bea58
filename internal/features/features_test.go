package features

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alias1177/Foresight/config"
	"github.com/Alias1177/Foresight/models"
)

func testConfig() config.IndicatorConfig {
	return config.IndicatorConfig{
		SMAWindows:       []int{10, 20},
		EMAPeriod:        10,
		RSIPeriod:        14,
		MACDFastPeriod:   12,
		MACDSlowPeriod:   26,
		MACDSignalPeriod: 9,
		ROCPeriod:        10,
		VolWindow:        20,
		LagDepth:         5,
		Horizon:          1,
		FlatEpsilon:      0.0005,
	}
}

func generatePrices(n int, close func(i int) float64) []models.PricePoint {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	prices := make([]models.PricePoint, n)
	for i := 0; i < n; i++ {
		c := close(i)
		prices[i] = models.PricePoint{
			Timestamp: start.AddDate(0, 0, i),
			Open:      c * 0.999,
			High:      c * 1.005,
			Low:       c * 0.995,
			Close:     c,
			Volume:    1000 + float64(i),
		}
	}
	return prices
}

func trendingClose(i int) float64 {
	return 100 + float64(i)*0.5 + 2*math.Sin(float64(i)/7)
}

func TestBuildDeterministic(t *testing.T) {
	prices := generatePrices(200, trendingClose)

	first, err := Build(prices, testConfig())
	require.NoError(t, err)
	second, err := Build(prices, testConfig())
	require.NoError(t, err)

	require.Equal(t, first, second)
}

func TestBuildInsufficientHistory(t *testing.T) {
	prices := generatePrices(20, trendingClose)

	_, err := Build(prices, testConfig())
	require.ErrorIs(t, err, models.ErrInsufficientHistory)
}

func TestBuildRejectsUnorderedTimestamps(t *testing.T) {
	prices := generatePrices(200, trendingClose)
	prices[50].Timestamp = prices[49].Timestamp

	_, err := Build(prices, testConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "strictly increasing")
}

func TestBuildRejectsNegativeFields(t *testing.T) {
	prices := generatePrices(200, trendingClose)
	prices[10].Volume = -5

	_, err := Build(prices, testConfig())
	require.Error(t, err)
}

func TestBuildRowShape(t *testing.T) {
	cfg := testConfig()
	prices := generatePrices(200, trendingClose)

	rows, err := Build(prices, cfg)
	require.NoError(t, err)
	require.NotEmpty(t, rows)

	// One row per day once lookback is satisfied, minus the target horizon
	expected := len(prices) - MinLookback(cfg) - cfg.Horizon
	assert.Len(t, rows, expected)

	for _, key := range []string{"SMA_10", "SMA_20", "EMA_10", "RSI_14", "MACD", "MACD_signal", "ROC_10", "VOL_20", "lag_1", "lag_5"} {
		_, ok := rows[0].Indicators[key]
		assert.True(t, ok, "missing indicator %s", key)
	}
	for i := 1; i < len(rows); i++ {
		assert.True(t, rows[i-1].Timestamp.Before(rows[i].Timestamp))
	}
}

// Indicators are causal: editing a price in the future must not change any
// feature row that precedes it.
func TestBuildCausality(t *testing.T) {
	cfg := testConfig()
	prices := generatePrices(200, trendingClose)

	before, err := Build(prices, cfg)
	require.NoError(t, err)

	mutated := generatePrices(200, trendingClose)
	mutated[150].Close *= 1.2
	mutated[150].High *= 1.2
	after, err := Build(mutated, cfg)
	require.NoError(t, err)

	cut := prices[150].Timestamp
	for i, row := range before {
		// Rows whose indicator and target windows both close before the
		// mutated day must be byte-identical
		if row.Timestamp.AddDate(0, 0, cfg.Horizon).Before(cut) {
			require.Equal(t, row, after[i], "row %s changed by a future price edit", row.Timestamp.Format("2006-01-02"))
		}
	}
}

func TestBuildTargets(t *testing.T) {
	cfg := testConfig()
	cfg.FlatEpsilon = 0.0001
	prices := generatePrices(120, func(i int) float64 { return 100 + float64(i) })

	rows, err := Build(prices, cfg)
	require.NoError(t, err)

	for _, row := range rows {
		assert.Equal(t, models.DirectionUp, row.TargetDirection)
		assert.Greater(t, row.TargetReturn, 0.0)
	}
}

func TestBuildConstantSeriesIsFlat(t *testing.T) {
	cfg := testConfig()
	prices := generatePrices(120, func(int) float64 { return 100 })

	rows, err := Build(prices, cfg)
	require.NoError(t, err)

	for _, row := range rows {
		assert.Equal(t, models.DirectionFlat, row.TargetDirection)
		assert.Zero(t, row.TargetReturn)
	}
}
