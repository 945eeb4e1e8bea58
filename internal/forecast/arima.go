package forecast

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Alias1177/Foresight/models"
)

// AR is the statistical forecaster: an autoregression on the univariate
// forward-return series with bounded differencing. The differencing order is
// the smallest one that passes a Dickey-Fuller unit-root gate; the AR order
// is chosen by AIC over a small grid. A series that never passes the gate
// falls back to maximum-order differencing instead of aborting.
type AR struct {
	id           string
	maxOrder     int
	maxDiff      int
	adfThreshold float64

	series []float64 // train target series, most recent last
	diff   int
	coef   []float64 // intercept first, then AR terms
	order  int
}

func NewAR() *AR {
	return &AR{
		id:           "ar",
		maxOrder:     4,
		maxDiff:      2,
		adfThreshold: -2.86,
	}
}

func (a *AR) ID() string { return a.id }

func (a *AR) Fit(ctx context.Context, train []models.FeatureRow, testStart time.Time) error {
	if err := guardLeakage(train, testStart); err != nil {
		return err
	}

	series := make([]float64, len(train))
	for i, row := range train {
		series[i] = row.TargetReturn
	}
	if len(series) < a.maxOrder+a.maxDiff+10 {
		return fmt.Errorf("%w: %d observations for AR fit", models.ErrInsufficientHistory, len(series))
	}

	// Pick the smallest differencing order that passes the stationarity gate
	diff := -1
	for d := 0; d <= a.maxDiff; d++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if adfStatistic(differenced(series, d)) < a.adfThreshold {
			diff = d
			break
		}
	}
	if diff < 0 {
		// Recoverable: use maximum-order differencing rather than abort
		diff = a.maxDiff
		log.Warn().
			Str("forecaster", a.id).
			Int("max_diff", a.maxDiff).
			Msgf("stationarity gate failed, falling back: %v", models.ErrNonStationary)
	}

	work := differenced(series, diff)

	// AR order by AIC over the grid
	bestOrder, bestAIC := 0, math.Inf(1)
	var bestCoef []float64
	for p := 1; p <= a.maxOrder; p++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		coef, sse, n := fitAROrder(work, p)
		if coef == nil || n <= p+1 {
			continue
		}
		aic := float64(n)*math.Log(sse/float64(n)) + 2*float64(p+1)
		if aic < bestAIC {
			bestOrder, bestAIC, bestCoef = p, aic, coef
		}
	}
	if bestCoef == nil {
		return fmt.Errorf("ar fit: no order in 1..%d produced a solvable system", a.maxOrder)
	}

	a.series = series
	a.diff = diff
	a.order = bestOrder
	a.coef = bestCoef
	return nil
}

// Predict runs an iterated multi-step forecast from the end of the training
// series, one step per test row.
func (a *AR) Predict(ctx context.Context, rows []models.FeatureRow) ([]models.Prediction, error) {
	if a.coef == nil {
		return nil, fmt.Errorf("ar: predict before fit")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Per-level tails so each forecast can be integrated back to levels
	levels := make([][]float64, a.diff+1)
	levels[0] = append([]float64(nil), a.series...)
	for d := 1; d <= a.diff; d++ {
		levels[d] = differenced(a.series, d)
	}

	preds := make([]models.Prediction, len(rows))
	for i, row := range rows {
		work := levels[a.diff]
		next := a.coef[0]
		for j := 1; j <= a.order; j++ {
			next += a.coef[j] * work[len(work)-j]
		}
		levels[a.diff] = append(levels[a.diff], next)

		// Undo differencing one level at a time
		for d := a.diff - 1; d >= 0; d-- {
			prev := levels[d][len(levels[d])-1]
			next = prev + next
			levels[d] = append(levels[d], next)
		}

		preds[i] = models.Prediction{
			Timestamp:     row.Timestamp,
			ForecasterID:  a.id,
			Kind:          models.KindPointEstimate,
			PointEstimate: next,
		}
	}
	return preds, nil
}

// fitAROrder fits y_t = c + sum(phi_j*y_{t-j}) by conditional least squares.
// Returns nil coefficients when the system is singular.
func fitAROrder(series []float64, p int) (coef []float64, sse float64, n int) {
	n = len(series) - p
	if n < p+2 {
		return nil, 0, 0
	}
	x := make([][]float64, n)
	y := make([]float64, n)
	for t := 0; t < n; t++ {
		x[t] = make([]float64, p)
		for j := 1; j <= p; j++ {
			x[t][j-1] = series[p+t-j]
		}
		y[t] = series[p+t]
	}

	coef, err := solveOLS(x, y)
	if err != nil {
		return nil, 0, 0
	}
	for t := 0; t < n; t++ {
		fitted := coef[0]
		for j := 0; j < p; j++ {
			fitted += coef[j+1] * x[t][j]
		}
		resid := y[t] - fitted
		sse += resid * resid
	}
	if sse <= 0 {
		sse = 1e-12
	}
	return coef, sse, n
}

// adfStatistic is the t-statistic of beta in the Dickey-Fuller regression
// dz_t = alpha + beta*z_{t-1} + e. Large negative values reject a unit root.
func adfStatistic(z []float64) float64 {
	n := len(z) - 1
	if n < 10 {
		return 0
	}

	var sumX, sumY, sumXX, sumXY float64
	for t := 1; t <= n; t++ {
		x := z[t-1]
		y := z[t] - z[t-1]
		sumX += x
		sumY += y
		sumXX += x * x
		sumXY += x * y
	}
	fn := float64(n)
	denom := fn*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	beta := (fn*sumXY - sumX*sumY) / denom
	alpha := (sumY - beta*sumX) / fn

	var sse, meanXX float64
	for t := 1; t <= n; t++ {
		x := z[t-1]
		resid := (z[t] - z[t-1]) - alpha - beta*x
		sse += resid * resid
	}
	meanXX = sumXX - sumX*sumX/fn
	if meanXX <= 0 || n <= 2 {
		return 0
	}
	se := math.Sqrt(sse / float64(n-2) / meanXX)
	if se == 0 {
		return 0
	}
	return beta / se
}

func differenced(series []float64, d int) []float64 {
	out := append([]float64(nil), series...)
	for k := 0; k < d; k++ {
		next := make([]float64, len(out)-1)
		for i := 1; i < len(out); i++ {
			next[i-1] = out[i] - out[i-1]
		}
		out = next
	}
	return out
}
