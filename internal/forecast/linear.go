package forecast

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/Alias1177/Foresight/models"
)

// Linear is the baseline forecaster: ordinary least squares of the forward
// return on the indicator matrix. A degenerate covariance (constant columns)
// is recovered once by dropping zero-variance columns; a second failure is
// fatal.
type Linear struct {
	id    string
	names []string
	coef  []float64 // intercept first
}

func NewLinear() *Linear {
	return &Linear{id: "linear"}
}

func (l *Linear) ID() string { return l.id }

func (l *Linear) Fit(ctx context.Context, train []models.FeatureRow, testStart time.Time) error {
	if err := guardLeakage(train, testStart); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	names := featureNames(train)
	if len(train) < len(names)+2 {
		return fmt.Errorf("%w: %d rows for %d features", models.ErrInsufficientHistory, len(train), len(names))
	}

	y := make([]float64, len(train))
	for i, row := range train {
		y[i] = row.TargetReturn
	}

	coef, err := solveOLS(designMatrix(train, names), y)
	if err != nil {
		// Retry once without zero-variance columns
		kept := dropZeroVariance(train, names)
		if len(kept) == len(names) || len(kept) == 0 {
			return fmt.Errorf("ols fit: %w", err)
		}
		coef, err = solveOLS(designMatrix(train, kept), y)
		if err != nil {
			return fmt.Errorf("ols fit after dropping %d constant columns: %w", len(names)-len(kept), err)
		}
		names = kept
	}

	l.names = names
	l.coef = coef
	return nil
}

func (l *Linear) Predict(ctx context.Context, rows []models.FeatureRow) ([]models.Prediction, error) {
	if l.coef == nil {
		return nil, fmt.Errorf("linear: predict before fit")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	preds := make([]models.Prediction, len(rows))
	for i, row := range rows {
		est := l.coef[0]
		for j, name := range l.names {
			est += l.coef[j+1] * row.Indicators[name]
		}
		preds[i] = models.Prediction{
			Timestamp:     row.Timestamp,
			ForecasterID:  l.id,
			Kind:          models.KindPointEstimate,
			PointEstimate: est,
		}
	}
	return preds, nil
}

// solveOLS fits y = b0 + X·b via the normal equations. Returns
// ErrSingularMatrix when elimination hits a near-zero pivot.
func solveOLS(x [][]float64, y []float64) ([]float64, error) {
	n := len(x)
	k := len(x[0]) + 1 // intercept column

	// Build X'X and X'y with an implicit leading ones column
	xtx := make([][]float64, k)
	xty := make([]float64, k)
	for i := range xtx {
		xtx[i] = make([]float64, k)
	}
	for r := 0; r < n; r++ {
		row := make([]float64, k)
		row[0] = 1
		copy(row[1:], x[r])
		for i := 0; i < k; i++ {
			xty[i] += row[i] * y[r]
			for j := 0; j < k; j++ {
				xtx[i][j] += row[i] * row[j]
			}
		}
	}

	return solveGauss(xtx, xty)
}

// solveGauss runs Gaussian elimination with partial pivoting. The pivot
// threshold scales with the matrix so collinear columns register as singular
// regardless of feature magnitude.
func solveGauss(a [][]float64, b []float64) ([]float64, error) {
	k := len(b)

	scale := 0.0
	for i := range a {
		for j := range a[i] {
			if v := math.Abs(a[i][j]); v > scale {
				scale = v
			}
		}
	}
	if scale == 0 {
		return nil, fmt.Errorf("%w: zero matrix", models.ErrSingularMatrix)
	}
	pivotEps := 1e-9 * scale

	for col := 0; col < k; col++ {
		pivot := col
		for r := col + 1; r < k; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < pivotEps {
			return nil, fmt.Errorf("%w: pivot %d below threshold", models.ErrSingularMatrix, col)
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		for r := col + 1; r < k; r++ {
			factor := a[r][col] / a[col][col]
			for c := col; c < k; c++ {
				a[r][c] -= factor * a[col][c]
			}
			b[r] -= factor * b[col]
		}
	}

	sol := make([]float64, k)
	for i := k - 1; i >= 0; i-- {
		sum := b[i]
		for j := i + 1; j < k; j++ {
			sum -= a[i][j] * sol[j]
		}
		sol[i] = sum / a[i][i]
	}
	return sol, nil
}

// dropZeroVariance returns the names whose column varies across train rows.
func dropZeroVariance(rows []models.FeatureRow, names []string) []string {
	kept := make([]string, 0, len(names))
	for _, name := range names {
		first := rows[0].Indicators[name]
		for _, row := range rows[1:] {
			if row.Indicators[name] != first {
				kept = append(kept, name)
				break
			}
		}
	}
	return kept
}
