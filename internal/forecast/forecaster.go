// Package forecast holds the per-fold model implementations. Forecasters are
// cheap to construct, fit on one fold's train window, predict over that
// fold's test window, and are then discarded — no state survives a fold.
package forecast

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Alias1177/Foresight/models"
)

// Forecaster is the common fit/predict contract. Fit must reject training
// rows at or after the caller-declared test start with ErrLeakage rather than
// trust the caller; long fits poll ctx and return its error when the budget
// expires.
type Forecaster interface {
	ID() string
	Fit(ctx context.Context, train []models.FeatureRow, testStart time.Time) error
	Predict(ctx context.Context, rows []models.FeatureRow) ([]models.Prediction, error)
}

// Factory constructs a fresh forecaster for one fold.
type Factory func() Forecaster

// guardLeakage re-validates the evaluator's precondition: no training row may
// fall inside or after the test range.
func guardLeakage(train []models.FeatureRow, testStart time.Time) error {
	for _, row := range train {
		if !row.Timestamp.Before(testStart) {
			return fmt.Errorf("%w: train row %s is not before test start %s",
				models.ErrLeakage,
				row.Timestamp.Format("2006-01-02"),
				testStart.Format("2006-01-02"))
		}
	}
	return nil
}

// featureNames returns the sorted indicator names of a row set. Sorting keeps
// matrix column order independent of map iteration order.
func featureNames(rows []models.FeatureRow) []string {
	if len(rows) == 0 {
		return nil
	}
	names := make([]string, 0, len(rows[0].Indicators))
	for name := range rows[0].Indicators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// designMatrix extracts the feature matrix for the given column order.
func designMatrix(rows []models.FeatureRow, names []string) [][]float64 {
	x := make([][]float64, len(rows))
	for i, row := range rows {
		x[i] = make([]float64, len(names))
		for j, name := range names {
			x[i][j] = row.Indicators[name]
		}
	}
	return x
}
