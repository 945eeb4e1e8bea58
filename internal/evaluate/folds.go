package evaluate

import (
	"fmt"

	"github.com/Alias1177/Foresight/models"
)

// BuildFolds slices a feature table into rolling walk-forward folds. Windows
// are half-open index intervals and each test window starts exactly where its
// train window ends. The step equals the test size, so the union of all test
// ranges tiles the evaluation period exactly once; the final fold's test
// window may be shorter to cover the remainder.
func BuildFolds(rows []models.FeatureRow, trainSize, testSize int) ([]models.Fold, error) {
	if trainSize <= 0 || testSize <= 0 {
		return nil, fmt.Errorf("fold sizes must be positive, got train=%d test=%d", trainSize, testSize)
	}
	if err := validateOrdering(rows); err != nil {
		return nil, err
	}
	if len(rows) < trainSize+1 {
		return nil, fmt.Errorf("%w: %d rows cannot fit a %d-row train window and a test row",
			models.ErrInsufficientHistory, len(rows), trainSize)
	}

	var folds []models.Fold
	for start := 0; start+trainSize < len(rows); start += testSize {
		trainEnd := start + trainSize
		testEnd := trainEnd + testSize
		if testEnd > len(rows) {
			testEnd = len(rows)
		}
		folds = append(folds, models.Fold{
			Index:      len(folds),
			TrainStart: start,
			TrainEnd:   trainEnd,
			TestStart:  trainEnd,
			TestEnd:    testEnd,
			TrainFrom:  rows[start].Timestamp,
			TrainTo:    rows[trainEnd-1].Timestamp,
			TestFrom:   rows[trainEnd].Timestamp,
			TestTo:     rows[testEnd-1].Timestamp,
		})
	}
	return folds, nil
}

func validateOrdering(rows []models.FeatureRow) error {
	for i := 1; i < len(rows); i++ {
		if !rows[i-1].Timestamp.Before(rows[i].Timestamp) {
			return fmt.Errorf("feature rows out of order at index %d: %s then %s",
				i,
				rows[i-1].Timestamp.Format("2006-01-02"),
				rows[i].Timestamp.Format("2006-01-02"))
		}
	}
	return nil
}
