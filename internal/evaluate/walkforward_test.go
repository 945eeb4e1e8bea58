package evaluate

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alias1177/Foresight/config"
	"github.com/Alias1177/Foresight/internal/ensemble"
	"github.com/Alias1177/Foresight/internal/forecast"
	"github.com/Alias1177/Foresight/models"
)

func generateRows(n int) []models.FeatureRow {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	rows := make([]models.FeatureRow, n)
	for i := 0; i < n; i++ {
		target := 0.01
		direction := models.DirectionUp
		if i%3 == 0 {
			target = -0.01
			direction = models.DirectionDown
		}
		rows[i] = models.FeatureRow{
			Timestamp:       start.AddDate(0, 0, i),
			Indicators:      map[string]float64{"f": float64(i % 11)},
			TargetDirection: direction,
			TargetReturn:    target,
		}
	}
	return rows
}

// Property: across random partitions, no test timestamp ever appears in its
// own fold's train range, train strictly precedes test, and the union of the
// test ranges tiles the evaluation period exactly once.
func TestBuildFoldsPartitionProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(11))

	for trial := 0; trial < 200; trial++ {
		n := 30 + rng.Intn(400)
		trainSize := 5 + rng.Intn(n-10)
		testSize := 1 + rng.Intn(40)
		rows := generateRows(n)

		folds, err := BuildFolds(rows, trainSize, testSize)
		if errors.Is(err, models.ErrInsufficientHistory) {
			continue
		}
		require.NoError(t, err, "n=%d train=%d test=%d", n, trainSize, testSize)
		require.NotEmpty(t, folds)

		covered := make(map[int]int)
		for _, fold := range folds {
			require.Equal(t, fold.TrainEnd, fold.TestStart)
			require.Less(t, fold.TrainStart, fold.TrainEnd)
			require.Less(t, fold.TestStart, fold.TestEnd)
			require.True(t, fold.TrainTo.Before(fold.TestFrom),
				"train must strictly precede test in time")

			for i := fold.TestStart; i < fold.TestEnd; i++ {
				covered[i]++
				require.True(t, i >= fold.TrainEnd || i < fold.TrainStart,
					"test index %d inside train range", i)
			}
		}

		// Tiling: every row after the first train window is tested exactly once
		for i := trainSize; i < n; i++ {
			require.Equal(t, 1, covered[i], "row %d covered %d times", i, covered[i])
		}
		require.Len(t, covered, n-trainSize)
	}
}

func TestBuildFoldsRejectsUnorderedRows(t *testing.T) {
	rows := generateRows(60)
	rows[10].Timestamp = rows[9].Timestamp
	_, err := BuildFolds(rows, 20, 5)
	require.Error(t, err)
}

func TestBuildFoldsInsufficientRows(t *testing.T) {
	_, err := BuildFolds(generateRows(10), 20, 5)
	require.ErrorIs(t, err, models.ErrInsufficientHistory)
}

// stubForecaster lets tests script fit/predict behavior.
type stubForecaster struct {
	id         string
	prob       float64
	fitErr     error
	predictErr error
}

func (s *stubForecaster) ID() string { return s.id }

func (s *stubForecaster) Fit(ctx context.Context, train []models.FeatureRow, testStart time.Time) error {
	for _, row := range train {
		if !row.Timestamp.Before(testStart) {
			return fmt.Errorf("%w: stub saw test data", models.ErrLeakage)
		}
	}
	return s.fitErr
}

func (s *stubForecaster) Predict(ctx context.Context, rows []models.FeatureRow) ([]models.Prediction, error) {
	if s.predictErr != nil {
		return nil, s.predictErr
	}
	preds := make([]models.Prediction, len(rows))
	for i, row := range rows {
		if row.TargetReturn != 0 || row.TargetDirection != "" {
			return nil, fmt.Errorf("stub received unstripped targets")
		}
		preds[i] = models.Prediction{
			Timestamp:    row.Timestamp,
			ForecasterID: s.id,
			Kind:         models.KindProbability,
			Probability:  s.prob,
		}
	}
	return preds, nil
}

func newEvaluator(t *testing.T, factories []forecast.Factory, workers int) *Evaluator {
	t.Helper()
	combiner, err := ensemble.New(config.DefaultPolicy())
	require.NoError(t, err)
	ev, err := New(factories, combiner, Options{
		TrainSize: 40,
		TestSize:  10,
		Horizon:   1,
		Workers:   workers,
		FitBudget: 5 * time.Second,
	})
	require.NoError(t, err)
	return ev
}

func TestRunProducesOrderedSignals(t *testing.T) {
	rows := generateRows(200)
	factories := []forecast.Factory{
		func() forecast.Forecaster { return &stubForecaster{id: "up", prob: 0.9} },
		func() forecast.Forecaster { return &stubForecaster{id: "down", prob: 0.2} },
	}

	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			ev := newEvaluator(t, factories, workers)
			signals, reports, err := ev.Run(context.Background(), rows)
			require.NoError(t, err)

			// One signal per row past the first train window
			require.Len(t, signals, len(rows)-40)
			for i := 1; i < len(signals); i++ {
				require.True(t, signals[i-1].Timestamp.Before(signals[i].Timestamp),
					"signals must be in strict timestamp order")
			}
			require.Len(t, reports, 16)
			for _, report := range reports {
				assert.Empty(t, report.Excluded)
				assert.Len(t, report.Used, 2)
			}
		})
	}
}

func TestRunParallelMatchesSerial(t *testing.T) {
	rows := generateRows(300)
	factories := []forecast.Factory{
		func() forecast.Forecaster { return &stubForecaster{id: "up", prob: 0.8} },
	}

	serial, _, err := newEvaluator(t, factories, 1).Run(context.Background(), rows)
	require.NoError(t, err)
	parallel, _, err := newEvaluator(t, factories, 8).Run(context.Background(), rows)
	require.NoError(t, err)
	require.Equal(t, serial, parallel)
}

func TestRunExcludesFailingForecaster(t *testing.T) {
	rows := generateRows(120)
	factories := []forecast.Factory{
		func() forecast.Forecaster { return &stubForecaster{id: "ok", prob: 0.9} },
		func() forecast.Forecaster {
			return &stubForecaster{id: "broken", fitErr: errors.New("did not converge")}
		},
	}

	ev := newEvaluator(t, factories, 2)
	signals, reports, err := ev.Run(context.Background(), rows)
	require.NoError(t, err, "a per-forecaster failure must not abort the run")
	require.NotEmpty(t, signals)

	for _, report := range reports {
		require.Len(t, report.Excluded, 1)
		assert.Equal(t, "broken", report.Excluded[0].ForecasterID)
		assert.Equal(t, "fit", report.Excluded[0].Stage)
		assert.Equal(t, []string{"ok"}, report.Used)
	}

	// The surviving forecaster's direction decides every signal
	for _, sig := range signals {
		assert.Equal(t, models.PositionLong, sig.Position)
	}
}

func TestRunExcludesForecasterFailingAtPredict(t *testing.T) {
	rows := generateRows(120)
	factories := []forecast.Factory{
		func() forecast.Forecaster { return &stubForecaster{id: "ok", prob: 0.9} },
		func() forecast.Forecaster {
			return &stubForecaster{id: "flaky", predictErr: errors.New("nan in output")}
		},
	}

	signals, reports, err := newEvaluator(t, factories, 2).Run(context.Background(), rows)
	require.NoError(t, err)
	require.NotEmpty(t, signals)
	for _, report := range reports {
		require.Len(t, report.Excluded, 1)
		assert.Equal(t, "predict", report.Excluded[0].Stage)
	}
}

func TestRunFailsWhenAllForecastersFail(t *testing.T) {
	rows := generateRows(120)
	factories := []forecast.Factory{
		func() forecast.Forecaster {
			return &stubForecaster{id: "broken", fitErr: errors.New("boom")}
		},
	}

	_, _, err := newEvaluator(t, factories, 1).Run(context.Background(), rows)
	require.ErrorIs(t, err, models.ErrEmptyEnsemble)
}

func TestRunNeverShowsTestDataToFit(t *testing.T) {
	rows := generateRows(200)
	factories := []forecast.Factory{
		func() forecast.Forecaster { return &stubForecaster{id: "watch", prob: 0.6} },
	}

	_, _, err := newEvaluator(t, factories, 4).Run(context.Background(), rows)
	require.NoError(t, err)
}

func TestRunLeakageIsFatal(t *testing.T) {
	rows := generateRows(120)
	factories := []forecast.Factory{
		func() forecast.Forecaster {
			return &stubForecaster{id: "guarded", fitErr: fmt.Errorf("refit: %w", models.ErrLeakage)}
		},
	}

	_, _, err := newEvaluator(t, factories, 1).Run(context.Background(), rows)
	require.ErrorIs(t, err, models.ErrLeakage)
}

func TestRunHonorsCancellation(t *testing.T) {
	rows := generateRows(200)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	factories := []forecast.Factory{
		func() forecast.Forecaster { return &stubForecaster{id: "up", prob: 0.9} },
	}
	_, _, err := newEvaluator(t, factories, 2).Run(ctx, rows)
	require.Error(t, err)
}
