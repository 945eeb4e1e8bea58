// Package evaluate drives the walk-forward loop: it slices the feature table
// into folds, fits a fresh set of forecasters per fold, combines their test
// predictions into signals, and reassembles the signal stream in timestamp
// order no matter which worker finished first.
package evaluate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Alias1177/Foresight/internal/ensemble"
	"github.com/Alias1177/Foresight/internal/forecast"
	"github.com/Alias1177/Foresight/models"
)

// Options configures a walk-forward run.
type Options struct {
	TrainSize int
	TestSize  int
	// Horizon is the target lookahead in rows; the final Horizon rows of each
	// train window are purged before fitting because their targets reach into
	// the test range.
	Horizon   int
	Workers   int
	FitBudget time.Duration
}

type Evaluator struct {
	factories []forecast.Factory
	combiner  *ensemble.Combiner
	opts      Options
}

func New(factories []forecast.Factory, combiner *ensemble.Combiner, opts Options) (*Evaluator, error) {
	if len(factories) == 0 {
		return nil, fmt.Errorf("%w: no forecaster factories", models.ErrEmptyEnsemble)
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.FitBudget <= 0 {
		opts.FitBudget = time.Minute
	}
	if opts.Horizon < 0 {
		return nil, fmt.Errorf("horizon must be non-negative, got %d", opts.Horizon)
	}
	return &Evaluator{factories: factories, combiner: combiner, opts: opts}, nil
}

type foldResult struct {
	signals []models.Signal
	report  models.FoldReport
}

// Run executes every fold and returns the full ordered signal sequence plus a
// per-fold report of which forecasters were used or excluded. Per-forecaster
// failures degrade the fold's ensemble; leakage, misordering, and an empty
// ensemble abort the run.
func (e *Evaluator) Run(ctx context.Context, rows []models.FeatureRow) ([]models.Signal, []models.FoldReport, error) {
	folds, err := BuildFolds(rows, e.opts.TrainSize, e.opts.TestSize)
	if err != nil {
		return nil, nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan models.Fold)
	results := make([]*foldResult, len(folds))
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
		cancel()
	}

	for w := 0; w < e.opts.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for fold := range jobs {
				res, err := e.runFold(runCtx, rows, fold)
				if err != nil {
					fail(fmt.Errorf("fold %d: %w", fold.Index, err))
					return
				}
				results[fold.Index] = res
			}
		}()
	}

	for _, fold := range folds {
		select {
		case jobs <- fold:
		case <-runCtx.Done():
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	// Scatter/gather: reassemble by timestamp, never by completion order
	var signals []models.Signal
	reports := make([]models.FoldReport, 0, len(folds))
	for _, res := range results {
		signals = append(signals, res.signals...)
		reports = append(reports, res.report)
	}
	sort.Slice(signals, func(i, j int) bool {
		return signals[i].Timestamp.Before(signals[j].Timestamp)
	})
	return signals, reports, nil
}

// runFold walks one fold through its Training, Predicting, and Combining
// stages with fold-local forecaster instances.
func (e *Evaluator) runFold(ctx context.Context, rows []models.FeatureRow, fold models.Fold) (*foldResult, error) {
	train := rows[fold.TrainStart:fold.TrainEnd]
	test := rows[fold.TestStart:fold.TestEnd]

	// Purge train rows whose forward-looking target overlaps the test range
	if e.opts.Horizon > 0 && len(train) > e.opts.Horizon {
		train = train[:len(train)-e.opts.Horizon]
	}

	report := models.FoldReport{
		FoldIndex: fold.Index,
		TestFrom:  fold.TestFrom,
		TestTo:    fold.TestTo,
	}

	// Training: a forecaster failure excludes it from this fold's ensemble
	var fitted []forecast.Forecaster
	for _, factory := range e.factories {
		fc := factory()
		fitCtx, cancel := context.WithTimeout(ctx, e.opts.FitBudget)
		err := fc.Fit(fitCtx, train, fold.TestFrom)
		cancel()
		if err != nil {
			if errors.Is(err, models.ErrLeakage) {
				return nil, err
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn().
				Int("fold", fold.Index).
				Str("forecaster", fc.ID()).
				Err(err).
				Msg("forecaster excluded from fold")
			report.Excluded = append(report.Excluded, models.ForecasterFailure{
				ForecasterID: fc.ID(),
				Stage:        "fit",
				Reason:       err.Error(),
			})
			continue
		}
		fitted = append(fitted, fc)
	}
	if len(fitted) == 0 {
		return nil, fmt.Errorf("%w: every forecaster failed to fit", models.ErrEmptyEnsemble)
	}

	// Predicting: targets are stripped before the test rows reach a model
	horizon := stripTargets(test)
	perForecaster := make([][]models.Prediction, 0, len(fitted))
	for _, fc := range fitted {
		preds, err := fc.Predict(ctx, horizon)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn().
				Int("fold", fold.Index).
				Str("forecaster", fc.ID()).
				Err(err).
				Msg("forecaster excluded from fold")
			report.Excluded = append(report.Excluded, models.ForecasterFailure{
				ForecasterID: fc.ID(),
				Stage:        "predict",
				Reason:       err.Error(),
			})
			continue
		}
		if len(preds) != len(test) {
			return nil, fmt.Errorf("forecaster %s returned %d predictions for %d test rows",
				fc.ID(), len(preds), len(test))
		}
		perForecaster = append(perForecaster, preds)
		report.Used = append(report.Used, fc.ID())
	}
	if len(perForecaster) == 0 {
		return nil, fmt.Errorf("%w: every forecaster failed to predict", models.ErrEmptyEnsemble)
	}

	// Combining: one signal per test timestamp
	signals := make([]models.Signal, len(test))
	for i := range test {
		preds := make([]models.Prediction, 0, len(perForecaster))
		for _, series := range perForecaster {
			preds = append(preds, series[i])
		}
		sig, err := e.combiner.Combine(preds)
		if err != nil {
			return nil, err
		}
		signals[i] = sig
	}

	return &foldResult{signals: signals, report: report}, nil
}

// stripTargets copies test rows without their target fields so no model can
// read the answer key.
func stripTargets(rows []models.FeatureRow) []models.FeatureRow {
	out := make([]models.FeatureRow, len(rows))
	for i, row := range rows {
		out[i] = models.FeatureRow{
			Timestamp:  row.Timestamp,
			Indicators: row.Indicators,
		}
	}
	return out
}
