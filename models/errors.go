package models

import "errors"

// Error taxonomy for the forecast/ensemble/backtest pipeline. Callers branch
// with errors.Is; components wrap these with fmt.Errorf("...: %w", ...).
var (
	// ErrInsufficientHistory: fewer price points than the minimum lookback
	// plus target horizon require.
	ErrInsufficientHistory = errors.New("insufficient history")

	// ErrNonStationary: differencing up to the bounded order did not pass the
	// stationarity gate. Recovered by falling back to maximum-order
	// differencing, never fatal on its own.
	ErrNonStationary = errors.New("series non-stationary")

	// ErrSingularMatrix: degenerate feature covariance. Recovered once by
	// dropping zero-variance columns; fatal if the retry still fails.
	ErrSingularMatrix = errors.New("singular matrix")

	// ErrLeakage: training data overlaps the declared test range. Always
	// fatal; indicates a caller bug.
	ErrLeakage = errors.New("train/test leakage")

	// ErrEmptyEnsemble: the combiner received zero predictions.
	ErrEmptyEnsemble = errors.New("empty ensemble")

	// ErrMisalignedSeries: signals and prices do not share a gapless common
	// trading-day index over the evaluation window.
	ErrMisalignedSeries = errors.New("misaligned series")
)
