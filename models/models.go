package models

import "time"

// PricePoint is a single trading day of OHLCV data. Immutable once ingested.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Direction of predicted or realized price movement.
type Direction string

const (
	DirectionUp   Direction = "UP"
	DirectionDown Direction = "DOWN"
	DirectionFlat Direction = "FLAT"
)

// Position is the target exposure carried into the next period.
type Position string

const (
	PositionLong  Position = "LONG"
	PositionFlat  Position = "FLAT"
	PositionShort Position = "SHORT"
)

// Sign returns the position as a -1/0/+1 multiplier.
func (p Position) Sign() float64 {
	switch p {
	case PositionLong:
		return 1
	case PositionShort:
		return -1
	default:
		return 0
	}
}

// FeatureRow holds the engineered features and targets for one trading day.
// Indicators are computed from past-and-present data only; targets from
// future data only.
type FeatureRow struct {
	Timestamp       time.Time          `json:"timestamp"`
	Indicators      map[string]float64 `json:"indicators"`
	TargetDirection Direction          `json:"target_direction"`
	TargetReturn    float64            `json:"target_return"`
}

// PredictionKind tags which field of a Prediction carries the model output.
type PredictionKind string

const (
	// KindProbability marks classifier output: Probability is the chance of
	// an upward move in [0,1].
	KindProbability PredictionKind = "probability"
	// KindPointEstimate marks regression output: PointEstimate is the
	// predicted forward return.
	KindPointEstimate PredictionKind = "point_estimate"
)

// Prediction is one forecaster's output for one test timestamp.
type Prediction struct {
	Timestamp     time.Time      `json:"timestamp"`
	ForecasterID  string         `json:"forecaster_id"`
	Kind          PredictionKind `json:"kind"`
	Probability   float64        `json:"probability,omitempty"`
	PointEstimate float64        `json:"point_estimate,omitempty"`
}

// Signal is the combined ensemble decision for one test timestamp.
type Signal struct {
	Timestamp  time.Time `json:"timestamp"`
	Direction  Direction `json:"direction"`
	Confidence float64   `json:"confidence"`
	Position   Position  `json:"position"`
}

// Fold is one walk-forward train/test split. Index bounds are half-open:
// train is [TrainStart, TrainEnd), test is [TestStart, TestEnd), and
// TestStart == TrainEnd so train strictly precedes test.
type Fold struct {
	Index      int       `json:"index"`
	TrainStart int       `json:"train_start"`
	TrainEnd   int       `json:"train_end"`
	TestStart  int       `json:"test_start"`
	TestEnd    int       `json:"test_end"`
	TrainFrom  time.Time `json:"train_from"`
	TrainTo    time.Time `json:"train_to"`
	TestFrom   time.Time `json:"test_from"`
	TestTo     time.Time `json:"test_to"`
}

// ForecasterFailure records a forecaster excluded from one fold's ensemble.
type ForecasterFailure struct {
	ForecasterID string `json:"forecaster_id"`
	Stage        string `json:"stage"` // "fit" or "predict"
	Reason       string `json:"reason"`
}

// FoldReport summarizes one fold of a walk-forward run.
type FoldReport struct {
	FoldIndex int                 `json:"fold_index"`
	TestFrom  time.Time           `json:"test_from"`
	TestTo    time.Time           `json:"test_to"`
	Used      []string            `json:"used"`
	Excluded  []ForecasterFailure `json:"excluded,omitempty"`
}

// TradeLedgerEntry records one day of the backtest ledger. Entries are
// appended in timestamp order and never mutated.
type TradeLedgerEntry struct {
	Timestamp      time.Time `json:"timestamp"`
	PositionBefore Position  `json:"position_before"`
	PositionAfter  Position  `json:"position_after"`
	PnLDelta       float64   `json:"pnl_delta"`
	CumulativePnL  float64   `json:"cumulative_pnl"`
}

// SummaryMetrics are the realized performance numbers for a backtest run,
// reported against a buy-and-hold baseline over the same span.
type SummaryMetrics struct {
	Days             int     `json:"days"`
	Trades           int     `json:"trades"`
	CumulativeReturn float64 `json:"cumulative_return"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	HitRate          float64 `json:"hit_rate"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
	TransactionCosts float64 `json:"transaction_costs"`
	BuyHoldReturn    float64 `json:"buy_hold_return"`
}
