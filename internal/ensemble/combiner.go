// Package ensemble merges heterogeneous forecaster output into one calibrated
// directional signal. Classifier probabilities pass through; regression point
// estimates are mapped to a probability via a monotonic transform of the
// predicted return. Weights and position thresholds are business policy and
// always come from configuration.
package ensemble

import (
	"fmt"
	"math"

	"github.com/Alias1177/Foresight/config"
	"github.com/Alias1177/Foresight/models"
)

type Combiner struct {
	policy config.EnsemblePolicy
}

func New(policy config.EnsemblePolicy) (*Combiner, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Combiner{policy: policy}, nil
}

// Combine folds one timestamp's predictions into a Signal. All predictions
// must share a timestamp; an empty set is an error.
func (c *Combiner) Combine(preds []models.Prediction) (models.Signal, error) {
	if len(preds) == 0 {
		return models.Signal{}, models.ErrEmptyEnsemble
	}
	ts := preds[0].Timestamp
	for _, p := range preds[1:] {
		if !p.Timestamp.Equal(ts) {
			return models.Signal{}, fmt.Errorf("combine: mixed timestamps %s and %s",
				ts.Format("2006-01-02"), p.Timestamp.Format("2006-01-02"))
		}
	}

	var weighted, totalWeight float64
	for _, p := range preds {
		w := c.weightFor(p.ForecasterID)
		if w == 0 {
			continue
		}
		weighted += w * c.normalize(p)
		totalWeight += w
	}
	if totalWeight == 0 {
		return models.Signal{}, fmt.Errorf("%w: all predictions carry zero weight", models.ErrEmptyEnsemble)
	}

	prob := weighted / totalWeight
	return models.Signal{
		Timestamp:  ts,
		Direction:  directionFor(prob, c.policy),
		Confidence: prob,
		Position:   positionFor(prob, c.policy),
	}, nil
}

// normalize maps any prediction kind to an up-move probability in [0,1].
func (c *Combiner) normalize(p models.Prediction) float64 {
	switch p.Kind {
	case models.KindProbability:
		return math.Min(1, math.Max(0, p.Probability))
	default:
		// Sign of the predicted return gives direction, magnitude gives
		// confidence through a bounded monotonic transform
		return 0.5 * (1 + math.Tanh(p.PointEstimate/c.policy.ReturnScale))
	}
}

// weightFor returns the configured weight for a forecaster, defaulting to
// equal weight for ids the policy does not mention.
func (c *Combiner) weightFor(id string) float64 {
	if w, ok := c.policy.Weights[id]; ok {
		return w
	}
	return 1
}

func positionFor(prob float64, policy config.EnsemblePolicy) models.Position {
	switch {
	case prob > policy.LongThreshold:
		return models.PositionLong
	case prob < policy.ShortThreshold:
		return models.PositionShort
	default:
		return models.PositionFlat
	}
}

func directionFor(prob float64, policy config.EnsemblePolicy) models.Direction {
	switch {
	case prob > policy.LongThreshold:
		return models.DirectionUp
	case prob < policy.ShortThreshold:
		return models.DirectionDown
	default:
		return models.DirectionFlat
	}
}
