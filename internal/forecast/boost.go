package forecast

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/Alias1177/Foresight/models"
)

// Boost is the tree-ensemble forecaster: gradient-boosted depth-1 stumps with
// a logistic loss on the up/not-up direction. Deterministic for a fixed seed;
// fitting is bounded by the round budget, and predicting costs one comparison
// per stump.
type Boost struct {
	id           string
	rounds       int
	learningRate float64
	regLambda    float64
	seed         int64

	names  []string
	bias   float64
	stumps []stump
}

type stump struct {
	feature   int
	threshold float64
	left      float64 // score added when value <= threshold
	right     float64
}

// BoostOptions bound the fit budget and pin the random seed.
type BoostOptions struct {
	Rounds       int
	LearningRate float64
	Seed         int64
}

func NewBoost(opts BoostOptions) *Boost {
	if opts.Rounds <= 0 {
		opts.Rounds = 100
	}
	if opts.LearningRate <= 0 {
		opts.LearningRate = 0.1
	}
	return &Boost{
		id:           "boost",
		rounds:       opts.Rounds,
		learningRate: opts.LearningRate,
		regLambda:    1.0,
		seed:         opts.Seed,
	}
}

func (b *Boost) ID() string { return b.id }

func (b *Boost) Fit(ctx context.Context, train []models.FeatureRow, testStart time.Time) error {
	if err := guardLeakage(train, testStart); err != nil {
		return err
	}
	if len(train) < 10 {
		return fmt.Errorf("%w: %d rows for boosting", models.ErrInsufficientHistory, len(train))
	}

	names := featureNames(train)
	x := designMatrix(train, names)
	y := make([]float64, len(train))
	var ups float64
	for i, row := range train {
		if row.TargetDirection == models.DirectionUp {
			y[i] = 1
			ups++
		}
	}

	base := clampProb(ups / float64(len(train)))
	bias := math.Log(base / (1 - base))

	scores := make([]float64, len(train))
	for i := range scores {
		scores[i] = bias
	}

	rng := rand.New(rand.NewSource(b.seed))
	subsample := int(math.Sqrt(float64(len(names))))
	if subsample < 1 {
		subsample = 1
	}

	stumps := make([]stump, 0, b.rounds)
	grad := make([]float64, len(train))
	hess := make([]float64, len(train))
	for round := 0; round < b.rounds; round++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("boost fit budget exhausted at round %d: %w", round, err)
		}

		for i := range scores {
			p := sigmoid(scores[i])
			grad[i] = y[i] - p
			hess[i] = p * (1 - p)
		}

		best, ok := bestStump(x, grad, hess, rng.Perm(len(names))[:subsample], b.regLambda)
		if !ok {
			break
		}
		best.left *= b.learningRate
		best.right *= b.learningRate
		stumps = append(stumps, best)

		for i := range scores {
			if x[i][best.feature] <= best.threshold {
				scores[i] += best.left
			} else {
				scores[i] += best.right
			}
		}
	}

	b.names = names
	b.bias = bias
	b.stumps = stumps
	return nil
}

func (b *Boost) Predict(ctx context.Context, rows []models.FeatureRow) ([]models.Prediction, error) {
	if b.names == nil {
		return nil, fmt.Errorf("boost: predict before fit")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	preds := make([]models.Prediction, len(rows))
	for i, row := range rows {
		score := b.bias
		for _, s := range b.stumps {
			if row.Indicators[b.names[s.feature]] <= s.threshold {
				score += s.left
			} else {
				score += s.right
			}
		}
		preds[i] = models.Prediction{
			Timestamp:    row.Timestamp,
			ForecasterID: b.id,
			Kind:         models.KindProbability,
			Probability:  sigmoid(score),
		}
	}
	return preds, nil
}

// bestStump scans candidate features and decile thresholds and returns the
// Newton-step split with the highest gain.
func bestStump(x [][]float64, grad, hess []float64, features []int, lambda float64) (stump, bool) {
	var totalG, totalH float64
	for i := range grad {
		totalG += grad[i]
		totalH += hess[i]
	}

	best := stump{}
	bestGain := 0.0
	found := false

	for _, f := range features {
		for _, threshold := range decileThresholds(x, f) {
			var leftG, leftH float64
			for i := range x {
				if x[i][f] <= threshold {
					leftG += grad[i]
					leftH += hess[i]
				}
			}
			rightG := totalG - leftG
			rightH := totalH - leftH
			if leftH == 0 || rightH == 0 {
				continue
			}
			gain := leftG*leftG/(leftH+lambda) + rightG*rightG/(rightH+lambda) - totalG*totalG/(totalH+lambda)
			if gain > bestGain {
				bestGain = gain
				best = stump{
					feature:   f,
					threshold: threshold,
					left:      leftG / (leftH + lambda),
					right:     rightG / (rightH + lambda),
				}
				found = true
			}
		}
	}
	return best, found
}

func decileThresholds(x [][]float64, feature int) []float64 {
	values := make([]float64, len(x))
	for i := range x {
		values[i] = x[i][feature]
	}
	sort.Float64s(values)

	thresholds := make([]float64, 0, 9)
	for q := 1; q < 10; q++ {
		v := values[q*len(values)/10]
		if len(thresholds) == 0 || v != thresholds[len(thresholds)-1] {
			thresholds = append(thresholds, v)
		}
	}
	return thresholds
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

func clampProb(p float64) float64 {
	const eps = 1e-3
	return math.Min(1-eps, math.Max(eps, p))
}
