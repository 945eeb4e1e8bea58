package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// EnsemblePolicy is business policy for the signal layer: per-forecaster
// weights and the probability thresholds that map a combined vote to a
// position. These are required configuration, not constants.
type EnsemblePolicy struct {
	Weights        map[string]float64 `yaml:"weights"`
	LongThreshold  float64            `yaml:"long_threshold"`
	ShortThreshold float64            `yaml:"short_threshold"`
	// ReturnScale controls how a predicted return maps to confidence:
	// prob = 0.5*(1+tanh(r/ReturnScale)). Roughly one typical daily move.
	ReturnScale float64 `yaml:"return_scale"`
}

// DefaultPolicy returns equal weights and symmetric 0.55/0.45 thresholds.
func DefaultPolicy() EnsemblePolicy {
	return EnsemblePolicy{
		Weights:        map[string]float64{},
		LongThreshold:  0.55,
		ShortThreshold: 0.45,
		ReturnScale:    0.01,
	}
}

// LoadPolicy reads an ensemble policy from a YAML file, filling unset fields
// from DefaultPolicy.
func LoadPolicy(path string) (EnsemblePolicy, error) {
	policy := DefaultPolicy()

	data, err := os.ReadFile(path)
	if err != nil {
		return policy, fmt.Errorf("read ensemble policy: %w", err)
	}
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return policy, fmt.Errorf("parse ensemble policy: %w", err)
	}

	if err := policy.Validate(); err != nil {
		return policy, err
	}
	return policy, nil
}

// Validate checks threshold ordering and weight signs.
func (p EnsemblePolicy) Validate() error {
	if p.LongThreshold <= p.ShortThreshold {
		return fmt.Errorf("ensemble policy: long_threshold %.3f must exceed short_threshold %.3f",
			p.LongThreshold, p.ShortThreshold)
	}
	if p.LongThreshold > 1 || p.ShortThreshold < 0 {
		return fmt.Errorf("ensemble policy: thresholds must lie in [0,1]")
	}
	if p.ReturnScale <= 0 {
		return fmt.Errorf("ensemble policy: return_scale must be positive")
	}
	for id, w := range p.Weights {
		if w < 0 {
			return fmt.Errorf("ensemble policy: negative weight %.3f for %q", w, id)
		}
	}
	return nil
}
