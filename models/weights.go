package models

import (
	"errors"
	"fmt"
	"math"
)

// WeightSumTolerance is how far the four fractions may drift from 1.0
// before an update is rejected.
const WeightSumTolerance = 0.01

// ErrInvalidWeights marks weight updates rejected at the write boundary.
var ErrInvalidWeights = errors.New("invalid algorithm weights")

// AlgorithmWeights is the persisted singleton configuration for the four
// weighted score components. Loaded once per recompute run.
type AlgorithmWeights struct {
	PriceVsSegment  float64 `json:"price_vs_segment" yaml:"price_vs_segment"`
	PriceEvaluation float64 `json:"price_evaluation" yaml:"price_evaluation"`
	MileageQuality  float64 `json:"mileage_quality" yaml:"mileage_quality"`
	PricePerKm      float64 `json:"price_per_km" yaml:"price_per_km"`
}

// DefaultWeights returns the shipped component weighting.
func DefaultWeights() AlgorithmWeights {
	return AlgorithmWeights{
		PriceVsSegment:  0.35,
		PriceEvaluation: 0.25,
		MileageQuality:  0.25,
		PricePerKm:      0.15,
	}
}

// Sum returns the total of the four fractions.
func (w AlgorithmWeights) Sum() float64 {
	return w.PriceVsSegment + w.PriceEvaluation + w.MileageQuality + w.PricePerKm
}

// Validate rejects negative fractions and sums outside 1.0 ± WeightSumTolerance.
func (w AlgorithmWeights) Validate() error {
	if w.PriceVsSegment < 0 || w.PriceEvaluation < 0 || w.MileageQuality < 0 || w.PricePerKm < 0 {
		return fmt.Errorf("%w: weights must be non-negative", ErrInvalidWeights)
	}
	sum := w.Sum()
	// The small epsilon keeps boundary values like 0.99 from tripping on
	// float representation error.
	if math.Abs(sum-1.0) > WeightSumTolerance+1e-9 {
		return fmt.Errorf("%w: weights sum to %.4f, expected 1.0 ± %.2f", ErrInvalidWeights, sum, WeightSumTolerance)
	}
	return nil
}
