package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultWeightsValid(t *testing.T) {
	w := DefaultWeights()
	require.NoError(t, w.Validate())
	assert.InDelta(t, 1.0, w.Sum(), 1e-9)
}

func TestValidateTolerance(t *testing.T) {
	// Sums of 0.99 and 1.01 sit exactly on the tolerance boundary and
	// are accepted.
	low := AlgorithmWeights{PriceVsSegment: 0.34, PriceEvaluation: 0.25, MileageQuality: 0.25, PricePerKm: 0.15}
	assert.NoError(t, low.Validate())

	high := AlgorithmWeights{PriceVsSegment: 0.36, PriceEvaluation: 0.25, MileageQuality: 0.25, PricePerKm: 0.15}
	assert.NoError(t, high.Validate())

	tooLow := AlgorithmWeights{PriceVsSegment: 0.30, PriceEvaluation: 0.25, MileageQuality: 0.25, PricePerKm: 0.15}
	assert.ErrorIs(t, tooLow.Validate(), ErrInvalidWeights)

	tooHigh := AlgorithmWeights{PriceVsSegment: 0.40, PriceEvaluation: 0.25, MileageQuality: 0.25, PricePerKm: 0.15}
	assert.ErrorIs(t, tooHigh.Validate(), ErrInvalidWeights)
}

func TestValidateRejectsNegative(t *testing.T) {
	w := AlgorithmWeights{PriceVsSegment: -0.1, PriceEvaluation: 0.45, MileageQuality: 0.45, PricePerKm: 0.2}
	assert.ErrorIs(t, w.Validate(), ErrInvalidWeights)
}

func TestValidateAllowsZeroComponent(t *testing.T) {
	w := AlgorithmWeights{PriceVsSegment: 0.5, PriceEvaluation: 0.5}
	assert.NoError(t, w.Validate())
}
