package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dealscout/models"
)

func timeDaysAgo(days int) time.Time {
	return time.Now().UTC().AddDate(0, 0, -days)
}

func TestWeightsGetFallsBackToDefaults(t *testing.T) {
	store := newFakeStore()
	svc := NewWeightsService(store, zap.NewNop())

	w, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.DefaultWeights(), w)
}

func TestWeightsUpdateValidates(t *testing.T) {
	store := newFakeStore()
	svc := NewWeightsService(store, zap.NewNop())

	bad := models.AlgorithmWeights{PriceVsSegment: 0.9, PriceEvaluation: 0.9}
	err := svc.Update(context.Background(), bad)
	assert.ErrorIs(t, err, models.ErrInvalidWeights)
	assert.Nil(t, store.weights)

	good := models.AlgorithmWeights{PriceVsSegment: 0.4, PriceEvaluation: 0.2, MileageQuality: 0.2, PricePerKm: 0.2}
	require.NoError(t, svc.Update(context.Background(), good))

	w, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, good, w)
}

func TestWeightsSeedDoesNotOverwrite(t *testing.T) {
	store := newFakeStore()
	svc := NewWeightsService(store, zap.NewNop())

	stored := models.AlgorithmWeights{PriceVsSegment: 0.4, PriceEvaluation: 0.2, MileageQuality: 0.2, PricePerKm: 0.2}
	store.weights = &stored

	require.NoError(t, svc.Seed(context.Background(), models.DefaultWeights()))
	assert.Equal(t, stored, *store.weights)

	// With nothing stored, seeding writes the defaults.
	empty := newFakeStore()
	svc = NewWeightsService(empty, zap.NewNop())
	require.NoError(t, svc.Seed(context.Background(), models.DefaultWeights()))
	require.NotNil(t, empty.weights)
	assert.Equal(t, models.DefaultWeights(), *empty.weights)
}

func TestRetentionRetiresStale(t *testing.T) {
	store := newFakeStore()
	old := activeListing("old", 9000)
	seen := timeDaysAgo(200)
	old.LastSeenAt = &seen
	fresh := activeListing("fresh", 12000)
	freshSeen := timeDaysAgo(5)
	fresh.LastSeenAt = &freshSeen
	store.listings = []models.Listing{old, fresh}

	svc := NewRetentionService(store, zap.NewNop(), 180)
	retired, err := svc.RetireStale(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), retired)
	assert.False(t, store.listings[0].IsActive)
	assert.True(t, store.listings[1].IsActive)
}
