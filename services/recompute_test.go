package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dealscout/models"
)

// fakeStore is an in-memory Store with injectable failures.
type fakeStore struct {
	mu       sync.Mutex
	listings []models.Listing
	history  map[string][]models.PriceHistoryRecord
	weights  *models.AlgorithmWeights
	scores   map[string]float64
	locked   bool
	runs     []models.ScoreRun
	stats    models.CatalogStats

	listingsErr error
	historyErr  error
	failWrites  map[string]bool
	lockHeld    bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		history:    make(map[string][]models.PriceHistoryRecord),
		scores:     make(map[string]float64),
		failWrites: make(map[string]bool),
	}
}

func (f *fakeStore) ListingsForScoring(ctx context.Context, cutoff time.Time) ([]models.Listing, error) {
	if f.listingsErr != nil {
		return nil, f.listingsErr
	}
	return f.listings, nil
}

func (f *fakeStore) PriceHistoryForListings(ctx context.Context, ids []string) (map[string][]models.PriceHistoryRecord, error) {
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	out := make(map[string][]models.PriceHistoryRecord)
	for _, id := range ids {
		if h, ok := f.history[id]; ok {
			out[id] = h
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateListingScores(ctx context.Context, updates []models.ScoreUpdate) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	updated := 0
	for _, u := range updates {
		if f.failWrites[u.ListingID] {
			continue
		}
		f.scores[u.ListingID] = u.DealScore
		updated++
	}
	return updated, nil
}

func (f *fakeStore) GetWeights(ctx context.Context) (models.AlgorithmWeights, bool, error) {
	if f.weights != nil {
		return *f.weights, true, nil
	}
	return models.DefaultWeights(), false, nil
}

func (f *fakeStore) SaveWeights(ctx context.Context, w models.AlgorithmWeights) error {
	f.weights = &w
	return nil
}

func (f *fakeStore) TryRecomputeLock(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lockHeld || f.locked {
		return false, nil
	}
	f.locked = true
	return true, nil
}

func (f *fakeStore) ReleaseRecomputeLock(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locked = false
	return nil
}

func (f *fakeStore) CreateScoreRun(ctx context.Context, run *models.ScoreRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	run.ID = int64(len(f.runs) + 1)
	f.runs = append(f.runs, *run)
	return nil
}

func (f *fakeStore) FinishScoreRun(ctx context.Context, run *models.ScoreRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.runs {
		if f.runs[i].ID == run.ID {
			f.runs[i] = *run
		}
	}
	return nil
}

func (f *fakeStore) MarkInactiveNotSeenSince(ctx context.Context, cutoff time.Time) (int64, error) {
	var retired int64
	for i := range f.listings {
		l := &f.listings[i]
		if l.IsActive && l.LastSeenAt != nil && l.LastSeenAt.Before(cutoff) {
			l.IsActive = false
			retired++
		}
	}
	return retired, nil
}

func (f *fakeStore) GetStats(ctx context.Context) (*models.CatalogStats, error) {
	s := f.stats
	return &s, nil
}

func (f *fakeStore) Close() error { return nil }

func intPtr(v int) *int { return &v }

func activeListing(id string, price int) models.Listing {
	return models.Listing{
		ID:       id,
		Make:     "vw",
		Model:    "golf",
		FuelType: models.FuelGasoline,
		Year:     2020,
		Price:    price,
		Mileage:  intPtr(60000),
		IsActive: true,
	}
}

func TestRecomputeScoresAllActiveListings(t *testing.T) {
	store := newFakeStore()
	store.listings = []models.Listing{
		activeListing("a", 12000),
		activeListing("b", 15000),
		activeListing("c", 18000),
	}

	svc := NewRecomputeService(store, zap.NewNop(), 2)
	result, err := svc.Recompute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, result.UpdatedCount)
	assert.Zero(t, result.SkippedCount)
	assert.Len(t, store.scores, 3)

	// Cheapest scores best.
	assert.Greater(t, store.scores["a"], store.scores["c"])

	// Run bookkeeping recorded a completed pass.
	require.Len(t, store.runs, 1)
	assert.Equal(t, models.RunStatusCompleted, store.runs[0].Status)
	assert.Equal(t, 3, store.runs[0].ListingsScored)

	// Lock released: a second run succeeds.
	_, err = svc.Recompute(context.Background())
	assert.NoError(t, err)
}

func TestRecomputeIsIdempotent(t *testing.T) {
	store := newFakeStore()
	store.listings = []models.Listing{
		activeListing("a", 12000),
		activeListing("b", 15000),
	}

	svc := NewRecomputeService(store, zap.NewNop(), 0)
	_, err := svc.Recompute(context.Background())
	require.NoError(t, err)
	first := map[string]float64{"a": store.scores["a"], "b": store.scores["b"]}

	_, err = svc.Recompute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first["a"], store.scores["a"])
	assert.Equal(t, first["b"], store.scores["b"])
}

func TestRecomputeSkipsInactiveListings(t *testing.T) {
	now := time.Now().UTC()
	seen := now.AddDate(0, 0, -40)

	store := newFakeStore()
	inactive := activeListing("old", 9000)
	inactive.IsActive = false
	inactive.LastSeenAt = &seen
	store.listings = []models.Listing{
		activeListing("a", 12000),
		inactive,
	}

	svc := NewRecomputeService(store, zap.NewNop(), 0)
	result, err := svc.Recompute(context.Background())
	require.NoError(t, err)

	// The inactive listing shapes segment statistics but is not scored.
	assert.Equal(t, 1, result.UpdatedCount)
	assert.Contains(t, store.scores, "a")
	assert.NotContains(t, store.scores, "old")
}

func TestRecomputeCountsWriteFailures(t *testing.T) {
	store := newFakeStore()
	store.listings = []models.Listing{
		activeListing("a", 12000),
		activeListing("b", 15000),
		activeListing("c", 18000),
	}
	store.failWrites["b"] = true

	svc := NewRecomputeService(store, zap.NewNop(), 0)
	result, err := svc.Recompute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.UpdatedCount)
	assert.Equal(t, 1, result.SkippedCount)
	assert.Equal(t, 1, store.runs[0].ListingsFailed)
}

func TestRecomputeLockConflict(t *testing.T) {
	store := newFakeStore()
	store.lockHeld = true

	svc := NewRecomputeService(store, zap.NewNop(), 0)
	_, err := svc.Recompute(context.Background())
	assert.ErrorIs(t, err, ErrRecomputeInProgress)
}

func TestRecomputeBulkReadFailureIsFatal(t *testing.T) {
	store := newFakeStore()
	store.listingsErr = errors.New("connection reset")

	svc := NewRecomputeService(store, zap.NewNop(), 0)
	_, err := svc.Recompute(context.Background())
	require.Error(t, err)

	// The lock is released even on failure.
	assert.False(t, store.locked)
}

func TestRecomputeHistoryFailureIsFatal(t *testing.T) {
	store := newFakeStore()
	store.listings = []models.Listing{activeListing("a", 12000)}
	store.historyErr = errors.New("connection reset")

	svc := NewRecomputeService(store, zap.NewNop(), 0)
	_, err := svc.Recompute(context.Background())
	require.Error(t, err)

	require.Len(t, store.runs, 1)
	assert.Equal(t, models.RunStatusFailed, store.runs[0].Status)
	assert.False(t, store.locked)
}

func TestRecomputeUsesStoredWeights(t *testing.T) {
	store := newFakeStore()
	custom := models.AlgorithmWeights{PriceVsSegment: 1.0}
	store.weights = &custom
	store.listings = []models.Listing{
		activeListing("a", 12000),
		activeListing("b", 15000),
	}

	svc := NewRecomputeService(store, zap.NewNop(), 0)
	result, err := svc.Recompute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, custom, result.Weights)
}

func TestRecomputeDropBonusApplied(t *testing.T) {
	store := newFakeStore()
	store.listings = []models.Listing{
		activeListing("a", 12000),
		activeListing("b", 15000),
	}
	now := time.Now().UTC()
	store.history["a"] = []models.PriceHistoryRecord{
		{ListingID: "a", Price: 12000, RecordedAt: now.AddDate(0, 0, -2)},
		{ListingID: "a", Price: 16000, RecordedAt: now.AddDate(0, 0, -20)},
	}

	svc := NewRecomputeService(store, zap.NewNop(), 0)
	_, err := svc.Recompute(context.Background())
	require.NoError(t, err)

	withBonus := store.scores["a"]

	// Rescore without the history: the bonus is the only difference.
	store.history = map[string][]models.PriceHistoryRecord{}
	store.scores = map[string]float64{}
	_, err = svc.Recompute(context.Background())
	require.NoError(t, err)

	assert.InDelta(t, 10.0, withBonus-store.scores["a"], 1e-9)
}
