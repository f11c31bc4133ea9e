package storage

import (
	"context"
	"time"

	"dealscout/models"
)

// weightsKey is the settings row holding the AlgorithmWeights singleton.
const weightsKey = "algorithm_weights"

// Store is the persistence boundary of the scoring engine. Any durable
// keyed store with range queries can sit behind it; PostgresStore is the
// production implementation, SQLiteStore the local one.
type Store interface {
	// ListingsForScoring returns the historical window: every listing
	// that is active or was last seen at or after cutoff.
	ListingsForScoring(ctx context.Context, cutoff time.Time) ([]models.Listing, error)

	// PriceHistoryForListings returns price history for the given ids,
	// each slice ordered most-recent-first.
	PriceHistoryForListings(ctx context.Context, listingIDs []string) (map[string][]models.PriceHistoryRecord, error)

	// UpdateListingScores writes deal_score and score_breakdown for a
	// batch. Individual listing failures are logged and skipped; the
	// return value counts successful writes. The error is non-nil only
	// when the batch as a whole could not proceed.
	UpdateListingScores(ctx context.Context, updates []models.ScoreUpdate) (int, error)

	// GetWeights returns the persisted weights configuration. The bool
	// reports whether a stored value existed; defaults are returned
	// otherwise.
	GetWeights(ctx context.Context) (models.AlgorithmWeights, bool, error)
	SaveWeights(ctx context.Context, w models.AlgorithmWeights) error

	// TryRecomputeLock attempts to take the single-flight run lock.
	// False means another recompute holds it.
	TryRecomputeLock(ctx context.Context) (bool, error)
	ReleaseRecomputeLock(ctx context.Context) error

	CreateScoreRun(ctx context.Context, run *models.ScoreRun) error
	FinishScoreRun(ctx context.Context, run *models.ScoreRun) error

	// MarkInactiveNotSeenSince retires listings not observed since
	// cutoff. Rows are flagged, never deleted.
	MarkInactiveNotSeenSince(ctx context.Context, cutoff time.Time) (int64, error)

	GetStats(ctx context.Context) (*models.CatalogStats, error)

	Close() error
}
