package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"dealscout/models"
)

// recomputeLockKey is the advisory lock id serializing recompute runs.
const recomputeLockKey = int64(0x6465616c73636f) // "dealsco"

type PostgresStore struct {
	pool *pgxpool.Pool
	log  *zap.Logger

	// Advisory locks are session-scoped, so the lock holder pins one
	// pool connection until release.
	lockMu   sync.Mutex
	lockConn *pgxpool.Conn
}

func NewPostgresStore(ctx context.Context, connString string, log *zap.Logger) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	store := &PostgresStore{pool: pool, log: log}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS listings (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			url TEXT NOT NULL DEFAULT '',
			make TEXT NOT NULL DEFAULT '',
			model TEXT NOT NULL DEFAULT '',
			fuel_type TEXT NOT NULL DEFAULT '',
			year INTEGER NOT NULL DEFAULT 0,
			price INTEGER NOT NULL,
			mileage INTEGER,
			market_evaluation TEXT NOT NULL DEFAULT '',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			first_seen_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_seen_at TIMESTAMPTZ,
			deal_score DOUBLE PRECISION,
			score_breakdown JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS price_history (
			id BIGSERIAL PRIMARY KEY,
			listing_id TEXT NOT NULL REFERENCES listings(id),
			price INTEGER NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS score_runs (
			id BIGSERIAL PRIMARY KEY,
			run_uuid UUID NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ,
			status TEXT NOT NULL,
			listings_scored INTEGER NOT NULL DEFAULT 0,
			listings_failed INTEGER NOT NULL DEFAULT 0,
			error_message TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_listings_segment ON listings(make, model, fuel_type, year)`,
		`CREATE INDEX IF NOT EXISTS idx_listings_deal_score ON listings(deal_score)`,
		`CREATE INDEX IF NOT EXISTS idx_listings_window ON listings(is_active, last_seen_at)`,
		`CREATE INDEX IF NOT EXISTS idx_price_history_listing ON price_history(listing_id, recorded_at DESC)`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// Listings
// =============================================================================

const listingColumns = `id, title, url, make, model, fuel_type, year, price, mileage,
	market_evaluation, is_active, first_seen_at, last_seen_at, deal_score, score_breakdown, created_at`

func (s *PostgresStore) ListingsForScoring(ctx context.Context, cutoff time.Time) ([]models.Listing, error) {
	query := `
		SELECT ` + listingColumns + `
		FROM listings
		WHERE is_active = TRUE OR last_seen_at >= $1
		ORDER BY id`

	rows, err := s.pool.Query(ctx, query, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		var l models.Listing
		if err := scanListing(rows, &l); err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner, l *models.Listing) error {
	return row.Scan(
		&l.ID, &l.Title, &l.URL, &l.Make, &l.Model, &l.FuelType, &l.Year, &l.Price, &l.Mileage,
		&l.MarketEvaluation, &l.IsActive, &l.FirstSeenAt, &l.LastSeenAt, &l.DealScore, &l.ScoreBreakdown, &l.CreatedAt,
	)
}

func (s *PostgresStore) UpdateListingScores(ctx context.Context, updates []models.ScoreUpdate) (int, error) {
	query := `UPDATE listings SET deal_score = $2, score_breakdown = $3 WHERE id = $1`

	updated := 0
	for _, u := range updates {
		if err := ctx.Err(); err != nil {
			return updated, err
		}

		breakdown, err := json.Marshal(u.Breakdown)
		if err != nil {
			s.log.Warn("skip listing: breakdown marshal failed",
				zap.String("listing_id", u.ListingID), zap.Error(err))
			continue
		}

		tag, err := s.pool.Exec(ctx, query, u.ListingID, u.DealScore, breakdown)
		if err != nil {
			s.log.Warn("skip listing: score write failed",
				zap.String("listing_id", u.ListingID), zap.Error(err))
			continue
		}
		if tag.RowsAffected() > 0 {
			updated++
		}
	}
	return updated, nil
}

func (s *PostgresStore) MarkInactiveNotSeenSince(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `UPDATE listings SET is_active = FALSE WHERE is_active = TRUE AND last_seen_at < $1`

	tag, err := s.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// =============================================================================
// Price history
// =============================================================================

func (s *PostgresStore) PriceHistoryForListings(ctx context.Context, listingIDs []string) (map[string][]models.PriceHistoryRecord, error) {
	history := make(map[string][]models.PriceHistoryRecord, len(listingIDs))
	if len(listingIDs) == 0 {
		return history, nil
	}

	query := `
		SELECT id, listing_id, price, recorded_at
		FROM price_history
		WHERE listing_id = ANY($1)
		ORDER BY listing_id, recorded_at DESC`

	rows, err := s.pool.Query(ctx, query, listingIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var r models.PriceHistoryRecord
		if err := rows.Scan(&r.ID, &r.ListingID, &r.Price, &r.RecordedAt); err != nil {
			return nil, err
		}
		history[r.ListingID] = append(history[r.ListingID], r)
	}
	return history, rows.Err()
}

// =============================================================================
// Weights
// =============================================================================

func (s *PostgresStore) GetWeights(ctx context.Context) (models.AlgorithmWeights, bool, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, weightsKey).Scan(&value)
	if err == pgx.ErrNoRows {
		return models.DefaultWeights(), false, nil
	}
	if err != nil {
		return models.AlgorithmWeights{}, false, err
	}

	var w models.AlgorithmWeights
	if err := json.Unmarshal([]byte(value), &w); err != nil {
		return models.AlgorithmWeights{}, false, fmt.Errorf("decode stored weights: %w", err)
	}
	return w, true, nil
}

func (s *PostgresStore) SaveWeights(ctx context.Context, w models.AlgorithmWeights) error {
	value, err := json.Marshal(w)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO settings (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`

	_, err = s.pool.Exec(ctx, query, weightsKey, string(value))
	return err
}

// =============================================================================
// Run lock
// =============================================================================

func (s *PostgresStore) TryRecomputeLock(ctx context.Context) (bool, error) {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()

	if s.lockConn != nil {
		return false, nil
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return false, err
	}

	var locked bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, recomputeLockKey).Scan(&locked); err != nil {
		conn.Release()
		return false, err
	}
	if !locked {
		conn.Release()
		return false, nil
	}

	s.lockConn = conn
	return true, nil
}

func (s *PostgresStore) ReleaseRecomputeLock(ctx context.Context) error {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()

	if s.lockConn == nil {
		return nil
	}

	_, err := s.lockConn.Exec(ctx, `SELECT pg_advisory_unlock($1)`, recomputeLockKey)
	s.lockConn.Release()
	s.lockConn = nil
	return err
}

// =============================================================================
// Score runs
// =============================================================================

func (s *PostgresStore) CreateScoreRun(ctx context.Context, run *models.ScoreRun) error {
	query := `
		INSERT INTO score_runs (run_uuid, started_at, status, listings_scored, listings_failed, error_message)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	return s.pool.QueryRow(ctx, query,
		run.RunUUID, run.StartedAt, run.Status, run.ListingsScored, run.ListingsFailed, run.ErrorMessage,
	).Scan(&run.ID)
}

func (s *PostgresStore) FinishScoreRun(ctx context.Context, run *models.ScoreRun) error {
	query := `
		UPDATE score_runs SET
			finished_at = $2, status = $3, listings_scored = $4, listings_failed = $5, error_message = $6
		WHERE id = $1`

	_, err := s.pool.Exec(ctx, query,
		run.ID, run.FinishedAt, run.Status, run.ListingsScored, run.ListingsFailed, run.ErrorMessage,
	)
	return err
}

// =============================================================================
// Stats
// =============================================================================

func (s *PostgresStore) GetStats(ctx context.Context) (*models.CatalogStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE is_active),
			COUNT(*) FILTER (WHERE is_active AND market_evaluation = 'BELOW'),
			COUNT(*) FILTER (WHERE is_active AND deal_score IS NOT NULL),
			COALESCE(AVG(deal_score) FILTER (WHERE is_active AND deal_score IS NOT NULL), 0)
		FROM listings`

	var stats models.CatalogStats
	err := s.pool.QueryRow(ctx, query).Scan(
		&stats.TotalListings, &stats.ActiveListings, &stats.BelowMarketCount,
		&stats.ScoredListings, &stats.AverageDealScore,
	)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
