package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"dealscout/models"
)

// SQLiteStore is the single-process local backend. Functionally
// equivalent to PostgresStore; the run lock degenerates to an
// in-process flag because only one daemon opens the file.
type SQLiteStore struct {
	db  *sql.DB
	log *zap.Logger

	lockMu sync.Mutex
	locked bool
}

func NewSQLiteStore(dbPath string, log *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_loc=UTC")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db, log: log}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS listings (
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
		first_seen_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		last_seen_at DATETIME,
		deal_score REAL,
		score_breakdown TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS price_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		listing_id TEXT NOT NULL REFERENCES listings(id),
		price INTEGER NOT NULL,
		recorded_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS score_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_uuid TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		status TEXT NOT NULL,
		listings_scored INTEGER NOT NULL DEFAULT 0,
		listings_failed INTEGER NOT NULL DEFAULT 0,
		error_message TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_listings_segment ON listings(make, model, fuel_type, year);
	CREATE INDEX IF NOT EXISTS idx_listings_deal_score ON listings(deal_score);
	CREATE INDEX IF NOT EXISTS idx_listings_window ON listings(is_active, last_seen_at);
	CREATE INDEX IF NOT EXISTS idx_price_history_listing ON price_history(listing_id, recorded_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// Listings
// =============================================================================

func (s *SQLiteStore) ListingsForScoring(ctx context.Context, cutoff time.Time) ([]models.Listing, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, url, make, model, fuel_type, year, price, mileage,
			market_evaluation, is_active, first_seen_at, last_seen_at, deal_score, score_breakdown, created_at
		FROM listings
		WHERE is_active = 1 OR last_seen_at >= ?
		ORDER BY id`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		var l models.Listing
		var mileage sql.NullInt64
		var marketEval, breakdown sql.NullString
		var lastSeen sql.NullTime
		var dealScore sql.NullFloat64

		if err := rows.Scan(
			&l.ID, &l.Title, &l.URL, &l.Make, &l.Model, &l.FuelType, &l.Year, &l.Price, &mileage,
			&marketEval, &l.IsActive, &l.FirstSeenAt, &lastSeen, &dealScore, &breakdown, &l.CreatedAt,
		); err != nil {
			return nil, err
		}

		if mileage.Valid {
			v := int(mileage.Int64)
			l.Mileage = &v
		}
		l.MarketEvaluation = marketEval.String
		if lastSeen.Valid {
			t := lastSeen.Time
			l.LastSeenAt = &t
		}
		if dealScore.Valid {
			v := dealScore.Float64
			l.DealScore = &v
		}
		if breakdown.Valid {
			l.ScoreBreakdown = json.RawMessage(breakdown.String)
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

func (s *SQLiteStore) UpdateListingScores(ctx context.Context, updates []models.ScoreUpdate) (int, error) {
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

		res, err := s.db.ExecContext(ctx,
			`UPDATE listings SET deal_score = ?, score_breakdown = ? WHERE id = ?`,
			u.DealScore, string(breakdown), u.ListingID)
		if err != nil {
			s.log.Warn("skip listing: score write failed",
				zap.String("listing_id", u.ListingID), zap.Error(err))
			continue
		}
		if n, _ := res.RowsAffected(); n > 0 {
			updated++
		}
	}
	return updated, nil
}

func (s *SQLiteStore) MarkInactiveNotSeenSince(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE listings SET is_active = 0 WHERE is_active = 1 AND last_seen_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// =============================================================================
// Price history
// =============================================================================

func (s *SQLiteStore) PriceHistoryForListings(ctx context.Context, listingIDs []string) (map[string][]models.PriceHistoryRecord, error) {
	history := make(map[string][]models.PriceHistoryRecord, len(listingIDs))
	if len(listingIDs) == 0 {
		return history, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(listingIDs)), ",")
	args := make([]any, len(listingIDs))
	for i, id := range listingIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, listing_id, price, recorded_at
		FROM price_history
		WHERE listing_id IN (`+placeholders+`)
		ORDER BY listing_id, recorded_at DESC`, args...)
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

func (s *SQLiteStore) GetWeights(ctx context.Context) (models.AlgorithmWeights, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, weightsKey).Scan(&value)
	if err == sql.ErrNoRows {
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

func (s *SQLiteStore) SaveWeights(ctx context.Context, w models.AlgorithmWeights) error {
	value, err := json.Marshal(w)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		weightsKey, string(value))
	return err
}

// =============================================================================
// Run lock
// =============================================================================

func (s *SQLiteStore) TryRecomputeLock(ctx context.Context) (bool, error) {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	if s.locked {
		return false, nil
	}
	s.locked = true
	return true, nil
}

func (s *SQLiteStore) ReleaseRecomputeLock(ctx context.Context) error {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	s.locked = false
	return nil
}

// =============================================================================
// Score runs
// =============================================================================

func (s *SQLiteStore) CreateScoreRun(ctx context.Context, run *models.ScoreRun) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO score_runs (run_uuid, started_at, status, listings_scored, listings_failed, error_message)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.RunUUID.String(), run.StartedAt, run.Status, run.ListingsScored, run.ListingsFailed, run.ErrorMessage)
	if err != nil {
		return err
	}
	run.ID, err = res.LastInsertId()
	return err
}

func (s *SQLiteStore) FinishScoreRun(ctx context.Context, run *models.ScoreRun) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE score_runs SET
			finished_at = ?, status = ?, listings_scored = ?, listings_failed = ?, error_message = ?
		WHERE id = ?`,
		run.FinishedAt, run.Status, run.ListingsScored, run.ListingsFailed, run.ErrorMessage, run.ID)
	return err
}

// =============================================================================
// Stats
// =============================================================================

func (s *SQLiteStore) GetStats(ctx context.Context) (*models.CatalogStats, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(is_active), 0),
			COALESCE(SUM(CASE WHEN is_active = 1 AND market_evaluation = 'BELOW' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN is_active = 1 AND deal_score IS NOT NULL THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(CASE WHEN is_active = 1 THEN deal_score END), 0)
		FROM listings`

	var stats models.CatalogStats
	err := s.db.QueryRowContext(ctx, query).Scan(
		&stats.TotalListings, &stats.ActiveListings, &stats.BelowMarketCount,
		&stats.ScoredListings, &stats.AverageDealScore,
	)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
