package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Listing represents one vehicle ad observed on the source marketplace.
// Identity and facts are written by the collector; deal_score and
// score_breakdown are written exclusively by the scoring engine.
type Listing struct {
	ID               string          `json:"id" db:"id"`
	Title            string          `json:"title" db:"title"`
	URL              string          `json:"url" db:"url"`
	Make             string          `json:"make" db:"make"`
	Model            string          `json:"model" db:"model"`
	FuelType         string          `json:"fuel_type" db:"fuel_type"`
	Year             int             `json:"year" db:"year"`
	Price            int             `json:"price" db:"price"` // whole euros
	Mileage          *int            `json:"mileage" db:"mileage"`
	MarketEvaluation string          `json:"market_evaluation" db:"market_evaluation"` // BELOW, IN, ABOVE
	IsActive         bool            `json:"is_active" db:"is_active"`
	FirstSeenAt      time.Time       `json:"first_seen_at" db:"first_seen_at"`
	LastSeenAt       *time.Time      `json:"last_seen_at" db:"last_seen_at"`
	DealScore        *float64        `json:"deal_score" db:"deal_score"`
	ScoreBreakdown   json.RawMessage `json:"score_breakdown" db:"score_breakdown"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
}

// PriceHistoryRecord is one observed asking price for a listing.
// Append-only; at most one record per detected price change.
type PriceHistoryRecord struct {
	ID         int64     `json:"id" db:"id"`
	ListingID  string    `json:"listing_id" db:"listing_id"`
	Price      int       `json:"price" db:"price"`
	RecordedAt time.Time `json:"recorded_at" db:"recorded_at"`
}

// ScoreUpdate is the engine's write to a single listing.
type ScoreUpdate struct {
	ListingID string
	DealScore float64
	Breakdown ScoreBreakdown
}

// ScoreRun records one recompute pass for bookkeeping.
type ScoreRun struct {
	ID             int64      `json:"id" db:"id"`
	RunUUID        uuid.UUID  `json:"run_uuid" db:"run_uuid"`
	StartedAt      time.Time  `json:"started_at" db:"started_at"`
	FinishedAt     *time.Time `json:"finished_at" db:"finished_at"`
	Status         string     `json:"status" db:"status"`
	ListingsScored int        `json:"listings_scored" db:"listings_scored"`
	ListingsFailed int        `json:"listings_failed" db:"listings_failed"`
	ErrorMessage   string     `json:"error_message" db:"error_message"`
}

// CatalogStats summarizes the scored catalog.
type CatalogStats struct {
	TotalListings    int     `json:"total_listings"`
	ActiveListings   int     `json:"active_listings"`
	BelowMarketCount int     `json:"below_market_count"`
	ScoredListings   int     `json:"scored_listings"`
	AverageDealScore float64 `json:"average_deal_score"`
}

// Fuel types
const (
	FuelDiesel       = "diesel"
	FuelGasoline     = "gasoline"
	FuelElectric     = "electric"
	FuelHybrid       = "hybrid"
	FuelPluginHybrid = "plug-in-hybrid"
	FuelLPG          = "lpg"
)

// Market evaluation flags (supplied by the source, not computed here)
const (
	MarketEvalBelow = "BELOW"
	MarketEvalIn    = "IN"
	MarketEvalAbove = "ABOVE"
)

// Score run status
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)
