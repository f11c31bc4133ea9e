package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"dealscout/metrics"
	"dealscout/storage"
)

// DefaultRetentionDays is how long an unseen listing stays active
// before retention flags it.
const DefaultRetentionDays = 180

// RetentionService retires listings not seen within the retention
// window. Retired rows keep their history and still feed segment
// statistics while inside the scoring window.
type RetentionService struct {
	store storage.Store
	log   *zap.Logger
	days  int
}

func NewRetentionService(store storage.Store, log *zap.Logger, days int) *RetentionService {
	if days <= 0 {
		days = DefaultRetentionDays
	}
	return &RetentionService{store: store, log: log, days: days}
}

// RetireStale flags active listings whose last_seen_at is older than
// the retention window and returns how many were flagged.
func (s *RetentionService) RetireStale(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -s.days)
	retired, err := s.store.MarkInactiveNotSeenSince(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("retire stale listings: %w", err)
	}

	metrics.ListingsRetired.Add(float64(retired))
	if retired > 0 {
		s.log.Info("retired stale listings",
			zap.Int64("count", retired),
			zap.Time("cutoff", cutoff))
	}
	return retired, nil
}
