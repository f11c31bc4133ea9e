package services

import (
	"context"
	"fmt"

	"dealscout/models"
	"dealscout/storage"
)

// StatsService exposes catalog-level aggregates for dashboards.
type StatsService struct {
	store storage.Store
}

func NewStatsService(store storage.Store) *StatsService {
	return &StatsService{store: store}
}

func (s *StatsService) Get(ctx context.Context) (*models.CatalogStats, error) {
	stats, err := s.store.GetStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}
	return stats, nil
}
