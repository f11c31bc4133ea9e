package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"dealscout/models"
	"dealscout/storage"
)

// WeightsService is the single write path for algorithm weights.
// Validation happens here so invalid configurations never reach the
// store; reads always yield something usable.
type WeightsService struct {
	store storage.Store
	log   *zap.Logger
}

func NewWeightsService(store storage.Store, log *zap.Logger) *WeightsService {
	return &WeightsService{store: store, log: log}
}

// Get returns the effective weights: the stored configuration when one
// exists, defaults otherwise.
func (s *WeightsService) Get(ctx context.Context) (models.AlgorithmWeights, error) {
	w, _, err := s.store.GetWeights(ctx)
	if err != nil {
		return models.AlgorithmWeights{}, fmt.Errorf("get weights: %w", err)
	}
	return w, nil
}

// Update validates and persists a new weights configuration. The new
// weights take effect on the next recompute run; a run already in
// flight keeps the weights it loaded at start.
func (s *WeightsService) Update(ctx context.Context, w models.AlgorithmWeights) error {
	if err := w.Validate(); err != nil {
		return err
	}
	if err := s.store.SaveWeights(ctx, w); err != nil {
		return fmt.Errorf("save weights: %w", err)
	}
	s.log.Info("algorithm weights updated",
		zap.Float64("price_vs_segment", w.PriceVsSegment),
		zap.Float64("price_evaluation", w.PriceEvaluation),
		zap.Float64("mileage_quality", w.MileageQuality),
		zap.Float64("price_per_km", w.PricePerKm))
	return nil
}

// Seed stores defaults for first boot so the settings row exists. A
// configuration already present is left untouched.
func (s *WeightsService) Seed(ctx context.Context, w models.AlgorithmWeights) error {
	if err := w.Validate(); err != nil {
		return err
	}
	_, stored, err := s.store.GetWeights(ctx)
	if err != nil {
		return fmt.Errorf("get weights: %w", err)
	}
	if stored {
		return nil
	}
	return s.store.SaveWeights(ctx, w)
}
