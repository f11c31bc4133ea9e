package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dealscout/metrics"
	"dealscout/models"
	"dealscout/scoring"
	"dealscout/storage"
)

// ErrRecomputeInProgress is returned when a recompute is requested while
// another run holds the lock.
var ErrRecomputeInProgress = errors.New("recompute already in progress")

const defaultBatchSize = 500

// RecomputeService drives full-catalog score recomputes. At most one
// run executes at a time across all processes sharing the store.
type RecomputeService struct {
	store     storage.Store
	log       *zap.Logger
	batchSize int
}

func NewRecomputeService(store storage.Store, log *zap.Logger, batchSize int) *RecomputeService {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &RecomputeService{
		store:     store,
		log:       log,
		batchSize: batchSize,
	}
}

// RecomputeResult is the outcome of one full recompute pass.
type RecomputeResult struct {
	UpdatedCount int                     `json:"updated_count"`
	SkippedCount int                     `json:"skipped_count"`
	Weights      models.AlgorithmWeights `json:"weights"`
}

// Recompute rebuilds segment statistics from the historical window and
// rescores every active listing. Per-listing write failures are logged
// and skipped; bulk read failures abort the run.
func (s *RecomputeService) Recompute(ctx context.Context) (*RecomputeResult, error) {
	acquired, err := s.store.TryRecomputeLock(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire recompute lock: %w", err)
	}
	if !acquired {
		return nil, ErrRecomputeInProgress
	}
	defer func() {
		if err := s.store.ReleaseRecomputeLock(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn("failed to release recompute lock", zap.Error(err))
		}
	}()

	// Single time snapshot for the whole run: decay weights, vehicle
	// age, and drop recency all read the same clock.
	now := time.Now().UTC()
	started := time.Now()
	log := s.log.With(zap.String("run_id", uuid.NewString()))

	weights, _, err := s.store.GetWeights(ctx)
	if err != nil {
		metrics.RecomputeRuns.WithLabelValues(models.RunStatusFailed).Inc()
		return nil, fmt.Errorf("load weights: %w", err)
	}

	cutoff := now.AddDate(0, 0, -scoring.MaxHistoryDays)
	listings, err := s.store.ListingsForScoring(ctx, cutoff)
	if err != nil {
		metrics.RecomputeRuns.WithLabelValues(models.RunStatusFailed).Inc()
		return nil, fmt.Errorf("load listings: %w", err)
	}

	segments := scoring.BuildSegments(listings, now)
	scorer := scoring.NewScorer(weights, segments, now)

	run := &models.ScoreRun{
		RunUUID:   uuid.New(),
		StartedAt: now,
		Status:    models.RunStatusRunning,
	}
	if err := s.store.CreateScoreRun(ctx, run); err != nil {
		log.Warn("failed to record score run", zap.Error(err))
		run = nil
	}

	var targets []models.Listing
	for _, l := range listings {
		if l.IsActive {
			targets = append(targets, l)
		}
	}

	log.Info("recompute started",
		zap.Int("window_listings", len(listings)),
		zap.Int("active_listings", len(targets)),
		zap.Int("segments", len(segments)))

	result := &RecomputeResult{Weights: weights}
	var runErr error

	for start := 0; start < len(targets); start += s.batchSize {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		end := start + s.batchSize
		if end > len(targets) {
			end = len(targets)
		}
		batch := targets[start:end]

		ids := make([]string, len(batch))
		for i, l := range batch {
			ids[i] = l.ID
		}

		history, err := s.store.PriceHistoryForListings(ctx, ids)
		if err != nil {
			runErr = fmt.Errorf("load price history: %w", err)
			break
		}

		updates := make([]models.ScoreUpdate, 0, len(batch))
		for i := range batch {
			l := &batch[i]
			score, breakdown := scorer.Score(l, history[l.ID])
			updates = append(updates, models.ScoreUpdate{
				ListingID: l.ID,
				DealScore: score,
				Breakdown: breakdown,
			})
		}

		updated, err := s.store.UpdateListingScores(ctx, updates)
		if err != nil {
			result.UpdatedCount += updated
			result.SkippedCount += len(updates) - updated
			runErr = fmt.Errorf("write scores: %w", err)
			break
		}
		result.UpdatedCount += updated
		result.SkippedCount += len(updates) - updated
	}

	elapsed := time.Since(started)
	metrics.RecomputeDuration.Observe(elapsed.Seconds())
	metrics.ListingsScored.Add(float64(result.UpdatedCount))
	metrics.ListingsSkipped.Add(float64(result.SkippedCount))

	status := models.RunStatusCompleted
	if runErr != nil {
		status = models.RunStatusFailed
	} else {
		metrics.LastRecompute.SetToCurrentTime()
	}
	metrics.RecomputeRuns.WithLabelValues(status).Inc()

	if run != nil {
		finished := time.Now().UTC()
		run.FinishedAt = &finished
		run.Status = status
		run.ListingsScored = result.UpdatedCount
		run.ListingsFailed = result.SkippedCount
		if runErr != nil {
			run.ErrorMessage = runErr.Error()
		}
		if err := s.store.FinishScoreRun(context.WithoutCancel(ctx), run); err != nil {
			log.Warn("failed to finalize score run", zap.Error(err))
		}
	}

	if runErr != nil {
		log.Error("recompute failed",
			zap.Int("updated", result.UpdatedCount),
			zap.Int("skipped", result.SkippedCount),
			zap.Duration("elapsed", elapsed),
			zap.Error(runErr))
		return nil, runErr
	}

	log.Info("recompute completed",
		zap.Int("updated", result.UpdatedCount),
		zap.Int("skipped", result.SkippedCount),
		zap.Duration("elapsed", elapsed))
	return result, nil
}
