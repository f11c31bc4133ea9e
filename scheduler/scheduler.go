package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"dealscout/config"
	"dealscout/services"
)

// Scheduler runs the periodic recompute and daily retention jobs.
// Recompute runs on a cron expression when one is configured, or on a
// fixed interval; retention always runs on its cron.
type Scheduler struct {
	cfg       *config.Config
	recompute *services.RecomputeService
	retention *services.RetentionService
	log       *zap.Logger
	cron      *cron.Cron
	ticker    *time.Ticker
	stopCh    chan struct{}
}

func New(cfg *config.Config, recompute *services.RecomputeService, retention *services.RetentionService, log *zap.Logger) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		recompute: recompute,
		retention: retention,
		log:       log,
		cron:      cron.New(),
		stopCh:    make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if spec := s.cfg.Scheduler.RecomputeCron; spec != "" {
		s.log.Info("scheduling recompute", zap.String("cron", spec))
		if _, err := s.cron.AddFunc(spec, func() { s.runRecompute(ctx) }); err != nil {
			return fmt.Errorf("invalid recompute cron expression: %w", err)
		}
	} else if s.cfg.Scheduler.RecomputeInterval > 0 {
		s.log.Info("scheduling recompute", zap.Duration("interval", s.cfg.Scheduler.RecomputeInterval))
		s.ticker = time.NewTicker(s.cfg.Scheduler.RecomputeInterval)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					s.runRecompute(ctx)
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	} else {
		s.log.Info("no recompute schedule configured, runs are API-triggered only")
	}

	if spec := s.cfg.Scheduler.RetentionCron; spec != "" {
		s.log.Info("scheduling retention", zap.String("cron", spec))
		if _, err := s.cron.AddFunc(spec, func() { s.runRetention(ctx) }); err != nil {
			return fmt.Errorf("invalid retention cron expression: %w", err)
		}
	}

	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
}

func (s *Scheduler) runRecompute(ctx context.Context) {
	_, err := s.recompute.Recompute(ctx)
	if errors.Is(err, services.ErrRecomputeInProgress) {
		s.log.Warn("scheduled recompute skipped, previous run still in progress")
		return
	}
	if err != nil {
		s.log.Error("scheduled recompute failed", zap.Error(err))
	}
}

func (s *Scheduler) runRetention(ctx context.Context) {
	if _, err := s.retention.RetireStale(ctx); err != nil {
		s.log.Error("scheduled retention failed", zap.Error(err))
	}
}
