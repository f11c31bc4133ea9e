package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"dealscout/config"
	"dealscout/logging"
	"dealscout/scheduler"
	"dealscout/server"
	"dealscout/services"
	"dealscout/storage"
)

func main() {
	recomputeOnce := flag.Bool("recompute", false, "run one recompute pass and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging error: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to open store", zap.Error(err))
	}
	defer store.Close()

	weightsSvc := services.NewWeightsService(store, log)
	if err := weightsSvc.Seed(ctx, cfg.Scoring.DefaultWeights); err != nil {
		log.Fatal("failed to seed default weights", zap.Error(err))
	}

	recomputeSvc := services.NewRecomputeService(store, log, cfg.Scoring.BatchSize)
	retentionSvc := services.NewRetentionService(store, log, cfg.Scheduler.RetentionDays)
	statsSvc := services.NewStatsService(store)

	if *recomputeOnce {
		result, err := recomputeSvc.Recompute(ctx)
		if err != nil {
			log.Fatal("recompute failed", zap.Error(err))
		}
		log.Info("recompute done", zap.Int("updated", result.UpdatedCount), zap.Int("skipped", result.SkippedCount))
		return
	}

	sched := scheduler.New(cfg, recomputeSvc, retentionSvc, log)
	if err := sched.Start(ctx); err != nil {
		log.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	srv := server.New(cfg.HTTPAddr, recomputeSvc, weightsSvc, statsSvc, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			log.Error("http server error", zap.Error(err))
		}
	}

	cancel()
	if err := srv.Shutdown(context.Background()); err != nil {
		log.Warn("http shutdown error", zap.Error(err))
	}
}

// openStore selects the backend: Postgres when DATABASE_URL is set,
// local SQLite otherwise.
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (storage.Store, error) {
	if cfg.DatabaseURL != "" {
		log.Info("using postgres store")
		return storage.NewPostgresStore(ctx, cfg.DatabaseURL, log)
	}
	log.Info("using sqlite store", zap.String("path", cfg.DBPath))
	return storage.NewSQLiteStore(cfg.DBPath, log)
}
