package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecomputeRuns counts recompute passes by terminal status.
	RecomputeRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dealscout_recompute_runs_total",
		Help: "Total number of score recompute runs by status",
	}, []string{"status"})

	// ListingsScored counts listings whose score was written.
	ListingsScored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dealscout_listings_scored_total",
		Help: "Total number of listings scored across all runs",
	})

	// ListingsSkipped counts listings whose score write failed.
	ListingsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dealscout_listings_skipped_total",
		Help: "Total number of listings skipped due to write failures",
	})

	// RecomputeDuration observes wall-clock time per recompute run.
	RecomputeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dealscout_recompute_duration_seconds",
		Help:    "Duration of score recompute runs",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	// LastRecompute is the unix timestamp of the last completed run.
	LastRecompute = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dealscout_last_recompute_timestamp_seconds",
		Help: "Unix timestamp of the last successful recompute run",
	})

	// ListingsRetired counts listings flagged inactive by retention.
	ListingsRetired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dealscout_listings_retired_total",
		Help: "Total number of listings marked inactive by retention",
	})
)
