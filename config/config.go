package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"dealscout/models"
)

type Config struct {
	DatabaseURL string
	DBPath      string
	HTTPAddr    string
	LogLevel    string
	LogFormat   string
	Scheduler   SchedulerConfig
	Scoring     ScoringConfig
}

type SchedulerConfig struct {
	RecomputeCron     string
	RecomputeInterval time.Duration
	RetentionCron     string
	RetentionDays     int
}

type ScoringConfig struct {
	BatchSize      int                     `yaml:"batch_size"`
	DefaultWeights models.AlgorithmWeights `yaml:"default_weights"`
}

// scoringFile is the optional on-disk scoring configuration. Values in
// it seed the store on first boot; the settings table wins afterwards.
const scoringFile = "config/scoring.yaml"

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBPath:      getEnv("DB_PATH", "dealscout.db"),
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "json"),
		Scheduler: SchedulerConfig{
			RecomputeCron: os.Getenv("RECOMPUTE_CRON"),
			RetentionCron: getEnv("RETENTION_CRON", "0 4 * * *"),
			RetentionDays: getEnvInt("RETENTION_DAYS", 180),
		},
		Scoring: ScoringConfig{
			BatchSize:      getEnvInt("RECOMPUTE_BATCH_SIZE", 500),
			DefaultWeights: models.DefaultWeights(),
		},
	}

	if interval := os.Getenv("RECOMPUTE_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err != nil {
			return nil, fmt.Errorf("parse RECOMPUTE_INTERVAL: %w", err)
		}
		cfg.Scheduler.RecomputeInterval = d
	}

	if err := cfg.loadScoringFile(); err != nil {
		return nil, err
	}

	if err := cfg.Scoring.DefaultWeights.Validate(); err != nil {
		return nil, fmt.Errorf("default weights in %s: %w", scoringFile, err)
	}

	return cfg, nil
}

func (c *Config) loadScoringFile() error {
	data, err := os.ReadFile(scoringFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var file ScoringConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse %s: %w", scoringFile, err)
	}

	if file.DefaultWeights.Sum() > 0 {
		c.Scoring.DefaultWeights = file.DefaultWeights
	}
	if file.BatchSize > 0 && os.Getenv("RECOMPUTE_BATCH_SIZE") == "" {
		c.Scoring.BatchSize = file.BatchSize
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
