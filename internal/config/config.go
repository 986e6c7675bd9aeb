// Package config loads daemon configuration from the environment, with
// optional .env support for local development.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all daemon settings
type Config struct {
	Host     string `env:"HOST" envDefault:"0.0.0.0"`
	Port     string `env:"PORT" envDefault:"8080"`
	DBPath   string `env:"DB_PATH" envDefault:"mediasweep.db"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	CloudinaryCloudName string `env:"CLOUDINARY_CLOUD_NAME"`
	CloudinaryAPIKey    string `env:"CLOUDINARY_API_KEY"`
	CloudinaryAPISecret string `env:"CLOUDINARY_API_SECRET"`

	AdminTokens    []string `env:"ADMIN_API_TOKENS" envSeparator:","`
	AdminTokenFile string   `env:"ADMIN_API_TOKENS_FILE"`
	CronSecret     string   `env:"CRON_SECRET"`

	// Defaults for batch processing, used by the cron trigger and by
	// API calls that omit the parameters. Clamped to [1,50] and [1,10].
	BatchSize   int `env:"PROCESS_BATCH_SIZE" envDefault:"25"`
	MaxAttempts int `env:"PROCESS_MAX_ATTEMPTS" envDefault:"3"`

	// Cron spec for the in-process trigger; empty disables it and leaves
	// processing to external schedulers hitting the process endpoint.
	ProcessCron string `env:"PROCESS_CRON"`

	// Optional S3-compatible archive of original uploads. Cleanup of
	// archived copies is best-effort and only active when all four are set.
	ArchiveEndpoint  string `env:"ARCHIVE_ENDPOINT"`
	ArchiveAccessKey string `env:"ARCHIVE_ACCESS_KEY"`
	ArchiveSecretKey string `env:"ARCHIVE_SECRET_KEY"`
	ArchiveBucket    string `env:"ARCHIVE_BUCKET"`
}

// ArchiveEnabled reports whether archive cleanup is configured
func (c *Config) ArchiveEnabled() bool {
	return c.ArchiveEndpoint != "" && c.ArchiveAccessKey != "" &&
		c.ArchiveSecretKey != "" && c.ArchiveBucket != ""
}

// Load reads configuration from .env (if present) and the environment
func Load() (*Config, error) {
	_ = godotenv.Load() // missing .env is fine

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	cfg.BatchSize = clamp(cfg.BatchSize, 1, 50)
	cfg.MaxAttempts = clamp(cfg.MaxAttempts, 1, 10)

	return cfg, nil
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
