package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"

	"newsgrid.app/grid/internal/clustering"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMinConns  int32  `envconfig:"GRID_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"GRID_DB_MAX_CONNS" default:"8"`

	ClusterTimeWindowHours int     `envconfig:"CLUSTER_TIME_WINDOW_HOURS" default:"48"`
	MinTagOverlap          int     `envconfig:"MIN_TAG_OVERLAP" default:"2"`
	MinTitleSimilarity     float64 `envconfig:"MIN_TITLE_SIMILARITY" default:"0.60"`
	MaxClusterSize         int     `envconfig:"MAX_CLUSTER_SIZE" default:"50"`
	PruneAfterDays         int     `envconfig:"PRUNE_AFTER_DAYS" default:"7"`
	ClusterBatchSize       int     `envconfig:"CLUSTER_BATCH_SIZE" default:"500"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("GRID_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("GRID_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("GRID_DB_MIN_CONNS (%d) cannot exceed GRID_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.ClusterTimeWindowHours < 1 {
		return fmt.Errorf("CLUSTER_TIME_WINDOW_HOURS must be >= 1")
	}
	if c.MinTagOverlap < 1 {
		return fmt.Errorf("MIN_TAG_OVERLAP must be >= 1")
	}
	if c.MinTitleSimilarity < 0 || c.MinTitleSimilarity > 1 {
		return fmt.Errorf("MIN_TITLE_SIMILARITY must be in [0,1]")
	}
	if c.MaxClusterSize < 2 {
		return fmt.Errorf("MAX_CLUSTER_SIZE must be >= 2")
	}
	if c.PruneAfterDays < 1 {
		return fmt.Errorf("PRUNE_AFTER_DAYS must be >= 1")
	}
	if c.ClusterBatchSize < 1 {
		return fmt.Errorf("CLUSTER_BATCH_SIZE must be >= 1")
	}
	return nil
}

// Clustering maps the flat environment fields onto the engine's option struct.
func (c *Config) Clustering() clustering.Config {
	return clustering.Config{
		TimeWindowHours:    c.ClusterTimeWindowHours,
		MinTagOverlap:      c.MinTagOverlap,
		MinTitleSimilarity: c.MinTitleSimilarity,
		MaxClusterSize:     c.MaxClusterSize,
		PruneAfterDays:     c.PruneAfterDays,
		BatchSize:          c.ClusterBatchSize,
	}
}
