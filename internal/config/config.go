package config

import (
	"os"
	"strconv"
	"time"

	"goephys/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Database    DatabaseConfig
	Artefact    ArtefactConfig
	Permutation PermutationConfig
}

// DatabaseConfig holds results-store connection settings. An empty URL
// disables persistence; services treat it as a logged no-op.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// ArtefactConfig holds artefact-detection defaults
type ArtefactConfig struct {
	SignificanceLevel  float64
	MaxOutlierFraction float64
	SegmentLen         int
	Metric             string
}

// PermutationConfig holds permutation-test defaults
type PermutationConfig struct {
	Perms            int
	Workers          int
	Seed             int64
	ClusterThreshold float64
	Percentile       float64
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Database:    loadDatabaseConfig(),
		Artefact:    loadArtefactConfig(),
		Permutation: loadPermutationConfig(),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:             getEnvOrDefault("DATABASE_URL", ""),
		MaxOpenConns:    getEnvIntOrDefault("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:    getEnvIntOrDefault("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvDurationOrDefault("DB_CONN_MAX_LIFETIME", 30*time.Minute),
	}
}

func loadArtefactConfig() ArtefactConfig {
	return ArtefactConfig{
		SignificanceLevel:  getEnvFloatOrDefault("ARTEFACT_SIGNIFICANCE_LEVEL", 0.05),
		MaxOutlierFraction: getEnvFloatOrDefault("ARTEFACT_MAX_OUTLIER_FRACTION", 0.1),
		SegmentLen:         getEnvIntOrDefault("ARTEFACT_SEGMENT_LEN", 100),
		Metric:             getEnvOrDefault("ARTEFACT_METRIC", "std"),
	}
}

func loadPermutationConfig() PermutationConfig {
	return PermutationConfig{
		Perms:            getEnvIntOrDefault("PERM_COUNT", 1000),
		Workers:          getEnvIntOrDefault("PERM_WORKERS", 4),
		Seed:             getEnvInt64OrDefault("PERM_SEED", 42),
		ClusterThreshold: getEnvFloatOrDefault("PERM_CLUSTER_THRESHOLD", 3.0),
		Percentile:       getEnvFloatOrDefault("PERM_PERCENTILE", 95),
	}
}

func validateConfig(config *Config) error {
	if config.Artefact.SignificanceLevel <= 0 || config.Artefact.SignificanceLevel >= 1 {
		return errors.ConfigInvalid("ARTEFACT_SIGNIFICANCE_LEVEL must be in (0, 1)")
	}
	if config.Artefact.MaxOutlierFraction <= 0 || config.Artefact.MaxOutlierFraction >= 1 {
		return errors.ConfigInvalid("ARTEFACT_MAX_OUTLIER_FRACTION must be in (0, 1)")
	}
	if config.Artefact.SegmentLen < 1 {
		return errors.ConfigInvalid("ARTEFACT_SEGMENT_LEN must be positive")
	}
	if config.Permutation.Perms < 1 {
		return errors.ConfigInvalid("PERM_COUNT must be positive")
	}
	if config.Permutation.Workers < 1 {
		return errors.ConfigInvalid("PERM_WORKERS must be positive")
	}
	if config.Permutation.Percentile <= 0 || config.Permutation.Percentile >= 100 {
		return errors.ConfigInvalid("PERM_PERCENTILE must be in (0, 100)")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
