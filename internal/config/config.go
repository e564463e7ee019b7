package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	CORS      CORSConfig
	Feed      FeedConfig
	Portfolio PortfolioConfig
	Estimator EstimatorConfig
	Telemetry TelemetryConfig
}

// ServerConfig holds operator HTTP server configuration.
type ServerConfig struct {
	Port string
	Env  string
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	PoolMin  int
	PoolMax  int
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	Origins []string
}

// FeedConfig describes where the roll export comes from and how it is delimited.
type FeedConfig struct {
	// Path is the feed reference used by scheduled runs (local path or gs:// URL).
	Path      string
	Delimiter string
	// Schedule is a six-field cron expression (seconds first). Empty disables the scheduler.
	Schedule string
}

// PortfolioConfig controls owner portfolio aggregation.
type PortfolioConfig struct {
	// IncludeInactive counts properties missing from the latest feed toward their last owner.
	IncludeInactive bool
}

// EstimatorConfig tunes the nearest-neighbour value estimator.
type EstimatorConfig struct {
	K             int
	MinConfidence float64
	Workers       int
}

// TelemetryConfig toggles metrics and tracing.
type TelemetryConfig struct {
	MetricsEnabled bool
	TracingEnabled bool
}

// Load reads configuration from environment variables.
// It uses viper to read values and provides sensible defaults for development.
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults for development
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_HOST", "host.docker.internal")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "atlas_roll")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_POOL_MIN", 2)
	v.SetDefault("DB_POOL_MAX", 10)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000,http://localhost:3001")
	v.SetDefault("FEED_PATH", "")
	v.SetDefault("FEED_DELIMITER", ",")
	v.SetDefault("BATCH_SCHEDULE", "")
	v.SetDefault("PORTFOLIO_INCLUDE_INACTIVE", false)
	v.SetDefault("ESTIMATOR_K", 20)
	v.SetDefault("ESTIMATOR_MIN_CONFIDENCE", 30.0)
	v.SetDefault("ESTIMATOR_WORKERS", 4)
	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("TRACING_ENABLED", false)

	// Bind environment variables
	v.AutomaticEnv()

	// Build configuration
	cfg := &Config{
		Server: ServerConfig{
			Port: v.GetString("PORT"),
			Env:  v.GetString("ENV"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			Name:     v.GetString("DB_NAME"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			PoolMin:  v.GetInt("DB_POOL_MIN"),
			PoolMax:  v.GetInt("DB_POOL_MAX"),
		},
		CORS: CORSConfig{
			Origins: parseOrigins(v.GetString("CORS_ORIGINS")),
		},
		Feed: FeedConfig{
			Path:      strings.TrimSpace(v.GetString("FEED_PATH")),
			Delimiter: v.GetString("FEED_DELIMITER"),
			Schedule:  strings.TrimSpace(v.GetString("BATCH_SCHEDULE")),
		},
		Portfolio: PortfolioConfig{
			IncludeInactive: v.GetBool("PORTFOLIO_INCLUDE_INACTIVE"),
		},
		Estimator: EstimatorConfig{
			K:             v.GetInt("ESTIMATOR_K"),
			MinConfidence: v.GetFloat64("ESTIMATOR_MIN_CONFIDENCE"),
			Workers:       v.GetInt("ESTIMATOR_WORKERS"),
		},
		Telemetry: TelemetryConfig{
			MetricsEnabled: v.GetBool("METRICS_ENABLED"),
			TracingEnabled: v.GetBool("TRACING_ENABLED"),
		},
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	// Validate database config
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Port == "" {
		return fmt.Errorf("DB_PORT is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.Database.PoolMin < 0 {
		return fmt.Errorf("DB_POOL_MIN must be non-negative")
	}
	if c.Database.PoolMax < 1 {
		return fmt.Errorf("DB_POOL_MAX must be at least 1")
	}
	if c.Database.PoolMin > c.Database.PoolMax {
		return fmt.Errorf("DB_POOL_MIN must be less than or equal to DB_POOL_MAX")
	}

	// Validate CORS config
	if len(c.CORS.Origins) == 0 {
		return fmt.Errorf("CORS_ORIGINS is required")
	}

	// Validate pipeline config
	switch c.Feed.Delimiter {
	case ",", "|", "\t", `\t`, ";", "comma", "pipe", "tab", "semicolon":
	default:
		return fmt.Errorf("FEED_DELIMITER %q is not supported", c.Feed.Delimiter)
	}
	if c.Feed.Schedule != "" && c.Feed.Path == "" {
		return fmt.Errorf("FEED_PATH is required when BATCH_SCHEDULE is set")
	}
	if c.Estimator.K < 1 {
		return fmt.Errorf("ESTIMATOR_K must be at least 1")
	}
	if c.Estimator.MinConfidence < 0 || c.Estimator.MinConfidence > 100 {
		return fmt.Errorf("ESTIMATOR_MIN_CONFIDENCE must be between 0 and 100")
	}
	if c.Estimator.Workers < 1 {
		return fmt.Errorf("ESTIMATOR_WORKERS must be at least 1")
	}

	return nil
}

// parseOrigins splits a comma-separated string of origins into a slice.
func parseOrigins(origins string) []string {
	if origins == "" {
		return []string{}
	}

	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
