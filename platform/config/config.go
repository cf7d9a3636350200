// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// LiveBookConfig provides settings for the live-book system-of-record client.
type LiveBookConfig interface {
	GetLiveBookURL() string
	GetLiveBookAPIKey() string
	GetLiveBookTimeout() time.Duration
	GetLiveBookMaxRetries() int
	GetLiveBookBackoffBase() time.Duration
	GetLiveBookCacheTTL() time.Duration
	GetLiveBookRatePerSecond() float64
}

// QueueConfig provides settings for the asynq ingestion queue.
type QueueConfig interface {
	GetRedisURL() string
	GetQueuePartitions() int
	GetQueueConcurrency() int
}

// ConsolidatorConfig provides settings for profile consolidation.
type ConsolidatorConfig interface {
	GetMaxVersionRetries() int
}

// DedupConfig provides settings for batch deduplication.
type DedupConfig interface {
	GetBatchConcurrency() int
	GetLiveBookMaxRetries() int
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                   string
	HTTPAddr              string
	DatabaseURL           string
	CORSAllowAll          bool
	CORSOrigins           []string
	CORSAllowCreds        bool
	RedisURL              string
	QueuePartitions       int
	QueueConcurrency      int
	LiveBookURL           string
	LiveBookAPIKey        string
	LiveBookTimeout       time.Duration
	LiveBookMaxRetries    int
	LiveBookBackoffBase   time.Duration
	LiveBookCacheTTL      time.Duration
	LiveBookRatePerSecond float64
	MaxVersionRetries     int
	BatchConcurrency      int
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// QueueConfig implementation
func (c *Config) GetRedisURL() string      { return c.RedisURL }
func (c *Config) GetQueuePartitions() int  { return c.QueuePartitions }
func (c *Config) GetQueueConcurrency() int { return c.QueueConcurrency }

// LiveBookConfig implementation
func (c *Config) GetLiveBookURL() string                { return c.LiveBookURL }
func (c *Config) GetLiveBookAPIKey() string             { return c.LiveBookAPIKey }
func (c *Config) GetLiveBookTimeout() time.Duration     { return c.LiveBookTimeout }
func (c *Config) GetLiveBookMaxRetries() int            { return c.LiveBookMaxRetries }
func (c *Config) GetLiveBookBackoffBase() time.Duration { return c.LiveBookBackoffBase }
func (c *Config) GetLiveBookCacheTTL() time.Duration    { return c.LiveBookCacheTTL }
func (c *Config) GetLiveBookRatePerSecond() float64     { return c.LiveBookRatePerSecond }

// ConsolidatorConfig implementation
func (c *Config) GetMaxVersionRetries() int { return c.MaxVersionRetries }

// DedupConfig implementation
func (c *Config) GetBatchConcurrency() int { return c.BatchConcurrency }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                   getEnv("APP_ENV", "development"),
		HTTPAddr:              getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		CORSAllowAll:          corsAllowAll,
		CORSOrigins:           corsOrigins,
		CORSAllowCreds:        strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		RedisURL:              getEnv("REDIS_URL", "redis://localhost:6379/0"),
		QueuePartitions:       mustInt(getEnv("QUEUE_PARTITIONS", "4")),
		QueueConcurrency:      mustInt(getEnv("QUEUE_CONCURRENCY", "10")),
		LiveBookURL:           getEnv("LIVEBOOK_URL", ""),
		LiveBookAPIKey:        getEnv("LIVEBOOK_API_KEY", ""),
		LiveBookTimeout:       mustDuration(getEnv("LIVEBOOK_TIMEOUT", "5s")),
		LiveBookMaxRetries:    mustInt(getEnv("LIVEBOOK_MAX_RETRIES", "3")),
		LiveBookBackoffBase:   mustDuration(getEnv("LIVEBOOK_BACKOFF_BASE", "500ms")),
		LiveBookCacheTTL:      mustDuration(getEnv("LIVEBOOK_CACHE_TTL", "5m")),
		LiveBookRatePerSecond: mustFloat(getEnv("LIVEBOOK_RATE_PER_SECOND", "20")),
		MaxVersionRetries:     mustInt(getEnv("CONSOLIDATOR_MAX_VERSION_RETRIES", "3")),
		BatchConcurrency:      mustInt(getEnv("DEDUP_BATCH_CONCURRENCY", "4")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.LiveBookURL == "" {
		return nil, fmt.Errorf("LIVEBOOK_URL is required")
	}
	if cfg.QueuePartitions < 1 {
		return nil, fmt.Errorf("QUEUE_PARTITIONS must be at least 1")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
