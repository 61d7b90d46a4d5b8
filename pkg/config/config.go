// ABOUTME: Configuration management for the builder with environment variable support
// ABOUTME: Defines configuration structures for run inputs, fetching, cache and logging

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"digests-builder/pkg/scheduler"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Run contains input, output and scheduling configuration
	Run RunConfig

	// Fetch contains network configuration
	Fetch FetchConfig

	// Cache contains cache configuration
	Cache CacheConfig

	// Log contains logging configuration
	Log LogConfig
}

// RunConfig holds the inputs and outputs of a run
type RunConfig struct {
	// FeedsConfig is the path of the TOML feed configuration
	FeedsConfig string

	// OutputFile is the path of the JSON artifact
	OutputFile string

	// Mode is full, missing or none
	Mode string

	// Schedule is a cron expression; empty runs once and exits
	Schedule string
}

// FetchConfig holds network configuration
type FetchConfig struct {
	// Workers is the number of concurrent fetches
	Workers int

	// Timeout bounds one feed's fetch
	Timeout time.Duration

	// HostInterval is the minimum spacing of requests to one host
	HostInterval time.Duration
}

// CacheConfig holds cache backend configuration
type CacheConfig struct {
	// Type specifies the cache backend (sqlite/memory/redis/redisjson)
	Type string

	// Path is the SQLite database file
	Path string

	// Redis contains Redis-specific configuration
	Redis RedisConfig
}

// RedisConfig holds Redis-specific configuration
type RedisConfig struct {
	// Address is the Redis server address
	Address string

	// Password is the Redis authentication password
	Password string

	// DB is the Redis database number
	DB int

	// JSON stores values as RedisJSON documents
	JSON bool
}

// LogConfig holds logging configuration
type LogConfig struct {
	// Level is debug, info, warn or error
	Level string

	// Format is text or json
	Format string
}

// LoadFromEnv loads configuration from environment variables. Values in
// envFile, when it exists, fill variables that are not already set.
func LoadFromEnv(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	cacheType := getEnvOrDefault("CACHE_TYPE", "sqlite")
	cfg := &Config{
		Run: RunConfig{
			FeedsConfig: getEnvOrDefault("FEEDS_CONFIG", "feeds.toml"),
			OutputFile:  getEnvOrDefault("OUTPUT_FILE", "digest.json"),
			Mode:        getEnvOrDefault("RUN_MODE", "full"),
			Schedule:    getEnvOrDefault("SCHEDULE", ""),
		},
		Fetch: FetchConfig{
			Workers:      getEnvAsIntOrDefault("FETCH_WORKERS", 8),
			Timeout:      getEnvAsDurationOrDefault("FETCH_TIMEOUT", 30*time.Second),
			HostInterval: getEnvAsDurationOrDefault("HOST_INTERVAL", 0),
		},
		Cache: CacheConfig{
			Type: cacheType,
			Path: getEnvOrDefault("CACHE_PATH", "digests-cache.db"),
			Redis: RedisConfig{
				Address:  getEnvOrDefault("REDIS_ADDRESS", "localhost:6379"),
				Password: getEnvOrDefault("REDIS_PASSWORD", ""),
				DB:       getEnvAsIntOrDefault("REDIS_DB", 0),
				JSON:     cacheType == "redisjson",
			},
		},
		Log: LogConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "text"),
		},
	}

	return cfg, nil
}

// getEnvOrDefault returns the environment variable value or a default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault returns the environment variable as int or a default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsDurationOrDefault accepts Go durations ("45s") or whole seconds
func getEnvAsDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Run.FeedsConfig == "" {
		return errors.New("feeds config path cannot be empty")
	}

	switch c.Run.Mode {
	case "full", "missing", "none":
	default:
		return fmt.Errorf("run mode must be 'full', 'missing' or 'none', got %q", c.Run.Mode)
	}

	if c.Run.Schedule != "" {
		if err := scheduler.Validate(c.Run.Schedule); err != nil {
			return err
		}
	}

	if c.Fetch.Workers < 1 {
		return errors.New("fetch workers must be at least 1")
	}

	if c.Fetch.Timeout <= 0 {
		return errors.New("fetch timeout must be positive")
	}

	if c.Fetch.HostInterval < 0 {
		return errors.New("host interval cannot be negative")
	}

	switch c.Cache.Type {
	case "sqlite":
		if c.Cache.Path == "" {
			return errors.New("cache path cannot be empty when using sqlite cache")
		}
	case "memory":
	case "redis", "redisjson":
		if c.Cache.Redis.Address == "" {
			return errors.New("redis address cannot be empty when using redis cache")
		}
	default:
		return errors.New("cache type must be 'sqlite', 'memory', 'redis' or 'redisjson'")
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return errors.New("log format must be 'text' or 'json'")
	}

	return nil
}
