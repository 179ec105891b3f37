// Package config provides configuration management for the price oracle.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server      ServerConfig
	Postgres    PostgresConfig
	Redis       RedisConfig
	Cache       CacheConfig
	PriceSource PriceSourceConfig
	Backfill    BackfillConfig
	RateLimit   RateLimitConfig
	Logging     LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string
	Port string
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
	MigrationsPath string
}

// URL returns the database URL used by the migration tooling
func (c *PostgresConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// CacheConfig holds price cache configuration
type CacheConfig struct {
	TTL time.Duration
}

// PriceSourceConfig holds external price provider configuration
type PriceSourceConfig struct {
	BaseURL           string
	APIKey            string
	MaxAttempts       int
	RetryBaseDelay    time.Duration
	RateLimitWait     time.Duration
	RequestsPerSecond float64
}

// BackfillConfig holds backfill engine configuration
type BackfillConfig struct {
	BatchSize      int
	BatchDelay     time.Duration
	ConcurrentJobs int
}

// RateLimitConfig holds API rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		// .env file is optional - environment variables can be set directly
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Postgres: PostgresConfig{
			Host:           getEnv("POSTGRES_HOST", "localhost"),
			Port:           getEnv("POSTGRES_PORT", "5432"),
			Database:       getEnv("POSTGRES_DB", "price_oracle"),
			User:           getEnv("POSTGRES_USER", "oracle"),
			Password:       getEnv("POSTGRES_PASSWORD", ""),
			MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 50),
			MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
		},
		Redis: RedisConfig{
			Host:           getEnv("REDIS_HOST", "localhost"),
			Port:           getEnv("REDIS_PORT", "6379"),
			Password:       getEnv("REDIS_PASSWORD", ""),
			DB:             getEnvAsInt("REDIS_DB", 0),
			MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 50),
		},
		Cache: CacheConfig{
			TTL: getEnvAsDuration("CACHE_TTL", 300*time.Second),
		},
		PriceSource: PriceSourceConfig{
			BaseURL:           getEnv("PRICE_SOURCE_URL", "https://api.g.alchemy.com"),
			APIKey:            getEnv("PRICE_SOURCE_API_KEY", ""),
			MaxAttempts:       getEnvAsInt("PRICE_SOURCE_MAX_ATTEMPTS", 3),
			RetryBaseDelay:    getEnvAsDuration("PRICE_SOURCE_RETRY_DELAY", time.Second),
			RateLimitWait:     getEnvAsDuration("PRICE_SOURCE_RATE_LIMIT_WAIT", 2*time.Second),
			RequestsPerSecond: getEnvAsFloat("PRICE_SOURCE_RPS", 5),
		},
		Backfill: BackfillConfig{
			BatchSize:      getEnvAsInt("BACKFILL_BATCH_SIZE", 10),
			BatchDelay:     getEnvAsDuration("BACKFILL_BATCH_DELAY", 2*time.Second),
			ConcurrentJobs: getEnvAsInt("BACKFILL_CONCURRENT_JOBS", 2),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsInt("RATE_LIMIT_RPS", 100),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 10),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return config, nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat gets an environment variable as a float with a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
