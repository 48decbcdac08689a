package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gatehouse/gatehouse/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Cache configuration
	Cache CacheConfig

	// Maintenance configuration
	Maintenance MaintenanceConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	URL         string
	ReplicaURLs string // comma-separated
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// CacheConfig holds permission cache configuration
type CacheConfig struct {
	// Backend selects the cache implementation: "redis" or "memory".
	Backend string

	// TTL bounds how stale a cached permission set may get if an
	// invalidation is lost.
	TTL time.Duration

	// Redis settings
	RedisURL        string
	RedisPassword   string
	RedisDB         int
	RedisPoolSize   int
	RedisMaxRetries int

	// Memory backend settings
	MemoryMaxEntries int
}

// MaintenanceConfig holds background maintenance settings
type MaintenanceConfig struct {
	// PruneSchedule is a cron expression for the orphaned-grant janitor.
	// Empty disables the job.
	PruneSchedule string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Cache:         loadCacheConfig(),
		Maintenance:   loadMaintenanceConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("GATEHOUSE_HOST", "0.0.0.0"),
		Port:            getEnv("GATEHOUSE_PORT", "8080"),
		ReadTimeout:     getEnvDuration("GATEHOUSE_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("GATEHOUSE_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("GATEHOUSE_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("GATEHOUSE_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("GATEHOUSE_HEALTH_PORT", "9090"),
	}
}

// loadDatabaseConfig loads database configuration from environment
func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:         getEnv("GATEHOUSE_POSTGRES_URL", ""),
		ReplicaURLs: getEnv("GATEHOUSE_POSTGRES_REPLICA_URLS", ""),
		MaxConns:    getEnvInt("GATEHOUSE_POSTGRES_MAX_CONNS", 25),
		MinConns:    getEnvInt("GATEHOUSE_POSTGRES_MIN_CONNS", 5),
		Timeout:     getEnvDuration("GATEHOUSE_POSTGRES_TIMEOUT", 30*time.Second),
		MaxLifetime: getEnvDuration("GATEHOUSE_POSTGRES_MAX_LIFETIME", 5*time.Minute),
		MaxIdleTime: getEnvDuration("GATEHOUSE_POSTGRES_MAX_IDLE_TIME", 5*time.Minute),
	}
}

// loadCacheConfig loads cache configuration from environment
func loadCacheConfig() CacheConfig {
	return CacheConfig{
		Backend:          strings.ToLower(getEnv("GATEHOUSE_CACHE_BACKEND", "memory")),
		TTL:              getEnvDuration("GATEHOUSE_CACHE_TTL", time.Hour),
		RedisURL:         getEnv("GATEHOUSE_REDIS_URL", ""),
		RedisPassword:    getEnv("GATEHOUSE_REDIS_PASSWORD", ""),
		RedisDB:          getEnvInt("GATEHOUSE_REDIS_DB", 0),
		RedisPoolSize:    getEnvInt("GATEHOUSE_REDIS_POOL_SIZE", 10),
		RedisMaxRetries:  getEnvInt("GATEHOUSE_REDIS_MAX_RETRIES", 3),
		MemoryMaxEntries: getEnvInt("GATEHOUSE_MEMORY_CACHE_MAX_ENTRIES", 10000),
	}
}

// loadMaintenanceConfig loads maintenance configuration from environment
func loadMaintenanceConfig() MaintenanceConfig {
	return MaintenanceConfig{
		PruneSchedule: getEnv("GATEHOUSE_PRUNE_SCHEDULE", "0 3 * * *"),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       observability.ParseLevel(getEnv("GATEHOUSE_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("GATEHOUSE_METRICS_ENABLED", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	// Validate database config
	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("postgres min connections (%d) exceeds max connections (%d)",
			c.Database.MinConns, c.Database.MaxConns)
	}

	// Validate cache config
	switch c.Cache.Backend {
	case "memory":
		if c.Cache.MemoryMaxEntries <= 0 {
			return fmt.Errorf("memory cache max entries must be positive")
		}
	case "redis":
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("redis URL is required for redis cache backend")
		}
	default:
		return fmt.Errorf("invalid cache backend: %s (must be memory or redis)", c.Cache.Backend)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache TTL must be positive")
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
