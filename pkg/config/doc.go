// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings.
//
// # Configuration Structure
//
// Server settings:
//
//	GATEHOUSE_HOST="0.0.0.0"
//	GATEHOUSE_PORT="8080"
//	GATEHOUSE_HEALTH_PORT="9090"
//	GATEHOUSE_READ_TIMEOUT="15s"
//	GATEHOUSE_WRITE_TIMEOUT="15s"
//
// Database settings:
//
//	GATEHOUSE_POSTGRES_URL="postgres://localhost/gatehouse"
//	GATEHOUSE_POSTGRES_REPLICA_URLS="postgres://replica1/gatehouse,postgres://replica2/gatehouse"
//	GATEHOUSE_POSTGRES_MAX_CONNS="25"
//
// Cache settings:
//
//	GATEHOUSE_CACHE_BACKEND="redis"  # redis, memory
//	GATEHOUSE_CACHE_TTL="1h"
//	GATEHOUSE_REDIS_URL="redis://localhost:6379"
//	GATEHOUSE_REDIS_POOL_SIZE="10"
//
// Maintenance settings:
//
//	GATEHOUSE_PRUNE_SCHEDULE="0 3 * * *"  # cron expression, empty disables
//
// Observability settings:
//
//	GATEHOUSE_LOG_LEVEL="info"  # debug, info, warn, error
//	GATEHOUSE_METRICS_ENABLED="true"
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Server: %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//	fmt.Printf("Cache backend: %s\n", cfg.Cache.Backend)
//
// # Related Packages
//
//   - pkg/cache: Uses cache configuration
//   - pkg/observability: Uses observability configuration
package config
