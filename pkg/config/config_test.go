package config

import (
	"testing"
	"time"

	"github.com/gatehouse/gatehouse/pkg/observability"
)

// TestGetEnv tests the getEnv helper function
func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{
			name:         "returns env value when set",
			key:          "TEST_VAR",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
		},
		{
			name:         "returns default when env not set",
			key:          "TEST_VAR_NOT_SET",
			defaultValue: "default",
			envValue:     "",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv(tt.key, tt.envValue)
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestGetEnvBool tests the getEnvBool helper function
func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue bool
		want         bool
	}{
		{name: "true string", envValue: "true", defaultValue: false, want: true},
		{name: "TRUE string", envValue: "TRUE", defaultValue: false, want: true},
		{name: "one string", envValue: "1", defaultValue: false, want: true},
		{name: "false string", envValue: "false", defaultValue: true, want: false},
		{name: "unset uses default", envValue: "", defaultValue: true, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv("TEST_BOOL_VAR", tt.envValue)
			}

			got := getEnvBool("TEST_BOOL_VAR", tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvBool() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestGetEnvDuration tests the getEnvDuration helper function
func TestGetEnvDuration(t *testing.T) {
	t.Setenv("TEST_DURATION_VAR", "90s")
	if got := getEnvDuration("TEST_DURATION_VAR", time.Second); got != 90*time.Second {
		t.Errorf("getEnvDuration() = %v, want 90s", got)
	}

	t.Setenv("TEST_DURATION_VAR", "not-a-duration")
	if got := getEnvDuration("TEST_DURATION_VAR", time.Second); got != time.Second {
		t.Errorf("getEnvDuration() with invalid value = %v, want default 1s", got)
	}
}

// TestLoadConfigDefaults tests loading with only the required variables set
func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("GATEHOUSE_POSTGRES_URL", "postgres://localhost/gatehouse")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.HealthPort != "9090" {
		t.Errorf("Expected default health port 9090, got %s", cfg.Server.HealthPort)
	}
	if cfg.Cache.Backend != "memory" {
		t.Errorf("Expected default cache backend memory, got %s", cfg.Cache.Backend)
	}
	if cfg.Cache.TTL != time.Hour {
		t.Errorf("Expected default cache TTL 1h, got %v", cfg.Cache.TTL)
	}
	if cfg.Database.MaxConns != 25 {
		t.Errorf("Expected default max conns 25, got %d", cfg.Database.MaxConns)
	}
	if cfg.Observability.LogLevel != observability.InfoLevel {
		t.Errorf("Expected default log level info, got %v", cfg.Observability.LogLevel)
	}
	if cfg.Maintenance.PruneSchedule == "" {
		t.Error("Expected a default prune schedule")
	}
}

// TestLoadConfigOverrides tests environment overrides
func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("GATEHOUSE_POSTGRES_URL", "postgres://primary/gatehouse")
	t.Setenv("GATEHOUSE_POSTGRES_REPLICA_URLS", "postgres://replica1/gatehouse,postgres://replica2/gatehouse")
	t.Setenv("GATEHOUSE_CACHE_BACKEND", "redis")
	t.Setenv("GATEHOUSE_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("GATEHOUSE_CACHE_TTL", "30m")
	t.Setenv("GATEHOUSE_LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if cfg.Cache.Backend != "redis" {
		t.Errorf("Expected cache backend redis, got %s", cfg.Cache.Backend)
	}
	if cfg.Cache.TTL != 30*time.Minute {
		t.Errorf("Expected cache TTL 30m, got %v", cfg.Cache.TTL)
	}
	if cfg.Database.ReplicaURLs == "" {
		t.Error("Expected replica URLs to be set")
	}
	if cfg.Observability.LogLevel != observability.DebugLevel {
		t.Errorf("Expected debug log level, got %v", cfg.Observability.LogLevel)
	}
}

// TestValidate tests configuration validation rules
func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server: ServerConfig{Port: "8080", HealthPort: "9090"},
			Database: DatabaseConfig{
				URL:      "postgres://localhost/gatehouse",
				MaxConns: 25,
				MinConns: 5,
			},
			Cache: CacheConfig{
				Backend:          "memory",
				TTL:              time.Hour,
				MemoryMaxEntries: 1000,
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(c *Config) {}, wantErr: false},
		{name: "missing port", mutate: func(c *Config) { c.Server.Port = "" }, wantErr: true},
		{name: "same port and health port", mutate: func(c *Config) { c.Server.HealthPort = "8080" }, wantErr: true},
		{name: "missing postgres URL", mutate: func(c *Config) { c.Database.URL = "" }, wantErr: true},
		{name: "min conns above max", mutate: func(c *Config) { c.Database.MinConns = 100 }, wantErr: true},
		{name: "unknown cache backend", mutate: func(c *Config) { c.Cache.Backend = "memcached" }, wantErr: true},
		{name: "redis backend without URL", mutate: func(c *Config) { c.Cache.Backend = "redis" }, wantErr: true},
		{name: "zero TTL", mutate: func(c *Config) { c.Cache.TTL = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
