// Package config loads runtime configuration from environment variables,
// optionally seeded from a YAML file. Environment variables always win over
// file values. Missing storage credentials are a fatal startup error.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gatehouse-auth/gatehouse/pkg/observability"
)

// BackendPostgres and BackendSQLite are the storage backend discriminators.
const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Storage       StorageConfig       `yaml:"storage"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds the health/metrics listener configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StorageConfig selects and parameterizes the storage backend
type StorageConfig struct {
	// Backend is "postgres" or "sqlite"
	Backend string `yaml:"backend"`

	// Postgres principals: the root URL connects as an unrestricted user,
	// the app URL as the row-security-restricted user.
	PostgresRootURL string `yaml:"postgres_root_url"`
	PostgresAppURL  string `yaml:"postgres_app_url"`
	// PostgresAppRole is the database role name the restricted principal
	// connects as; migrations grant table access to it.
	PostgresAppRole string `yaml:"postgres_app_role"`

	PostgresMaxConns    int           `yaml:"postgres_max_conns"`
	PostgresMinConns    int           `yaml:"postgres_min_conns"`
	PostgresTimeout     time.Duration `yaml:"postgres_timeout"`
	PostgresMaxLifetime time.Duration `yaml:"postgres_max_lifetime"`
	PostgresMaxIdleTime time.Duration `yaml:"postgres_max_idle_time"`

	// SQLitePath is the database file path, or ":memory:".
	SQLitePath string `yaml:"sqlite_path"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`
}

// LoadConfig loads configuration. When GATEHOUSE_CONFIG_FILE points at a
// YAML file its values seed the defaults; environment variables override
// both.
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()

	if path := getEnv("GATEHOUSE_CONFIG_FILE", ""); path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	loadEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "9090",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Storage: StorageConfig{
			Backend:             BackendSQLite,
			PostgresAppRole:     "gatehouse_app",
			PostgresMaxConns:    25,
			PostgresMinConns:    5,
			PostgresTimeout:     30 * time.Second,
			PostgresMaxLifetime: 5 * time.Minute,
			PostgresMaxIdleTime: 5 * time.Minute,
			SQLitePath:          "gatehouse.db",
		},
		Observability: ObservabilityConfig{
			LogLevel:       "info",
			MetricsEnabled: true,
		},
	}
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func loadEnv(cfg *Config) {
	cfg.Server.Host = getEnv("GATEHOUSE_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnv("GATEHOUSE_PORT", cfg.Server.Port)
	cfg.Server.ReadTimeout = getEnvDuration("GATEHOUSE_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = getEnvDuration("GATEHOUSE_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.ShutdownTimeout = getEnvDuration("GATEHOUSE_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)

	cfg.Storage.Backend = getEnv("GATEHOUSE_STORAGE_BACKEND", cfg.Storage.Backend)
	cfg.Storage.PostgresRootURL = getEnv("GATEHOUSE_POSTGRES_ROOT_URL", cfg.Storage.PostgresRootURL)
	cfg.Storage.PostgresAppURL = getEnv("GATEHOUSE_POSTGRES_APP_URL", cfg.Storage.PostgresAppURL)
	cfg.Storage.PostgresAppRole = getEnv("GATEHOUSE_POSTGRES_APP_ROLE", cfg.Storage.PostgresAppRole)
	cfg.Storage.PostgresMaxConns = getEnvInt("GATEHOUSE_POSTGRES_MAX_CONNS", cfg.Storage.PostgresMaxConns)
	cfg.Storage.PostgresMinConns = getEnvInt("GATEHOUSE_POSTGRES_MIN_CONNS", cfg.Storage.PostgresMinConns)
	cfg.Storage.PostgresTimeout = getEnvDuration("GATEHOUSE_POSTGRES_TIMEOUT", cfg.Storage.PostgresTimeout)
	cfg.Storage.PostgresMaxLifetime = getEnvDuration("GATEHOUSE_POSTGRES_MAX_LIFETIME", cfg.Storage.PostgresMaxLifetime)
	cfg.Storage.PostgresMaxIdleTime = getEnvDuration("GATEHOUSE_POSTGRES_MAX_IDLE_TIME", cfg.Storage.PostgresMaxIdleTime)
	cfg.Storage.SQLitePath = getEnv("GATEHOUSE_SQLITE_PATH", cfg.Storage.SQLitePath)

	cfg.Observability.LogLevel = getEnv("GATEHOUSE_LOG_LEVEL", cfg.Observability.LogLevel)
	cfg.Observability.MetricsEnabled = getEnvBool("GATEHOUSE_METRICS_ENABLED", cfg.Observability.MetricsEnabled)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	switch c.Storage.Backend {
	case BackendPostgres:
		if c.Storage.PostgresRootURL == "" {
			return fmt.Errorf("postgres root URL is required for postgres storage")
		}
		if c.Storage.PostgresAppURL == "" {
			return fmt.Errorf("postgres app URL is required for postgres storage")
		}
		if c.Storage.PostgresAppRole == "" {
			return fmt.Errorf("postgres app role is required for postgres storage")
		}
	case BackendSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required for sqlite storage")
		}
	default:
		return fmt.Errorf("invalid storage backend: %s (must be postgres or sqlite)", c.Storage.Backend)
	}

	return nil
}

// LogLevel parses the configured log level.
func (c *Config) LogLevel() observability.LogLevel {
	return observability.ParseLogLevel(strings.ToLower(c.Observability.LogLevel))
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
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
