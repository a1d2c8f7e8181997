package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse-auth/gatehouse/pkg/observability"
)

func TestDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, BackendSQLite, cfg.Storage.Backend)
	assert.Equal(t, "gatehouse.db", cfg.Storage.SQLitePath)
	assert.Equal(t, "info", cfg.Observability.LogLevel)
	assert.True(t, cfg.Observability.MetricsEnabled)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GATEHOUSE_PORT", "8081")
	t.Setenv("GATEHOUSE_STORAGE_BACKEND", "postgres")
	t.Setenv("GATEHOUSE_POSTGRES_ROOT_URL", "postgres://root@localhost/gatehouse")
	t.Setenv("GATEHOUSE_POSTGRES_APP_URL", "postgres://app@localhost/gatehouse")
	t.Setenv("GATEHOUSE_POSTGRES_MAX_CONNS", "50")
	t.Setenv("GATEHOUSE_POSTGRES_TIMEOUT", "5s")
	t.Setenv("GATEHOUSE_METRICS_ENABLED", "false")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8081", cfg.Server.Port)
	assert.Equal(t, BackendPostgres, cfg.Storage.Backend)
	assert.Equal(t, 50, cfg.Storage.PostgresMaxConns)
	assert.Equal(t, 5*time.Second, cfg.Storage.PostgresTimeout)
	assert.False(t, cfg.Observability.MetricsEnabled)
}

func TestFileSeedsEnvWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gatehouse.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "7000"
storage:
  backend: sqlite
  sqlite_path: /var/lib/gatehouse/auth.db
observability:
  log_level: debug
`), 0o600))

	t.Setenv("GATEHOUSE_CONFIG_FILE", path)
	t.Setenv("GATEHOUSE_PORT", "7001")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "7001", cfg.Server.Port, "environment overrides the file")
	assert.Equal(t, "/var/lib/gatehouse/auth.db", cfg.Storage.SQLitePath)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
	assert.Equal(t, observability.DebugLevel, cfg.LogLevel())
}

func TestMissingConfigFile(t *testing.T) {
	t.Setenv("GATEHOUSE_CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Storage.Backend = "mysql" },
			wantErr: "invalid storage backend",
		},
		{
			name: "postgres without root URL",
			mutate: func(c *Config) {
				c.Storage.Backend = BackendPostgres
				c.Storage.PostgresAppURL = "postgres://app@localhost/gatehouse"
			},
			wantErr: "postgres root URL is required",
		},
		{
			name: "postgres without app URL",
			mutate: func(c *Config) {
				c.Storage.Backend = BackendPostgres
				c.Storage.PostgresRootURL = "postgres://root@localhost/gatehouse"
			},
			wantErr: "postgres app URL is required",
		},
		{
			name:    "sqlite without path",
			mutate:  func(c *Config) { c.Storage.SQLitePath = "" },
			wantErr: "sqlite path is required",
		},
		{
			name:    "missing port",
			mutate:  func(c *Config) { c.Server.Port = "" },
			wantErr: "server port is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
