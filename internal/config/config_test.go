package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFrom_DefaultsAndEnv(t *testing.T) {
	t.Setenv("GARDEN_BACKEND__URL", "http://backend:8080")
	t.Setenv("GARDEN_BACKEND__RATE_LIMIT", "2.5")
	t.Setenv("GARDEN_BACKEND__CACHE_TTL", "30s")
	t.Setenv("GARDEN_LOG__LEVEL", "debug")

	cfg, err := LoadFrom("")
	require.NoError(t, err)

	assert.Equal(t, SourceAPI, cfg.Source)
	assert.Equal(t, "http://backend:8080", cfg.Backend.URL)
	assert.InDelta(t, 2.5, cfg.Backend.RateLimit, 0.0001)
	assert.Equal(t, 30*time.Second, cfg.Backend.CacheTTL)
	assert.Equal(t, "debug", cfg.Log.Level)

	// untouched defaults survive
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 10*time.Second, cfg.Backend.Timeout)
}

func TestLoadFrom_FileThenEnv(t *testing.T) {
	path := writeConfig(t, `
source: postgres
server:
  port: "8181"
  request_timeout: 5s
database:
  url: postgres://garden:garden@db:5432/garden
  max_open_conns: 3
log:
  format: text
cors:
  allowed_origins:
    - https://status.example.com
`)
	t.Setenv("GARDEN_SERVER__PORT", "8282")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, SourcePostgres, cfg.Source)
	assert.Equal(t, "8282", cfg.Server.Port, "env overrides file")
	assert.Equal(t, 5*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, 3, cfg.Database.MaxOpenConns)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, []string{"https://status.example.com"}, cfg.CORS.AllowedOrigins)
}

func TestLoadFrom_MissingFile(t *testing.T) {
	_, err := LoadFrom(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "load config file")
}

func TestLoadFrom_InvalidConfig(t *testing.T) {
	_, err := LoadFrom("")
	assert.ErrorContains(t, err, "backend.url is required")
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "backend.rate_limit", envKey("GARDEN_BACKEND__RATE_LIMIT"))
	assert.Equal(t, "source", envKey("GARDEN_SOURCE"))
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := Default()
		cfg.Backend.URL = "https://backend.example.com"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid api source", func(*Config) {}, ""},
		{"valid postgres source", func(c *Config) {
			c.Source = SourcePostgres
			c.Backend.URL = ""
			c.Database.URL = "postgres://localhost/garden"
		}, ""},
		{"unknown source", func(c *Config) { c.Source = "redis" }, "source must be"},
		{"postgres without url", func(c *Config) { c.Source = SourcePostgres }, "database.url is required"},
		{"relative backend url", func(c *Config) { c.Backend.URL = "backend:8080" }, "absolute http(s) url"},
		{"negative rate", func(c *Config) { c.Backend.RateLimit = -1 }, "rate_limit"},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }, "log.level"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"no port", func(c *Config) { c.Server.Port = "" }, "server.port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestReadFrom_SkipsValidation(t *testing.T) {
	t.Setenv("GARDEN_BACKEND__URL", "")
	t.Setenv("GARDEN_BACKEND__TOKEN", "operator-token")

	_, err := LoadFrom("")
	require.Error(t, err, "api source without backend url is not a runnable service")

	cfg, err := ReadFrom("")
	require.NoError(t, err)
	assert.Equal(t, "operator-token", cfg.Backend.Token)
	assert.Empty(t, cfg.Backend.URL)
	assert.Equal(t, 10*time.Second, cfg.Backend.Timeout)
}

func TestRead_UsesConfigPath(t *testing.T) {
	path := writeConfig(t, `
backend:
  url: http://backend.internal:8080
  rate_limit: 1
`)
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("GARDEN_BACKEND__URL", "")

	cfg, err := Read()
	require.NoError(t, err)
	assert.Equal(t, "http://backend.internal:8080", cfg.Backend.URL)
	assert.InDelta(t, 1.0, cfg.Backend.RateLimit, 0.0001)
}

func TestBackendConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		backend BackendConfig
		wantErr bool
	}{
		{name: "defaults", backend: Default().Backend},
		{name: "https url", backend: BackendConfig{URL: "https://status.example.com"}},
		{name: "relative url", backend: BackendConfig{URL: "backend:8080"}, wantErr: true},
		{name: "negative rate limit", backend: BackendConfig{RateLimit: -1}, wantErr: true},
		{name: "negative timeout", backend: BackendConfig{Timeout: -time.Second}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.backend.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
