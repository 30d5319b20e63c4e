package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.HTTPPort)
	assert.Equal(t, BackendMemory, cfg.SessionBackend)
	assert.Equal(t, 120*time.Second, cfg.AgentTimeout())
	assert.Equal(t, time.Minute, cfg.LLMTimeout())
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "swarm.yaml")
	content := `
http_port: 9000
session_backend: sqlite
database_driver: sqlite
llm:
  model: local-model
  max_turns: 4
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("HTTP_PORT", "9100")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("SWARM_MODE", "MOCK")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.HTTPPort)
	assert.Equal(t, BackendSQLite, cfg.SessionBackend)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, "local-model", cfg.LLM.Model)
	assert.Equal(t, 4, cfg.LLM.MaxTurns)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, ModeMock, cfg.LLM.Mode)
	// untouched defaults survive a partial file
	assert.Equal(t, 60000, cfg.LLM.TimeoutMS)
}

func TestLoadPrefersExplicitEnvNames(t *testing.T) {
	t.Setenv("DATABASE_URL", "file:a.db")
	t.Setenv("SWARM_DB_CONNECTION", "file:b.db")
	t.Setenv("LLM_API_KEY", "primary")
	t.Setenv("OPENAI_API_KEY", "fallback")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "file:b.db", cfg.DatabaseURL)
	assert.Equal(t, "primary", cfg.LLM.APIKey)
}

func TestLoadIgnoresMalformedInts(t *testing.T) {
	t.Setenv("AGENT_TIMEOUT_MS", "soon")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 120000, cfg.AgentTimeoutMS)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.HTTPPort = 0 }},
		{"driver", func(c *Config) { c.DatabaseDriver = "postgres" }},
		{"dsn", func(c *Config) { c.DatabaseURL = "" }},
		{"backend", func(c *Config) { c.SessionBackend = "redis" }},
		{"agent timeout", func(c *Config) { c.AgentTimeoutMS = -1 }},
		{"llm timeout", func(c *Config) { c.LLM.TimeoutMS = 0 }},
		{"max turns", func(c *Config) { c.LLM.MaxTurns = 0 }},
		{"mode", func(c *Config) { c.LLM.Mode = "FAKE" }},
		{"log level", func(c *Config) { c.LogLevel = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, Default().Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
