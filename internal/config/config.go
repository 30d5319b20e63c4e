// Package config provides configuration for the swarm API.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"

	ModeMock = "MOCK"
)

// Config holds the service configuration. Values come from an optional YAML
// file and are overridden by environment variables.
type Config struct {
	// Server settings
	HTTPPort int `yaml:"http_port"`

	// Database
	DatabaseDriver string `yaml:"database_driver"`
	DatabaseURL    string `yaml:"database_url"`
	SessionBackend string `yaml:"session_backend"`

	// Agents
	AgentsFile     string `yaml:"agents_file"`
	PolicyFile     string `yaml:"policy_file"`
	AgentTimeoutMS int    `yaml:"agent_timeout_ms"`

	LLM LLMConfig `yaml:"llm"`

	// Logging
	LogLevel string `yaml:"log_level"`
}

// LLMConfig configures the model client.
type LLMConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	TimeoutMS int    `yaml:"timeout_ms"`
	MaxTurns  int    `yaml:"max_turns"`
	// Mode MOCK swaps the model for a deterministic keyword router.
	Mode string `yaml:"mode"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		HTTPPort:       7000,
		DatabaseDriver: "sqlite3",
		DatabaseURL:    "swarm.db",
		SessionBackend: BackendMemory,
		AgentTimeoutMS: 120000,
		LLM: LLMConfig{
			BaseURL:   "https://api.openai.com",
			Model:     "gpt-4o",
			TimeoutMS: 60000,
			MaxTurns:  10,
		},
		LogLevel: "info",
	}
}

// Load reads path (if non-empty), then applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.HTTPPort = getEnvInt("HTTP_PORT", c.HTTPPort)
	c.DatabaseDriver = getEnv("DATABASE_DRIVER", c.DatabaseDriver)
	c.DatabaseURL = getEnv("SWARM_DB_CONNECTION", getEnv("DATABASE_URL", c.DatabaseURL))
	c.SessionBackend = getEnv("SESSION_BACKEND", c.SessionBackend)
	c.AgentsFile = getEnv("AGENTS_FILE", c.AgentsFile)
	c.PolicyFile = getEnv("POLICY_FILE", c.PolicyFile)
	c.AgentTimeoutMS = getEnvInt("AGENT_TIMEOUT_MS", c.AgentTimeoutMS)

	c.LLM.BaseURL = getEnv("LLM_BASE_URL", c.LLM.BaseURL)
	c.LLM.APIKey = getEnv("LLM_API_KEY", getEnv("OPENAI_API_KEY", c.LLM.APIKey))
	c.LLM.Model = getEnv("LLM_MODEL", c.LLM.Model)
	c.LLM.TimeoutMS = getEnvInt("LLM_TIMEOUT_MS", c.LLM.TimeoutMS)
	c.LLM.MaxTurns = getEnvInt("LLM_MAX_TURNS", c.LLM.MaxTurns)
	c.LLM.Mode = getEnv("SWARM_MODE", c.LLM.Mode)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid http_port %d", c.HTTPPort))
	}
	switch c.DatabaseDriver {
	case "sqlite3", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unsupported database_driver %q", c.DatabaseDriver))
	}
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("database_url is required"))
	}
	switch c.SessionBackend {
	case BackendMemory, BackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("unsupported session_backend %q", c.SessionBackend))
	}
	if c.AgentTimeoutMS <= 0 {
		errs = append(errs, fmt.Errorf("agent_timeout_ms must be positive, got %d", c.AgentTimeoutMS))
	}
	if c.LLM.TimeoutMS <= 0 {
		errs = append(errs, fmt.Errorf("llm.timeout_ms must be positive, got %d", c.LLM.TimeoutMS))
	}
	if c.LLM.MaxTurns <= 0 {
		errs = append(errs, fmt.Errorf("llm.max_turns must be positive, got %d", c.LLM.MaxTurns))
	}
	if c.LLM.Mode != "" && c.LLM.Mode != ModeMock {
		errs = append(errs, fmt.Errorf("unsupported swarm mode %q", c.LLM.Mode))
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("invalid log_level: %w", err))
	}
	return errors.Join(errs...)
}

// AgentTimeout bounds one agent invocation.
func (c *Config) AgentTimeout() time.Duration {
	return time.Duration(c.AgentTimeoutMS) * time.Millisecond
}

// LLMTimeout bounds one HTTP call to the model.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutMS) * time.Millisecond
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
