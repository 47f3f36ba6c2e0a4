package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LogConfig       `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	CORS      CORSConfig      `yaml:"cors"`
	Terminal  TerminalConfig  `yaml:"terminal"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" yaml:"port"`
	Host            string        `envconfig:"HOST" yaml:"host"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" yaml:"shutdown_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" yaml:"level"`
	Development bool   `envconfig:"LOG_DEV" yaml:"development"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" yaml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" yaml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" yaml:"enabled"`
}

// CORSConfig holds the allowed browser origins.
type CORSConfig struct {
	Origins []string `envconfig:"CORS_ORIGINS" yaml:"origins"`
}

// TerminalConfig holds session manager limits.
type TerminalConfig struct {
	// MaxSessions caps concurrently registered sessions; 0 means unlimited.
	MaxSessions int `envconfig:"TERMINAL_MAX_SESSIONS" yaml:"max_sessions"`
	// BreakerFailures is the consecutive spawn failures that open the spawn breaker.
	BreakerFailures int `envconfig:"TERMINAL_BREAKER_FAILURES" yaml:"breaker_failures"`
	// BreakerCooldown is how long the spawn breaker stays open.
	BreakerCooldown time.Duration `envconfig:"TERMINAL_BREAKER_TIMEOUT" yaml:"breaker_cooldown"`
}

// Load builds the configuration from defaults, the optional YAML file named by
// CONFIG_FILE, and finally environment variables.
func Load() (*Config, error) {
	return LoadFile(os.Getenv("CONFIG_FILE"))
}

// LoadFile is Load with an explicit YAML path. An empty path skips the file layer.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads configuration or returns defaults when loading fails.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Port) == "" {
		return fmt.Errorf("invalid config: server port is empty")
	}
	if c.Terminal.MaxSessions < 0 {
		return fmt.Errorf("invalid config: terminal max sessions %d is negative", c.Terminal.MaxSessions)
	}
	if c.Terminal.BreakerFailures < 1 {
		return fmt.Errorf("invalid config: terminal breaker failures must be at least 1")
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("invalid config: rate limit needs positive rps and burst")
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8000",
			Host:            "127.0.0.1",
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LogConfig{
			Level: "info",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		CORS: CORSConfig{
			Origins: []string{"http://localhost:1420", "tauri://localhost"},
		},
		Terminal: TerminalConfig{
			MaxSessions:     64,
			BreakerFailures: 5,
			BreakerCooldown: 30 * time.Second,
		},
	}
}
