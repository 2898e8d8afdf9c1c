// Package config provides configuration structures for the relay CLI.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend names accepted by Config.Backend.
const (
	BackendDuckDB    = "duckdb"
	BackendSQLite    = "sqlite"
	BackendFlightSQL = "flightsql"
)

// Config represents the CLI configuration.
type Config struct {
	// Backend selection
	Backend string `yaml:"backend" json:"backend"`
	DSN     string `yaml:"dsn" json:"dsn"`
	Address string `yaml:"address" json:"address"`
	Dialect string `yaml:"dialect" json:"dialect"`
	Token   string `yaml:"token" json:"token"`

	// JWT signing for the Flight SQL backend
	JWT JWTConfig `yaml:"jwt" json:"jwt"`

	LogLevel        string        `yaml:"log_level" json:"log_level"`
	DefaultLimit    int64         `yaml:"default_limit" json:"default_limit"`
	QueryTimeout    time.Duration `yaml:"query_timeout" json:"query_timeout"`
	SchemaCacheSize int           `yaml:"schema_cache_size" json:"schema_cache_size"`

	// Metrics configuration
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// MetricsConfig represents metrics configuration.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Address string `yaml:"address" json:"address"`
}

// JWTConfig represents HS256 token signing configuration.
type JWTConfig struct {
	Secret   string        `yaml:"secret" json:"secret"`
	Issuer   string        `yaml:"issuer" json:"issuer"`
	Audience string        `yaml:"audience" json:"audience"`
	Subject  string        `yaml:"subject" json:"subject"`
	TTL      time.Duration `yaml:"ttl" json:"ttl"`
}

// Validate validates the configuration and fills unset values.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendDuckDB, BackendSQLite:
		if c.DSN == "" {
			c.DSN = ":memory:"
		}
	case BackendFlightSQL:
		if c.Address == "" {
			return fmt.Errorf("address is required for the %s backend", BackendFlightSQL)
		}
	case "":
		return fmt.Errorf("backend is required")
	default:
		return fmt.Errorf("unsupported backend: %s", c.Backend)
	}

	if c.Token != "" && c.JWT.Secret != "" {
		return fmt.Errorf("token and jwt secret are mutually exclusive")
	}
	if c.JWT.Secret != "" && c.JWT.TTL <= 0 {
		c.JWT.TTL = time.Hour
	}

	if c.DefaultLimit < 0 {
		return fmt.Errorf("default limit must not be negative: %d", c.DefaultLimit)
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	if c.QueryTimeout <= 0 {
		c.QueryTimeout = 5 * time.Minute
	}

	if c.SchemaCacheSize <= 0 {
		c.SchemaCacheSize = 256
	}

	if c.Metrics.Enabled && c.Metrics.Address == "" {
		c.Metrics.Address = ":9090"
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file. Keys missing from the
// file keep their DefaultConfig values.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		Backend:         BackendDuckDB,
		DSN:             ":memory:",
		LogLevel:        "info",
		DefaultLimit:    10000,
		QueryTimeout:    5 * time.Minute,
		SchemaCacheSize: 256,
		Metrics: MetricsConfig{
			Enabled: false,
			Address: ":9090",
		},
	}
}
