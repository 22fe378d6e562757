// Package config provides configuration management for contactgraph.
// It loads settings from environment variables with the CONTACTGRAPH_ prefix,
// provides sensible defaults for all configuration options, and optionally
// overlays a YAML policy file for the graph and phone normalization policy.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/scrypster/contactgraph/internal/graph"
	"github.com/scrypster/contactgraph/internal/normalize"
)

// Config holds all configuration settings for contactgraph.
type Config struct {
	Storage StorageConfig
	Graph   GraphConfig
	Phone   normalize.PhoneOptions
	Logging LoggingConfig
}

// StorageConfig contains snapshot storage configuration.
type StorageConfig struct {
	StorageEngine string // Storage engine type: sqlite, postgres, none (default: sqlite)
	DataPath      string // Path to data directory (default: ./data)
	PostgresDSN   string // PostgreSQL connection string, required for postgres
}

// GraphConfig contains the edge scoring policy.
type GraphConfig struct {
	HalfLife      time.Duration // Recency half-life (default: 180d)
	ReferenceTime time.Time     // Decay reference; zero means the newest interaction timestamp
	FixedTime     bool          // True when ReferenceTime was configured explicitly
}

// LoggingConfig contains logger settings.
type LoggingConfig struct {
	Level  string // debug, info, warn, error (default: info)
	Format string // json, console (default: console)
}

// Storage engines
const (
	EngineSQLite   = "sqlite"
	EnginePostgres = "postgres"
	EngineNone     = "none"
)

// LoadConfig loads configuration from environment variables with sensible
// defaults. If CONTACTGRAPH_POLICY_FILE is set the policy file is applied.
func LoadConfig() (*Config, error) {
	return Load("")
}

// Load loads configuration from the environment and then applies the policy
// file at policyPath, falling back to CONTACTGRAPH_POLICY_FILE when
// policyPath is empty.
func Load(policyPath string) (*Config, error) {
	cfg, err := buildBaseConfig()
	if err != nil {
		return nil, err
	}

	if policyPath == "" {
		policyPath = getEnv("CONTACTGRAPH_POLICY_FILE", "")
	}
	if policyPath != "" {
		if err := cfg.ApplyPolicyFile(policyPath); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Storage.StorageEngine {
	case EngineSQLite, EngineNone:
	case EnginePostgres:
		if c.Storage.PostgresDSN == "" {
			return errors.New("config: postgres storage requires CONTACTGRAPH_POSTGRES_DSN")
		}
	default:
		return fmt.Errorf("config: unknown storage engine %q", c.Storage.StorageEngine)
	}
	if c.Graph.HalfLife < 0 {
		return fmt.Errorf("config: negative half-life %s", c.Graph.HalfLife)
	}
	return nil
}

// DBPath returns the SQLite database file inside the data directory.
func (c *Config) DBPath() string {
	return filepath.Join(c.Storage.DataPath, "contactgraph.db")
}

// Normalizer returns the handle normalizer for the configured phone policy.
func (c *Config) Normalizer() normalize.Normalizer {
	return normalize.New(c.Phone)
}

// GraphPolicy returns the scoring policy. Without a fixed reference time,
// latest (the newest interaction in the input) is used as "now", so
// unchanged input always scores the same.
func (c *Config) GraphPolicy(latest time.Time) graph.Policy {
	ref := latest
	if c.Graph.FixedTime {
		ref = c.Graph.ReferenceTime
	}
	return graph.Policy{HalfLife: c.Graph.HalfLife, Now: ref}
}

// policyFile is the YAML layout of a policy file. Every section is optional.
type policyFile struct {
	Graph *struct {
		HalfLife      string `yaml:"half_life"`
		ReferenceTime string `yaml:"reference_time"`
	} `yaml:"graph"`
	Phone *normalize.PhoneOptions `yaml:"phone"`
}

// ApplyPolicyFile overlays the YAML policy file at path. A phone section
// replaces the phone policy as a whole.
func (c *Config) ApplyPolicyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: failed to read policy file: %w", err)
	}

	var pf policyFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&pf); err != nil {
		return fmt.Errorf("config: failed to parse policy file %s: %w", path, err)
	}

	if pf.Graph != nil {
		if pf.Graph.HalfLife != "" {
			hl, err := ParseHalfLife(pf.Graph.HalfLife)
			if err != nil {
				return fmt.Errorf("config: policy file %s: %w", path, err)
			}
			c.Graph.HalfLife = hl
		}
		if pf.Graph.ReferenceTime != "" {
			ref, err := time.Parse(time.RFC3339, pf.Graph.ReferenceTime)
			if err != nil {
				return fmt.Errorf("config: policy file %s: invalid reference_time: %w", path, err)
			}
			c.Graph.ReferenceTime = ref.UTC()
			c.Graph.FixedTime = true
		}
	}
	if pf.Phone != nil {
		c.Phone = *pf.Phone
	}
	return nil
}

// ParseHalfLife parses a Go duration, additionally accepting a whole number
// of days with a "d" suffix ("180d"). "0" disables decay.
func ParseHalfLife(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid half-life %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid half-life %q: %w", s, err)
	}
	return d, nil
}

// buildBaseConfig constructs a Config with values from environment variables
// and defaults.
func buildBaseConfig() (*Config, error) {
	cfg := &Config{
		Storage: StorageConfig{
			StorageEngine: strings.ToLower(getEnv("CONTACTGRAPH_STORAGE_ENGINE", EngineSQLite)),
			DataPath:      getEnv("CONTACTGRAPH_DATA_PATH", "./data"),
			PostgresDSN:   getEnv("CONTACTGRAPH_POSTGRES_DSN", ""),
		},
		Graph: GraphConfig{
			HalfLife: graph.DefaultHalfLife,
		},
		Phone: normalize.PhoneOptions{
			DefaultCountryCode:   getEnv("CONTACTGRAPH_DEFAULT_COUNTRY_CODE", normalize.DefaultPhoneOptions.DefaultCountryCode),
			InternationalPrefix:  getEnv("CONTACTGRAPH_INTERNATIONAL_PREFIX", normalize.DefaultPhoneOptions.InternationalPrefix),
			TrunkPrefix:          getEnv("CONTACTGRAPH_TRUNK_PREFIX", normalize.DefaultPhoneOptions.TrunkPrefix),
			NationalNumberLength: getEnvInt("CONTACTGRAPH_NATIONAL_NUMBER_LENGTH", normalize.DefaultPhoneOptions.NationalNumberLength),
		},
		Logging: LoggingConfig{
			Level:  getEnv("CONTACTGRAPH_LOG_LEVEL", "info"),
			Format: getEnv("CONTACTGRAPH_LOG_FORMAT", "console"),
		},
	}

	if v := getEnv("CONTACTGRAPH_HALF_LIFE", ""); v != "" {
		hl, err := ParseHalfLife(v)
		if err != nil {
			return nil, fmt.Errorf("config: CONTACTGRAPH_HALF_LIFE: %w", err)
		}
		cfg.Graph.HalfLife = hl
	}
	if v := getEnv("CONTACTGRAPH_REFERENCE_TIME", ""); v != "" {
		ref, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, fmt.Errorf("config: CONTACTGRAPH_REFERENCE_TIME: %w", err)
		}
		cfg.Graph.ReferenceTime = ref.UTC()
		cfg.Graph.FixedTime = true
	}
	if getEnvBool("CONTACTGRAPH_DISABLE_DECAY", false) {
		cfg.Graph.HalfLife = 0
	}
	return cfg, nil
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value.
// If the environment variable exists but cannot be parsed as an integer,
// it returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default value.
// It recognizes "true", "1", "yes" as true and "false", "0", "no" as false (case-insensitive).
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return defaultValue
}
