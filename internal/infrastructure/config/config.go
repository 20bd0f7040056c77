package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Gray Relay.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Broker  BrokerConfig  `yaml:"broker"`
	Logging LoggingConfig `yaml:"logging"`
	Audit   AuditConfig   `yaml:"audit"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// BrokerConfig contains broker core settings.
type BrokerConfig struct {
	// RoutingDocument is the filesystem path to the JSON routing document
	// (targets and pipes) handed to the broker at Initialize.
	RoutingDocument string `yaml:"routing_document"`

	// QueueSize is the per-target delivery job buffer. Publishing blocks
	// once a target's buffer is full.
	QueueSize int `yaml:"queue_size"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// AuditConfig contains delivery audit log settings.
type AuditConfig struct {
	Enabled bool `yaml:"enabled"`

	// RetentionDays bounds how long delivery records are kept; records
	// older than this are pruned at startup. 0 disables pruning.
	RetentionDays int `yaml:"retention_days"`

	Database DatabaseConfig `yaml:"database"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MetricsConfig contains InfluxDB delivery metrics settings.
type MetricsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYRELAY_SECTION_KEY
// For example: GRAYRELAY_BROKER_ROUTING_DOCUMENT, GRAYRELAY_AUDIT_DATABASE_PATH
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Broker: BrokerConfig{
			RoutingDocument: "configs/routing.json",
			QueueSize:       256,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Audit: AuditConfig{
			Enabled:       false,
			RetentionDays: 30,
			Database: DatabaseConfig{
				Path:        "data/grayrelay.db",
				WALMode:     true,
				BusyTimeout: 5,
			},
		},
		Metrics: MetricsConfig{
			Enabled:       false,
			BatchSize:     100,
			FlushInterval: 10,
		},
	}
}

// applyEnvOverrides replaces config values with GRAYRELAY_* environment
// variables where set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GRAYRELAY_BROKER_ROUTING_DOCUMENT"); v != "" {
		cfg.Broker.RoutingDocument = v
	}
	if v := os.Getenv("GRAYRELAY_BROKER_QUEUE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Broker.QueueSize = n
		}
	}
	if v := os.Getenv("GRAYRELAY_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("GRAYRELAY_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("GRAYRELAY_LOGGING_OUTPUT"); v != "" {
		cfg.Logging.Output = v
	}
	if v := os.Getenv("GRAYRELAY_AUDIT_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Audit.Enabled = b
		}
	}
	if v := os.Getenv("GRAYRELAY_AUDIT_DATABASE_PATH"); v != "" {
		cfg.Audit.Database.Path = v
	}
	if v := os.Getenv("GRAYRELAY_METRICS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Metrics.Enabled = b
		}
	}
	if v := os.Getenv("GRAYRELAY_METRICS_URL"); v != "" {
		cfg.Metrics.URL = v
	}
	if v := os.Getenv("GRAYRELAY_METRICS_TOKEN"); v != "" {
		cfg.Metrics.Token = v
	}
	if v := os.Getenv("GRAYRELAY_METRICS_ORG"); v != "" {
		cfg.Metrics.Org = v
	}
	if v := os.Getenv("GRAYRELAY_METRICS_BUCKET"); v != "" {
		cfg.Metrics.Bucket = v
	}
}

// Validate checks required fields and value ranges.
//
// Returns:
//   - error: Describing the first invalid field found, or nil
func (c *Config) Validate() error {
	if c.Broker.RoutingDocument == "" {
		return fmt.Errorf("broker.routing_document is required")
	}
	if c.Broker.QueueSize < 0 {
		return fmt.Errorf("broker.queue_size must not be negative")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}

	if c.Audit.Enabled {
		if c.Audit.Database.Path == "" {
			return fmt.Errorf("audit.database.path is required when audit is enabled")
		}
		if c.Audit.RetentionDays < 0 {
			return fmt.Errorf("audit.retention_days must not be negative")
		}
	}

	if c.Metrics.Enabled {
		if c.Metrics.URL == "" {
			return fmt.Errorf("metrics.url is required when metrics are enabled")
		}
		if c.Metrics.Org == "" || c.Metrics.Bucket == "" {
			return fmt.Errorf("metrics.org and metrics.bucket are required when metrics are enabled")
		}
	}

	return nil
}
