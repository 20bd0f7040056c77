package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

// ============================================================================
// Load Tests
// ============================================================================

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Broker.RoutingDocument != "configs/routing.json" {
		t.Errorf("RoutingDocument = %q, want default", cfg.Broker.RoutingDocument)
	}
	if cfg.Broker.QueueSize != 256 {
		t.Errorf("QueueSize = %d, want 256", cfg.Broker.QueueSize)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v, want info/json defaults", cfg.Logging)
	}
	if cfg.Audit.Enabled {
		t.Error("Audit should default to disabled")
	}
	if cfg.Audit.RetentionDays != 30 {
		t.Errorf("RetentionDays = %d, want 30", cfg.Audit.RetentionDays)
	}
	if cfg.Metrics.Enabled {
		t.Error("Metrics should default to disabled")
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
broker:
  routing_document: /etc/grayrelay/routes.json
  queue_size: 64

logging:
  level: debug
  format: text

audit:
  enabled: true
  retention_days: 7
  database:
    path: /var/lib/grayrelay/audit.db
    wal_mode: false
    busy_timeout: 10
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Broker.RoutingDocument != "/etc/grayrelay/routes.json" {
		t.Errorf("RoutingDocument = %q", cfg.Broker.RoutingDocument)
	}
	if cfg.Broker.QueueSize != 64 {
		t.Errorf("QueueSize = %d, want 64", cfg.Broker.QueueSize)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if !cfg.Audit.Enabled || cfg.Audit.RetentionDays != 7 {
		t.Errorf("Audit = %+v", cfg.Audit)
	}
	if cfg.Audit.Database.Path != "/var/lib/grayrelay/audit.db" || cfg.Audit.Database.WALMode {
		t.Errorf("Audit.Database = %+v", cfg.Audit.Database)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("GRAYRELAY_BROKER_ROUTING_DOCUMENT", "/env/routes.json")
	t.Setenv("GRAYRELAY_BROKER_QUEUE_SIZE", "512")
	t.Setenv("GRAYRELAY_LOGGING_LEVEL", "error")
	t.Setenv("GRAYRELAY_AUDIT_ENABLED", "true")
	t.Setenv("GRAYRELAY_AUDIT_DATABASE_PATH", "/env/audit.db")

	cfg, err := Load(writeConfig(t, `
broker:
  routing_document: /file/routes.json
  queue_size: 64
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Broker.RoutingDocument != "/env/routes.json" {
		t.Errorf("RoutingDocument = %q, want env value", cfg.Broker.RoutingDocument)
	}
	if cfg.Broker.QueueSize != 512 {
		t.Errorf("QueueSize = %d, want 512", cfg.Broker.QueueSize)
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("Level = %q, want error", cfg.Logging.Level)
	}
	if !cfg.Audit.Enabled || cfg.Audit.Database.Path != "/env/audit.db" {
		t.Errorf("Audit = %+v, want env overrides", cfg.Audit)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("Load should fail for a missing file")
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "broker: [not a map")); err == nil {
		t.Error("Load should fail for malformed YAML")
	}
}

// ============================================================================
// Validation Tests
// ============================================================================

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(*Config) {}, ""},
		{
			"empty routing document",
			func(c *Config) { c.Broker.RoutingDocument = "" },
			"routing_document",
		},
		{
			"negative queue size",
			func(c *Config) { c.Broker.QueueSize = -1 },
			"queue_size",
		},
		{
			"bad log level",
			func(c *Config) { c.Logging.Level = "loud" },
			"logging.level",
		},
		{
			"audit enabled without path",
			func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.Database.Path = ""
			},
			"audit.database.path",
		},
		{
			"metrics enabled without url",
			func(c *Config) { c.Metrics.Enabled = true },
			"metrics.url",
		},
		{
			"metrics enabled without org",
			func(c *Config) {
				c.Metrics.Enabled = true
				c.Metrics.URL = "http://influx:8086"
			},
			"metrics.org",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate() should fail")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}
