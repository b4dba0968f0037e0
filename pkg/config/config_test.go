package config

import (
	"testing"
	"time"

	"github.com/grantorhq/grantor/pkg/observability"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("GRANTOR_POSTGRES_URL", "postgres://localhost/grantor")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.HealthPort != "9090" {
		t.Errorf("Expected default health port 9090, got %s", cfg.Server.HealthPort)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown timeout 30s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Database.MaxOpenConns != 25 {
		t.Errorf("Expected default max conns 25, got %d", cfg.Database.MaxOpenConns)
	}
	if !cfg.Audit.Enabled {
		t.Error("Expected audit enabled by default")
	}
	if cfg.Observability.LogLevel != observability.InfoLevel {
		t.Errorf("Expected default info level, got %v", cfg.Observability.LogLevel)
	}
	if !cfg.Observability.MetricsEnabled {
		t.Error("Expected metrics enabled by default")
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("GRANTOR_POSTGRES_URL", "postgres://localhost/grantor")
	t.Setenv("GRANTOR_PORT", "3000")
	t.Setenv("GRANTOR_LOG_LEVEL", "debug")
	t.Setenv("GRANTOR_METRICS_ENABLED", "false")
	t.Setenv("GRANTOR_READ_TIMEOUT", "5s")
	t.Setenv("GRANTOR_AUDIT_FILE_PATH", "/var/log/grantor/audit")
	t.Setenv("GRANTOR_RATE_LIMIT", "200")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != "3000" {
		t.Errorf("Expected port 3000, got %s", cfg.Server.Port)
	}
	if cfg.Observability.LogLevel != observability.DebugLevel {
		t.Errorf("Expected debug level, got %v", cfg.Observability.LogLevel)
	}
	if cfg.Observability.MetricsEnabled {
		t.Error("Expected metrics disabled")
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("Expected read timeout 5s, got %v", cfg.Server.ReadTimeout)
	}
	if cfg.Audit.FilePath != "/var/log/grantor/audit" {
		t.Errorf("Expected audit file path set, got %s", cfg.Audit.FilePath)
	}
	if cfg.Server.RateLimit != 200 {
		t.Errorf("Expected rate limit 200, got %d", cfg.Server.RateLimit)
	}
}

func TestLoadConfig_MissingDatabaseURL(t *testing.T) {
	t.Setenv("GRANTOR_POSTGRES_URL", "")

	if _, err := LoadConfig(); err == nil {
		t.Error("Expected error when postgres URL is missing")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Server: ServerConfig{
				Port:       "8080",
				HealthPort: "9090",
			},
			Database: DatabaseConfig{
				URL:          "postgres://localhost/grantor",
				MaxOpenConns: 10,
				MaxIdleConns: 5,
			},
		}
	}

	if err := base().Validate(); err != nil {
		t.Errorf("Expected valid config to pass, got %v", err)
	}

	cfg := base()
	cfg.Server.HealthPort = cfg.Server.Port
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for colliding ports")
	}

	cfg = base()
	cfg.Database.MaxIdleConns = 50
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for idle conns exceeding open conns")
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("GRANTOR_TEST_BOOL", "1")
	if !getEnvBool("GRANTOR_TEST_BOOL", false) {
		t.Error("Expected '1' to parse as true")
	}

	t.Setenv("GRANTOR_TEST_INT", "not-a-number")
	if got := getEnvInt("GRANTOR_TEST_INT", 7); got != 7 {
		t.Errorf("Expected fallback 7 for bad int, got %d", got)
	}

	t.Setenv("GRANTOR_TEST_DURATION", "nope")
	if got := getEnvDuration("GRANTOR_TEST_DURATION", time.Second); got != time.Second {
		t.Errorf("Expected fallback 1s for bad duration, got %v", got)
	}
}
