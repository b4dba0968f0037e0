package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/grantorhq/grantor/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Audit         AuditConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string

	// RateLimit is the per-client requests-per-minute cap; 0 disables it
	RateLimit int
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	ConnLifetime time.Duration
}

// AuditConfig holds audit trail configuration
type AuditConfig struct {
	// Enabled turns the database audit logger on
	Enabled bool

	// FilePath, when set, additionally writes audit events as JSON lines
	// under this directory
	FilePath string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Audit:         loadAuditConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("GRANTOR_HOST", "0.0.0.0"),
		Port:            getEnv("GRANTOR_PORT", "8080"),
		ReadTimeout:     getEnvDuration("GRANTOR_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("GRANTOR_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("GRANTOR_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("GRANTOR_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("GRANTOR_HEALTH_PORT", "9090"),
		RateLimit:       getEnvInt("GRANTOR_RATE_LIMIT", 0),
	}
}

// loadDatabaseConfig loads database configuration from environment
func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:          getEnv("GRANTOR_POSTGRES_URL", ""),
		MaxOpenConns: getEnvInt("GRANTOR_POSTGRES_MAX_CONNS", 25),
		MaxIdleConns: getEnvInt("GRANTOR_POSTGRES_IDLE_CONNS", 5),
		ConnLifetime: getEnvDuration("GRANTOR_POSTGRES_CONN_LIFETIME", 5*time.Minute),
	}
}

// loadAuditConfig loads audit configuration from environment
func loadAuditConfig() AuditConfig {
	return AuditConfig{
		Enabled:  getEnvBool("GRANTOR_AUDIT_ENABLED", true),
		FilePath: getEnv("GRANTOR_AUDIT_FILE_PATH", ""),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       observability.ParseLevel(getEnv("GRANTOR_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("GRANTOR_METRICS_ENABLED", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required (set GRANTOR_POSTGRES_URL)")
	}
	if c.Database.MaxOpenConns > 0 && c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("idle connections cannot exceed open connections")
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
