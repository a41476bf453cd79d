package config

import (
	"fmt"
	"os"
)

type Config struct {
	DatabaseURL     string
	TemporalAddress string
	HTTPListenAddr  string
	MetricsAddr     string
	LogLevel        string

	// External collaborators.
	RegistryURL  string
	SchedulerURL string
	TelemetryURL string
	NotifyURL    string

	// CheckSuiteDir holds the per-service health check suite YAML files.
	CheckSuiteDir string

	// ServiceName tags log output; it is not the name of a deployed service.
	ServiceName string

	TemporalTLSCert       string
	TemporalTLSKey        string
	TemporalTLSCACert     string
	TemporalTLSServerName string
}

func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		TemporalAddress: getEnv("TEMPORAL_ADDRESS", "localhost:7233"),
		HTTPListenAddr:  getEnv("HTTP_LISTEN_ADDR", ":8080"),
		MetricsAddr:     getEnv("METRICS_LISTEN_ADDR", ":9090"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		RegistryURL:     getEnv("REGISTRY_URL", "http://localhost:5100"),
		SchedulerURL:    getEnv("SCHEDULER_URL", "http://localhost:5200"),
		TelemetryURL:    getEnv("TELEMETRY_URL", "http://localhost:5300"),
		NotifyURL:       getEnv("NOTIFY_URL", ""),
		CheckSuiteDir:   getEnv("CHECK_SUITE_DIR", "checksuites"),
		ServiceName:     getEnv("SERVICE_NAME", ""),

		TemporalTLSCert:       getEnv("TEMPORAL_TLS_CERT", ""),
		TemporalTLSKey:        getEnv("TEMPORAL_TLS_KEY", ""),
		TemporalTLSCACert:     getEnv("TEMPORAL_TLS_CA_CERT", ""),
		TemporalTLSServerName: getEnv("TEMPORAL_TLS_SERVER_NAME", ""),
	}

	return cfg, nil
}

// Validate checks that the fields required by the given role are set.
// Role is "api" or "worker".
func (c *Config) Validate(role string) error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.TemporalAddress == "" {
		return fmt.Errorf("TEMPORAL_ADDRESS is required")
	}
	switch role {
	case "api":
	case "worker":
		if c.RegistryURL == "" {
			return fmt.Errorf("REGISTRY_URL is required for the worker")
		}
		if c.SchedulerURL == "" {
			return fmt.Errorf("SCHEDULER_URL is required for the worker")
		}
		if c.TelemetryURL == "" {
			return fmt.Errorf("TELEMETRY_URL is required for the worker")
		}
	default:
		return fmt.Errorf("unknown role %q", role)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
