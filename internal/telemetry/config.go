// Package telemetry wires structured logging, Prometheus metrics, and
// OpenTelemetry tracing for a chaos run. Grounded on
// pkg/telemetry/{config.go,logger.go,metrics.go,tracer.go}.
package telemetry

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config is the telemetry configuration for one orchestrator process.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Logging        LoggingConfig
	Tracing        TracingConfig
	Metrics        MetricsConfig
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level              string
	Format             string
	Output             string
	EnableCaller       bool
	EnableSampling     bool
	SamplingInitial    int
	SamplingThereafter int
	TimeFormat         string
}

// TracingConfig configures distributed tracing.
type TracingConfig struct {
	Enabled            bool
	Exporter           string
	Endpoint           string
	SamplingRate       float64
	MaxExportBatchSize int
	ExportTimeout      time.Duration
	Headers            map[string]string
	Insecure           bool
}

// MetricsConfig configures Prometheus metrics collection.
type MetricsConfig struct {
	Enabled                 bool
	ListenAddress           string
	Path                    string
	Namespace               string
	DefaultHistogramBuckets []float64
}

// DefaultConfig returns a sensible local-development configuration.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "chaosorch",
		ServiceVersion: "dev",
		Environment:    "development",
		Logging: LoggingConfig{
			Level:              "info",
			Format:             "console",
			Output:             "stdout",
			EnableCaller:       true,
			EnableSampling:     false,
			SamplingInitial:    100,
			SamplingThereafter: 100,
			TimeFormat:         "rfc3339",
		},
		Tracing: TracingConfig{
			Enabled:            true,
			Exporter:           "stdout",
			SamplingRate:       1.0,
			MaxExportBatchSize: 512,
			ExportTimeout:      30 * time.Second,
			Headers:            make(map[string]string),
			Insecure:           true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			ListenAddress:           ":9090",
			Path:                    "/metrics",
			Namespace:               "chaosorch",
			DefaultHistogramBuckets: prometheus.DefBuckets,
		},
	}
}

// ProductionConfig tunes DefaultConfig for an unattended long-running run.
func ProductionConfig() *Config {
	cfg := DefaultConfig()
	cfg.Environment = "production"
	cfg.Logging.Format = "json"
	cfg.Logging.EnableSampling = true
	cfg.Logging.TimeFormat = "unix"
	cfg.Tracing.Exporter = "otlp"
	cfg.Tracing.SamplingRate = 0.1
	cfg.Tracing.Insecure = false
	return cfg
}

// Validate rejects a Config whose fields cannot be turned into a logger,
// tracer, or metrics registry.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service name is required")
	}
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true, "fatal": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}
	validExporters := map[string]bool{"otlp": true, "stdout": true, "none": true}
	if c.Tracing.Enabled && !validExporters[c.Tracing.Exporter] {
		return fmt.Errorf("invalid trace exporter: %s", c.Tracing.Exporter)
	}
	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		return fmt.Errorf("trace sampling rate must be between 0 and 1, got %f", c.Tracing.SamplingRate)
	}
	if c.Metrics.Enabled && c.Metrics.ListenAddress == "" {
		return fmt.Errorf("metrics listen address is required when metrics are enabled")
	}
	return nil
}
