// ABOUTME: Telemetry configuration covering exporters, sampling and batching, with validation
// ABOUTME: Supports LSMCORE_TELEMETRY_* environment overrides on top of the defaults

package telemetry

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// Exporter names accepted in Config.Exporters
const (
	ExporterStdout     = "stdout"
	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
)

const envPrefix = "LSMCORE_TELEMETRY_"

// Config holds all configuration for telemetry providers and exporters.
type Config struct {
	// ServiceName identifies the service in telemetry data
	ServiceName string `json:"service_name"`

	// ServiceVersion identifies the service version in telemetry data
	ServiceVersion string `json:"service_version"`

	// Enabled controls whether telemetry is active
	Enabled bool `json:"enabled"`

	// Exporters specifies which exporters to use (stdout, prometheus, otlp)
	Exporters []string `json:"exporters"`

	// SampleRate controls trace sampling (0.0 to 1.0)
	SampleRate float64 `json:"sample_rate"`

	// OTLPEndpoint specifies the OTLP collector endpoint (host:port)
	OTLPEndpoint string `json:"otlp_endpoint"`

	// ExportTimeout bounds a single export
	ExportTimeout time.Duration `json:"export_timeout"`

	// BatchTimeout is both the span batch delay and the metric push interval
	BatchTimeout time.Duration `json:"batch_timeout"`

	// MaxQueueSize controls the maximum queue size for pending spans
	MaxQueueSize int `json:"max_queue_size"`

	// MaxExportBatchSize controls the maximum number of spans per export
	MaxExportBatchSize int `json:"max_export_batch_size"`
}

// DefaultConfig returns a disabled configuration with usable values for
// everything else, so enabling it is a one-field change.
func DefaultConfig() Config {
	return Config{
		ServiceName:        "lsmcore",
		ServiceVersion:     "development",
		Enabled:            false,
		Exporters:          []string{ExporterStdout},
		SampleRate:         1.0,
		OTLPEndpoint:       "localhost:4317",
		ExportTimeout:      30 * time.Second,
		BatchTimeout:       5 * time.Second,
		MaxQueueSize:       2048,
		MaxExportBatchSize: 512,
	}
}

// LoadFromEnv overrides fields from LSMCORE_TELEMETRY_* variables.
// Unparseable values are ignored.
func (c *Config) LoadFromEnv() {
	if val := os.Getenv(envPrefix + "SERVICE_NAME"); val != "" {
		c.ServiceName = val
	}

	if val := os.Getenv(envPrefix + "SERVICE_VERSION"); val != "" {
		c.ServiceVersion = val
	}

	if val := os.Getenv(envPrefix + "ENABLED"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.Enabled = enabled
		}
	}

	if val := os.Getenv(envPrefix + "EXPORTERS"); val != "" {
		c.Exporters = strings.Split(val, ",")
		for i := range c.Exporters {
			c.Exporters[i] = strings.TrimSpace(c.Exporters[i])
		}
	}

	if val := os.Getenv(envPrefix + "SAMPLE_RATE"); val != "" {
		if rate, err := strconv.ParseFloat(val, 64); err == nil {
			c.SampleRate = rate
		}
	}

	if val := os.Getenv(envPrefix + "OTLP_ENDPOINT"); val != "" {
		c.OTLPEndpoint = val
	}

	if val := os.Getenv(envPrefix + "EXPORT_TIMEOUT"); val != "" {
		if timeout, err := time.ParseDuration(val); err == nil {
			c.ExportTimeout = timeout
		}
	}

	if val := os.Getenv(envPrefix + "BATCH_TIMEOUT"); val != "" {
		if timeout, err := time.ParseDuration(val); err == nil {
			c.BatchTimeout = timeout
		}
	}

	if val := os.Getenv(envPrefix + "MAX_QUEUE_SIZE"); val != "" {
		if size, err := strconv.Atoi(val); err == nil {
			c.MaxQueueSize = size
		}
	}

	if val := os.Getenv(envPrefix + "MAX_EXPORT_BATCH_SIZE"); val != "" {
		if size, err := strconv.Atoi(val); err == nil {
			c.MaxExportBatchSize = size
		}
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return errors.New("service_name cannot be empty")
	}

	if c.ServiceVersion == "" {
		return errors.New("service_version cannot be empty")
	}

	if c.SampleRate < 0.0 || c.SampleRate > 1.0 {
		return errors.Newf("sample_rate must be between 0.0 and 1.0, got %f", c.SampleRate)
	}

	if c.ExportTimeout <= 0 {
		return errors.Newf("export_timeout must be positive, got %s", c.ExportTimeout)
	}

	if c.BatchTimeout <= 0 {
		return errors.Newf("batch_timeout must be positive, got %s", c.BatchTimeout)
	}

	if c.MaxQueueSize <= 0 {
		return errors.Newf("max_queue_size must be positive, got %d", c.MaxQueueSize)
	}

	if c.MaxExportBatchSize <= 0 {
		return errors.Newf("max_export_batch_size must be positive, got %d", c.MaxExportBatchSize)
	}

	if c.MaxExportBatchSize > c.MaxQueueSize {
		return errors.Newf("max_export_batch_size (%d) cannot exceed max_queue_size (%d)",
			c.MaxExportBatchSize, c.MaxQueueSize)
	}

	for _, exporter := range c.Exporters {
		switch exporter {
		case ExporterStdout, ExporterPrometheus, ExporterOTLP:
		default:
			return errors.Newf("invalid exporter: %s, valid options are: stdout, prometheus, otlp", exporter)
		}
	}

	if c.HasExporter(ExporterOTLP) && c.OTLPEndpoint == "" {
		return errors.New("otlp_endpoint is required when the otlp exporter is enabled")
	}

	return nil
}

// HasExporter returns true if the specified exporter is configured.
func (c *Config) HasExporter(name string) bool {
	for _, exporter := range c.Exporters {
		if exporter == name {
			return true
		}
	}
	return false
}
