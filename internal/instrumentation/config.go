package instrumentation

import (
	"errors"
	"fmt"
)

// Exporter names accepted by Config.
const (
	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
	ExporterNone       = "none"
)

// Config selects where metrics and traces go. The serve command builds it
// from the process configuration; this package never reads the environment.
type Config struct {
	ServiceName    string
	ServiceVersion string

	// Enabled turns metrics and tracing on. Audit logging is independent.
	Enabled bool

	// MetricsExporter is prometheus (scraped from the metrics server) or otlp.
	MetricsExporter string

	// TracingExporter is otlp or none. With none, spans still carry trace ids
	// for audit correlation but are never sampled.
	TracingExporter string

	// OTLPEndpoint is host:port of the collector, without scheme.
	OTLPEndpoint string
	OTLPInsecure bool

	TraceSamplingRate float64

	// DetailedLabels adds the recipient domain to mail metrics.
	DetailedLabels bool

	AuditLogging AuditLoggingConfig
}

// AuditLoggingConfig controls the audit trail.
type AuditLoggingConfig struct {
	Enabled bool

	// IncludePII logs raw user ids and recipient addresses instead of hashes.
	IncludePII bool
}

// Validate reports every invalid setting in one error.
func (c Config) Validate() error {
	var errs []error

	if c.TraceSamplingRate < 0 || c.TraceSamplingRate > 1 {
		errs = append(errs, fmt.Errorf("trace sampling rate must be between 0.0 and 1.0, got %g", c.TraceSamplingRate))
	}

	switch c.MetricsExporter {
	case "", ExporterPrometheus:
	case ExporterOTLP:
		if c.OTLPEndpoint == "" {
			errs = append(errs, errors.New("OTLP endpoint is required for the otlp metrics exporter"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid metrics exporter %q, must be prometheus or otlp", c.MetricsExporter))
	}

	switch c.TracingExporter {
	case "", ExporterNone:
	case ExporterOTLP:
		if c.OTLPEndpoint == "" {
			errs = append(errs, errors.New("OTLP endpoint is required for the otlp tracing exporter"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid tracing exporter %q, must be otlp or none", c.TracingExporter))
	}

	return errors.Join(errs...)
}
