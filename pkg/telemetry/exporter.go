// ABOUTME: OpenTelemetry exporter factory building metric readers and span exporters from Config
// ABOUTME: Metrics go to stdout or a Prometheus registry, spans to stdout or an OTLP gRPC collector

package telemetry

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// createMetricReaders creates one metric reader per configured metric exporter.
// The Prometheus exporter registers its collector with registry.
func createMetricReaders(cfg Config, registry *prometheus.Registry) ([]sdkmetric.Reader, error) {
	var readers []sdkmetric.Reader

	for _, name := range cfg.Exporters {
		switch name {
		case ExporterStdout:
			exporter, err := stdoutmetric.New(stdoutmetric.WithPrettyPrint())
			if err != nil {
				return nil, errors.Wrap(err, "failed to create stdout metric exporter")
			}
			readers = append(readers, sdkmetric.NewPeriodicReader(exporter,
				sdkmetric.WithInterval(cfg.BatchTimeout),
				sdkmetric.WithTimeout(cfg.ExportTimeout),
			))

		case ExporterPrometheus:
			exporter, err := otelprom.New(
				otelprom.WithRegisterer(registry),
				otelprom.WithoutScopeInfo(),
				otelprom.WithoutTargetInfo(),
			)
			if err != nil {
				return nil, errors.Wrap(err, "failed to create prometheus exporter")
			}
			readers = append(readers, exporter)

		default:
			// otlp carries traces only in this setup
			continue
		}
	}

	return readers, nil
}

// createTraceExporters creates one span exporter per configured trace exporter.
func createTraceExporters(ctx context.Context, cfg Config) ([]sdktrace.SpanExporter, error) {
	var exporters []sdktrace.SpanExporter

	for _, name := range cfg.Exporters {
		switch name {
		case ExporterStdout:
			exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
			if err != nil {
				return nil, errors.Wrap(err, "failed to create stdout trace exporter")
			}
			exporters = append(exporters, exporter)

		case ExporterOTLP:
			exporter, err := otlptracegrpc.New(ctx,
				otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
				otlptracegrpc.WithInsecure(),
				otlptracegrpc.WithTimeout(cfg.ExportTimeout),
			)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to create OTLP trace exporter for %s", cfg.OTLPEndpoint)
			}
			exporters = append(exporters, exporter)

		default:
			// prometheus has no trace signal
			continue
		}
	}

	return exporters, nil
}
