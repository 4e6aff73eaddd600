// ABOUTME: OpenTelemetry SDK provider implementing Telemetry with meter and tracer providers
// ABOUTME: Caches instruments by name and owns the lifecycle of every configured exporter

package telemetry

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/KevoDB/lsmcore"

// TelemetryProvider implements Telemetry on top of the OpenTelemetry SDK.
type TelemetryProvider struct {
	config         Config
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	meter          metric.Meter
	tracer         oteltrace.Tracer
	registry       *prometheus.Registry

	mu         sync.Mutex
	histograms map[string]metric.Float64Histogram
	counters   map[string]metric.Int64Counter
}

// New creates a Telemetry from cfg. A disabled config yields a no-op.
func New(cfg Config) (Telemetry, error) {
	if !cfg.Enabled {
		return NewNoop(), nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid telemetry config")
	}

	registry := prometheus.NewRegistry()

	readers, err := createMetricReaders(cfg, registry)
	if err != nil {
		return nil, err
	}

	spanExporters, err := createTraceExporters(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	return newProvider(cfg, registry, readers, spanExporters), nil
}

func newProvider(cfg Config, registry *prometheus.Registry, readers []sdkmetric.Reader, spanExporters []sdktrace.SpanExporter) *TelemetryProvider {
	res := sdkresource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
	)

	meterOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, reader := range readers {
		meterOpts = append(meterOpts, sdkmetric.WithReader(reader))
	}
	meterProvider := sdkmetric.NewMeterProvider(meterOpts...)

	tracerOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))),
	}
	for _, exporter := range spanExporters {
		tracerOpts = append(tracerOpts, sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(cfg.BatchTimeout),
			sdktrace.WithExportTimeout(cfg.ExportTimeout),
			sdktrace.WithMaxQueueSize(cfg.MaxQueueSize),
			sdktrace.WithMaxExportBatchSize(cfg.MaxExportBatchSize),
		))
	}
	tracerProvider := sdktrace.NewTracerProvider(tracerOpts...)

	return &TelemetryProvider{
		config:         cfg,
		meterProvider:  meterProvider,
		tracerProvider: tracerProvider,
		meter:          meterProvider.Meter(instrumentationName),
		tracer:         tracerProvider.Tracer(instrumentationName),
		registry:       registry,
		histograms:     make(map[string]metric.Float64Histogram),
		counters:       make(map[string]metric.Int64Counter),
	}
}

// RecordHistogram records value into the histogram called name, creating it on first use.
func (p *TelemetryProvider) RecordHistogram(ctx context.Context, name string, value float64, attrs ...attribute.KeyValue) {
	hist, err := p.histogram(name)
	if err != nil {
		return
	}
	hist.Record(ctx, value, metric.WithAttributes(attrs...))
}

// RecordCounter adds value to the counter called name, creating it on first use.
func (p *TelemetryProvider) RecordCounter(ctx context.Context, name string, value int64, attrs ...attribute.KeyValue) {
	counter, err := p.counter(name)
	if err != nil {
		return
	}
	counter.Add(ctx, value, metric.WithAttributes(attrs...))
}

// StartSpan starts a span from the provider's tracer.
func (p *TelemetryProvider) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, oteltrace.Span) {
	return p.tracer.Start(ctx, name, oteltrace.WithAttributes(attrs...))
}

// ForceFlush pushes all pending spans and metrics to the exporters.
func (p *TelemetryProvider) ForceFlush(ctx context.Context) error {
	return errors.CombineErrors(
		p.tracerProvider.ForceFlush(ctx),
		p.meterProvider.ForceFlush(ctx),
	)
}

// Shutdown flushes and stops both providers.
func (p *TelemetryProvider) Shutdown(ctx context.Context) error {
	return errors.CombineErrors(
		p.tracerProvider.Shutdown(ctx),
		p.meterProvider.Shutdown(ctx),
	)
}

// Registry returns the Prometheus registry the prometheus exporter writes to.
// It is empty unless that exporter is configured.
func (p *TelemetryProvider) Registry() *prometheus.Registry {
	return p.registry
}

// Config returns the configuration the provider was built from.
func (p *TelemetryProvider) Config() Config {
	return p.config
}

func (p *TelemetryProvider) histogram(name string) (metric.Float64Histogram, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if hist, ok := p.histograms[name]; ok {
		return hist, nil
	}
	hist, err := p.meter.Float64Histogram(name)
	if err != nil {
		return nil, err
	}
	p.histograms[name] = hist
	return hist, nil
}

func (p *TelemetryProvider) counter(name string) (metric.Int64Counter, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if counter, ok := p.counters[name]; ok {
		return counter, nil
	}
	counter, err := p.meter.Int64Counter(name)
	if err != nil {
		return nil, err
	}
	p.counters[name] = counter
	return counter, nil
}
