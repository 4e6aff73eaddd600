// ABOUTME: Tests for the OpenTelemetry provider using SDK manual readers and in-memory span exporters
// ABOUTME: Also checks the Prometheus exporter path through the provider's registry

package telemetry

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func enabledConfig() Config {
	cfg := DefaultConfig()
	cfg.Enabled = true
	return cfg
}

func findMetric(rm metricdata.ResourceMetrics, name string) (metricdata.Metrics, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func TestNewDisabledReturnsNoop(t *testing.T) {
	tel, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, ok := tel.(*NoopTelemetry); !ok {
		t.Errorf("Expected *NoopTelemetry for disabled config, got %T", tel)
	}
}

func TestNewWithInvalidConfig(t *testing.T) {
	cfg := enabledConfig()
	cfg.SampleRate = 2

	if _, err := New(cfg); err == nil {
		t.Error("Expected invalid config to be rejected")
	}

	// A disabled config is not validated
	cfg.Enabled = false
	if _, err := New(cfg); err != nil {
		t.Errorf("Disabled config should not be validated, got %v", err)
	}
}

func TestProviderRecordsMetrics(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	p := newProvider(enabledConfig(), prometheus.NewRegistry(), []sdkmetric.Reader{reader}, nil)
	defer p.Shutdown(ctx)

	attrs := attribute.String(AttrComponent, ComponentIterator)
	p.RecordCounter(ctx, "lsmcore.test.counter", 3, attrs)
	p.RecordCounter(ctx, "lsmcore.test.counter", 4, attrs)
	p.RecordHistogram(ctx, "lsmcore.test.histogram", 0.25, attrs)
	p.RecordHistogram(ctx, "lsmcore.test.histogram", 0.75, attrs)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	counter, ok := findMetric(rm, "lsmcore.test.counter")
	if !ok {
		t.Fatal("Counter not collected")
	}
	sum, ok := counter.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("Expected Sum[int64], got %T", counter.Data)
	}
	if len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 7 {
		t.Errorf("Expected a single data point with value 7, got %+v", sum.DataPoints)
	}

	histogram, ok := findMetric(rm, "lsmcore.test.histogram")
	if !ok {
		t.Fatal("Histogram not collected")
	}
	hist, ok := histogram.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("Expected Histogram[float64], got %T", histogram.Data)
	}
	if len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 2 || hist.DataPoints[0].Sum != 1.0 {
		t.Errorf("Unexpected histogram data points: %+v", hist.DataPoints)
	}
}

func TestProviderRecordsSpans(t *testing.T) {
	ctx := context.Background()
	exporter := tracetest.NewInMemoryExporter()
	p := newProvider(enabledConfig(), prometheus.NewRegistry(), nil, []sdktrace.SpanExporter{exporter})
	defer p.Shutdown(ctx)

	_, span := p.StartSpan(ctx, "engine.scan", attribute.String(AttrComponent, ComponentEngine))
	span.End()

	if err := p.ForceFlush(ctx); err != nil {
		t.Fatalf("ForceFlush failed: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("Expected 1 span, got %d", len(spans))
	}
	if spans[0].Name != "engine.scan" {
		t.Errorf("Expected span 'engine.scan', got %q", spans[0].Name)
	}
}

func TestProviderPrometheusRegistry(t *testing.T) {
	ctx := context.Background()
	cfg := enabledConfig()
	cfg.Exporters = []string{ExporterPrometheus}

	tel, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer tel.Shutdown(ctx)

	p, ok := tel.(*TelemetryProvider)
	if !ok {
		t.Fatalf("Expected *TelemetryProvider, got %T", tel)
	}

	p.RecordCounter(ctx, "lsmcore.test.requests", 2)

	families, err := p.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	found := false
	for _, mf := range families {
		if strings.HasPrefix(mf.GetName(), "lsmcore_test_requests") {
			found = true
		}
	}
	if !found {
		t.Error("Expected counter to be exposed through the prometheus registry")
	}
}
