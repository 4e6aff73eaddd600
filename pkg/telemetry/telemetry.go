// ABOUTME: Core telemetry abstraction over OpenTelemetry used to instrument the merge, block and engine layers
// ABOUTME: Components record through this interface so that telemetry can be disabled with a no-op implementation

package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry is the abstraction components use to record metrics and spans
// without depending on the OpenTelemetry SDK directly.
type Telemetry interface {
	// RecordHistogram records a histogram value with optional attributes.
	RecordHistogram(ctx context.Context, name string, value float64, attrs ...attribute.KeyValue)

	// RecordCounter records a counter increment with optional attributes.
	RecordCounter(ctx context.Context, name string, value int64, attrs ...attribute.KeyValue)

	// StartSpan creates a new tracing span with the given name and attributes.
	StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span)

	// Shutdown flushes and stops all providers.
	Shutdown(ctx context.Context) error
}

// ComponentMetrics is implemented by each component-specific metrics type.
type ComponentMetrics interface {
	// Close releases any resources held by the metrics implementation.
	Close() error
}

// NoopTelemetry discards everything.
type NoopTelemetry struct{}

// NewNoop creates a new no-operation telemetry instance.
func NewNoop() Telemetry {
	return &NoopTelemetry{}
}

// RecordHistogram is a no-op.
func (n *NoopTelemetry) RecordHistogram(ctx context.Context, name string, value float64, attrs ...attribute.KeyValue) {
}

// RecordCounter is a no-op.
func (n *NoopTelemetry) RecordCounter(ctx context.Context, name string, value int64, attrs ...attribute.KeyValue) {
}

// StartSpan returns the original context and the span already in it, if any.
func (n *NoopTelemetry) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return ctx, trace.SpanFromContext(ctx)
}

// Shutdown is a no-op.
func (n *NoopTelemetry) Shutdown(ctx context.Context) error {
	return nil
}

// RecordDuration records the time elapsed since start, in seconds, in a histogram.
func RecordDuration(ctx context.Context, tel Telemetry, name string, start time.Time, attrs ...attribute.KeyValue) {
	tel.RecordHistogram(ctx, name, time.Since(start).Seconds(), attrs...)
}

// RecordBytes adds a byte count to a counter.
func RecordBytes(ctx context.Context, tel Telemetry, name string, bytes int64, attrs ...attribute.KeyValue) {
	tel.RecordCounter(ctx, name, bytes, attrs...)
}

// StatusFromError maps an operation error to a status attribute value.
func StatusFromError(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}

// Attribute keys shared by all components
const (
	AttrOperationType = "operation.type"
	AttrComponent     = "component"
	AttrStatus        = "status"
	AttrErrorType     = "error.type"
	AttrIteratorType  = "iterator.type"
	AttrSourceCount   = "source.count"
	AttrReason        = "reason"
)

// Attribute values
const (
	// Operation types
	OpTypePut    = "put"
	OpTypeDelete = "delete"
	OpTypeGet    = "get"
	OpTypeScan   = "scan"
	OpTypeNext   = "next"
	OpTypeMerge  = "merge"
	OpTypeBuild  = "build"
	OpTypeFreeze = "freeze"

	// Status values
	StatusSuccess   = "success"
	StatusError     = "error"
	StatusExhausted = "exhausted"
	StatusRejected  = "rejected"

	// Component names
	ComponentIterator = "iterator"
	ComponentMemTable = "memtable"
	ComponentBlock    = "block"
	ComponentRun      = "run"
	ComponentEngine   = "engine"
)
