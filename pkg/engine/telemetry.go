// ABOUTME: Engine-level telemetry for operation latency and outcome, pool memory and errors
// ABOUTME: The no-op implementation is used when telemetry is disabled

package engine

import (
	"context"
	"time"

	"github.com/KevoDB/lsmcore/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// EngineMetrics defines the interface for engine-level telemetry
type EngineMetrics interface {
	telemetry.ComponentMetrics

	// RecordEngineOperation records the duration and outcome of a public operation
	RecordEngineOperation(ctx context.Context, operation string, duration time.Duration, err error)

	// RecordMemoryUsage records the bytes held by a component
	RecordMemoryUsage(ctx context.Context, component string, bytes int64)

	// RecordRunBuilt records a sorted run built from the memtables
	RecordRunBuilt(ctx context.Context, operation string, entries int, bytes uint64)

	// RecordError records a failed operation by error type
	RecordError(ctx context.Context, operation string, err error)
}

type engineMetrics struct {
	tel telemetry.Telemetry
}

// NewEngineMetrics creates engine metrics on top of tel.
// A nil tel yields the no-op implementation.
func NewEngineMetrics(tel telemetry.Telemetry) EngineMetrics {
	if tel == nil {
		return &noopEngineMetrics{}
	}
	return &engineMetrics{tel: tel}
}

// NewNoopEngineMetrics returns metrics that record nothing.
func NewNoopEngineMetrics() EngineMetrics {
	return &noopEngineMetrics{}
}

func (m *engineMetrics) RecordEngineOperation(ctx context.Context, operation string, duration time.Duration, err error) {
	status := telemetry.StatusFromError(err)

	m.tel.RecordHistogram(ctx, "lsmcore.engine.operation.duration", duration.Seconds(),
		attribute.String(telemetry.AttrOperationType, operation),
		attribute.String(telemetry.AttrStatus, status),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentEngine),
	)

	m.tel.RecordCounter(ctx, "lsmcore.engine.operation.count", 1,
		attribute.String(telemetry.AttrOperationType, operation),
		attribute.String(telemetry.AttrStatus, status),
	)
}

func (m *engineMetrics) RecordMemoryUsage(ctx context.Context, component string, bytes int64) {
	m.tel.RecordHistogram(ctx, "lsmcore.engine.memory.bytes", float64(bytes),
		attribute.String(telemetry.AttrComponent, component),
	)
}

func (m *engineMetrics) RecordRunBuilt(ctx context.Context, operation string, entries int, bytes uint64) {
	m.tel.RecordCounter(ctx, "lsmcore.engine.run.entries", int64(entries),
		attribute.String(telemetry.AttrOperationType, operation),
	)
	m.tel.RecordCounter(ctx, "lsmcore.engine.run.bytes", int64(bytes),
		attribute.String(telemetry.AttrOperationType, operation),
	)
}

func (m *engineMetrics) RecordError(ctx context.Context, operation string, err error) {
	m.tel.RecordCounter(ctx, "lsmcore.engine.errors.total", 1,
		attribute.String(telemetry.AttrOperationType, operation),
		attribute.String(telemetry.AttrErrorType, errorType(err)),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentEngine),
	)
}

func (m *engineMetrics) Close() error {
	return nil
}

type noopEngineMetrics struct{}

func (n *noopEngineMetrics) RecordEngineOperation(ctx context.Context, operation string, duration time.Duration, err error) {
}
func (n *noopEngineMetrics) RecordMemoryUsage(ctx context.Context, component string, bytes int64) {}
func (n *noopEngineMetrics) RecordRunBuilt(ctx context.Context, operation string, entries int, bytes uint64) {
}
func (n *noopEngineMetrics) RecordError(ctx context.Context, operation string, err error) {}
func (n *noopEngineMetrics) Close() error                                                 { return nil }

func errorType(err error) string {
	switch {
	case err == nil:
		return "none"
	case isNotFound(err):
		return "not_found"
	case isInvalidInput(err):
		return "invalid_argument"
	default:
		return "internal"
	}
}
