// ABOUTME: MemTable telemetry for operations, rotation triggers and pool state
// ABOUTME: The no-op implementation is used when telemetry is disabled

package memtable

import (
	"context"
	"time"

	"github.com/KevoDB/lsmcore/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// MemTableMetrics defines the interface for MemTable telemetry operations.
// All metrics are optional - implementations can safely be no-op.
type MemTableMetrics interface {
	telemetry.ComponentMetrics

	// RecordOperation records metrics for individual MemTable operations (Put/Delete/Get).
	RecordOperation(ctx context.Context, opType string, duration time.Duration)

	// RecordRotation records the active memtable being frozen and why.
	RecordRotation(ctx context.Context, reason string, memTableSize int64, memTableAge float64)

	// RecordSizeChange records changes in MemTable size for monitoring growth.
	RecordSizeChange(ctx context.Context, newSize int64, delta int64, memTableType string)

	// RecordPoolState records the state of the MemTablePool.
	RecordPoolState(ctx context.Context, activeSize int64, immutableCount int, totalSize int64)
}

type memTableMetrics struct {
	tel telemetry.Telemetry
}

// NewMemTableMetrics creates a new MemTable metrics implementation.
// If tel is nil, returns a no-op implementation.
func NewMemTableMetrics(tel telemetry.Telemetry) MemTableMetrics {
	if tel == nil {
		return &noopMemTableMetrics{}
	}
	return &memTableMetrics{tel: tel}
}

// NewNoopMemTableMetrics creates a no-op MemTable metrics implementation for testing.
func NewNoopMemTableMetrics() MemTableMetrics {
	return &noopMemTableMetrics{}
}

func (m *memTableMetrics) RecordOperation(ctx context.Context, opType string, duration time.Duration) {
	m.tel.RecordHistogram(ctx, "lsmcore.memtable.operation.duration", duration.Seconds(),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentMemTable),
		attribute.String(telemetry.AttrOperationType, opType),
	)

	m.tel.RecordCounter(ctx, "lsmcore.memtable.operations.total", 1,
		attribute.String(telemetry.AttrComponent, telemetry.ComponentMemTable),
		attribute.String(telemetry.AttrOperationType, opType),
		attribute.String(telemetry.AttrStatus, telemetry.StatusSuccess),
	)
}

func (m *memTableMetrics) RecordRotation(ctx context.Context, reason string, memTableSize int64, memTableAge float64) {
	m.tel.RecordCounter(ctx, "lsmcore.memtable.rotation.total", 1,
		attribute.String(telemetry.AttrComponent, telemetry.ComponentMemTable),
		attribute.String(telemetry.AttrReason, reason),
	)

	m.tel.RecordHistogram(ctx, "lsmcore.memtable.rotation.size", float64(memTableSize),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentMemTable),
		attribute.String(telemetry.AttrReason, reason),
	)

	m.tel.RecordHistogram(ctx, "lsmcore.memtable.rotation.age", memTableAge,
		attribute.String(telemetry.AttrComponent, telemetry.ComponentMemTable),
		attribute.String(telemetry.AttrReason, reason),
	)
}

func (m *memTableMetrics) RecordSizeChange(ctx context.Context, newSize int64, delta int64, memTableType string) {
	m.tel.RecordHistogram(ctx, "lsmcore.memtable.size.bytes", float64(newSize),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentMemTable),
		attribute.String("memtable.type", memTableType),
	)

	m.tel.RecordHistogram(ctx, "lsmcore.memtable.size.delta", float64(delta),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentMemTable),
		attribute.String("memtable.type", memTableType),
	)
}

func (m *memTableMetrics) RecordPoolState(ctx context.Context, activeSize int64, immutableCount int, totalSize int64) {
	m.tel.RecordHistogram(ctx, "lsmcore.memtable.pool.active.size", float64(activeSize),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentMemTable),
	)

	m.tel.RecordHistogram(ctx, "lsmcore.memtable.pool.immutable.count", float64(immutableCount),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentMemTable),
	)

	m.tel.RecordHistogram(ctx, "lsmcore.memtable.pool.total.size", float64(totalSize),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentMemTable),
	)
}

func (m *memTableMetrics) Close() error {
	return nil
}

type noopMemTableMetrics struct{}

func (n *noopMemTableMetrics) RecordOperation(ctx context.Context, opType string, duration time.Duration) {
}

func (n *noopMemTableMetrics) RecordRotation(ctx context.Context, reason string, memTableSize int64, memTableAge float64) {
}

func (n *noopMemTableMetrics) RecordSizeChange(ctx context.Context, newSize int64, delta int64, memTableType string) {
}

func (n *noopMemTableMetrics) RecordPoolState(ctx context.Context, activeSize int64, immutableCount int, totalSize int64) {
}

func (n *noopMemTableMetrics) Close() error {
	return nil
}

// getRotationReasonName converts rotation triggers to telemetry strings
func getRotationReasonName(sizeTriggered bool, ageTriggered bool, manual bool) string {
	if manual {
		return "manual"
	}
	if sizeTriggered && ageTriggered {
		return "size_and_age"
	}
	if sizeTriggered {
		return "size"
	}
	if ageTriggered {
		return "age"
	}
	return "unknown"
}

func getMemTableTypeName(immutable bool) string {
	if immutable {
		return "immutable"
	}
	return "active"
}
