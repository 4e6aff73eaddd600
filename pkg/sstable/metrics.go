// ABOUTME: Run builder telemetry for finished blocks, capacity rejections and finished runs
// ABOUTME: The no-op implementation is used when telemetry is disabled

package sstable

import (
	"context"
	"time"

	"github.com/KevoDB/lsmcore/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// BuilderMetrics records run building activity.
type BuilderMetrics interface {
	telemetry.ComponentMetrics

	// RecordBlockFinished records a block being encoded.
	RecordBlockFinished(ctx context.Context, size int, entries int)

	// RecordRejectedAdd records a block refusing an entry for lack of room.
	RecordRejectedAdd(ctx context.Context)

	// RecordRunFinished records a completed run.
	RecordRunFinished(ctx context.Context, duration time.Duration, blocks int, entries int, bytes uint64)
}

type builderMetrics struct {
	tel telemetry.Telemetry
}

// NewBuilderMetrics creates run builder metrics on top of tel.
// A nil tel yields the no-op implementation.
func NewBuilderMetrics(tel telemetry.Telemetry) BuilderMetrics {
	if tel == nil {
		return &noopBuilderMetrics{}
	}
	return &builderMetrics{tel: tel}
}

// NewNoopBuilderMetrics returns metrics that record nothing.
func NewNoopBuilderMetrics() BuilderMetrics {
	return &noopBuilderMetrics{}
}

func (m *builderMetrics) RecordBlockFinished(ctx context.Context, size int, entries int) {
	m.tel.RecordCounter(ctx, "lsmcore.block.finished.total", 1,
		attribute.String(telemetry.AttrComponent, telemetry.ComponentBlock),
	)

	telemetry.RecordBytes(ctx, m.tel, "lsmcore.block.bytes.total", int64(size),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentBlock),
	)

	m.tel.RecordHistogram(ctx, "lsmcore.block.entries", float64(entries),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentBlock),
	)
}

func (m *builderMetrics) RecordRejectedAdd(ctx context.Context) {
	m.tel.RecordCounter(ctx, "lsmcore.block.add.rejected.total", 1,
		attribute.String(telemetry.AttrComponent, telemetry.ComponentBlock),
		attribute.String(telemetry.AttrStatus, telemetry.StatusRejected),
	)
}

func (m *builderMetrics) RecordRunFinished(ctx context.Context, duration time.Duration, blocks int, entries int, bytes uint64) {
	m.tel.RecordHistogram(ctx, "lsmcore.run.build.duration", duration.Seconds(),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentRun),
		attribute.String(telemetry.AttrOperationType, telemetry.OpTypeBuild),
	)

	m.tel.RecordCounter(ctx, "lsmcore.run.built.total", 1,
		attribute.String(telemetry.AttrComponent, telemetry.ComponentRun),
		attribute.String(telemetry.AttrStatus, telemetry.StatusSuccess),
	)

	m.tel.RecordHistogram(ctx, "lsmcore.run.blocks", float64(blocks),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentRun),
	)

	m.tel.RecordHistogram(ctx, "lsmcore.run.entries", float64(entries),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentRun),
	)

	m.tel.RecordHistogram(ctx, "lsmcore.run.size.bytes", float64(bytes),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentRun),
	)
}

func (m *builderMetrics) Close() error {
	return nil
}

type noopBuilderMetrics struct{}

func (n *noopBuilderMetrics) RecordBlockFinished(ctx context.Context, size int, entries int) {}

func (n *noopBuilderMetrics) RecordRejectedAdd(ctx context.Context) {}

func (n *noopBuilderMetrics) RecordRunFinished(ctx context.Context, duration time.Duration, blocks int, entries int, bytes uint64) {
}

func (n *noopBuilderMetrics) Close() error { return nil }
