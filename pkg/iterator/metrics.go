// ABOUTME: Iterator telemetry for merge construction, Next outcomes, duplicate draining and fuse latches
// ABOUTME: Every method is optional; the no-op implementation is used when telemetry is disabled

package iterator

import (
	"context"
	"time"

	"github.com/KevoDB/lsmcore/pkg/common/iterator"
	"github.com/KevoDB/lsmcore/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// Iterator type labels
const (
	TypeMerge    = "merge"
	TypeFused    = "fused"
	TypeFiltered = "filtered"
	TypeBounded  = "bounded"
	TypeLsm      = "lsm"
)

// IteratorMetrics records iterator activity.
type IteratorMetrics interface {
	telemetry.ComponentMetrics

	// RecordMergeCreated records a merge over sourceCount inputs of which live were valid.
	RecordMergeCreated(ctx context.Context, sourceCount, live int)

	// RecordNext records the duration and outcome of a Next call.
	RecordNext(ctx context.Context, iteratorType string, duration time.Duration, err error, valid bool)

	// RecordDuplicatesDrained records how many shadowed entries a single Next skipped.
	RecordDuplicatesDrained(ctx context.Context, count int64)

	// RecordFuseLatched records a fused iterator entering its errored state.
	RecordFuseLatched(ctx context.Context, err error)

	// RecordFiltered records entries dropped by a filtering wrapper.
	RecordFiltered(ctx context.Context, iteratorType string, skipped int64)
}

type iteratorMetrics struct {
	tel telemetry.Telemetry
}

// NewIteratorMetrics creates iterator metrics on top of tel.
// A nil tel yields the no-op implementation.
func NewIteratorMetrics(tel telemetry.Telemetry) IteratorMetrics {
	if tel == nil {
		return &noopIteratorMetrics{}
	}
	return &iteratorMetrics{tel: tel}
}

// NewNoopIteratorMetrics returns metrics that record nothing.
func NewNoopIteratorMetrics() IteratorMetrics {
	return &noopIteratorMetrics{}
}

func (m *iteratorMetrics) RecordMergeCreated(ctx context.Context, sourceCount, live int) {
	m.tel.RecordHistogram(ctx, "lsmcore.iterator.merge.sources", float64(sourceCount),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentIterator),
	)

	m.tel.RecordCounter(ctx, "lsmcore.iterator.created.total", 1,
		attribute.String(telemetry.AttrComponent, telemetry.ComponentIterator),
		attribute.String(telemetry.AttrIteratorType, TypeMerge),
		attribute.Int(telemetry.AttrSourceCount, sourceCount),
		attribute.Int("source.live", live),
	)
}

func (m *iteratorMetrics) RecordNext(ctx context.Context, iteratorType string, duration time.Duration, err error, valid bool) {
	status := nextStatus(err, valid)

	m.tel.RecordHistogram(ctx, "lsmcore.iterator.next.duration", duration.Seconds(),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentIterator),
		attribute.String(telemetry.AttrIteratorType, iteratorType),
	)

	m.tel.RecordCounter(ctx, "lsmcore.iterator.operations.total", 1,
		attribute.String(telemetry.AttrComponent, telemetry.ComponentIterator),
		attribute.String(telemetry.AttrIteratorType, iteratorType),
		attribute.String(telemetry.AttrOperationType, telemetry.OpTypeNext),
		attribute.String(telemetry.AttrStatus, status),
	)
}

func (m *iteratorMetrics) RecordDuplicatesDrained(ctx context.Context, count int64) {
	if count <= 0 {
		return
	}
	m.tel.RecordCounter(ctx, "lsmcore.iterator.merge.duplicates_drained", count,
		attribute.String(telemetry.AttrComponent, telemetry.ComponentIterator),
	)
}

func (m *iteratorMetrics) RecordFuseLatched(ctx context.Context, err error) {
	m.tel.RecordCounter(ctx, "lsmcore.iterator.fused.latched", 1,
		attribute.String(telemetry.AttrComponent, telemetry.ComponentIterator),
		attribute.String(telemetry.AttrIteratorType, TypeFused),
		attribute.String(telemetry.AttrErrorType, errorType(err)),
	)
}

func (m *iteratorMetrics) RecordFiltered(ctx context.Context, iteratorType string, skipped int64) {
	if skipped <= 0 {
		return
	}
	m.tel.RecordCounter(ctx, "lsmcore.iterator.filtered.skipped", skipped,
		attribute.String(telemetry.AttrComponent, telemetry.ComponentIterator),
		attribute.String(telemetry.AttrIteratorType, iteratorType),
	)
}

func (m *iteratorMetrics) Close() error {
	return nil
}

type noopIteratorMetrics struct{}

func (n *noopIteratorMetrics) RecordMergeCreated(ctx context.Context, sourceCount, live int) {}

func (n *noopIteratorMetrics) RecordNext(ctx context.Context, iteratorType string, duration time.Duration, err error, valid bool) {
}

func (n *noopIteratorMetrics) RecordDuplicatesDrained(ctx context.Context, count int64) {}

func (n *noopIteratorMetrics) RecordFuseLatched(ctx context.Context, err error) {}

func (n *noopIteratorMetrics) RecordFiltered(ctx context.Context, iteratorType string, skipped int64) {
}

func (n *noopIteratorMetrics) Close() error { return nil }

func nextStatus(err error, valid bool) string {
	switch {
	case iterator.IsExhausted(err):
		return telemetry.StatusExhausted
	case err != nil:
		return telemetry.StatusError
	case !valid:
		return telemetry.StatusExhausted
	default:
		return telemetry.StatusSuccess
	}
}

func errorType(err error) string {
	if err == nil {
		return "none"
	}
	return "iteration"
}
