// ABOUTME: Engine telemetry tests against a capturing telemetry double
// ABOUTME: Verifies operation outcomes, error types and that components share the engine's telemetry

package engine

import (
	"context"
	"sync"
	"testing"

	"github.com/KevoDB/lsmcore/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type capturedCounter struct {
	value int64
	attrs []attribute.KeyValue
}

// captureTelemetry records every metric it is handed
type captureTelemetry struct {
	mu         sync.Mutex
	counters   map[string][]capturedCounter
	histograms map[string][]float64
	shutdown   bool
}

func newCaptureTelemetry() *captureTelemetry {
	return &captureTelemetry{
		counters:   make(map[string][]capturedCounter),
		histograms: make(map[string][]float64),
	}
}

func (c *captureTelemetry) RecordHistogram(ctx context.Context, name string, value float64, attrs ...attribute.KeyValue) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.histograms[name] = append(c.histograms[name], value)
}

func (c *captureTelemetry) RecordCounter(ctx context.Context, name string, value int64, attrs ...attribute.KeyValue) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[name] = append(c.counters[name], capturedCounter{value: value, attrs: attrs})
}

func (c *captureTelemetry) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return ctx, trace.SpanFromContext(ctx)
}

func (c *captureTelemetry) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shutdown = true
	return nil
}

// count returns how many samples of name carry every given attribute value
func (c *captureTelemetry) count(name string, want map[string]string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, sample := range c.counters[name] {
		matched := 0
		for _, a := range sample.attrs {
			if v, ok := want[string(a.Key)]; ok && a.Value.Emit() == v {
				matched++
			}
		}
		if matched == len(want) {
			n++
		}
	}
	return n
}

func TestEngineTelemetry_Operations(t *testing.T) {
	tel := newCaptureTelemetry()
	e := newTestEngine(t, nil, WithTelemetry(tel))

	_ = e.Put([]byte("a"), []byte("1"))
	_ = e.Put([]byte("b"), []byte("2"))
	_, _ = e.Get([]byte("missing"))
	_ = e.Put(nil, []byte("x"))

	if n := tel.count("lsmcore.engine.operation.count", map[string]string{
		telemetry.AttrOperationType: "put",
		telemetry.AttrStatus:        telemetry.StatusSuccess,
	}); n != 2 {
		t.Errorf("Expected 2 successful puts, got %d", n)
	}

	if n := tel.count("lsmcore.engine.operation.count", map[string]string{
		telemetry.AttrOperationType: "get",
		telemetry.AttrStatus:        telemetry.StatusSuccess,
	}); n != 1 {
		t.Errorf("Expected a miss to count as a successful get, got %d", n)
	}

	if n := tel.count("lsmcore.engine.errors.total", map[string]string{
		telemetry.AttrOperationType: "put",
		telemetry.AttrErrorType:     "invalid_argument",
	}); n != 1 {
		t.Errorf("Expected one invalid put, got %d", n)
	}

	if len(tel.histograms["lsmcore.engine.operation.duration"]) != 4 {
		t.Errorf("Expected 4 duration samples, got %d", len(tel.histograms["lsmcore.engine.operation.duration"]))
	}
}

func TestEngineTelemetry_SharedWithComponents(t *testing.T) {
	tel := newCaptureTelemetry()
	e := newTestEngine(t, nil, WithTelemetry(tel))

	for _, k := range []string{"a", "b", "c"} {
		_ = e.Put([]byte(k), []byte("v"))
	}
	_ = e.Freeze()
	_ = e.Put([]byte("a"), []byte("w"))

	it, err := e.Scan(nil, nil)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	collect(t, it)

	if _, err := e.BuildRun(); err != nil {
		t.Fatalf("BuildRun failed: %v", err)
	}

	if n := tel.count("lsmcore.iterator.created.total", map[string]string{
		telemetry.AttrIteratorType: "merge",
	}); n != 2 {
		t.Errorf("Expected 2 merges, got %d", n)
	}
	if n := tel.count("lsmcore.engine.run.entries", nil); n != 1 {
		t.Errorf("Expected one run recorded, got %d", n)
	}
	if n := tel.count("lsmcore.memtable.rotation.total", nil); n != 1 {
		t.Errorf("Expected the freeze to reach the memtable metrics, got %d rotations", n)
	}
}

func TestEngineTelemetry_OwnershipOnClose(t *testing.T) {
	tel := newCaptureTelemetry()
	e := newTestEngine(t, nil, WithTelemetry(tel))
	if err := e.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if tel.shutdown {
		t.Error("Engine must not shut down telemetry it was handed")
	}
}
