package stats

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// OperationType names a tracked engine operation
type OperationType string

const (
	OpPut      OperationType = "put"
	OpGet      OperationType = "get"
	OpDelete   OperationType = "delete"
	OpScan     OperationType = "scan"
	OpFreeze   OperationType = "freeze"
	OpBuildRun OperationType = "build_run"
	OpFlush    OperationType = "flush"
)

// AtomicCollector collects statistics with atomic counters. Maps are only
// locked for writing when a new operation or error type first appears.
type AtomicCollector struct {
	counts   map[OperationType]*atomic.Uint64
	countsMu sync.RWMutex

	lastOpTime   map[OperationType]time.Time
	lastOpTimeMu sync.RWMutex

	memTableSize      atomic.Uint64
	totalBytesRead    atomic.Uint64
	totalBytesWritten atomic.Uint64

	errors   map[string]*atomic.Uint64
	errorsMu sync.RWMutex

	rotationCount atomic.Uint64
	runCount      atomic.Uint64
	runBlocks     atomic.Uint64
	runEntries    atomic.Uint64
	runBytes      atomic.Uint64

	latencies   map[OperationType]*LatencyTracker
	latenciesMu sync.RWMutex
}

// LatencyTracker maintains running statistics about operation latencies
type LatencyTracker struct {
	count atomic.Uint64
	sum   atomic.Uint64 // nanoseconds
	max   atomic.Uint64
	min   atomic.Uint64 // zero until the first sample
}

// NewAtomicCollector creates an empty collector
func NewAtomicCollector() *AtomicCollector {
	return &AtomicCollector{
		counts:     make(map[OperationType]*atomic.Uint64),
		lastOpTime: make(map[OperationType]time.Time),
		errors:     make(map[string]*atomic.Uint64),
		latencies:  make(map[OperationType]*LatencyTracker),
	}
}

// TrackOperation increments the counter for op
func (c *AtomicCollector) TrackOperation(op OperationType) {
	getOrCreate(&c.countsMu, c.counts, op, func() *atomic.Uint64 { return &atomic.Uint64{} }).Add(1)

	c.lastOpTimeMu.Lock()
	c.lastOpTime[op] = time.Now()
	c.lastOpTimeMu.Unlock()
}

// TrackOperationWithLatency tracks an operation and its latency
func (c *AtomicCollector) TrackOperationWithLatency(op OperationType, latencyNs uint64) {
	c.TrackOperation(op)

	tracker := getOrCreate(&c.latenciesMu, c.latencies, op, func() *LatencyTracker { return &LatencyTracker{} })
	tracker.record(latencyNs)
}

func (t *LatencyTracker) record(latencyNs uint64) {
	t.count.Add(1)
	t.sum.Add(latencyNs)

	for {
		current := t.max.Load()
		if latencyNs <= current || t.max.CompareAndSwap(current, latencyNs) {
			break
		}
	}

	for {
		current := t.min.Load()
		if current != 0 && latencyNs >= current {
			break
		}
		if t.min.CompareAndSwap(current, latencyNs) {
			break
		}
	}
}

// TrackError increments the counter for errorType
func (c *AtomicCollector) TrackError(errorType string) {
	getOrCreate(&c.errorsMu, c.errors, errorType, func() *atomic.Uint64 { return &atomic.Uint64{} }).Add(1)
}

// TrackBytes adds bytes to the read or write counter
func (c *AtomicCollector) TrackBytes(isWrite bool, bytes uint64) {
	if isWrite {
		c.totalBytesWritten.Add(bytes)
	} else {
		c.totalBytesRead.Add(bytes)
	}
}

// TrackMemTableSize records the current total memtable size
func (c *AtomicCollector) TrackMemTableSize(size uint64) {
	c.memTableSize.Store(size)
}

// TrackRotation increments the rotation counter
func (c *AtomicCollector) TrackRotation() {
	c.rotationCount.Add(1)
}

// TrackRun records a built run
func (c *AtomicCollector) TrackRun(blocks, entries int, bytes uint64) {
	c.runCount.Add(1)
	c.runBlocks.Add(uint64(blocks))
	c.runEntries.Add(uint64(entries))
	c.runBytes.Add(bytes)
}

// GetStats returns all statistics as a map
func (c *AtomicCollector) GetStats() map[string]interface{} {
	stats := make(map[string]interface{})

	c.countsMu.RLock()
	for op, counter := range c.counts {
		stats[string(op)+"_ops"] = counter.Load()
	}
	c.countsMu.RUnlock()

	c.lastOpTimeMu.RLock()
	for op, timestamp := range c.lastOpTime {
		stats["last_"+string(op)+"_time"] = timestamp.UnixNano()
	}
	c.lastOpTimeMu.RUnlock()

	stats["memtable_size"] = c.memTableSize.Load()
	stats["total_bytes_read"] = c.totalBytesRead.Load()
	stats["total_bytes_written"] = c.totalBytesWritten.Load()
	stats["rotation_count"] = c.rotationCount.Load()
	stats["run_count"] = c.runCount.Load()
	stats["run_blocks"] = c.runBlocks.Load()
	stats["run_entries"] = c.runEntries.Load()
	stats["run_bytes"] = c.runBytes.Load()

	c.errorsMu.RLock()
	errorStats := make(map[string]uint64, len(c.errors))
	for errType, counter := range c.errors {
		errorStats[errType] = counter.Load()
	}
	c.errorsMu.RUnlock()
	stats["errors"] = errorStats

	c.latenciesMu.RLock()
	for op, tracker := range c.latencies {
		count := tracker.count.Load()
		if count == 0 {
			continue
		}

		latencyStats := map[string]interface{}{
			"count":  count,
			"avg_ns": tracker.sum.Load() / count,
		}
		if min := tracker.min.Load(); min != 0 {
			latencyStats["min_ns"] = min
		}
		if max := tracker.max.Load(); max != 0 {
			latencyStats["max_ns"] = max
		}
		stats[string(op)+"_latency"] = latencyStats
	}
	c.latenciesMu.RUnlock()

	return stats
}

// GetStatsFiltered returns the statistics whose name starts with prefix
func (c *AtomicCollector) GetStatsFiltered(prefix string) map[string]interface{} {
	filtered := make(map[string]interface{})
	for name, value := range c.GetStats() {
		if strings.HasPrefix(name, prefix) {
			filtered[name] = value
		}
	}
	return filtered
}

// getOrCreate returns m[k], creating it under the write lock on first use
func getOrCreate[K comparable, V any](mu *sync.RWMutex, m map[K]V, k K, create func() V) V {
	mu.RLock()
	v, ok := m[k]
	mu.RUnlock()
	if ok {
		return v
	}

	mu.Lock()
	defer mu.Unlock()
	if v, ok = m[k]; !ok {
		v = create()
		m[k] = v
	}
	return v
}
