package memtable

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/KevoDB/lsmcore/pkg/config"
	"github.com/KevoDB/lsmcore/pkg/telemetry"
)

// MemTablePool manages a pool of MemTables
// It maintains one active MemTable and a set of immutable MemTables
type MemTablePool struct {
	active     *MemTable
	immutables []*MemTable // oldest first
	maxAge     time.Duration
	maxSize    int64
	maxFrozen  int

	flushPending  atomic.Bool
	pendingReason atomic.Value // string
	mu            sync.RWMutex
	metrics       MemTableMetrics
}

// NewMemTablePool creates a new MemTable pool
func NewMemTablePool(cfg *config.Config) *MemTablePool {
	return &MemTablePool{
		active:     NewMemTable(),
		immutables: make([]*MemTable, 0, cfg.MaxImmutableMemTables),
		maxAge:     time.Duration(cfg.MaxMemTableAge) * time.Second,
		maxSize:    cfg.MemTableSize,
		maxFrozen:  cfg.MaxImmutableMemTables,
		metrics:    NewNoopMemTableMetrics(),
	}
}

// SetTelemetry sets the metrics implementation. Values that are not
// MemTableMetrics are ignored.
func (p *MemTablePool) SetTelemetry(tel interface{}) {
	metrics, ok := tel.(MemTableMetrics)
	if !ok {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.metrics = metrics
}

func (p *MemTablePool) getMetrics() MemTableMetrics {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.metrics
}

// Put adds a key-value pair to the active MemTable
func (p *MemTablePool) Put(key, value []byte, seqNum uint64) {
	p.write(telemetry.OpTypePut, func(m *MemTable) { m.Put(key, value, seqNum) })
}

// Delete marks a key as deleted in the active MemTable
func (p *MemTablePool) Delete(key []byte, seqNum uint64) {
	p.write(telemetry.OpTypeDelete, func(m *MemTable) { m.Delete(key, seqNum) })
}

func (p *MemTablePool) write(opType string, apply func(*MemTable)) {
	start := time.Now()

	p.mu.RLock()
	active := p.active
	metrics := p.metrics
	before := active.ApproximateSize()
	apply(active)
	after := active.ApproximateSize()
	p.mu.RUnlock()

	ctx := context.Background()
	metrics.RecordOperation(ctx, opType, time.Since(start))
	metrics.RecordSizeChange(ctx, after, after-before, getMemTableTypeName(false))

	p.checkFlushConditions()
}

// Get retrieves the value for a key from all MemTables, newest first
func (p *MemTablePool) Get(key []byte) ([]byte, bool) {
	start := time.Now()

	p.mu.RLock()
	defer p.mu.RUnlock()
	defer func() {
		p.metrics.RecordOperation(context.Background(), telemetry.OpTypeGet, time.Since(start))
	}()

	if value, found := p.active.Get(key); found {
		return value, true
	}

	for i := len(p.immutables) - 1; i >= 0; i-- {
		if value, found := p.immutables[i].Get(key); found {
			return value, true
		}
	}

	return nil, false
}

// ImmutableCount returns the number of immutable MemTables
func (p *MemTablePool) ImmutableCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.immutables)
}

// IsFull returns true once more immutable MemTables are held than configured
func (p *MemTablePool) IsFull() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.immutables) > p.maxFrozen
}

// checkFlushConditions marks the active MemTable for rotation once it is too
// large or too old
func (p *MemTablePool) checkFlushConditions() {
	if p.flushPending.Load() {
		return
	}

	p.mu.RLock()
	sizeTriggered := p.active.ApproximateSize() >= p.maxSize
	ageTriggered := p.maxAge > 0 && p.active.Age() > p.maxAge.Seconds()
	p.mu.RUnlock()

	if sizeTriggered || ageTriggered {
		p.pendingReason.Store(getRotationReasonName(sizeTriggered, ageTriggered, false))
		p.flushPending.Store(true)
	}
}

// SwitchToNewMemTable makes the active MemTable immutable and creates a new active one
// Returns the MemTable that was frozen
func (p *MemTablePool) SwitchToNewMemTable() *MemTable {
	p.mu.Lock()

	reason := "manual"
	if p.flushPending.Load() {
		if r, ok := p.pendingReason.Load().(string); ok {
			reason = r
		}
	}
	p.flushPending.Store(false)

	oldActive := p.active
	oldActive.SetImmutable()
	p.active = NewMemTable()
	p.immutables = append(p.immutables, oldActive)

	activeSize, immutableCount, totalSize := p.active.ApproximateSize(), len(p.immutables), p.totalSizeLocked()
	metrics := p.metrics
	p.mu.Unlock()

	ctx := context.Background()
	metrics.RecordRotation(ctx, reason, oldActive.ApproximateSize(), oldActive.Age())
	metrics.RecordPoolState(ctx, activeSize, immutableCount, totalSize)

	return oldActive
}

// GetImmutablesForFlush removes and returns the immutable MemTables,
// newest first
func (p *MemTablePool) GetImmutablesForFlush() []*MemTable {
	p.mu.Lock()
	defer p.mu.Unlock()

	result := reversed(p.immutables)
	p.immutables = make([]*MemTable, 0, p.maxFrozen)

	p.metrics.RecordPoolState(context.Background(), p.active.ApproximateSize(), 0, p.active.ApproximateSize())
	return result
}

// IsFlushNeeded returns true if the active MemTable should be rotated
func (p *MemTablePool) IsFlushNeeded() bool {
	return p.flushPending.Load()
}

// GetMemTables returns all MemTables newest first: the active one followed
// by the immutables from most to least recently frozen. This is the priority
// order a merge over them expects.
func (p *MemTablePool) GetMemTables() []*MemTable {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]*MemTable, 0, len(p.immutables)+1)
	result = append(result, p.active)
	result = append(result, reversed(p.immutables)...)
	return result
}

// TotalSize returns the total approximate size of all memtables in the pool
func (p *MemTablePool) TotalSize() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.totalSizeLocked()
}

func (p *MemTablePool) totalSizeLocked() int64 {
	total := p.active.ApproximateSize()
	for _, m := range p.immutables {
		total += m.ApproximateSize()
	}
	return total
}

func reversed(tables []*MemTable) []*MemTable {
	out := make([]*MemTable, len(tables))
	for i, m := range tables {
		out[len(tables)-1-i] = m
	}
	return out
}
