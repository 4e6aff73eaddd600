// Package engine is the read/write facade over the memtable pool. Writes go
// to the active memtable; reads merge every memtable newest first so that
// the most recent version of a key shadows older ones.
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/KevoDB/lsmcore/pkg/common/iterator"
	"github.com/KevoDB/lsmcore/pkg/common/iterator/bounded"
	"github.com/KevoDB/lsmcore/pkg/common/iterator/composite"
	"github.com/KevoDB/lsmcore/pkg/common/iterator/filtered"
	"github.com/KevoDB/lsmcore/pkg/common/iterator/fused"
	"github.com/KevoDB/lsmcore/pkg/common/log"
	"github.com/KevoDB/lsmcore/pkg/config"
	itermetrics "github.com/KevoDB/lsmcore/pkg/iterator"
	"github.com/KevoDB/lsmcore/pkg/memtable"
	"github.com/KevoDB/lsmcore/pkg/sstable"
	"github.com/KevoDB/lsmcore/pkg/sstable/block"
	"github.com/KevoDB/lsmcore/pkg/stats"
	"github.com/KevoDB/lsmcore/pkg/telemetry"
	"github.com/cockroachdb/errors"
)

// FlushHandler receives the runs built from flushed immutable memtables.
// Returning an error keeps the memtables in the pool.
type FlushHandler func(runs []*sstable.Run) error

// Option configures an Engine
type Option func(*Engine)

// WithTelemetry records metrics through tel instead of the provider built
// from the configuration. The engine does not shut tel down.
func WithTelemetry(tel telemetry.Telemetry) Option {
	return func(e *Engine) {
		e.tel = tel
	}
}

// WithLogger sets the engine logger
func WithLogger(logger log.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithFlushHandler flushes the immutable memtables through handler whenever
// more are held than the configuration allows
func WithFlushHandler(handler FlushHandler) Option {
	return func(e *Engine) {
		e.flushHandler = handler
	}
}

// Engine is the storage engine facade
type Engine struct {
	cfg  *config.Config
	pool *memtable.MemTablePool

	// lastSeqNum is only written under writeMu
	lastSeqNum   atomic.Uint64
	writeMu      sync.Mutex
	closed       atomic.Bool
	flushHandler FlushHandler

	stats       *stats.AtomicCollector
	tel         telemetry.Telemetry
	ownsTel     bool
	metrics     EngineMetrics
	iterMetrics itermetrics.IteratorMetrics
	runMetrics  sstable.BuilderMetrics
	memMetrics  memtable.MemTableMetrics
	logger      log.Logger
}

// NewEngine creates an engine. A nil cfg uses the defaults. The engine keeps
// its own copy of cfg; later updates to cfg do not reach it.
func NewEngine(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	} else {
		cfg = cfg.Clone()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "failed to create engine")
	}

	e := &Engine{
		cfg:   cfg,
		pool:  memtable.NewMemTablePool(cfg),
		stats: stats.NewAtomicCollector(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = log.NewStandardLogger(log.WithLevel(cfg.Level())).WithField("component", "engine")
	}

	if e.tel == nil {
		tel, err := telemetry.New(cfg.Telemetry)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create telemetry")
		}
		e.tel = tel
		e.ownsTel = true
	}

	e.metrics = NewEngineMetrics(e.tel)
	e.iterMetrics = itermetrics.NewIteratorMetrics(e.tel)
	e.runMetrics = sstable.NewBuilderMetrics(e.tel)
	e.memMetrics = memtable.NewMemTableMetrics(e.tel)
	e.pool.SetTelemetry(e.memMetrics)

	e.logger.Info("Engine started (memtable size %d, block size %d, max immutables %d)",
		cfg.MemTableSize, cfg.BlockSize, cfg.MaxImmutableMemTables)
	return e, nil
}

// observe records the outcome of an operation in stats and telemetry
func (e *Engine) observe(op stats.OperationType, start time.Time, err error) {
	latency := time.Since(start)
	e.stats.TrackOperationWithLatency(op, uint64(latency.Nanoseconds()))

	ctx := context.Background()
	if err != nil && !isNotFound(err) {
		e.stats.TrackError(string(op) + "_error")
		e.metrics.RecordError(ctx, string(op), err)
	} else {
		err = nil
	}
	e.metrics.RecordEngineOperation(ctx, string(op), latency, err)
}

func checkEntry(key, value []byte) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}
	if len(key) > block.MaxKeySize {
		return errors.Wrapf(ErrEntryTooLarge, "key of %d bytes exceeds %d", len(key), block.MaxKeySize)
	}
	if len(value) > block.MaxValueSize {
		return errors.Wrapf(ErrEntryTooLarge, "value of %d bytes exceeds %d", len(value), block.MaxValueSize)
	}
	return nil
}

// Put stores value under key. The empty value is reserved for tombstones
// and rejected.
func (e *Engine) Put(key, value []byte) (err error) {
	start := time.Now()
	defer func() { e.observe(stats.OpPut, start, err) }()

	if e.closed.Load() {
		return ErrEngineClosed
	}
	if err := checkEntry(key, value); err != nil {
		return err
	}
	if len(value) == 0 {
		return ErrEmptyValue
	}

	// the memtable retains what it is given
	k := append([]byte(nil), key...)
	v := append([]byte(nil), value...)

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	e.pool.Put(k, v, e.lastSeqNum.Add(1))
	e.stats.TrackBytes(true, uint64(len(key)+len(value)))
	e.afterWriteLocked()
	return nil
}

// Delete hides key from reads by writing a tombstone
func (e *Engine) Delete(key []byte) (err error) {
	start := time.Now()
	defer func() { e.observe(stats.OpDelete, start, err) }()

	if e.closed.Load() {
		return ErrEngineClosed
	}
	if err := checkEntry(key, nil); err != nil {
		return err
	}

	k := append([]byte(nil), key...)

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	e.pool.Delete(k, e.lastSeqNum.Add(1))
	e.stats.TrackBytes(true, uint64(len(key)))
	e.afterWriteLocked()
	return nil
}

// afterWriteLocked rotates the active memtable once it is due and flushes
// the immutables when too many are held. The write has already been applied,
// so a failed flush is logged and counted but not returned; the immutables
// stay in the pool and the flush is retried at the next rotation.
func (e *Engine) afterWriteLocked() {
	size := e.pool.TotalSize()
	e.stats.TrackMemTableSize(uint64(size))
	e.metrics.RecordMemoryUsage(context.Background(), telemetry.ComponentMemTable, size)

	if !e.pool.IsFlushNeeded() {
		return
	}
	e.freezeLocked()

	if !e.pool.IsFull() {
		return
	}
	if e.flushHandler == nil {
		e.logger.Warn("Holding %d immutable memtables, no flush handler configured", e.pool.ImmutableCount())
		return
	}

	start := time.Now()
	err := e.flushLocked(e.flushHandler)
	e.observe(stats.OpFlush, start, err)
}

// Get returns the newest value of key. Deleted and absent keys both yield
// ErrKeyNotFound.
func (e *Engine) Get(key []byte) (value []byte, err error) {
	start := time.Now()
	defer func() { e.observe(stats.OpGet, start, err) }()

	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}

	v, found := e.pool.Get(key)
	if !found || v == nil {
		e.logger.Debug("Get miss for %q", key)
		return nil, ErrKeyNotFound
	}

	e.stats.TrackBytes(false, uint64(len(key)+len(v)))
	return append([]byte(nil), v...), nil
}

// Scan returns an iterator over the live entries with start <= key < end in
// ascending order. A nil start begins at the first key and a nil end runs to
// the last. Next on the returned iterator yields ErrExhausted at the end; a
// source failure latches and every later Next fails.
func (e *Engine) Scan(start, end []byte) (it *fused.Iterator, err error) {
	began := time.Now()
	defer func() { e.observe(stats.OpScan, began, err) }()

	if e.closed.Load() {
		return nil, ErrEngineClosed
	}

	ctx := context.Background()
	merged := e.mergeMemTables(ctx, start)

	live, err := filtered.SkipTombstones(merged,
		filtered.WithMetrics(e.iterMetrics), filtered.WithContext(ctx))
	if err != nil {
		return nil, errors.Wrap(err, "failed to position scan")
	}

	var inner iterator.Iterator = live
	if end != nil {
		inner = bounded.New(live, end)
	}

	return fused.New(NewLsmIterator(inner),
		fused.WithMetrics(e.iterMetrics),
		fused.WithContext(ctx),
		fused.WithLogger(e.logger),
	), nil
}

// mergeMemTables merges the sources of every memtable, newest first, from
// start onwards. Tombstones are kept.
func (e *Engine) mergeMemTables(ctx context.Context, start []byte) *composite.MergeIterator {
	tables := e.pool.GetMemTables()
	sources := make([]iterator.Iterator, len(tables))
	for i, table := range tables {
		sources[i] = table.NewIterator(start)
	}

	return composite.NewMergeIterator(sources,
		composite.WithMetrics(e.iterMetrics), composite.WithContext(ctx))
}

// Freeze makes the active memtable immutable and starts a new one. An empty
// active memtable is left in place.
func (e *Engine) Freeze() (err error) {
	start := time.Now()
	defer func() { e.observe(stats.OpFreeze, start, err) }()

	if e.closed.Load() {
		return ErrEngineClosed
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	if e.pool.GetMemTables()[0].Len() == 0 {
		return nil
	}
	e.freezeLocked()
	return nil
}

func (e *Engine) freezeLocked() {
	frozen := e.pool.SwitchToNewMemTable()
	e.stats.TrackRotation()
	e.logger.Info("Froze memtable of %d entries (%d bytes), %d immutable",
		frozen.Len(), frozen.ApproximateSize(), e.pool.ImmutableCount())
}

// BuildRun merges every memtable, tombstones included, into a single sorted
// run. The memtables are left untouched.
func (e *Engine) BuildRun() (run *sstable.Run, err error) {
	start := time.Now()
	defer func() { e.observe(stats.OpBuildRun, start, err) }()

	if e.closed.Load() {
		return nil, ErrEngineClosed
	}

	ctx := context.Background()
	run, err = sstable.BuildFromIterator(e.mergeMemTables(ctx, nil), e.writerOptions(ctx)...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build run")
	}

	e.trackRuns(ctx, string(stats.OpBuildRun), run)
	return run, nil
}

// Flush builds runs of at most the configured target size from the
// immutable memtables and hands them to handler. The memtables are released
// only if handler succeeds. Flush does not freeze the active memtable.
func (e *Engine) Flush(handler FlushHandler) (err error) {
	if handler == nil {
		panic(errors.AssertionFailedf("Flush called with a nil handler"))
	}
	start := time.Now()
	defer func() { e.observe(stats.OpFlush, start, err) }()

	if e.closed.Load() {
		return ErrEngineClosed
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	return e.flushLocked(handler)
}

func (e *Engine) flushLocked(handler FlushHandler) error {
	immutables := e.pool.GetMemTables()[1:]
	if len(immutables) == 0 {
		return nil
	}

	sources := make([]iterator.Iterator, len(immutables))
	for i, table := range immutables {
		sources[i] = table.NewIterator(nil)
	}

	ctx := context.Background()
	merged := composite.NewMergeIterator(sources,
		composite.WithMetrics(e.iterMetrics), composite.WithContext(ctx))

	runs, err := sstable.BuildRuns(merged, e.cfg.RunTargetSize, e.writerOptions(ctx)...)
	if err != nil {
		return errors.Wrap(err, "failed to build runs")
	}

	if err := handler(runs); err != nil {
		e.logger.Error("Flush handler failed, keeping %d immutable memtables: %v", len(immutables), err)
		return errors.Wrap(err, "flush handler failed")
	}

	// writeMu is held, so no memtable was frozen since the snapshot above
	e.pool.GetImmutablesForFlush()
	e.trackRuns(ctx, string(stats.OpFlush), runs...)
	e.logger.Info("Flushed %d immutable memtables into %d runs", len(immutables), len(runs))
	return nil
}

func (e *Engine) writerOptions(ctx context.Context) []sstable.WriterOption {
	return []sstable.WriterOption{
		sstable.WithBlockSize(e.cfg.BlockSize),
		sstable.WithMetrics(e.runMetrics),
		sstable.WithContext(ctx),
		sstable.WithLogger(e.logger),
	}
}

func (e *Engine) trackRuns(ctx context.Context, operation string, runs ...*sstable.Run) {
	for _, run := range runs {
		e.stats.TrackRun(len(run.Blocks()), run.NumEntries(), run.Size())
		e.metrics.RecordRunBuilt(ctx, operation, run.NumEntries(), run.Size())
		e.logger.Info("Built run of %d entries in %d blocks (%d bytes)",
			run.NumEntries(), len(run.Blocks()), run.Size())
	}
}

// Stats returns the engine statistics together with the pool state
func (e *Engine) Stats() map[string]interface{} {
	result := e.stats.GetStats()
	result["immutable_memtables"] = e.pool.ImmutableCount()
	result["memtable_total_size"] = e.pool.TotalSize()
	result["last_sequence"] = e.lastSeqNum.Load()
	return result
}

// Close shuts the engine down. Iterators already handed out stay readable.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return ErrEngineClosed
	}

	var errs error
	for _, m := range []telemetry.ComponentMetrics{e.metrics, e.iterMetrics, e.runMetrics, e.memMetrics} {
		errs = errors.CombineErrors(errs, m.Close())
	}
	if e.ownsTel {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		errs = errors.CombineErrors(errs, e.tel.Shutdown(ctx))
	}

	e.logger.Info("Engine closed")
	return errs
}
