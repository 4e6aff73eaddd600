package sstable

import (
	"context"
	"time"

	"github.com/KevoDB/lsmcore/pkg/common/iterator"
	"github.com/KevoDB/lsmcore/pkg/common/key"
	"github.com/KevoDB/lsmcore/pkg/common/log"
	"github.com/KevoDB/lsmcore/pkg/sstable/block"
	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
)

// WriterOption configures a Writer
type WriterOption func(*Writer)

// WithBlockSize sets the capacity handed to every block builder
func WithBlockSize(size int) WriterOption {
	return func(w *Writer) {
		w.blockSize = size
	}
}

// WithMetrics records block and run activity through m
func WithMetrics(m BuilderMetrics) WriterOption {
	return func(w *Writer) {
		w.metrics = m
	}
}

// WithContext sets the context metrics are recorded under
func WithContext(ctx context.Context) WriterOption {
	return func(w *Writer) {
		w.ctx = ctx
	}
}

// WithLogger sets the logger finished runs are reported to
func WithLogger(logger log.Logger) WriterOption {
	return func(w *Writer) {
		w.logger = logger
	}
}

// Writer splits an ascending entry stream into blocks. When a block rejects
// an entry the block is finished and the entry starts the next one.
type Writer struct {
	blockSize int
	builder   *block.Builder
	lastKey   key.Owned
	finished  bool
	started   time.Time

	run Run

	metrics BuilderMetrics
	ctx     context.Context
	logger  log.Logger
}

// NewWriter creates a Writer for a single run
func NewWriter(opts ...WriterOption) *Writer {
	w := &Writer{
		blockSize: DefaultBlockSize,
		metrics:   NewNoopBuilderMetrics(),
		ctx:       context.Background(),
		started:   time.Now(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = log.GetDefaultLogger().WithField("component", "run_writer")
	}
	w.builder = block.NewBuilder(w.blockSize)
	return w
}

// Add appends an entry. Keys must be strictly increasing.
func (w *Writer) Add(k key.View, value []byte) error {
	if w.finished {
		return ErrWriterFinished
	}
	if w.run.numEntries > 0 && key.Compare(k, w.lastKey.View()) <= 0 {
		return errors.Wrapf(ErrOutOfOrder, "got %q after %q", k, w.lastKey)
	}

	if !w.builder.Add(k, value) {
		w.metrics.RecordRejectedAdd(w.ctx)
		w.flushBlock()
		if !w.builder.Add(k, value) {
			panic(errors.AssertionFailedf("fresh block rejected its first entry"))
		}
	}

	w.lastKey = append(w.lastKey[:0], k...)
	w.run.numEntries++
	return nil
}

// flushBlock finishes the current block, if any, and starts a new builder
func (w *Writer) flushBlock() {
	if w.builder.IsEmpty() {
		return
	}

	blk := w.builder.Build()
	encoded := blk.Encode()

	w.run.blocks = append(w.run.blocks, blk)
	w.run.index = append(w.run.index, BlockMeta{
		Offset:     w.run.size,
		Size:       uint32(len(encoded)),
		FirstKey:   blk.FirstKey().Clone(),
		LastKey:    w.lastKey.View().Clone(),
		NumEntries: blk.NumEntries(),
		Checksum:   xxhash.Sum64(encoded),
	})
	w.run.size += uint64(len(encoded))

	w.metrics.RecordBlockFinished(w.ctx, len(encoded), blk.NumEntries())
	w.builder = block.NewBuilder(w.blockSize)
}

// Size returns the encoded size of the blocks finished so far plus the
// current block's estimate
func (w *Writer) Size() uint64 {
	return w.run.size + uint64(w.builder.EstimatedSize())
}

// NumEntries returns the number of entries added so far
func (w *Writer) NumEntries() int {
	return w.run.numEntries
}

// Finish flushes the last block and returns the run
func (w *Writer) Finish() (*Run, error) {
	if w.finished {
		return nil, ErrWriterFinished
	}
	w.flushBlock()
	w.finished = true

	run := w.run
	w.metrics.RecordRunFinished(w.ctx, time.Since(w.started), len(run.blocks), run.numEntries, run.size)
	w.logger.Debug("Built run of %d entries in %d blocks (%d bytes)", run.numEntries, len(run.blocks), run.size)
	return &run, nil
}

// BuildFromIterator drains iter into a single run
func BuildFromIterator(iter iterator.Iterator, opts ...WriterOption) (*Run, error) {
	w := NewWriter(opts...)
	for iter.Valid() {
		if err := w.Add(iter.Key(), iter.Value()); err != nil {
			return nil, err
		}
		if err := iterator.Advance(iter); err != nil {
			return nil, errors.Wrap(err, "failed to advance source")
		}
	}
	return w.Finish()
}

// BuildRuns drains iter into consecutive runs, cutting a run as soon as it
// reaches targetSize bytes. A targetSize of zero or less yields a single run.
// Keys never straddle two runs and the runs are in key order.
func BuildRuns(iter iterator.Iterator, targetSize int64, opts ...WriterOption) ([]*Run, error) {
	var runs []*Run
	w := NewWriter(opts...)

	for iter.Valid() {
		if err := w.Add(iter.Key(), iter.Value()); err != nil {
			return nil, err
		}
		if err := iterator.Advance(iter); err != nil {
			return nil, errors.Wrap(err, "failed to advance source")
		}

		if targetSize > 0 && w.Size() >= uint64(targetSize) && iter.Valid() {
			run, err := w.Finish()
			if err != nil {
				return nil, err
			}
			runs = append(runs, run)
			w = NewWriter(opts...)
		}
	}

	run, err := w.Finish()
	if err != nil {
		return nil, err
	}
	return append(runs, run), nil
}
