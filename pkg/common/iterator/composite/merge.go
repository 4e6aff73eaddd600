package composite

import (
	"container/heap"
	"context"
	"time"

	"github.com/KevoDB/lsmcore/pkg/common/iterator"
	"github.com/KevoDB/lsmcore/pkg/common/key"
	itermetrics "github.com/KevoDB/lsmcore/pkg/iterator"
)

// heapItem is a source together with its position in the input slice.
// The position is its priority: lower wins when keys tie.
type heapItem struct {
	index int
	iter  iterator.Iterator
}

// mergeHeap is a min-heap ordered by (current key, index)
type mergeHeap []*heapItem

func (h mergeHeap) Len() int { return len(h) }

func (h mergeHeap) Less(i, j int) bool {
	if c := key.Compare(h[i].iter.Key(), h[j].iter.Key()); c != 0 {
		return c < 0
	}
	return h[i].index < h[j].index
}

func (h mergeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *mergeHeap) Push(x interface{}) {
	*h = append(*h, x.(*heapItem))
}

func (h *mergeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // avoid memory leak
	*h = old[0 : n-1]
	return item
}

// MergeOption configures a MergeIterator
type MergeOption func(*MergeIterator)

// WithMetrics records merge activity through m
func WithMetrics(m itermetrics.IteratorMetrics) MergeOption {
	return func(mi *MergeIterator) {
		mi.metrics = m
	}
}

// WithContext sets the context metrics are recorded under
func WithContext(ctx context.Context) MergeOption {
	return func(mi *MergeIterator) {
		mi.ctx = ctx
	}
}

// MergeIterator merges sorted sources into one ascending stream without
// duplicate keys. When several sources hold the same key only the one with
// the smallest index is surfaced; the others are advanced past it.
//
// The iterator takes ownership of its sources.
type MergeIterator struct {
	heap       mergeHeap
	current    *heapItem
	numSources int

	metrics itermetrics.IteratorMetrics
	ctx     context.Context
}

// NewMergeIterator creates a merge over sources. Index 0 is the newest
// source and wins every tie. Sources that are already invalid are dropped.
func NewMergeIterator(sources []iterator.Iterator, opts ...MergeOption) *MergeIterator {
	m := &MergeIterator{
		heap:       make(mergeHeap, 0, len(sources)),
		numSources: len(sources),
		metrics:    itermetrics.NewNoopIteratorMetrics(),
		ctx:        context.Background(),
	}
	for _, opt := range opts {
		opt(m)
	}

	for i, src := range sources {
		if src != nil && src.Valid() {
			m.heap = append(m.heap, &heapItem{index: i, iter: src})
		}
	}
	heap.Init(&m.heap)

	m.metrics.RecordMergeCreated(m.ctx, len(sources), m.heap.Len())

	if m.heap.Len() > 0 {
		m.current = heap.Pop(&m.heap).(*heapItem)
	}
	return m
}

// Valid returns true if the iterator is positioned at a valid entry
func (m *MergeIterator) Valid() bool {
	return m.current != nil
}

// Key returns the current key, or nil when the iterator is invalid
func (m *MergeIterator) Key() key.View {
	if m.current == nil {
		return nil
	}
	return m.current.iter.Key()
}

// Value returns the current value, or nil when the iterator is invalid
func (m *MergeIterator) Value() []byte {
	if m.current == nil {
		return nil
	}
	return m.current.iter.Value()
}

// Next moves to the next distinct key. On a source failure the error is
// returned as is and the iterator must not be used again.
func (m *MergeIterator) Next() error {
	if m.current == nil {
		return nil
	}

	start := time.Now()
	err := m.advance()
	m.metrics.RecordNext(m.ctx, itermetrics.TypeMerge, time.Since(start), err, m.current != nil)
	return err
}

func (m *MergeIterator) advance() error {
	cur := m.current
	m.current = nil

	// Advancing the source invalidates its key view
	lastKey := cur.iter.Key().Clone()

	if err := iterator.Advance(cur.iter); err != nil {
		return err
	}
	if cur.iter.Valid() {
		heap.Push(&m.heap, cur)
	}

	var drained int64
	for m.heap.Len() > 0 {
		top := m.heap[0]
		if !key.Equal(top.iter.Key(), lastKey.View()) {
			m.current = heap.Pop(&m.heap).(*heapItem)
			break
		}

		// An older source holds the key just consumed; skip its entry
		if err := iterator.Advance(top.iter); err != nil {
			return err
		}
		drained++

		if top.iter.Valid() {
			heap.Fix(&m.heap, 0)
		} else {
			heap.Pop(&m.heap)
		}
	}

	m.metrics.RecordDuplicatesDrained(m.ctx, drained)
	return nil
}

// NumSources returns the number of sources handed to NewMergeIterator
func (m *MergeIterator) NumSources() int {
	return m.numSources
}

// NumActiveSources returns how many sources still have entries
func (m *MergeIterator) NumActiveSources() int {
	n := m.heap.Len()
	if m.current != nil {
		n++
	}
	return n
}

var _ CompositeIterator = (*MergeIterator)(nil)
