// Package bounded limits an iterator to a key range.
package bounded

import (
	"github.com/KevoDB/lsmcore/pkg/common/iterator"
	"github.com/KevoDB/lsmcore/pkg/common/key"
)

// BoundedIterator wraps an iterator and limits it to [start, end).
// A nil end means no upper bound.
type BoundedIterator struct {
	iter  iterator.Iterator
	start key.Owned
	end   key.Owned
}

// New creates an iterator that stops at the first key >= end
func New(iter iterator.Iterator, end []byte) *BoundedIterator {
	bi := &BoundedIterator{iter: iter}
	if end != nil {
		bi.end = key.View(end).Clone()
	}
	return bi
}

// NewRange creates an iterator over [start, end). Entries before start are
// skipped immediately, which may fail if the wrapped iterator does. Sources
// that can seek should be positioned at start instead.
func NewRange(iter iterator.Iterator, start, end []byte) (*BoundedIterator, error) {
	bi := New(iter, end)
	if start != nil {
		bi.start = key.View(start).Clone()
	}

	for bi.iter.Valid() && bi.start != nil && key.Compare(bi.iter.Key(), bi.start.View()) < 0 {
		if err := iterator.Advance(bi.iter); err != nil {
			return nil, err
		}
	}
	return bi, nil
}

// Valid returns true if the iterator is positioned at an entry within bounds
func (b *BoundedIterator) Valid() bool {
	if !b.iter.Valid() {
		return false
	}
	return b.end == nil || key.Compare(b.iter.Key(), b.end.View()) < 0
}

// Key returns the current key if within bounds
func (b *BoundedIterator) Key() key.View {
	if !b.Valid() {
		return nil
	}
	return b.iter.Key()
}

// Value returns the current value if within bounds
func (b *BoundedIterator) Value() []byte {
	if !b.Valid() {
		return nil
	}
	return b.iter.Value()
}

// Next advances the wrapped iterator. Once past the end bound it is never
// advanced again.
func (b *BoundedIterator) Next() error {
	if !b.Valid() {
		return nil
	}
	return iterator.Advance(b.iter)
}

// Start returns the inclusive lower bound, or nil
func (b *BoundedIterator) Start() key.View {
	return b.start.View()
}

// End returns the exclusive upper bound, or nil
func (b *BoundedIterator) End() key.View {
	return b.end.View()
}
