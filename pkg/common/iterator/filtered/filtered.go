// Package filtered provides iterators that filter entries based on different criteria
package filtered

import (
	"bytes"
	"context"

	"github.com/KevoDB/lsmcore/pkg/common/iterator"
	"github.com/KevoDB/lsmcore/pkg/common/key"
	itermetrics "github.com/KevoDB/lsmcore/pkg/iterator"
)

// FilterFunc reports whether an entry should be surfaced
type FilterFunc func(k key.View, value []byte) bool

// Option configures a FilteredIterator
type Option func(*FilteredIterator)

// WithMetrics records skipped entries through m
func WithMetrics(m itermetrics.IteratorMetrics) Option {
	return func(fi *FilteredIterator) {
		fi.metrics = m
	}
}

// WithContext sets the context metrics are recorded under
func WithContext(ctx context.Context) Option {
	return func(fi *FilteredIterator) {
		fi.ctx = ctx
	}
}

// FilteredIterator wraps an iterator and hides entries its filter rejects.
// It is always positioned on an accepted entry or invalid.
type FilteredIterator struct {
	iter   iterator.Iterator
	filter FilterFunc

	metrics itermetrics.IteratorMetrics
	ctx     context.Context
}

// New creates a filtered view over iter. Rejected entries at the front are
// skipped immediately, which may fail if the wrapped iterator does.
func New(iter iterator.Iterator, filter FilterFunc, opts ...Option) (*FilteredIterator, error) {
	fi := &FilteredIterator{
		iter:    iter,
		filter:  filter,
		metrics: itermetrics.NewNoopIteratorMetrics(),
		ctx:     context.Background(),
	}
	for _, opt := range opts {
		opt(fi)
	}

	if err := fi.skip(); err != nil {
		return nil, err
	}
	return fi, nil
}

// skip advances until the wrapped iterator is invalid or on an accepted entry
func (fi *FilteredIterator) skip() error {
	var skipped int64
	defer func() {
		fi.metrics.RecordFiltered(fi.ctx, itermetrics.TypeFiltered, skipped)
	}()

	for fi.iter.Valid() && !fi.filter(fi.iter.Key(), fi.iter.Value()) {
		if err := iterator.Advance(fi.iter); err != nil {
			return err
		}
		skipped++
	}
	return nil
}

// Next advances to the next accepted entry
func (fi *FilteredIterator) Next() error {
	if !fi.iter.Valid() {
		return nil
	}
	if err := iterator.Advance(fi.iter); err != nil {
		return err
	}
	return fi.skip()
}

// Key returns the current key
func (fi *FilteredIterator) Key() key.View {
	return fi.iter.Key()
}

// Value returns the current value
func (fi *FilteredIterator) Value() []byte {
	return fi.iter.Value()
}

// Valid returns true if the iterator is at an accepted entry
func (fi *FilteredIterator) Valid() bool {
	return fi.iter.Valid()
}

// NotTombstone rejects entries with an empty value, the deletion marker
func NotTombstone(_ key.View, value []byte) bool {
	return len(value) > 0
}

// SkipTombstones hides deletion markers from iter
func SkipTombstones(iter iterator.Iterator, opts ...Option) (*FilteredIterator, error) {
	return New(iter, NotTombstone, opts...)
}

// PrefixFilterFunc creates a filter function for keys with a specific prefix
func PrefixFilterFunc(prefix []byte) FilterFunc {
	return func(k key.View, _ []byte) bool {
		return bytes.HasPrefix(k, prefix)
	}
}

// SuffixFilterFunc creates a filter function for keys with a specific suffix
func SuffixFilterFunc(suffix []byte) FilterFunc {
	return func(k key.View, _ []byte) bool {
		return bytes.HasSuffix(k, suffix)
	}
}

// NewPrefixIterator returns an iterator that filters keys by prefix
func NewPrefixIterator(iter iterator.Iterator, prefix []byte, opts ...Option) (*FilteredIterator, error) {
	return New(iter, PrefixFilterFunc(prefix), opts...)
}

// NewSuffixIterator returns an iterator that filters keys by suffix
func NewSuffixIterator(iter iterator.Iterator, suffix []byte, opts ...Option) (*FilteredIterator, error) {
	return New(iter, SuffixFilterFunc(suffix), opts...)
}
