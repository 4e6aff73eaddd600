package engine

import (
	"github.com/KevoDB/lsmcore/pkg/common/iterator"
	"github.com/KevoDB/lsmcore/pkg/common/key"
	"github.com/cockroachdb/errors"
)

// LsmIterator is the iterator handed to readers. It turns the inner
// iterator running dry into an explicit ErrExhausted from Next. Reading an
// exhausted iterator, or an entry with an empty key or value, is a
// programming error.
type LsmIterator struct {
	inner iterator.Iterator
}

// NewLsmIterator wraps inner, typically a merge over the memtable sources
// with tombstones filtered and the range bound applied
func NewLsmIterator(inner iterator.Iterator) *LsmIterator {
	return &LsmIterator{inner: inner}
}

// Valid returns true while the inner iterator has an entry
func (l *LsmIterator) Valid() bool {
	return l.inner.Valid()
}

// Key returns the current key. It panics when the iterator is exhausted or
// the key is empty.
func (l *LsmIterator) Key() key.View {
	if !l.inner.Valid() {
		panic(errors.AssertionFailedf("Key called on an exhausted iterator"))
	}
	k := l.inner.Key()
	if len(k) == 0 {
		panic(errors.AssertionFailedf("empty key reached the read path"))
	}
	return k
}

// Value returns the current value. It panics when the iterator is exhausted
// or the value is empty, since tombstones must be filtered out below.
func (l *LsmIterator) Value() []byte {
	if !l.inner.Valid() {
		panic(errors.AssertionFailedf("Value called on an exhausted iterator"))
	}
	v := l.inner.Value()
	if len(v) == 0 {
		panic(errors.AssertionFailedf("empty value for key %q reached the read path", l.inner.Key()))
	}
	return v
}

// Next advances the inner iterator. It returns ErrExhausted once no entry
// remains and the inner error if a source failed.
func (l *LsmIterator) Next() error {
	if err := l.inner.Next(); err != nil {
		return err
	}
	if !l.inner.Valid() {
		return iterator.ErrExhausted
	}
	return nil
}
