package memtable

import (
	"bytes"

	"github.com/KevoDB/lsmcore/pkg/common/iterator"
	"github.com/KevoDB/lsmcore/pkg/common/key"
)

// tombstoneValue is what a Source reports for a deleted key
var tombstoneValue = []byte{}

// Source presents a memtable as an iterator.Iterator: ascending keys, one
// entry per key carrying its newest version. Deleted keys are reported with
// an empty value so that they still shadow older sources in a merge.
//
// A Source reads the skip list without locks; entries inserted after it was
// created may or may not be observed.
type Source struct {
	iter *Iterator
}

var _ iterator.Iterator = (*Source)(nil)

func newSource(iter *Iterator, start []byte) *Source {
	if start == nil {
		iter.SeekToFirst()
	} else {
		iter.Seek(start)
	}
	return &Source{iter: iter}
}

// Valid returns true if the source is positioned at a key
func (s *Source) Valid() bool {
	return s.iter.Valid()
}

// Key returns the current key
func (s *Source) Key() key.View {
	return key.View(s.iter.Key())
}

// Value returns the newest value of the current key, empty for a tombstone
func (s *Source) Value() []byte {
	if !s.iter.Valid() {
		return nil
	}
	if s.iter.IsTombstone() {
		return tombstoneValue
	}
	return s.iter.Value()
}

// IsTombstone returns true if the current key was deleted
func (s *Source) IsTombstone() bool {
	return s.iter.IsTombstone()
}

// SequenceNumber returns the sequence number of the current version
func (s *Source) SequenceNumber() uint64 {
	return s.iter.SequenceNumber()
}

// Next moves to the next distinct key, skipping older versions of the
// current one. It never fails.
func (s *Source) Next() error {
	if !s.iter.Valid() {
		return nil
	}
	current := s.iter.Key()
	for s.iter.Next(); s.iter.Valid() && bytes.Equal(s.iter.Key(), current); s.iter.Next() {
	}
	return nil
}
