// Package iterator defines the iteration contract shared by every sorted
// source in the engine: memtables, persisted-run blocks, merges and the
// wrappers layered on top of them.
package iterator

import (
	"github.com/KevoDB/lsmcore/pkg/common/key"
	"github.com/cockroachdb/errors"
)

// ErrExhausted is returned by iterators that report end-of-stream from Next
// itself. It is not a failure: wrappers must not treat it as one.
var ErrExhausted = errors.New("iterator exhausted")

// Iterator yields entries in strictly ascending key order with no duplicate
// keys. Whoever holds an Iterator owns it exclusively.
type Iterator interface {
	// Valid returns true if the iterator is positioned at an entry
	Valid() bool

	// Key returns the current key. The view is only valid until the next
	// call to Next.
	Key() key.View

	// Value returns the current value, with the same lifetime as Key
	Value() []byte

	// Next advances to the following entry. A non-nil error other than
	// ErrExhausted means the source failed and must not be used further.
	Next() error
}

// IsExhausted reports whether err is the end-of-stream signal.
func IsExhausted(err error) bool {
	return errors.Is(err, ErrExhausted)
}

// Advance calls Next and folds ErrExhausted into a nil error, leaving only
// real failures. Callers consult Valid afterwards.
func Advance(it Iterator) error {
	if err := it.Next(); err != nil && !IsExhausted(err) {
		return err
	}
	return nil
}
