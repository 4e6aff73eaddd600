// Package key holds the two byte-key representations used by iterators.
//
// A View borrows bytes owned by someone else, typically the iterator that
// returned it, and is only valid until that iterator is advanced. An Owned
// key is an independent copy that survives any later mutation of its source.
package key

import "bytes"

// View is a borrowed key. Callers must Clone it before advancing the source
// that produced it if they need the bytes afterwards.
type View []byte

// Owned is a key whose backing array belongs to the holder.
type Owned []byte

// Compare returns -1, 0 or +1 comparing a and b byte-wise.
func Compare(a, b View) int {
	return bytes.Compare(a, b)
}

// Equal reports whether a and b hold the same bytes.
func Equal(a, b View) bool {
	return bytes.Equal(a, b)
}

// Clone copies the view into an owned key.
func (v View) Clone() Owned {
	if v == nil {
		return nil
	}
	o := make(Owned, len(v))
	copy(o, v)
	return o
}

// Compare compares v with other.
func (v View) Compare(other View) int {
	return bytes.Compare(v, other)
}

// Len returns the key length in bytes.
func (v View) Len() int {
	return len(v)
}

// IsEmpty reports whether the key has no bytes.
func (v View) IsEmpty() bool {
	return len(v) == 0
}

// View borrows the owned key.
func (o Owned) View() View {
	return View(o)
}

// Bytes returns the raw bytes of the owned key.
func (o Owned) Bytes() []byte {
	return []byte(o)
}
