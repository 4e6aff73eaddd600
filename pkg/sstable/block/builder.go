package block

import (
	"encoding/binary"
	"math"

	"github.com/KevoDB/lsmcore/pkg/common/key"
	"github.com/cockroachdb/errors"
)

const (
	// lengthSize is the width of every length prefix, offset and the trailer
	lengthSize = 2

	// MaxCapacity is the largest capacity whose offsets fit in a u16
	MaxCapacity = math.MaxUint16

	// MaxKeySize and MaxValueSize are the limits of the u16 length prefixes
	MaxKeySize   = math.MaxUint16
	MaxValueSize = math.MaxUint16
)

// Builder accumulates sorted entries into a size-bounded block.
//
// The first entry is always accepted, whatever its size, so every entry fits
// in some block. After that an entry is rejected once the data written so
// far, its offset slots, the new entry and its offset slot would exceed the
// capacity. The entry-count trailer is not charged against the capacity.
//
// Keys must be added in ascending order; the builder does not check.
type Builder struct {
	data     []byte
	offsets  []uint16
	capacity int
	firstKey key.Owned
	consumed bool
}

// NewBuilder creates an empty builder targeting capacity bytes
func NewBuilder(capacity int) *Builder {
	if capacity < 0 || capacity > MaxCapacity {
		panic(errors.AssertionFailedf("block capacity %d outside [0, %d]", capacity, MaxCapacity))
	}
	return &Builder{
		data:     make([]byte, 0, capacity),
		capacity: capacity,
	}
}

func (b *Builder) checkLive() {
	if b.consumed {
		panic(errors.AssertionFailedf("block builder used after Build"))
	}
}

// EntrySize returns the encoded size of an entry, without its offset slot
func EntrySize(k key.View, value []byte) int {
	return lengthSize + len(k) + lengthSize + len(value)
}

// Add appends an entry, returning false without changing anything when the
// block has no room left for it. A rejection is the signal to start a new
// block, not a failure.
func (b *Builder) Add(k key.View, value []byte) bool {
	b.checkLive()

	if len(k) > MaxKeySize {
		panic(errors.AssertionFailedf("key of %d bytes exceeds the %d byte limit", len(k), MaxKeySize))
	}
	if len(value) > MaxValueSize {
		panic(errors.AssertionFailedf("value of %d bytes exceeds the %d byte limit", len(value), MaxValueSize))
	}

	if !b.IsEmpty() && b.EstimatedSize()+EntrySize(k, value)+lengthSize > b.capacity {
		return false
	}

	if b.IsEmpty() {
		b.firstKey = k.Clone()
	}

	b.offsets = append(b.offsets, uint16(len(b.data)))
	b.data = binary.BigEndian.AppendUint16(b.data, uint16(len(k)))
	b.data = append(b.data, k...)
	b.data = binary.BigEndian.AppendUint16(b.data, uint16(len(value)))
	b.data = append(b.data, value...)

	return true
}

// IsEmpty returns true if no entry has been accepted
func (b *Builder) IsEmpty() bool {
	return len(b.offsets) == 0
}

// NumEntries returns the number of accepted entries
func (b *Builder) NumEntries() int {
	return len(b.offsets)
}

// EstimatedSize returns the bytes charged against the capacity so far:
// the data section plus the offsets section
func (b *Builder) EstimatedSize() int {
	return len(b.data) + lengthSize*len(b.offsets)
}

// FirstKey returns the first accepted key, or nil for an empty builder
func (b *Builder) FirstKey() key.View {
	return b.firstKey.View()
}

// Build hands the accumulated entries over to an immutable Block. The
// builder must not be used afterwards.
func (b *Builder) Build() *Block {
	b.checkLive()
	b.consumed = true

	blk := &Block{
		data:     b.data,
		offsets:  b.offsets,
		firstKey: b.firstKey,
	}
	b.data, b.offsets, b.firstKey = nil, nil, nil
	return blk
}
