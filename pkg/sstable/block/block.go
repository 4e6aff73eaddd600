// Package block encodes sorted key-value entries into size-bounded blocks.
//
// Wire format, all integers big-endian:
//
//	data:    { u16 key_len, key, u16 value_len, value } per entry
//	offsets: u16 per entry, the entry's position in the data section
//	trailer: u16 entry count
package block

import (
	"encoding/binary"

	"github.com/KevoDB/lsmcore/pkg/common/key"
)

// Block is a finished, immutable block
type Block struct {
	data     []byte
	offsets  []uint16
	firstKey key.Owned
}

// Data returns the data section. It must not be modified.
func (b *Block) Data() []byte {
	return b.data
}

// Offsets returns the entry offsets into the data section. It must not be modified.
func (b *Block) Offsets() []uint16 {
	return b.offsets
}

// NumEntries returns the number of entries in the block
func (b *Block) NumEntries() int {
	return len(b.offsets)
}

// IsEmpty returns true if the block holds no entries
func (b *Block) IsEmpty() bool {
	return len(b.offsets) == 0
}

// FirstKey returns the smallest key in the block, nil when empty
func (b *Block) FirstKey() key.View {
	return b.firstKey.View()
}

// Size returns the length of the encoded block
func (b *Block) Size() int {
	return len(b.data) + lengthSize*len(b.offsets) + lengthSize
}

// Encode serializes the block into a new buffer
func (b *Block) Encode() []byte {
	return b.AppendTo(make([]byte, 0, b.Size()))
}

// AppendTo appends the encoded block to dst and returns the extended buffer
func (b *Block) AppendTo(dst []byte) []byte {
	dst = append(dst, b.data...)
	for _, off := range b.offsets {
		dst = binary.BigEndian.AppendUint16(dst, off)
	}
	return binary.BigEndian.AppendUint16(dst, uint16(len(b.offsets)))
}
