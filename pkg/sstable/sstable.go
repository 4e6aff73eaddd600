// Package sstable assembles sorted entry streams into runs of encoded blocks.
package sstable

import (
	"io"

	"github.com/KevoDB/lsmcore/pkg/common/key"
	"github.com/KevoDB/lsmcore/pkg/sstable/block"
	"github.com/cockroachdb/errors"
)

const (
	// DefaultBlockSize is the target size for data blocks
	DefaultBlockSize = 16 * 1024
)

var (
	// ErrOutOfOrder indicates keys were not added in strictly ascending order
	ErrOutOfOrder = errors.New("keys must be added in strictly increasing order")
	// ErrWriterFinished indicates a Writer was used after Finish
	ErrWriterFinished = errors.New("run writer already finished")
)

// BlockMeta describes one block of a run
type BlockMeta struct {
	// Offset is the position of the block in the run's encoding
	Offset uint64
	// Size is the encoded size of the block in bytes
	Size uint32
	// FirstKey and LastKey bound the keys in the block
	FirstKey key.Owned
	LastKey  key.Owned
	// NumEntries is the number of entries in the block
	NumEntries int
	// Checksum is the xxhash64 of the encoded block
	Checksum uint64
}

// Run is an immutable sequence of blocks holding strictly ascending keys
type Run struct {
	blocks     []*block.Block
	index      []BlockMeta
	numEntries int
	size       uint64
}

// Blocks returns the run's blocks in key order
func (r *Run) Blocks() []*block.Block {
	return r.blocks
}

// Index returns the metadata of every block, in key order
func (r *Run) Index() []BlockMeta {
	return r.index
}

// NumEntries returns the number of entries across all blocks
func (r *Run) NumEntries() int {
	return r.numEntries
}

// Size returns the total encoded size of the run's blocks
func (r *Run) Size() uint64 {
	return r.size
}

// IsEmpty returns true if the run holds no entries
func (r *Run) IsEmpty() bool {
	return r.numEntries == 0
}

// FirstKey returns the smallest key in the run, nil when empty
func (r *Run) FirstKey() key.View {
	if len(r.index) == 0 {
		return nil
	}
	return r.index[0].FirstKey.View()
}

// LastKey returns the largest key in the run, nil when empty
func (r *Run) LastKey() key.View {
	if len(r.index) == 0 {
		return nil
	}
	return r.index[len(r.index)-1].LastKey.View()
}

// WriteTo writes the encoded blocks back to back, matching the index offsets
func (r *Run) WriteTo(w io.Writer) (int64, error) {
	var written int64
	buf := make([]byte, 0, DefaultBlockSize)
	for i, blk := range r.blocks {
		buf = blk.AppendTo(buf[:0])
		n, err := w.Write(buf)
		written += int64(n)
		if err != nil {
			return written, errors.Wrapf(err, "failed to write block %d", i)
		}
	}
	return written, nil
}
