package memtable

import (
	"bytes"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"
)

const (
	// MaxHeight is the maximum height of the skip list
	MaxHeight = 12

	// BranchingFactor determines the probability of increasing the height
	BranchingFactor = 4

	// entryOverhead approximates the per-entry metadata cost in bytes
	entryOverhead = 16
)

// ValueType represents the type of a key-value entry
type ValueType uint8

const (
	// TypeValue indicates the entry contains a value
	TypeValue ValueType = iota + 1

	// TypeDeletion indicates the entry is a tombstone (deletion marker)
	TypeDeletion
)

// entry is one version of a key
type entry struct {
	key       []byte
	value     []byte
	valueType ValueType
	seqNum    uint64
}

func newEntry(key, value []byte, valueType ValueType, seqNum uint64) *entry {
	return &entry{
		key:       key,
		value:     value,
		valueType: valueType,
		seqNum:    seqNum,
	}
}

// size returns the approximate size of the entry in memory
func (e *entry) size() int {
	return len(e.key) + len(e.value) + entryOverhead
}

// compare orders entries by key ascending, then by sequence number
// descending so that the newest version of a key comes first
func (e *entry) compare(other *entry) int {
	if cmp := bytes.Compare(e.key, other.key); cmp != 0 {
		return cmp
	}
	switch {
	case e.seqNum > other.seqNum:
		return -1
	case e.seqNum < other.seqNum:
		return 1
	}
	return 0
}

type node struct {
	entry  *entry
	height int32
	next   [MaxHeight]unsafe.Pointer
}

func newNode(e *entry, height int) *node {
	return &node{
		entry:  e,
		height: int32(height),
	}
}

func (n *node) getNext(level int) *node {
	return (*node)(atomic.LoadPointer(&n.next[level]))
}

func (n *node) setNext(level int, next *node) {
	atomic.StorePointer(&n.next[level], unsafe.Pointer(next))
}

// SkipList is a multi-version skip list. Readers never lock; writers must be
// serialized by the caller.
type SkipList struct {
	head      *node
	maxHeight int32
	rnd       *rand.Rand
	rndMtx    sync.Mutex
	size      int64
	count     int64
}

// NewSkipList creates a new skip list
func NewSkipList() *SkipList {
	return &SkipList{
		head:      newNode(nil, MaxHeight),
		maxHeight: 1,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *SkipList) randomHeight() int {
	s.rndMtx.Lock()
	defer s.rndMtx.Unlock()

	height := 1
	for height < MaxHeight && s.rnd.Intn(BranchingFactor) == 0 {
		height++
	}
	return height
}

func (s *SkipList) getCurrentHeight() int {
	return int(atomic.LoadInt32(&s.maxHeight))
}

// findGreaterOrEqual returns the first node not ordered before e, filling
// prev with the rightmost node before it on every level when prev is non-nil
func (s *SkipList) findGreaterOrEqual(e *entry, prev *[MaxHeight]*node) *node {
	current := s.head
	for level := s.getCurrentHeight() - 1; level >= 0; level-- {
		for next := current.getNext(level); next != nil; next = current.getNext(level) {
			if next.entry.compare(e) >= 0 {
				break
			}
			current = next
		}
		if prev != nil {
			prev[level] = current
		}
	}
	return current.getNext(0)
}

// Insert adds a new version to the skip list
func (s *SkipList) Insert(e *entry) {
	height := s.randomHeight()
	if currHeight := s.getCurrentHeight(); height > currHeight {
		atomic.CompareAndSwapInt32(&s.maxHeight, int32(currHeight), int32(height))
	}

	var prev [MaxHeight]*node
	for i := range prev {
		prev[i] = s.head
	}
	s.findGreaterOrEqual(e, &prev)

	n := newNode(e, height)
	for level := 0; level < height; level++ {
		n.setNext(level, prev[level].getNext(level))
		prev[level].setNext(level, n)
	}

	atomic.AddInt64(&s.size, int64(e.size()))
	atomic.AddInt64(&s.count, 1)
}

// Find returns the newest version of key, or nil
func (s *SkipList) Find(key []byte) *entry {
	// The highest possible sequence number sorts before every version of key
	n := s.findGreaterOrEqual(&entry{key: key, seqNum: ^uint64(0)}, nil)
	if n == nil || !bytes.Equal(n.entry.key, key) {
		return nil
	}
	return n.entry
}

// ApproximateSize returns the approximate size of the skip list in bytes
func (s *SkipList) ApproximateSize() int64 {
	return atomic.LoadInt64(&s.size)
}

// Len returns the number of versions stored
func (s *SkipList) Len() int64 {
	return atomic.LoadInt64(&s.count)
}

// Iterator walks every version in the skip list in order
type Iterator struct {
	list    *SkipList
	current *node
}

// NewIterator creates an unpositioned Iterator for the skip list
func (s *SkipList) NewIterator() *Iterator {
	return &Iterator{list: s}
}

// Valid returns true if the iterator is positioned at a valid entry
func (it *Iterator) Valid() bool {
	return it.current != nil
}

// Next advances the iterator to the next version
func (it *Iterator) Next() {
	if it.current != nil {
		it.current = it.current.getNext(0)
	}
}

// SeekToFirst positions the iterator at the first entry
func (it *Iterator) SeekToFirst() {
	it.current = it.list.head.getNext(0)
}

// Seek positions the iterator at the newest version of the first key >= target
func (it *Iterator) Seek(target []byte) {
	it.current = it.list.findGreaterOrEqual(&entry{key: target, seqNum: ^uint64(0)}, nil)
}

// Key returns the key of the current entry
func (it *Iterator) Key() []byte {
	if !it.Valid() {
		return nil
	}
	return it.current.entry.key
}

// Value returns the value of the current entry, nil for tombstones
func (it *Iterator) Value() []byte {
	if !it.Valid() {
		return nil
	}
	return it.current.entry.value
}

// ValueType returns the type of the current entry (TypeValue or TypeDeletion)
func (it *Iterator) ValueType() ValueType {
	if !it.Valid() {
		return 0
	}
	return it.current.entry.valueType
}

// IsTombstone returns true if the current entry is a deletion marker
func (it *Iterator) IsTombstone() bool {
	return it.Valid() && it.current.entry.valueType == TypeDeletion
}

// SequenceNumber returns the sequence number of the current entry
func (it *Iterator) SequenceNumber() uint64 {
	if !it.Valid() {
		return 0
	}
	return it.current.entry.seqNum
}
