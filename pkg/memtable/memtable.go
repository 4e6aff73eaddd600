package memtable

import (
	"sync"
	"sync/atomic"
	"time"
)

// MemTable is an in-memory table that stores key-value pairs
// It is implemented using a skip list for efficient inserts and lookups
type MemTable struct {
	skipList     *SkipList
	creationTime time.Time
	immutable    atomic.Bool
	mu           sync.RWMutex
}

// NewMemTable creates a new memory table
func NewMemTable() *MemTable {
	return &MemTable{
		skipList:     NewSkipList(),
		creationTime: time.Now(),
	}
}

// Put adds a key-value pair to the MemTable. The key and value are retained,
// not copied.
func (m *MemTable) Put(key, value []byte, seqNum uint64) {
	m.insert(newEntry(key, value, TypeValue, seqNum))
}

// Delete marks a key as deleted in the MemTable
func (m *MemTable) Delete(key []byte, seqNum uint64) {
	m.insert(newEntry(key, nil, TypeDeletion, seqNum))
}

func (m *MemTable) insert(e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.IsImmutable() {
		// Don't modify immutable memtables
		return
	}

	m.skipList.Insert(e)
}

// Get retrieves the value associated with the given key
// Returns (nil, true) if the key exists but has been deleted
// Returns (nil, false) if the key does not exist
// Returns (value, true) if the key exists and has a value
func (m *MemTable) Get(key []byte) ([]byte, bool) {
	e := m.skipList.Find(key)
	if e == nil {
		return nil, false
	}

	if e.valueType == TypeDeletion {
		return nil, true
	}

	return e.value, true
}

// Contains checks if the key exists in the MemTable, including as a tombstone
func (m *MemTable) Contains(key []byte) bool {
	return m.skipList.Find(key) != nil
}

// ApproximateSize returns the approximate size of the MemTable in bytes
func (m *MemTable) ApproximateSize() int64 {
	return m.skipList.ApproximateSize()
}

// Len returns the number of versions held, tombstones included
func (m *MemTable) Len() int64 {
	return m.skipList.Len()
}

// SetImmutable marks the MemTable as immutable
// After this is called, no more modifications are allowed
func (m *MemTable) SetImmutable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.immutable.Store(true)
}

// IsImmutable returns whether the MemTable is immutable
func (m *MemTable) IsImmutable() bool {
	return m.immutable.Load()
}

// Age returns the age of the MemTable in seconds
func (m *MemTable) Age() float64 {
	return time.Since(m.creationTime).Seconds()
}

// NewIterator returns a Source over the newest version of every key >= start.
// A nil start positions it at the first key.
func (m *MemTable) NewIterator(start []byte) *Source {
	return newSource(m.skipList.NewIterator(), start)
}
