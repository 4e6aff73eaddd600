package memtable

import (
	"fmt"
	"math/rand"
	"strconv"
	"testing"
)

func populate(mt *MemTable, n int) [][]byte {
	keys := make([][]byte, n)
	for i := 0; i < n; i++ {
		keys[i] = []byte(fmt.Sprintf("key-%d", i))
		mt.Put(keys[i], []byte(fmt.Sprintf("value-%d", i)), uint64(i))
	}
	return keys
}

func randomLookups(keys [][]byte, n int) [][]byte {
	lookupKeys := make([][]byte, n)
	r := rand.New(rand.NewSource(42)) // Use fixed seed for reproducibility
	for i := range lookupKeys {
		lookupKeys[i] = keys[r.Intn(len(keys))]
	}
	return lookupKeys
}

func BenchmarkSkipListInsert(b *testing.B) {
	sl := NewSkipList()

	keys := make([][]byte, b.N)
	values := make([][]byte, b.N)
	for i := 0; i < b.N; i++ {
		keys[i] = []byte(fmt.Sprintf("key-%d", i))
		values[i] = []byte(fmt.Sprintf("value-%d", i))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sl.Insert(newEntry(keys[i], values[i], TypeValue, uint64(i)))
	}
}

func BenchmarkMemTablePut(b *testing.B) {
	mt := NewMemTable()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := []byte("key-" + strconv.Itoa(i))
		value := []byte("value-" + strconv.Itoa(i))
		mt.Put(key, value, uint64(i))
	}
}

func BenchmarkMemTableGet(b *testing.B) {
	mt := NewMemTable()
	lookupKeys := randomLookups(populate(mt, 100000), b.N)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mt.Get(lookupKeys[i])
	}
}

func BenchmarkConcurrentMemTableGet(b *testing.B) {
	mt := NewMemTable()
	lookupKeys := randomLookups(populate(mt, 100000), 4096)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		localRand := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			mt.Get(lookupKeys[localRand.Intn(len(lookupKeys))])
		}
	})
}

func BenchmarkSourceScan(b *testing.B) {
	mt := NewMemTable()
	keys := populate(mt, 10000)
	// Give every tenth key a second version for the source to skip
	for i := 0; i < len(keys); i += 10 {
		mt.Put(keys[i], []byte("newer"), uint64(len(keys)+i))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for s := mt.NewIterator(nil); s.Valid(); s.Next() {
		}
	}
}

func BenchmarkMemPoolGet(b *testing.B) {
	cfg := createTestConfig()
	cfg.MemTableSize = 1024 * 1024 * 32 // 32MB for benchmark
	pool := NewMemTablePool(cfg)

	const entriesPerTable = 50000
	const numTables = 3
	keys := make([][]byte, 0, entriesPerTable*numTables)

	for t := 0; t < numTables; t++ {
		for i := 0; i < entriesPerTable; i++ {
			idx := t*entriesPerTable + i
			key := []byte(fmt.Sprintf("key-%d", idx))
			keys = append(keys, key)
			pool.Put(key, []byte(fmt.Sprintf("value-%d", idx)), uint64(idx))
		}

		// Switch to a new memtable (except for last one)
		if t < numTables-1 {
			pool.SwitchToNewMemTable()
		}
	}

	lookupKeys := randomLookups(keys, b.N)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		pool.Get(lookupKeys[i])
	}
}
