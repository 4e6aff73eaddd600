package main

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/KevoDB/lsmcore/pkg/common/iterator"
	"github.com/KevoDB/lsmcore/pkg/engine"
	"github.com/cockroachdb/errors"
)

type bench struct {
	e          *engine.Engine
	numKeys    int
	valueSize  int
	scanSize   int
	duration   time.Duration
	sequential bool

	value []byte
	rnd   *rand.Rand
}

func newBench(e *engine.Engine, numKeys, valueSize, scanSize int, duration time.Duration, sequential bool) *bench {
	value := make([]byte, valueSize)
	for i := range value {
		value[i] = byte(i % 256)
	}
	return &bench{
		e:          e,
		numKeys:    numKeys,
		valueSize:  valueSize,
		scanSize:   scanSize,
		duration:   duration,
		sequential: sequential,
		value:      value,
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (b *bench) mode() string {
	if b.sequential {
		return "Sequential"
	}
	return "Random"
}

// key returns the i-th key of the keyspace, or a random one
func (b *bench) key(i int) []byte {
	if !b.sequential {
		i = b.rnd.Intn(b.numKeys)
	}
	return []byte(fmt.Sprintf("key-%010d", i%b.numKeys))
}

func (b *bench) result(name string, ops int, elapsed time.Duration) BenchmarkResult {
	r := BenchmarkResult{
		BenchmarkType: name,
		NumKeys:       b.numKeys,
		ValueSize:     b.valueSize,
		Mode:          b.mode(),
		Operations:    ops,
		Duration:      elapsed.Seconds(),
		Timestamp:     time.Now(),
	}
	if ops > 0 {
		r.Throughput = float64(ops) / elapsed.Seconds()
		r.Latency = float64(elapsed.Microseconds()) / float64(ops)
	}
	return r
}

// timed calls op until the benchmark duration has elapsed or op fails
func (b *bench) timed(op func(i int) error) (int, time.Duration, error) {
	start := time.Now()
	deadline := start.Add(b.duration)

	ops := 0
	for time.Now().Before(deadline) {
		if err := op(ops); err != nil {
			return ops, time.Since(start), err
		}
		ops++
	}
	return ops, time.Since(start), nil
}

func (b *bench) runWrite() BenchmarkResult {
	fmt.Println("Running Write Benchmark...")
	ops, elapsed, err := b.timed(func(i int) error {
		return b.e.Put(b.key(i), b.value)
	})
	report("write", err)
	return b.result("write", ops, elapsed)
}

func (b *bench) runRandomWrite() BenchmarkResult {
	fmt.Println("Running Random Write Benchmark (unique keys)...")
	ops, elapsed, err := b.timed(func(i int) error {
		k := []byte(fmt.Sprintf("rnd-%016x-%010d", b.rnd.Uint64(), i))
		return b.e.Put(k, b.value)
	})
	report("random-write", err)
	return b.result("random-write", ops, elapsed)
}

// preload writes every key once so reads have something to find
func (b *bench) preload() {
	for i := 0; i < b.numKeys; i++ {
		if err := b.e.Put([]byte(fmt.Sprintf("key-%010d", i)), b.value); err != nil {
			report("preload", err)
			return
		}
	}
}

func (b *bench) runRead() BenchmarkResult {
	fmt.Println("Running Read Benchmark...")
	b.preload()

	hits := 0
	ops, elapsed, err := b.timed(func(i int) error {
		_, err := b.e.Get(b.key(i))
		if err == nil {
			hits++
			return nil
		}
		if errors.Is(err, engine.ErrKeyNotFound) {
			return nil
		}
		return err
	})
	report("read", err)

	r := b.result("read", ops, elapsed)
	if ops > 0 {
		r.HitRate = float64(hits) / float64(ops)
	}
	return r
}

// drain reads up to limit entries from a scan starting at start
func (b *bench) drain(start []byte, limit int) (int, error) {
	it, err := b.e.Scan(start, nil)
	if err != nil {
		return 0, err
	}

	n := 0
	for it.Valid() && (limit <= 0 || n < limit) {
		_ = it.Key()
		_ = it.Value()
		n++
		if err := it.Next(); err != nil {
			if iterator.IsExhausted(err) {
				break
			}
			return n, err
		}
	}
	return n, nil
}

func (b *bench) runScan() BenchmarkResult {
	fmt.Println("Running Full Scan Benchmark...")
	b.preload()

	entries := 0
	ops, elapsed, err := b.timed(func(int) error {
		n, err := b.drain(nil, 0)
		entries += n
		return err
	})
	report("scan", err)

	r := b.result("scan", ops, elapsed)
	r.EntriesPerSec = float64(entries) / elapsed.Seconds()
	return r
}

func (b *bench) runRangeScan() BenchmarkResult {
	fmt.Println("Running Range Scan Benchmark...")
	b.preload()

	entries := 0
	ops, elapsed, err := b.timed(func(i int) error {
		n, err := b.drain(b.key(i), b.scanSize)
		entries += n
		return err
	})
	report("range-scan", err)

	r := b.result("range-scan", ops, elapsed)
	r.EntriesPerSec = float64(entries) / elapsed.Seconds()
	return r
}

func (b *bench) runBuildRun() BenchmarkResult {
	fmt.Println("Running Build Run Benchmark...")
	b.preload()

	entries := 0
	ops, elapsed, err := b.timed(func(int) error {
		run, err := b.e.BuildRun()
		if err != nil {
			return err
		}
		entries += run.NumEntries()
		return nil
	})
	report("build-run", err)

	r := b.result("build-run", ops, elapsed)
	r.EntriesPerSec = float64(entries) / elapsed.Seconds()
	return r
}

func (b *bench) runMixed() BenchmarkResult {
	fmt.Println("Running Mixed Benchmark (75% reads, 25% writes)...")
	b.preload()

	ops, elapsed, err := b.timed(func(i int) error {
		if i%4 == 0 {
			return b.e.Put(b.key(i), b.value)
		}
		_, err := b.e.Get(b.key(i))
		if errors.Is(err, engine.ErrKeyNotFound) {
			return nil
		}
		return err
	})
	report("mixed", err)

	r := b.result("mixed", ops, elapsed)
	r.ReadRatio, r.WriteRatio = 0.75, 0.25
	return r
}

func report(name string, err error) {
	if err != nil {
		fmt.Printf("  %s stopped early: %v\n", name, err)
	}
}
