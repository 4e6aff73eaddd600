package filtered

import (
	"context"
	"testing"

	"github.com/KevoDB/lsmcore/pkg/common/iterator"
	"github.com/KevoDB/lsmcore/pkg/common/key"
	itermetrics "github.com/KevoDB/lsmcore/pkg/iterator"
	"github.com/cockroachdb/errors"
)

// MockEntry represents a single entry in the mock iterator
type MockEntry struct {
	Key   string
	Value string
}

// MockIterator is a simple in-memory iterator for testing, positioned on
// its first entry. Next fails with err once failAfter entries were consumed;
// an ErrExhausted failure also moves it to the end.
type MockIterator struct {
	entries    []MockEntry
	currentIdx int
	failAfter  int
	err        error
}

// NewMockIterator creates a new mock iterator with the given entries
func NewMockIterator(entries ...MockEntry) *MockIterator {
	return &MockIterator{entries: entries}
}

func (mi *MockIterator) Valid() bool {
	return mi.currentIdx < len(mi.entries)
}

func (mi *MockIterator) Key() key.View {
	if !mi.Valid() {
		return nil
	}
	return key.View(mi.entries[mi.currentIdx].Key)
}

func (mi *MockIterator) Value() []byte {
	if !mi.Valid() {
		return nil
	}
	return []byte(mi.entries[mi.currentIdx].Value)
}

func (mi *MockIterator) Next() error {
	if mi.err != nil && mi.currentIdx+1 >= mi.failAfter {
		if iterator.IsExhausted(mi.err) {
			mi.currentIdx = len(mi.entries)
		}
		return mi.err
	}
	if mi.Valid() {
		mi.currentIdx++
	}
	return nil
}

func drain(t *testing.T, it iterator.Iterator) []string {
	t.Helper()
	var keys []string
	for it.Valid() {
		keys = append(keys, string(it.Key()))
		if err := it.Next(); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	}
	return keys
}

func assertKeys(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("Expected keys %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Key %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestSkipTombstones(t *testing.T) {
	iter := NewMockIterator(
		MockEntry{"a", ""},
		MockEntry{"b", "1"},
		MockEntry{"c", ""},
		MockEntry{"d", ""},
		MockEntry{"e", "2"},
		MockEntry{"f", ""},
	)

	fi, err := SkipTombstones(iter)
	if err != nil {
		t.Fatalf("Failed to create iterator: %v", err)
	}

	assertKeys(t, drain(t, fi), "b", "e")
}

func TestPrefixIterator(t *testing.T) {
	iter := NewMockIterator(
		MockEntry{"apple", "1"},
		MockEntry{"banana", "2"},
		MockEntry{"bandana", "3"},
		MockEntry{"cherry", "4"},
	)

	fi, err := NewPrefixIterator(iter, []byte("ban"))
	if err != nil {
		t.Fatalf("Failed to create iterator: %v", err)
	}

	assertKeys(t, drain(t, fi), "banana", "bandana")
}

func TestSuffixIterator(t *testing.T) {
	iter := NewMockIterator(
		MockEntry{"key1.log", "1"},
		MockEntry{"key2.dat", "2"},
		MockEntry{"key3.log", "3"},
	)

	fi, err := NewSuffixIterator(iter, []byte(".log"))
	if err != nil {
		t.Fatalf("Failed to create iterator: %v", err)
	}

	assertKeys(t, drain(t, fi), "key1.log", "key3.log")
}

func TestFilterRejectsEverything(t *testing.T) {
	iter := NewMockIterator(MockEntry{"a", ""}, MockEntry{"b", ""})

	fi, err := SkipTombstones(iter)
	if err != nil {
		t.Fatalf("Failed to create iterator: %v", err)
	}
	if fi.Valid() {
		t.Error("Expected invalid iterator when every entry is filtered")
	}
	if err := fi.Next(); err != nil {
		t.Errorf("Next on invalid iterator should be a no-op, got %v", err)
	}
}

func TestFilterPropagatesErrors(t *testing.T) {
	errBoom := errors.New("boom")

	// Failure while skipping at construction
	iter := NewMockIterator(MockEntry{"a", ""}, MockEntry{"b", "1"})
	iter.err, iter.failAfter = errBoom, 1
	if _, err := SkipTombstones(iter); !errors.Is(err, errBoom) {
		t.Errorf("Expected construction to fail with boom, got %v", err)
	}

	// Failure on Next
	iter = NewMockIterator(MockEntry{"a", "1"}, MockEntry{"b", "2"})
	iter.err, iter.failAfter = errBoom, 1
	fi, err := SkipTombstones(iter)
	if err != nil {
		t.Fatalf("Failed to create iterator: %v", err)
	}
	if err := fi.Next(); !errors.Is(err, errBoom) {
		t.Errorf("Expected Next to fail with boom, got %v", err)
	}
}

func TestFilterTreatsExhaustionAsEnd(t *testing.T) {
	iter := NewMockIterator(MockEntry{"a", ""})
	iter.err, iter.failAfter = iterator.ErrExhausted, 1

	fi, err := SkipTombstones(iter)
	if err != nil {
		t.Fatalf("Exhaustion should not be reported as an error, got %v", err)
	}
	if fi.Valid() {
		t.Error("Expected invalid iterator after exhaustion")
	}
}

type filterMetrics struct {
	itermetrics.IteratorMetrics
	skipped int64
}

func (f *filterMetrics) RecordFiltered(ctx context.Context, iteratorType string, skipped int64) {
	f.skipped += skipped
}

func TestFilterRecordsSkipped(t *testing.T) {
	metrics := &filterMetrics{IteratorMetrics: itermetrics.NewNoopIteratorMetrics()}
	iter := NewMockIterator(
		MockEntry{"a", ""},
		MockEntry{"b", "1"},
		MockEntry{"c", ""},
		MockEntry{"d", ""},
	)

	fi, err := SkipTombstones(iter, WithMetrics(metrics))
	if err != nil {
		t.Fatalf("Failed to create iterator: %v", err)
	}
	drain(t, fi)

	if metrics.skipped != 3 {
		t.Errorf("Expected 3 skipped entries, got %d", metrics.skipped)
	}
}
