package bounded

import (
	"sort"
	"testing"

	"github.com/KevoDB/lsmcore/pkg/common/key"
	"github.com/cockroachdb/errors"
)

// mockIterator is a simple in-memory iterator for testing
type mockIterator struct {
	data  map[string]string
	keys  []string
	index int
	calls int
	err   error
}

func newMockIterator(data map[string]string) *mockIterator {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return &mockIterator{
		data: data,
		keys: keys,
	}
}

func (m *mockIterator) Valid() bool {
	return m.index < len(m.keys)
}

func (m *mockIterator) Key() key.View {
	if !m.Valid() {
		return nil
	}
	return key.View(m.keys[m.index])
}

func (m *mockIterator) Value() []byte {
	if !m.Valid() {
		return nil
	}
	return []byte(m.data[m.keys[m.index]])
}

func (m *mockIterator) Next() error {
	m.calls++
	if m.err != nil {
		return m.err
	}
	if m.Valid() {
		m.index++
	}
	return nil
}

func scan(t *testing.T, b *BoundedIterator) []string {
	t.Helper()
	var keys []string
	for b.Valid() {
		keys = append(keys, string(b.Key()))
		if err := b.Next(); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	}
	return keys
}

func testData() map[string]string {
	return map[string]string{
		"a": "1",
		"b": "2",
		"c": "3",
		"d": "4",
		"e": "5",
	}
}

func TestBoundedIterator_NoBounds(t *testing.T) {
	bi := New(newMockIterator(testData()), nil)

	keys := scan(t, bi)
	if len(keys) != 5 {
		t.Errorf("Expected 5 keys, got %v", keys)
	}
}

func TestBoundedIterator_EndExclusive(t *testing.T) {
	mock := newMockIterator(testData())
	bi := New(mock, []byte("c"))

	keys := scan(t, bi)
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Errorf("Expected [a b], got %v", keys)
	}
	if bi.Key() != nil || bi.Value() != nil {
		t.Error("Expected nil key and value past the end bound")
	}

	// The wrapped iterator stops on the bound and is not advanced further
	callsAtEnd := mock.calls
	if err := bi.Next(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if mock.calls != callsAtEnd {
		t.Error("Wrapped iterator advanced past the end bound")
	}
	if string(mock.Key()) != "c" {
		t.Errorf("Expected wrapped iterator parked at c, got %q", mock.Key())
	}
}

func TestBoundedIterator_Range(t *testing.T) {
	bi, err := NewRange(newMockIterator(testData()), []byte("b"), []byte("e"))
	if err != nil {
		t.Fatalf("Failed to create iterator: %v", err)
	}

	keys := scan(t, bi)
	if len(keys) != 3 || keys[0] != "b" || keys[2] != "d" {
		t.Errorf("Expected [b c d], got %v", keys)
	}
	if string(bi.Start()) != "b" || string(bi.End()) != "e" {
		t.Errorf("Unexpected bounds %q %q", bi.Start(), bi.End())
	}
}

func TestBoundedIterator_EmptyRange(t *testing.T) {
	bi, err := NewRange(newMockIterator(testData()), []byte("x"), []byte("z"))
	if err != nil {
		t.Fatalf("Failed to create iterator: %v", err)
	}
	if bi.Valid() {
		t.Error("Expected empty range to be invalid")
	}
}

func TestBoundedIterator_BoundsAreCopied(t *testing.T) {
	end := []byte("c")
	bi := New(newMockIterator(testData()), end)
	end[0] = 'z'

	if keys := scan(t, bi); len(keys) != 2 {
		t.Errorf("Bound changed through caller's slice, got %v", keys)
	}
}

func TestBoundedIterator_PropagatesErrors(t *testing.T) {
	errBoom := errors.New("boom")
	mock := newMockIterator(testData())
	mock.err = errBoom

	if _, err := NewRange(mock, []byte("c"), nil); !errors.Is(err, errBoom) {
		t.Errorf("Expected boom while seeking start, got %v", err)
	}

	bi := New(mock, nil)
	if err := bi.Next(); !errors.Is(err, errBoom) {
		t.Errorf("Expected boom from Next, got %v", err)
	}
}
