package composite

import (
	"github.com/KevoDB/lsmcore/pkg/common/iterator"
)

// CompositeIterator is an interface for iterators that combine multiple source iterators
// into a single logical view.
type CompositeIterator interface {
	// Embeds the basic Iterator interface
	iterator.Iterator

	// NumSources returns the number of sources handed in at construction
	NumSources() int

	// NumActiveSources returns the number of sources that still have entries
	NumActiveSources() int
}
