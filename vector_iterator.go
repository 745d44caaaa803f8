package pcoll

import "fmt"

// VectorIterator walks a vector or builder in index order (or reverse)
// without materializing a slice. It caches the current leaf, so a full
// forward walk touches each interior node once per chunk.
//
// Iterators over a builder are fenced: any builder mutation after the
// iterator is created makes further iterator calls panic with
// ErrConcurrentModification. Close releases the iterator; use after
// Close panics with ErrIteratorDisposed.
type VectorIterator struct {
	t        *vtrie
	builder  *VectorBuilder
	version  uint32
	idx      int
	first    int
	last     int
	reverse  bool
	started  bool
	leaf     *vnode
	leafBase int
	disposed bool
}

func newVectorIterator(t *vtrie, b *VectorBuilder, i, n int, reverse bool) *VectorIterator {
	it := &VectorIterator{
		t:        t,
		builder:  b,
		first:    i,
		last:     i + n - 1,
		reverse:  reverse,
		leafBase: -1,
	}
	if b != nil {
		it.version = b.version
	}
	return it
}

func (it *VectorIterator) check() {
	if it.disposed {
		panic(fmt.Errorf("%w: vector iterator", ErrIteratorDisposed))
	}
	if it.builder != nil && it.builder.version != it.version {
		panic(fmt.Errorf("%w: builder mutated under vector iterator", ErrConcurrentModification))
	}
}

// Next advances to the next element, returning false when the
// iteration is exhausted.
func (it *VectorIterator) Next() bool {
	it.check()
	if !it.started {
		it.started = true
		if it.last < it.first {
			return false
		}
		if it.reverse {
			it.idx = it.last
		} else {
			it.idx = it.first
		}
		return true
	}
	if it.reverse {
		if it.idx <= it.first {
			return false
		}
		it.idx--
	} else {
		if it.idx >= it.last {
			return false
		}
		it.idx++
	}
	return true
}

// Index returns the index of the current element.
func (it *VectorIterator) Index() int {
	it.check()
	return it.idx
}

// Value returns the current element.
func (it *VectorIterator) Value() interface{} {
	it.check()
	p := it.idx + it.t.origin
	base := p &^ chunkMask
	if it.leaf == nil || base != it.leafBase {
		it.leaf = it.t.leafFor(p)
		it.leafBase = base
	}
	return it.leaf.children[p&chunkMask]
}

// Close disposes the iterator.
func (it *VectorIterator) Close() {
	it.disposed = true
	it.leaf = nil
}
