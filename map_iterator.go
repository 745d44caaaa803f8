package pcoll

import "fmt"

// MapIterator walks a map or map builder depth first. The order is
// fixed by the key hashes, not by insertion.
//
// Iterators over a builder are fenced: any builder mutation after the
// iterator is created makes further iterator calls panic with
// ErrConcurrentModification. Close releases the iterator; use after
// Close panics with ErrIteratorDisposed.
type MapIterator struct {
	builder  *MapBuilder
	version  uint32
	stack    []mapIterFrame
	cur      Entry
	disposed bool
}

type mapIterFrame struct {
	n   mnode
	idx int
}

func newMapIterator(root mnode, b *MapBuilder) *MapIterator {
	it := &MapIterator{builder: b}
	if b != nil {
		it.version = b.version
	}
	if root != nil {
		it.stack = append(it.stack, mapIterFrame{n: root})
	}
	return it
}

func (it *MapIterator) check() {
	if it.disposed {
		panic(fmt.Errorf("%w: map iterator", ErrIteratorDisposed))
	}
	if it.builder != nil && it.builder.version != it.version {
		panic(fmt.Errorf("%w: builder mutated under map iterator", ErrConcurrentModification))
	}
}

// Next advances to the next entry, returning false when the iteration
// is exhausted.
func (it *MapIterator) Next() bool {
	it.check()
	for len(it.stack) > 0 {
		top := &it.stack[len(it.stack)-1]
		switch n := top.n.(type) {
		case *valueNode:
			it.stack = it.stack[:len(it.stack)-1]
			it.cur = n.entry
			return true
		case *collisionNode:
			if top.idx >= len(n.entries) {
				it.stack = it.stack[:len(it.stack)-1]
				continue
			}
			it.cur = n.entries[top.idx]
			top.idx++
			return true
		case *bitmapNode:
			if top.idx >= len(n.children) {
				it.stack = it.stack[:len(it.stack)-1]
				continue
			}
			child := n.children[top.idx]
			top.idx++
			it.stack = append(it.stack, mapIterFrame{n: child})
		case *arrayNode:
			for top.idx < chunkSize && n.children[top.idx] == nil {
				top.idx++
			}
			if top.idx >= chunkSize {
				it.stack = it.stack[:len(it.stack)-1]
				continue
			}
			child := n.children[top.idx]
			top.idx++
			it.stack = append(it.stack, mapIterFrame{n: child})
		}
	}
	return false
}

// Entry returns the current entry.
func (it *MapIterator) Entry() Entry {
	it.check()
	return it.cur
}

// Key returns the current entry's key.
func (it *MapIterator) Key() interface{} {
	it.check()
	return it.cur.Key
}

// Value returns the current entry's value.
func (it *MapIterator) Value() interface{} {
	it.check()
	return it.cur.Value
}

// Close disposes the iterator.
func (it *MapIterator) Close() {
	it.disposed = true
	it.stack = nil
}
