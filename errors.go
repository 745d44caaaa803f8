package pcoll

import "errors"

// Sentinel errors reported by vectors, maps, builders and iterators.
// Index and iterator misuse panics with the corresponding sentinel;
// data-dependent failures are returned, wrapped with context.
var (
	// ErrOutOfRange indicates an index or range outside [0, Count()).
	ErrOutOfRange = errors.New("index out of range")

	// ErrNotFound indicates a key or element that is not present.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey indicates an insertion that would silently lose a
	// value, either through a strict add or a key comparer rebind that
	// collapses keys with differing values.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrConcurrentModification indicates an iterator observed a builder
	// mutation made after the iterator was created.
	ErrConcurrentModification = errors.New("concurrent modification")

	// ErrIteratorDisposed indicates use of an iterator after Close.
	ErrIteratorDisposed = errors.New("iterator disposed")
)
