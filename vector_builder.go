package pcoll

import "fmt"

// VectorBuilder is a mutable vector. Mutations edit nodes in place
// when the builder owns them and copy shared nodes on first touch, so
// a build loop costs amortized what the equivalent slice appends do.
// Builders are not safe for concurrent use.
type VectorBuilder struct {
	t       vtrie
	owner   *owner
	version uint32
	frozen  *Vector
}

// NewVectorBuilder returns an empty builder.
func NewVectorBuilder() *VectorBuilder {
	return emptyVector.ToBuilder()
}

// mut marks the builder dirty and returns the owner token, allocating
// it on the first mutation after construction or Freeze.
func (b *VectorBuilder) mut() *owner {
	if b.owner == nil {
		b.owner = newOwner()
	}
	b.frozen = nil
	b.version++
	return b.owner
}

// Count returns the number of elements.
func (b *VectorBuilder) Count() int { return b.t.count() }

// IsEmpty reports whether the builder has no elements.
func (b *VectorBuilder) IsEmpty() bool { return b.t.count() == 0 }

// Get returns the element at index i, panicking with ErrOutOfRange
// when i is outside [0, Count()).
func (b *VectorBuilder) Get(i int) interface{} {
	checkIndex(i, b.t.count())
	return b.t.get(i)
}

// Find returns the element at index i, or false when i is outside the
// builder.
func (b *VectorBuilder) Find(i int) (interface{}, bool) {
	if i < 0 || i >= b.t.count() {
		return nil, false
	}
	return b.t.get(i), true
}

// Add appends x.
func (b *VectorBuilder) Add(x interface{}) *VectorBuilder {
	b.t.push(b.mut(), x)
	return b
}

// Pop removes the last element, panicking with ErrOutOfRange when the
// builder is empty.
func (b *VectorBuilder) Pop() *VectorBuilder {
	if b.t.count() == 0 {
		panic(fmt.Errorf("%w: pop of empty vector", ErrOutOfRange))
	}
	b.t.pop(b.mut())
	return b
}

// SetAt replaces the element at index i with x.
func (b *VectorBuilder) SetAt(i int, x interface{}) *VectorBuilder {
	checkIndex(i, b.t.count())
	b.t.set(b.mut(), i, x)
	return b
}

// Insert inserts x before index i, shifting later elements right. i
// may equal Count(), which appends.
func (b *VectorBuilder) Insert(i int, x interface{}) *VectorBuilder {
	count := b.t.count()
	if i < 0 || i > count {
		panic(fmt.Errorf("%w: index %d, count %d", ErrOutOfRange, i, count))
	}
	o := b.mut()
	b.t.push(o, nil)
	for j := count; j > i; j-- {
		b.t.set(o, j, b.t.get(j-1))
	}
	b.t.set(o, i, x)
	return b
}

// InsertSlice inserts the elements of xs before index i.
func (b *VectorBuilder) InsertSlice(i int, xs []interface{}) *VectorBuilder {
	count := b.t.count()
	if i < 0 || i > count {
		panic(fmt.Errorf("%w: index %d, count %d", ErrOutOfRange, i, count))
	}
	if len(xs) == 0 {
		return b
	}
	o := b.mut()
	for range xs {
		b.t.push(o, nil)
	}
	for j := count - 1; j >= i; j-- {
		b.t.set(o, j+len(xs), b.t.get(j))
	}
	for k, x := range xs {
		b.t.set(o, i+k, x)
	}
	return b
}

// RemoveAt removes the element at index i, shifting later elements
// left.
func (b *VectorBuilder) RemoveAt(i int) *VectorBuilder {
	count := b.t.count()
	checkIndex(i, count)
	o := b.mut()
	for j := i; j < count-1; j++ {
		b.t.set(o, j, b.t.get(j+1))
	}
	b.t.pop(o)
	return b
}

// RemoveAll removes every element for which pred returns true.
func (b *VectorBuilder) RemoveAll(pred func(x interface{}) bool) *VectorBuilder {
	count := b.t.count()
	o := b.mut()
	w := 0
	for r := 0; r < count; r++ {
		x := b.t.get(r)
		if pred(x) {
			continue
		}
		if w != r {
			b.t.set(o, w, x)
		}
		w++
	}
	for j := count; j > w; j-- {
		b.t.pop(o)
	}
	return b
}

// Reverse reverses the elements in place.
func (b *VectorBuilder) Reverse() *VectorBuilder {
	b.reverseRange(0, b.t.count())
	return b
}

func (b *VectorBuilder) reverseRange(i, n int) {
	o := b.mut()
	for lo, hi := i, i+n-1; lo < hi; lo, hi = lo+1, hi-1 {
		x, y := b.t.get(lo), b.t.get(hi)
		b.t.set(o, lo, y)
		b.t.set(o, hi, x)
	}
}

// Sort sorts the elements by cmp, or by DefaultCompare when cmp is
// nil. The sort is stable.
func (b *VectorBuilder) Sort(cmp func(a, b interface{}) int) *VectorBuilder {
	b.sortRange(0, b.t.count(), cmp)
	return b
}

func (b *VectorBuilder) sortRange(i, n int, cmp func(a, b interface{}) int) {
	if n < 2 {
		return
	}
	xs := make([]interface{}, n)
	for j := range xs {
		xs[j] = b.t.get(i + j)
	}
	sortStable(xs, cmp)
	o := b.mut()
	for j, x := range xs {
		b.t.set(o, i+j, x)
	}
}

// Clear removes all elements.
func (b *VectorBuilder) Clear() *VectorBuilder {
	b.mut()
	b.t = vtrie{}
	return b
}

// Freeze returns an immutable snapshot of the builder. The builder
// remains usable; its next mutation copies any node the snapshot
// shares. Freezing an unchanged builder returns the same snapshot.
func (b *VectorBuilder) Freeze() *Vector {
	if b.frozen != nil {
		return b.frozen
	}
	if b.t.count() == 0 {
		b.frozen = emptyVector
		return emptyVector
	}
	// Drop the owner token so the snapshot's nodes can never again be
	// edited in place.
	b.owner = nil
	b.frozen = &Vector{t: b.t}
	return b.frozen
}

// Iterator iterates all elements in index order. The iterator is
// fenced against subsequent builder mutation.
func (b *VectorBuilder) Iterator() *VectorIterator {
	return b.IteratorRange(0, b.t.count(), false)
}

// IteratorRange iterates the n elements starting at index i, in
// reverse index order when reverse is set.
func (b *VectorBuilder) IteratorRange(i, n int, reverse bool) *VectorIterator {
	checkRange(i, n, b.t.count())
	return newVectorIterator(&b.t, b, i, n, reverse)
}

// ToSlice returns the elements as a fresh slice.
func (b *VectorBuilder) ToSlice() []interface{} {
	return b.t.toSlice()
}

func (b *VectorBuilder) String() string {
	v := Vector{t: b.t}
	return v.String()
}
