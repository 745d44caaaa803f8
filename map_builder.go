package pcoll

import "fmt"

// MapBuilder is a mutable map. Mutations edit nodes in place when the
// builder owns them and copy shared nodes on first touch. Builders are
// not safe for concurrent use.
type MapBuilder struct {
	root    mnode
	size    int
	ctx     mapCtx
	owner   *owner
	version uint32
	frozen  *Map
}

// NewMapBuilder returns an empty builder with the default comparers.
func NewMapBuilder() *MapBuilder {
	return emptyMap.ToBuilder()
}

func (b *MapBuilder) mut() *owner {
	if b.owner == nil {
		b.owner = newOwner()
	}
	b.frozen = nil
	b.version++
	return b.owner
}

// Count returns the number of entries.
func (b *MapBuilder) Count() int { return b.size }

// IsEmpty reports whether the builder has no entries.
func (b *MapBuilder) IsEmpty() bool { return b.size == 0 }

// Get returns the value stored for k. It returns an error wrapping
// ErrNotFound, naming the key, when k is absent.
func (b *MapBuilder) Get(k interface{}) (interface{}, error) {
	if v, ok := b.TryGet(k); ok {
		return v, nil
	}
	return nil, fmt.Errorf("key %v: %w", k, ErrNotFound)
}

// TryGet returns the value stored for k, or false when k is absent.
func (b *MapBuilder) TryGet(k interface{}) (interface{}, bool) {
	e, ok := b.find(k)
	return e.Value, ok
}

// TryGetKey returns the stored key equal to k, or false when k is
// absent.
func (b *MapBuilder) TryGetKey(k interface{}) (interface{}, bool) {
	e, ok := b.find(k)
	return e.Key, ok
}

func (b *MapBuilder) find(k interface{}) (Entry, bool) {
	if b.root == nil {
		return Entry{}, false
	}
	return b.root.get(&b.ctx, 0, b.ctx.kc.Hash(k), k)
}

// ContainsKey reports whether k is present.
func (b *MapBuilder) ContainsKey(k interface{}) bool {
	_, ok := b.find(k)
	return ok
}

// ContainsValue reports whether any entry stores a value equal to v
// under the value comparer.
func (b *MapBuilder) ContainsValue(v interface{}) bool {
	found := false
	if b.root != nil {
		b.root.iterate(func(e Entry) bool {
			if b.ctx.vc(e.Value, v) {
				found = true
				return false
			}
			return true
		})
	}
	return found
}

// Update stores v for k subject to policy, reporting what it did. On
// error the builder is unaffected.
func (b *MapBuilder) Update(k, v interface{}, policy UpdatePolicy) (UpdateOutcome, error) {
	return b.update(k, v, policy)
}

func (b *MapBuilder) update(k, v interface{}, policy UpdatePolicy) (UpdateOutcome, error) {
	e := Entry{Key: k, Value: v}
	hash := b.ctx.kc.Hash(k)
	if b.root == nil {
		o := b.mut()
		b.root = &valueNode{owner: o, hash: hash, entry: e}
		b.size = 1
		return OutcomeSizeChanged, nil
	}
	// The owner token is fetched before the walk so owned nodes get
	// edited in place, but version and freeze-cache bookkeeping only
	// happen once the update is known to change something.
	if b.owner == nil {
		b.owner = newOwner()
	}
	root, outcome, err := b.root.update(b.owner, &b.ctx, 0, hash, e, policy)
	if err != nil {
		return 0, err
	}
	if outcome == OutcomeNoChange {
		return outcome, nil
	}
	b.frozen = nil
	b.version++
	b.root = root
	if outcome == OutcomeSizeChanged {
		b.size++
	}
	return outcome, nil
}

// Set stores v for k, replacing any existing value.
func (b *MapBuilder) Set(k, v interface{}) *MapBuilder {
	if _, err := b.update(k, v, UpdateSet); err != nil {
		panic(err)
	}
	return b
}

// Add stores v for k, failing with ErrDuplicateKey when k is already
// present with a different value.
func (b *MapBuilder) Add(k, v interface{}) error {
	_, err := b.update(k, v, UpdateFailIfDiffers)
	return err
}

// Remove removes k. Removing an absent key is a no-op.
func (b *MapBuilder) Remove(k interface{}) *MapBuilder {
	if b.root == nil {
		return b
	}
	if b.owner == nil {
		b.owner = newOwner()
	}
	root, removed := b.root.remove(b.owner, &b.ctx, 0, b.ctx.kc.Hash(k), k)
	if !removed {
		return b
	}
	b.frozen = nil
	b.version++
	b.root = root
	b.size--
	return b
}

// SetSlice is Set over all pairs.
func (b *MapBuilder) SetSlice(pairs []Entry) *MapBuilder {
	for _, e := range pairs {
		b.Set(e.Key, e.Value)
	}
	return b
}

// RemoveKeys is Remove over all keys.
func (b *MapBuilder) RemoveKeys(ks []interface{}) *MapBuilder {
	for _, k := range ks {
		b.Remove(k)
	}
	return b
}

// Clear removes all entries, keeping the comparers.
func (b *MapBuilder) Clear() *MapBuilder {
	if b.size == 0 {
		return b
	}
	b.mut()
	b.root = nil
	b.size = 0
	return b
}

// SetKeyComparer rebinds the key comparer, rebuilding the trie around
// it. When the new comparer makes two stored keys equal while their
// values differ under the value comparer, it fails with
// ErrDuplicateKey and the builder is unaffected.
func (b *MapBuilder) SetKeyComparer(kc KeyComparer) error {
	rebuilt := &MapBuilder{ctx: mapCtx{kc: kc, vc: b.ctx.vc}}
	var err error
	if b.root != nil {
		b.root.iterate(func(e Entry) bool {
			_, err = rebuilt.update(e.Key, e.Value, UpdateFailIfDiffers)
			return err == nil
		})
	}
	if err != nil {
		return err
	}
	b.mut()
	b.root = rebuilt.root
	b.size = rebuilt.size
	b.ctx = rebuilt.ctx
	b.owner = rebuilt.owner
	return nil
}

// SetValueComparer rebinds the value comparer, keeping the trie as is.
func (b *MapBuilder) SetValueComparer(vc ValueComparer) {
	b.frozen = nil
	b.version++
	b.ctx.vc = vc
}

// Freeze returns an immutable snapshot of the builder. The builder
// remains usable; its next mutation copies any node the snapshot
// shares. Freezing an unchanged builder returns the same snapshot.
func (b *MapBuilder) Freeze() *Map {
	if b.frozen != nil {
		return b.frozen
	}
	if b.size == 0 {
		m := &Map{ctx: b.ctx}
		b.frozen = m
		return m
	}
	b.owner = nil
	b.frozen = &Map{root: b.root, size: b.size, ctx: b.ctx}
	return b.frozen
}

// Iterator iterates all entries. The iterator is fenced against
// subsequent builder mutation.
func (b *MapBuilder) Iterator() *MapIterator {
	return newMapIterator(b.root, b)
}

// ToSlice returns the entries as a fresh slice, in iteration order.
func (b *MapBuilder) ToSlice() []Entry {
	entries := make([]Entry, 0, b.size)
	if b.root != nil {
		b.root.iterate(func(e Entry) bool {
			entries = append(entries, e)
			return true
		})
	}
	return entries
}

func (b *MapBuilder) String() string {
	m := Map{root: b.root, size: b.size, ctx: b.ctx}
	return m.String()
}
