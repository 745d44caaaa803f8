package pcoll

import (
	"fmt"
	"strings"
)

// Map is an immutable hash map. Key identity is decided by a
// KeyComparer and value equality by a ValueComparer; both default to
// the type-switched comparers in compare.go. All operations leave the
// receiver untouched and share structure with the result. The zero
// value is not valid; use EmptyMap or NewMap.
type Map struct {
	root mnode
	size int
	ctx  mapCtx
}

var defaultMapCtx = mapCtx{kc: DefaultKeyComparer(), vc: DefaultValueEqual}

var emptyMap = &Map{ctx: defaultMapCtx}

// EmptyMap returns the empty map with the default comparers.
func EmptyMap() *Map { return emptyMap }

// NewMap returns a map of the given entries with the default
// comparers. Later entries win over earlier ones with the same key.
func NewMap(pairs ...Entry) *Map {
	return emptyMap.SetSlice(pairs)
}

// NewMapWith returns a map of the given entries under the supplied
// comparers.
func NewMapWith(kc KeyComparer, vc ValueComparer, pairs ...Entry) *Map {
	m := &Map{ctx: mapCtx{kc: kc, vc: vc}}
	return m.SetSlice(pairs)
}

// Count returns the number of entries.
func (m *Map) Count() int { return m.size }

// IsEmpty reports whether the map has no entries.
func (m *Map) IsEmpty() bool { return m.size == 0 }

// Get returns the value stored for k. It returns an error wrapping
// ErrNotFound, naming the key, when k is absent.
func (m *Map) Get(k interface{}) (interface{}, error) {
	if v, ok := m.TryGet(k); ok {
		return v, nil
	}
	return nil, fmt.Errorf("key %v: %w", k, ErrNotFound)
}

// TryGet returns the value stored for k, or false when k is absent.
func (m *Map) TryGet(k interface{}) (interface{}, bool) {
	e, ok := m.find(k)
	return e.Value, ok
}

// TryGetKey returns the stored key equal to k, or false when k is
// absent. The stored key can differ from k when the key comparer
// treats distinct representations as equal.
func (m *Map) TryGetKey(k interface{}) (interface{}, bool) {
	e, ok := m.find(k)
	return e.Key, ok
}

func (m *Map) find(k interface{}) (Entry, bool) {
	if m.root == nil {
		return Entry{}, false
	}
	return m.root.get(&m.ctx, 0, m.ctx.kc.Hash(k), k)
}

// ContainsKey reports whether k is present.
func (m *Map) ContainsKey(k interface{}) bool {
	_, ok := m.find(k)
	return ok
}

// ContainsValue reports whether any entry stores a value equal to v
// under the value comparer. It scans all entries.
func (m *Map) ContainsValue(v interface{}) bool {
	found := false
	if m.root != nil {
		m.root.iterate(func(e Entry) bool {
			if m.ctx.vc(e.Value, v) {
				found = true
				return false
			}
			return true
		})
	}
	return found
}

// Update stores v for k subject to policy, returning the resulting map
// and what the update did. The receiver is returned unchanged when the
// outcome is OutcomeNoChange. On error the receiver is unaffected.
func (m *Map) Update(k, v interface{}, policy UpdatePolicy) (*Map, UpdateOutcome, error) {
	e := Entry{Key: k, Value: v}
	hash := m.ctx.kc.Hash(k)
	if m.root == nil {
		root := mnode(&valueNode{hash: hash, entry: e})
		return &Map{root: root, size: 1, ctx: m.ctx}, OutcomeSizeChanged, nil
	}
	root, outcome, err := m.root.update(nil, &m.ctx, 0, hash, e, policy)
	if err != nil {
		return nil, 0, err
	}
	if outcome == OutcomeNoChange {
		return m, outcome, nil
	}
	size := m.size
	if outcome == OutcomeSizeChanged {
		size++
	}
	return &Map{root: root, size: size, ctx: m.ctx}, outcome, nil
}

// Set returns a map with v stored for k, replacing any existing value.
func (m *Map) Set(k, v interface{}) *Map {
	res, _, err := m.Update(k, v, UpdateSet)
	if err != nil {
		panic(err)
	}
	return res
}

// Add returns a map with v stored for k, failing with ErrDuplicateKey
// when k is already present with a different value. Adding the value
// already stored is a no-op.
func (m *Map) Add(k, v interface{}) (*Map, error) {
	res, _, err := m.Update(k, v, UpdateFailIfDiffers)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Remove returns a map without k. Removing an absent key returns the
// receiver.
func (m *Map) Remove(k interface{}) *Map {
	if m.root == nil {
		return m
	}
	root, removed := m.root.remove(nil, &m.ctx, 0, m.ctx.kc.Hash(k), k)
	if !removed {
		return m
	}
	return &Map{root: root, size: m.size - 1, ctx: m.ctx}
}

// AddSlice is Add over all pairs. It fails on the first duplicate,
// returning nil and the error; the receiver is unaffected.
func (m *Map) AddSlice(pairs []Entry) (*Map, error) {
	res := m
	for _, e := range pairs {
		var err error
		res, err = res.Add(e.Key, e.Value)
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

// SetSlice is Set over all pairs.
func (m *Map) SetSlice(pairs []Entry) *Map {
	if len(pairs) == 0 {
		return m
	}
	b := m.ToBuilder()
	b.SetSlice(pairs)
	return b.Freeze()
}

// RemoveKeys is Remove over all keys.
func (m *Map) RemoveKeys(ks []interface{}) *Map {
	if len(ks) == 0 || m.size == 0 {
		return m
	}
	b := m.ToBuilder()
	b.RemoveKeys(ks)
	return b.Freeze()
}

// WithComparers returns a map with the same entries under new
// comparers. The trie is rebuilt around the new key comparer; when the
// new comparer makes two stored keys equal while their values differ
// under the new value comparer, it fails with ErrDuplicateKey and the
// receiver is unaffected.
func (m *Map) WithComparers(kc KeyComparer, vc ValueComparer) (*Map, error) {
	res := &Map{ctx: mapCtx{kc: kc, vc: vc}}
	if m.root == nil {
		return res, nil
	}
	b := res.ToBuilder()
	var err error
	m.root.iterate(func(e Entry) bool {
		_, err = b.update(e.Key, e.Value, UpdateFailIfDiffers)
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	return b.Freeze(), nil
}

// WithValueComparer returns a map with the same entries and key
// comparer but a new value comparer. The trie is reused as is.
func (m *Map) WithValueComparer(vc ValueComparer) *Map {
	return &Map{root: m.root, size: m.size, ctx: mapCtx{kc: m.ctx.kc, vc: vc}}
}

// ToBuilder returns a mutable builder seeded with the contents of m.
func (m *Map) ToBuilder() *MapBuilder {
	return &MapBuilder{root: m.root, size: m.size, ctx: m.ctx, frozen: m}
}

// Clear returns the empty map with the receiver's comparers.
func (m *Map) Clear() *Map {
	if m.size == 0 {
		return m
	}
	return &Map{ctx: m.ctx}
}

// Iterator iterates all entries. The order is fixed by the key hashes,
// not by insertion.
func (m *Map) Iterator() *MapIterator {
	return newMapIterator(m.root, nil)
}

// ToSlice returns the entries as a fresh slice, in iteration order.
func (m *Map) ToSlice() []Entry {
	entries := make([]Entry, 0, m.size)
	if m.root != nil {
		m.root.iterate(func(e Entry) bool {
			entries = append(entries, e)
			return true
		})
	}
	return entries
}

// Equal reports whether both maps hold the same keys with equal
// values. Values are compared with the receiver's value comparer; each
// key is looked up in other under other's key comparer.
func (m *Map) Equal(other *Map) bool {
	if m.size != other.size {
		return false
	}
	equal := true
	if m.root != nil {
		m.root.iterate(func(e Entry) bool {
			v, ok := other.TryGet(e.Key)
			if !ok || !m.ctx.vc(e.Value, v) {
				equal = false
				return false
			}
			return true
		})
	}
	return equal
}

func (m *Map) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	first := true
	if m.root != nil {
		m.root.iterate(func(e Entry) bool {
			if !first {
				sb.WriteByte(' ')
			}
			first = false
			fmt.Fprintf(&sb, "%v:%v", e.Key, e.Value)
			return true
		})
	}
	sb.WriteByte('}')
	return sb.String()
}

// dump prints the trie structure, for debugging.
func (m *Map) dump() {
	if !debug {
		return
	}
	fmt.Printf("map size=%d\n", m.size)
	var rec func(n mnode, indent string)
	rec = func(n mnode, indent string) {
		switch x := n.(type) {
		case nil:
			fmt.Printf("%s<nil>\n", indent)
		case *valueNode:
			fmt.Printf("%svalue %08x %v:%v\n", indent, x.hash, x.entry.Key, x.entry.Value)
		case *collisionNode:
			fmt.Printf("%scollision %08x %v\n", indent, x.hash, x.entries)
		case *bitmapNode:
			fmt.Printf("%sbitmap %08x\n", indent, x.bitmap)
			for _, c := range x.children {
				rec(c, indent+"  ")
			}
		case *arrayNode:
			fmt.Printf("%sarray count=%d\n", indent, x.count)
			for i, c := range x.children {
				if c != nil {
					fmt.Printf("%s[%d]\n", indent, i)
					rec(c, indent+"  ")
				}
			}
		}
	}
	rec(m.root, "  ")
}
