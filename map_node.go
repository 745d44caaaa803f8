package pcoll

import (
	"fmt"
	"math/bits"
)

// UpdatePolicy selects what a map update does when the key is already
// present. A missing key is always inserted regardless of policy.
type UpdatePolicy int

const (
	// UpdateSet unconditionally replaces the stored value.
	UpdateSet UpdatePolicy = iota
	// UpdateSetIfDiffers replaces the stored value only when it is not
	// equal to the new one under the value comparer.
	UpdateSetIfDiffers
	// UpdateSkip keeps the stored value.
	UpdateSkip
	// UpdateFailIfDiffers fails with ErrDuplicateKey when the stored
	// value differs from the new one, and otherwise keeps it.
	UpdateFailIfDiffers
	// UpdateFail fails with ErrDuplicateKey whenever the key is
	// present.
	UpdateFail
)

// UpdateOutcome reports what an update did.
type UpdateOutcome int

const (
	// OutcomeSizeChanged means a new key was inserted.
	OutcomeSizeChanged UpdateOutcome = iota
	// OutcomeApplied means an existing key's value was replaced.
	OutcomeApplied
	// OutcomeNoChange means the map already satisfied the update.
	OutcomeNoChange
)

// Entry is a key/value pair.
type Entry struct {
	Key   interface{}
	Value interface{}
}

const (
	hashBits = 32
	// A sparse node spills into a dense one when an insert would give
	// it more than expandThreshold children; a dense node packs back
	// down when a removal leaves packThreshold or fewer.
	expandThreshold = chunkSize / 2
	packThreshold   = chunkSize / 4
)

func hashFrag(hash uint32, shift uint) uint32 { return (hash >> shift) & chunkMask }
func bitpos(hash uint32, shift uint) uint32   { return 1 << hashFrag(hash, shift) }

type mapCtx struct {
	kc KeyComparer
	vc ValueComparer
}

// mnode is a node of the hash trie. shift is the bit offset of the
// hash fragment the node discriminates on.
type mnode interface {
	get(c *mapCtx, shift uint, hash uint32, k interface{}) (Entry, bool)
	update(o *owner, c *mapCtx, shift uint, hash uint32, e Entry, policy UpdatePolicy) (mnode, UpdateOutcome, error)
	remove(o *owner, c *mapCtx, shift uint, hash uint32, k interface{}) (mnode, bool)
	iterate(fn func(Entry) bool) bool
}

func duplicateKeyError(k interface{}) error {
	return fmt.Errorf("add %v: %w", k, ErrDuplicateKey)
}

// resolveExisting applies policy to an entry already stored for the
// key. It reports the replacement value (when apply is true), the
// outcome, or an error, and never mutates anything.
func resolveExisting(c *mapCtx, stored, e Entry, policy UpdatePolicy) (apply bool, outcome UpdateOutcome, err error) {
	switch policy {
	case UpdateSet:
		return true, OutcomeApplied, nil
	case UpdateSetIfDiffers:
		if c.vc(stored.Value, e.Value) {
			return false, OutcomeNoChange, nil
		}
		return true, OutcomeApplied, nil
	case UpdateSkip:
		return false, OutcomeNoChange, nil
	case UpdateFailIfDiffers:
		if c.vc(stored.Value, e.Value) {
			return false, OutcomeNoChange, nil
		}
		return false, 0, duplicateKeyError(e.Key)
	case UpdateFail:
		return false, 0, duplicateKeyError(e.Key)
	}
	panic("unknown update policy")
}

// valueNode holds a single entry together with the full hash of its
// key.
type valueNode struct {
	owner *owner
	hash  uint32
	entry Entry
}

func (n *valueNode) get(c *mapCtx, shift uint, hash uint32, k interface{}) (Entry, bool) {
	if hash == n.hash && c.kc.Equal(k, n.entry.Key) {
		return n.entry, true
	}
	return Entry{}, false
}

func (n *valueNode) update(o *owner, c *mapCtx, shift uint, hash uint32, e Entry, policy UpdatePolicy) (mnode, UpdateOutcome, error) {
	if hash == n.hash {
		if c.kc.Equal(e.Key, n.entry.Key) {
			apply, outcome, err := resolveExisting(c, n.entry, e, policy)
			if err != nil {
				return nil, 0, err
			}
			if !apply {
				return n, outcome, nil
			}
			if o != nil && n.owner == o {
				n.entry = e
				return n, outcome, nil
			}
			return &valueNode{owner: o, hash: hash, entry: e}, outcome, nil
		}
		return &collisionNode{owner: o, hash: hash, entries: []Entry{n.entry, e}}, OutcomeSizeChanged, nil
	}
	leaf := &valueNode{owner: o, hash: hash, entry: e}
	return mergeLeaves(o, shift, n, leaf), OutcomeSizeChanged, nil
}

// mergeLeaves combines two leaves with distinct hashes, descending
// while their hash fragments keep colliding.
func mergeLeaves(o *owner, shift uint, a, b mnode) mnode {
	ah, bh := leafHash(a), leafHash(b)
	ai, bi := hashFrag(ah, shift), hashFrag(bh, shift)
	if ai == bi {
		return &bitmapNode{
			owner:    o,
			bitmap:   1 << ai,
			children: []mnode{mergeLeaves(o, shift+chunkBits, a, b)},
		}
	}
	children := make([]mnode, 2)
	if ai < bi {
		children[0], children[1] = a, b
	} else {
		children[0], children[1] = b, a
	}
	return &bitmapNode{owner: o, bitmap: 1<<ai | 1<<bi, children: children}
}

func leafHash(n mnode) uint32 {
	switch x := n.(type) {
	case *valueNode:
		return x.hash
	case *collisionNode:
		return x.hash
	}
	panic("not a leaf node")
}

func (n *valueNode) remove(o *owner, c *mapCtx, shift uint, hash uint32, k interface{}) (mnode, bool) {
	if hash == n.hash && c.kc.Equal(k, n.entry.Key) {
		return nil, true
	}
	return n, false
}

func (n *valueNode) iterate(fn func(Entry) bool) bool {
	return fn(n.entry)
}

// collisionNode holds entries whose keys hash identically but are not
// equal.
type collisionNode struct {
	owner   *owner
	hash    uint32
	entries []Entry
}

func (n *collisionNode) indexOf(c *mapCtx, k interface{}) int {
	for i, e := range n.entries {
		if c.kc.Equal(k, e.Key) {
			return i
		}
	}
	return -1
}

func (n *collisionNode) get(c *mapCtx, shift uint, hash uint32, k interface{}) (Entry, bool) {
	if hash != n.hash {
		return Entry{}, false
	}
	if i := n.indexOf(c, k); i >= 0 {
		return n.entries[i], true
	}
	return Entry{}, false
}

func (n *collisionNode) update(o *owner, c *mapCtx, shift uint, hash uint32, e Entry, policy UpdatePolicy) (mnode, UpdateOutcome, error) {
	if hash != n.hash {
		leaf := &valueNode{owner: o, hash: hash, entry: e}
		return mergeLeaves(o, shift, n, leaf), OutcomeSizeChanged, nil
	}
	if i := n.indexOf(c, e.Key); i >= 0 {
		apply, outcome, err := resolveExisting(c, n.entries[i], e, policy)
		if err != nil {
			return nil, 0, err
		}
		if !apply {
			return n, outcome, nil
		}
		m := n.editable(o)
		m.entries[i] = e
		return m, outcome, nil
	}
	entries := make([]Entry, len(n.entries)+1)
	copy(entries, n.entries)
	entries[len(n.entries)] = e
	if o != nil && n.owner == o {
		n.entries = entries
		return n, OutcomeSizeChanged, nil
	}
	return &collisionNode{owner: o, hash: n.hash, entries: entries}, OutcomeSizeChanged, nil
}

func (n *collisionNode) remove(o *owner, c *mapCtx, shift uint, hash uint32, k interface{}) (mnode, bool) {
	if hash != n.hash {
		return n, false
	}
	i := n.indexOf(c, k)
	if i < 0 {
		return n, false
	}
	if len(n.entries) == 2 {
		return &valueNode{owner: o, hash: n.hash, entry: n.entries[1-i]}, true
	}
	entries := make([]Entry, 0, len(n.entries)-1)
	entries = append(entries, n.entries[:i]...)
	entries = append(entries, n.entries[i+1:]...)
	if o != nil && n.owner == o {
		n.entries = entries
		return n, true
	}
	return &collisionNode{owner: o, hash: n.hash, entries: entries}, true
}

func (n *collisionNode) iterate(fn func(Entry) bool) bool {
	for _, e := range n.entries {
		if !fn(e) {
			return false
		}
	}
	return true
}

func (n *collisionNode) editable(o *owner) *collisionNode {
	if o != nil && n.owner == o {
		return n
	}
	entries := make([]Entry, len(n.entries))
	copy(entries, n.entries)
	return &collisionNode{owner: o, hash: n.hash, entries: entries}
}

// bitmapNode is a sparse interior node: bit i of bitmap is set when a
// child exists for hash fragment i, and children holds the existing
// children densely in fragment order.
type bitmapNode struct {
	owner    *owner
	bitmap   uint32
	children []mnode
}

func (n *bitmapNode) index(bit uint32) int {
	return bits.OnesCount32(n.bitmap & (bit - 1))
}

func (n *bitmapNode) editable(o *owner) *bitmapNode {
	if o != nil && n.owner == o {
		return n
	}
	children := make([]mnode, len(n.children))
	copy(children, n.children)
	return &bitmapNode{owner: o, bitmap: n.bitmap, children: children}
}

func (n *bitmapNode) get(c *mapCtx, shift uint, hash uint32, k interface{}) (Entry, bool) {
	bit := bitpos(hash, shift)
	if n.bitmap&bit == 0 {
		return Entry{}, false
	}
	return n.children[n.index(bit)].get(c, shift+chunkBits, hash, k)
}

func (n *bitmapNode) update(o *owner, c *mapCtx, shift uint, hash uint32, e Entry, policy UpdatePolicy) (mnode, UpdateOutcome, error) {
	bit := bitpos(hash, shift)
	if n.bitmap&bit != 0 {
		i := n.index(bit)
		child, outcome, err := n.children[i].update(o, c, shift+chunkBits, hash, e, policy)
		if err != nil {
			return nil, 0, err
		}
		if outcome == OutcomeNoChange {
			return n, outcome, nil
		}
		m := n.editable(o)
		m.children[i] = child
		return m, outcome, nil
	}
	leaf := &valueNode{owner: o, hash: hash, entry: e}
	if len(n.children) >= expandThreshold {
		return n.expand(o, shift, hashFrag(hash, shift), leaf), OutcomeSizeChanged, nil
	}
	i := n.index(bit)
	children := make([]mnode, len(n.children)+1)
	copy(children, n.children[:i])
	children[i] = leaf
	copy(children[i+1:], n.children[i:])
	if o != nil && n.owner == o {
		n.bitmap |= bit
		n.children = children
		return n, OutcomeSizeChanged, nil
	}
	return &bitmapNode{owner: o, bitmap: n.bitmap | bit, children: children}, OutcomeSizeChanged, nil
}

// expand converts the node to a dense arrayNode with child inserted at
// fragment frag.
func (n *bitmapNode) expand(o *owner, shift uint, frag uint32, child mnode) *arrayNode {
	a := &arrayNode{owner: o, count: len(n.children) + 1}
	i := 0
	for f := uint32(0); f < chunkSize; f++ {
		if n.bitmap&(1<<f) != 0 {
			a.children[f] = n.children[i]
			i++
		}
	}
	a.children[frag] = child
	return a
}

func (n *bitmapNode) remove(o *owner, c *mapCtx, shift uint, hash uint32, k interface{}) (mnode, bool) {
	bit := bitpos(hash, shift)
	if n.bitmap&bit == 0 {
		return n, false
	}
	i := n.index(bit)
	child, removed := n.children[i].remove(o, c, shift+chunkBits, hash, k)
	if !removed {
		return n, false
	}
	if child == nil {
		if len(n.children) == 1 {
			return nil, true
		}
		if len(n.children) == 2 {
			if other := n.children[1-i]; isLeaf(other) {
				return other, true
			}
		}
		children := make([]mnode, 0, len(n.children)-1)
		children = append(children, n.children[:i]...)
		children = append(children, n.children[i+1:]...)
		if o != nil && n.owner == o {
			n.bitmap &^= bit
			n.children = children
			return n, true
		}
		return &bitmapNode{owner: o, bitmap: n.bitmap &^ bit, children: children}, true
	}
	if len(n.children) == 1 && isLeaf(child) {
		return child, true
	}
	m := n.editable(o)
	m.children[i] = child
	return m, true
}

func isLeaf(n mnode) bool {
	switch n.(type) {
	case *valueNode, *collisionNode:
		return true
	}
	return false
}

func (n *bitmapNode) iterate(fn func(Entry) bool) bool {
	for _, c := range n.children {
		if !c.iterate(fn) {
			return false
		}
	}
	return true
}

// arrayNode is a dense interior node: children is indexed directly by
// hash fragment, count tracks the live slots.
type arrayNode struct {
	owner    *owner
	count    int
	children [chunkSize]mnode
}

func (n *arrayNode) editable(o *owner) *arrayNode {
	if o != nil && n.owner == o {
		return n
	}
	m := &arrayNode{owner: o, count: n.count}
	m.children = n.children
	return m
}

func (n *arrayNode) get(c *mapCtx, shift uint, hash uint32, k interface{}) (Entry, bool) {
	child := n.children[hashFrag(hash, shift)]
	if child == nil {
		return Entry{}, false
	}
	return child.get(c, shift+chunkBits, hash, k)
}

func (n *arrayNode) update(o *owner, c *mapCtx, shift uint, hash uint32, e Entry, policy UpdatePolicy) (mnode, UpdateOutcome, error) {
	frag := hashFrag(hash, shift)
	child := n.children[frag]
	if child == nil {
		m := n.editable(o)
		m.children[frag] = &valueNode{owner: o, hash: hash, entry: e}
		m.count++
		return m, OutcomeSizeChanged, nil
	}
	newChild, outcome, err := child.update(o, c, shift+chunkBits, hash, e, policy)
	if err != nil {
		return nil, 0, err
	}
	if outcome == OutcomeNoChange {
		return n, outcome, nil
	}
	m := n.editable(o)
	m.children[frag] = newChild
	return m, outcome, nil
}

func (n *arrayNode) remove(o *owner, c *mapCtx, shift uint, hash uint32, k interface{}) (mnode, bool) {
	frag := hashFrag(hash, shift)
	child := n.children[frag]
	if child == nil {
		return n, false
	}
	newChild, removed := child.remove(o, c, shift+chunkBits, hash, k)
	if !removed {
		return n, false
	}
	if newChild == nil && n.count-1 <= packThreshold {
		return n.pack(o, frag), true
	}
	m := n.editable(o)
	m.children[frag] = newChild
	if newChild == nil {
		m.count--
	}
	return m, true
}

// pack converts the node back to a sparse bitmapNode, dropping the
// slot at fragment skip.
func (n *arrayNode) pack(o *owner, skip uint32) *bitmapNode {
	children := make([]mnode, 0, n.count-1)
	var bitmap uint32
	for f := uint32(0); f < chunkSize; f++ {
		if f == skip || n.children[f] == nil {
			continue
		}
		bitmap |= 1 << f
		children = append(children, n.children[f])
	}
	return &bitmapNode{owner: o, bitmap: bitmap, children: children}
}

func (n *arrayNode) iterate(fn func(Entry) bool) bool {
	for _, c := range n.children {
		if c == nil {
			continue
		}
		if !c.iterate(fn) {
			return false
		}
	}
	return true
}
