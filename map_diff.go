package pcoll

import "fmt"

// DiffIter invokes fn for each entry that differs between m and old:
// added reports a key present only in m, removed a key present only in
// old, and both together a key whose value changed (addedValue is the
// new value, removedValue the old). Subtrees the two maps share are
// skipped wholesale, so diffing a snapshot against a near ancestor
// costs proportional to the change, not to the map.
//
// Both maps must use the receiver's key comparer. fn returns false to
// stop early.
func (m *Map) DiffIter(old *Map, fn func(added, removed bool, key, addedValue, removedValue interface{}) (bool, error)) error {
	var oldRoot mnode
	if old != nil {
		oldRoot = old.root
	}
	_, err := diffNodes(&m.ctx, oldRoot, m.root, 0, fn)
	return err
}

// DiffIter is Map.DiffIter for the builder's current contents.
func (b *MapBuilder) DiffIter(old *Map, fn func(added, removed bool, key, addedValue, removedValue interface{}) (bool, error)) error {
	var oldRoot mnode
	if old != nil {
		oldRoot = old.root
	}
	_, err := diffNodes(&b.ctx, oldRoot, b.root, 0, fn)
	return err
}

// diffNodes walks two tries of the same comparer in lockstep. Nodes
// compared equal by identity are pruned without descending.
func diffNodes(c *mapCtx, old, new mnode, shift uint, fn func(added, removed bool, key, addedValue, removedValue interface{}) (bool, error)) (bool, error) {
	if old == new {
		return true, nil
	}
	if old == nil {
		return diffEmit(new, true, false, fn)
	}
	if new == nil {
		return diffEmit(old, false, true, fn)
	}
	if !isLeaf(old) && !isLeaf(new) {
		for frag := uint32(0); frag < chunkSize; frag++ {
			keepGoing, err := diffNodes(c, interiorChild(old, frag), interiorChild(new, frag), shift+chunkBits, fn)
			if err != nil || !keepGoing {
				return keepGoing, err
			}
		}
		return true, nil
	}
	// At least one side is a leaf, so one side is small; match entries
	// across by lookup.
	keepGoing := true
	var err error
	new.iterate(func(e Entry) bool {
		stored, ok := old.get(c, shift, c.kc.Hash(e.Key), e.Key)
		if ok && c.vc(stored.Value, e.Value) {
			return true
		}
		if ok {
			keepGoing, err = fn(true, true, e.Key, e.Value, stored.Value)
		} else {
			keepGoing, err = fn(true, false, e.Key, e.Value, nil)
		}
		return keepGoing && err == nil
	})
	if err != nil || !keepGoing {
		return keepGoing, wrapDiffErr(err)
	}
	old.iterate(func(e Entry) bool {
		if _, ok := new.get(c, shift, c.kc.Hash(e.Key), e.Key); ok {
			return true
		}
		keepGoing, err = fn(false, true, e.Key, nil, e.Value)
		return keepGoing && err == nil
	})
	return keepGoing, wrapDiffErr(err)
}

// diffEmit reports every entry of a subtree present on only one side.
func diffEmit(n mnode, added, removed bool, fn func(added, removed bool, key, addedValue, removedValue interface{}) (bool, error)) (bool, error) {
	keepGoing := true
	var err error
	n.iterate(func(e Entry) bool {
		if added {
			keepGoing, err = fn(true, false, e.Key, e.Value, nil)
		} else {
			keepGoing, err = fn(false, true, e.Key, nil, e.Value)
		}
		return keepGoing && err == nil
	})
	return keepGoing, wrapDiffErr(err)
}

func wrapDiffErr(err error) error {
	if err != nil {
		return fmt.Errorf("callback: %w", err)
	}
	return nil
}

// interiorChild returns the child for a hash fragment of a bitmap or
// array node, or nil when the slot is empty.
func interiorChild(n mnode, frag uint32) mnode {
	switch x := n.(type) {
	case *bitmapNode:
		bit := uint32(1) << frag
		if x.bitmap&bit == 0 {
			return nil
		}
		return x.children[x.index(bit)]
	case *arrayNode:
		return x.children[frag]
	}
	panic("not an interior node")
}
