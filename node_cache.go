package pcoll

import lru "github.com/hashicorp/golang-lru"

// NodeCache remembers trie nodes by their content-hash names. A Store
// consults it before its Persist, both to skip re-storing nodes an
// earlier snapshot already wrote and to reuse decoded nodes on load,
// so snapshots that share subtrees on disk share them in memory too.
// Entries are only valid for the Persist they were filled from, so
// switch caches when switching Persists.
type NodeCache interface {
	// Add records a node that was just stored or decoded under name.
	Add(name, node interface{})
	// Contains reports whether the named node is known to be persisted.
	Contains(name interface{}) bool
	// Get returns the decoded node recorded under name, if any.
	Get(name interface{}) (node interface{}, ok bool)
}

// NewNodeCache returns an ARC-backed NodeCache holding up to size
// nodes. One cache can serve any number of vectors and maps stored
// through the same Persist.
func NewNodeCache(size int) NodeCache {
	cache, err := lru.NewARC(size)
	if err != nil {
		panic(err)
	}
	return cache
}
