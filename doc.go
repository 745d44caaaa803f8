/*
Package pcoll provides persistent (immutable, structurally shared)
collections for Go: Vector, an indexed sequence backed by a
bit-partitioned trie with a tail chunk, and Map, a hash array mapped
trie.  Every operation returns a new version and leaves the old one
untouched, so versions can be kept, compared and shared between
goroutines without locks.  Frozen collections can be snapshotted to
anything that stores bytes by name, like a filesystem or blob store,
with unchanged subtrees stored only once.

Uses

- Cheap versioning: keep every historical value of a configuration or
index and diff or roll back at will

- Safe sharing: hand a frozen Vector or Map to another goroutine
without copying or locking

- Efficient copy-on-write alternative to Go builtin slices and maps

Builders

Batch updates go through builders.  ToBuilder() is O(1); the builder
mutates nodes it owns in place and copies shared nodes on first touch,
so a build loop costs about what the equivalent slice or map writes
would.  Freeze() is O(1) and the builder stays usable afterwards.

	b := pcoll.Empty().ToBuilder()
	for i := 0; i < 100000; i++ {
		b.Add(i)
	}
	v := b.Freeze()

Windows

Vector.Range returns a window onto the original trie in time
proportional to the trie depth, not to the window size.  Appending to
a window diverges from the original without disturbing it.

Inspiration

The shapes here are the ones Clojure's PersistentVector and
PersistentHashMap made standard, and that bodil/im-rs explored for
Rust.  The persistence layer follows the content-addressed style of
Merkle structures: a node's name is the hash of its bytes, so equal
subtrees converge in storage.
*/
package pcoll
