package pcoll

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/minio/blake2b-simd"
)

// Persist is the interface for loading and storing blobs of immutable
// nodes by name.
type Persist interface {
	// Store makes the given bytes available at the given name.
	Store(ctx context.Context, name string, value []byte) error
	// Load retrieves the bytes previously stored at the given name.
	Load(ctx context.Context, name string) ([]byte, error)
}

var (
	defaultMarshal   = json.Marshal
	defaultUnmarshal = json.Unmarshal
)

// StoreConfig configures a Store.
type StoreConfig struct {
	// Persist is where node blobs go. Required.
	Persist Persist
	// NodeCache, if set, avoids re-storing and re-decoding nodes that
	// are shared between snapshots.
	NodeCache NodeCache
	// Marshal/Unmarshal encode the elements, keys and values held in
	// nodes. They default to encoding/json; note that untyped JSON
	// decoding turns numbers into float64, so typed keys need a codec
	// that round-trips them.
	Marshal   func(interface{}) ([]byte, error)
	Unmarshal func([]byte, interface{}) error
}

// Store saves and loads frozen vectors and maps as content-addressed
// node graphs: each node is encoded, named by the blake2b hash of its
// bytes, and stored once. Subtrees shared between snapshots are stored
// only once.
type Store struct {
	persist   Persist
	cache     NodeCache
	marshal   marshalFunc
	unmarshal unmarshalFunc
}

// NewStore returns a Store for the given configuration.
func NewStore(cfg StoreConfig) *Store {
	if cfg.Persist == nil {
		panic("pcoll: StoreConfig.Persist is required")
	}
	s := &Store{
		persist:   cfg.Persist,
		cache:     cfg.NodeCache,
		marshal:   cfg.Marshal,
		unmarshal: cfg.Unmarshal,
	}
	if s.marshal == nil {
		s.marshal = defaultMarshal
	}
	if s.unmarshal == nil {
		s.unmarshal = defaultUnmarshal
	}
	return s
}

// VectorRoot names a stored vector: the link of its root node, the
// link of its tail chunk, and the window geometry needed to address
// them.
type VectorRoot struct {
	Link     string `json:"link,omitempty"`
	Tail     string `json:"tail,omitempty"`
	Origin   int    `json:"origin"`
	Capacity int    `json:"capacity"`
	Shift    uint   `json:"shift"`
}

// MapRoot names a stored map: the link of its root node and the entry
// count.
type MapRoot struct {
	Link string `json:"link,omitempty"`
	Size int    `json:"size"`
}

func (s *Store) storeBlob(ctx context.Context, encoded []byte, decoded interface{}) (string, error) {
	sum := blake2b.Sum256(encoded)
	name := base64.RawURLEncoding.EncodeToString(sum[:])
	if s.cache != nil && s.cache.Contains(name) {
		return name, nil
	}
	if err := s.persist.Store(ctx, name, encoded); err != nil {
		return "", fmt.Errorf("persist store: %w", err)
	}
	if s.cache != nil {
		s.cache.Add(name, decoded)
	}
	return name, nil
}

func (s *Store) loadBlob(ctx context.Context, name string) ([]byte, interface{}, error) {
	if s.cache != nil {
		if node, ok := s.cache.Get(name); ok {
			return nil, node, nil
		}
	}
	b, err := s.persist.Load(ctx, name)
	if err != nil {
		return nil, nil, fmt.Errorf("persist load %s: %w", name, err)
	}
	return b, nil, nil
}

// StoreVector saves v's node graph and returns its root record.
func (s *Store) StoreVector(ctx context.Context, v *Vector) (VectorRoot, error) {
	root := VectorRoot{
		Origin:   v.t.origin,
		Capacity: v.t.capacity,
		Shift:    v.t.shift,
	}
	if v.t.root != nil {
		link, err := s.storeVnode(ctx, v.t.root, v.t.shift)
		if err != nil {
			return VectorRoot{}, err
		}
		root.Link = link
	}
	if v.t.tail != nil {
		link, err := s.storeVnode(ctx, v.t.tail, 0)
		if err != nil {
			return VectorRoot{}, err
		}
		root.Tail = link
	}
	return root, nil
}

func (s *Store) storeVnode(ctx context.Context, n *vnode, shift uint) (string, error) {
	var encoded []byte
	if shift == 0 {
		var err error
		encoded, err = marshalVectorLeaf(n, s.marshal)
		if err != nil {
			return "", err
		}
	} else {
		var links [chunkSize]string
		for i, c := range n.children {
			if c == nil {
				continue
			}
			link, err := s.storeVnode(ctx, c.(*vnode), shift-chunkBits)
			if err != nil {
				return "", err
			}
			links[i] = link
		}
		encoded = marshalVectorInterior(&links)
	}
	return s.storeBlob(ctx, encoded, n)
}

// LoadVector reconstructs the vector named by root.
func (s *Store) LoadVector(ctx context.Context, root VectorRoot) (*Vector, error) {
	if root.Capacity < root.Origin || root.Origin < 0 {
		return nil, fmt.Errorf("bad vector root window [%d, %d)", root.Origin, root.Capacity)
	}
	if root.Capacity == root.Origin {
		return emptyVector, nil
	}
	t := vtrie{origin: root.Origin, capacity: root.Capacity, shift: root.Shift}
	if root.Link != "" {
		n, err := s.loadVnode(ctx, root.Link, root.Shift)
		if err != nil {
			return nil, err
		}
		t.root = n
	}
	if root.Tail == "" {
		return nil, fmt.Errorf("vector root %v has no tail", root)
	}
	tail, err := s.loadVnode(ctx, root.Tail, 0)
	if err != nil {
		return nil, err
	}
	t.tail = tail
	return &Vector{t: t}, nil
}

func (s *Store) loadVnode(ctx context.Context, name string, shift uint) (*vnode, error) {
	encoded, cached, err := s.loadBlob(ctx, name)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		n, ok := cached.(*vnode)
		if !ok {
			return nil, fmt.Errorf("cached node %s is %T, not a vector node", name, cached)
		}
		return n, nil
	}
	var w wireVnode
	if err := unmarshalVectorNode(encoded, &w, s.unmarshal); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", name, err)
	}
	n := newVnode(nil)
	switch w.kind {
	case wireVectorLeaf:
		if shift != 0 {
			return nil, fmt.Errorf("node %s: leaf at interior position", name)
		}
		n.children = w.elements
	case wireVectorInterior:
		if shift == 0 {
			return nil, fmt.Errorf("node %s: interior node at leaf position", name)
		}
		for i, link := range w.links {
			if link == "" {
				continue
			}
			child, err := s.loadVnode(ctx, link, shift-chunkBits)
			if err != nil {
				return nil, err
			}
			n.children[i] = child
		}
	}
	if s.cache != nil {
		s.cache.Add(name, n)
	}
	return n, nil
}

// StoreMap saves m's node graph and returns its root record.
func (s *Store) StoreMap(ctx context.Context, m *Map) (MapRoot, error) {
	root := MapRoot{Size: m.size}
	if m.root != nil {
		link, err := s.storeMnode(ctx, m.root)
		if err != nil {
			return MapRoot{}, err
		}
		root.Link = link
	}
	return root, nil
}

func (s *Store) storeMnode(ctx context.Context, n mnode) (string, error) {
	var encoded []byte
	var err error
	switch x := n.(type) {
	case *valueNode:
		encoded, err = marshalMapValue(x, s.marshal)
	case *collisionNode:
		encoded, err = marshalMapCollision(x, s.marshal)
	case *bitmapNode:
		links := make([]string, len(x.children))
		for i, c := range x.children {
			links[i], err = s.storeMnode(ctx, c)
			if err != nil {
				return "", err
			}
		}
		encoded = marshalMapBitmap(x.bitmap, links)
	case *arrayNode:
		var slots [chunkSize]string
		for i, c := range x.children {
			if c == nil {
				continue
			}
			slots[i], err = s.storeMnode(ctx, c)
			if err != nil {
				return "", err
			}
		}
		encoded = marshalMapArray(&slots)
	default:
		return "", fmt.Errorf("unknown map node type %T", n)
	}
	if err != nil {
		return "", err
	}
	return s.storeBlob(ctx, encoded, n)
}

// LoadMap reconstructs the map named by root under the given
// comparers. Every entry's key is rehashed with kc and checked against
// the trie path it was found on, so loading a map with a key comparer
// it was not stored under fails rather than yielding a map that cannot
// find its own entries.
func (s *Store) LoadMap(ctx context.Context, root MapRoot, kc KeyComparer, vc ValueComparer) (*Map, error) {
	m := &Map{size: root.Size, ctx: mapCtx{kc: kc, vc: vc}}
	if root.Link == "" {
		if root.Size != 0 {
			return nil, fmt.Errorf("map root claims %d entries but has no link", root.Size)
		}
		return m, nil
	}
	n, count, err := s.loadMnode(ctx, root.Link, 0, 0, &m.ctx)
	if err != nil {
		return nil, err
	}
	if count != root.Size {
		return nil, fmt.Errorf("map root claims %d entries, found %d", root.Size, count)
	}
	m.root = n
	return m, nil
}

// loadMnode loads the node at name, whose position implies that all
// keys below it hash to prefix in their low shift bits.
func (s *Store) loadMnode(ctx context.Context, name string, shift uint, prefix uint32, c *mapCtx) (mnode, int, error) {
	encoded, cached, err := s.loadBlob(ctx, name)
	if err != nil {
		return nil, 0, err
	}
	if cached != nil {
		n, ok := cached.(mnode)
		if !ok {
			return nil, 0, fmt.Errorf("cached node %s is %T, not a map node", name, cached)
		}
		count, err := verifyMnode(name, n, shift, prefix, c)
		if err != nil {
			return nil, 0, err
		}
		return n, count, nil
	}
	var w wireMnode
	if err := unmarshalMapNode(encoded, &w, s.unmarshal); err != nil {
		return nil, 0, fmt.Errorf("unmarshal %s: %w", name, err)
	}
	var n mnode
	var count int
	switch w.kind {
	case wireMapValue:
		n = &valueNode{hash: w.hash, entry: w.entries[0]}
		count = 1
	case wireMapCollision:
		n = &collisionNode{hash: w.hash, entries: w.entries}
		count = len(w.entries)
	case wireMapBitmap:
		children := make([]mnode, len(w.links))
		frag := uint32(0)
		for i := range w.links {
			for w.bitmap&(1<<frag) == 0 {
				frag++
			}
			child, childCount, err := s.loadMnode(ctx, w.links[i], shift+chunkBits, prefix|frag<<shift, c)
			if err != nil {
				return nil, 0, err
			}
			children[i] = child
			count += childCount
			frag++
		}
		n = &bitmapNode{bitmap: w.bitmap, children: children}
	case wireMapArray:
		a := &arrayNode{}
		for i, link := range w.slots {
			if link == "" {
				continue
			}
			child, childCount, err := s.loadMnode(ctx, link, shift+chunkBits, prefix|uint32(i)<<shift, c)
			if err != nil {
				return nil, 0, err
			}
			a.children[i] = child
			a.count++
			count += childCount
		}
		n = a
	}
	if isLeaf(n) {
		// Interior children were verified as they were loaded.
		if _, err := verifyMnode(name, n, shift, prefix, c); err != nil {
			return nil, 0, err
		}
	}
	if s.cache != nil {
		s.cache.Add(name, n)
	}
	return n, count, nil
}

// verifyMnode checks every leaf at or below n, its recorded hash and
// entries, against the trie path and the key comparer in use, and
// returns the number of entries below n.
func verifyMnode(name string, n mnode, shift uint, prefix uint32, c *mapCtx) (int, error) {
	switch x := n.(type) {
	case *valueNode:
		if err := verifyEntryHash(name, x.entry, x.hash, shift, prefix, c); err != nil {
			return 0, err
		}
		return 1, nil
	case *collisionNode:
		for _, e := range x.entries {
			if err := verifyEntryHash(name, e, x.hash, shift, prefix, c); err != nil {
				return 0, err
			}
		}
		return len(x.entries), nil
	case *bitmapNode:
		count := 0
		frag := uint32(0)
		for _, child := range x.children {
			for x.bitmap&(1<<frag) == 0 {
				frag++
			}
			childCount, err := verifyMnode(name, child, shift+chunkBits, prefix|frag<<shift, c)
			if err != nil {
				return 0, err
			}
			count += childCount
			frag++
		}
		return count, nil
	case *arrayNode:
		count := 0
		for i, child := range x.children {
			if child == nil {
				continue
			}
			childCount, err := verifyMnode(name, child, shift+chunkBits, prefix|uint32(i)<<shift, c)
			if err != nil {
				return 0, err
			}
			count += childCount
		}
		return count, nil
	}
	return 0, fmt.Errorf("unknown map node type %T", n)
}

func verifyEntryHash(name string, e Entry, recorded uint32, shift uint, prefix uint32, c *mapCtx) error {
	h := c.kc.Hash(e.Key)
	if h != recorded {
		return fmt.Errorf("node %s: key %v hashes to %08x under this comparer, stored as %08x",
			name, e.Key, h, recorded)
	}
	if shift < hashBits {
		mask := uint32(1)<<shift - 1
		if h&mask != prefix&mask {
			return fmt.Errorf("node %s: key %v found off its hash path", name, e.Key)
		}
	}
	return nil
}
