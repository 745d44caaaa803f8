package pcoll

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"
)

// Wire framing for persisted nodes: a kind byte followed by
// varint-length-prefixed bodies. Child nodes appear as their
// content-hash names, so a blob fully describes one node.
const (
	wireVectorLeaf     = 'l'
	wireVectorInterior = 'i'
	wireMapValue       = 'v'
	wireMapCollision   = 'c'
	wireMapBitmap      = 'b'
	wireMapArray       = 'a'
)

type marshalFunc func(interface{}) ([]byte, error)
type unmarshalFunc func([]byte, interface{}) error

func appendLength(buf []byte, n int) []byte {
	var tmpbuf [8]byte
	len := binary.PutUvarint(tmpbuf[:], uint64(n))
	return append(buf, tmpbuf[:len]...)
}

func appendBytes(buf, body []byte) []byte {
	buf = appendLength(buf, len(body))
	return append(buf, body...)
}

func appendString(buf []byte, s string) []byte {
	buf = appendLength(buf, len(s))
	return append(buf, s...)
}

func decodeLength(buf []byte, n *int) ([]byte, error) {
	k, len := binary.Uvarint(buf)
	if len <= 0 {
		return nil, errors.New("bad length")
	}
	*n = int(k)
	return buf[len:], nil
}

func decodeBytes(buf []byte, body *[]byte) ([]byte, error) {
	var err error
	var n int
	buf, err = decodeLength(buf, &n)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return buf, nil
	}
	if len(buf) < n {
		return nil, errors.New("bad body length")
	}
	*body = buf[:n]
	return buf[n:], nil
}

func decodeString(buf []byte, s *string) ([]byte, error) {
	var body []byte
	buf, err := decodeBytes(buf, &body)
	if err != nil {
		return nil, err
	}
	*s = string(body)
	return buf, nil
}

// wireVnode is the decoded form of a persisted vector node: elements
// for a leaf, child links for an interior node.
type wireVnode struct {
	kind     byte
	elements [chunkSize]interface{}
	links    [chunkSize]string
}

func marshalVectorLeaf(n *vnode, marshal marshalFunc) ([]byte, error) {
	buf := []byte{wireVectorLeaf}
	for _, x := range n.children {
		if x == nil {
			buf = appendLength(buf, 0)
			continue
		}
		body, err := marshal(x)
		if err != nil {
			return nil, fmt.Errorf("marshal element: %w", err)
		}
		buf = appendBytes(buf, body)
	}
	return buf, nil
}

func marshalVectorInterior(links *[chunkSize]string) []byte {
	buf := []byte{wireVectorInterior}
	for _, l := range links {
		buf = appendString(buf, l)
	}
	return buf
}

func unmarshalVectorNode(buf []byte, n *wireVnode, unmarshal unmarshalFunc) error {
	if len(buf) == 0 {
		return errors.New("empty vector node")
	}
	n.kind = buf[0]
	buf = buf[1:]
	switch n.kind {
	case wireVectorLeaf:
		for i := 0; i < chunkSize; i++ {
			var body []byte
			var err error
			buf, err = decodeBytes(buf, &body)
			if err != nil {
				return err
			}
			if body != nil {
				if err := unmarshal(body, &n.elements[i]); err != nil {
					return fmt.Errorf("unmarshal element %d: %w", i, err)
				}
			}
		}
	case wireVectorInterior:
		for i := 0; i < chunkSize; i++ {
			var err error
			buf, err = decodeString(buf, &n.links[i])
			if err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unknown vector node kind %q", n.kind)
	}
	return nil
}

func appendEntry(buf []byte, e Entry, marshal marshalFunc) ([]byte, error) {
	kb, err := marshal(e.Key)
	if err != nil {
		return nil, fmt.Errorf("marshal key: %w", err)
	}
	vb, err := marshal(e.Value)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}
	buf = appendBytes(buf, kb)
	buf = appendBytes(buf, vb)
	return buf, nil
}

func decodeEntry(buf []byte, e *Entry, unmarshal unmarshalFunc) ([]byte, error) {
	var kb, vb []byte
	var err error
	buf, err = decodeBytes(buf, &kb)
	if err != nil {
		return nil, err
	}
	buf, err = decodeBytes(buf, &vb)
	if err != nil {
		return nil, err
	}
	if kb != nil {
		if err := unmarshal(kb, &e.Key); err != nil {
			return nil, fmt.Errorf("unmarshal key: %w", err)
		}
	}
	if vb != nil {
		if err := unmarshal(vb, &e.Value); err != nil {
			return nil, fmt.Errorf("unmarshal value: %w", err)
		}
	}
	return buf, nil
}

// wireMnode is the decoded form of a persisted map node.
type wireMnode struct {
	kind    byte
	hash    uint32
	entries []Entry
	bitmap  uint32
	links   []string
	slots   [chunkSize]string
}

func marshalMapValue(n *valueNode, marshal marshalFunc) ([]byte, error) {
	buf := []byte{wireMapValue}
	buf = appendLength(buf, int(n.hash))
	return appendEntry(buf, n.entry, marshal)
}

func marshalMapCollision(n *collisionNode, marshal marshalFunc) ([]byte, error) {
	buf := []byte{wireMapCollision}
	buf = appendLength(buf, int(n.hash))
	buf = appendLength(buf, len(n.entries))
	var err error
	for _, e := range n.entries {
		buf, err = appendEntry(buf, e, marshal)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func marshalMapBitmap(bitmap uint32, links []string) []byte {
	buf := []byte{wireMapBitmap}
	buf = appendLength(buf, int(bitmap))
	for _, l := range links {
		buf = appendString(buf, l)
	}
	return buf
}

func marshalMapArray(slots *[chunkSize]string) []byte {
	buf := []byte{wireMapArray}
	for _, l := range slots {
		buf = appendString(buf, l)
	}
	return buf
}

func unmarshalMapNode(buf []byte, n *wireMnode, unmarshal unmarshalFunc) error {
	if len(buf) == 0 {
		return errors.New("empty map node")
	}
	n.kind = buf[0]
	buf = buf[1:]
	var err error
	switch n.kind {
	case wireMapValue:
		var h int
		buf, err = decodeLength(buf, &h)
		if err != nil {
			return err
		}
		n.hash = uint32(h)
		n.entries = make([]Entry, 1)
		_, err = decodeEntry(buf, &n.entries[0], unmarshal)
		return err
	case wireMapCollision:
		var h, total int
		buf, err = decodeLength(buf, &h)
		if err != nil {
			return err
		}
		n.hash = uint32(h)
		buf, err = decodeLength(buf, &total)
		if err != nil {
			return err
		}
		if total < 2 {
			return errors.New("collision node with fewer than 2 entries")
		}
		n.entries = make([]Entry, total)
		for i := range n.entries {
			buf, err = decodeEntry(buf, &n.entries[i], unmarshal)
			if err != nil {
				return err
			}
		}
	case wireMapBitmap:
		var bm int
		buf, err = decodeLength(buf, &bm)
		if err != nil {
			return err
		}
		n.bitmap = uint32(bm)
		n.links = make([]string, bits.OnesCount32(n.bitmap))
		for i := range n.links {
			buf, err = decodeString(buf, &n.links[i])
			if err != nil {
				return err
			}
			if n.links[i] == "" {
				return errors.New("bitmap node with empty child link")
			}
		}
	case wireMapArray:
		for i := 0; i < chunkSize; i++ {
			buf, err = decodeString(buf, &n.slots[i])
			if err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unknown map node kind %q", n.kind)
	}
	return nil
}
