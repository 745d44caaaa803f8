package pcoll

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/minio/blake2b-simd"
)

// KeyComparer decides key identity for maps. Two keys for which Equal
// returns true must produce the same Hash.
type KeyComparer struct {
	Equal func(a, b interface{}) bool
	Hash  func(k interface{}) uint32
}

// ValueComparer decides value equality for maps, used by strict adds,
// ContainsValue and Equal.
type ValueComparer func(a, b interface{}) bool

// DefaultKeyComparer hashes and compares the builtin scalar types
// directly and falls back to marshaling the key and hashing the bytes
// for everything else.
func DefaultKeyComparer() KeyComparer {
	return KeyComparer{Equal: defaultKeyEqual, Hash: defaultKeyHash}
}

// DefaultValueEqual compares values with defaultKeyEqual's rules.
func DefaultValueEqual(a, b interface{}) bool {
	return defaultKeyEqual(a, b)
}

func defaultKeyEqual(a, b interface{}) bool {
	if ab, ok := a.([]byte); ok {
		bb, ok := b.([]byte)
		if !ok || len(ab) != len(bb) {
			return false
		}
		for i := range ab {
			if ab[i] != bb[i] {
				return false
			}
		}
		return true
	}
	if a == b {
		return true
	}
	// Distinct dynamic types with equal marshaled form are still
	// distinct keys, except for numeric widths of the same kind.
	an, aok := toInt64(a)
	bn, bok := toInt64(b)
	if aok && bok {
		return an == bn
	}
	au, aok := toUint64(a)
	bu, bok := toUint64(b)
	if aok && bok {
		return au == bu
	}
	return false
}

func toInt64(v interface{}) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	}
	return 0, false
}

func toUint64(v interface{}) (uint64, bool) {
	switch x := v.(type) {
	case uint:
		return uint64(x), true
	case uint8:
		return uint64(x), true
	case uint16:
		return uint64(x), true
	case uint32:
		return uint64(x), true
	case uint64:
		return x, true
	case uintptr:
		return uint64(x), true
	}
	return 0, false
}

func defaultKeyHash(k interface{}) uint32 {
	switch x := k.(type) {
	case nil:
		return 0
	case bool:
		if x {
			return 1
		}
		return 2
	case string:
		return hashBytes([]byte(x))
	case []byte:
		return hashBytes(x)
	case float32:
		return hashUint64(uint64(math.Float32bits(x)))
	case float64:
		return hashUint64(math.Float64bits(x))
	}
	if n, ok := toInt64(k); ok {
		return hashUint64(uint64(n))
	}
	if u, ok := toUint64(k); ok {
		return hashUint64(u)
	}
	encoded, err := json.Marshal(k)
	if err != nil {
		panic(fmt.Errorf("hash key %v: %w", k, err))
	}
	return hashBytes(encoded)
}

func hashBytes(b []byte) uint32 {
	sum := blake2b.Sum256(b)
	return binary.BigEndian.Uint32(sum[:4])
}

func hashUint64(u uint64) uint32 {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], u)
	return hashBytes(b[:])
}

// DefaultCompare orders the builtin scalar types. Sort and BinarySearch
// use it when no comparator is supplied. It panics on types it cannot
// order.
func DefaultCompare(a, b interface{}) int {
	if an, ok := toInt64(a); ok {
		if bn, ok := toInt64(b); ok {
			return compareInt64(an, bn)
		}
		if bu, ok := toUint64(b); ok {
			if an < 0 {
				return -1
			}
			return compareUint64(uint64(an), bu)
		}
	}
	if au, ok := toUint64(a); ok {
		if bu, ok := toUint64(b); ok {
			return compareUint64(au, bu)
		}
		if bn, ok := toInt64(b); ok {
			if bn < 0 {
				return 1
			}
			return compareUint64(au, uint64(bn))
		}
	}
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		if !ok {
			break
		}
		if x < y {
			return -1
		} else if x > y {
			return 1
		}
		return 0
	case float64:
		y, ok := b.(float64)
		if !ok {
			break
		}
		if x < y {
			return -1
		} else if x > y {
			return 1
		}
		return 0
	case float32:
		y, ok := b.(float32)
		if !ok {
			break
		}
		if x < y {
			return -1
		} else if x > y {
			return 1
		}
		return 0
	}
	panic(fmt.Errorf("compare: unordered types %T, %T", a, b))
}

func compareInt64(a, b int64) int {
	if a < b {
		return -1
	} else if a > b {
		return 1
	}
	return 0
}

func compareUint64(a, b uint64) int {
	if a < b {
		return -1
	} else if a > b {
		return 1
	}
	return 0
}
