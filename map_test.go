package pcoll

import (
	"fmt"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyMap(t *testing.T) {
	m := EmptyMap()
	assert.Equal(t, 0, m.Count())
	assert.True(t, m.IsEmpty())
	_, ok := m.TryGet("nope")
	assert.False(t, ok)
	_, err := m.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Same(t, m, m.Remove("nope"))
	assert.Same(t, m, m.Clear())
}

func TestMapSetGet(t *testing.T) {
	m := EmptyMap()
	for i := 0; i < 1000; i++ {
		m = m.Set(i, i*10)
	}
	require.Equal(t, 1000, m.Count())
	for i := 0; i < 1000; i++ {
		v, ok := m.TryGet(i)
		require.True(t, ok, "key %d", i)
		require.Equal(t, i*10, v)
	}
	_, ok := m.TryGet(1000)
	assert.False(t, ok)
}

func TestMapSetReplaces(t *testing.T) {
	m := NewMap(Entry{"k", 1})
	m2 := m.Set("k", 2)
	assert.Equal(t, 1, m2.Count())
	v, _ := m2.TryGet("k")
	assert.Equal(t, 2, v)
	v, _ = m.TryGet("k")
	assert.Equal(t, 1, v)
}

func TestMapAdd(t *testing.T) {
	m := EmptyMap()
	m, err := m.Add("k", 1)
	require.NoError(t, err)

	// Adding the stored value again is a no-op.
	m2, err := m.Add("k", 1)
	require.NoError(t, err)
	assert.Same(t, m, m2)

	_, err = m.Add("k", 2)
	require.ErrorIs(t, err, ErrDuplicateKey)
	assert.Contains(t, err.Error(), "k")
}

func TestMapRemove(t *testing.T) {
	m := EmptyMap()
	for i := 0; i < 100; i++ {
		m = m.Set(i, i)
	}
	for i := 0; i < 100; i += 2 {
		m = m.Remove(i)
	}
	require.Equal(t, 50, m.Count())
	for i := 0; i < 100; i++ {
		_, ok := m.TryGet(i)
		require.Equal(t, i%2 == 1, ok, "key %d", i)
	}
	assert.Same(t, m, m.Remove(0))
}

func TestMapUpdatePolicies(t *testing.T) {
	m := NewMap(Entry{"k", 1})

	m2, outcome, err := m.Update("k", 2, UpdateSet)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	v, _ := m2.TryGet("k")
	assert.Equal(t, 2, v)

	m2, outcome, err = m.Update("k", 1, UpdateSetIfDiffers)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoChange, outcome)
	assert.Same(t, m, m2)

	m2, outcome, err = m.Update("k", 2, UpdateSkip)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoChange, outcome)
	assert.Same(t, m, m2)

	_, _, err = m.Update("k", 2, UpdateFailIfDiffers)
	assert.ErrorIs(t, err, ErrDuplicateKey)

	_, _, err = m.Update("k", 1, UpdateFail)
	assert.ErrorIs(t, err, ErrDuplicateKey)

	m2, outcome, err = m.Update("new", 9, UpdateFail)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSizeChanged, outcome)
	assert.Equal(t, 2, m2.Count())
}

func TestMapContains(t *testing.T) {
	m := NewMap(Entry{"a", 1}, Entry{"b", 2})
	assert.True(t, m.ContainsKey("a"))
	assert.False(t, m.ContainsKey("z"))
	assert.True(t, m.ContainsValue(2))
	assert.False(t, m.ContainsValue(3))
}

func TestMapSlices(t *testing.T) {
	m := EmptyMap().SetSlice([]Entry{{"a", 1}, {"b", 2}, {"a", 3}})
	require.Equal(t, 2, m.Count())
	v, _ := m.TryGet("a")
	assert.Equal(t, 3, v)

	m2, err := EmptyMap().AddSlice([]Entry{{"a", 1}, {"b", 2}})
	require.NoError(t, err)
	assert.Equal(t, 2, m2.Count())
	_, err = m2.AddSlice([]Entry{{"c", 3}, {"a", 9}})
	assert.ErrorIs(t, err, ErrDuplicateKey)

	m3 := m2.RemoveKeys([]interface{}{"a", "zzz"})
	assert.Equal(t, 1, m3.Count())
}

func TestMapEqual(t *testing.T) {
	m1 := NewMap(Entry{"a", 1}, Entry{"b", 2})
	m2 := NewMap(Entry{"b", 2}, Entry{"a", 1})
	assert.True(t, m1.Equal(m2))
	assert.False(t, m1.Equal(m1.Set("a", 9)))
	assert.False(t, m1.Equal(m1.Remove("a")))
}

func hasArrayNode(n mnode) bool {
	switch x := n.(type) {
	case *arrayNode:
		return true
	case *bitmapNode:
		for _, c := range x.children {
			if hasArrayNode(c) {
				return true
			}
		}
	}
	return false
}

// Growing past the spill threshold turns sparse interior nodes dense,
// and removal packs them sparse again.
func TestMapGrowAndPack(t *testing.T) {
	m := EmptyMap()
	for i := 0; i < 2000; i++ {
		m = m.Set(i, i)
	}
	require.Equal(t, 2000, m.Count())
	assert.True(t, hasArrayNode(m.root))

	for i := 1; i < 2000; i += 2 {
		m = m.Remove(i)
	}
	require.Equal(t, 1000, m.Count())
	for i := 0; i < 2000; i += 2 {
		v, ok := m.TryGet(i)
		require.True(t, ok, "key %d", i)
		require.Equal(t, i, v)
	}

	for i := 10; i < 2000; i += 2 {
		m = m.Remove(i)
	}
	require.Equal(t, 5, m.Count())
	assert.False(t, hasArrayNode(m.root))
	for i := 0; i < 10; i += 2 {
		v, ok := m.TryGet(i)
		require.True(t, ok)
		require.Equal(t, i, v)
	}
}

func caseInsensitiveComparer() KeyComparer {
	return KeyComparer{
		Equal: func(a, b interface{}) bool {
			return strings.EqualFold(a.(string), b.(string))
		},
		Hash: func(k interface{}) uint32 {
			return hashBytes([]byte(strings.ToLower(k.(string))))
		},
	}
}

func TestMapComparerRebind(t *testing.T) {
	m := NewMap(Entry{"Johnny", "Johnny"}, Entry{"JOHNNY", "Johnny"})
	require.Equal(t, 2, m.Count())

	// Under a case-insensitive comparer the two spellings collapse to
	// one entry, since their values agree.
	folded, err := m.WithComparers(caseInsensitiveComparer(), DefaultValueEqual)
	require.NoError(t, err)
	assert.Equal(t, 1, folded.Count())
	v, ok := folded.TryGet("johnny")
	require.True(t, ok)
	assert.Equal(t, "Johnny", v)
	v, ok = folded.TryGet("JoHnNy")
	require.True(t, ok)
	assert.Equal(t, "Johnny", v)

	// Differing values cannot be collapsed silently.
	clash := NewMap(Entry{"Johnny", "1"}, Entry{"JOHNNY", "2"})
	_, err = clash.WithComparers(caseInsensitiveComparer(), DefaultValueEqual)
	require.ErrorIs(t, err, ErrDuplicateKey)
	assert.Contains(t, strings.ToLower(err.Error()), "johnny")
	// The receiver is unaffected.
	assert.Equal(t, 2, clash.Count())
}

// Rebinding only the value comparer reuses the trie as is.
func TestMapValueComparerRebind(t *testing.T) {
	m := EmptyMap()
	for i := 0; i < 100; i++ {
		m = m.Set(i, fmt.Sprintf("v%d", i))
	}
	caseFold := func(a, b interface{}) bool {
		return strings.EqualFold(a.(string), b.(string))
	}
	m2 := m.WithValueComparer(caseFold)
	assert.Same(t, m.root, m2.root)
	assert.Equal(t, m.Count(), m2.Count())
	assert.True(t, m2.ContainsValue("V42"))
	assert.False(t, m.ContainsValue("V42"))
}

func constantHashComparer() KeyComparer {
	return KeyComparer{
		Equal: defaultKeyEqual,
		Hash:  func(interface{}) uint32 { return 42 },
	}
}

// A degenerate hash function forces every key into one collision list;
// the map stays correct, just slow.
func TestMapHashCollisions(t *testing.T) {
	m := NewMapWith(constantHashComparer(), DefaultValueEqual)
	for i := 0; i < 100; i++ {
		m = m.Set(fmt.Sprintf("key%d", i), i)
	}
	require.Equal(t, 100, m.Count())
	require.IsType(t, &collisionNode{}, m.root)
	for i := 0; i < 100; i++ {
		v, ok := m.TryGet(fmt.Sprintf("key%d", i))
		require.True(t, ok, "key%d", i)
		require.Equal(t, i, v)
	}

	for i := 1; i < 100; i++ {
		m = m.Remove(fmt.Sprintf("key%d", i))
		require.Equal(t, 100-i, m.Count())
	}
	require.IsType(t, &valueNode{}, m.root)
	v, ok := m.TryGet("key0")
	require.True(t, ok)
	assert.Equal(t, 0, v)
}

func TestMapTryGetKey(t *testing.T) {
	m := NewMapWith(caseInsensitiveComparer(), DefaultValueEqual)
	m = m.Set("Johnny", 1)
	k, ok := m.TryGetKey("JOHNNY")
	require.True(t, ok)
	assert.Equal(t, "Johnny", k)
}

func TestMapBuilder(t *testing.T) {
	b := NewMapBuilder()
	for i := 0; i < 1000; i++ {
		b.Set(i, i)
	}
	require.Equal(t, 1000, b.Count())
	for i := 0; i < 1000; i += 2 {
		b.Remove(i)
	}
	require.Equal(t, 500, b.Count())
	for i := 0; i < 1000; i++ {
		_, ok := b.TryGet(i)
		require.Equal(t, i%2 == 1, ok)
	}
}

func TestMapBuilderAdd(t *testing.T) {
	b := NewMapBuilder()
	require.NoError(t, b.Add("k", 1))
	require.NoError(t, b.Add("k", 1))
	err := b.Add("k", 2)
	require.ErrorIs(t, err, ErrDuplicateKey)
	v, _ := b.TryGet("k")
	assert.Equal(t, 1, v)
}

func TestMapBuilderSnapshots(t *testing.T) {
	b := NewMapBuilder()
	for i := 0; i < 100; i++ {
		b.Set(i, i)
	}
	snap1 := b.Freeze()
	b.Set(100, 100)
	snap2 := b.Freeze()
	b.Set(0, -1)
	b.Remove(50)

	assert.Equal(t, 100, snap1.Count())
	assert.Equal(t, 101, snap2.Count())
	assert.Equal(t, 100, b.Count())
	v, _ := snap1.TryGet(0)
	assert.Equal(t, 0, v)
	v, _ = snap2.TryGet(0)
	assert.Equal(t, 0, v)
	v, _ = b.TryGet(0)
	assert.Equal(t, -1, v)
	_, ok := snap2.TryGet(50)
	assert.True(t, ok)
	_, ok = b.TryGet(50)
	assert.False(t, ok)
}

func TestMapFreezeIdentity(t *testing.T) {
	b := NewMapBuilder()
	b.Set("a", 1)
	m1 := b.Freeze()
	m2 := b.Freeze()
	assert.Same(t, m1, m2)

	// A no-change update keeps the cached snapshot.
	outcome, err := b.Update("a", 1, UpdateSetIfDiffers)
	require.NoError(t, err)
	require.Equal(t, OutcomeNoChange, outcome)
	assert.Same(t, m1, b.Freeze())

	b.Set("a", 2)
	assert.NotSame(t, m1, b.Freeze())
}

func TestMapBuilderSetKeyComparer(t *testing.T) {
	b := NewMapBuilder()
	b.Set("Johnny", "x").Set("JOHNNY", "x")
	require.Equal(t, 2, b.Count())
	require.NoError(t, b.SetKeyComparer(caseInsensitiveComparer()))
	assert.Equal(t, 1, b.Count())
	_, ok := b.TryGet("johnny")
	assert.True(t, ok)

	clash := NewMapBuilder()
	clash.Set("Johnny", "1").Set("JOHNNY", "2")
	err := clash.SetKeyComparer(caseInsensitiveComparer())
	require.ErrorIs(t, err, ErrDuplicateKey)
	// Failure leaves the builder as it was.
	assert.Equal(t, 2, clash.Count())
	v, _ := clash.TryGet("Johnny")
	assert.Equal(t, "1", v)
}

func TestMapIterator(t *testing.T) {
	m := EmptyMap()
	want := map[int]int{}
	for i := 0; i < 500; i++ {
		m = m.Set(i, i*3)
		want[i] = i * 3
	}
	got := map[int]int{}
	it := m.Iterator()
	for it.Next() {
		got[it.Key().(int)] = it.Value().(int)
	}
	assert.Equal(t, want, got)
	it.Close()
	assert.Panics(t, func() { it.Next() })
}

func TestMapIteratorFencing(t *testing.T) {
	b := NewMapBuilder()
	b.Set("a", 1).Set("b", 2)
	it := b.Iterator()
	require.True(t, it.Next())
	b.Set("c", 3)
	assert.True(t, errorFromPanic(func() { it.Next() }, ErrConcurrentModification))
	assert.True(t, errorFromPanic(func() { it.Entry() }, ErrConcurrentModification))
}

// A no-change update does not fence iterators.
func TestMapIteratorSurvivesNoChange(t *testing.T) {
	b := NewMapBuilder()
	b.Set("a", 1).Set("b", 2)
	it := b.Iterator()
	require.True(t, it.Next())
	_, err := b.Update("a", 1, UpdateSetIfDiffers)
	require.NoError(t, err)
	require.True(t, it.Next())
}

func TestMapString(t *testing.T) {
	assert.Equal(t, "{}", EmptyMap().String())
	assert.Equal(t, "{a:1}", NewMap(Entry{"a", 1}).String())
}

func TestMapProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	if testing.Short() {
		parameters.MinSuccessfulTests = 20
	}
	properties := gopter.NewProperties(parameters)

	genEntries := gen.MapOf(gen.AnyString(), gen.IntRange(-1000, 1000))

	properties.Property("round-trip through a builder finds every entry", prop.ForAll(
		func(entries map[string]int) bool {
			b := NewMapBuilder()
			for k, v := range entries {
				b.Set(k, v)
			}
			m := b.Freeze()
			if m.Count() != len(entries) {
				return false
			}
			for k, v := range entries {
				got, ok := m.TryGet(k)
				if !ok || got != v {
					return false
				}
			}
			return true
		},
		genEntries,
	))

	properties.Property("setting the stored value changes nothing observable", prop.ForAll(
		func(entries map[string]int) bool {
			m := EmptyMap()
			for k, v := range entries {
				m = m.Set(k, v)
			}
			for k, v := range entries {
				if !m.Equal(m.Set(k, v)) {
					return false
				}
				m2, outcome, err := m.Update(k, v, UpdateSetIfDiffers)
				if err != nil || outcome != OutcomeNoChange || m2 != m {
					return false
				}
			}
			return true
		},
		genEntries,
	))

	properties.Property("remove undoes set", prop.ForAll(
		func(entries map[string]int, k string, v int) bool {
			m := EmptyMap()
			for ek, ev := range entries {
				m = m.Set(ek, ev)
			}
			if _, present := entries[k]; present {
				return true
			}
			m2 := m.Set(k, v).Remove(k)
			return m2.Equal(m) && m2.Count() == len(entries)
		},
		genEntries,
		gen.AnyString(),
		gen.Int(),
	))

	properties.TestingRun(t)
}
