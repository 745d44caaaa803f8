package pcoll

import (
	"testing"
)

func benchmarkSliceAppend(factor int, b *testing.B) {
	var s []interface{}
	for n := 0; n < factor*b.N; n++ {
		s = append(s, n)
	}
}

func BenchmarkSliceAppend1(b *testing.B)   { benchmarkSliceAppend(1, b) }
func BenchmarkSliceAppend100(b *testing.B) { benchmarkSliceAppend(100, b) }
func BenchmarkSliceAppend10k(b *testing.B) { benchmarkSliceAppend(10_000, b) }
func BenchmarkSliceAppend1m(b *testing.B)  { benchmarkSliceAppend(1_000_000, b) }

func benchmarkBuilderAdd(factor int, b *testing.B) {
	v := NewVectorBuilder()
	for n := 0; n < factor*b.N; n++ {
		v.Add(n)
	}
}

func BenchmarkBuilderAdd1(b *testing.B)   { benchmarkBuilderAdd(1, b) }
func BenchmarkBuilderAdd100(b *testing.B) { benchmarkBuilderAdd(100, b) }
func BenchmarkBuilderAdd10k(b *testing.B) { benchmarkBuilderAdd(10_000, b) }
func BenchmarkBuilderAdd1m(b *testing.B)  { benchmarkBuilderAdd(1_000_000, b) }

// Frozen Add pays a path copy per append; the gap to BuilderAdd is the
// price of persistence without a builder.
func benchmarkVectorAdd(factor int, b *testing.B) {
	v := Empty()
	for n := 0; n < factor*b.N; n++ {
		v = v.Add(n)
	}
}

func BenchmarkVectorAdd1(b *testing.B)   { benchmarkVectorAdd(1, b) }
func BenchmarkVectorAdd100(b *testing.B) { benchmarkVectorAdd(100, b) }
func BenchmarkVectorAdd10k(b *testing.B) { benchmarkVectorAdd(10_000, b) }

func benchmarkVectorGet(factor int, b *testing.B) {
	bld := NewVectorBuilder()
	b.StopTimer()
	for n := 0; n < factor*b.N; n++ {
		bld.Add(n)
	}
	v := bld.Freeze()
	b.StartTimer()
	for n := 0; n < factor*b.N; n++ {
		_ = v.Get(n)
	}
}

func BenchmarkVectorGet1(b *testing.B)   { benchmarkVectorGet(1, b) }
func BenchmarkVectorGet100(b *testing.B) { benchmarkVectorGet(100, b) }
func BenchmarkVectorGet10k(b *testing.B) { benchmarkVectorGet(10_000, b) }
func BenchmarkVectorGet1m(b *testing.B)  { benchmarkVectorGet(1_000_000, b) }

func benchmarkVectorIterate(factor int, b *testing.B) {
	bld := NewVectorBuilder()
	b.StopTimer()
	for n := 0; n < factor*b.N; n++ {
		bld.Add(n)
	}
	v := bld.Freeze()
	b.StartTimer()
	it := v.Iterator()
	for it.Next() {
		_ = it.Value()
	}
}

func BenchmarkVectorIterate10k(b *testing.B) { benchmarkVectorIterate(10_000, b) }
func BenchmarkVectorIterate1m(b *testing.B)  { benchmarkVectorIterate(1_000_000, b) }

func benchmarkStdMapInsert(factor int, b *testing.B) {
	m := map[int]int{}
	for n := 0; n < factor*b.N; n++ {
		m[n] = n
	}
}

func BenchmarkStdMapInsert1(b *testing.B)   { benchmarkStdMapInsert(1, b) }
func BenchmarkStdMapInsert100(b *testing.B) { benchmarkStdMapInsert(100, b) }
func BenchmarkStdMapInsert10k(b *testing.B) { benchmarkStdMapInsert(10_000, b) }
func BenchmarkStdMapInsert1m(b *testing.B)  { benchmarkStdMapInsert(1_000_000, b) }

func benchmarkMapBuilderSet(factor int, b *testing.B) {
	m := NewMapBuilder()
	for n := 0; n < factor*b.N; n++ {
		m.Set(n, n)
	}
}

func BenchmarkMapBuilderSet1(b *testing.B)   { benchmarkMapBuilderSet(1, b) }
func BenchmarkMapBuilderSet100(b *testing.B) { benchmarkMapBuilderSet(100, b) }
func BenchmarkMapBuilderSet10k(b *testing.B) { benchmarkMapBuilderSet(10_000, b) }
func BenchmarkMapBuilderSet1m(b *testing.B)  { benchmarkMapBuilderSet(1_000_000, b) }

func benchmarkMapSet(factor int, b *testing.B) {
	m := EmptyMap()
	for n := 0; n < factor*b.N; n++ {
		m = m.Set(n, n)
	}
}

func BenchmarkMapSet1(b *testing.B)   { benchmarkMapSet(1, b) }
func BenchmarkMapSet100(b *testing.B) { benchmarkMapSet(100, b) }
func BenchmarkMapSet10k(b *testing.B) { benchmarkMapSet(10_000, b) }

func benchmarkMapGet(factor int, b *testing.B) {
	bld := NewMapBuilder()
	b.StopTimer()
	for n := 0; n < factor*b.N; n++ {
		bld.Set(n, n)
	}
	m := bld.Freeze()
	b.StartTimer()
	for n := 0; n < factor*b.N; n++ {
		_, _ = m.TryGet(n)
	}
}

func BenchmarkMapGet1(b *testing.B)   { benchmarkMapGet(1, b) }
func BenchmarkMapGet100(b *testing.B) { benchmarkMapGet(100, b) }
func BenchmarkMapGet10k(b *testing.B) { benchmarkMapGet(10_000, b) }
func BenchmarkMapGet1m(b *testing.B)  { benchmarkMapGet(1_000_000, b) }
