package parallel

import (
	"testing"

	"github.com/phil-mansfield/remora/lib/eq"
)

func TestFor(t *testing.T) {
	ns := []int{0, 1, 7, 1000}
	for _, n := range ns {
		hits := make([]int, n)
		For(n, func(lo, hi int) {
			for i := lo; i < hi; i++ {
				hits[i]++
			}
		})
		for i := range hits {
			if hits[i] != 1 {
				t.Errorf("n = %d: index %d visited %d times.", n, i, hits[i])
			}
		}
	}
}

func TestMap(t *testing.T) {
	flags := make([]bool, 100)
	Map(flags, func(i int) bool { return i%3 == 0 })
	for i := range flags {
		if flags[i] != (i%3 == 0) {
			t.Errorf("flags[%d] = %v.", i, flags[i])
		}
	}
}

func TestStablePartition(t *testing.T) {
	tests := []struct {
		flags []bool
		perm  []int32
		nKeep int
	}{
		{[]bool{}, []int32{}, 0},
		{[]bool{true}, []int32{0}, 1},
		{[]bool{false}, []int32{0}, 0},
		{[]bool{true, false, true, true, false},
			[]int32{0, 2, 3, 1, 4}, 3},
		{[]bool{false, false, true},
			[]int32{2, 0, 1}, 1},
	}

	for i := range tests {
		perm := make([]int32, len(tests[i].flags))
		nKeep := StablePartition(tests[i].flags, perm)
		if nKeep != tests[i].nKeep {
			t.Errorf("%d) nKeep = %d, expected %d.", i, nKeep, tests[i].nKeep)
		}
		if !eq.Int32s(perm, tests[i].perm) {
			t.Errorf("%d) perm = %d, expected %d.", i, perm, tests[i].perm)
		}
	}
}

func TestFilter(t *testing.T) {
	flags := []bool{false, true, true, false, true}
	out := Filter(flags, nil)
	if !eq.Int32s(out, []int32{1, 2, 4}) {
		t.Errorf("Filter = %d.", out)
	}

	// Appends to the passed slice.
	out = Filter([]bool{true}, out[:0])
	if !eq.Int32s(out, []int32{0}) {
		t.Errorf("Filter with reused buffer = %d.", out)
	}
}
