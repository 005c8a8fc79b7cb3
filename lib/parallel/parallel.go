/*package parallel contains the data-parallel primitives that the exchange
engines are written against. Each logical operation of an engine is one call
into this package: a map over the particle range, a selection, or a gather.
Calls do not overlap one another, so a later call always observes the memory
written by an earlier one, the same ordering guarantee an in-order device
stream would give.*/
package parallel

import (
	"runtime"
	"sync"

	"github.com/phil-mansfield/remora/lib/error"
)

//
func Set(n int) {
	if n > runtime.NumCPU() {
		error.External("%d threads requested, but your system only has %d cores per node. If you want remora to use the maximum number of threads per node, set Threads=-1.", n, runtime.NumCPU())
	} else if n < 1 {
		n = runtime.NumCPU()
	}

	runtime.GOMAXPROCS(n)
}

// For splits the index range [0, n) into contiguous chunks, one per worker,
// and calls f(lo, hi) on each chunk concurrently. f must not write outside
// its chunk. For returns after every chunk has finished.
func For(n int, f func(lo, hi int)) {
	workers := runtime.GOMAXPROCS(0)
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		if n > 0 {
			f(0, n)
		}
		return
	}

	chunk := (n + workers - 1) / workers
	wg := sync.WaitGroup{}
	wg.Add(workers)

	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		go func(lo, hi int) {
			f(lo, hi)
			wg.Done()
		}(lo, hi)
	}

	wg.Wait()
}

// Map evaluates pred over [0, len(flags)) in parallel and stores the results
// in flags.
func Map(flags []bool, pred func(i int) bool) {
	For(len(flags), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			flags[i] = pred(i)
		}
	})
}

// StablePartition fills perm with a permutation of [0, len(flags)) in which
// every index with flags[i] == true comes before every index with
// flags[i] == false, preserving the relative order within both groups. It
// returns the number of true indices. perm must have the same length as
// flags.
func StablePartition(flags []bool, perm []int32) int {
	nKeep := 0
	for i := range flags {
		if flags[i] {
			perm[nKeep] = int32(i)
			nKeep++
		}
	}
	j := nKeep
	for i := range flags {
		if !flags[i] {
			perm[j] = int32(i)
			j++
		}
	}
	return nKeep
}

// Filter appends every index with flags[i] == true to out, in order, and
// returns the extended slice.
func Filter(flags []bool, out []int32) []int32 {
	for i := range flags {
		if flags[i] {
			out = append(out, int32(i))
		}
	}
	return out
}
