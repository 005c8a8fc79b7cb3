package migrate

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/phil-mansfield/remora/lib/comm"
	"github.com/phil-mansfield/remora/lib/geom"
	"github.com/phil-mansfield/remora/lib/store"
)

func testDecomp(t *testing.T, lx, ly, lz float32, n [3]int) *geom.Decomp {
	box, err := geom.NewBox(lx, ly, lz)
	if err != nil {
		t.Fatalf("NewBox: %v", err)
	}
	dec, err := geom.NewDecomp(box, n)
	if err != nil {
		t.Fatalf("NewDecomp: %v", err)
	}
	return dec
}

// runRanks drives one goroutine per rank through f and fails the test on
// the first rank error.
func runRanks(t *testing.T, mesh *comm.Mesh, n int, f func(rank int, tp comm.Transport) error) {
	t.Helper()
	errs := make([]error, n)
	done := make(chan int, n)

	for rank := 0; rank < n; rank++ {
		go func(rank int) {
			defer func() { done <- rank }()
			tp, err := mesh.Transport(rank)
			if err != nil {
				errs[rank] = err
				return
			}
			errs[rank] = f(rank, tp)
		}(rank)
	}
	for i := 0; i < n; i++ {
		<-done
	}

	for rank, err := range errs {
		if err != nil {
			t.Fatalf("Rank %d: %v", rank, err)
		}
	}
}

func testRecord(tag uint32, x, y, z float32) store.Record {
	return store.Record{
		PosType: [4]float32{x, y, z, 0},
		VelMass: [4]float32{0, 0, 0, 1},
		Orient:  [4]float32{1, 0, 0, 0},
		Tag:     tag,
	}
}

func TestSingleAxisCrossing(t *testing.T) {
	// Rank 0 owns x in [0, 10), rank 1 owns [10, 20). A particle at
	// x = 10.2 moves east without any periodic wrap: the boundary at 10 is
	// not a global boundary.
	dec := testDecomp(t, 20, 10, 10, [3]int{2, 1, 1})
	mesh, err := comm.NewMesh(2)
	if err != nil {
		t.Fatalf("NewMesh: %v", err)
	}

	stores := make([]*store.Store, 2)
	runRanks(t, mesh, 2, func(rank int, tp comm.Transport) error {
		st := store.New(2)
		stores[rank] = st
		if rank == 0 {
			if err := st.Append(testRecord(0, 10.2, 5, 5)); err != nil {
				return err
			}
		} else {
			if err := st.Append(testRecord(1, 15, 5, 5)); err != nil {
				return err
			}
		}
		return New(dec, tp, st).Migrate()
	})

	if stores[0].NOwned() != 0 {
		t.Errorf("Rank 0 still owns %d particles.", stores[0].NOwned())
	}
	if stores[1].NOwned() != 2 {
		t.Fatalf("Rank 1 owns %d particles, expected 2.", stores[1].NOwned())
	}

	i := stores[1].Index(0)
	if i == store.NotLocal {
		t.Fatalf("Tag 0 is not resident on rank 1.")
	}
	if got := stores[1].PosType[i][0]; got != 10.2 {
		t.Errorf("Migrated particle is at x = %g, expected 10.2 (no wrap).", got)
	}
	if img := stores[1].Image[i][0]; img != 0 {
		t.Errorf("Migrated particle has x-image %d, expected 0.", img)
	}
	if stores[0].Index(0) != store.NotLocal {
		t.Errorf("Rank 0 still maps the departed tag to %d.", stores[0].Index(0))
	}
}

func TestGlobalWrap(t *testing.T) {
	// Global box x in [0, 30) split into 3 ranks. A particle leaves rank 2
	// eastward at x = 30.5; rank 0 touches the global boundary, wraps it to
	// x = 0.5, and increments its x-image counter.
	dec := testDecomp(t, 30, 10, 10, [3]int{3, 1, 1})
	mesh, err := comm.NewMesh(3)
	if err != nil {
		t.Fatalf("NewMesh: %v", err)
	}

	stores := make([]*store.Store, 3)
	runRanks(t, mesh, 3, func(rank int, tp comm.Transport) error {
		st := store.New(1)
		stores[rank] = st
		if rank == 2 {
			if err := st.Append(testRecord(0, 30.5, 5, 5)); err != nil {
				return err
			}
		}
		return New(dec, tp, st).Migrate()
	})

	i := stores[0].Index(0)
	if i == store.NotLocal {
		t.Fatalf("Tag 0 did not land on rank 0.")
	}
	if got := stores[0].PosType[i][0]; got != 0.5 {
		t.Errorf("Wrapped particle is at x = %g, expected 0.5.", got)
	}
	if img := stores[0].Image[i][0]; img != 1 {
		t.Errorf("Wrapped particle has x-image %d, expected 1.", img)
	}
}

func TestImageRoundTrip(t *testing.T) {
	// Crossing the same global face forward then backward returns the image
	// counter to its original value and the position to the original spot.
	dec := testDecomp(t, 30, 10, 10, [3]int{3, 1, 1})
	mesh, err := comm.NewMesh(3)
	if err != nil {
		t.Fatalf("NewMesh: %v", err)
	}

	stores := make([]*store.Store, 3)
	runRanks(t, mesh, 3, func(rank int, tp comm.Transport) error {
		st := store.New(1)
		stores[rank] = st
		if rank == 2 {
			if err := st.Append(testRecord(0, 29.5, 5, 5)); err != nil {
				return err
			}
		}
		e := New(dec, tp, st)

		// Step 1: the particle moves +1 in x, across the global boundary.
		if rank == 2 && st.NOwned() == 1 {
			st.PosType[0][0] += 1
		}
		if err := e.Migrate(); err != nil {
			return err
		}

		// Step 2: it moves -1, back across the same face.
		if i := st.Index(0); i != store.NotLocal {
			st.PosType[i][0] -= 1
		}
		return e.Migrate()
	})

	i := stores[2].Index(0)
	if i == store.NotLocal {
		t.Fatalf("Tag 0 did not return to rank 2.")
	}
	if got := stores[2].PosType[i][0]; got < 29.5-1e-4 || got > 29.5+1e-4 {
		t.Errorf("Round-trip position is x = %g, expected 29.5.", got)
	}
	if img := stores[2].Image[i][0]; img != 0 {
		t.Errorf("Round-trip image counter is %d, expected 0.", img)
	}
}

func TestDiagonalCrossing(t *testing.T) {
	// A particle crossing both x and y in one step reaches the diagonal
	// neighbor through two sequential single-axis hops.
	dec := testDecomp(t, 20, 20, 10, [3]int{2, 2, 1})
	mesh, err := comm.NewMesh(4)
	if err != nil {
		t.Fatalf("NewMesh: %v", err)
	}

	stores := make([]*store.Store, 4)
	runRanks(t, mesh, 4, func(rank int, tp comm.Transport) error {
		st := store.New(1)
		stores[rank] = st
		if rank == 0 {
			if err := st.Append(testRecord(0, 12, 13, 5)); err != nil {
				return err
			}
		}
		return New(dec, tp, st).Migrate()
	})

	// Rank 3 owns [10,20) x [10,20).
	i := stores[3].Index(0)
	if i == store.NotLocal {
		t.Fatalf("Tag 0 did not land on the diagonal rank.")
	}
	pos := stores[3].PosType[i]
	if pos[0] != 12 || pos[1] != 13 {
		t.Errorf("Diagonal particle is at (%g, %g), expected (12, 13).",
			pos[0], pos[1])
	}
	for rank := 0; rank < 3; rank++ {
		if stores[rank].NOwned() != 0 {
			t.Errorf("Rank %d still owns %d particles.",
				rank, stores[rank].NOwned())
		}
	}
}

func TestNoLossRandomized(t *testing.T) {
	// The multiset of owned tags across ranks is unchanged by migration,
	// every particle lands inside its owner's sub-box, and every reverse
	// table stays consistent.
	dec := testDecomp(t, 20, 20, 10, [3]int{2, 2, 1})
	ranks := dec.Ranks()
	perRank := 200
	nGlobal := ranks * perRank

	mesh, err := comm.NewMesh(ranks)
	if err != nil {
		t.Fatalf("NewMesh: %v", err)
	}

	stores := make([]*store.Store, ranks)
	runRanks(t, mesh, ranks, func(rank int, tp comm.Transport) error {
		rng := rand.New(rand.NewSource(int64(rank) + 42))
		st := store.New(nGlobal)
		stores[rank] = st
		sub := dec.SubBox(rank)

		for i := 0; i < perRank; i++ {
			rec := testRecord(uint32(rank*perRank+i), 0, 0, 0)
			for dim := 0; dim < 3; dim++ {
				w := sub.Width(dim)
				rec.PosType[dim] = sub.Lo[dim] + w*rng.Float32()
			}
			if err := st.Append(rec); err != nil {
				return err
			}
		}

		// Kick each particle by up to half a sub-box width per dimension.
		for i := 0; i < st.NOwned(); i++ {
			for dim := 0; dim < 3; dim++ {
				amp := sub.Width(dim) / 2
				st.PosType[i][dim] += amp * (2*rng.Float32() - 1)
			}
		}

		e := New(dec, tp, st)
		if err := e.Migrate(); err != nil {
			return err
		}
		return st.Check()
	})

	seen := make([]int, nGlobal)
	for rank := 0; rank < ranks; rank++ {
		st := stores[rank]
		sub := dec.SubBox(rank)
		for i := 0; i < st.NOwned(); i++ {
			seen[st.Tag[i]]++
			if !sub.Contains(st.PosType[i]) {
				t.Errorf("Rank %d owns tag %d at %v, outside its sub-box.",
					rank, st.Tag[i], st.PosType[i])
			}
		}
	}
	for tag := range seen {
		if seen[tag] != 1 {
			t.Errorf("Tag %d is owned by %d ranks.", tag, seen[tag])
		}
	}
}

func TestRelayRoundsExceeded(t *testing.T) {
	// With MaxRounds = 1, a particle two domains east cannot land and every
	// rank reports the violation instead of looping.
	dec := testDecomp(t, 40, 10, 10, [3]int{4, 1, 1})
	mesh, err := comm.NewMesh(4)
	if err != nil {
		t.Fatalf("NewMesh: %v", err)
	}

	errs := make([]error, 4)
	done := make(chan bool, 4)
	for rank := 0; rank < 4; rank++ {
		go func(rank int) {
			defer func() { done <- true }()
			tp, err := mesh.Transport(rank)
			if err != nil {
				errs[rank] = err
				return
			}
			st := store.New(1)
			if rank == 0 {
				if err := st.Append(testRecord(0, 25, 5, 5)); err != nil {
					errs[rank] = err
					return
				}
			}
			e := New(dec, tp, st)
			e.MaxRounds = 1
			errs[rank] = e.Migrate()
		}(rank)
	}
	for i := 0; i < 4; i++ {
		<-done
	}

	for rank := 0; rank < 4; rank++ {
		if errs[rank] == nil {
			t.Errorf("Rank %d did not report the relay violation.", rank)
		} else if !strings.Contains(errs[rank].Error(), "relay rounds") {
			t.Errorf("Rank %d reported %q.", rank, errs[rank])
		}
	}
}

func TestRecordSizeFromBuild(t *testing.T) {
	if RecordSize <= 0 {
		t.Fatalf("RecordSize = %d.", RecordSize)
	}
	// 9 position/velocity/accel/orientation floats plus scalars: the exact
	// value is the build's business, but it can't be smaller than the
	// payload fields.
	min := (4 + 4 + 3 + 4) * 4 // vectors
	if RecordSize < min {
		t.Errorf("RecordSize = %d is smaller than the vector payload alone.",
			RecordSize)
	}
}
