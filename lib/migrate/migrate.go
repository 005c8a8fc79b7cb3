/*package migrate keeps each rank's particle set equal to exactly the
particles inside its sub-box after the integrator has moved them.

Each call to Migrate walks the three dimensions in a fixed axis-major order.
Along every active dimension the rank selects the particles that have left
its sub-box through the positive and negative faces, compacts them out of
the columnar arrays, and exchanges them with the two neighbor ranks. A
particle that also crossed a boundary of a later dimension is relayed again
by that dimension's pass, so a diagonal crossing is two sequential
single-axis hops; this ordering is a correctness requirement, not an
optimization. A particle that is still outside along the current dimension
after an exchange travels again in the next relay round, up to MaxRounds
rounds, after which the decomposition is declared broken.*/
package migrate

import (
	"bytes"
	"fmt"

	"github.com/phil-mansfield/remora/lib/comm"
	r_error "github.com/phil-mansfield/remora/lib/error"
	"github.com/phil-mansfield/remora/lib/geom"
	"github.com/phil-mansfield/remora/lib/parallel"
	"github.com/phil-mansfield/remora/lib/store"
)

// DefaultMaxRounds bounds the relay rounds per dimension. A particle that
// has not landed after this many single-axis hops indicates a timestep or
// cutoff misconfiguration, not a transient fault, so the bound is a hard
// error rather than a clamp.
const DefaultMaxRounds = 8

// Engine migrates particles between the sub-boxes of a decomposition.
type Engine struct {
	dec *geom.Decomp
	tp  comm.Transport
	st  *store.Store
	sub geom.SubBox

	// MaxRounds is the relay-round bound per dimension. It defaults to
	// DefaultMaxRounds.
	MaxRounds int

	// Sent and Received count migrated particles per direction since the
	// engine was created. lib/stats turns these into exchange-volume
	// reports.
	Sent, Received [geom.NDir]int

	flags []bool
	perm  []int32
	out   []store.Record
	in    []store.Record
	buf   bytes.Buffer
}

// New creates a migration engine for the rank underlying tp.
func New(dec *geom.Decomp, tp comm.Transport, st *store.Store) *Engine {
	return &Engine{
		dec: dec, tp: tp, st: st,
		sub:       dec.SubBox(tp.Rank()),
		MaxRounds: DefaultMaxRounds,
	}
}

// Migrate moves every particle that has left the rank's sub-box to its
// owning rank. It must be called with the ghost halo torn down, and every
// rank of the decomposition must call it collectively.
func (e *Engine) Migrate() error {
	if e.st.NGhost() != 0 {
		return fmt.Errorf("Migrate called while %d ghosts are live, but migration requires a torn-down halo.", e.st.NGhost())
	}

	for dim := 0; dim < 3; dim++ {
		if !e.dec.Active(dim) {
			e.wrapLocal(dim)
			continue
		}

		for round := 0; ; round++ {
			if err := e.exchange(geom.Dir(2 * dim)); err != nil {
				return err
			}
			if err := e.exchange(geom.Dir(2*dim + 1)); err != nil {
				return err
			}

			pending := e.countOutside(dim)
			total, err := e.tp.AllReduceMaxInt(pending)
			if err != nil {
				return err
			}
			if total == 0 {
				break
			}
			// Every rank sees the same total, so every rank gives up on the
			// same round and none is left blocking on a peer's exchange.
			if round+1 >= e.MaxRounds {
				tag := e.firstOutside(dim)
				return fmt.Errorf("Rank %d: a particle (first local offender: tag %d) is still outside its sub-box along dimension %d after %d relay rounds. A particle traveled farther than one domain width per step; the timestep or the decomposition is misconfigured.", e.tp.Rank(), tag, dim, e.MaxRounds)
			}
		}
	}
	return nil
}

// exchange runs one selection/pack/exchange/unpack pass through face dir.
func (e *Engine) exchange(dir geom.Dir) error {
	n := e.st.NOwned()
	dim := dir.Dim()
	e.growSelection(n)

	// Selection: a particle stays if it is inside the sub-box with respect
	// to the single boundary relevant to dir. The half-open test keeps a
	// particle exactly on the lower face and evicts one exactly on the
	// upper face, so neighboring ranks never both claim it.
	pos := e.st.PosType
	if dir.Positive() {
		hi := e.sub.Hi[dim]
		parallel.Map(e.flags[:n], func(i int) bool { return pos[i][dim] < hi })
	} else {
		lo := e.sub.Lo[dim]
		parallel.Map(e.flags[:n], func(i int) bool { return pos[i][dim] >= lo })
	}

	nKeep := parallel.StablePartition(e.flags[:n], e.perm[:n])
	if err := e.st.Permute(e.perm[:n]); err != nil {
		return err
	}

	departed, err := e.gatherDeparted(nKeep, n)
	if o := r_error.IsOverflow(err); o != nil {
		e.out = make([]store.Record, 0, o.Needed)
		departed, err = e.gatherDeparted(nKeep, n)
	}
	if err != nil {
		return err
	}

	// The reverse-table entries of the departed particles are reset here,
	// before any incoming particle can reuse their slots.
	if err := e.st.DropOwnedSuffix(n - nKeep); err != nil {
		return err
	}

	send, err := packRecords(&e.buf, departed)
	if err != nil {
		return err
	}
	recv, err := comm.SendRecv(e.tp,
		e.dec.Neighbor(e.tp.Rank(), dir),
		e.dec.Neighbor(e.tp.Rank(), dir.Opposite()), send)
	if err != nil {
		return err
	}

	e.in, err = unpackRecords(recv, e.in[:0])
	if err != nil {
		return err
	}
	e.Sent[dir] += len(departed)
	e.Received[dir.Opposite()] += len(e.in)

	// Incoming particles crossed into this rank through the face opposite
	// the send direction. If that face is the global boundary they also
	// crossed the periodic boundary: positions are shifted by the box
	// length along the axis and the image counter adjusted. The counter
	// increments on an upward global crossing and decrements on a downward
	// one, so x + image*L stays continuous.
	wrap := e.dec.AtGlobalBoundary(e.tp.Rank(), dir.Opposite())
	for i := range e.in {
		rec := &e.in[i]
		if wrap {
			if dir.Positive() {
				rec.PosType[dim] -= e.dec.Box.L[dim]
				rec.Image[dim]++
			} else {
				rec.PosType[dim] += e.dec.Box.L[dim]
				rec.Image[dim]--
			}
		}
		if err := e.st.Append(*rec); err != nil {
			return err
		}
	}
	return nil
}

// gatherDeparted copies the compacted suffix [nKeep, n) into the send
// scratch, reporting an Overflow instead of growing so the caller controls
// reallocation.
func (e *Engine) gatherDeparted(nKeep, n int) ([]store.Record, error) {
	if n-nKeep > cap(e.out) {
		return nil, &r_error.Overflow{
			What: "migration send buffer", Needed: n - nKeep, Cap: cap(e.out),
		}
	}
	e.out = e.out[:0]
	for i := nKeep; i < n; i++ {
		e.out = append(e.out, e.st.Record(i))
	}
	return e.out, nil
}

// wrapLocal handles a dimension spanned by a single rank: crossing the
// sub-box boundary there is the same as crossing the global boundary, so
// positions are wrapped in place and image counters adjusted without any
// communication.
func (e *Engine) wrapLocal(dim int) {
	pos, image := e.st.PosType, e.st.Image
	parallel.For(e.st.NOwned(), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			x, di := e.dec.Box.Wrap(pos[i][dim], dim)
			pos[i][dim] = x
			image[i][dim] += di
		}
	})
}

// countOutside returns the number of owned particles outside the sub-box
// along dim.
func (e *Engine) countOutside(dim int) int {
	n := e.st.NOwned()
	e.growSelection(n)
	pos := e.st.PosType
	lo, hi := e.sub.Lo[dim], e.sub.Hi[dim]
	parallel.Map(e.flags[:n], func(i int) bool {
		return pos[i][dim] < lo || pos[i][dim] >= hi
	})

	count := 0
	for i := 0; i < n; i++ {
		if e.flags[i] {
			count++
		}
	}
	return count
}

// firstOutside returns the tag of the first particle outside the sub-box
// along dim, for error reporting.
func (e *Engine) firstOutside(dim int) uint32 {
	for i := 0; i < e.st.NOwned(); i++ {
		x := e.st.PosType[i][dim]
		if x < e.sub.Lo[dim] || x >= e.sub.Hi[dim] {
			return e.st.Tag[i]
		}
	}
	return store.NotLocal
}

func (e *Engine) growSelection(n int) {
	if cap(e.flags) < n {
		e.flags = make([]bool, n)
		e.perm = make([]int32, n)
	}
	e.flags = e.flags[:n]
	e.perm = e.perm[:n]
}
