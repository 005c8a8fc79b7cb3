/*package ghost maintains the halo of read-only ghost particles that force
evaluation near a sub-box boundary needs. Each refresh wholly discards the
previous halo and rebuilds it: a plan mask is computed per owned particle,
per-direction tag lists are filtered out of the plan, a partial record is
gathered per tag, and the buffers are exchanged axis-major so that a corner
particle reaches diagonal neighbors through two sequential single-axis hops.
Ghosts are never integrated, so unlike migration the receive path wraps
positions across the global boundary without touching image counters.

A refresh cycle walks the states

    no-ghosts -> plan-computed -> lists-built -> buffers-packed ->
    exchanged -> received-and-wrapped -> rtag-updated -> ghosts-valid

and the next refresh starts by tearing the halo back down to no-ghosts.*/
package ghost

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/phil-mansfield/remora/lib/bond"
	"github.com/phil-mansfield/remora/lib/comm"
	r_error "github.com/phil-mansfield/remora/lib/error"
	"github.com/phil-mansfield/remora/lib/geom"
	"github.com/phil-mansfield/remora/lib/parallel"
	"github.com/phil-mansfield/remora/lib/store"
)

// Record is the partial particle state sent for one ghost: the position
// (with the type packed in the fourth component), the fields force
// evaluators read, and the particle's remaining plan so the receiving rank
// can relay corner ghosts along later axes. Velocity, orientation, and the
// rest of the state never travel with ghosts; tags travel in a separate
// list and are tracked on the receiver through the reverse tag table.
type Record struct {
	Pos      [4]float32
	Charge   float32
	Diameter float32
	Plan     geom.PlanMask
}

var (
	wireOrder binary.ByteOrder = binary.LittleEndian

	// RecordSize is the wire size of one ghost in bytes, queried from the
	// build rather than hardcoded.
	RecordSize = binary.Size(Record{})
)

type phase int

const (
	noGhosts phase = iota
	planComputed
	listsBuilt
	ghostsValid
)

// Engine builds and refreshes a rank's ghost halo.
type Engine struct {
	dec *geom.Decomp
	tp  comm.Transport
	st  *store.Store
	sub geom.SubBox

	width float32
	bonds *bond.Table

	// Sent and Received count ghost copies per direction since the engine
	// was created.
	Sent, Received [geom.NDir]int

	state     phase
	plan      []geom.PlanMask // per owned particle
	ghostPlan []geom.PlanMask // carried plans of the appended ghosts
	list      []uint32        // per-direction tag list, rebuilt per direction
	flags     []bool
	sendRecs  []Record
	sendTags  []uint32
	recBuf    bytes.Buffer
	tagBuf    bytes.Buffer
}

// New creates a ghost engine with the given halo width. bonds may be nil if
// the simulation has no connectivity. The width must leave room for the
// positive-face and negative-face layers of each sub-box to not overlap;
// a wider halo than that would require next-nearest-neighbor exchanges and
// indicates a misconfigured decomposition.
func New(
	dec *geom.Decomp, tp comm.Transport, st *store.Store,
	width float32, bonds *bond.Table,
) (*Engine, error) {
	if width <= 0 {
		return nil, fmt.Errorf("The ghost layer width is %g, but it must be positive.", width)
	}
	sub := dec.SubBox(tp.Rank())
	for dim := 0; dim < 3; dim++ {
		if dec.Active(dim) && 2*width > sub.Width(dim) {
			return nil, fmt.Errorf("The ghost layer width %g is more than half the sub-box width %g along dimension %d. Use fewer ranks along this dimension or a smaller cutoff.", width, sub.Width(dim), dim)
		}
	}

	return &Engine{
		dec: dec, tp: tp, st: st, sub: sub,
		width: width, bonds: bonds, state: noGhosts,
	}, nil
}

// Valid returns true if the halo built by the last Refresh is still live.
func (e *Engine) Valid() bool { return e.state == ghostsValid }

// Teardown resets every ghost's reverse-table entry and invalidates the
// ghost region of the arrays. It is idempotent and is also run implicitly
// at the start of every Refresh.
func (e *Engine) Teardown() {
	e.st.ClearGhosts()
	e.ghostPlan = e.ghostPlan[:0]
	e.state = noGhosts
}

// Refresh tears down the previous halo and builds a new one. Every rank of
// the decomposition must call it collectively.
func (e *Engine) Refresh() error {
	e.Teardown()
	e.makePlan()

	for dim := 0; dim < 3; dim++ {
		if !e.dec.Active(dim) {
			continue
		}
		if err := e.exchange(geom.Dir(2 * dim)); err != nil {
			return err
		}
		if err := e.exchange(geom.Dir(2*dim + 1)); err != nil {
			return err
		}
	}

	e.state = ghostsValid
	return nil
}

// makePlan computes the direction mask of every owned particle: one bit per
// face whose ghost layer the particle sits in, so corner and edge particles
// accumulate several bits. Particles with a bonded partner that is not
// locally resident are additionally forced into every direction of their
// box-center-relative octant, which guarantees the partner's rank learns
// about them no matter which face the bond crosses.
func (e *Engine) makePlan() {
	n := e.st.NOwned()
	if cap(e.plan) < n {
		e.plan = make([]geom.PlanMask, n)
	}
	e.plan = e.plan[:n]

	pos := e.st.PosType
	parallel.For(n, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			m := geom.PlanMask(0)
			for dim := 0; dim < 3; dim++ {
				if !e.dec.Active(dim) {
					continue
				}
				if pos[i][dim] >= e.sub.Hi[dim]-e.width {
					m = m.Add(geom.Dir(2 * dim))
				}
				if pos[i][dim] < e.sub.Lo[dim]+e.width {
					m = m.Add(geom.Dir(2*dim + 1))
				}
			}
			e.plan[i] = m
		}
	})

	if e.bonds != nil {
		parallel.For(n, func(lo, hi int) {
			for i := lo; i < hi; i++ {
				if !e.incomplete(e.st.Tag[i]) {
					continue
				}
				m := e.plan[i]
				for dim := 0; dim < 3; dim++ {
					if !e.dec.Active(dim) {
						continue
					}
					center := (e.sub.Lo[dim] + e.sub.Hi[dim]) / 2
					if pos[i][dim] >= center {
						m = m.Add(geom.Dir(2 * dim))
					} else {
						m = m.Add(geom.Dir(2*dim + 1))
					}
				}
				e.plan[i] = m
			}
		})
	}

	e.state = planComputed
}

// incomplete returns true if any bonded partner of tag is not resident.
func (e *Engine) incomplete(tag uint32) bool {
	for _, p := range e.bonds.Partners(tag) {
		if e.st.Index(p) == store.NotLocal {
			return true
		}
	}
	return false
}

// buildList filters the tags whose ghost image must be sent through face
// dir: owned particles flagged by the plan, plus already-received ghosts
// whose carried plan flags dir, which relays corner ghosts to diagonal
// neighbors on the later axis.
func (e *Engine) buildList(dir geom.Dir) {
	n := e.st.NOwned()
	if cap(e.flags) < n {
		e.flags = make([]bool, n)
	}
	e.flags = e.flags[:n]
	parallel.Map(e.flags, func(i int) bool { return e.plan[i].Has(dir) })

	e.list = e.list[:0]
	for i := 0; i < n; i++ {
		if e.flags[i] {
			e.list = append(e.list, e.st.Tag[i])
		}
	}
	for g := range e.ghostPlan {
		if e.ghostPlan[g].Has(dir) {
			e.list = append(e.list, e.st.Tag[n+g])
		}
	}

	e.state = listsBuilt
}

// gather packs the listed tags into the send scratch through the reverse
// tag table. The gathered indices are in general non-contiguous and
// unordered, which is fine: the table is the source of truth. gather
// reports an Overflow instead of growing so the caller controls
// reallocation.
func (e *Engine) gather(dir geom.Dir) error {
	if len(e.list) > cap(e.sendRecs) {
		return &r_error.Overflow{
			What: "ghost send buffer", Needed: len(e.list), Cap: cap(e.sendRecs),
		}
	}

	nOwned := e.st.NOwned()
	e.sendRecs = e.sendRecs[:0]
	e.sendTags = append(e.sendTags[:0], e.list...)
	for _, tag := range e.list {
		i := e.st.Index(tag)
		if i == store.NotLocal {
			return fmt.Errorf("Ghost list for direction %v holds tag %d, but that tag is no longer resident.", dir, tag)
		}
		plan := geom.PlanMask(0)
		if int(i) < nOwned {
			plan = e.plan[i]
		} else {
			plan = e.ghostPlan[int(i)-nOwned]
		}
		e.sendRecs = append(e.sendRecs, Record{
			Pos:      e.st.PosType[i],
			Charge:   e.st.Charge[i],
			Diameter: e.st.Diameter[i],
			Plan:     plan,
		})
	}
	return nil
}

// exchange sends this rank's dir-flagged ghosts and appends the ghosts
// arriving through the opposite face.
func (e *Engine) exchange(dir geom.Dir) error {
	e.buildList(dir)

	err := e.gather(dir)
	if o := r_error.IsOverflow(err); o != nil {
		e.sendRecs = make([]Record, 0, o.Needed)
		err = e.gather(dir)
	}
	if err != nil {
		return err
	}

	// Tags and records travel as two buffers with matching order.
	e.tagBuf.Reset()
	if err := binary.Write(&e.tagBuf, wireOrder, e.sendTags); err != nil {
		return err
	}
	e.recBuf.Reset()
	for i := range e.sendRecs {
		if err := binary.Write(&e.recBuf, wireOrder, &e.sendRecs[i]); err != nil {
			return err
		}
	}

	dst := e.dec.Neighbor(e.tp.Rank(), dir)
	src := e.dec.Neighbor(e.tp.Rank(), dir.Opposite())
	tagMsg, err := comm.SendRecv(e.tp, dst, src, e.tagBuf.Bytes())
	if err != nil {
		return err
	}
	recMsg, err := comm.SendRecv(e.tp, dst, src, e.recBuf.Bytes())
	if err != nil {
		return err
	}

	e.Sent[dir] += len(e.sendRecs)
	return e.place(dir, tagMsg, recMsg)
}

// place wraps and appends one direction's received ghosts and points the
// reverse table at them.
func (e *Engine) place(dir geom.Dir, tagMsg, recMsg []byte) error {
	if len(tagMsg)%4 != 0 || len(recMsg)%RecordSize != 0 {
		return fmt.Errorf("Ghost buffers from direction %v have %d tag bytes and %d record bytes, which do not divide into whole records.", dir, len(tagMsg), len(recMsg))
	}
	n := len(tagMsg) / 4
	if n != len(recMsg)/RecordSize {
		return fmt.Errorf("Ghost buffers from direction %v hold %d tags but %d records.", dir, n, len(recMsg)/RecordSize)
	}

	dim := dir.Dim()
	wrap := e.dec.AtGlobalBoundary(e.tp.Rank(), dir.Opposite())
	tagR := bytes.NewReader(tagMsg)
	recR := bytes.NewReader(recMsg)

	for i := 0; i < n; i++ {
		tag := uint32(0)
		rec := Record{}
		if err := binary.Read(tagR, wireOrder, &tag); err != nil {
			return err
		}
		if err := binary.Read(recR, wireOrder, &rec); err != nil {
			return err
		}

		// Ghosts crossing the global boundary are shifted by the box length
		// like migrating particles, so the receiver sees them just outside
		// its own face and can take direct distances. No image counter is
		// touched: a ghost is never integrated, so it carries no
		// trajectory.
		if wrap {
			if dir.Positive() {
				rec.Pos[dim] -= e.dec.Box.L[dim]
			} else {
				rec.Pos[dim] += e.dec.Box.L[dim]
			}
		}

		if err := e.st.AppendGhost(rec.Pos, rec.Charge, rec.Diameter, tag); err != nil {
			return err
		}
		e.ghostPlan = append(e.ghostPlan, rec.Plan)
	}

	e.Received[dir.Opposite()] += n
	return nil
}
