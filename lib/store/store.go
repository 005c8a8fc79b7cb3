/*package store contains the columnar per-rank particle arrays and the
reverse tag table that maps a particle's permanent global tag to its current
slot in those arrays.

Arrays are indexed by local index. Local indices are ephemeral: any
compaction may move a particle, and only the global tag survives a
migration. The arrays hold the rank's owned particles in a contiguous prefix
and the current ghost halo in the suffix; ghosts are rebuilt from scratch on
every refresh and never persist.*/
package store

import (
	"fmt"
)

// NotLocal is the reverse-table sentinel for tags that are not resident on
// this rank, neither as an owned particle nor as a ghost.
const NotLocal uint32 = 0xffffffff

// Record is one particle row across the columnar arrays. PosType packs the
// position in its first three components and the particle type in the
// fourth; VelMass packs velocity and mass the same way. Positions are always
// expressed in the owning rank's coordinate frame, and Image counts how many
// times the particle has wrapped around the global box along each dimension.
type Record struct {
	PosType  [4]float32
	VelMass  [4]float32
	Accel    [3]float32
	Charge   float32
	Diameter float32
	Image    [3]int32
	Body     uint32
	Orient   [4]float32
	Tag      uint32
}

// Store holds the columnar particle arrays of a single rank. The first
// NOwned() elements of every column are owned particles, the rest are
// ghosts.
type Store struct {
	PosType  [][4]float32
	VelMass  [][4]float32
	Accel    [][3]float32
	Charge   []float32
	Diameter []float32
	Image    [][3]int32
	Body     []uint32
	Orient   [][4]float32
	Tag      []uint32

	nOwned int
	rtag   []uint32

	// Scratch columns reused by Permute.
	pPosType  [][4]float32
	pVelMass  [][4]float32
	pAccel    [][3]float32
	pCharge   []float32
	pDiameter []float32
	pImage    [][3]int32
	pBody     []uint32
	pOrient   [][4]float32
	pTag      []uint32
}

// New creates an empty Store for a simulation with nGlobal particles across
// all ranks. Global tags run over [0, nGlobal).
func New(nGlobal int) *Store {
	s := &Store{rtag: make([]uint32, nGlobal)}
	for i := range s.rtag {
		s.rtag[i] = NotLocal
	}
	return s
}

// NOwned returns the number of particles owned by this rank.
func (s *Store) NOwned() int { return s.nOwned }

// NGhost returns the number of ghosts currently appended after the owned
// prefix.
func (s *Store) NGhost() int { return len(s.Tag) - s.nOwned }

// NTotal returns the owned count plus the ghost count.
func (s *Store) NTotal() int { return len(s.Tag) }

// NGlobal returns the size of the global tag space.
func (s *Store) NGlobal() int { return len(s.rtag) }

// Index returns the local index of the particle with the given tag, or
// NotLocal if the tag is not resident on this rank.
func (s *Store) Index(tag uint32) uint32 { return s.rtag[tag] }

// Record gathers local index i into a Record.
func (s *Store) Record(i int) Record {
	return Record{
		s.PosType[i], s.VelMass[i], s.Accel[i], s.Charge[i], s.Diameter[i],
		s.Image[i], s.Body[i], s.Orient[i], s.Tag[i],
	}
}

// Append adds an owned particle to the end of the owned prefix and points
// the reverse table at it. Append may only be called while the store holds
// no ghosts: migration always runs against a torn-down halo.
func (s *Store) Append(rec Record) error {
	if s.NGhost() != 0 {
		return fmt.Errorf("Append called while %d ghosts are live, but owned particles can only be appended to a ghost-free store.", s.NGhost())
	}
	if int(rec.Tag) >= len(s.rtag) {
		return fmt.Errorf("Appended particle has tag %d, but the global tag space has size %d.", rec.Tag, len(s.rtag))
	}
	if s.rtag[rec.Tag] != NotLocal {
		return fmt.Errorf("Appended particle has tag %d, but that tag is already resident at local index %d.", rec.Tag, s.rtag[rec.Tag])
	}

	s.PosType = append(s.PosType, rec.PosType)
	s.VelMass = append(s.VelMass, rec.VelMass)
	s.Accel = append(s.Accel, rec.Accel)
	s.Charge = append(s.Charge, rec.Charge)
	s.Diameter = append(s.Diameter, rec.Diameter)
	s.Image = append(s.Image, rec.Image)
	s.Body = append(s.Body, rec.Body)
	s.Orient = append(s.Orient, rec.Orient)
	s.Tag = append(s.Tag, rec.Tag)

	s.rtag[rec.Tag] = uint32(s.nOwned)
	s.nOwned++
	return nil
}

// AppendGhost adds a ghost particle after the owned prefix. Only the fields
// that force evaluators read from ghosts are stored; the remaining columns
// of the slot are zeroed.
func (s *Store) AppendGhost(pos [4]float32, charge, diameter float32, tag uint32) error {
	if int(tag) >= len(s.rtag) {
		return fmt.Errorf("Appended ghost has tag %d, but the global tag space has size %d.", tag, len(s.rtag))
	}
	if s.rtag[tag] != NotLocal {
		return fmt.Errorf("Appended ghost has tag %d, but that tag is already resident at local index %d.", tag, s.rtag[tag])
	}

	s.PosType = append(s.PosType, pos)
	s.VelMass = append(s.VelMass, [4]float32{})
	s.Accel = append(s.Accel, [3]float32{})
	s.Charge = append(s.Charge, charge)
	s.Diameter = append(s.Diameter, diameter)
	s.Image = append(s.Image, [3]int32{})
	s.Body = append(s.Body, 0)
	s.Orient = append(s.Orient, [4]float32{})
	s.Tag = append(s.Tag, tag)

	s.rtag[tag] = uint32(len(s.Tag) - 1)
	return nil
}

// Permute reorders the owned prefix so that the particle previously at local
// index perm[i] lands at local index i. perm must be a permutation of
// [0, NOwned()). Every column is reordered with a single gather pass, and
// the reverse table is rewritten to match before Permute returns. Permute
// may only be called while the store holds no ghosts.
func (s *Store) Permute(perm []int32) error {
	if s.NGhost() != 0 {
		return fmt.Errorf("Permute called while %d ghosts are live.", s.NGhost())
	}
	if len(perm) != s.nOwned {
		return fmt.Errorf("Permutation has length %d, but the store owns %d particles.", len(perm), s.nOwned)
	}

	n := s.nOwned
	s.growScratch(n)
	s.pPosType = s.pPosType[:n]
	s.pVelMass = s.pVelMass[:n]
	s.pAccel = s.pAccel[:n]
	s.pCharge = s.pCharge[:n]
	s.pDiameter = s.pDiameter[:n]
	s.pImage = s.pImage[:n]
	s.pBody = s.pBody[:n]
	s.pOrient = s.pOrient[:n]
	s.pTag = s.pTag[:n]

	for i := 0; i < n; i++ {
		j := perm[i]
		s.pPosType[i] = s.PosType[j]
		s.pVelMass[i] = s.VelMass[j]
		s.pAccel[i] = s.Accel[j]
		s.pCharge[i] = s.Charge[j]
		s.pDiameter[i] = s.Diameter[j]
		s.pImage[i] = s.Image[j]
		s.pBody[i] = s.Body[j]
		s.pOrient[i] = s.Orient[j]
		s.pTag[i] = s.Tag[j]
	}

	s.PosType, s.pPosType = s.pPosType[:n], s.PosType[:0]
	s.VelMass, s.pVelMass = s.pVelMass[:n], s.VelMass[:0]
	s.Accel, s.pAccel = s.pAccel[:n], s.Accel[:0]
	s.Charge, s.pCharge = s.pCharge[:n], s.Charge[:0]
	s.Diameter, s.pDiameter = s.pDiameter[:n], s.Diameter[:0]
	s.Image, s.pImage = s.pImage[:n], s.Image[:0]
	s.Body, s.pBody = s.pBody[:n], s.Body[:0]
	s.Orient, s.pOrient = s.pOrient[:n], s.Orient[:0]
	s.Tag, s.pTag = s.pTag[:n], s.Tag[:0]

	for i := 0; i < n; i++ {
		s.rtag[s.Tag[i]] = uint32(i)
	}
	return nil
}

// DropOwnedSuffix removes the last n owned particles. Their reverse-table
// entries are reset to NotLocal before the slots can be reused, so no stale
// mapping survives into the next append. DropOwnedSuffix may only be called
// while the store holds no ghosts.
func (s *Store) DropOwnedSuffix(n int) error {
	if s.NGhost() != 0 {
		return fmt.Errorf("DropOwnedSuffix called while %d ghosts are live.", s.NGhost())
	}
	if n > s.nOwned {
		return fmt.Errorf("DropOwnedSuffix asked to remove %d particles, but the store owns %d.", n, s.nOwned)
	}

	keep := s.nOwned - n
	for i := keep; i < s.nOwned; i++ {
		s.rtag[s.Tag[i]] = NotLocal
	}
	s.truncate(keep)
	s.nOwned = keep
	return nil
}

// ClearGhosts tears down the ghost halo: every ghost's reverse-table entry
// is reset to NotLocal and the ghost region of the arrays is dropped.
func (s *Store) ClearGhosts() {
	for i := s.nOwned; i < len(s.Tag); i++ {
		s.rtag[s.Tag[i]] = NotLocal
	}
	s.truncate(s.nOwned)
}

// Check verifies the reverse-table consistency invariant: for every resident
// particle with tag t at local index i, Index(t) == i, and every
// non-resident tag maps to NotLocal.
func (s *Store) Check() error {
	n := 0
	for tag := range s.rtag {
		i := s.rtag[tag]
		if i == NotLocal {
			continue
		}
		n++
		if int(i) >= len(s.Tag) {
			return fmt.Errorf("Tag %d maps to local index %d, but the arrays have length %d.", tag, i, len(s.Tag))
		}
		if s.Tag[i] != uint32(tag) {
			return fmt.Errorf("Tag %d maps to local index %d, but that slot holds tag %d.", tag, i, s.Tag[i])
		}
	}
	if n != len(s.Tag) {
		return fmt.Errorf("The reverse table holds %d resident tags, but the arrays hold %d particles.", n, len(s.Tag))
	}
	return nil
}

func (s *Store) truncate(n int) {
	s.PosType = s.PosType[:n]
	s.VelMass = s.VelMass[:n]
	s.Accel = s.Accel[:n]
	s.Charge = s.Charge[:n]
	s.Diameter = s.Diameter[:n]
	s.Image = s.Image[:n]
	s.Body = s.Body[:n]
	s.Orient = s.Orient[:n]
	s.Tag = s.Tag[:n]
}

func (s *Store) growScratch(n int) {
	if cap(s.pTag) >= n {
		return
	}
	s.pPosType = make([][4]float32, n)
	s.pVelMass = make([][4]float32, n)
	s.pAccel = make([][3]float32, n)
	s.pCharge = make([]float32, n)
	s.pDiameter = make([]float32, n)
	s.pImage = make([][3]int32, n)
	s.pBody = make([]uint32, n)
	s.pOrient = make([][4]float32, n)
	s.pTag = make([]uint32, n)
}
