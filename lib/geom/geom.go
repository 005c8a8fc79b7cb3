/*package geom describes the global periodic simulation box, the
decomposition of that box into per-rank sub-boxes, and the direction/plan
bookkeeping used when particles and ghosts are exchanged between ranks.*/
package geom

/* This file contains the box types and the ownership and wrapping rules.
The decomposition grid itself lives in decomp.go. */

import (
	"fmt"
)

// Box is the global simulation box. The box spans [0, L[dim]) along each
// dimension and is periodic along every dimension.
type Box struct {
	L [3]float32
}

// NewBox creates a global box with the given side lengths.
func NewBox(lx, ly, lz float32) (Box, error) {
	b := Box{[3]float32{lx, ly, lz}}
	for dim := 0; dim < 3; dim++ {
		if b.L[dim] <= 0 {
			return Box{}, fmt.Errorf("The global box has width %g along dimension %d, but all widths must be positive.", b.L[dim], dim)
		}
	}
	return b, nil
}

// Wrap wraps x into [0, L) along the given dimension and returns the wrapped
// coordinate along with the change to the particle's image counter. The image
// counter increments when the particle crosses the upper global boundary and
// decrements when it crosses the lower one, so that x + image*L reconstructs
// the unwrapped trajectory.
func (b Box) Wrap(x float32, dim int) (float32, int32) {
	di := int32(0)
	for x >= b.L[dim] {
		x -= b.L[dim]
		di++
	}
	for x < 0 {
		x += b.L[dim]
		di--
	}
	return x, di
}

// SubBox is the half-open region [Lo, Hi) owned by a single rank. A particle
// exactly on the lower face belongs to the rank, a particle exactly on the
// upper face does not, so every position is owned by exactly one rank.
type SubBox struct {
	Lo, Hi [3]float32
}

// Contains returns true if pos is owned by the sub-box. Only the first three
// components of pos are positional; the fourth packs the particle's type.
func (s SubBox) Contains(pos [4]float32) bool {
	for dim := 0; dim < 3; dim++ {
		if !s.ContainsCoord(pos[dim], dim) {
			return false
		}
	}
	return true
}

// ContainsCoord applies the half-open ownership test along one dimension.
func (s SubBox) ContainsCoord(x float32, dim int) bool {
	return s.Lo[dim] <= x && x < s.Hi[dim]
}

// Width returns the sub-box width along the given dimension.
func (s SubBox) Width(dim int) float32 {
	return s.Hi[dim] - s.Lo[dim]
}

// Dir is one of the six logical neighbor directions of a rank. Directions
// pair up along axes: Dir(2*dim) is the positive face of dimension dim and
// Dir(2*dim + 1) is the negative face.
type Dir int

const (
	East  Dir = iota // +x
	West             // -x
	North            // +y
	South            // -y
	Up               // +z
	Down             // -z

	NDir = 6
)

var dirNames = [NDir]string{"east", "west", "north", "south", "up", "down"}

func (d Dir) String() string { return dirNames[d] }

// Dim returns the dimension the direction runs along.
func (d Dir) Dim() int { return int(d) >> 1 }

// Positive returns true for the +x/+y/+z faces.
func (d Dir) Positive() bool { return d&1 == 0 }

// Opposite returns the face across the sub-box: east <-> west, and so on.
func (d Dir) Opposite() Dir { return d ^ 1 }

// PlanMask is a per-particle set of directions that the particle's ghost
// image must be sent to. Bit d corresponds to Dir(d), so a particle near a
// corner accumulates several bits at once.
type PlanMask uint8

// Add returns the mask with direction d added.
func (m PlanMask) Add(d Dir) PlanMask { return m | 1<<uint(d) }

// Has returns true if direction d is in the mask.
func (m PlanMask) Has(d Dir) bool { return m&(1<<uint(d)) != 0 }

// None returns true if the mask is empty.
func (m PlanMask) None() bool { return m == 0 }
