package geom

/* decomp.go contains the decomposition grid: the mapping between ranks and
cells of the rank grid, neighbor resolution, and the global-boundary flags
that gate periodic wrapping during exchanges. */

import (
	"fmt"
)

// Decomp is the decomposition of a global box into a grid of sub-boxes, one
// per rank. Ranks are numbered in x-major order: rank = cx + nx*(cy + ny*cz).
type Decomp struct {
	Box Box
	N   [3]int // ranks along each dimension
}

// NewDecomp creates a decomposition of box into an n[0] x n[1] x n[2] grid.
func NewDecomp(box Box, n [3]int) (*Decomp, error) {
	for dim := 0; dim < 3; dim++ {
		if n[dim] < 1 {
			return nil, fmt.Errorf("The decomposition grid has %d ranks along dimension %d, but all grid widths must be at least 1.", n[dim], dim)
		}
	}
	return &Decomp{box, n}, nil
}

// Ranks returns the total number of ranks in the decomposition.
func (d *Decomp) Ranks() int { return d.N[0] * d.N[1] * d.N[2] }

// Coords returns the grid cell of the given rank.
func (d *Decomp) Coords(rank int) [3]int {
	return [3]int{
		rank % d.N[0],
		(rank / d.N[0]) % d.N[1],
		rank / (d.N[0] * d.N[1]),
	}
}

// Rank returns the rank at the given grid cell. Coordinates outside the grid
// wrap periodically.
func (d *Decomp) Rank(c [3]int) int {
	for dim := 0; dim < 3; dim++ {
		c[dim] %= d.N[dim]
		if c[dim] < 0 {
			c[dim] += d.N[dim]
		}
	}
	return c[0] + d.N[0]*(c[1]+d.N[1]*c[2])
}

// SubBox returns the half-open sub-box owned by the given rank.
func (d *Decomp) SubBox(rank int) SubBox {
	c := d.Coords(rank)
	s := SubBox{}
	for dim := 0; dim < 3; dim++ {
		w := d.Box.L[dim] / float32(d.N[dim])
		s.Lo[dim] = w * float32(c[dim])
		s.Hi[dim] = w * float32(c[dim]+1)
		if c[dim] == d.N[dim]-1 {
			// Guards against the accumulated rounding of w*(c+1) leaving a
			// sliver between the last sub-box and the global boundary.
			s.Hi[dim] = d.Box.L[dim]
		}
	}
	return s
}

// Neighbor returns the rank that owns the sub-box across face dir, wrapping
// around the global box. With a single rank along dir's dimension a rank is
// its own neighbor.
func (d *Decomp) Neighbor(rank int, dir Dir) int {
	c := d.Coords(rank)
	if dir.Positive() {
		c[dir.Dim()]++
	} else {
		c[dir.Dim()]--
	}
	return d.Rank(c)
}

// Active returns true if ranks actually exchange data along the given
// dimension. A dimension with a single rank is handled by local wrapping
// instead of communication.
func (d *Decomp) Active(dim int) bool { return d.N[dim] > 1 }

// AtGlobalBoundary returns true if face dir of the rank's sub-box coincides
// with the global box boundary. These flags gate whether positions are
// wrapped and image counters adjusted when particles cross that face.
func (d *Decomp) AtGlobalBoundary(rank int, dir Dir) bool {
	c := d.Coords(rank)
	if dir.Positive() {
		return c[dir.Dim()] == d.N[dir.Dim()]-1
	}
	return c[dir.Dim()] == 0
}

// Owner returns the rank whose sub-box owns pos. Positions outside the
// global box are wrapped first.
func (d *Decomp) Owner(pos [4]float32) int {
	c := [3]int{}
	for dim := 0; dim < 3; dim++ {
		x, _ := d.Box.Wrap(pos[dim], dim)
		w := d.Box.L[dim] / float32(d.N[dim])
		c[dim] = int(x / w)
		if c[dim] >= d.N[dim] {
			c[dim] = d.N[dim] - 1
		}
	}
	return d.Rank(c)
}
