/*package stats summarizes how well a decomposition is balanced and how much
data the exchange engines move. Nothing here feeds back into the engines;
the reports exist so a user can tell a bad rank grid from a bad timestep.*/
package stats

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/phil-mansfield/remora/lib/geom"
)

// LoadReport summarizes the per-rank owned particle counts.
type LoadReport struct {
	Ranks     int
	Total     int
	Mean, Std float64
	Min, Max  int
	// Imbalance is Max/Mean - 1: the extra work the busiest rank carries
	// relative to a perfectly balanced decomposition.
	Imbalance float64
}

// Load summarizes the owned particle counts of every rank.
func Load(counts []int) LoadReport {
	r := LoadReport{Ranks: len(counts)}
	if len(counts) == 0 {
		return r
	}

	x := make([]float64, len(counts))
	r.Min, r.Max = counts[0], counts[0]
	for i, c := range counts {
		x[i] = float64(c)
		r.Total += c
		if c < r.Min {
			r.Min = c
		}
		if c > r.Max {
			r.Max = c
		}
	}

	r.Mean = stat.Mean(x, nil)
	r.Std = stat.StdDev(x, nil)
	if r.Mean > 0 {
		r.Imbalance = float64(r.Max)/r.Mean - 1
	}
	return r
}

func (r LoadReport) String() string {
	return fmt.Sprintf("%d ranks, %d particles: %.1f +/- %.1f per rank (min %d, max %d, imbalance %.2f)",
		r.Ranks, r.Total, r.Mean, r.Std, r.Min, r.Max, r.Imbalance)
}

// VolumeReport summarizes per-direction exchange volumes, either migrated
// particles or ghost copies.
type VolumeReport struct {
	PerDir [geom.NDir]int
	Total  int
}

// Volumes sums the per-direction counters of a set of engines (one per
// step, or one per rank).
func Volumes(perDir ...[geom.NDir]int) VolumeReport {
	r := VolumeReport{}
	for _, v := range perDir {
		for d := 0; d < geom.NDir; d++ {
			r.PerDir[d] += v[d]
			r.Total += v[d]
		}
	}
	return r
}

func (r VolumeReport) String() string {
	s := fmt.Sprintf("%d exchanged (", r.Total)
	for d := 0; d < geom.NDir; d++ {
		if d > 0 {
			s += " "
		}
		s += fmt.Sprintf("%v:%d", geom.Dir(d), r.PerDir[d])
	}
	return s + ")"
}
