/*package bond contains the bond table read by ghost planning. The table
maps each particle tag to the tags of its bonded partners; the ghost engine
uses it to force particles whose partner is not locally resident into
all-direction ghosting, so connectivity is never silently broken at a
domain boundary. Bond energies themselves are evaluated externally.*/
package bond

import (
	"fmt"
)

// Table is a columnar bond table over the global tag space. It is immutable
// once built and safe to share between engines.
type Table struct {
	tagA, tagB []uint32

	// Partner adjacency in compressed sparse rows over tags.
	offsets  []int32
	partners []uint32
}

// NewTable creates a bond table for a simulation with nGlobal particles.
// tagA[i] and tagB[i] are the two ends of bond i.
func NewTable(nGlobal int, tagA, tagB []uint32) (*Table, error) {
	if len(tagA) != len(tagB) {
		return nil, fmt.Errorf("The bond table's tag columns have lengths %d and %d.", len(tagA), len(tagB))
	}
	for i := range tagA {
		if int(tagA[i]) >= nGlobal || int(tagB[i]) >= nGlobal {
			return nil, fmt.Errorf("Bond %d connects tags %d and %d, but the global tag space has size %d.", i, tagA[i], tagB[i], nGlobal)
		}
		if tagA[i] == tagB[i] {
			return nil, fmt.Errorf("Bond %d connects tag %d to itself.", i, tagA[i])
		}
	}

	counts := make([]int32, nGlobal)
	for i := range tagA {
		counts[tagA[i]]++
		counts[tagB[i]]++
	}

	offsets := make([]int32, nGlobal+1)
	for tag := 0; tag < nGlobal; tag++ {
		offsets[tag+1] = offsets[tag] + counts[tag]
	}

	partners := make([]uint32, 2*len(tagA))
	next := make([]int32, nGlobal)
	copy(next, offsets[:nGlobal])
	for i := range tagA {
		partners[next[tagA[i]]] = tagB[i]
		next[tagA[i]]++
		partners[next[tagB[i]]] = tagA[i]
		next[tagB[i]]++
	}

	return &Table{tagA, tagB, offsets, partners}, nil
}

// NBonds returns the number of bonds in the table.
func (t *Table) NBonds() int { return len(t.tagA) }

// Partners returns the tags bonded to tag. The returned slice aliases the
// table and must not be modified.
func (t *Table) Partners(tag uint32) []uint32 {
	return t.partners[t.offsets[tag]:t.offsets[tag+1]]
}
