package bond

import (
	"testing"

	"github.com/phil-mansfield/remora/lib/eq"
)

func TestNewTable(t *testing.T) {
	table, err := NewTable(6,
		[]uint32{0, 0, 2, 4},
		[]uint32{1, 2, 3, 0},
	)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}

	if table.NBonds() != 4 {
		t.Errorf("NBonds = %d.", table.NBonds())
	}

	tests := []struct {
		tag      uint32
		partners []uint32
	}{
		{0, []uint32{1, 2, 4}},
		{1, []uint32{0}},
		{2, []uint32{0, 3}},
		{3, []uint32{2}},
		{4, []uint32{0}},
		{5, []uint32{}},
	}

	for i := range tests {
		got := table.Partners(tests[i].tag)
		if !eq.Uint32s(got, tests[i].partners) {
			t.Errorf("%d) Partners(%d) = %d, expected %d.",
				i, tests[i].tag, got, tests[i].partners)
		}
	}
}

func TestNewTableErrors(t *testing.T) {
	tests := []struct {
		nGlobal    int
		tagA, tagB []uint32
	}{
		{4, []uint32{0}, []uint32{1, 2}}, // mismatched columns
		{4, []uint32{0}, []uint32{4}},    // out-of-range tag
		{4, []uint32{2}, []uint32{2}},    // self bond
	}

	for i := range tests {
		_, err := NewTable(tests[i].nGlobal, tests[i].tagA, tests[i].tagB)
		if err == nil {
			t.Errorf("%d) NewTable accepted an invalid table.", i)
		}
	}
}
