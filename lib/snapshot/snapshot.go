/*package snapshot writes and reads per-rank checkpoints of the owned
particles, so a decomposed run can stop and restart. Ghosts are rebuilt
from scratch after a restart and are therefore never written. Columns are
compressed individually with zstd, since a column of like-typed values
compresses far better than interleaved records.*/
package snapshot

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"io/ioutil"

	"github.com/DataDog/zstd"

	"github.com/phil-mansfield/remora/lib/geom"
	"github.com/phil-mansfield/remora/lib/store"
)

const (
	// MagicNumber is an arbitrary number at the start of all remora
	// checkpoints which should help identify when the code is run on
	// something else by accident.
	MagicNumber = 0xcafe5ea0
	// ReverseMagicNumber is the magic number if read on a machine with
	// flipped endianness.
	ReverseMagicNumber = 0xa05efeca

	Version = 1

	compressionLevel = 1
)

var order binary.ByteOrder = binary.LittleEndian

// Header describes one rank's checkpoint.
type Header struct {
	Magic, Version uint32
	Rank, Ranks    int32
	Grid           [3]int32
	L              [3]float32
	NOwned         int64
	NGlobal        int64
}

// Write checkpoints the owned particles of st to fname.
func Write(fname string, dec *geom.Decomp, rank int, st *store.Store) error {
	hd := &Header{
		Magic: MagicNumber, Version: Version,
		Rank: int32(rank), Ranks: int32(dec.Ranks()),
		Grid: [3]int32{int32(dec.N[0]), int32(dec.N[1]), int32(dec.N[2])},
		L:    dec.Box.L,
		NOwned: int64(st.NOwned()), NGlobal: int64(st.NGlobal()),
	}

	out := &bytes.Buffer{}
	if err := binary.Write(out, order, hd); err != nil {
		return err
	}

	n := st.NOwned()
	cols := []interface{}{
		st.PosType[:n], st.VelMass[:n], st.Accel[:n], st.Charge[:n],
		st.Diameter[:n], st.Image[:n], st.Body[:n], st.Orient[:n], st.Tag[:n],
	}
	for _, col := range cols {
		if err := writeBlock(out, col); err != nil {
			return err
		}
	}

	return ioutil.WriteFile(fname, out.Bytes(), 0644)
}

// Read reads the checkpoint at fname into a freshly created Store.
func Read(fname string) (*Header, *store.Store, error) {
	b, err := ioutil.ReadFile(fname)
	if err != nil {
		return nil, nil, err
	}
	in := bytes.NewReader(b)

	hd := &Header{}
	if err := binary.Read(in, order, hd); err != nil {
		return nil, nil, err
	}
	if hd.Magic == ReverseMagicNumber {
		return nil, nil, fmt.Errorf("%s was written on a machine with flipped endianness.", fname)
	} else if hd.Magic != MagicNumber {
		return nil, nil, fmt.Errorf("%s is not a remora checkpoint.", fname)
	}
	if hd.Version != Version {
		return nil, nil, fmt.Errorf("%s has version %d, but this version of remora reads version %d.", fname, hd.Version, Version)
	}

	n := int(hd.NOwned)
	posType := make([][4]float32, n)
	velMass := make([][4]float32, n)
	accel := make([][3]float32, n)
	charge := make([]float32, n)
	diameter := make([]float32, n)
	image := make([][3]int32, n)
	body := make([]uint32, n)
	orient := make([][4]float32, n)
	tag := make([]uint32, n)

	cols := []interface{}{
		posType, velMass, accel, charge, diameter, image, body, orient, tag,
	}
	for _, col := range cols {
		if err := readBlock(in, col); err != nil {
			return nil, nil, err
		}
	}

	st := store.New(int(hd.NGlobal))
	for i := 0; i < n; i++ {
		rec := store.Record{
			PosType: posType[i], VelMass: velMass[i], Accel: accel[i],
			Charge: charge[i], Diameter: diameter[i], Image: image[i],
			Body: body[i], Orient: orient[i], Tag: tag[i],
		}
		if err := st.Append(rec); err != nil {
			return nil, nil, err
		}
	}

	return hd, st, nil
}

// writeBlock appends one column as [raw size][compressed size][zstd frame].
func writeBlock(out *bytes.Buffer, col interface{}) error {
	raw := &bytes.Buffer{}
	if err := binary.Write(raw, order, col); err != nil {
		return err
	}

	comp, err := zstd.CompressLevel(nil, raw.Bytes(), compressionLevel)
	if err != nil {
		return err
	}

	if err := binary.Write(out, order, int64(raw.Len())); err != nil {
		return err
	}
	if err := binary.Write(out, order, int64(len(comp))); err != nil {
		return err
	}
	_, err = out.Write(comp)
	return err
}

// readBlock reads one column block into col, which must have the length the
// column was written with.
func readBlock(in *bytes.Reader, col interface{}) error {
	rawSize, compSize := int64(0), int64(0)
	if err := binary.Read(in, order, &rawSize); err != nil {
		return err
	}
	if err := binary.Read(in, order, &compSize); err != nil {
		return err
	}

	comp := make([]byte, compSize)
	if _, err := io.ReadFull(in, comp); err != nil {
		return err
	}
	raw, err := zstd.Decompress(nil, comp)
	if err != nil {
		return err
	}
	if int64(len(raw)) != rawSize {
		return fmt.Errorf("A column decompressed to %d bytes, but the checkpoint says it should have %d.", len(raw), rawSize)
	}

	return binary.Read(bytes.NewReader(raw), order, col)
}
