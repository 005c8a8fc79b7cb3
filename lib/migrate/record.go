package migrate

/* record.go contains the wire codec for migrated particles. A migrating
particle travels as one fixed-layout record holding its full state. The
record size is queried from the build through binary.Size rather than
written down as a constant, since the struct's layout is owned by the store
package and padding is free to differ between builds. */

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/phil-mansfield/remora/lib/store"
)

var (
	// wireOrder is the byte order all ranks agree on, regardless of host.
	wireOrder binary.ByteOrder = binary.LittleEndian

	// RecordSize is the wire size of one migrated particle in bytes.
	RecordSize = binary.Size(store.Record{})
)

// packRecords serializes recs into buf and returns buf's bytes.
func packRecords(buf *bytes.Buffer, recs []store.Record) ([]byte, error) {
	buf.Reset()
	for i := range recs {
		if err := binary.Write(buf, wireOrder, &recs[i]); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// unpackRecords deserializes a packed buffer, appending the records to out.
func unpackRecords(b []byte, out []store.Record) ([]store.Record, error) {
	if len(b)%RecordSize != 0 {
		return nil, fmt.Errorf("A migration buffer has %d bytes, which is not a multiple of the %d-byte record size.", len(b), RecordSize)
	}

	r := bytes.NewReader(b)
	n := len(b) / RecordSize
	for i := 0; i < n; i++ {
		rec := store.Record{}
		if err := binary.Read(r, wireOrder, &rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
