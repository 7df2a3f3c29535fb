package binstruct

import (
	"encoding/binary"

	"github.com/google/uuid"
)

const guidSize = 16

// GUID holds a 16-byte identifier in canonical text order.
//
// On disk the first three groups (4, 2 and 2 bytes) are little-endian and the
// remaining 8 bytes are stored verbatim, the UEFI/Microsoft convention.
type GUID uuid.UUID

// ZeroGUID is the all-zero identifier.
var ZeroGUID GUID

// GUIDFromBytes converts the on-disk form in b (at least 16 bytes) to a GUID.
func GUIDFromBytes(b []byte) GUID {
	var g GUID
	binary.BigEndian.PutUint32(g[0:4], binary.LittleEndian.Uint32(b[0:4]))
	binary.BigEndian.PutUint16(g[4:6], binary.LittleEndian.Uint16(b[4:6]))
	binary.BigEndian.PutUint16(g[6:8], binary.LittleEndian.Uint16(b[6:8]))
	copy(g[8:], b[8:16])
	return g
}

// PutBytes writes the on-disk form of g into b.
func (g GUID) PutBytes(b []byte) {
	binary.LittleEndian.PutUint32(b[0:4], binary.BigEndian.Uint32(g[0:4]))
	binary.LittleEndian.PutUint16(b[4:6], binary.BigEndian.Uint16(g[4:6]))
	binary.LittleEndian.PutUint16(b[6:8], binary.BigEndian.Uint16(g[6:8]))
	copy(b[8:16], g[8:])
}

// Bytes returns the on-disk form of g.
func (g GUID) Bytes() []byte {
	b := make([]byte, guidSize)
	g.PutBytes(b)
	return b
}

// String renders g as lowercase dash-separated hexadecimal.
func (g GUID) String() string { return uuid.UUID(g).String() }

// IsZero reports whether g is the all-zero identifier.
func (g GUID) IsZero() bool { return g == ZeroGUID }

// ParseGUID parses the canonical text form produced by String.
func ParseGUID(s string) (GUID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ZeroGUID, err
	}
	return GUID(u), nil
}

// MustParseGUID is like ParseGUID but panics on malformed input.
func MustParseGUID(s string) GUID {
	g, err := ParseGUID(s)
	if err != nil {
		panic(err)
	}
	return g
}
