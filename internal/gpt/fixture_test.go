package gpt

import (
	"encoding/binary"
	"hash/crc32"
	"testing"

	"github.com/stretchr/testify/require"

	"edltool/internal/binstruct"
	"edltool/internal/checksum"
)

var (
	basicDataGUID = binstruct.MustParseGUID("ebd0a0a2-b9e5-4433-87c0-68b6b72699c7")
	testDiskGUID  = binstruct.MustParseGUID("6f1c5f12-8d6a-4a3e-9a2b-3c0e7e4f5a61")
)

type fixtureEntry struct {
	name  string
	attr  uint64
	empty bool
}

type fixture struct {
	sectorSize int
	numEntries int
	entrySize  int
	headerSize int
	lastLBA    uint64
	entries    []fixtureEntry
}

func defaultFixture(entries ...fixtureEntry) fixture {
	return fixture{
		sectorSize: 512,
		numEntries: 8,
		entrySize:  EntrySize,
		headerSize: HeaderSize,
		lastLBA:    1023,
		entries:    entries,
	}
}

func abEntries() []fixtureEntry {
	return []fixtureEntry{
		{name: "boot_a"},
		{name: "boot_b"},
		{name: "aop_a"},
		{name: "aop_b"},
	}
}

// build returns a primary header sector and the entry array, both with valid checksums.
func (f fixture) build(t *testing.T) ([]byte, []byte) {
	t.Helper()

	entries := make([]byte, f.numEntries*f.entrySize)
	for i, fe := range f.entries {
		v := EntrySchema.New()
		if !fe.empty {
			require.NoError(t, v.SetGUID(fTypeGUID, basicDataGUID))
			var uniq binstruct.GUID
			uniq[0], uniq[15] = byte(i+1), 0x42
			require.NoError(t, v.SetGUID(fUniqueGUID, uniq))
			require.NoError(t, v.SetUint(fFirstLBA, uint64(64+i*16)))
			require.NoError(t, v.SetUint(fLastLBA, uint64(64+i*16+15)))
			require.NoError(t, v.SetUint(fAttributes, fe.attr))
			require.NoError(t, v.SetUTF16(fName, fe.name))
		}
		b, err := v.Encode()
		require.NoError(t, err)
		copy(entries[i*f.entrySize:], b)
	}

	ss := uint64(f.sectorSize)
	entrySectors := (uint64(len(entries)) + ss - 1) / ss

	h := HeaderSchema.New()
	require.NoError(t, h.SetText(fSignature, Signature))
	require.NoError(t, h.SetUint(fRevision, Revision))
	require.NoError(t, h.SetUint(fHeaderSize, uint64(f.headerSize)))
	require.NoError(t, h.SetUint(fCurrentLBA, 1))
	require.NoError(t, h.SetUint(fAlternateLBA, f.lastLBA))
	require.NoError(t, h.SetUint(fFirstUsableLBA, 2+entrySectors))
	require.NoError(t, h.SetUint(fLastUsableLBA, f.lastLBA-1-entrySectors))
	require.NoError(t, h.SetGUID(fDiskGUID, testDiskGUID))
	require.NoError(t, h.SetUint(fPartEntryStartLBA, 2))
	require.NoError(t, h.SetUint(fNumPartEntries, uint64(f.numEntries)))
	require.NoError(t, h.SetUint(fPartEntrySize, uint64(f.entrySize)))
	require.NoError(t, h.SetInt(fPartEntriesCRC32, int64(int32(checksum.CRC32(entries)))))

	hb, err := h.Encode()
	require.NoError(t, err)
	sector := make([]byte, f.sectorSize)
	copy(sector, hb)
	crc := checksum.CRC32Zeroed(sector[:f.headerSize], headerCRCOffset, headerCRCWidth)
	binary.LittleEndian.PutUint32(sector[headerCRCOffset:], crc)

	return sector, entries
}

// parse builds the fixture and loads it into a lenient GPT.
func (f fixture) parse(t *testing.T, opts ...Option) *GPT {
	t.Helper()
	hdr, entries := f.build(t)
	g := New(f.sectorSize, opts...)
	hc, err := g.ParseHeader(hdr, 1)
	require.NoError(t, err)
	require.False(t, hc.Mismatch)
	ec, err := g.ParsePartEntries(entries)
	require.NoError(t, err)
	require.False(t, ec.Mismatch)
	return g
}

func attrsByName(g *GPT) map[string]uint64 {
	out := map[string]uint64{}
	for _, e := range g.Entries() {
		if !e.IsEmpty() {
			out[e.Name()] = e.Attributes()
		}
	}
	return out
}

// forgeTail returns the four bytes that, appended to prefix, give a CRC-32 of target.
func forgeTail(prefix []byte, target uint32) []byte {
	table := crc32.MakeTable(crc32.IEEE)
	var inv [256]byte
	for k := 0; k < 256; k++ {
		inv[table[k]>>24] = byte(k)
	}

	reg := target ^ 0xffffffff
	for i := 0; i < 4; i++ {
		k := inv[reg>>24]
		reg = ((reg ^ table[k]) << 8) | uint32(k)
	}
	start := crc32.ChecksumIEEE(prefix) ^ 0xffffffff

	out := make([]byte, 4)
	binary.LittleEndian.PutUint32(out, reg^start)
	return out
}
