package gpt

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"edltool/internal/checksum"
)

func TestSchemaLayout(t *testing.T) {
	assert.Equal(t, HeaderSize, HeaderSchema.Size())
	assert.Equal(t, EntrySize, EntrySchema.Size())

	headerOffsets := map[string]int{
		fSignature: 0, fRevision: 8, fHeaderSize: 12, fHeaderCRC32: 16, fReserved: 20,
		fCurrentLBA: 24, fAlternateLBA: 32, fFirstUsableLBA: 40, fLastUsableLBA: 48,
		fDiskGUID: 56, fPartEntryStartLBA: 72, fNumPartEntries: 80, fPartEntrySize: 84,
		fPartEntriesCRC32: 88,
	}
	for name, want := range headerOffsets {
		got, ok := HeaderSchema.Offset(name)
		require.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}

	entryOffsets := map[string]int{
		fTypeGUID: 0, fUniqueGUID: 16, fFirstLBA: 32, fLastLBA: 40, fAttributes: 48, fName: 56,
	}
	for name, want := range entryOffsets {
		got, ok := EntrySchema.Offset(name)
		require.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}
}

func TestParseHeader(t *testing.T) {
	hdr, _ := defaultFixture(abEntries()...).build(t)
	g := New(512)

	hc, err := g.ParseHeader(hdr, 1)
	require.NoError(t, err)
	assert.False(t, hc.Mismatch)
	assert.False(t, hc.LBADrift)
	assert.Equal(t, binary.LittleEndian.Uint32(hdr[16:20]), hc.Stored)
	assert.Equal(t, hc.Stored, hc.Computed)

	h := g.Header()
	require.NotNil(t, h)
	assert.Equal(t, Signature, h.Signature())
	assert.Equal(t, uint64(1), h.CurrentLBA())
	assert.Equal(t, uint64(1023), h.AlternateLBA())
	assert.Equal(t, uint64(2), h.PartEntryStartLBA())
	assert.Equal(t, uint32(8), h.NumPartEntries())
	assert.Equal(t, uint32(EntrySize), h.PartEntrySize())
	assert.Equal(t, testDiskGUID, h.DiskGUID())
	assert.Equal(t, uint64(2), g.EntriesSectors())
}

func TestParseHeaderErrors(t *testing.T) {
	mutate := func(fn func(b []byte)) []byte {
		hdr, _ := defaultFixture().build(t)
		fn(hdr)
		return hdr
	}

	cases := []struct {
		name string
		in   []byte
		want error
	}{
		{"signature", mutate(func(b []byte) { copy(b, "EFI TRAP") }), ErrInvalidSignature},
		{"revision", mutate(func(b []byte) { binary.LittleEndian.PutUint32(b[8:], 0x00020000) }), ErrUnsupportedRevision},
		{"header size too small", mutate(func(b []byte) { binary.LittleEndian.PutUint32(b[12:], 91) }), ErrInvalidHeaderSize},
		{"header size above sector", mutate(func(b []byte) { binary.LittleEndian.PutUint32(b[12:], 513) }), ErrInvalidHeaderSize},
		{"truncated", mutate(func([]byte) {})[:60], ErrTruncatedBuffer},
		{"declared size past buffer", mutate(func(b []byte) { binary.LittleEndian.PutUint32(b[12:], 200) })[:150], ErrTruncatedBuffer},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := New(512)
			_, err := g.ParseHeader(tc.in, 1)
			require.ErrorIs(t, err, tc.want)
			assert.Nil(t, g.Header())
		})
	}
}

func TestParseHeaderDrift(t *testing.T) {
	hdr, _ := defaultFixture().build(t)

	core, logs := observer.New(zapcore.WarnLevel)
	g := New(512, WithLogger(zap.New(core)))
	hc, err := g.ParseHeader(hdr, 7)
	require.NoError(t, err)
	assert.True(t, hc.LBADrift)
	assert.Equal(t, uint64(1), hc.CurrentLBA)
	assert.Equal(t, uint64(7), hc.ExpectedLBA)
	assert.Equal(t, 1, logs.FilterMessage("GPT header current LBA differs from where it was read").Len())

	strict := New(512, WithPolicy(Strict))
	_, err = strict.ParseHeader(hdr, 7)
	require.ErrorIs(t, err, ErrLBAMismatch)
	assert.Nil(t, strict.Header())
}

func TestParseHeaderChecksumMismatch(t *testing.T) {
	hdr, _ := defaultFixture().build(t)
	binary.LittleEndian.PutUint64(hdr[48:], 999) // last usable LBA
	stored := binary.LittleEndian.Uint32(hdr[16:20])

	g := New(512)
	hc, err := g.ParseHeader(hdr, 1)
	require.NoError(t, err)
	assert.True(t, hc.Mismatch)
	assert.Equal(t, stored, hc.Stored)
	assert.NotEqual(t, stored, hc.Computed)
	assert.Equal(t, stored, g.Header().HeaderCRC32(), "parsing must not correct the stored checksum")
	assert.Equal(t, hdr[:HeaderSize], g.Header().Bytes())

	_, err = New(512, WithPolicy(Strict)).ParseHeader(hdr, 1)
	require.ErrorIs(t, err, ErrHeaderChecksum)
}

func TestParseHeaderExtendedSize(t *testing.T) {
	f := defaultFixture(abEntries()...)
	f.headerSize = 96
	hdr, entries := f.build(t)
	hdr[93] = 0x5a
	crc := checksum.CRC32Zeroed(hdr[:96], headerCRCOffset, headerCRCWidth)
	binary.LittleEndian.PutUint32(hdr[16:], crc)

	g := New(512)
	hc, err := g.ParseHeader(hdr, 1)
	require.NoError(t, err)
	assert.False(t, hc.Mismatch)
	assert.Equal(t, hdr[:96], g.Header().Bytes())

	_, err = g.ParsePartEntries(entries)
	require.NoError(t, err)
	out, err := g.BuildHeader(nil)
	require.NoError(t, err)
	assert.Equal(t, hdr[:96], out)
}

func TestParsePartEntries(t *testing.T) {
	g := defaultFixture(abEntries()...).parse(t)
	require.Len(t, g.Entries(), 8)
	assert.Equal(t, "boot_a", g.Entries()[0].Name())
	assert.True(t, g.Entries()[7].IsEmpty())
}

func TestParsePartEntriesNeedsHeader(t *testing.T) {
	_, err := New(512).ParsePartEntries(make([]byte, 1024))
	require.ErrorIs(t, err, ErrNoHeader)
}

func TestParsePartEntriesIgnoresPadding(t *testing.T) {
	hdr, entries := defaultFixture(abEntries()...).build(t)
	padded := append(append([]byte(nil), entries...), bytes.Repeat([]byte{0xee}, 700)...)

	g := New(512)
	_, err := g.ParseHeader(hdr, 1)
	require.NoError(t, err)
	ec, err := g.ParsePartEntries(padded)
	require.NoError(t, err)
	assert.False(t, ec.Mismatch)
	assert.Equal(t, entries, g.BuildPartEntries())
}

func TestParsePartEntriesTruncated(t *testing.T) {
	hdr, entries := defaultFixture(abEntries()...).build(t)
	g := New(512)
	_, err := g.ParseHeader(hdr, 1)
	require.NoError(t, err)
	_, err = g.ParsePartEntries(entries[:len(entries)-1])
	require.ErrorIs(t, err, ErrTruncatedBuffer)
}

func TestParsePartEntriesMismatch(t *testing.T) {
	hdr, entries := defaultFixture(abEntries()...).build(t)
	entries[48] ^= 0x01 // boot_a attributes

	core, logs := observer.New(zapcore.WarnLevel)
	g := New(512, WithLogger(zap.New(core)))
	_, err := g.ParseHeader(hdr, 1)
	require.NoError(t, err)
	ec, err := g.ParsePartEntries(entries)
	require.NoError(t, err)
	assert.True(t, ec.Mismatch)
	assert.Equal(t, checksum.CRC32(entries), ec.Computed)
	assert.Equal(t, 1, logs.Len())

	strict := New(512, WithPolicy(Strict))
	_, err = strict.ParseHeader(hdr, 1)
	require.NoError(t, err)
	_, err = strict.ParsePartEntries(entries)
	require.ErrorIs(t, err, ErrEntriesChecksum)
	assert.Empty(t, strict.Entries())
}

func TestParsePartEntriesLargeEntrySize(t *testing.T) {
	f := defaultFixture(abEntries()...)
	f.entrySize = 256
	hdr, entries := f.build(t)
	entries[256+200] = 0x77 // opaque data past the schema in entry 1
	crc := checksum.CRC32(entries)
	binary.LittleEndian.PutUint32(hdr[88:], crc)
	binary.LittleEndian.PutUint32(hdr[16:], checksum.CRC32Zeroed(hdr[:HeaderSize], headerCRCOffset, headerCRCWidth))

	g := New(512)
	_, err := g.ParseHeader(hdr, 1)
	require.NoError(t, err)
	ec, err := g.ParsePartEntries(entries)
	require.NoError(t, err)
	assert.False(t, ec.Mismatch)
	assert.Equal(t, entries, g.BuildPartEntries())
	assert.Equal(t, uint64(4), g.EntriesSectors())
}

func TestParsePartEntriesSmallEntrySize(t *testing.T) {
	hdr, entries := defaultFixture().build(t)
	binary.LittleEndian.PutUint32(hdr[84:], 64)
	g := New(512)
	_, err := g.ParseHeader(hdr, 1)
	require.NoError(t, err)
	_, err = g.ParsePartEntries(entries)
	require.ErrorIs(t, err, ErrInvalidEntrySize)
}

func TestBuildRoundTrip(t *testing.T) {
	hdr, entries := defaultFixture(abEntries()...).build(t)
	g := New(512)
	_, err := g.ParseHeader(hdr, 1)
	require.NoError(t, err)
	_, err = g.ParsePartEntries(entries)
	require.NoError(t, err)

	builtEntries := g.BuildPartEntries()
	assert.Equal(t, entries, builtEntries)
	assert.Equal(t, builtEntries, g.BuildPartEntries(), "building twice must be identical")

	builtHeader, err := g.BuildHeader(builtEntries)
	require.NoError(t, err)
	assert.Equal(t, hdr[:HeaderSize], builtHeader)
}

func TestBuildHeaderChecksums(t *testing.T) {
	g := defaultFixture(abEntries()...).parse(t)
	require.NoError(t, g.SetActiveSlot("b"))

	entries := g.BuildPartEntries()
	out, err := g.BuildHeader(nil)
	require.NoError(t, err)
	require.Len(t, out, HeaderSize)

	assert.Equal(t, checksum.CRC32(entries), binary.LittleEndian.Uint32(out[88:92]))
	assert.Equal(t, checksum.CRC32Zeroed(out, headerCRCOffset, headerCRCWidth), binary.LittleEndian.Uint32(out[16:20]))
	assert.Equal(t, g.Header().HeaderCRC32(), binary.LittleEndian.Uint32(out[16:20]))

	fresh := New(512)
	hc, err := fresh.ParseHeader(out, 1)
	require.NoError(t, err)
	assert.False(t, hc.Mismatch)
	ec, err := fresh.ParsePartEntries(entries)
	require.NoError(t, err)
	assert.False(t, ec.Mismatch)
}

func TestBuildHeaderChecksumCollision(t *testing.T) {
	g := defaultFixture(abEntries()...).parse(t)

	entries := g.BuildPartEntries()
	tail := forgeTail(entries[:len(entries)-4], 0)
	copy(entries[len(entries)-4:], tail)
	require.Zero(t, checksum.CRC32(entries))

	_, err := g.BuildHeader(entries)
	require.ErrorIs(t, err, ErrChecksumCollision)
}

func TestBuildHeaderNeedsHeader(t *testing.T) {
	_, err := New(512).BuildHeader(nil)
	require.ErrorIs(t, err, ErrNoHeader)
	_, err = New(512).AsAlternate()
	require.ErrorIs(t, err, ErrNoHeader)
}

func TestAsAlternate(t *testing.T) {
	g := defaultFixture(abEntries()...).parse(t)
	primaryHeader := g.Header().Bytes()
	primaryEntries := g.BuildPartEntries()

	alt, err := g.AsAlternate()
	require.NoError(t, err)

	h := alt.Header()
	assert.Equal(t, uint64(1023), h.CurrentLBA())
	assert.Equal(t, uint64(1), h.AlternateLBA())
	assert.Equal(t, uint64(1023-2), h.PartEntryStartLBA())
	assert.Equal(t, g.Header().HeaderCRC32(), h.HeaderCRC32(), "checksums are not recomputed")
	assert.Equal(t, primaryEntries, alt.BuildPartEntries())

	// The copy is independent of the original.
	require.NoError(t, alt.SetActiveSlot("b"))
	assert.Equal(t, primaryEntries, g.BuildPartEntries())
	assert.Equal(t, primaryHeader, g.Header().Bytes())

	altHeader, err := alt.BuildHeader(nil)
	require.NoError(t, err)
	assert.Equal(t, primaryHeader, g.Header().Bytes())

	backup := New(512)
	hc, err := backup.ParseHeader(altHeader, 1023)
	require.NoError(t, err)
	assert.False(t, hc.Mismatch)
	assert.False(t, hc.LBADrift)
	ec, err := backup.ParsePartEntries(alt.BuildPartEntries())
	require.NoError(t, err)
	assert.False(t, ec.Mismatch)
}

func TestAsAlternateRoundsUpEntrySectors(t *testing.T) {
	f := defaultFixture(abEntries()...)
	f.numEntries = 5 // 640 bytes, two 512-byte sectors
	g := f.parse(t)

	alt, err := g.AsAlternate()
	require.NoError(t, err)
	assert.Equal(t, uint64(1023-2), alt.Header().PartEntryStartLBA())

	f.sectorSize = 4096
	g = f.parse(t)
	alt, err = g.AsAlternate()
	require.NoError(t, err)
	assert.Equal(t, uint64(1023-1), alt.Header().PartEntryStartLBA())
}

func TestAsAlternateRejectsShortLayout(t *testing.T) {
	f := defaultFixture(abEntries()...)
	f.lastLBA = 1 // alternate LBA 1 leaves no room for two entry sectors
	g := f.parse(t)

	_, err := g.AsAlternate()
	require.ErrorIs(t, err, ErrInvalidLayout)
	assert.Equal(t, uint64(1), g.Header().CurrentLBA(), "original untouched")
}

func TestSetCurrentLBA(t *testing.T) {
	require.ErrorIs(t, New(512).SetCurrentLBA(1), ErrNoHeader)

	g := defaultFixture(abEntries()...).parse(t)
	require.NoError(t, g.SetCurrentLBA(7))
	assert.Equal(t, uint64(7), g.Header().CurrentLBA())

	hdr, err := g.BuildHeader(nil)
	require.NoError(t, err)
	hc, err := New(512, WithPolicy(Strict)).ParseHeader(hdr, 7)
	require.NoError(t, err)
	assert.False(t, hc.Mismatch)
}
