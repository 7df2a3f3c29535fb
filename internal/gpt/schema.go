package gpt

import (
	"encoding/binary"

	"edltool/internal/binstruct"
)

// On-disk constants
const (
	Signature      = "EFI PART"
	Revision       = 0x00010000
	HeaderSize     = 92
	EntrySize      = 128
	EntryNameUnits = 36

	headerCRCOffset = 16
	headerCRCWidth  = 4
)

const (
	fSignature         = "signature"
	fRevision          = "revision"
	fHeaderSize        = "header_size"
	fHeaderCRC32       = "header_crc32"
	fReserved          = "reserved"
	fCurrentLBA        = "current_lba"
	fAlternateLBA      = "alternate_lba"
	fFirstUsableLBA    = "first_usable_lba"
	fLastUsableLBA     = "last_usable_lba"
	fDiskGUID          = "disk_guid"
	fPartEntryStartLBA = "part_entry_start_lba"
	fNumPartEntries    = "num_part_entries"
	fPartEntrySize     = "part_entry_size"
	fPartEntriesCRC32  = "part_entries_crc32"

	fTypeGUID   = "type_guid"
	fUniqueGUID = "unique_guid"
	fFirstLBA   = "first_lba"
	fLastLBA    = "last_lba"
	fAttributes = "attributes"
	fName       = "name"
)

// HeaderSchema is the 92-byte GPT header layout.
var HeaderSchema = binstruct.MustDefine(binary.LittleEndian,
	binstruct.String(fSignature, 8),
	binstruct.Uint32(fRevision),
	binstruct.Uint32(fHeaderSize),
	binstruct.Int32(fHeaderCRC32),
	binstruct.Uint32(fReserved),
	binstruct.Uint64(fCurrentLBA),
	binstruct.Uint64(fAlternateLBA),
	binstruct.Uint64(fFirstUsableLBA),
	binstruct.Uint64(fLastUsableLBA),
	binstruct.GUIDField(fDiskGUID),
	binstruct.Uint64(fPartEntryStartLBA),
	binstruct.Uint32(fNumPartEntries),
	binstruct.Uint32(fPartEntrySize),
	binstruct.Int32(fPartEntriesCRC32),
)

// EntrySchema is the 128-byte GPT partition entry layout.
var EntrySchema = binstruct.MustDefine(binary.LittleEndian,
	binstruct.GUIDField(fTypeGUID),
	binstruct.GUIDField(fUniqueGUID),
	binstruct.Uint64(fFirstLBA),
	binstruct.Uint64(fLastLBA),
	binstruct.Uint64(fAttributes),
	binstruct.UTF16(fName, EntryNameUnits),
)

// The schemas above are fixed, so accessor errors can only come from a typo
// in this package.

func mustUint(v *binstruct.View, name string) uint64 {
	x, err := v.Uint(name)
	if err != nil {
		panic(err)
	}
	return x
}

func mustSetUint(v *binstruct.View, name string, x uint64) {
	if err := v.SetUint(name, x); err != nil {
		panic(err)
	}
}

func mustCRC(v *binstruct.View, name string) uint32 {
	x, err := v.Int(name)
	if err != nil {
		panic(err)
	}
	return uint32(int32(x))
}

func mustSetCRC(v *binstruct.View, name string, crc uint32) {
	if err := v.SetInt(name, int64(int32(crc))); err != nil {
		panic(err)
	}
}

func mustGUID(v *binstruct.View, name string) binstruct.GUID {
	g, err := v.GUID(name)
	if err != nil {
		panic(err)
	}
	return g
}

// Header is a decoded GPT header. Bytes between the 92-byte schema and the
// declared header size are kept verbatim.
type Header struct {
	view *binstruct.View
	tail []byte
}

func (h *Header) Signature() string {
	s, err := h.view.Text(fSignature)
	if err != nil {
		panic(err)
	}
	return s
}

func (h *Header) Revision() uint32          { return uint32(mustUint(h.view, fRevision)) }
func (h *Header) HeaderSize() uint32        { return uint32(mustUint(h.view, fHeaderSize)) }
func (h *Header) HeaderCRC32() uint32       { return mustCRC(h.view, fHeaderCRC32) }
func (h *Header) CurrentLBA() uint64        { return mustUint(h.view, fCurrentLBA) }
func (h *Header) AlternateLBA() uint64      { return mustUint(h.view, fAlternateLBA) }
func (h *Header) FirstUsableLBA() uint64    { return mustUint(h.view, fFirstUsableLBA) }
func (h *Header) LastUsableLBA() uint64     { return mustUint(h.view, fLastUsableLBA) }
func (h *Header) DiskGUID() binstruct.GUID  { return mustGUID(h.view, fDiskGUID) }
func (h *Header) PartEntryStartLBA() uint64 { return mustUint(h.view, fPartEntryStartLBA) }
func (h *Header) NumPartEntries() uint32    { return uint32(mustUint(h.view, fNumPartEntries)) }
func (h *Header) PartEntrySize() uint32     { return uint32(mustUint(h.view, fPartEntrySize)) }
func (h *Header) PartEntriesCRC32() uint32  { return mustCRC(h.view, fPartEntriesCRC32) }

// EntriesLen is the byte length of the partition entry array.
func (h *Header) EntriesLen() uint64 {
	return uint64(h.NumPartEntries()) * uint64(h.PartEntrySize())
}

// Bytes encodes the header, including any bytes past the 92-byte schema.
func (h *Header) Bytes() []byte {
	b, err := h.view.Encode()
	if err != nil {
		panic(err)
	}
	return append(b, h.tail...)
}

func (h *Header) clone() *Header {
	return &Header{view: h.view.Clone(), tail: append([]byte(nil), h.tail...)}
}

// Entry is a decoded partition entry. Bytes past the 128-byte schema, present
// when the header declares a larger entry size, are kept verbatim.
type Entry struct {
	view *binstruct.View
	tail []byte
}

func (e *Entry) TypeGUID() binstruct.GUID   { return mustGUID(e.view, fTypeGUID) }
func (e *Entry) UniqueGUID() binstruct.GUID { return mustGUID(e.view, fUniqueGUID) }
func (e *Entry) FirstLBA() uint64           { return mustUint(e.view, fFirstLBA) }
func (e *Entry) LastLBA() uint64            { return mustUint(e.view, fLastLBA) }
func (e *Entry) Attributes() uint64         { return mustUint(e.view, fAttributes) }

// SetAttributes replaces the whole 64-bit attribute word.
func (e *Entry) SetAttributes(attr uint64) { mustSetUint(e.view, fAttributes, attr) }

// Name returns the partition name up to the first NUL code unit.
func (e *Entry) Name() string {
	s, err := e.view.UTF16(fName)
	if err != nil {
		panic(err)
	}
	return s
}

// IsEmpty reports whether the entry is unused (all-zero type GUID).
func (e *Entry) IsEmpty() bool { return e.TypeGUID().IsZero() }

// Bytes encodes the entry, including any bytes past the 128-byte schema.
func (e *Entry) Bytes() []byte {
	b, err := e.view.Encode()
	if err != nil {
		panic(err)
	}
	return append(b, e.tail...)
}

func (e *Entry) clone() *Entry {
	return &Entry{view: e.view.Clone(), tail: append([]byte(nil), e.tail...)}
}
