// Package luntest builds small GPT-formatted LUN images for tests.
package luntest

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"os"
	"path/filepath"
	"testing"
	"unicode/utf16"
)

type gptHeader struct {
	Signature           [8]byte
	Revision            uint32
	HeaderSize          uint32
	CRC32               uint32
	_                   [4]byte
	CurrentLBA          uint64
	BackupLBA           uint64
	FirstUsableLBA      uint64
	LastUsableLBA       uint64
	DiskGUID            [16]byte
	PartitionEntryLBA   uint64
	NumPartEntries      uint32
	PartEntrySize       uint32
	PartEntryArrayCRC32 uint32
}

type gptPartition struct {
	TypeGUID       [16]byte
	UniqueGUID     [16]byte
	FirstLBA       uint64
	LastLBA        uint64
	AttributeFlags uint64
	PartitionName  [72]byte
}

// Part is one partition of a test image.
type Part struct {
	Name  string
	Attrs uint64
}

// Image describes a test LUN.
type Image struct {
	SectorSize int
	Sectors    uint64
	NumEntries int
	Parts      []Part
	// NoBackup leaves the backup header and entries zeroed.
	NoBackup bool
}

// BasicData is the on-disk form of the EBD0A0A2-B9E5-4433-87C0-68B6B72699C7 type GUID.
var BasicData = [16]byte{0xa2, 0xa0, 0xd0, 0xeb, 0xe5, 0xb9, 0x33, 0x44, 0x87, 0xc0, 0x68, 0xb6, 0xb7, 0x26, 0x99, 0xc7}

// Bytes renders the image with primary and (unless NoBackup) backup tables.
func (img Image) Bytes(t testing.TB) []byte {
	t.Helper()
	if img.SectorSize == 0 {
		img.SectorSize = 512
	}
	if img.NumEntries == 0 {
		img.NumEntries = 16
	}
	if img.Sectors == 0 {
		img.Sectors = 256
	}
	ss := uint64(img.SectorSize)

	var table bytes.Buffer
	for i := 0; i < img.NumEntries; i++ {
		var p gptPartition
		if i < len(img.Parts) {
			part := img.Parts[i]
			p.TypeGUID = BasicData
			p.UniqueGUID[0], p.UniqueGUID[15] = byte(i+1), 0x42
			p.FirstLBA = 40 + uint64(i)*8
			p.LastLBA = p.FirstLBA + 7
			p.AttributeFlags = part.Attrs
			for j, u := range utf16.Encode([]rune(part.Name)) {
				binary.LittleEndian.PutUint16(p.PartitionName[j*2:], u)
			}
		}
		if err := binary.Write(&table, binary.LittleEndian, p); err != nil {
			t.Fatalf("encoding partition: %v", err)
		}
	}
	entries := table.Bytes()
	entrySectors := (uint64(len(entries)) + ss - 1) / ss
	lastLBA := img.Sectors - 1

	primary := gptHeader{
		Revision:            0x00010000,
		HeaderSize:          92,
		CurrentLBA:          1,
		BackupLBA:           lastLBA,
		FirstUsableLBA:      2 + entrySectors,
		LastUsableLBA:       lastLBA - 1 - entrySectors,
		DiskGUID:            [16]byte{0x12, 0x5f, 0x1c, 0x6f, 0x6a, 0x8d, 0x3e, 0x4a, 0x9a, 0x2b, 0x3c, 0x0e, 0x7e, 0x4f, 0x5a, 0x61},
		PartitionEntryLBA:   2,
		NumPartEntries:      uint32(img.NumEntries),
		PartEntrySize:       128,
		PartEntryArrayCRC32: crc32.ChecksumIEEE(entries),
	}
	copy(primary.Signature[:], "EFI PART")

	backup := primary
	backup.CurrentLBA, backup.BackupLBA = lastLBA, 1
	backup.PartitionEntryLBA = lastLBA - entrySectors

	disk := make([]byte, img.Sectors*ss)
	disk[510], disk[511] = 0x55, 0xaa
	copy(disk[2*ss:], entries)
	copy(disk[1*ss:], encodeHeader(t, primary))
	if !img.NoBackup {
		copy(disk[backup.PartitionEntryLBA*ss:], entries)
		copy(disk[lastLBA*ss:], encodeHeader(t, backup))
	}
	return disk
}

// Write stores the image in a temp file and returns its path.
func (img Image) Write(t testing.TB) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lun0.bin")
	if err := os.WriteFile(path, img.Bytes(t), 0644); err != nil {
		t.Fatalf("writing image: %v", err)
	}
	return path
}

func encodeHeader(t testing.TB, h gptHeader) []byte {
	t.Helper()
	h.CRC32 = 0
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, h); err != nil {
		t.Fatalf("encoding header: %v", err)
	}
	b := buf.Bytes()
	binary.LittleEndian.PutUint32(b[16:20], crc32.ChecksumIEEE(b))
	return b
}
