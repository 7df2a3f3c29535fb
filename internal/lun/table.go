package lun

import (
	"fmt"

	"go.uber.org/zap"

	"edltool/internal/gpt"
)

// Table is a GPT read from a Disk together with its integrity checks.
type Table struct {
	*gpt.GPT
	LBA          uint64
	HeaderCheck  gpt.HeaderCheck
	EntriesCheck gpt.Check
}

// Healthy reports whether neither checksum mismatched and the header sits
// where it says it does.
func (t *Table) Healthy() bool {
	return !t.HeaderCheck.Mismatch && !t.HeaderCheck.LBADrift && !t.EntriesCheck.Mismatch
}

// Load reads the header sector at lba and the entry array it points to.
func Load(d *Disk, lba uint64, opts ...gpt.Option) (*Table, error) {
	hdr, err := d.ReadSectors(lba, 1)
	if err != nil {
		return nil, fmt.Errorf("error reading GPT header: %w", err)
	}

	g := gpt.New(d.SectorSize(), opts...)
	hc, err := g.ParseHeader(hdr, lba)
	if err != nil {
		return nil, err
	}

	entries, err := d.ReadSectors(g.Header().PartEntryStartLBA(), g.EntriesSectors())
	if err != nil {
		return nil, fmt.Errorf("error reading GPT entries: %w", err)
	}
	ec, err := g.ParsePartEntries(entries)
	if err != nil {
		return nil, err
	}

	return &Table{GPT: g, LBA: lba, HeaderCheck: hc, EntriesCheck: ec}, nil
}

// LoadPrimary reads the primary table at LBA 1.
func LoadPrimary(d *Disk, opts ...gpt.Option) (*Table, error) {
	return Load(d, 1, opts...)
}

// LoadBackup reads the backup table from the last sector of the LUN.
func LoadBackup(d *Disk, opts ...gpt.Option) (*Table, error) {
	return Load(d, d.LastLBA(), opts...)
}

// Write rebuilds g's checksums and writes its entry array and header.
func Write(d *Disk, g *gpt.GPT) error {
	entries := g.BuildPartEntries()
	hdr, err := g.BuildHeader(entries)
	if err != nil {
		return fmt.Errorf("error building GPT header: %w", err)
	}

	h := g.Header()
	if err := d.WriteSectors(h.PartEntryStartLBA(), entries); err != nil {
		return fmt.Errorf("error writing GPT entries: %w", err)
	}
	if err := d.WriteSectors(h.CurrentLBA(), hdr); err != nil {
		return fmt.Errorf("error writing GPT header: %w", err)
	}

	d.log.Info("wrote GPT",
		zap.String("lun", d.name),
		zap.Uint64("header_lba", h.CurrentLBA()),
		zap.Uint64("entries_lba", h.PartEntryStartLBA()),
		zap.String("header_crc32", fmt.Sprintf("0x%08x", h.HeaderCRC32())))
	return nil
}

// WriteBoth writes primary and then the alternate built from it, returning
// the alternate.
func WriteBoth(d *Disk, primary *gpt.GPT) (*gpt.GPT, error) {
	if alt := primary.Header().AlternateLBA(); alt > d.LastLBA() {
		return nil, fmt.Errorf("%w: alternate LBA %d, last LBA %d", ErrOutOfRange, alt, d.LastLBA())
	}
	if err := Write(d, primary); err != nil {
		return nil, err
	}

	backup, err := primary.AsAlternate()
	if err != nil {
		return nil, err
	}
	if err := Write(d, backup); err != nil {
		return nil, fmt.Errorf("error writing backup GPT: %w", err)
	}
	return backup, nil
}

// Commit writes t back at the LBA it was read from, then writes the
// alternate built from it. A header whose current LBA
// drifted is moved back to t.LBA first.
func (t *Table) Commit(d *Disk) (*gpt.GPT, error) {
	if cur := t.Header().CurrentLBA(); cur != t.LBA {
		d.log.Warn("rewriting GPT header at the LBA it was read from",
			zap.String("lun", d.name),
			zap.Uint64("current_lba", cur),
			zap.Uint64("read_lba", t.LBA))
		if err := t.SetCurrentLBA(t.LBA); err != nil {
			return nil, err
		}
	}
	return WriteBoth(d, t.GPT)
}

// Repair rewrites the primary table with fresh checksums and regenerates the
// backup table from it.
func Repair(d *Disk, opts ...gpt.Option) (*Table, *gpt.GPT, error) {
	primary, err := LoadPrimary(d, opts...)
	if err != nil {
		return nil, nil, err
	}
	backup, err := primary.Commit(d)
	if err != nil {
		return nil, nil, err
	}
	return primary, backup, nil
}

// SetActiveSlot switches the A/B slot in the primary table and mirrors the
// result to the backup table.
func SetActiveSlot(d *Disk, slot string, opts ...gpt.Option) (*Table, error) {
	primary, err := LoadPrimary(d, opts...)
	if err != nil {
		return nil, err
	}
	if err := primary.SetActiveSlot(slot); err != nil {
		return nil, err
	}
	if _, err := primary.Commit(d); err != nil {
		return nil, err
	}
	return primary, nil
}
