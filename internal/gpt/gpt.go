// Package gpt models a GUID Partition Table: parsing and validating the
// header and entry array, rebuilding them with fresh checksums, deriving the
// backup table, and the A/B slot attributes that Qualcomm's ABL reads.
//
// The package does no I/O. Callers hand in raw sector bytes and write the
// built buffers back themselves.
package gpt

import (
	"fmt"

	"go.uber.org/zap"

	"edltool/internal/checksum"
)

// Policy controls how soft integrity problems are treated while parsing.
type Policy int

const (
	// Lenient reports checksum mismatches and LBA drift in the check results.
	Lenient Policy = iota
	// Strict fails parsing on any of them.
	Strict
)

func (p Policy) String() string {
	if p == Strict {
		return "strict"
	}
	return "lenient"
}

// Option configures a GPT.
type Option func(*GPT)

// WithLogger sets the logger soft conditions are reported to.
func WithLogger(l *zap.Logger) Option {
	return func(g *GPT) {
		if l != nil {
			g.log = l
		}
	}
}

// WithPolicy sets the parse policy.
func WithPolicy(p Policy) Option {
	return func(g *GPT) { g.policy = p }
}

// Check is the outcome of validating a stored checksum.
type Check struct {
	Stored   uint32
	Computed uint32
	Mismatch bool
}

// HeaderCheck is the outcome of ParseHeader.
type HeaderCheck struct {
	Check
	CurrentLBA  uint64
	ExpectedLBA uint64
	LBADrift    bool
}

// GPT is one partition table: a header, its entries and the sector size used
// to convert between LBAs and byte extents. A GPT is not safe for concurrent
// mutation.
type GPT struct {
	sectorSize int
	header     *Header
	entries    []*Entry
	log        *zap.Logger
	policy     Policy
}

// New returns an empty table for a device with the given sector size.
// Populate it with ParseHeader followed by ParsePartEntries.
func New(sectorSize int, opts ...Option) *GPT {
	g := &GPT{sectorSize: sectorSize, log: zap.NewNop()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// SectorSize returns the sector size in bytes.
func (g *GPT) SectorSize() int { return g.sectorSize }

// Policy returns the parse policy.
func (g *GPT) Policy() Policy { return g.policy }

// Header returns the parsed header, or nil before ParseHeader succeeded.
func (g *GPT) Header() *Header { return g.header }

// Entries returns every entry, used or not, in stored order.
func (g *GPT) Entries() []*Entry {
	out := make([]*Entry, len(g.entries))
	copy(out, g.entries)
	return out
}

// EntriesSectors is the number of sectors the entry array occupies.
func (g *GPT) EntriesSectors() uint64 {
	if g.header == nil || g.sectorSize <= 0 {
		return 0
	}
	ss := uint64(g.sectorSize)
	return (g.header.EntriesLen() + ss - 1) / ss
}

// ParseHeader decodes and validates a header read from the sector at
// expectedLBA. The stored header checksum is compared with a freshly
// computed one but never corrected.
func (g *GPT) ParseHeader(b []byte, expectedLBA uint64) (HeaderCheck, error) {
	view, err := HeaderSchema.Decode(b)
	if err != nil {
		return HeaderCheck{}, fmt.Errorf("parsing GPT header: %w", err)
	}
	h := &Header{view: view}

	if sig := h.Signature(); sig != Signature {
		return HeaderCheck{}, fmt.Errorf("%w: %q", ErrInvalidSignature, sig)
	}
	if rev := h.Revision(); rev != Revision {
		return HeaderCheck{}, fmt.Errorf("%w: 0x%08x", ErrUnsupportedRevision, rev)
	}
	size := h.HeaderSize()
	if size < HeaderSize || int64(size) > int64(g.sectorSize) {
		return HeaderCheck{}, fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidHeaderSize, size, HeaderSize, g.sectorSize)
	}
	if len(b) < int(size) {
		return HeaderCheck{}, fmt.Errorf("%w: header declares %d bytes, have %d", ErrTruncatedBuffer, size, len(b))
	}
	h.tail = append([]byte(nil), b[HeaderSize:size]...)

	res := HeaderCheck{
		CurrentLBA:  h.CurrentLBA(),
		ExpectedLBA: expectedLBA,
	}
	if res.CurrentLBA != expectedLBA {
		res.LBADrift = true
		g.log.Warn("GPT header current LBA differs from where it was read",
			zap.Uint64("current_lba", res.CurrentLBA),
			zap.Uint64("expected_lba", expectedLBA))
	}

	res.Stored = h.HeaderCRC32()
	res.Computed = checksum.CRC32Zeroed(h.Bytes(), headerCRCOffset, headerCRCWidth)
	if res.Computed != res.Stored {
		res.Mismatch = true
		g.log.Warn("GPT header checksum mismatch",
			zap.String("stored", fmt.Sprintf("0x%08x", res.Stored)),
			zap.String("computed", fmt.Sprintf("0x%08x", res.Computed)))
	}

	if g.policy == Strict {
		if res.LBADrift {
			return res, fmt.Errorf("%w: header at LBA %d says %d", ErrLBAMismatch, expectedLBA, res.CurrentLBA)
		}
		if res.Mismatch {
			return res, fmt.Errorf("%w: stored 0x%08x, computed 0x%08x", ErrHeaderChecksum, res.Stored, res.Computed)
		}
	}

	g.header = h
	g.entries = nil
	return res, nil
}

// ParsePartEntries decodes NumPartEntries entries from the start of b, which
// may carry padding after the array. The entries checksum is computed over
// the re-encoded entries, not over b.
func (g *GPT) ParsePartEntries(b []byte) (Check, error) {
	if g.header == nil {
		return Check{}, ErrNoHeader
	}

	size := uint64(g.header.PartEntrySize())
	if size < EntrySize {
		return Check{}, fmt.Errorf("%w: %d is below %d", ErrInvalidEntrySize, size, EntrySize)
	}
	count := uint64(g.header.NumPartEntries())
	if need := count * size; uint64(len(b)) < need {
		return Check{}, fmt.Errorf("%w: %d entries of %d bytes need %d, have %d", ErrTruncatedBuffer, count, size, need, len(b))
	}

	entries := make([]*Entry, 0, count)
	for i := uint64(0); i < count; i++ {
		off := i * size
		view, err := EntrySchema.Decode(b[off : off+EntrySize])
		if err != nil {
			return Check{}, fmt.Errorf("parsing partition entry %d: %w", i, err)
		}
		entries = append(entries, &Entry{
			view: view,
			tail: append([]byte(nil), b[off+EntrySize:off+size]...),
		})
	}

	res := Check{
		Stored:   g.header.PartEntriesCRC32(),
		Computed: checksum.CRC32(encodeEntries(entries)),
	}
	if res.Computed != res.Stored {
		res.Mismatch = true
		g.log.Warn("GPT partition entries checksum mismatch",
			zap.String("stored", fmt.Sprintf("0x%08x", res.Stored)),
			zap.String("computed", fmt.Sprintf("0x%08x", res.Computed)))
		if g.policy == Strict {
			return res, fmt.Errorf("%w: stored 0x%08x, computed 0x%08x", ErrEntriesChecksum, res.Stored, res.Computed)
		}
	}

	g.entries = entries
	return res, nil
}

func encodeEntries(entries []*Entry) []byte {
	var out []byte
	for _, e := range entries {
		out = append(out, e.Bytes()...)
	}
	return out
}

// BuildPartEntries encodes every entry in stored order.
func (g *GPT) BuildPartEntries() []byte {
	return encodeEntries(g.entries)
}

// BuildHeader stores the checksum of entries (or of freshly built entries
// when entries is nil) and a recomputed header checksum, then returns the
// encoded header. A computed checksum of zero is rejected with
// ErrChecksumCollision.
func (g *GPT) BuildHeader(entries []byte) ([]byte, error) {
	if g.header == nil {
		return nil, ErrNoHeader
	}
	if entries == nil {
		entries = g.BuildPartEntries()
	}

	entriesCRC := checksum.CRC32(entries)
	if entriesCRC == 0 {
		return nil, fmt.Errorf("%w: partition entries", ErrChecksumCollision)
	}
	mustSetCRC(g.header.view, fPartEntriesCRC32, entriesCRC)

	mustSetCRC(g.header.view, fHeaderCRC32, 0)
	headerCRC := checksum.CRC32(g.header.Bytes())
	if headerCRC == 0 {
		return nil, fmt.Errorf("%w: header", ErrChecksumCollision)
	}
	mustSetCRC(g.header.view, fHeaderCRC32, headerCRC)

	return g.header.Bytes(), nil
}

// AsAlternate returns an independent copy describing the backup table: the
// current and alternate LBAs are swapped and the entry array is placed
// directly before the backup header. Checksums are left as they were; call
// BuildHeader on the result before writing it.
func (g *GPT) AsAlternate() (*GPT, error) {
	if g.header == nil {
		return nil, ErrNoHeader
	}

	alt := &GPT{
		sectorSize: g.sectorSize,
		header:     g.header.clone(),
		entries:    make([]*Entry, len(g.entries)),
		log:        g.log,
		policy:     g.policy,
	}
	for i, e := range g.entries {
		alt.entries[i] = e.clone()
	}

	current, alternate := g.header.CurrentLBA(), g.header.AlternateLBA()
	sectors := g.EntriesSectors()
	if alternate < sectors {
		return nil, fmt.Errorf("%w: alternate LBA %d leaves no room for %d entry sectors", ErrInvalidLayout, alternate, sectors)
	}

	mustSetUint(alt.header.view, fCurrentLBA, alternate)
	mustSetUint(alt.header.view, fAlternateLBA, current)
	mustSetUint(alt.header.view, fPartEntryStartLBA, alternate-sectors)
	return alt, nil
}


// SetCurrentLBA records the LBA the header is written to. Checksums are left
// as they were; call BuildHeader before writing.
func (g *GPT) SetCurrentLBA(lba uint64) error {
	if g.header == nil {
		return ErrNoHeader
	}
	mustSetUint(g.header.view, fCurrentLBA, lba)
	return nil
}
