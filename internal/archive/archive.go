package archive

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gosuri/uilive"

	"edltool/internal/gpt"
	"edltool/internal/lun"
	"edltool/internal/units"
)

const copyBufferSize = 16384

// Result describes a finished backup.
type Result struct {
	Path    string
	Sectors uint64
	Read    int64
	Written int64
	Elapsed time.Duration
}

// Ratio is the compression ratio as original:compressed.
func (r *Result) Ratio() string {
	if r.Written == 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.2f:1", float64(r.Read)/float64(r.Written))
}

type countingWriter struct {
	w     io.Writer
	count int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.count += int64(n)
	return n, err
}

// Save compresses sectors [0, FirstUsableLBA) of the primary table's LUN,
// which hold the protective MBR, the primary header and the entry array,
// into base plus the algorithm's extension. Progress is drawn on progress
// when it is non-nil.
func Save(d *lun.Disk, base, algorithm string, progress io.Writer, opts ...gpt.Option) (*Result, error) {
	ext, err := Extension(algorithm)
	if err != nil {
		return nil, err
	}

	tbl, err := lun.LoadPrimary(d, opts...)
	if err != nil {
		return nil, err
	}
	sectors := tbl.Header().FirstUsableLBA()
	if sectors == 0 || sectors > d.Sectors() {
		return nil, fmt.Errorf("%w: first usable LBA %d on a LUN of %d sectors", gpt.ErrInvalidLayout, sectors, d.Sectors())
	}
	total := int64(sectors) * int64(d.SectorSize())

	path := base + ext
	output, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		_ = output.Close()
	}()

	cw := &countingWriter{w: output}
	compressed, err := NewWriter(algorithm, cw)
	if err != nil {
		return nil, fmt.Errorf("failed to create compression writer: %w", err)
	}

	res := &Result{Path: path, Sectors: sectors}
	start := time.Now()
	p := newProgress(progress, total, start)
	defer p.stop()

	src := io.NewSectionReader(d, 0, total)
	buf := make([]byte, copyBufferSize)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, wErr := compressed.Write(buf[:n]); wErr != nil {
				return nil, fmt.Errorf("failed to write compressed stream: %w", wErr)
			}
			res.Read += int64(n)
			p.update(res.Read, cw.count, false)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading from LUN: %w", err)
		}
	}

	if err := compressed.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish compressed stream: %w", err)
	}
	if err := output.Sync(); err != nil {
		return nil, err
	}
	res.Written = cw.count
	res.Elapsed = time.Since(start)
	p.update(res.Read, res.Written, true)
	return res, nil
}

// Load decompresses a backup, choosing the algorithm by file extension.
func Load(path string) ([]byte, error) {
	algorithm, err := AlgorithmFor(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := Decompress(algorithm, f)
	if err != nil {
		return nil, fmt.Errorf("error decompressing %s: %w", path, err)
	}
	return data, nil
}

// Verify checks that data is a whole number of sectors holding a primary
// GPT whose entry array lies inside data, and returns that table.
func Verify(data []byte, sectorSize int, opts ...gpt.Option) (*gpt.GPT, error) {
	if sectorSize <= 0 {
		return nil, fmt.Errorf("%w: sector size %d", gpt.ErrInvalidLayout, sectorSize)
	}
	ss := uint64(sectorSize)
	if len(data) == 0 || uint64(len(data))%ss != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a whole number of %d byte sectors", gpt.ErrInvalidLayout, len(data), ss)
	}
	if uint64(len(data)) < 2*ss {
		return nil, fmt.Errorf("%w: image has no room for a primary header", gpt.ErrTruncatedBuffer)
	}

	g := gpt.New(sectorSize, opts...)
	if _, err := g.ParseHeader(data[ss:2*ss], 1); err != nil {
		return nil, err
	}
	start := g.Header().PartEntryStartLBA() * ss
	end := start + g.EntriesSectors()*ss
	if start < 2*ss || end > uint64(len(data)) {
		return nil, fmt.Errorf("%w: entry array [%d, %d) outside the %d byte image", gpt.ErrInvalidLayout, start, end, len(data))
	}
	if _, err := g.ParsePartEntries(data[start:end]); err != nil {
		return nil, err
	}
	return g, nil
}

// Restore writes a backup made by Save back to the start of d after
// checking that it holds a usable primary GPT.
func Restore(d *lun.Disk, path string, opts ...gpt.Option) (*gpt.GPT, error) {
	data, err := Load(path)
	if err != nil {
		return nil, err
	}
	g, err := Verify(data, d.SectorSize(), opts...)
	if err != nil {
		return nil, fmt.Errorf("refusing to restore %s: %w", path, err)
	}
	if err := d.WriteSectors(0, data); err != nil {
		return nil, err
	}
	return g, nil
}

type progress struct {
	w     *uilive.Writer
	total int64
	start time.Time
	last  time.Time
}

func newProgress(out io.Writer, total int64, start time.Time) *progress {
	p := &progress{total: total, start: start, last: start}
	if out != nil {
		p.w = uilive.New()
		p.w.Out = out
		p.w.Start()
	}
	return p
}

// update redraws at most once a second unless final is set.
func (p *progress) update(read, written int64, final bool) {
	if p.w == nil || (!final && time.Since(p.last) < time.Second) {
		return
	}
	elapsed := time.Since(p.start)
	secs := elapsed.Seconds()
	if secs <= 0 {
		secs = 1e-9
	}

	_, _ = fmt.Fprintf(p.w, "Byte Count: Read: %s (%d bytes), Written: %s (%d bytes)\n",
		units.Bytes(read), read, units.Bytes(written), written)
	_, _ = fmt.Fprintf(p.w, "Elapsed Time: %s\n", elapsed.Truncate(time.Second))
	_, _ = fmt.Fprintf(p.w, "Estimated Time: %s\n", estimate(read, p.total, secs))
	_, _ = fmt.Fprintf(p.w, "Read Speed: %s\n", units.Speed(float64(read)/secs))
	_, _ = fmt.Fprintf(p.w, "Write Speed: %s\n", units.Speed(float64(written)/secs))
	_ = p.w.Flush()
	p.last = time.Now()
}

func (p *progress) stop() {
	if p.w != nil {
		p.w.Stop()
	}
}

func estimate(read, total int64, secs float64) string {
	if total <= 0 || read <= 0 || secs <= 0 {
		return "N/A"
	}
	remaining := float64(total-read) / (float64(read) / secs)
	if remaining < 0 {
		remaining = 0
	}
	d := time.Duration(remaining * float64(time.Second)).Round(time.Second)
	return d.String()
}
