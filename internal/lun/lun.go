// Package lun reads and writes GPT tables on a raw storage LUN: a block
// device or an image dumped from one. It stands in for the device transport
// and hands the gpt package nothing but sector buffers.
package lun

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
)

// Device is the raw storage behind a Disk.
type Device interface {
	io.ReaderAt
	io.WriterAt
}

var (
	ErrOutOfRange = errors.New("sector range outside the LUN")
	ErrReadOnly   = errors.New("LUN opened read-only")

	ErrInvalidSectorSize = errors.New("invalid sector size")
)

// DefaultSectorSize is used when nothing better is known.
const DefaultSectorSize = 512

// Disk is a sector-addressed view of a LUN.
type Disk struct {
	dev        Device
	closer     io.Closer
	name       string
	size       int64
	sectorSize int
	writable   bool
	log        *zap.Logger
}

// New wraps dev, which holds size bytes split into sectors of sectorSize.
func New(dev Device, name string, size int64, sectorSize int, writable bool, log *zap.Logger) (*Disk, error) {
	if sectorSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSectorSize, sectorSize)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Disk{
		dev:        dev,
		name:       name,
		size:       size,
		sectorSize: sectorSize,
		writable:   writable,
		log:        log,
	}, nil
}

// Open opens a block device or LUN image. A sectorSize of 0 means detect:
// the kernel's logical block size for block devices, otherwise the position
// of the primary GPT signature, otherwise DefaultSectorSize.
func Open(path string, writable bool, sectorSize int, log *zap.Logger) (*Disk, error) {
	flag := os.O_RDONLY
	if writable {
		flag = os.O_RDWR
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, fmt.Errorf("error opening LUN: %w", err)
	}

	size, err := deviceSize(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("error sizing LUN: %w", err)
	}

	if sectorSize == 0 {
		sectorSize = detectSectorSize(f)
	}

	d, err := New(f, path, size, sectorSize, writable, log)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	d.closer = f
	d.log.Debug("opened LUN",
		zap.String("path", path),
		zap.Int64("size", size),
		zap.Int("sector_size", sectorSize),
		zap.Bool("writable", writable))
	return d, nil
}

func deviceSize(f *os.File) (int64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	if info.Mode().IsRegular() {
		return info.Size(), nil
	}
	return blockDeviceSize(f)
}

func detectSectorSize(f *os.File) int {
	if info, err := f.Stat(); err == nil && !info.Mode().IsRegular() {
		if n, err := blockSectorSize(f); err == nil && n > 0 {
			return n
		}
	}
	sig := make([]byte, 8)
	for _, ss := range []int{512, 4096} {
		if _, err := f.ReadAt(sig, int64(ss)); err == nil && bytes.Equal(sig, []byte("EFI PART")) {
			return ss
		}
	}
	return DefaultSectorSize
}

// Close closes the underlying file when the Disk was opened from a path.
func (d *Disk) Close() error {
	if d.closer == nil {
		return nil
	}
	return d.closer.Close()
}

// Name returns the path or label of the LUN.
func (d *Disk) Name() string { return d.name }

// Size returns the LUN size in bytes.
func (d *Disk) Size() int64 { return d.size }

// SectorSize returns the sector size in bytes.
func (d *Disk) SectorSize() int { return d.sectorSize }

// Sectors returns the number of whole sectors.
func (d *Disk) Sectors() uint64 { return uint64(d.size) / uint64(d.sectorSize) }

// LastLBA returns the address of the last whole sector.
func (d *Disk) LastLBA() uint64 {
	n := d.Sectors()
	if n == 0 {
		return 0
	}
	return n - 1
}

func (d *Disk) checkRange(lba, count uint64) error {
	if count == 0 {
		return nil
	}
	if lba >= d.Sectors() || count > d.Sectors()-lba {
		return fmt.Errorf("%w: LBA %d + %d sectors, LUN has %d", ErrOutOfRange, lba, count, d.Sectors())
	}
	return nil
}

// ReadSectors reads count sectors starting at lba.
func (d *Disk) ReadSectors(lba, count uint64) ([]byte, error) {
	if err := d.checkRange(lba, count); err != nil {
		return nil, err
	}
	buf := make([]byte, count*uint64(d.sectorSize))
	if _, err := d.dev.ReadAt(buf, int64(lba)*int64(d.sectorSize)); err != nil {
		return nil, fmt.Errorf("error reading LBA %d: %w", lba, err)
	}
	return buf, nil
}

// WriteSectors writes b at lba, zero padding the last sector.
func (d *Disk) WriteSectors(lba uint64, b []byte) error {
	if !d.writable {
		return ErrReadOnly
	}
	ss := uint64(d.sectorSize)
	count := (uint64(len(b)) + ss - 1) / ss
	if err := d.checkRange(lba, count); err != nil {
		return err
	}
	buf := make([]byte, count*ss)
	copy(buf, b)
	if _, err := d.dev.WriteAt(buf, int64(lba)*int64(ss)); err != nil {
		return fmt.Errorf("error writing LBA %d: %w", lba, err)
	}
	d.log.Debug("wrote sectors", zap.String("lun", d.name), zap.Uint64("lba", lba), zap.Uint64("count", count))
	return nil
}

// ReadAt reads raw bytes, for dumps.
func (d *Disk) ReadAt(p []byte, off int64) (int, error) {
	return d.dev.ReadAt(p, off)
}
