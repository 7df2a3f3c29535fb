//go:build !linux

package lun

import (
	"errors"
	"io"
	"os"
)

var errNoBlockDevice = errors.New("raw block devices are only supported on linux")

func blockSectorSize(*os.File) (int, error) { return 0, errNoBlockDevice }

// blockDeviceSize falls back to seeking to the end, which works for most
// character devices that expose a size.
func blockDeviceSize(f *os.File) (int64, error) {
	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, errNoBlockDevice
	}
	return size, nil
}
