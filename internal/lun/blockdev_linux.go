//go:build linux

package lun

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"
)

func blockSectorSize(f *os.File) (int, error) {
	n, err := unix.IoctlGetInt(int(f.Fd()), unix.BLKSSZGET)
	if err == nil {
		return n, nil
	}

	// sysfs fallback, e.g. /dev/sda -> /sys/class/block/sda/queue/hw_sector_size
	data, rerr := os.ReadFile(filepath.Join("/sys/class/block", filepath.Base(f.Name()), "queue", "hw_sector_size"))
	if rerr != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func blockDeviceSize(f *os.File) (int64, error) {
	var size int64
	_, _, e := unix.Syscall(unix.SYS_IOCTL, f.Fd(), unix.BLKGETSIZE64, uintptr(unsafe.Pointer(&size)))
	if e != 0 {
		return 0, fmt.Errorf("ioctl BLKGETSIZE64 failed: %v", e)
	}
	return size, nil
}
