//go:build linux

package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"edltool/internal/lun"
	"edltool/internal/units"
)

func listDisks() ([]DiskInfo, error) {
	blockDevices, err := os.ReadDir("/sys/class/block")
	if err != nil {
		return nil, fmt.Errorf("error reading /sys/class/block: %w", err)
	}

	var disks []DiskInfo
	for _, bd := range blockDevices {
		devName := bd.Name()
		if hasAnyPrefix(devName, excludePrefixes) {
			continue
		}

		devPath := "/dev/" + devName
		info := DiskInfo{Path: devPath, DiskType: diskType(devName)}

		if d, err := lun.Open(devPath, false, 0, logger); err != nil {
			info.SizeStr = "Error: " + err.Error()
		} else {
			info.Size = d.Size()
			info.SizeStr = units.Bytes(d.Size())
			_ = d.Close()
		}

		mountPoint, err := findMountPointForDevice(devPath)
		if err != nil {
			info.MountInfo = "(No filesystem mount found)"
		} else {
			info.Mounted = true
			total, used, free, err := getFsSpace(mountPoint)
			if err != nil {
				info.MountInfo = fmt.Sprintf("(mounted on %s) - Error reading filesystem", mountPoint)
			} else {
				info.MountInfo = fmt.Sprintf("(mounted on %s) - Total: %s, Used: %s, Free: %s",
					mountPoint, units.Bytes(total), units.Bytes(used), units.Bytes(free))
			}
		}
		disks = append(disks, info)
	}
	return disks, nil
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}

func diskType(devName string) string {
	sys := filepath.Join("/sys/class/block", devName)
	if _, err := os.Stat(filepath.Join(sys, "partition")); err == nil {
		return "partition"
	}
	data, err := os.ReadFile(filepath.Join(sys, "removable"))
	if err != nil {
		return "unknown"
	}
	if strings.TrimSpace(string(data)) == "1" {
		return "removable"
	}
	return "physical"
}

// findMountPointForDevice looks devPath up in /proc/self/mountinfo.
func findMountPointForDevice(devPath string) (string, error) {
	f, err := os.Open("/proc/self/mountinfo")
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		before, after, ok := strings.Cut(scanner.Text(), " - ")
		if !ok {
			continue
		}
		beforeFields := strings.Fields(before)
		afterFields := strings.Fields(after)
		if len(beforeFields) < 5 || len(afterFields) < 2 {
			continue
		}
		if afterFields[1] == devPath {
			return beforeFields[4], nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("no mount found for device %s", devPath)
}

func getFsSpace(mountPoint string) (total, used, free int64, err error) {
	var fs unix.Statfs_t
	if err := unix.Statfs(mountPoint, &fs); err != nil {
		return 0, 0, 0, err
	}
	total = int64(fs.Blocks) * int64(fs.Bsize)
	free = int64(fs.Bfree) * int64(fs.Bsize)
	available := int64(fs.Bavail) * int64(fs.Bsize)
	return total, total - available, free, nil
}

func checkWSL() bool {
	data, err := os.ReadFile("/proc/version")
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(string(data)), "wsl")
}
