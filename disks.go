package main

// DiskInfo describes a block device that may hold a LUN.
type DiskInfo struct {
	Path      string
	Size      int64  // 0 if unavailable
	SizeStr   string
	MountInfo string
	Mounted   bool
	DiskType  string // "physical", "removable", "partition", "unknown"
}

// Devices that never hold a LUN.
var excludePrefixes = []string{"loop", "zram", "ram"}
