//go:build !linux

package main

import (
	"errors"
	"runtime"
)

func listDisks() ([]DiskInfo, error) {
	return nil, errors.New("listing disks is not supported on " + runtime.GOOS)
}

func checkWSL() bool { return false }
