// Package units formats byte counts for humans.
package units

import "fmt"

const (
	KB = 1 << 10
	MB = 1 << 20
	GB = 1 << 30
	TB = 1 << 40
	PB = 1 << 50
)

// Number is any integer type a byte count may arrive in.
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~uintptr
}

// Unit is a data size unit with its name and threshold.
type Unit struct {
	Name      string
	Threshold uint64
}

// Predefined units in descending order.
var units = []Unit{
	{"PB", PB},
	{"TB", TB},
	{"GB", GB},
	{"MB", MB},
	{"KB", KB},
}

// Bytes renders n with the largest unit it reaches, or as plain bytes.
func Bytes[T Number](n T) string {
	if n < 0 {
		return "-" + Bytes(-uint64(int64(n)))
	}
	v := uint64(n)
	for _, u := range units {
		if v >= u.Threshold {
			return fmt.Sprintf("%.2f %s", float64(v)/float64(u.Threshold), u.Name)
		}
	}
	return fmt.Sprintf("%d bytes", v)
}

// Speed renders a bytes-per-second rate.
func Speed(bps float64) string {
	if bps <= 0 {
		return "0 B/s"
	}
	for _, u := range units {
		if bps >= float64(u.Threshold) {
			return fmt.Sprintf("%.2f %s/s", bps/float64(u.Threshold), u.Name)
		}
	}
	return fmt.Sprintf("%.0f B/s", bps)
}
