// Package checksum computes the CRC-32 values that guard GPT headers and
// partition entry arrays.
package checksum

import "hash/crc32"

// CRC32 returns the IEEE 802.3 CRC-32 of b.
func CRC32(b []byte) uint32 {
	return crc32.ChecksumIEEE(b)
}

// CRC32Zeroed returns the CRC-32 of b with the n bytes at off treated as zero.
// b itself is not modified. A checksum field that lies partly outside b is
// zeroed only where it overlaps.
func CRC32Zeroed(b []byte, off, n int) uint32 {
	tmp := make([]byte, len(b))
	copy(tmp, b)
	for i := off; i < off+n && i < len(tmp); i++ {
		if i >= 0 {
			tmp[i] = 0
		}
	}
	return crc32.ChecksumIEEE(tmp)
}
