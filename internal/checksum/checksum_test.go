package checksum

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCRC32KnownValues(t *testing.T) {
	cases := []struct {
		in   string
		want uint32
	}{
		{"", 0},
		{"123456789", 0xcbf43926},
		{"The quick brown fox jumps over the lazy dog", 0x414fa339},
	}

	for _, tc := range cases {
		assert.Equalf(t, tc.want, CRC32([]byte(tc.in)), "CRC32(%q)", tc.in)
	}
}

func TestCRC32Zeroed(t *testing.T) {
	b := []byte("12345678\xde\xad\xbe\xef9")
	want := CRC32([]byte("12345678\x00\x00\x00\x009"))

	assert.Equal(t, want, CRC32Zeroed(b, 8, 4))
	assert.Equal(t, []byte("12345678\xde\xad\xbe\xef9"), b, "input must not change")
}

func TestCRC32ZeroedOutOfRange(t *testing.T) {
	b := []byte("abc")
	assert.Equal(t, CRC32([]byte("ab\x00")), CRC32Zeroed(b, 2, 8))
	assert.Equal(t, CRC32(b), CRC32Zeroed(b, 10, 4))
}
