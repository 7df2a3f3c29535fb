// Package archive saves and restores the GPT region of a LUN as a
// compressed image.
package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

var ErrUnsupportedAlgorithm = errors.New("unsupported compression algorithm")

// zipEntry is the member name used inside zip archives.
const zipEntry = "gpt.img"

var extensions = map[string]string{
	"gzip":   ".gz",
	"zlib":   ".zlib",
	"bzip2":  ".bz2",
	"snappy": ".snappy",
	"s2":     ".s2",
	"zstd":   ".zst",
	"zip":    ".zip",
}

// Algorithms lists the supported compression algorithms.
func Algorithms() []string {
	out := make([]string, 0, len(extensions))
	for name := range extensions {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Extension returns the file extension for a compression algorithm.
func Extension(algorithm string) (string, error) {
	ext, ok := extensions[algorithm]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, algorithm)
	}
	return ext, nil
}

// AlgorithmFor infers the compression algorithm from a file name.
func AlgorithmFor(path string) (string, error) {
	ext := filepath.Ext(path)
	for name, e := range extensions {
		if e == ext {
			return name, nil
		}
	}
	return "", fmt.Errorf("%w: no algorithm for %q", ErrUnsupportedAlgorithm, filepath.Base(path))
}

type zipWriteCloser struct {
	io.Writer
	zw *zip.Writer
}

func (z *zipWriteCloser) Close() error { return z.zw.Close() }

// NewWriter wraps output in a compressor. Closing the result flushes the
// compressed stream but leaves output open.
func NewWriter(algorithm string, output io.Writer) (io.WriteCloser, error) {
	switch algorithm {
	case "gzip":
		return gzip.NewWriter(output), nil
	case "zlib":
		return zlib.NewWriter(output), nil
	case "bzip2":
		w, err := bzip2.NewWriter(output, &bzip2.WriterConfig{})
		if err != nil {
			return nil, err
		}
		return w, nil
	case "snappy":
		return snappy.NewBufferedWriter(output), nil
	case "s2":
		return s2.NewWriter(output), nil
	case "zstd":
		w, err := zstd.NewWriter(output)
		if err != nil {
			return nil, err
		}
		return w, nil
	case "zip":
		zw := zip.NewWriter(output)
		w, err := zw.Create(zipEntry)
		if err != nil {
			_ = zw.Close()
			return nil, fmt.Errorf("failed to create zip entry: %w", err)
		}
		return &zipWriteCloser{Writer: w, zw: zw}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, algorithm)
	}
}

// Decompress reads a whole compressed stream.
func Decompress(algorithm string, input io.Reader) ([]byte, error) {
	var r io.Reader
	switch algorithm {
	case "gzip":
		gz, err := gzip.NewReader(input)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		r = gz
	case "zlib":
		zr, err := zlib.NewReader(input)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		r = zr
	case "bzip2":
		br, err := bzip2.NewReader(input, &bzip2.ReaderConfig{})
		if err != nil {
			return nil, err
		}
		defer br.Close()
		r = br
	case "snappy":
		r = snappy.NewReader(input)
	case "s2":
		r = s2.NewReader(input)
	case "zstd":
		zr, err := zstd.NewReader(input)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		r = zr
	case "zip":
		return unzip(input)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, algorithm)
	}
	return io.ReadAll(r)
}

func unzip(input io.Reader) ([]byte, error) {
	data, err := io.ReadAll(input)
	if err != nil {
		return nil, err
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	for _, f := range zr.File {
		if f.Name != zipEntry {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("zip archive has no %s entry", zipEntry)
}
