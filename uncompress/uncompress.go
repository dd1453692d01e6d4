// Package uncompress detects zip and gzip container signatures inside a
// buffer and decompresses them into freshly-allocated buffers for recursive
// ingest (spec §4.7 "Recursion", SPEC_FULL component 8). Both formats are
// parsed with the standard library (archive/zip, compress/gzip), matching
// the only two packages in the example pack that handle these exact
// container formats directly from a byte buffer.
package uncompress

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
)

// Codec names a detected container format, used in the recursive filename
// pattern "<parent>-<parent_offset>-<codec>" from spec §4.7.
type Codec string

const (
	CodecZip  Codec = "zip"
	CodecGzip Codec = "gzip"
)

var (
	zipSignature  = []byte{'P', 'K', 0x03, 0x04}
	gzipSignature = []byte{0x1f, 0x8b}
)

// Detection is one container found at a byte offset inside a scanned buffer.
type Detection struct {
	Offset int
	Codec  Codec
}

// Scan walks buf byte-by-byte looking for zip local-file-header or gzip
// magic, per spec §4.7's recursion trigger.
func Scan(buf []byte) []Detection {
	var out []Detection
	for i := 0; i < len(buf); i++ {
		if bytes.HasPrefix(buf[i:], zipSignature) {
			out = append(out, Detection{Offset: i, Codec: CodecZip})
		} else if bytes.HasPrefix(buf[i:], gzipSignature) {
			out = append(out, Detection{Offset: i, Codec: CodecGzip})
		}
	}
	return out
}

// Decompress decompresses buf[offset:] under the named codec, returning a
// freshly-allocated buffer. Unknown codec is an error, per spec §4.11.
func Decompress(codec Codec, buf []byte, offset int) ([]byte, error) {
	switch codec {
	case CodecZip:
		return decompressZip(buf[offset:])
	case CodecGzip:
		return decompressGzip(buf[offset:])
	default:
		return nil, fmt.Errorf("uncompress: unknown codec %q", codec)
	}
}

// decompressZip reads the first file entry found in the archive tail
// starting at a detected local-file-header. archive/zip requires a
// ReaderAt plus the total size to locate the central directory, so the
// caller's remaining buffer is used as the full archive span.
func decompressZip(tail []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(tail), int64(len(tail)))
	if err != nil {
		return nil, fmt.Errorf("uncompress: zip: %w", err)
	}
	if len(zr.File) == 0 {
		return nil, fmt.Errorf("uncompress: zip archive has no entries")
	}
	rc, err := zr.File[0].Open()
	if err != nil {
		return nil, fmt.Errorf("uncompress: zip: open entry: %w", err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func decompressGzip(tail []byte) ([]byte, error) {
	gr, err := gzip.NewReader(bytes.NewReader(tail))
	if err != nil {
		return nil, fmt.Errorf("uncompress: gzip: %w", err)
	}
	defer gr.Close()
	return io.ReadAll(gr)
}
