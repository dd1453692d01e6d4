// Package forensicpath reads bytes from recursion-path strings of the form
// `<offset>(-<codec>-<offset>)*` (spec §4.11), repeatedly decompressing
// through nested containers. It is grounded on the uncompression stage
// (package uncompress) for the actual zip/gzip decompression step.
package forensicpath

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/NPS-DEEP/hashdb-sub002/media"
	"github.com/NPS-DEEP/hashdb-sub002/uncompress"
)

// initialReadSize is the "reads up to 1 MiB" window at off0, per spec §4.11.
const initialReadSize = 1 << 20

// component is one hyphen-delimited (codec, offset) step past the first.
type component struct {
	codec  uncompress.Codec
	offset uint64
}

// Parse splits a recursion path into the initial offset and its trailing
// codec/offset components.
func Parse(path string) (off0 uint64, rest []component, err error) {
	parts := strings.Split(path, "-")
	if len(parts) == 0 {
		return 0, nil, fmt.Errorf("forensicpath: empty path")
	}
	off0, err = strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return 0, nil, fmt.Errorf("forensicpath: malformed initial offset %q: %w", parts[0], err)
	}
	if (len(parts)-1)%2 != 0 {
		return 0, nil, fmt.Errorf("forensicpath: malformed path %q: codec/offset components must pair", path)
	}
	for i := 1; i < len(parts); i += 2 {
		codec := uncompress.Codec(parts[i])
		if codec != uncompress.CodecZip && codec != uncompress.CodecGzip {
			return 0, nil, fmt.Errorf("forensicpath: unknown codec %q", codec)
		}
		offset, err := strconv.ParseUint(parts[i+1], 10, 64)
		if err != nil {
			return 0, nil, fmt.Errorf("forensicpath: malformed offset %q: %w", parts[i+1], err)
		}
		rest = append(rest, component{codec: codec, offset: offset})
	}
	return off0, rest, nil
}

// Read resolves path against rd, returning up to count bytes from the
// final position after repeated decompression, per spec §4.11.
func Read(rd media.Reader, path string, count int) ([]byte, error) {
	off0, components, err := Parse(path)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, initialReadSize)
	n, err := rd.ReadAt(off0, buf)
	if err != nil {
		return nil, err
	}
	buf = buf[:n]
	pos := uint64(0)

	for _, c := range components {
		decoded, err := uncompress.Decompress(c.codec, buf, int(pos))
		if err != nil {
			return nil, fmt.Errorf("forensicpath: decompress at %q: %w", path, err)
		}
		buf = decoded
		pos = c.offset
	}

	end := pos + uint64(count)
	if end > uint64(len(buf)) {
		end = uint64(len(buf))
	}
	if pos > uint64(len(buf)) {
		return nil, nil
	}
	return buf[pos:end], nil
}
