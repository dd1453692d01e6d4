// Package media implements the uniform random-access reader over forensic
// source media (spec §4.6): RAW single files, split-file sequences
// (.000/.001/...), and EWF/E01. The sequential offset-stepping iterate()
// contract is grounded on downloader.Downloader.generateJobs, which steps a
// fixed chunk size over a file and feeds a job channel the same way.
package media

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/NPS-DEEP/hashdb-sub002/errs"
)

// DataChunkSize is the data-carrying portion D of an ingest buffer, 2^24 B,
// per spec §4.7.
const DataChunkSize = 1 << 24

// Reader is the polymorphic contract over {RAW, Split, EWF}, per spec §4.6.
type Reader interface {
	// Size returns the total addressable byte length of the media.
	Size() uint64
	// ReadAt reads up to len(dst) bytes starting at offset, returning the
	// number of bytes actually read. It may short-read at end of media.
	// Safe for concurrent calls at disjoint offsets.
	ReadAt(offset uint64, dst []byte) (int, error)
	// Close releases any open file handles.
	Close() error
}

// Open selects the concrete Reader variant from the filename suffix: .E01
// selects EWF, .000/.001/...vmdk selects split-file, otherwise RAW.
func Open(path string) (Reader, error) {
	switch {
	case strings.EqualFold(filepath.Ext(path), ".e01"):
		return openEWF(path)
	case isSplitMember(path):
		return openSplit(path)
	default:
		return openRaw(path)
	}
}

var splitSuffix = regexp.MustCompile(`\.(\d{3}|vmdk)$`)

func isSplitMember(path string) bool {
	return splitSuffix.MatchString(strings.ToLower(path))
}

// Chunk is one sequential offset range yielded by Iterate, analogous to
// downloader's chunkJob.
type Chunk struct {
	Offset uint64
	Length uint64
}

// Iterate yields sequential offsets in steps of DataChunkSize, the ingest
// buffer data size, per spec §4.6.
func Iterate(r Reader) []Chunk {
	size := r.Size()
	var chunks []Chunk
	for offset := uint64(0); offset < size; offset += DataChunkSize {
		length := uint64(DataChunkSize)
		if offset+length > size {
			length = size - offset
		}
		chunks = append(chunks, Chunk{Offset: offset, Length: length})
	}
	return chunks
}

// raw is the single-file variant, backed by a plain *os.File.
type raw struct {
	f    *os.File
	size uint64
}

func openRaw(path string) (Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("media: open %s: %w", path, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &raw{f: f, size: uint64(fi.Size())}, nil
}

func (r *raw) Size() uint64 { return r.size }

func (r *raw) ReadAt(offset uint64, dst []byte) (int, error) {
	n, err := r.f.ReadAt(dst, int64(offset))
	if err != nil && n > 0 {
		// Short reads at end of media are expected, per spec §4.6.
		return n, nil
	}
	return n, err
}

func (r *raw) Close() error { return r.f.Close() }

// split concatenates a numbered sequence of segment files (.000, .001, ...)
// into one addressable span.
type split struct {
	files  []*os.File
	bounds []uint64 // bounds[i] = cumulative size through files[i]
	size   uint64
}

func openSplit(path string) (Reader, error) {
	members, err := discoverSplitMembers(path)
	if err != nil {
		return nil, err
	}
	s := &split{}
	var cumulative uint64
	for _, m := range members {
		f, err := os.Open(m)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("media: open %s: %w", m, err)
		}
		fi, err := f.Stat()
		if err != nil {
			f.Close()
			s.Close()
			return nil, err
		}
		s.files = append(s.files, f)
		cumulative += uint64(fi.Size())
		s.bounds = append(s.bounds, cumulative)
	}
	s.size = cumulative
	return s, nil
}

// discoverSplitMembers finds all sibling files sharing the same base name
// pattern as path, sorted by sequence number.
func discoverSplitMembers(path string) ([]string, error) {
	dir := filepath.Dir(path)
	base := path[:len(path)-len(filepath.Ext(path))]
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var members []string
	for _, e := range entries {
		full := filepath.Join(dir, e.Name())
		if strings.HasPrefix(full, base) && isSplitMember(full) {
			members = append(members, full)
		}
	}
	if len(members) == 0 {
		return nil, errs.Invariantf("no split-file members found for %s", path)
	}
	sort.Strings(members)
	return members, nil
}

func (s *split) Size() uint64 { return s.size }

func (s *split) ReadAt(offset uint64, dst []byte) (int, error) {
	var total int
	remaining := dst
	for i, f := range s.files {
		segStart := uint64(0)
		if i > 0 {
			segStart = s.bounds[i-1]
		}
		segEnd := s.bounds[i]
		if offset >= segEnd {
			continue
		}
		if offset+uint64(len(remaining)) <= segStart {
			break
		}
		localOffset := int64(0)
		if offset > segStart {
			localOffset = int64(offset - segStart)
		}
		maxLen := segEnd - segStart - uint64(localOffset)
		readLen := uint64(len(remaining))
		if readLen > maxLen {
			readLen = maxLen
		}
		n, err := f.ReadAt(remaining[:readLen], localOffset)
		total += n
		offset += uint64(n)
		remaining = remaining[n:]
		if err != nil || uint64(n) < readLen || len(remaining) == 0 {
			break
		}
	}
	return total, nil
}

func (s *split) Close() error {
	var firstErr error
	for _, f := range s.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
