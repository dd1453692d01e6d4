// Package bloom implements the on-disk Bloom prefilter consulted before
// every HashStore lookup (spec §4.2). It follows the build-then-Seal split
// of bucketteer.Writer: a Builder accumulates set bits in memory during
// ingest, then Seal writes the sealed, read-only Filter to disk.
package bloom

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/bits-and-blooms/bitset"
	"github.com/cespare/xxhash/v2"

	"github.com/NPS-DEEP/hashdb-sub002/errs"
)

// magic identifies a sealed Bloom filter file on disk, mirroring
// bucketteer's own magic+version+meta+payload header framing.
var magic = [8]byte{'H', 'D', 'B', 'B', 'L', 'O', 'O', 'M'}

const fileVersion = 1

// messageSize is the fixed free-text field carried in the header, the Go
// analog of bloom_filter_manager_t's "no message" parameter in the original
// tool.
const messageSize = 256

// hashBytes is the number of leading bytes of a block hash used as the
// Bloom input, per spec §4.2.
const hashBytes = 16

// Params bounds M (bits-per-hash exponent) and k (hash function count) to
// the ranges named in spec §4.2.
type Params struct {
	M uint32 // bits-per-hash exponent: m = 2^M total bits
	K uint32 // number of hash functions, 1..5
}

// EstimateParams chooses k=3 and an M such that m = 2^M ≈ n/0.17, the
// approximate sizing helper named in spec §4.2.
func EstimateParams(expectedElements uint64) Params {
	target := float64(expectedElements) / 0.17
	m := uint32(1)
	for (uint64(1) << m) < uint64(target) {
		m++
	}
	if m < 3 {
		m = 3
	}
	return Params{M: m, K: 3}
}

func (p Params) bits() uint64 { return uint64(1) << p.M }

func (p Params) validate() error {
	if p.M < 3 || p.M > 63 {
		return errs.Invariantf("bloom M out of range: %d", p.M)
	}
	if p.K < 1 || p.K > 5 {
		return errs.Invariantf("bloom k out of range: %d", p.K)
	}
	return nil
}

// locations computes the k bit indices for h using the double-hashing
// trick: one xxhash64 computation split into two 32-bit halves (h1, h2),
// then bit_i = (h1 + i*h2) mod m for i in [0, k). This avoids hand-rolling k
// independent hash functions, per SPEC_FULL §6.2.
func locations(p Params, h []byte) []uint64 {
	sum := xxhash.Sum64(h)
	h1 := sum >> 32
	h2 := sum & 0xffffffff
	m := p.bits()
	locs := make([]uint64, p.K)
	for i := uint32(0); i < p.K; i++ {
		locs[i] = (h1 + uint64(i)*h2) % m
	}
	return locs
}

// inputBytes returns the first hashBytes of a block hash, or the whole hash
// if it is shorter (defensive against non-MD5 hash widths).
func inputBytes(h []byte) []byte {
	if len(h) > hashBytes {
		return h[:hashBytes]
	}
	return h
}

// Builder accumulates set bits in memory. Bits are never cleared once set,
// matching the lifecycle in spec §3 ("Bloom bits are set on block-hash
// insert and never cleared").
type Builder struct {
	params Params
	bits   *bitset.BitSet
	n      uint64
}

// NewBuilder creates a Builder with the given parameters.
func NewBuilder(p Params) (*Builder, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &Builder{params: p, bits: bitset.New(uint(p.bits()))}, nil
}

// Add sets the k bits derived from h.
func (b *Builder) Add(h []byte) {
	for _, loc := range locations(b.params, inputBytes(h)) {
		b.bits.Set(uint(loc))
	}
	b.n++
}

// Union ORs f's bits into b, for reloading a previously sealed filter's
// state into a builder before further additions (spec §3: "Bloom bits are
// set on block-hash insert and never cleared" — a re-seal of an existing
// database must not drop bits set in earlier sessions). f must share b's
// parameters.
func (b *Builder) Union(f *Filter) error {
	if f.params != b.params {
		return errs.Invariantf("bloom: cannot union filter with params %+v into builder with params %+v", f.params, b.params)
	}
	b.bits.InPlaceUnion(f.bits)
	return nil
}

// Seal writes the header (magic, version, M, k, message) followed by the
// raw bit array to path. The number of elements added is not recorded.
func (b *Builder) Seal(path, message string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	if err := writeHeader(w, b.params, message); err != nil {
		return err
	}
	if _, err := b.bits.WriteTo(w); err != nil {
		return fmt.Errorf("bloom: write bitset: %w", err)
	}
	return w.Flush()
}

func writeHeader(w io.Writer, p Params, message string) error {
	if _, err := w.Write(magic[:]); err != nil {
		return err
	}
	var hdr [4 + 4 + 4]byte
	binary.LittleEndian.PutUint32(hdr[0:4], fileVersion)
	binary.LittleEndian.PutUint32(hdr[4:8], p.M)
	binary.LittleEndian.PutUint32(hdr[8:12], p.K)
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	msg := make([]byte, messageSize)
	copy(msg, message)
	_, err := w.Write(msg)
	return err
}

func readHeader(r io.Reader) (Params, string, error) {
	var gotMagic [8]byte
	if _, err := io.ReadFull(r, gotMagic[:]); err != nil {
		return Params{}, "", err
	}
	if gotMagic != magic {
		return Params{}, "", errs.Invariantf("not a hashdb bloom filter file")
	}
	var hdr [12]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Params{}, "", err
	}
	version := binary.LittleEndian.Uint32(hdr[0:4])
	if version != fileVersion {
		return Params{}, "", errs.Invariantf("bloom filter version mismatch: got %d, want %d", version, fileVersion)
	}
	p := Params{M: binary.LittleEndian.Uint32(hdr[4:8]), K: binary.LittleEndian.Uint32(hdr[8:12])}
	msg := make([]byte, messageSize)
	if _, err := io.ReadFull(r, msg); err != nil {
		return Params{}, "", err
	}
	return p, string(trimTrailingZero(msg)), nil
}

func trimTrailingZero(b []byte) []byte {
	for i, c := range b {
		if c == 0 {
			return b[:i]
		}
	}
	return b
}

// Filter is the read-only, loaded-into-memory view of a sealed Bloom
// filter file, consulted by scan.Manager before every HashStore lookup.
type Filter struct {
	params  Params
	message string
	bits    *bitset.BitSet
}

// Open loads a sealed filter fully into memory.
func Open(path string) (*Filter, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := bufio.NewReader(f)
	p, message, err := readHeader(r)
	if err != nil {
		return nil, fmt.Errorf("bloom: open %s: %w", path, err)
	}
	bits := &bitset.BitSet{}
	if _, err := bits.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("bloom: read bitset: %w", err)
	}
	return &Filter{params: p, message: message, bits: bits}, nil
}

// MaybeContains reports whether h might be present (false positives
// allowed, false negatives forbidden, per spec §4.2).
func (f *Filter) MaybeContains(h []byte) bool {
	for _, loc := range locations(f.params, inputBytes(h)) {
		if !f.bits.Test(uint(loc)) {
			return false
		}
	}
	return true
}

// Params returns the filter's M/k parameters.
func (f *Filter) Params() Params { return f.params }

// Message returns the free-text message stored in the header.
func (f *Filter) Message() string { return f.message }
