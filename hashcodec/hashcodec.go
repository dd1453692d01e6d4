// Package hashcodec encodes and decodes HashStore keys and values per the
// key-encoding scheme in spec §3 ("Key encoding for HashStore"): a sortable
// prefix/suffix split on the binary hash, and a varint run-length tuple list
// in the value. Grounded on store/index's bucket-prefix scheme for the key
// split and gsfa/linkedlog's varint length-prefixed record framing for the
// value layout.
package hashcodec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/NPS-DEEP/hashdb-sub002/errs"
)

// Tuple is one (source_id, offset, entropy, label) occurrence of a block
// hash, per spec §3's Block-hash record value.
type Tuple struct {
	SourceID uint64
	Offset   uint64
	Entropy  uint64 // fixed-point
	Label    []byte
}

// EncodeKey splits H into (prefix, suffix) per spec §3: prefix is the first
// prefixBits/8 bytes of H (sortable), suffix is the next suffixBytes bytes
// (disambiguates within a prefix equivalence class). The two concatenated
// form the HashStore key. storedSuffix is all of H after the prefix, kept in
// the value so that FullHash can rebuild H exactly.
func EncodeKey(h []byte, prefixBits, suffixBytes uint32) (key []byte, storedSuffix []byte, err error) {
	prefixLen := int(prefixBits / 8)
	if prefixBits%8 != 0 {
		return nil, nil, errs.Invariantf("hash_prefix_bits must be a multiple of 8, got %d", prefixBits)
	}
	suffixLen := int(suffixBytes)
	if prefixLen+suffixLen > len(h) {
		return nil, nil, errs.Invariantf("hash %x too short for prefix_bits=%d suffix_bytes=%d", h, prefixBits, suffixBytes)
	}
	prefix := h[:prefixLen]
	suffix := h[prefixLen : prefixLen+suffixLen]
	key = make([]byte, 0, prefixLen+suffixLen)
	key = append(key, prefix...)
	key = append(key, suffix...)
	return key, append([]byte(nil), h[prefixLen:]...), nil
}

// EncodeValue lays out [varint stored-suffix length][stored suffix][varint
// count][per-tuple: varint source_id, varint offset, varint entropy,
// length-prefixed label].
func EncodeValue(storedSuffix []byte, tuples []Tuple) []byte {
	var buf bytes.Buffer
	writeUvarint(&buf, uint64(len(storedSuffix)))
	buf.Write(storedSuffix)
	writeUvarint(&buf, uint64(len(tuples)))
	for _, t := range tuples {
		writeUvarint(&buf, t.SourceID)
		writeUvarint(&buf, t.Offset)
		writeUvarint(&buf, t.Entropy)
		writeUvarint(&buf, uint64(len(t.Label)))
		buf.Write(t.Label)
	}
	return buf.Bytes()
}

func writeUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

// DecodeValue is the inverse of EncodeValue.
func DecodeValue(suffixBytes int, value []byte) (storedSuffix []byte, tuples []Tuple, err error) {
	r := bytes.NewReader(value)
	suffixLen, err := binary.ReadUvarint(r)
	if err != nil || suffixLen < uint64(suffixBytes) || suffixLen > uint64(r.Len()) {
		return nil, nil, errs.Formatf(0, "malformed stored suffix in hash value: want at least %d bytes", suffixBytes)
	}
	storedSuffix = make([]byte, suffixLen)
	if _, err := io.ReadFull(r, storedSuffix); err != nil {
		return nil, nil, errs.Formatf(0, "malformed stored suffix: %v", err)
	}
	count, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, nil, errs.Formatf(0, "malformed tuple count: %v", err)
	}
	tuples = make([]Tuple, 0, count)
	for i := uint64(0); i < count; i++ {
		sourceID, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, nil, errs.Formatf(0, "malformed source_id: %v", err)
		}
		offset, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, nil, errs.Formatf(0, "malformed offset: %v", err)
		}
		entropy, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, nil, errs.Formatf(0, "malformed entropy: %v", err)
		}
		labelLen, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, nil, errs.Formatf(0, "malformed label length: %v", err)
		}
		var label []byte
		if labelLen > 0 {
			label = make([]byte, labelLen)
			if _, err := io.ReadFull(r, label); err != nil {
				return nil, nil, errs.Formatf(0, "malformed label: %v", err)
			}
		}
		tuples = append(tuples, Tuple{SourceID: sourceID, Offset: offset, Entropy: entropy, Label: label})
	}
	return storedSuffix, tuples, nil
}

// FullHash reassembles H from the prefix portion of key and the stored
// suffix portion of value, per spec §4.3. Must be byte-exact for every H
// that went in.
func FullHash(key []byte, prefixBits uint32, storedSuffix []byte) []byte {
	prefixLen := int(prefixBits / 8)
	h := make([]byte, 0, prefixLen+len(storedSuffix))
	h = append(h, key[:prefixLen]...)
	h = append(h, storedSuffix...)
	return h
}

// HasTuple reports whether (sourceID, offset) already occurs in tuples, per
// spec §3's "a single (source_id, offset) pair appears at most once per H".
func HasTuple(tuples []Tuple, sourceID, offset uint64) bool {
	for _, t := range tuples {
		if t.SourceID == sourceID && t.Offset == offset {
			return true
		}
	}
	return false
}

// ErrExceedsMax is returned by AppendTuple when count has reached
// max_id_offset_pairs.
var ErrExceedsMax = fmt.Errorf("hash record exceeds max_id_offset_pairs")

// AppendTuple appends t to tuples, enforcing the max_id_offset_pairs cap and
// the per-H uniqueness invariant from spec §3.
func AppendTuple(tuples []Tuple, t Tuple, maxPairs uint64) ([]Tuple, error) {
	if uint64(len(tuples)) >= maxPairs {
		return tuples, ErrExceedsMax
	}
	if HasTuple(tuples, t.SourceID, t.Offset) {
		return tuples, errs.ErrAlreadyExists
	}
	return append(tuples, t), nil
}
