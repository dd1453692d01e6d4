// Package records encodes the Source record, source-name record, and
// file-hash→ID index entries named in spec §3's Data Model table, using the
// same varint/length-prefixed conventions as package hashcodec so every KV
// value in the database shares one encoding style.
package records

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"io"

	"github.com/NPS-DEEP/hashdb-sub002/errs"
)

// SourceKey encodes a source_id as a big-endian fixed-width key so that
// ascending byte order matches ascending numeric order, matching the
// "source_first/source_next" ordered walk required by spec §4.4.
func SourceKey(sourceID uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, sourceID)
	return key
}

// DecodeSourceKey is the inverse of SourceKey.
func DecodeSourceKey(key []byte) uint64 {
	return binary.BigEndian.Uint64(key)
}

// Source is the per-source aggregate record, spec §3's Source record value.
type Source struct {
	FileBinaryHash    []byte
	FileSize          uint64
	FileType          string
	ZeroCount         uint64
	NonprobativeCount uint64
}

// EncodeSource lays out [varint hashlen][hash][varint filesize][varint
// typelen][type][varint zero_count][varint nonprobative_count].
func EncodeSource(s Source) []byte {
	var buf bytes.Buffer
	writeUvarint(&buf, uint64(len(s.FileBinaryHash)))
	buf.Write(s.FileBinaryHash)
	writeUvarint(&buf, s.FileSize)
	writeUvarint(&buf, uint64(len(s.FileType)))
	buf.WriteString(s.FileType)
	writeUvarint(&buf, s.ZeroCount)
	writeUvarint(&buf, s.NonprobativeCount)
	return buf.Bytes()
}

// DecodeSource is the inverse of EncodeSource.
func DecodeSource(value []byte) (Source, error) {
	r := bytes.NewReader(value)
	hashLen, err := binary.ReadUvarint(r)
	if err != nil {
		return Source{}, errs.Formatf(0, "malformed source record: %v", err)
	}
	hash := make([]byte, hashLen)
	if _, err := io.ReadFull(r, hash); err != nil {
		return Source{}, errs.Formatf(0, "malformed source hash: %v", err)
	}
	fileSize, err := binary.ReadUvarint(r)
	if err != nil {
		return Source{}, errs.Formatf(0, "malformed filesize: %v", err)
	}
	typeLen, err := binary.ReadUvarint(r)
	if err != nil {
		return Source{}, errs.Formatf(0, "malformed file_type length: %v", err)
	}
	typeBytes := make([]byte, typeLen)
	if _, err := io.ReadFull(r, typeBytes); err != nil {
		return Source{}, errs.Formatf(0, "malformed file_type: %v", err)
	}
	zeroCount, err := binary.ReadUvarint(r)
	if err != nil {
		return Source{}, errs.Formatf(0, "malformed zero_count: %v", err)
	}
	nonprobativeCount, err := binary.ReadUvarint(r)
	if err != nil {
		return Source{}, errs.Formatf(0, "malformed nonprobative_count: %v", err)
	}
	return Source{
		FileBinaryHash:    hash,
		FileSize:          fileSize,
		FileType:          string(typeBytes),
		ZeroCount:         zeroCount,
		NonprobativeCount: nonprobativeCount,
	}, nil
}

// NameKey encodes the (source_id, repository_name, filename) set-membership
// key from spec §3's Source-name record.
func NameKey(sourceID uint64, repo, filename string) []byte {
	var buf bytes.Buffer
	buf.Write(SourceKey(sourceID))
	writeUvarint(&buf, uint64(len(repo)))
	buf.WriteString(repo)
	writeUvarint(&buf, uint64(len(filename)))
	buf.WriteString(filename)
	return buf.Bytes()
}

// NamePrefix returns the key prefix shared by every name belonging to
// sourceID, for range-scanning all names of one source.
func NamePrefix(sourceID uint64) []byte {
	return SourceKey(sourceID)
}

// Name is a decoded (repository_name, filename) pair.
type Name struct {
	Repository string
	Filename   string
}

// DecodeNameKey is the inverse of NameKey.
func DecodeNameKey(key []byte) (sourceID uint64, name Name, err error) {
	if len(key) < 8 {
		return 0, Name{}, errs.Formatf(0, "malformed source-name key")
	}
	sourceID = DecodeSourceKey(key[:8])
	r := bytes.NewReader(key[8:])
	repoLen, err := binary.ReadUvarint(r)
	if err != nil {
		return 0, Name{}, errs.Formatf(0, "malformed repo length: %v", err)
	}
	repo := make([]byte, repoLen)
	if _, err := io.ReadFull(r, repo); err != nil {
		return 0, Name{}, errs.Formatf(0, "malformed repo: %v", err)
	}
	fileLen, err := binary.ReadUvarint(r)
	if err != nil {
		return 0, Name{}, errs.Formatf(0, "malformed filename length: %v", err)
	}
	file := make([]byte, fileLen)
	if _, err := io.ReadFull(r, file); err != nil {
		return 0, Name{}, errs.Formatf(0, "malformed filename: %v", err)
	}
	return sourceID, Name{Repository: string(repo), Filename: string(file)}, nil
}

// FileHashIndexKey is the key into the file_binary_hash -> source_id index.
func FileHashIndexKey(fileBinaryHash []byte) []byte {
	return append([]byte(nil), fileBinaryHash...)
}

// EncodeFileHashIndexValue encodes a source_id as an 8-byte value.
func EncodeFileHashIndexValue(sourceID uint64) []byte {
	return SourceKey(sourceID)
}

// DecodeFileHashIndexValue is the inverse of EncodeFileHashIndexValue.
func DecodeFileHashIndexValue(value []byte) uint64 {
	return DecodeSourceKey(value)
}

// HexHash is a convenience formatter used by the JSON wire formats in spec §6.
func HexHash(h []byte) string { return hex.EncodeToString(h) }

func writeUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

