package ingest

import (
	"encoding/hex"
	"encoding/json"

	"github.com/NPS-DEEP/hashdb-sub002/errs"
)

// blockHashJSON mirrors the "Block-hash JSON" schema in spec §6.
type blockHashJSON struct {
	BlockHash         string            `json:"block_hash"`
	Entropy           uint64            `json:"entropy"`
	BlockLabel        string            `json:"block_label"`
	SourceOffsetPairs []json.RawMessage `json:"source_offset_pairs"`
}

// sourceJSON mirrors the "Source JSON" schema in spec §6.
type sourceJSON struct {
	FileHash          string     `json:"file_hash"`
	FileSize          uint64     `json:"filesize"`
	FileType          string     `json:"file_type"`
	ZeroCount         uint64     `json:"zero_count"`
	NonprobativeCount uint64     `json:"nonprobative_count"`
	Names             []nameJSON `json:"names"`
}

type nameJSON struct {
	RepositoryName string `json:"repository_name"`
	Filename       string `json:"filename"`
}

// InsertJSON parses one JSON record (source or hash per spec §6) and
// applies it. Detection is by the presence of "block_hash" vs "file_hash",
// the same discriminator the original tool's import command uses.
func (im *ImportManager) InsertJSON(line []byte) error {
	var probe struct {
		BlockHash string `json:"block_hash"`
		FileHash  string `json:"file_hash"`
	}
	if err := json.Unmarshal(line, &probe); err != nil {
		return errs.Formatf(0, "malformed JSON line: %v", err)
	}
	switch {
	case probe.BlockHash != "":
		return im.insertHashJSON(line)
	case probe.FileHash != "":
		return im.insertSourceJSON(line)
	default:
		return errs.Formatf(0, "JSON line has neither block_hash nor file_hash")
	}
}

func (im *ImportManager) insertHashJSON(line []byte) error {
	var rec blockHashJSON
	if err := json.Unmarshal(line, &rec); err != nil {
		return errs.Formatf(0, "malformed block-hash JSON: %v", err)
	}
	h, err := hex.DecodeString(rec.BlockHash)
	if err != nil {
		return errs.Formatf(0, "malformed block_hash hex: %v", err)
	}
	if len(rec.SourceOffsetPairs)%2 != 0 {
		return errs.Formatf(0, "source_offset_pairs must alternate hash and offset")
	}
	for i := 0; i < len(rec.SourceOffsetPairs); i += 2 {
		var fileHashHex string
		if err := json.Unmarshal(rec.SourceOffsetPairs[i], &fileHashHex); err != nil {
			return errs.Formatf(0, "malformed file hash in source_offset_pairs: %v", err)
		}
		var offset uint64
		if err := json.Unmarshal(rec.SourceOffsetPairs[i+1], &offset); err != nil {
			return errs.Formatf(0, "malformed offset in source_offset_pairs: %v", err)
		}
		fileHash, err := hex.DecodeString(fileHashHex)
		if err != nil {
			return errs.Formatf(0, "malformed file hash hex in source_offset_pairs: %v", err)
		}
		if err := im.InsertHash(h, fileHash, offset, rec.Entropy, rec.BlockLabel); err != nil {
			return err
		}
	}
	return nil
}

func (im *ImportManager) insertSourceJSON(line []byte) error {
	var rec sourceJSON
	if err := json.Unmarshal(line, &rec); err != nil {
		return errs.Formatf(0, "malformed source JSON: %v", err)
	}
	fileHash, err := hex.DecodeString(rec.FileHash)
	if err != nil {
		return errs.Formatf(0, "malformed file_hash hex: %v", err)
	}
	if err := im.InsertSourceData(fileHash, rec.FileSize, rec.FileType, rec.ZeroCount, rec.NonprobativeCount); err != nil {
		return err
	}
	for _, n := range rec.Names {
		if _, err := im.InsertSourceName(fileHash, n.RepositoryName, n.Filename); err != nil {
			return err
		}
	}
	return nil
}
