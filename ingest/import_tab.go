package ingest

import (
	"bytes"
	"encoding/hex"
	"strconv"

	"github.com/NPS-DEEP/hashdb-sub002/errs"
)

// InsertTab parses one line of the NIST-style tab-separated import format
// (spec §6): "<file_hex>\t<block_hex>\t<sector_index>", sector_index >= 1.
// The file offset is derived as (sector_index-1)*sector_size, since this
// format carries no direct byte offset. No entropy or label accompanies
// this format, matching the original's tab reader.
func (im *ImportManager) InsertTab(line []byte) error {
	fields := bytes.Split(line, []byte{'\t'})
	if len(fields) != 3 {
		return errs.Formatf(0, "tab-import line must have 3 fields, got %d", len(fields))
	}
	fileHash, err := hex.DecodeString(string(bytes.TrimSpace(fields[0])))
	if err != nil {
		return errs.Formatf(0, "malformed file hash hex: %v", err)
	}
	blockHash, err := hex.DecodeString(string(bytes.TrimSpace(fields[1])))
	if err != nil {
		return errs.Formatf(0, "malformed block hash hex: %v", err)
	}
	sectorIndex, err := strconv.ParseUint(string(bytes.TrimSpace(fields[2])), 10, 64)
	if err != nil {
		return errs.Formatf(0, "malformed sector_index: %v", err)
	}
	if sectorIndex < 1 {
		return errs.Formatf(0, "sector_index must be >= 1, got %d", sectorIndex)
	}
	offset := (sectorIndex - 1) * im.sectorSize
	return im.InsertHash(blockHash, fileHash, offset, 0, "")
}
