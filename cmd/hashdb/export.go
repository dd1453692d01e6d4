package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/NPS-DEEP/hashdb-sub002/db"
	"github.com/NPS-DEEP/hashdb-sub002/scan"
)

// exportHash/exportSource mirror the block-hash/source JSON schemas of
// SPEC_FULL §8, reused here (rather than importing ingest's unexported
// mirror types) since export only needs to marshal, not parse, them.
type exportHash struct {
	BlockHash         string        `json:"block_hash"`
	Entropy           uint64        `json:"entropy"`
	BlockLabel        string        `json:"block_label"`
	SourceOffsetPairs []interface{} `json:"source_offset_pairs"`
}

type exportSource struct {
	FileHash          string         `json:"file_hash"`
	FileSize          uint64         `json:"filesize"`
	FileType          string         `json:"file_type"`
	ZeroCount         uint64         `json:"zero_count"`
	NonprobativeCount uint64         `json:"nonprobative_count"`
	Names             []exportName   `json:"names"`
}

type exportName struct {
	RepositoryName string `json:"repository_name"`
	Filename       string `json:"filename"`
}

func newExportCmd() *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "dump every source and block-hash record as JSON lines",
		ArgsUsage: "<hashdb_dir> <out_file>",
		Action: func(c *cli.Context) error {
			dir, out := c.Args().Get(0), c.Args().Get(1)
			if dir == "" || out == "" {
				return cli.Exit("export: missing <hashdb_dir> <out_file>", 1)
			}
			d, err := db.Open(dir)
			if err != nil {
				return err
			}
			defer d.Close()
			mgr := scan.New(d.HashStore, d.SourceStore, d.SourceNameStore, d.FileHashIndex, d.BloomFilter,
				d.Settings.HashPrefixBits, d.Settings.HashSuffixBytes)

			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer f.Close()
			enc := json.NewEncoder(f)

			for id, ok, err := mgr.SourceFirst(); ok; id, ok, err = mgr.SourceNext(id) {
				if err != nil {
					return err
				}
				src, found, err := mgr.FindSource(id)
				if err != nil || !found {
					continue
				}
				names, err := mgr.FindSourceNames(id)
				if err != nil {
					return err
				}
				rec := exportSource{
					FileHash:          hex.EncodeToString(src.FileBinaryHash),
					FileSize:          src.FileSize,
					FileType:          src.FileType,
					ZeroCount:         src.ZeroCount,
					NonprobativeCount: src.NonprobativeCount,
				}
				for _, n := range names {
					rec.Names = append(rec.Names, exportName{RepositoryName: n.Repository, Filename: n.Filename})
				}
				if err := enc.Encode(rec); err != nil {
					return err
				}
			}

			for h, ok, err := mgr.HashFirst(); ok; h, ok, err = mgr.HashNext(h) {
				if err != nil {
					return err
				}
				res, found, err := mgr.FindHash(h)
				if err != nil || !found {
					continue
				}
				rec := exportHash{BlockHash: hex.EncodeToString(h)}
				for _, t := range res.Tuples {
					src, ok, err := mgr.FindSource(t.SourceID)
					if err != nil {
						return err
					}
					if !ok {
						continue
					}
					rec.Entropy = t.Entropy
					rec.BlockLabel = string(t.Label)
					rec.SourceOffsetPairs = append(rec.SourceOffsetPairs, hex.EncodeToString(src.FileBinaryHash), t.Offset)
				}
				if err := enc.Encode(rec); err != nil {
					return err
				}
			}

			fmt.Fprintf(c.App.Writer, "exported %s\n", out)
			return nil
		},
	}
}
