package main

import (
	"github.com/urfave/cli/v2"

	"github.com/NPS-DEEP/hashdb-sub002/db"
	"github.com/NPS-DEEP/hashdb-sub002/ingest"
	"github.com/NPS-DEEP/hashdb-sub002/merge"
	"github.com/NPS-DEEP/hashdb-sub002/scan"
)

// openScanner opens dir for reading and returns a scan.Manager over it.
func openScanner(dir string) (*db.Database, *scan.Manager, error) {
	d, err := db.Open(dir)
	if err != nil {
		return nil, nil, err
	}
	mgr := scan.New(d.HashStore, d.SourceStore, d.SourceNameStore, d.FileHashIndex, d.BloomFilter,
		d.Settings.HashPrefixBits, d.Settings.HashSuffixBytes)
	return d, mgr, nil
}

// openImporter opens dir for writing and returns an ingest.ImportManager over it.
func openImporter(dir string) (*db.Database, *ingest.ImportManager, error) {
	d, err := db.Open(dir)
	if err != nil {
		return nil, nil, err
	}
	im := ingest.New(d.HashStore, d.SourceStore, d.SourceNameStore, d.FileHashIndex, d.BloomBuilder,
		d.Settings.HashPrefixBits, d.Settings.HashSuffixBytes, uint64(d.Settings.SectorSize), d.Settings.MaxIDOffsetPairs)
	return d, im, nil
}

func newAddCmd() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "copy every record of one or more source databases into a destination database",
		ArgsUsage: "<hashdb_dir_a>... <hashdb_dir_dest>",
		Action: func(c *cli.Context) error {
			args := c.Args().Slice()
			if len(args) < 2 {
				return cli.Exit("add: need at least one source and a destination", 1)
			}
			destDir := args[len(args)-1]
			srcDirs := args[:len(args)-1]

			destDB, im, err := openImporter(destDir)
			if err != nil {
				return err
			}
			defer destDB.Close()

			var mgrs []*scan.Manager
			for _, dir := range srcDirs {
				sdb, mgr, err := openScanner(dir)
				if err != nil {
					return err
				}
				defer sdb.Close()
				mgrs = append(mgrs, mgr)
			}
			if len(mgrs) == 1 {
				return merge.Add(mgrs[0], im)
			}
			return merge.AddMultiple(mgrs, im)
		},
	}
}

func newIntersectCmd() *cli.Command {
	return &cli.Command{
		Name:      "intersect",
		Usage:     "write the pairwise intersection of two databases into a third",
		ArgsUsage: "<hashdb_dir_a> <hashdb_dir_b> <hashdb_dir_c>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "hash-only", Usage: "match by block hash only, ignoring source/offset"},
		},
		Action: func(c *cli.Context) error {
			aDir, bDir, cDir := c.Args().Get(0), c.Args().Get(1), c.Args().Get(2)
			if aDir == "" || bDir == "" || cDir == "" {
				return cli.Exit("intersect: missing <a> <b> <c>", 1)
			}
			adb, a, err := openScanner(aDir)
			if err != nil {
				return err
			}
			defer adb.Close()
			bdb, b, err := openScanner(bDir)
			if err != nil {
				return err
			}
			defer bdb.Close()
			cdb, cIm, err := openImporter(cDir)
			if err != nil {
				return err
			}
			defer cdb.Close()

			if c.Bool("hash-only") {
				return merge.IntersectHash(a, b, cIm)
			}
			return merge.Intersect(a, b, cIm)
		},
	}
}

func newSubtractCmd() *cli.Command {
	return &cli.Command{
		Name:      "subtract",
		Usage:     "write everything in A not present in B into C",
		ArgsUsage: "<hashdb_dir_a> <hashdb_dir_b> <hashdb_dir_c>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "hash-only", Usage: "match by block hash only, ignoring source/offset"},
		},
		Action: func(c *cli.Context) error {
			aDir, bDir, cDir := c.Args().Get(0), c.Args().Get(1), c.Args().Get(2)
			if aDir == "" || bDir == "" || cDir == "" {
				return cli.Exit("subtract: missing <a> <b> <c>", 1)
			}
			adb, a, err := openScanner(aDir)
			if err != nil {
				return err
			}
			defer adb.Close()
			bdb, b, err := openScanner(bDir)
			if err != nil {
				return err
			}
			defer bdb.Close()
			cdb, cIm, err := openImporter(cDir)
			if err != nil {
				return err
			}
			defer cdb.Close()

			if c.Bool("hash-only") {
				return merge.SubtractHash(a, b, cIm)
			}
			return merge.Subtract(a, b, cIm)
		},
	}
}

func newDeduplicateCmd() *cli.Command {
	return &cli.Command{
		Name:      "deduplicate",
		Usage:     "copy every block hash with exactly one source/offset from A into B",
		ArgsUsage: "<hashdb_dir_a> <hashdb_dir_b>",
		Action: func(c *cli.Context) error {
			aDir, bDir := c.Args().Get(0), c.Args().Get(1)
			if aDir == "" || bDir == "" {
				return cli.Exit("deduplicate: missing <a> <b>", 1)
			}
			adb, a, err := openScanner(aDir)
			if err != nil {
				return err
			}
			defer adb.Close()
			bdb, b, err := openImporter(bDir)
			if err != nil {
				return err
			}
			defer bdb.Close()
			return merge.Deduplicate(a, b)
		},
	}
}
