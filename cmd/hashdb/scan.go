package main

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/NPS-DEEP/hashdb-sub002/db"
	"github.com/NPS-DEEP/hashdb-sub002/scan"
)

func newScanCmd() *cli.Command {
	return &cli.Command{
		Name:      "scan",
		Usage:     "look up block hashes (hex, one per line, read from <hashes_file> or stdin)",
		ArgsUsage: "<hashdb_dir> [hashes_file]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mode", Value: "count", Usage: "count|ids|full"},
			&cli.IntFlag{Name: "max-sources", Value: 100},
		},
		Action: func(c *cli.Context) error {
			dir := c.Args().Get(0)
			if dir == "" {
				return cli.Exit("scan: missing <hashdb_dir>", 1)
			}
			d, err := db.Open(dir)
			if err != nil {
				return err
			}
			defer d.Close()

			mgr := scan.New(d.HashStore, d.SourceStore, d.SourceNameStore, d.FileHashIndex, d.BloomFilter,
				d.Settings.HashPrefixBits, d.Settings.HashSuffixBytes)

			mode := scan.ModeCountOnly
			switch c.String("mode") {
			case "ids":
				mode = scan.ModeSourceIDs
			case "full":
				mode = scan.ModeSourceIDsNamesMetadata
			}
			maxSources := c.Int("max-sources")

			in := os.Stdin
			if path := c.Args().Get(1); path != "" {
				f, err := os.Open(path)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			sc := bufio.NewScanner(in)
			for sc.Scan() {
				line := sc.Text()
				if line == "" {
					continue
				}
				h, err := hex.DecodeString(line)
				if err != nil {
					fmt.Fprintf(c.App.ErrWriter, "scan: skipping malformed hash %q: %v\n", line, err)
					continue
				}
				out, err := mgr.FindHashJSON(mode, h, maxSources)
				if err != nil {
					continue
				}
				fmt.Fprintln(c.App.Writer, out)
			}
			return sc.Err()
		},
	}
}
