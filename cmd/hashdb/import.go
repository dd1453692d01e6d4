package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/NPS-DEEP/hashdb-sub002/db"
	"github.com/NPS-DEEP/hashdb-sub002/ingest"
)

func newImportCmd() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "load source and block-hash JSON lines produced by export, or a NIST-style tab file",
		ArgsUsage: "<hashdb_dir> <json_or_tab_file>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "tab", Usage: "parse <file_hex>\\t<block_hex>\\t<sector_index> lines instead of JSON"},
		},
		Action: func(c *cli.Context) error {
			dir, path := c.Args().Get(0), c.Args().Get(1)
			if dir == "" || path == "" {
				return cli.Exit("import: missing <hashdb_dir> <json_or_tab_file>", 1)
			}
			d, err := db.Open(dir)
			if err != nil {
				return err
			}
			defer d.Close()

			im := ingest.New(d.HashStore, d.SourceStore, d.SourceNameStore, d.FileHashIndex, d.BloomBuilder,
				d.Settings.HashPrefixBits, d.Settings.HashSuffixBytes, uint64(d.Settings.SectorSize), d.Settings.MaxIDOffsetPairs)

			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			tab := c.Bool("tab")
			sc := bufio.NewScanner(f)
			sc.Buffer(make([]byte, 0, 64*1024), 1<<24)
			for sc.Scan() {
				line := sc.Bytes()
				if len(line) == 0 {
					continue
				}
				var lineErr error
				if tab {
					lineErr = im.InsertTab(line)
				} else {
					lineErr = im.InsertJSON(line)
				}
				if lineErr != nil {
					fmt.Fprintf(c.App.ErrWriter, "import: skipping line: %v\n", lineErr)
				}
			}
			if err := sc.Err(); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "%+v\n", im.Counters())
			return nil
		},
	}
}
