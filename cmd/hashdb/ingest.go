package main

import (
	"fmt"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/NPS-DEEP/hashdb-sub002/db"
	"github.com/NPS-DEEP/hashdb-sub002/ingest"
	"github.com/NPS-DEEP/hashdb-sub002/scan"
)

func newIngestCmd() *cli.Command {
	return &cli.Command{
		Name:      "ingest",
		Usage:     "recursively hash a directory or file tree into a database",
		ArgsUsage: "<hashdb_dir> <import_dir_or_file>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "repository-name", Value: ""},
			&cli.IntFlag{Name: "workers", Value: 4},
			&cli.BoolFlag{Name: "no-recursion"},
			&cli.StringFlag{Name: "whitelist", Usage: "path to a whitelist hashdb; hashes found there are labeled \"w\" instead of ingested with their computed label"},
		},
		Action: func(c *cli.Context) error {
			dir, src := c.Args().Get(0), c.Args().Get(1)
			if dir == "" || src == "" {
				return cli.Exit("ingest: missing <hashdb_dir> <import_dir_or_file>", 1)
			}
			d, err := db.Open(dir)
			if err != nil {
				return err
			}
			defer d.Close()

			im := ingest.New(d.HashStore, d.SourceStore, d.SourceNameStore, d.FileHashIndex, d.BloomBuilder,
				d.Settings.HashPrefixBits, d.Settings.HashSuffixBytes, uint64(d.Settings.SectorSize), d.Settings.MaxIDOffsetPairs)
			tracker := ingest.NewTracker(im)

			repo := c.String("repository-name")
			if repo == "" {
				repo = src
			}
			cfg := ingest.DefaultConfig(d.Settings, repo)
			cfg.Workers = c.Int("workers")
			if c.Bool("no-recursion") {
				cfg.RecursionEnabled = false
			}

			if wl := c.String("whitelist"); wl != "" {
				wd, err := db.Open(wl)
				if err != nil {
					return fmt.Errorf("ingest: open whitelist %s: %w", wl, err)
				}
				defer wd.Close()
				cfg.Whitelist = scan.New(wd.HashStore, wd.SourceStore, wd.SourceNameStore, wd.FileHashIndex, wd.BloomFilter,
					wd.Settings.HashPrefixBits, wd.Settings.HashSuffixBytes)
			}

			p := mpb.New(mpb.WithWidth(64))
			var bytesDone int64
			bar := p.New(0,
				mpb.SpinnerStyle(),
				mpb.PrependDecorators(decor.Name("ingesting "+src)),
				mpb.AppendDecorators(decor.Any(func(statistics decor.Statistics) string {
					return humanize.Bytes(uint64(atomic.LoadInt64(&bytesDone)))
				})),
			)
			cfg.Progress = func(n uint64) {
				atomic.AddInt64(&bytesDone, int64(n))
				bar.SetCurrent(atomic.LoadInt64(&bytesDone))
			}

			pipeline := ingest.NewPipeline(im, tracker, cfg)
			err = pipeline.IngestTree(c.Context, src)
			bar.Abort(false)
			p.Wait()
			if err != nil {
				return err
			}
			if err := d.LogEvent("ingest complete", map[string]any{"source": src, "bytes": bytesDone}); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "processed %s; %+v\n", humanize.Bytes(uint64(bytesDone)), im.Counters())
			return nil
		},
	}
}
