package main

import (
	"github.com/urfave/cli/v2"

	"github.com/NPS-DEEP/hashdb-sub002/db"
	"github.com/NPS-DEEP/hashdb-sub002/settings"
)

func newCreateCmd() *cli.Command {
	return &cli.Command{
		Name:      "create",
		Usage:     "create a new, empty database",
		ArgsUsage: "<hashdb_dir>",
		Flags: []cli.Flag{
			&cli.UintFlag{Name: "sector-size", Value: settings.DefaultSectorSize},
			&cli.UintFlag{Name: "block-size", Value: settings.DefaultBlockSize},
			&cli.Uint64Flag{Name: "max-id-offset-pairs", Value: settings.DefaultMaxIDOffsetPairs},
			&cli.UintFlag{Name: "hash-prefix-bits", Value: settings.DefaultHashPrefixBits},
			&cli.UintFlag{Name: "hash-suffix-bytes", Value: settings.DefaultHashSuffixBytes},
			&cli.BoolFlag{Name: "bloom", Value: true},
			&cli.UintFlag{Name: "bloom-m", Value: settings.DefaultBloomMHashSize},
			&cli.UintFlag{Name: "bloom-k", Value: settings.DefaultBloomKHashFuncs},
		},
		Action: func(c *cli.Context) error {
			dir := c.Args().First()
			if dir == "" {
				return cli.Exit("create: missing <hashdb_dir>", 1)
			}
			opts := []settings.Option{
				settings.WithSectorSize(uint32(c.Uint("sector-size"))),
				settings.WithBlockSize(uint32(c.Uint("block-size"))),
				settings.WithMaxIDOffsetPairs(c.Uint64("max-id-offset-pairs")),
				settings.WithHashPrefixBits(uint32(c.Uint("hash-prefix-bits"))),
				settings.WithHashSuffixBytes(uint32(c.Uint("hash-suffix-bytes"))),
				settings.WithBloom(c.Bool("bloom"), uint32(c.Uint("bloom-m")), uint32(c.Uint("bloom-k"))),
			}
			d, err := db.Create(dir, opts...)
			if err != nil {
				return err
			}
			return d.Close()
		},
	}
}
