// Command hashdb is a thin CLI wrapper dispatching to the library packages;
// argument parsing and help text are explicitly out of scope for the core
// (spec §1), so command bodies here do little beyond flag plumbing. Follows
// the teacher's main.go: a context canceled on SIGINT/SIGTERM, a
// urfave/cli/v2 App with one subcommand per operation.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	logging "github.com/ipfs/go-log/v2"
	"github.com/urfave/cli/v2"
)

var log = logging.Logger("hashdb/cmd")

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, syscall.SIGTERM, syscall.SIGINT)
		select {
		case <-interrupt:
			log.Info("received interrupt signal")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(interrupt)
	}()

	app := &cli.App{
		Name:        "hashdb",
		Usage:       "content-addressed block-hash database for digital forensics",
		Description: "bulk ingest, scan, and set-algebraic composition over block-hash databases",
		Commands: []*cli.Command{
			newCreateCmd(),
			newIngestCmd(),
			newScanCmd(),
			newExportCmd(),
			newImportCmd(),
			newAddCmd(),
			newIntersectCmd(),
			newSubtractCmd(),
			newDeduplicateCmd(),
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
