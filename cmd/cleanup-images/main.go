package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"moire/internal/cleanup"
	"moire/internal/config"
)

func main() {
	os.Exit(runCLI(os.Args[1:], os.Stdout, os.Stderr))
}

func runCLI(args []string, out io.Writer, errOut io.Writer) int {
	cfg := config.Load()
	fs := flag.NewFlagSet("cleanup-images", flag.ContinueOnError)
	fs.SetOutput(errOut)

	opts := cleanup.Options{Out: out, ErrOut: errOut}
	fs.StringVar(&opts.ContentRoot, "content", cfg.ContentPath, "memo content directory (defaults to $MOIRE_CONTENT_PATH or ./memos)")
	fs.StringVar(&opts.ImagesDir, "images", cleanup.DefaultImagesDir, "images directory relative to the content directory")
	fs.BoolVar(&opts.DryRun, "dry-run", false, "list unused images without removing them")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 0 {
		_, _ = fmt.Fprintln(errOut, "usage: cleanup-images [--content <dir>] [--images <dir>] [--dry-run]")
		return 2
	}

	report, err := cleanup.Run(opts)
	if err != nil {
		_, _ = fmt.Fprintf(errOut, "ERROR: %v\n", err)
		return 1
	}
	if len(report.Failed) > 0 {
		return 1
	}
	return 0
}
