package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"moire/internal/config"
	"moire/internal/index"
)

func main() {
	os.Exit(runCLI(os.Args[1:], os.Stdout, os.Stderr))
}

func usage(errOut io.Writer) {
	_, _ = fmt.Fprintln(errOut, "usage: cache [--data <dir>] [--limit N] tags|memos|clear")
}

func runCLI(args []string, out io.Writer, errOut io.Writer) int {
	cfg := config.Load()
	fs := flag.NewFlagSet("cache", flag.ContinueOnError)
	fs.SetOutput(errOut)
	dataPath := fs.String("data", cfg.DataPath, "cache directory (defaults to $MOIRE_DATA_PATH or ./.moire)")
	limit := fs.Int("limit", 100, "maximum tags to list")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		usage(errOut)
		return 2
	}

	ctx := context.Background()
	cmd := fs.Arg(0)
	if cmd == "clear" {
		if err := os.Remove(filepath.Join(*dataPath, index.FileName)); err != nil && !os.IsNotExist(err) {
			_, _ = fmt.Fprintf(errOut, "ERROR: %v\n", err)
			return 1
		}
		for _, suffix := range []string{"-wal", "-shm"} {
			_ = os.Remove(filepath.Join(*dataPath, index.FileName+suffix))
		}
		_, _ = fmt.Fprintln(out, "cache cleared")
		return 0
	}
	if cmd != "tags" && cmd != "memos" {
		usage(errOut)
		return 2
	}

	idx, err := index.OpenDir(ctx, *dataPath)
	if err != nil {
		_, _ = fmt.Fprintf(errOut, "ERROR: %v\n", err)
		return 1
	}
	defer idx.Close()

	switch cmd {
	case "tags":
		tags, err := idx.ListTags(ctx, *limit)
		if err != nil {
			_, _ = fmt.Fprintf(errOut, "ERROR: %v\n", err)
			return 1
		}
		for _, t := range tags {
			_, _ = fmt.Fprintf(out, "%s\t%d\n", t.Name, t.Count)
		}
	case "memos":
		dump, err := idx.DebugDump(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(errOut, "ERROR: %v\n", err)
			return 1
		}
		_, _ = io.WriteString(out, dump)
	}
	return 0
}
