package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"moire/internal/config"
	"moire/internal/index"
	"moire/internal/logging"
	"moire/internal/memo"
	"moire/internal/site"
)

type runOptions struct {
	Content string
	Out     string
	Base    string
	NoCache bool
}

func main() {
	_, closeLog := logging.Setup(logging.OptionsFromEnv())
	defer closeLog()
	os.Exit(runCLI(os.Args[1:], os.Stdout, os.Stderr))
}

func runCLI(args []string, out io.Writer, errOut io.Writer) int {
	cfg := config.Load()
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	fs.SetOutput(errOut)

	opts := runOptions{Content: cfg.ContentPath, Out: cfg.OutPath, Base: cfg.BasePath, NoCache: !cfg.Cache}
	fs.StringVar(&opts.Content, "content", opts.Content, "memo content directory (defaults to $MOIRE_CONTENT_PATH or ./memos)")
	fs.StringVar(&opts.Out, "out", opts.Out, "output directory (defaults to $MOIRE_OUT_PATH or ./build)")
	fs.StringVar(&opts.Base, "base", opts.Base, "base path the site is published under")
	fs.BoolVar(&opts.NoCache, "no-cache", opts.NoCache, "render every memo without the sqlite cache")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 0 {
		_, _ = fmt.Fprintln(errOut, "usage: build [--content <dir>] [--out <dir>] [--base <path>] [--no-cache]")
		return 2
	}
	cfg.ContentPath = opts.Content
	cfg.OutPath = opts.Out
	cfg.BasePath = config.NormalizeBasePath(opts.Base)
	cfg.Cache = !opts.NoCache

	manifest, err := build(context.Background(), cfg)
	if err != nil {
		_, _ = fmt.Fprintf(errOut, "ERROR: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(out, "Built %d memo(s) and %d asset(s) into %s\n", manifest.Memos, manifest.Assets, cfg.OutPath)
	return 0
}

func build(ctx context.Context, cfg config.Config) (site.Manifest, error) {
	renderer := memo.NewRenderer(cfg.CodeStyle)
	loader := &site.Loader{
		ContentPath: cfg.ContentPath,
		BasePath:    cfg.BasePath,
		Renderer:    renderer,
		Location:    cfg.Location(),
		Logger:      slog.Default(),
	}
	if cfg.Cache {
		idx, err := index.OpenDir(ctx, cfg.DataPath)
		if err != nil {
			slog.Warn("render cache disabled", "err", err)
		} else {
			defer idx.Close()
			loader.Cache = idx
		}
	}
	content, err := loader.Load(ctx)
	if err != nil {
		return site.Manifest{}, err
	}
	builder := &site.Builder{
		OutPath:   cfg.OutPath,
		Site:      cfg.Site,
		BasePath:  cfg.BasePath,
		Templates: site.MustParseTemplates(),
		Renderer:  renderer,
		Logger:    slog.Default(),
	}
	return builder.Build(ctx, content)
}
