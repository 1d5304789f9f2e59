package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"

	"moire/internal/config"
	"moire/internal/feed"
	"moire/internal/logging"
	"moire/internal/memo"
	"moire/internal/site"
	"moire/internal/tui"
)

func main() {
	// The terminal belongs to the browser; logs go to stderr at warn.
	opts := logging.OptionsFromEnv()
	opts.Out = os.Stderr
	if opts.Level == "" {
		opts.Level = "warn"
	}
	_, closeLog := logging.Setup(opts)
	defer closeLog()
	os.Exit(runCLI(os.Args[1:], os.Stdout, os.Stderr))
}

func runCLI(args []string, out io.Writer, errOut io.Writer) int {
	cfg := config.Load()
	fs := flag.NewFlagSet("browse", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.StringVar(&cfg.ContentPath, "content", cfg.ContentPath, "memo content directory")
	tag := fs.String("tag", "", "start with this tag selected")
	query := fs.String("q", "", "start with this search query")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 0 {
		_, _ = fmt.Fprintln(errOut, "usage: browse [--content <dir>] [--tag <tag>] [--q <query>]")
		return 2
	}

	list, err := loadFeed(context.Background(), cfg, feed.State{Tag: *tag, Query: *query})
	if err != nil {
		_, _ = fmt.Fprintf(errOut, "ERROR: %v\n", err)
		return 1
	}
	if f, ok := out.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		printPlain(out, list)
		return 0
	}
	if err := tui.Run(list, cfg.Site.Title); err != nil {
		_, _ = fmt.Fprintf(errOut, "ERROR: %v\n", err)
		return 1
	}
	return 0
}

func loadFeed(ctx context.Context, cfg config.Config, state feed.State) (*feed.List, error) {
	loader := &site.Loader{
		ContentPath: cfg.ContentPath,
		Renderer:    memo.NewRenderer(cfg.CodeStyle),
		Location:    cfg.Location(),
		Logger:      slog.Default(),
	}
	content, err := loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	list := feed.New(content.Repo.ListAll(), feed.Config{
		PageSize:              cfg.Site.PageSize,
		PreviewCharacterLimit: cfg.Site.PreviewCharacterLimit,
	})
	list.ApplyQuery(feed.StateToQuery(state))
	return list, nil
}

// printPlain lists the visible memos when stdout is not a terminal.
func printPlain(out io.Writer, list *feed.List) {
	for _, group := range list.Grouped() {
		_, _ = fmt.Fprintf(out, "== %s\n", group.Day)
		for _, m := range group.Memos {
			_, _ = fmt.Fprintf(out, "%s %s\n", m.Slug, feed.PlainText(m.Content))
		}
	}
	if list.HasMore() {
		_, _ = fmt.Fprintf(out, "... %d more\n", len(list.Filtered())-len(list.Visible()))
	}
}
