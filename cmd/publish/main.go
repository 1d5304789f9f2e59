package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"moire/internal/config"
	"moire/internal/publish"
	"moire/internal/site"
	mfs "moire/internal/storage/fs"
)

func main() {
	os.Exit(runCLI(os.Args[1:], os.Stdout, os.Stderr))
}

func runCLI(args []string, out io.Writer, errOut io.Writer) int {
	cfg := config.Load()
	fs := flag.NewFlagSet("publish", flag.ContinueOnError)
	fs.SetOutput(errOut)

	opts := publish.Options{Exclude: []string{site.BuildLockName}}
	fs.StringVar(&opts.Dir, "dir", cfg.OutPath, "built site directory (defaults to $MOIRE_OUT_PATH or ./build)")
	fs.StringVar(&opts.Remote, "remote", cfg.PublishRemote, "git remote URL or name to push to (empty commits only)")
	fs.StringVar(&opts.Branch, "branch", cfg.PublishBranch, "branch the site is pushed to")
	fs.StringVar(&opts.Message, "message", "", "commit message")
	fs.StringVar(&opts.UserName, "user", cfg.Site.Author, "commit author name")
	verbose := fs.Bool("verbose", false, "print the git transcript")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 0 {
		_, _ = fmt.Fprintln(errOut, "usage: publish [--dir <path>] [--remote <url>] [--branch <name>] [--message <msg>] [--user <name>] [--verbose]")
		return 2
	}

	if _, err := os.Stat(filepath.Join(opts.Dir, "index.html")); err != nil {
		_, _ = fmt.Fprintf(errOut, "ERROR: %s has no built site: %v\n", opts.Dir, err)
		return 1
	}
	lockCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	lock, err := mfs.LockOutput(lockCtx, filepath.Join(opts.Dir, site.BuildLockName))
	if err != nil {
		_, _ = fmt.Fprintf(errOut, "ERROR: acquire build lock: %v\n", err)
		return 1
	}
	defer lock.Release()

	res, err := publish.Run(context.Background(), opts)
	if *verbose || err != nil {
		_, _ = io.WriteString(out, res.Output)
	}
	if err != nil {
		_, _ = fmt.Fprintf(errOut, "ERROR: %v\n", err)
		return 1
	}
	switch {
	case res.Pushed:
		_, _ = fmt.Fprintf(out, "Published %s to %s\n", opts.Dir, opts.Branch)
	case res.Committed:
		_, _ = fmt.Fprintf(out, "Committed %s on %s (no remote)\n", opts.Dir, opts.Branch)
	default:
		_, _ = fmt.Fprintln(out, "Nothing to publish.")
	}
	return 0
}
