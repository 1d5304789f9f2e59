package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"moire/internal/config"
	"moire/internal/index"
	"moire/internal/logging"
	"moire/internal/memo"
	"moire/internal/site"
	"moire/internal/watch"
	"moire/internal/web"
)

func main() {
	_, closeLog := logging.Setup(logging.OptionsFromEnv())
	defer closeLog()

	cfg, code := parseFlags(config.Load(), os.Args[1:], os.Stderr)
	if code >= 0 {
		os.Exit(code)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := serve(ctx, cfg); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}

// parseFlags applies command-line overrides. A non-negative code means the
// process should exit with it.
func parseFlags(cfg config.Config, args []string, errOut io.Writer) (config.Config, int) {
	fs := flag.NewFlagSet("moire", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.StringVar(&cfg.ContentPath, "content", cfg.ContentPath, "memo content directory")
	fs.StringVar(&cfg.ListenAddr, "addr", cfg.ListenAddr, "listen address")
	fs.StringVar(&cfg.DataPath, "data", cfg.DataPath, "cache directory")
	fs.BoolVar(&cfg.Watch, "watch", cfg.Watch, "reload when content changes")
	fs.BoolVar(&cfg.Cache, "cache", cfg.Cache, "keep rendered memos in the sqlite cache")
	base := fs.String("base", cfg.BasePath, "base path the site is served under")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return cfg, 0
		}
		return cfg, 2
	}
	if fs.NArg() != 0 {
		_, _ = fmt.Fprintln(errOut, "usage: moire [--content <dir>] [--addr <host:port>] [--data <dir>] [--base <path>] [--watch] [--cache]")
		return cfg, 2
	}
	cfg.BasePath = config.NormalizeBasePath(*base)
	return cfg, -1
}

func serve(ctx context.Context, cfg config.Config) error {
	version := strings.TrimSpace(web.BuildVersion)
	if version == "" {
		version = "dev"
	}
	slog.Info("startup", "build_version", version, "content", cfg.ContentPath, "base_path", cfg.BasePath)
	index.SetBuildVersion(web.BuildVersion)

	loader := &site.Loader{
		ContentPath: cfg.ContentPath,
		BasePath:    cfg.BasePath,
		Renderer:    memo.NewRenderer(cfg.CodeStyle),
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

	srv, err := web.NewServer(cfg, loader)
	if err != nil {
		return fmt.Errorf("init server: %w", err)
	}
	if err := srv.Reload(ctx); err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("listening", "addr", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	if cfg.Watch {
		w := &watch.Watcher{
			Root:     cfg.ContentPath,
			Debounce: cfg.WatchDebounce,
			OnChange: srv.Reload,
			Logger:   slog.Default(),
		}
		g.Go(func() error {
			if err := w.Run(gctx); err != nil {
				slog.Warn("watcher stopped", "err", err)
			}
			return nil
		})
	}
	return g.Wait()
}
