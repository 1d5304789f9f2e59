package site

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"moire/internal/config"
	"moire/internal/feed"
	"moire/internal/memo"
	mfs "moire/internal/storage/fs"
)

const (
	BuildLockName  = ".build.lock"
	FeedScriptName = "feed.js"
)

// feedScript pages and filters the static index over memos.json.
//
//go:embed scripts/feed.js
var feedScript []byte

// Manifest describes one static build.
type Manifest struct {
	BuildID   string    `json:"build_id"`
	Generated time.Time `json:"generated"`
	Memos     int       `json:"memos"`
	Assets    int       `json:"assets"`
	Theme     string    `json:"theme"`
	BasePath  string    `json:"base_path"`
}

// Builder writes the static site into OutPath.
type Builder struct {
	OutPath   string
	Site      config.Site
	BasePath  string
	Templates *Templates
	Renderer  *memo.Renderer
	// LockTimeout bounds the wait for the output lock. Zero means 30s; a
	// negative value waits until ctx is done.
	LockTimeout time.Duration
	Now         func() time.Time
	Logger      *slog.Logger
}

func (b *Builder) Build(ctx context.Context, content *Content) (Manifest, error) {
	logger := b.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	lockTimeout := b.LockTimeout
	if lockTimeout == 0 {
		lockTimeout = 30 * time.Second
	}

	if err := os.MkdirAll(b.OutPath, 0o755); err != nil {
		return Manifest{}, err
	}
	lockCtx := ctx
	if lockTimeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, lockTimeout)
		defer cancel()
	}
	lock, err := mfs.LockOutput(lockCtx, filepath.Join(b.OutPath, BuildLockName))
	if err != nil {
		return Manifest{}, fmt.Errorf("acquire build lock: %w", err)
	}
	defer lock.Release()

	out := &outputWriter{root: b.OutPath}
	memos := content.Repo.ListAll()
	list := feed.New(memos, feed.Config{PageSize: b.Site.PageSize, PreviewCharacterLimit: b.Site.PreviewCharacterLimit})

	index, err := b.Templates.RenderBytes(FeedPage(b.Site, b.BasePath, list, true))
	if err != nil {
		return Manifest{}, err
	}
	if err := out.write("index.html", index); err != nil {
		return Manifest{}, err
	}
	for _, m := range memos {
		if err := ctx.Err(); err != nil {
			return Manifest{}, err
		}
		rel, err := memoPagePath(m.Slug)
		if err != nil {
			return Manifest{}, err
		}
		page, err := b.Templates.RenderBytes(MemoPage(b.Site, b.BasePath, m, true))
		if err != nil {
			return Manifest{}, err
		}
		if err := out.write(rel, page); err != nil {
			return Manifest{}, fmt.Errorf("write memo %s: %w", m.Slug, err)
		}
	}
	keep := make(map[string]bool, len(memos))
	for _, m := range memos {
		keep[m.Slug] = true
	}
	removed, err := pruneMemoPages(filepath.Join(b.OutPath, "m"), keep)
	if err != nil {
		return Manifest{}, err
	}
	notFound, err := b.Templates.RenderBytes(NotFoundPage(b.Site, b.BasePath, true))
	if err != nil {
		return Manifest{}, err
	}
	if err := out.write("404.html", notFound); err != nil {
		return Manifest{}, err
	}
	if err := out.write("sitemap.xml", []byte(BuildSitemap(b.Site.URL, memos))); err != nil {
		return Manifest{}, err
	}
	if err := out.write("robots.txt", []byte(BuildRobots(b.Site.URL))); err != nil {
		return Manifest{}, err
	}
	data, err := MemosJSON(memos)
	if err != nil {
		return Manifest{}, err
	}
	if err := out.write("memos.json", data); err != nil {
		return Manifest{}, err
	}
	if err := out.write(FeedScriptName, feedScript); err != nil {
		return Manifest{}, err
	}
	css, err := ThemeCSS(b.Site.Theme, b.Renderer)
	if err != nil {
		return Manifest{}, err
	}
	if err := out.write("theme.css", css); err != nil {
		return Manifest{}, err
	}
	copied := 0
	if content.Assets != nil {
		if copied, err = content.Assets.CopyTo(filepath.Join(b.OutPath, "assets")); err != nil {
			return Manifest{}, err
		}
	}

	manifest := Manifest{
		BuildID:   uuid.NewString(),
		Generated: now().UTC(),
		Memos:     len(memos),
		Assets:    copied,
		Theme:     b.Site.Theme,
		BasePath:  b.BasePath,
	}
	raw, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return Manifest{}, err
	}
	if err := out.write("manifest.json", raw); err != nil {
		return Manifest{}, err
	}
	logger.Info("site built",
		"out", b.OutPath,
		"memos", manifest.Memos,
		"assets", copied,
		"written", out.written,
		"unchanged", out.unchanged,
		"removed", removed,
		"build_id", manifest.BuildID,
	)
	return manifest, nil
}

// memoPagePath rejects slugs that would not stay one directory below m/.
func memoPagePath(slug string) (string, error) {
	if slug == "" || slug == "." || slug == ".." || strings.ContainsAny(slug, `/\`) {
		return "", fmt.Errorf("memo slug %q: %w", slug, mfs.ErrUnsafePath)
	}
	return "m/" + slug + "/index.html", nil
}

// outputWriter counts files written and files left as they were.
type outputWriter struct {
	root      string
	written   int
	unchanged int
}

func (w *outputWriter) write(rel string, data []byte) error {
	full, err := mfs.OutputPath(w.root, rel)
	if err != nil {
		return fmt.Errorf("%s: %w", rel, err)
	}
	wrote, err := mfs.WriteIfChanged(full, data, 0o644)
	if err != nil {
		return err
	}
	if wrote {
		w.written++
	} else {
		w.unchanged++
	}
	return nil
}

// pruneMemoPages removes memo page directories whose slug is not in keep.
func pruneMemoPages(dir string, keep map[string]bool) (int, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, e := range entries {
		if !e.IsDir() || keep[e.Name()] {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return removed, fmt.Errorf("remove stale page %s: %w", e.Name(), err)
		}
		removed++
	}
	return removed, nil
}
