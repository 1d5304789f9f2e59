// Package watch reloads content when memo files or images change on disk.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"moire/internal/assets"
	"moire/internal/memo"
)

// Watcher coalesces bursts of filesystem events under Root into one
// OnChange call after Debounce of quiet.
type Watcher struct {
	Root     string
	Debounce time.Duration
	OnChange func(ctx context.Context) error
	Logger   *slog.Logger

	watcher *fsnotify.Watcher
	mu      sync.Mutex
	timer   *time.Timer
}

func (w *Watcher) Run(ctx context.Context) error {
	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if w.Debounce <= 0 {
		w.Debounce = 300 * time.Millisecond
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	w.watcher = fw
	defer fw.Close()

	if err := w.addRecursive(w.Root); err != nil {
		return fmt.Errorf("watch %s: %w", w.Root, err)
	}
	logger.Info("watching content", "path", w.Root, "debounce", w.Debounce.String())

	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if w.relevant(event) {
				logger.Debug("content changed", "path", event.Name, "op", event.Op.String())
				w.schedule(ctx, logger)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", "err", err)
		}
	}
}

// relevant also starts watching directories created after Run began.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if isHidden(w.Root, event.Name) {
		return false
	}
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.addRecursive(event.Name)
			return true
		}
	}
	if event.Op == fsnotify.Chmod {
		return false
	}
	name := filepath.Base(event.Name)
	if memo.IsMemoFile(name) || assets.IsImage(name) {
		return true
	}
	// A removed or renamed directory reports its own name.
	return event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename)
}

func (w *Watcher) schedule(ctx context.Context, logger *slog.Logger) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.Debounce, func() {
		if ctx.Err() != nil {
			return
		}
		if err := w.OnChange(ctx); err != nil {
			logger.Warn("reload after change failed", "err", err)
		}
	})
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.watcher.Add(p)
	})
}

func isHidden(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return true
		}
	}
	return false
}
