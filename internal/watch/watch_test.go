package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func startWatcher(t *testing.T, root string, calls *atomic.Int32) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	w := &Watcher{
		Root:     root,
		Debounce: 100 * time.Millisecond,
		OnChange: func(context.Context) error {
			calls.Add(1)
			return nil
		},
	}
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("run: %v", err)
		}
	})
	// fsnotify registration happens inside Run.
	time.Sleep(100 * time.Millisecond)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWatcherCoalescesBurst(t *testing.T) {
	root := t.TempDir()
	var calls atomic.Int32
	startWatcher(t, root, &calls)

	for _, name := range []string{"20240101000000.md", "20240102000000.md", "cup.png"} {
		if err := os.WriteFile(filepath.Join(root, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	waitFor(t, func() bool { return calls.Load() >= 1 })
	time.Sleep(300 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected 1 coalesced reload, got %d", got)
	}
}

func TestWatcherIgnoresUnrelatedFiles(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, ".git"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	var calls atomic.Int32
	startWatcher(t, root, &calls)

	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, ".draft.md"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	time.Sleep(400 * time.Millisecond)
	if got := calls.Load(); got != 0 {
		t.Fatalf("expected no reload, got %d", got)
	}
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	root := t.TempDir()
	var calls atomic.Int32
	startWatcher(t, root, &calls)

	sub := filepath.Join(root, "2024")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	waitFor(t, func() bool { return calls.Load() >= 1 })
	before := calls.Load()
	time.Sleep(150 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(sub, "20240105000000.md"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitFor(t, func() bool { return calls.Load() > before })
}

func TestIsHidden(t *testing.T) {
	cases := map[string]bool{
		"/r/a.md":        false,
		"/r/.git/config": true,
		"/r/x/.tmp.md":   true,
		"/r/x/y.md":      false,
	}
	for p, want := range cases {
		if got := isHidden("/r", p); got != want {
			t.Fatalf("isHidden(%q): expected %v, got %v", p, want, got)
		}
	}
}
