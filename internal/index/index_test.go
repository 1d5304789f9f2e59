package index

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"moire/internal/memo"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := Open(filepath.Join(t.TempDir(), "cache.sqlite"))
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	if err := idx.Init(context.Background()); err != nil {
		t.Fatalf("init index: %v", err)
	}
	return idx
}

func TestStoreAndLookup(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()
	m := memo.Memo{
		Slug:    "20240115093000",
		Path:    "2024/20240115093000.md",
		Content: "<p>hello</p>",
		Date:    time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC),
		Tags:    []string{"morning", "coffee"},
	}
	if err := idx.StoreMemo(ctx, m, "key-1"); err != nil {
		t.Fatalf("store: %v", err)
	}
	html, ok, err := idx.CachedHTML(ctx, "key-1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !ok || html != "<p>hello</p>" {
		t.Fatalf("expected cached html, got %q (ok=%v)", html, ok)
	}
	if _, ok, _ := idx.CachedHTML(ctx, "key-2"); ok {
		t.Fatalf("expected miss for unknown key")
	}

	m.Content = "<p>changed</p>"
	m.Tags = []string{"coffee"}
	if err := idx.StoreMemo(ctx, m, "key-2"); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if _, ok, _ := idx.CachedHTML(ctx, "key-1"); ok {
		t.Fatalf("expected old key to be replaced")
	}
	tags, err := idx.ListTags(ctx, 10)
	if err != nil {
		t.Fatalf("list tags: %v", err)
	}
	counts := map[string]int{}
	for _, tag := range tags {
		counts[tag.Name] = tag.Count
	}
	if counts["coffee"] != 1 || counts["morning"] != 0 {
		t.Fatalf("unexpected tag counts %v", counts)
	}
}

func TestPruneMemos(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()
	for _, p := range []string{"a.md", "b.md", "c.md"} {
		m := memo.Memo{Slug: strings.TrimSuffix(p, ".md"), Path: p, Content: p, Date: time.Now(), Tags: []string{"t-" + p}}
		if err := idx.StoreMemo(ctx, m, "key-"+p); err != nil {
			t.Fatalf("store %s: %v", p, err)
		}
	}
	removed, err := idx.PruneMemos(ctx, []string{"b.md"})
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	list, err := idx.DumpMemoList(ctx)
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	if len(list) != 1 || list[0].Path != "b.md" {
		t.Fatalf("expected only b.md, got %+v", list)
	}
	tags, err := idx.ListTags(ctx, 10)
	if err != nil {
		t.Fatalf("list tags: %v", err)
	}
	if len(tags) != 1 || tags[0].Name != "t-b.md" {
		t.Fatalf("expected orphan tags removed, got %+v", tags)
	}
	dump, err := idx.DebugDump(ctx)
	if err != nil {
		t.Fatalf("debug dump: %v", err)
	}
	if !strings.HasPrefix(dump, "b.md\tb\t") {
		t.Fatalf("unexpected dump %q", dump)
	}
}

func TestBuildVersionScopesKeys(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()
	t.Cleanup(func() { SetBuildVersion("") })

	SetBuildVersion("v1")
	m := memo.Memo{Slug: "a", Path: "a.md", Content: "<p>a</p>", Date: time.Now()}
	if err := idx.StoreMemo(ctx, m, "k"); err != nil {
		t.Fatalf("store: %v", err)
	}
	SetBuildVersion("v2")
	if _, ok, _ := idx.CachedHTML(ctx, "k"); ok {
		t.Fatalf("expected miss after version change")
	}
}

func TestLoadWithIndexCache(t *testing.T) {
	idx := openTestIndex(t)
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "20240101000000.md"), []byte("hello #x\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	ctx := context.Background()
	for n := 0; n < 2; n++ {
		repo, err := memo.Load(ctx, memo.Options{Root: root, Cache: idx})
		if err != nil {
			t.Fatalf("load %d: %v", n, err)
		}
		if repo.Len() != 1 {
			t.Fatalf("expected 1 memo, got %d", repo.Len())
		}
	}
	list, err := idx.DumpMemoList(ctx)
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	if len(list) != 1 || list[0].Slug != "20240101000000" {
		t.Fatalf("expected cached memo row, got %+v", list)
	}
}

func TestOpenDirCreatesDataPath(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	idx, err := OpenDir(context.Background(), dir)
	if err != nil {
		t.Fatalf("open dir: %v", err)
	}
	defer idx.Close()
	if _, err := os.Stat(filepath.Join(dir, FileName)); err != nil {
		t.Fatalf("expected cache file, got %v", err)
	}
	tags, err := idx.ListTags(context.Background(), 0)
	if err != nil || len(tags) != 0 {
		t.Fatalf("expected empty tags, got %v (%v)", tags, err)
	}
}
