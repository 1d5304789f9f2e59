package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeMemo(t *testing.T, root, rel, body string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte(body), 0o644); err != nil {
		t.Fatalf("write memo: %v", err)
	}
}

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	for _, key := range []string{"MOIRE_BASE_PATH", "MOIRE_CONTENT_PATH", "MOIRE_OUT_PATH", "MOIRE_DATA_PATH", "GITHUB_ACTIONS"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	return dir
}

func TestBuildWritesSite(t *testing.T) {
	dir := isolate(t)
	content := filepath.Join(dir, "memos")
	out := filepath.Join(dir, "public")
	writeMemo(t, content, "2024/20240115093000.md", "Morning #coffee\n\n![cup](../images/cup.png)")
	writeMemo(t, content, "images/cup.png", "png")

	var stdout, stderr bytes.Buffer
	code := runCLI([]string{"--content", content, "--out", out, "--base", "blog"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d (%s)", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "Built 1 memo(s) and 1 asset(s)") {
		t.Fatalf("unexpected output %q", stdout.String())
	}
	for _, rel := range []string{"index.html", "m/20240115093000/index.html", "404.html", "sitemap.xml", "robots.txt", "memos.json", "theme.css", "assets/cup.png", "manifest.json"} {
		if _, err := os.Stat(filepath.Join(out, filepath.FromSlash(rel))); err != nil {
			t.Fatalf("expected %s: %v", rel, err)
		}
	}
	page, err := os.ReadFile(filepath.Join(out, "m", "20240115093000", "index.html"))
	if err != nil {
		t.Fatalf("read memo page: %v", err)
	}
	if !strings.Contains(string(page), "/blog/assets/cup.") {
		t.Fatalf("expected base-prefixed asset url in memo page")
	}
	if _, err := os.Stat(filepath.Join(dir, ".moire", "cache.sqlite")); err != nil {
		t.Fatalf("expected render cache: %v", err)
	}
}

func TestBuildMissingContent(t *testing.T) {
	dir := isolate(t)
	var stdout, stderr bytes.Buffer
	code := runCLI([]string{"--content", filepath.Join(dir, "missing"), "--out", filepath.Join(dir, "out"), "--no-cache"}, &stdout, &stderr)
	if code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if !strings.HasPrefix(stderr.String(), "ERROR: ") {
		t.Fatalf("expected error output, got %q", stderr.String())
	}
}

func TestBuildUsage(t *testing.T) {
	isolate(t)
	var stdout, stderr bytes.Buffer
	if code := runCLI([]string{"extra"}, &stdout, &stderr); code != 2 {
		t.Fatalf("expected exit code 2, got %d", code)
	}
}
