package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, root, rel, body string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestCleanupImagesRemovesUnused(t *testing.T) {
	t.Chdir(t.TempDir())
	root := t.TempDir()
	writeFile(t, root, "images/keep.png", "x")
	writeFile(t, root, "images/drop.png", "x")
	writeFile(t, root, "2024/20240101000000.md", "![k](../images/keep.png)")

	var out, errOut bytes.Buffer
	if code := runCLI([]string{"--content", root, "--dry-run"}, &out, &errOut); code != 0 {
		t.Fatalf("expected exit code 0, got %d (%s)", code, errOut.String())
	}
	if !strings.Contains(out.String(), "Found 1 unused image(s):") {
		t.Fatalf("unexpected dry-run output %q", out.String())
	}
	if _, err := os.Stat(filepath.Join(root, "images", "drop.png")); err != nil {
		t.Fatalf("expected dry run to keep file: %v", err)
	}

	out.Reset()
	if code := runCLI([]string{"--content", root}, &out, &errOut); code != 0 {
		t.Fatalf("expected exit code 0, got %d (%s)", code, errOut.String())
	}
	if _, err := os.Stat(filepath.Join(root, "images", "drop.png")); !os.IsNotExist(err) {
		t.Fatalf("expected drop.png removed")
	}
	if _, err := os.Stat(filepath.Join(root, "images", "keep.png")); err != nil {
		t.Fatalf("expected keep.png kept: %v", err)
	}
}

func TestCleanupImagesSkipsWithoutImages(t *testing.T) {
	t.Chdir(t.TempDir())
	var out, errOut bytes.Buffer
	if code := runCLI([]string{"--content", t.TempDir()}, &out, &errOut); code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
	if !strings.Contains(out.String(), "Images directory does not exist. Skipping cleanup.") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestCleanupImagesUsage(t *testing.T) {
	t.Chdir(t.TempDir())
	var out, errOut bytes.Buffer
	if code := runCLI([]string{"extra"}, &out, &errOut); code != 2 {
		t.Fatalf("expected exit code 2, got %d", code)
	}
}
