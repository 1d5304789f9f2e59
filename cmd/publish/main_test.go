package main

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestPublishCommitsBuiltSite(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	t.Chdir(t.TempDir())
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("hi"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	var out, errOut bytes.Buffer
	if code := runCLI([]string{"--dir", dir, "--remote", "", "--user", "tester"}, &out, &errOut); code != 0 {
		t.Fatalf("expected exit code 0, got %d (%s)", code, errOut.String())
	}
	if !strings.Contains(out.String(), "Committed") {
		t.Fatalf("unexpected output %q", out.String())
	}

	out.Reset()
	if code := runCLI([]string{"--dir", dir, "--remote", ""}, &out, &errOut); code != 0 {
		t.Fatalf("expected exit code 0, got %d (%s)", code, errOut.String())
	}
	if strings.TrimSpace(out.String()) != "Nothing to publish." {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestPublishRequiresBuild(t *testing.T) {
	t.Chdir(t.TempDir())
	var out, errOut bytes.Buffer
	if code := runCLI([]string{"--dir", filepath.Join(t.TempDir(), "missing")}, &out, &errOut); code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if !strings.Contains(errOut.String(), "has no built site") {
		t.Fatalf("unexpected error output %q", errOut.String())
	}
}

func TestPublishUsage(t *testing.T) {
	t.Chdir(t.TempDir())
	var out, errOut bytes.Buffer
	if code := runCLI([]string{"extra"}, &out, &errOut); code != 2 {
		t.Fatalf("expected exit code 2, got %d", code)
	}
}
