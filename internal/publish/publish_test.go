package publish

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
}

func writeSite(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for rel, body := range files {
		full := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(full, []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
}

func gitOutput(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v: %v (%s)", args, err, out)
	}
	return strings.TrimSpace(string(out))
}

func TestRunCommitsAndPushes(t *testing.T) {
	requireGit(t)
	site := t.TempDir()
	remote := t.TempDir()
	gitOutput(t, remote, "init", "--bare", "--quiet")
	writeSite(t, site, map[string]string{
		"index.html":     "<h1>hi</h1>",
		"m/a/index.html": "a",
		".build.lock":    "",
	})

	res, err := Run(context.Background(), Options{Dir: site, Remote: remote, Message: "publish test", Exclude: []string{".build.lock"}})
	if err != nil {
		t.Fatalf("publish: %v\n%s", err, res.Output)
	}
	if !res.Committed || !res.Pushed {
		t.Fatalf("expected commit and push, got %+v", res)
	}
	if !strings.Contains(res.Output, "$ git push --force") {
		t.Fatalf("expected push in transcript, got %q", res.Output)
	}
	files := gitOutput(t, remote, "ls-tree", "-r", "--name-only", DefaultBranch)
	for _, want := range []string{"index.html", "m/a/index.html", ".nojekyll"} {
		if !strings.Contains(files, want) {
			t.Fatalf("expected %s published, got %q", want, files)
		}
	}
	if strings.Contains(files, ".build.lock") {
		t.Fatalf("expected lock file excluded, got %q", files)
	}
	if msg := gitOutput(t, remote, "log", "-1", "--format=%s", DefaultBranch); msg != "publish test" {
		t.Fatalf("expected commit message, got %q", msg)
	}
	if _, err := os.Stat(filepath.Join(site, ".git", "publish.log")); err != nil {
		t.Fatalf("expected publish log: %v", err)
	}
}

func TestRunWithoutChangesSkipsCommit(t *testing.T) {
	requireGit(t)
	site := t.TempDir()
	writeSite(t, site, map[string]string{"index.html": "x"})

	if _, err := Run(context.Background(), Options{Dir: site}); err != nil {
		t.Fatalf("first publish: %v", err)
	}
	res, err := Run(context.Background(), Options{Dir: site})
	if err != nil {
		t.Fatalf("second publish: %v", err)
	}
	if res.Committed || res.Pushed {
		t.Fatalf("expected no commit and no push, got %+v", res)
	}
	if !strings.Contains(res.Output, "publish: no changes") {
		t.Fatalf("expected no-change note, got %q", res.Output)
	}
	if n := gitOutput(t, site, "rev-list", "--count", "HEAD"); n != "1" {
		t.Fatalf("expected one commit, got %s", n)
	}
}

func TestRunMissingDir(t *testing.T) {
	if _, err := Run(context.Background(), Options{Dir: filepath.Join(t.TempDir(), "missing")}); err == nil {
		t.Fatalf("expected error for missing dir")
	}
}

func TestTrimLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log")
	writeSite(t, filepath.Dir(path), map[string]string{"log": "1\n2\n3\n4\n"})
	if err := trimLogFile(path, 2); err != nil {
		t.Fatalf("trim: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "3\n4\n" {
		t.Fatalf("expected last two lines, got %q", data)
	}
}

func TestAcquireBusy(t *testing.T) {
	unlock, err := Acquire(0)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer unlock()
	if _, err := Acquire(1); err != ErrPublishBusy {
		t.Fatalf("expected ErrPublishBusy, got %v", err)
	}
}
