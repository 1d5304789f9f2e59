// Package publish commits a built site into a git repository that lives in
// the output directory and pushes it to a pages branch.
package publish

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

var ErrPublishBusy = errors.New("publish already in progress")
var publishLock = make(chan struct{}, 1)

const (
	DefaultBranch = "gh-pages"
	maxLogLines   = 1000
)

type Options struct {
	Dir      string
	Remote   string
	Branch   string
	Message  string
	UserName string
	Email    string
	LogFile  string
	// Exclude lists paths kept out of the published tree.
	Exclude []string
}

type Result struct {
	Committed bool
	Pushed    bool
	Output    string
}

// Acquire serializes publishes within the process.
func Acquire(timeout time.Duration) (func(), error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case publishLock <- struct{}{}:
		return func() { <-publishLock }, nil
	case <-timer.C:
		return nil, ErrPublishBusy
	}
}

// Run stages everything under opts.Dir, commits when something changed and
// force-pushes the branch when a remote is set. The transcript of every git
// command is returned in Result.Output and appended to the log file.
func Run(ctx context.Context, opts Options) (result Result, err error) {
	opts = resolveOptions(opts)

	info, err := os.Stat(opts.Dir)
	if err != nil {
		return result, fmt.Errorf("publish: %w", err)
	}
	if !info.IsDir() {
		return result, fmt.Errorf("publish: %s is not a directory", opts.Dir)
	}

	unlock, err := Acquire(10 * time.Second)
	if err != nil {
		return result, err
	}
	defer unlock()

	var output bytes.Buffer
	defer func() {
		result.Output = output.String()
		appendLog(opts.Dir, opts.LogFile, output.Bytes())
	}()
	writeLine := func(format string, args ...any) {
		_, _ = fmt.Fprintf(&output, format, args...)
		_, _ = fmt.Fprintln(&output)
	}
	env := append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	git := func(args ...string) (string, error) {
		return runGitCommand(ctx, opts.Dir, env, &output, "git", args...)
	}

	writeLine("publish: start %s", time.Now().Format(time.RFC3339))
	if _, statErr := os.Stat(filepath.Join(opts.Dir, ".git")); statErr != nil {
		if _, err := git("init", "--quiet"); err != nil {
			return result, fmt.Errorf("git init: %w", err)
		}
	}
	if _, err := git("symbolic-ref", "HEAD", "refs/heads/"+opts.Branch); err != nil {
		return result, fmt.Errorf("select branch %s: %w", opts.Branch, err)
	}
	if err := writeExcludes(opts.Dir, opts.Exclude); err != nil {
		return result, err
	}
	if err := os.WriteFile(filepath.Join(opts.Dir, ".nojekyll"), nil, 0o644); err != nil {
		return result, err
	}
	if ok, _ := gitConfigLocalDefined(ctx, opts.Dir, env, &output, "user.name"); !ok {
		_, _ = git("config", "--local", "user.name", opts.UserName)
	}
	if ok, _ := gitConfigLocalDefined(ctx, opts.Dir, env, &output, "user.email"); !ok {
		_, _ = git("config", "--local", "user.email", opts.Email)
	}

	if _, err := git("add", "-A"); err != nil {
		return result, fmt.Errorf("git add: %w", err)
	}
	hasCommits := gitHasCommits(ctx, opts.Dir, env, &output)
	hasChanges, err := gitHasStagedChanges(ctx, opts.Dir, env, &output)
	if err != nil {
		return result, err
	}
	if hasChanges || !hasCommits {
		if _, err := git("commit", "--quiet", "--allow-empty", "-m", opts.Message); err != nil {
			return result, fmt.Errorf("git commit: %w", err)
		}
		result.Committed = true
	} else {
		writeLine("publish: no changes")
	}

	if opts.Remote == "" {
		writeLine("publish: no remote; skip push")
	} else {
		writeLine("publish: push %s", opts.Branch)
		if _, err := git("push", "--force", opts.Remote, "HEAD:refs/heads/"+opts.Branch); err != nil {
			return result, fmt.Errorf("git push: %w", err)
		}
		result.Pushed = true
	}
	writeLine("publish: done %s", time.Now().Format(time.RFC3339))
	return result, nil
}

// appendLog is a no-op until the repository exists.
func appendLog(dir, path string, data []byte) {
	if _, err := os.Stat(filepath.Join(dir, ".git")); err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return
	}
	handle, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	_, _ = handle.Write(data)
	_ = handle.Close()
	_ = trimLogFile(path, maxLogLines)
}

func resolveOptions(opts Options) Options {
	if strings.TrimSpace(opts.Branch) == "" {
		opts.Branch = DefaultBranch
	}
	if strings.TrimSpace(opts.Message) == "" {
		opts.Message = "publish: " + time.Now().UTC().Format(time.RFC3339)
	}
	if strings.TrimSpace(opts.UserName) == "" {
		opts.UserName = "moire"
	}
	if strings.TrimSpace(opts.Email) == "" {
		opts.Email = opts.UserName + "@users.noreply.github.com"
	}
	if strings.TrimSpace(opts.LogFile) == "" {
		opts.LogFile = filepath.Join(opts.Dir, ".git", "publish.log")
	}
	return opts
}

// writeExcludes replaces .git/info/exclude with the given patterns.
func writeExcludes(dir string, patterns []string) error {
	infoDir := filepath.Join(dir, ".git", "info")
	if err := os.MkdirAll(infoDir, 0o755); err != nil {
		return err
	}
	var b strings.Builder
	for _, p := range patterns {
		if p = strings.TrimSpace(p); p != "" {
			b.WriteString(p)
			b.WriteByte('\n')
		}
	}
	return os.WriteFile(filepath.Join(infoDir, "exclude"), []byte(b.String()), 0o644)
}

func gitConfigLocalDefined(ctx context.Context, dir string, env []string, writer io.Writer, key string) (bool, error) {
	writeCommand(writer, "git", "config", "--local", "--get", key)
	cmd := exec.CommandContext(ctx, "git", "config", "--local", "--get", key)
	cmd.Dir = dir
	cmd.Env = env
	output, err := cmd.CombinedOutput()
	if len(output) > 0 {
		_, _ = writer.Write(output)
	}
	if err == nil {
		_, _ = fmt.Fprintln(writer, "-> ok")
		_, _ = fmt.Fprintln(writer)
		return strings.TrimSpace(string(output)) != "", nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		_, _ = fmt.Fprintln(writer, "-> not set")
		_, _ = fmt.Fprintln(writer)
		return false, nil
	}
	_, _ = fmt.Fprintf(writer, "-> error: %v\n", err)
	_, _ = fmt.Fprintln(writer)
	return false, err
}

func gitHasStagedChanges(ctx context.Context, dir string, env []string, writer io.Writer) (bool, error) {
	writeCommand(writer, "git", "diff", "--cached", "--quiet")
	cmd := exec.CommandContext(ctx, "git", "diff", "--cached", "--quiet")
	cmd.Dir = dir
	cmd.Env = env
	output, err := cmd.CombinedOutput()
	if len(output) > 0 {
		_, _ = writer.Write(output)
	}
	if err == nil {
		_, _ = fmt.Fprintln(writer, "-> ok (no changes)")
		_, _ = fmt.Fprintln(writer)
		return false, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		_, _ = fmt.Fprintln(writer, "-> changes staged")
		_, _ = fmt.Fprintln(writer)
		return true, nil
	}
	_, _ = fmt.Fprintf(writer, "-> error: %v\n", err)
	_, _ = fmt.Fprintln(writer)
	return false, err
}

func gitHasCommits(ctx context.Context, dir string, env []string, writer io.Writer) bool {
	writeCommand(writer, "git", "rev-parse", "--verify", "--quiet", "HEAD")
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--verify", "--quiet", "HEAD")
	cmd.Dir = dir
	cmd.Env = env
	if err := cmd.Run(); err != nil {
		_, _ = fmt.Fprintln(writer, "-> no commits")
		_, _ = fmt.Fprintln(writer)
		return false
	}
	_, _ = fmt.Fprintln(writer, "-> ok")
	_, _ = fmt.Fprintln(writer)
	return true
}

func runGitCommand(ctx context.Context, dir string, env []string, writer io.Writer, name string, args ...string) (string, error) {
	writeCommand(writer, name, args...)
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = env
	output, err := cmd.CombinedOutput()
	if len(output) > 0 {
		_, _ = writer.Write(output)
	}
	if err != nil {
		_, _ = fmt.Fprintf(writer, "-> error: %v\n", err)
	} else {
		_, _ = fmt.Fprintln(writer, "-> ok")
	}
	_, _ = fmt.Fprintln(writer)
	return string(output), err
}

func writeCommand(writer io.Writer, name string, args ...string) {
	cmd := append([]string{name}, args...)
	_, _ = fmt.Fprintf(writer, "\n$ %s\n", strings.Join(cmd, " "))
}

// trimLogFile keeps the last maxLines lines of path.
func trimLogFile(path string, maxLines int) error {
	if maxLines <= 0 {
		return nil
	}
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	lines := make([]string, 0, maxLines)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if len(lines) == maxLines {
			copy(lines, lines[1:])
			lines[maxLines-1] = scanner.Text()
			continue
		}
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	tmpPath := path + ".tmp"
	tmp, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(tmp, line); err != nil {
			tmp.Close()
			return err
		}
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
