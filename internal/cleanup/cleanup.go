// Package cleanup finds images under the content images directory that no
// memo references, and removes them.
package cleanup

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"moire/internal/memo"
)

const DefaultImagesDir = "images"

var (
	markdownImageRe = regexp.MustCompile(`!\[[^\]]*\]\(([^)]+)\)`)
	htmlImageRe     = regexp.MustCompile(`<img[^>]+src=["']([^"']+)["']`)
)

// Remover deletes rel (relative to root). The default tries git rm first.
type Remover func(root, rel string) error

type Options struct {
	ContentRoot string
	ImagesDir   string
	DryRun      bool
	Remove      Remover
	Out         io.Writer
	ErrOut      io.Writer
}

type Report struct {
	Images  int
	Memos   int
	Unused  []string
	Removed []string
	Failed  []string
	// Skipped explains why nothing was scanned, when set.
	Skipped string
}

// Run scans, reports and (unless DryRun) removes unused images. Only
// setup errors are returned; per-file removal failures land in Failed.
func Run(opts Options) (Report, error) {
	if opts.ImagesDir == "" {
		opts.ImagesDir = DefaultImagesDir
	}
	if opts.Remove == nil {
		opts.Remove = GitRemove
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.ErrOut == nil {
		opts.ErrOut = io.Discard
	}
	var report Report
	imagesPath := filepath.Join(opts.ContentRoot, opts.ImagesDir)

	if !isDir(imagesPath) {
		return skip(opts.Out, report, "Images directory does not exist. Skipping cleanup.")
	}
	if !isDir(opts.ContentRoot) {
		return skip(opts.Out, report, "Memos directory does not exist. Skipping cleanup.")
	}
	images, err := listImages(imagesPath)
	if err != nil {
		return report, err
	}
	report.Images = len(images)
	if len(images) == 0 {
		return skip(opts.Out, report, "No images found in images directory.")
	}
	memos, err := listMemos(opts.ContentRoot, imagesPath)
	if err != nil {
		return report, err
	}
	report.Memos = len(memos)
	if len(memos) == 0 {
		return skip(opts.ErrOut, report, "No markdown files found. Skipping cleanup to avoid accidental deletions.")
	}

	used := map[string]bool{}
	for _, p := range memos {
		data, err := os.ReadFile(p)
		if err != nil {
			return report, fmt.Errorf("read %s: %w", p, err)
		}
		for name := range UsedImageNames(string(data)) {
			used[name] = true
		}
	}
	for _, name := range images {
		if !used[name] {
			report.Unused = append(report.Unused, name)
		}
	}
	if len(report.Unused) == 0 {
		_, _ = fmt.Fprintln(opts.Out, "No unused images found.")
		return report, nil
	}

	_, _ = fmt.Fprintf(opts.Out, "Found %d unused image(s):\n", len(report.Unused))
	for _, name := range report.Unused {
		_, _ = fmt.Fprintf(opts.Out, " - %s\n", name)
	}
	for _, name := range report.Unused {
		rel := path.Join(filepath.ToSlash(opts.ImagesDir), name)
		if opts.DryRun {
			_, _ = fmt.Fprintf(opts.Out, "[dry-run] Would remove %s\n", rel)
			continue
		}
		_, _ = fmt.Fprintf(opts.Out, "Removing %s...\n", rel)
		if err := opts.Remove(opts.ContentRoot, rel); err != nil {
			_, _ = fmt.Fprintf(opts.ErrOut, "ERROR: remove %s: %v\n", rel, err)
			report.Failed = append(report.Failed, name)
			continue
		}
		report.Removed = append(report.Removed, name)
	}
	if opts.DryRun {
		_, _ = fmt.Fprintln(opts.Out, "Dry run completed. No files were removed.")
	} else {
		_, _ = fmt.Fprintln(opts.Out, "Cleanup completed.")
	}
	return report, nil
}

func skip(w io.Writer, report Report, reason string) (Report, error) {
	report.Skipped = reason
	_, _ = fmt.Fprintln(w, reason)
	return report, nil
}

// UsedImageNames returns the base names of local images referenced by
// Markdown image syntax or HTML img tags.
func UsedImageNames(markdown string) map[string]bool {
	names := map[string]bool{}
	collect := func(raw string) {
		if name := imageName(raw); name != "" {
			names[name] = true
		}
	}
	for _, m := range markdownImageRe.FindAllStringSubmatch(markdown, -1) {
		collect(m[1])
	}
	for _, m := range htmlImageRe.FindAllStringSubmatch(markdown, -1) {
		collect(m[1])
	}
	return names
}

func imageName(raw string) string {
	cleaned, _, _ := strings.Cut(raw, "#")
	cleaned, _, _ = strings.Cut(cleaned, "?")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" ||
		strings.HasPrefix(cleaned, "http://") ||
		strings.HasPrefix(cleaned, "https://") ||
		strings.HasPrefix(cleaned, "data:") {
		return ""
	}
	cleaned = strings.TrimPrefix(strings.TrimPrefix(cleaned, `"`), `'`)
	cleaned = strings.TrimSuffix(strings.TrimSuffix(cleaned, `"`), `'`)
	if decoded, err := url.PathUnescape(cleaned); err == nil {
		cleaned = decoded
	}
	name := path.Base(cleaned)
	if name == "." || name == "/" {
		return ""
	}
	return name
}

func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// listMemos walks root for memo files, skipping the images directory.
func listMemos(root, imagesPath string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p == imagesPath {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && memo.IsMemoFile(d.Name()) {
			out = append(out, p)
		}
		return nil
	})
	return out, err
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

// GitRemove runs git rm for rel inside root and falls back to os.Remove when
// git is unavailable or the file is untracked.
func GitRemove(root, rel string) error {
	cmd := exec.Command("git", "-C", root, "rm", "--quiet", "--", rel)
	out, gitErr := cmd.CombinedOutput()
	if gitErr == nil {
		return nil
	}
	if err := os.Remove(filepath.Join(root, filepath.FromSlash(rel))); err != nil {
		return errors.Join(fmt.Errorf("git rm: %w: %s", gitErr, strings.TrimSpace(string(out))), err)
	}
	return nil
}
