package memo

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/adrg/frontmatter"
)

var (
	ErrContentMissing = errors.New("content directory missing")
	ErrDuplicateSlug  = errors.New("duplicate memo slug")
)

// Source is one memo file found under the content root.
type Source struct {
	Path    string
	Slug    string
	Raw     []byte
	ModTime time.Time
}

type frontMatter struct {
	Title string `yaml:"title"`
	Draft bool   `yaml:"draft"`
}

// Discover reads every .md file below root. A missing root is reported as
// ErrContentMissing; an empty root yields no sources and no error.
func Discover(root string) ([]Source, error) {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrContentMissing, root)
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrContentMissing, root)
	}

	var sources []Source
	bySlug := map[string]string{}
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !IsMemoFile(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		slug := SlugFromPath(rel)
		if prev, ok := bySlug[slug]; ok {
			return fmt.Errorf("%w: %q in %s and %s", ErrDuplicateSlug, slug, prev, rel)
		}
		bySlug[slug] = rel
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		sources = append(sources, Source{Path: rel, Slug: slug, Raw: raw, ModTime: fi.ModTime()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(sources, func(i, j int) bool {
		return sources[i].Path < sources[j].Path
	})
	return sources, nil
}

func IsMemoFile(name string) bool {
	return len(name) > len(".md") && strings.HasSuffix(strings.ToLower(name), ".md")
}

// SlugFromPath returns the file name of a memo path without its extension.
func SlugFromPath(p string) string {
	base := p
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[i+1:]
	}
	if !IsMemoFile(base) {
		return base
	}
	return base[:len(base)-len(".md")]
}

// splitSource separates optional YAML frontmatter from the memo body.
// Malformed frontmatter is logged and the raw text is used as the body.
func splitSource(src Source, logger *slog.Logger) (string, frontMatter) {
	var fm frontMatter
	if len(src.Raw) == 0 {
		return "", fm
	}
	body, err := frontmatter.Parse(bytes.NewReader(src.Raw), &fm)
	if err != nil {
		logger.Warn("memo frontmatter ignored", "path", src.Path, "err", err)
		return string(src.Raw), frontMatter{}
	}
	return string(body), fm
}
