// Package assets fingerprints the images colocated with memos and maps their
// source paths to published URLs.
package assets

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	mfs "moire/internal/storage/fs"
)

var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

// Map maps content-relative source paths to published URLs.
type Map map[string]string

func (m Map) Lookup(key string) (string, bool) {
	url, ok := m[key]
	return url, ok
}

type Asset struct {
	Source  string
	Name    string
	AbsPath string
}

type Bundle struct {
	prefix string
	assets []Asset
	byName map[string]Asset
	urls   Map
}

func IsImage(name string) bool {
	return imageExts[strings.ToLower(path.Ext(name))]
}

// Collect fingerprints every image below root. Published URLs are
// prefix + "/" + fingerprinted name. A missing root yields an empty bundle.
func Collect(root, prefix string) (*Bundle, error) {
	b := &Bundle{
		prefix: strings.TrimRight(prefix, "/"),
		byName: map[string]Asset{},
		urls:   Map{},
	}
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return b, nil
	}
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if p != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !IsImage(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		asset := Asset{
			Source:  rel,
			Name:    fingerprint(d.Name(), data),
			AbsPath: p,
		}
		b.assets = append(b.assets, asset)
		b.byName[asset.Name] = asset
		b.urls[rel] = b.prefix + "/" + asset.Name
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect assets: %w", err)
	}
	sort.Slice(b.assets, func(i, j int) bool {
		return b.assets[i].Source < b.assets[j].Source
	})
	return b, nil
}

func fingerprint(name string, data []byte) string {
	sum := sha256.Sum256(data)
	ext := path.Ext(name)
	return strings.TrimSuffix(name, ext) + "." + hex.EncodeToString(sum[:4]) + strings.ToLower(ext)
}

func (b *Bundle) Map() Map {
	return b.urls
}

func (b *Bundle) Assets() []Asset {
	return append([]Asset(nil), b.assets...)
}

// Path returns the source file for a fingerprinted name.
func (b *Bundle) Path(name string) (string, bool) {
	a, ok := b.byName[name]
	if !ok {
		return "", false
	}
	return a.AbsPath, true
}

// CopyTo writes every asset into dir under its fingerprinted name and removes
// files in dir that no longer belong to the bundle. It returns the number of
// assets in dir.
func (b *Bundle) CopyTo(dir string) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, err
	}
	copied := 0
	for name, a := range b.byName {
		data, err := os.ReadFile(a.AbsPath)
		if err != nil {
			return copied, err
		}
		if _, err := mfs.WriteIfChanged(filepath.Join(dir, name), data, 0o644); err != nil {
			return copied, fmt.Errorf("copy asset %s: %w", a.Source, err)
		}
		copied++
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return copied, err
	}
	for _, e := range entries {
		if _, ok := b.byName[e.Name()]; ok || e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			return copied, fmt.Errorf("remove stale asset %s: %w", e.Name(), err)
		}
	}
	return copied, nil
}
