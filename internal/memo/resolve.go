package memo

import (
	"regexp"
	"strings"
)

// AssetLookup maps a content-relative source path to its published URL.
type AssetLookup interface {
	Lookup(key string) (string, bool)
}

var imageRe = regexp.MustCompile(`!\[(.*?)\]\((.*?)\)`)

// ResolveAssets rewrites relative Markdown image references of the memo at
// memoPath to their published URLs. References that are absolute or not
// present in assets are left as written, so applying it twice is a no-op.
func ResolveAssets(markdown, memoPath string, assets AssetLookup) string {
	if assets == nil {
		return markdown
	}
	dir := ""
	if i := strings.LastIndex(memoPath, "/"); i >= 0 {
		dir = memoPath[:i]
	}
	return imageRe.ReplaceAllStringFunc(markdown, func(match string) string {
		m := imageRe.FindStringSubmatch(match)
		alt, ref := m[1], m[2]
		if isAbsoluteRef(ref) {
			return match
		}
		key := ref
		if dir != "" {
			key = dir + "/" + ref
		}
		url, ok := assets.Lookup(NormalizeSegments(key))
		if !ok || url == "" {
			return match
		}
		return "![" + alt + "](" + url + ")"
	})
}

func isAbsoluteRef(ref string) bool {
	return strings.HasPrefix(ref, "http://") ||
		strings.HasPrefix(ref, "https://") ||
		strings.HasPrefix(ref, "/")
}

// NormalizeSegments resolves "." and ".." segments of a slash path. A ".."
// that would climb above the first segment is dropped.
func NormalizeSegments(p string) string {
	parts := strings.Split(p, "/")
	stack := make([]string, 0, len(parts))
	for _, part := range parts {
		switch part {
		case ".":
		case "..":
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		default:
			stack = append(stack, part)
		}
	}
	return strings.Join(stack, "/")
}
