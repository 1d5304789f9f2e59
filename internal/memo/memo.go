// Package memo turns a tree of Markdown memo files into rendered, tagged,
// date-ordered entries.
package memo

import (
	"regexp"
	"strconv"
	"time"
)

// Memo is a single rendered entry. Values are immutable once built; the Tags
// slice is shared and must not be modified by callers.
type Memo struct {
	Slug    string
	Path    string
	Title   string
	Content string
	Date    time.Time
	Tags    []string
}

var slugDateRe = regexp.MustCompile(`^(\d{4})(\d{2})(\d{2})(\d{2})(\d{2})(\d{2})$`)

// ParseSlugDate reads a YYYYMMDDHHMMSS slug as a wall-clock time in loc.
// Out-of-range components are normalized by time.Date (month 13 rolls into
// the next year). Slugs that do not match return now.
func ParseSlugDate(slug string, loc *time.Location, now time.Time) time.Time {
	m := slugDateRe.FindStringSubmatch(slug)
	if m == nil {
		return now
	}
	if loc == nil {
		loc = time.Local
	}
	parts := make([]int, 6)
	for i := range parts {
		v, err := strconv.Atoi(m[i+1])
		if err != nil {
			return now
		}
		parts[i] = v
	}
	return time.Date(parts[0], time.Month(parts[1]), parts[2], parts[3], parts[4], parts[5], 0, loc)
}

// FormatSlugDate is the inverse of ParseSlugDate for in-range dates.
func FormatSlugDate(t time.Time) string {
	return t.Format("20060102150405")
}
