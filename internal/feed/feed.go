// Package feed derives the visible memo list from the current tag filter,
// search query, page cursor and expanded set.
package feed

import (
	"html"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"moire/internal/memo"
)

const (
	DefaultPageSize              = 20
	DefaultPreviewCharacterLimit = 500
)

type Config struct {
	PageSize              int
	PreviewCharacterLimit int
}

// DayGroup holds visible memos that share a calendar day.
type DayGroup struct {
	Day   string
	Memos []memo.Memo
}

// List is not safe for concurrent use.
type List struct {
	cfg      Config
	memos    []memo.Memo
	search   []string
	allTags  []string
	tag      string
	query    string
	limit    int
	expanded map[string]bool
	filtered []memo.Memo
}

func New(memos []memo.Memo, cfg Config) *List {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.PreviewCharacterLimit <= 0 {
		cfg.PreviewCharacterLimit = DefaultPreviewCharacterLimit
	}
	l := &List{
		cfg:      cfg,
		memos:    memos,
		search:   make([]string, len(memos)),
		limit:    cfg.PageSize,
		expanded: map[string]bool{},
	}
	seen := map[string]bool{}
	for i, m := range memos {
		l.search[i] = searchText(m)
		for _, tag := range m.Tags {
			if !seen[tag] {
				seen[tag] = true
				l.allTags = append(l.allTags, tag)
			}
		}
	}
	sort.Strings(l.allTags)
	l.recompute()
	return l
}

func (l *List) Config() Config { return l.cfg }

func (l *List) AllTags() []string {
	return append([]string(nil), l.allTags...)
}

func (l *List) SelectedTag() string { return l.tag }

func (l *List) SearchQuery() string { return l.query }

func (l *List) Filtered() []memo.Memo { return l.filtered }

func (l *List) Limit() int { return l.limit }

func (l *List) Visible() []memo.Memo {
	if len(l.filtered) <= l.limit {
		return l.filtered
	}
	return l.filtered[:l.limit]
}

func (l *List) HasMore() bool { return len(l.filtered) > l.limit }

func (l *List) LoadMore() {
	l.limit += l.cfg.PageSize
}

// ShowAtLeast grows the cursor page by page until n memos fit.
func (l *List) ShowAtLeast(n int) {
	for l.limit < n {
		l.LoadMore()
	}
}

// Grouped buckets Visible by day, in order of first appearance.
func (l *List) Grouped() []DayGroup {
	var groups []DayGroup
	pos := map[string]int{}
	for _, m := range l.Visible() {
		day := m.Date.Format("2006-01-02")
		i, ok := pos[day]
		if !ok {
			i = len(groups)
			pos[day] = i
			groups = append(groups, DayGroup{Day: day})
		}
		groups[i].Memos = append(groups[i].Memos, m)
	}
	return groups
}

// SelectTag selects tag, or clears the filter when tag is already selected.
func (l *List) SelectTag(tag string) {
	if tag == l.tag {
		l.tag = ""
	} else {
		l.tag = tag
	}
	l.resetLimit()
	l.recompute()
}

func (l *List) SetSearchQuery(q string) {
	l.query = q
	l.resetLimit()
	l.recompute()
}

func (l *List) ClearSearchQuery() {
	if l.query == "" {
		return
	}
	l.SetSearchQuery("")
}

func (l *List) IsLong(m memo.Memo) bool {
	return utf8.RuneCountInString(PlainText(m.Content)) > l.cfg.PreviewCharacterLimit
}

func (l *List) IsExpanded(slug string) bool { return l.expanded[slug] }

func (l *List) ToggleExpansion(slug string) {
	if slug == "" {
		return
	}
	if l.expanded[slug] {
		delete(l.expanded, slug)
		return
	}
	l.expanded[slug] = true
}

func (l *List) ShouldClamp(m memo.Memo) bool {
	return l.IsLong(m) && !l.IsExpanded(m.Slug)
}

// Expanded returns the expanded slugs in ascending order.
func (l *List) Expanded() []string {
	out := make([]string, 0, len(l.expanded))
	for slug := range l.expanded {
		out = append(out, slug)
	}
	sort.Strings(out)
	return out
}

func (l *List) resetLimit() {
	l.limit = l.cfg.PageSize
}

func (l *List) recompute() {
	needle := strings.ToLower(strings.TrimSpace(l.query))
	l.filtered = l.filtered[:0:0]
	for i, m := range l.memos {
		if l.tag != "" && !hasTag(m, l.tag) {
			continue
		}
		if needle != "" && !strings.Contains(l.search[i], needle) {
			continue
		}
		l.filtered = append(l.filtered, m)
	}
}

func hasTag(m memo.Memo, tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

func searchText(m memo.Memo) string {
	return strings.ToLower(m.Slug + " " + strings.Join(m.Tags, " ") + " " + stripTags(m.Content))
}

var (
	htmlTagRe = regexp.MustCompile(`<[^>]*>`)
	spaceRe   = regexp.MustCompile(`\s+`)
)

// stripTags replaces markup with spaces and decodes entities, so "&amp;"
// counts and matches as "&".
func stripTags(s string) string {
	return html.UnescapeString(htmlTagRe.ReplaceAllString(s, " "))
}

// PlainText strips markup from rendered HTML and collapses whitespace.
func PlainText(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(stripTags(s), " "))
}
