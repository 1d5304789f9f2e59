package site

import (
	"html/template"
	"net/url"
	"strconv"

	"moire/internal/config"
	"moire/internal/feed"
	"moire/internal/memo"
)

// Page is the view model handed to every template.
type Page struct {
	Site            config.Site
	BasePath        string
	Title           string
	Canonical       string
	Static          bool
	Script          string
	ContentTemplate string
	ContentHTML     template.HTML
	Feed            *FeedView
	Memo            *MemoView
}

type FeedView struct {
	Query       string
	SelectedTag string
	Tags        []TagView
	Groups      []GroupView
	Total       int
	PageSize    int
	HasMore     bool
	MoreURL     string
	ClearURL    string
}

type TagView struct {
	Name   string
	Active bool
	URL    string
}

type GroupView struct {
	Day    string
	Memos  []MemoView
	Hidden bool
}

type MemoView struct {
	Slug      string
	Title     string
	Time      string
	ISODate   string
	Tags      []string
	HTML      template.HTML
	Long      bool
	Clamped   bool
	Hidden    bool
	Permalink string
	ToggleURL string
}

// FeedPage builds the index page. Static pages carry every filtered memo,
// hide those past the first page and leave paging, filtering and expansion
// to the feed script. Clamped memos link to their permalink without it.
func FeedPage(s config.Site, basePath string, list *feed.List, static bool) Page {
	shown := list.Limit()
	if static {
		list.ShowAtLeast(len(list.Filtered()))
	}
	v := &FeedView{
		Query:       list.SearchQuery(),
		SelectedTag: list.SelectedTag(),
		Total:       len(list.Filtered()),
		PageSize:    list.Config().PageSize,
		HasMore:     len(list.Filtered()) > shown,
	}
	for _, tag := range list.AllTags() {
		next := feed.State{Tag: tag, Query: list.SearchQuery()}
		if tag == list.SelectedTag() {
			next.Tag = ""
		}
		v.Tags = append(v.Tags, TagView{
			Name:   tag,
			Active: tag == list.SelectedTag(),
			URL:    feedURL(basePath, feed.StateToQuery(next)),
		})
	}
	i := 0
	for _, g := range list.Grouped() {
		group := GroupView{Day: g.Day, Hidden: true}
		for _, m := range g.Memos {
			mv := memoView(m, basePath)
			mv.Long = list.IsLong(m)
			mv.Clamped = list.ShouldClamp(m)
			mv.Hidden = i >= shown
			if static {
				mv.ToggleURL = mv.Permalink
			} else {
				mv.ToggleURL = toggleURL(basePath, list, m.Slug)
			}
			if !mv.Hidden {
				group.Hidden = false
			}
			group.Memos = append(group.Memos, mv)
			i++
		}
		v.Groups = append(v.Groups, group)
	}
	if v.HasMore {
		values := viewQuery(list, shown+list.Config().PageSize, list.Expanded())
		v.MoreURL = feedURL(basePath, values)
	}
	v.ClearURL = feedURL(basePath, feed.StateToQuery(feed.State{Tag: list.SelectedTag()}))

	page := Page{
		Site:            s,
		BasePath:        basePath,
		Title:           s.Title,
		Canonical:       s.URL + "/",
		Static:          static,
		ContentTemplate: "feed",
		Feed:            v,
	}
	if static {
		page.Script = FeedScriptName
	}
	return page
}

func MemoPage(s config.Site, basePath string, m memo.Memo, static bool) Page {
	mv := memoView(m, basePath)
	title := s.Title
	if m.Title != "" {
		title = m.Title + " · " + s.Title
	}
	return Page{
		Site:            s,
		BasePath:        basePath,
		Title:           title,
		Canonical:       s.URL + "/m/" + m.Slug,
		Static:          static,
		ContentTemplate: "memo",
		Memo:            &mv,
	}
}

func NotFoundPage(s config.Site, basePath string, static bool) Page {
	return Page{
		Site:            s,
		BasePath:        basePath,
		Title:           "Not found · " + s.Title,
		Static:          static,
		ContentTemplate: "notfound",
	}
}

func memoView(m memo.Memo, basePath string) MemoView {
	return MemoView{
		Slug:      m.Slug,
		Title:     m.Title,
		Time:      m.Date.Format("15:04"),
		ISODate:   m.Date.Format("2006-01-02T15:04:05Z07:00"),
		Tags:      m.Tags,
		HTML:      template.HTML(m.Content),
		Permalink: basePath + "/m/" + url.PathEscape(m.Slug),
	}
}

// viewQuery encodes the full feed view: tag, q, the visible count when it
// exceeds one page, and expanded slugs.
func viewQuery(list *feed.List, n int, open []string) url.Values {
	values := feed.StateToQuery(list.State())
	if n > list.Config().PageSize {
		values.Set("n", strconv.Itoa(n))
	}
	for _, slug := range open {
		values.Add("open", slug)
	}
	return values
}

func toggleURL(basePath string, list *feed.List, slug string) string {
	open := make([]string, 0, len(list.Expanded())+1)
	found := false
	for _, s := range list.Expanded() {
		if s == slug {
			found = true
			continue
		}
		open = append(open, s)
	}
	if !found {
		open = append(open, slug)
	}
	return feedURL(basePath, viewQuery(list, list.Limit(), open)) + "#m-" + url.PathEscape(slug)
}

func feedURL(basePath string, values url.Values) string {
	u := basePath + "/"
	if len(values) > 0 {
		u += "?" + values.Encode()
	}
	return u
}
