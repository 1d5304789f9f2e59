package feed

import (
	"net/url"
	"strings"
)

// State is the part of a List mirrored into the page URL.
type State struct {
	Tag   string
	Query string
}

func (l *List) State() State {
	return State{Tag: l.tag, Query: l.query}
}

func StateToQuery(s State) url.Values {
	v := url.Values{}
	if s.Tag != "" {
		v.Set("tag", s.Tag)
	}
	if q := strings.TrimSpace(s.Query); q != "" {
		v.Set("q", q)
	}
	return v
}

func QueryToState(v url.Values) State {
	return State{Tag: v.Get("tag"), Query: v.Get("q")}
}

// ApplyQuery makes the URL the source of truth, as after back/forward
// navigation. The tag is assigned, not toggled.
func (l *List) ApplyQuery(v url.Values) {
	s := QueryToState(v)
	l.tag = s.Tag
	l.query = s.Query
	l.resetLimit()
	l.recompute()
}

// SyncURL returns u with its tag and q parameters rewritten from the current
// state. changed is false when the result equals u.
func (l *List) SyncURL(u *url.URL) (string, bool) {
	current := u.String()
	next := *u
	values := u.Query()
	values.Del("tag")
	values.Del("q")
	for k, vs := range StateToQuery(l.State()) {
		values[k] = vs
	}
	if sameValues(values, u.Query()) {
		return current, false
	}
	next.RawQuery = values.Encode()
	return next.String(), true
}

func sameValues(a, b url.Values) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i] != bv[i] {
				return false
			}
		}
	}
	return true
}
