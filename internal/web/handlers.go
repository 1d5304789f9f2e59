package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"moire/internal/feed"
	"moire/internal/site"
)

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	content := s.snapshot()
	if content == nil {
		http.Error(w, "content not loaded", http.StatusServiceUnavailable)
		return
	}
	list := feed.New(content.Repo.ListAll(), feed.Config{
		PageSize:              s.cfg.Site.PageSize,
		PreviewCharacterLimit: s.cfg.Site.PreviewCharacterLimit,
	})
	values := r.URL.Query()

	// Form submissions carry the tag selected when the page was rendered in
	// "from"; a pressed tag button toggles against it.
	if _, submitted := values["from"]; submitted {
		list.ApplyQuery(feed.StateToQuery(feed.State{Tag: values.Get("from"), Query: values.Get("q")}))
		if tag := values.Get("tag"); tag != "" {
			list.SelectTag(tag)
		}
		u := *r.URL
		rest := r.URL.Query()
		rest.Del("from")
		u.RawQuery = rest.Encode()
		next, _ := list.SyncURL(&u)
		http.Redirect(w, r, s.cfg.BasePath+next, http.StatusSeeOther)
		return
	}

	list.ApplyQuery(values)
	if next, changed := list.SyncURL(r.URL); changed {
		http.Redirect(w, r, s.cfg.BasePath+next, http.StatusSeeOther)
		return
	}
	if n, err := strconv.Atoi(values.Get("n")); err == nil && n > 0 {
		if total := len(list.Filtered()); n > total {
			n = total
		}
		list.ShowAtLeast(n)
	}
	for _, slug := range values["open"] {
		if !list.IsExpanded(slug) {
			list.ToggleExpansion(slug)
		}
	}
	s.renderPage(w, http.StatusOK, site.FeedPage(s.cfg.Site, s.cfg.BasePath, list, false))
}

func (s *Server) handleMemo(w http.ResponseWriter, r *http.Request) {
	content := s.snapshot()
	if content == nil {
		http.Error(w, "content not loaded", http.StatusServiceUnavailable)
		return
	}
	m, ok := content.Repo.GetBySlug(r.PathValue("slug"))
	if !ok {
		s.handleNotFound(w, r)
		return
	}
	s.renderPage(w, http.StatusOK, site.MemoPage(s.cfg.Site, s.cfg.BasePath, m, false))
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, http.StatusNotFound, site.NotFoundPage(s.cfg.Site, s.cfg.BasePath, false))
}

func (s *Server) handleSitemap(w http.ResponseWriter, r *http.Request) {
	content := s.snapshot()
	if content == nil {
		http.Error(w, "content not loaded", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	_, _ = w.Write([]byte(site.BuildSitemap(s.cfg.Site.URL, content.Repo.ListAll())))
}

func (s *Server) handleRobots(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(site.BuildRobots(s.cfg.Site.URL)))
}

func (s *Server) handleMemosJSON(w http.ResponseWriter, r *http.Request) {
	content := s.snapshot()
	if content == nil {
		http.Error(w, "content not loaded", http.StatusServiceUnavailable)
		return
	}
	data, err := site.MemosJSON(content.Repo.ListAll())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func (s *Server) handleThemeCSS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	_, _ = w.Write(s.css)
}

func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	content := s.snapshot()
	if content == nil {
		http.NotFound(w, r)
		return
	}
	path, ok := content.Assets.Path(r.PathValue("name"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	// Fingerprinted names never change content.
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	http.ServeFile(w, r, path)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{"ok": true, "version": BuildVersion}
	s.mu.RLock()
	if s.content != nil {
		status["memos"] = s.content.Repo.Len()
		status["loaded_at"] = s.loadedAt.UTC()
	} else {
		status["ok"] = false
	}
	s.mu.RUnlock()
	w.Header().Set("Content-Type", "application/json")
	if status["ok"] == false {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(status)
}

func (s *Server) renderPage(w http.ResponseWriter, status int, page site.Page) {
	var buf bytes.Buffer
	if err := s.views.Render(&buf, page); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
