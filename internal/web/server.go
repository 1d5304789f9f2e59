// Package web serves the memo site from memory for local preview.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"moire/internal/auth"
	"moire/internal/config"
	"moire/internal/site"
)

// BuildVersion is set at link time and reported by /healthz.
var BuildVersion string

type Server struct {
	cfg    config.Config
	loader *site.Loader
	mux    *http.ServeMux
	views  *site.Templates
	auth   *Auth
	css    []byte
	logger *slog.Logger

	mu       sync.RWMutex
	content  *site.Content
	loadedAt time.Time
}

func NewServer(cfg config.Config, loader *site.Loader) (*Server, error) {
	creds, err := auth.NewCredentials(cfg.AuthUser, cfg.AuthPass)
	if err != nil {
		return nil, err
	}
	css, err := site.ThemeCSS(cfg.Site.Theme, loader.Renderer)
	if err != nil {
		return nil, err
	}
	logger := loader.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:    cfg,
		loader: loader,
		mux:    http.NewServeMux(),
		views:  site.MustParseTemplates(),
		css:    css,
		logger: logger,
	}
	if creds != nil {
		s.auth = &Auth{creds: creds}
	}
	s.routes()
	return s, nil
}

// Reload loads a fresh snapshot and swaps it in. On error the previous
// snapshot keeps serving.
func (s *Server) Reload(ctx context.Context) error {
	start := time.Now()
	content, err := s.loader.Load(ctx)
	if err != nil {
		s.logger.Error("reload failed", "err", err)
		return err
	}
	s.mu.Lock()
	s.content = content
	s.loadedAt = time.Now()
	s.mu.Unlock()
	s.logger.Info("content loaded", "memos", content.Repo.Len(), "duration", time.Since(start).String())
	return nil
}

func (s *Server) snapshot() *site.Content {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.content
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	if s.auth != nil {
		h = s.auth.Middleware(h)
	}
	if base := s.cfg.BasePath; base != "" {
		inner := http.StripPrefix(base, h)
		h = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == base {
				http.Redirect(w, r, base+"/", http.StatusMovedPermanently)
				return
			}
			if !strings.HasPrefix(r.URL.Path, base+"/") {
				http.NotFound(w, r)
				return
			}
			inner.ServeHTTP(w, r)
		})
	}
	return logRequests(s.logger, h)
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleFeed)
	s.mux.HandleFunc("GET /m/{slug}", s.handleMemo)
	s.mux.HandleFunc("GET /m/{slug}/{$}", s.handleMemo)
	s.mux.HandleFunc("GET /sitemap.xml", s.handleSitemap)
	s.mux.HandleFunc("GET /robots.txt", s.handleRobots)
	s.mux.HandleFunc("GET /memos.json", s.handleMemosJSON)
	s.mux.HandleFunc("GET /theme.css", s.handleThemeCSS)
	s.mux.HandleFunc("GET /assets/{name}", s.handleAsset)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("/", s.handleNotFound)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Debug("http request", "method", r.Method, "url", r.URL.String(), "status", rec.status, "duration", time.Since(start).String())
	})
}
