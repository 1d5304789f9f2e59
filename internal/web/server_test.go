package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"moire/internal/auth"
	"moire/internal/config"
	"moire/internal/memo"
	"moire/internal/site"
)

func writeMemo(t *testing.T, root, rel, body string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func testConfig(root string) config.Config {
	return config.Config{
		ContentPath: root,
		Site: config.Site{
			Title:                 "Moire",
			URL:                   "https://moire.blog",
			Theme:                 "receipt",
			PageSize:              2,
			PreviewCharacterLimit: 350,
		},
	}
}

func newTestServer(t *testing.T, cfg config.Config) *Server {
	t.Helper()
	loader := &site.Loader{
		ContentPath: cfg.ContentPath,
		BasePath:    cfg.BasePath,
		Renderer:    memo.NewRenderer(""),
		Location:    time.UTC,
	}
	srv, err := NewServer(cfg, loader)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	if err := srv.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	return srv
}

func seedContent(t *testing.T) string {
	root := t.TempDir()
	writeMemo(t, root, "20240103080000.md", "Oat latte #coffee\n\n![cup](cup.png)\n")
	writeMemo(t, root, "20240102090000.md", "Green tea #tea\n")
	writeMemo(t, root, "20240101090000.md", "Espresso #coffee\n")
	writeMemo(t, root, "cup.png", "png")
	return root
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestFeedRoute(t *testing.T) {
	h := newTestServer(t, testConfig(seedContent(t))).Handler()

	rec := get(t, h, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `id="m-20240103080000"`) || !strings.Contains(body, `id="m-20240102090000"`) {
		t.Fatalf("expected first page memos in body")
	}
	if strings.Contains(body, `id="m-20240101090000"`) {
		t.Fatalf("expected third memo behind load more")
	}
	if !strings.Contains(body, `href="/?n=4"`) {
		t.Fatalf("expected load more link")
	}

	rec = get(t, h, "/?n=4")
	if !strings.Contains(rec.Body.String(), `id="m-20240101090000"`) {
		t.Fatalf("expected all memos with n=4")
	}

	rec = get(t, h, "/?tag=coffee&q=latte")
	body = rec.Body.String()
	if rec.Code != http.StatusOK || !strings.Contains(body, `id="m-20240103080000"`) || strings.Contains(body, `id="m-20240101090000"`) {
		t.Fatalf("expected coffee+latte filter, got %d", rec.Code)
	}
}

func TestFeedCanonicalRedirect(t *testing.T) {
	h := newTestServer(t, testConfig(seedContent(t))).Handler()
	rec := get(t, h, "/?q=&tag=coffee")
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected redirect, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/?tag=coffee" {
		t.Fatalf("expected canonical location, got %q", loc)
	}
}

func TestFeedFormToggle(t *testing.T) {
	h := newTestServer(t, testConfig(seedContent(t))).Handler()

	rec := get(t, h, "/?from=&q=latte&tag=coffee")
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/?q=latte&tag=coffee" {
		t.Fatalf("expected tag selected, got %d %q", rec.Code, rec.Header().Get("Location"))
	}

	rec = get(t, h, "/?from=coffee&q=latte&tag=coffee")
	if rec.Header().Get("Location") != "/?q=latte" {
		t.Fatalf("expected tag toggled off, got %q", rec.Header().Get("Location"))
	}

	rec = get(t, h, "/?from=coffee&q=espresso")
	if rec.Header().Get("Location") != "/?q=espresso&tag=coffee" {
		t.Fatalf("expected search keeping tag, got %q", rec.Header().Get("Location"))
	}
}

func TestMemoRoute(t *testing.T) {
	h := newTestServer(t, testConfig(seedContent(t))).Handler()
	for _, target := range []string{"/m/20240102090000", "/m/20240102090000/"} {
		rec := get(t, h, target)
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Green tea") {
			t.Fatalf("%s: expected memo page, got %d", target, rec.Code)
		}
	}
	rec := get(t, h, "/m/19990101000000")
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "Not found") {
		t.Fatalf("expected 404 page, got %d", rec.Code)
	}
	if rec := get(t, h, "/nope"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown route, got %d", rec.Code)
	}
}

func TestMemoPageTagSubmitsToFeed(t *testing.T) {
	h := newTestServer(t, testConfig(seedContent(t))).Handler()
	body := get(t, h, "/m/20240102090000").Body.String()
	form := strings.Index(body, `<form class="memo-page" method="get" action="/">`)
	button := strings.Index(body, `<button type="submit" name="tag" value="tea"`)
	if form < 0 || button < form {
		t.Fatalf("expected tag button inside a feed form, got %s", body)
	}

	// The browser submits the form as GET /?tag=tea.
	rec := get(t, h, "/?tag=tea")
	body = rec.Body.String()
	if rec.Code != http.StatusOK || !strings.Contains(body, `id="m-20240102090000"`) || strings.Contains(body, `id="m-20240103080000"`) {
		t.Fatalf("expected feed filtered to tea, got %d", rec.Code)
	}
}

func TestFeedsAndAssets(t *testing.T) {
	h := newTestServer(t, testConfig(seedContent(t))).Handler()

	rec := get(t, h, "/sitemap.xml")
	if rec.Code != http.StatusOK || strings.Count(rec.Body.String(), "<url>") != 4 {
		t.Fatalf("expected sitemap with 4 urls, got %d %q", rec.Code, rec.Body.String())
	}
	if rec := get(t, h, "/robots.txt"); !strings.Contains(rec.Body.String(), "Sitemap: https://moire.blog/sitemap.xml") {
		t.Fatalf("unexpected robots %q", rec.Body.String())
	}
	rec = get(t, h, "/memos.json")
	var memos []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &memos); err != nil || len(memos) != 3 {
		t.Fatalf("expected 3 memos in json, got %v %q", err, rec.Body.String())
	}
	if rec := get(t, h, "/theme.css"); !strings.Contains(rec.Body.String(), ".chroma") {
		t.Fatalf("expected theme css with code styles")
	}

	latte, _ := memos[0]["content"].(string)
	start := strings.Index(latte, "/assets/")
	if start < 0 {
		t.Fatalf("expected asset url in %q", latte)
	}
	assetURL := latte[start:]
	assetURL = assetURL[:strings.Index(assetURL, `"`)]
	rec = get(t, h, assetURL)
	if rec.Code != http.StatusOK || rec.Body.String() != "png" {
		t.Fatalf("expected asset body, got %d %q", rec.Code, rec.Body.String())
	}
	if rec := get(t, h, "/assets/missing.png"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing asset, got %d", rec.Code)
	}
}

func TestBasePath(t *testing.T) {
	cfg := testConfig(seedContent(t))
	cfg.BasePath = "/blog"
	h := newTestServer(t, cfg).Handler()

	if rec := get(t, h, "/blog"); rec.Code != http.StatusMovedPermanently || rec.Header().Get("Location") != "/blog/" {
		t.Fatalf("expected redirect to /blog/, got %d", rec.Code)
	}
	rec := get(t, h, "/blog/")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `href="/blog/theme.css"`) {
		t.Fatalf("expected feed under base path, got %d", rec.Code)
	}
	if rec := get(t, h, "/blog/?q="); rec.Header().Get("Location") != "/blog/" {
		t.Fatalf("expected redirect inside base path, got %q", rec.Header().Get("Location"))
	}
	if rec := get(t, h, "/other"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 outside base path, got %d", rec.Code)
	}
}

func TestBasicAuth(t *testing.T) {
	cfg := testConfig(seedContent(t))
	hash, err := auth.HashPassword("pw")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	cfg.AuthUser = "alice"
	cfg.AuthPass = hash
	h := newTestServer(t, cfg).Handler()

	rec := get(t, h, "/")
	if rec.Code != http.StatusUnauthorized || rec.Header().Get("WWW-Authenticate") == "" {
		t.Fatalf("expected 401 challenge, got %d", rec.Code)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth("alice", "pw")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with credentials, got %d", rec.Code)
	}
	if rec := get(t, h, "/healthz"); rec.Code != http.StatusOK {
		t.Fatalf("expected open health check, got %d", rec.Code)
	}
}

func TestReloadSwapsContent(t *testing.T) {
	root := seedContent(t)
	srv := newTestServer(t, testConfig(root))
	h := srv.Handler()
	writeMemo(t, root, "20240104000000.md", "Fresh #new\n")
	if err := srv.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if rec := get(t, h, "/m/20240104000000"); rec.Code != http.StatusOK {
		t.Fatalf("expected new memo after reload, got %d", rec.Code)
	}

	writeMemo(t, root, "sub/20240104000000.md", "dup\n")
	if err := srv.Reload(context.Background()); err == nil {
		t.Fatal("expected duplicate slug error")
	}
	if rec := get(t, h, "/m/20240104000000"); rec.Code != http.StatusOK {
		t.Fatalf("expected previous snapshot to keep serving, got %d", rec.Code)
	}
}

func TestNotLoaded(t *testing.T) {
	cfg := testConfig(t.TempDir())
	srv, err := NewServer(cfg, &site.Loader{ContentPath: cfg.ContentPath})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	if rec := get(t, srv.Handler(), "/"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before load, got %d", rec.Code)
	}
	if rec := get(t, srv.Handler(), "/healthz"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected unhealthy before load, got %d", rec.Code)
	}
}
