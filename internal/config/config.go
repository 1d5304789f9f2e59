package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ContentPath   string
	OutPath       string
	DataPath      string
	ListenAddr    string
	BasePath      string
	Site          Site
	CodeStyle     string
	Timezone      string
	Watch         bool
	WatchDebounce time.Duration
	AuthUser      string
	AuthPass      string
	Cache         bool
	PublishRemote string
	PublishBranch string
}

// Site holds the values shown in page heads and feeds.
type Site struct {
	Title                 string
	Author                string
	Description           string
	Keywords              string
	URL                   string
	Theme                 string
	PageSize              int
	PreviewCharacterLimit int
}

var themes = map[string]bool{"receipt": true, "bento": true}

func Load() Config {
	_ = loadEnvFile(envFileName)

	cfg := Config{
		ContentPath:   envOr("MOIRE_CONTENT_PATH", "memos"),
		OutPath:       envOr("MOIRE_OUT_PATH", "build"),
		DataPath:      envOr("MOIRE_DATA_PATH", ".moire"),
		ListenAddr:    envOr("MOIRE_LISTEN_ADDR", "127.0.0.1:8080"),
		BasePath:      resolveBasePath(),
		CodeStyle:     envOr("MOIRE_CODE_STYLE", "github"),
		Timezone:      os.Getenv("MOIRE_TIMEZONE"),
		AuthUser:      os.Getenv("MOIRE_AUTH_USER"),
		AuthPass:      os.Getenv("MOIRE_AUTH_PASS"),
		PublishRemote: os.Getenv("MOIRE_PUBLISH_REMOTE"),
		PublishBranch: envOr("MOIRE_PUBLISH_BRANCH", "gh-pages"),
		Site: Site{
			Title:       envOr("MOIRE_TITLE", "Moire"),
			Author:      os.Getenv("MOIRE_AUTHOR"),
			Description: os.Getenv("MOIRE_DESCRIPTION"),
			Keywords:    os.Getenv("MOIRE_KEYWORDS"),
			URL:         strings.TrimRight(envOr("MOIRE_URL", "http://localhost:8080"), "/"),
			Theme:       strings.ToLower(envOr("MOIRE_THEME", "receipt")),
		},
	}
	if !themes[cfg.Site.Theme] {
		cfg.Site.Theme = "receipt"
	}

	cfg.Site.PageSize = parseIntOr("MOIRE_PAGE_SIZE", 20)
	cfg.Site.PreviewCharacterLimit = parseIntOr("MOIRE_PREVIEW_LIMIT", 350)
	cfg.Watch = parseBoolOr("MOIRE_WATCH", false)
	cfg.WatchDebounce = parseDurationOr("MOIRE_WATCH_DEBOUNCE", 300*time.Millisecond)
	cfg.Cache = parseBoolOr("MOIRE_CACHE", true)
	return cfg
}

// Location resolves Timezone, falling back to the local zone.
func (c Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// resolveBasePath honors MOIRE_BASE_PATH even when empty. Otherwise a GitHub
// Actions build of a project pages repo is served under /<repo>.
func resolveBasePath() string {
	if v, ok := os.LookupEnv("MOIRE_BASE_PATH"); ok {
		return NormalizeBasePath(v)
	}
	owner, repo, _ := strings.Cut(os.Getenv("GITHUB_REPOSITORY"), "/")
	userPages := owner != "" && repo != "" && strings.EqualFold(repo, owner+".github.io")
	if os.Getenv("GITHUB_ACTIONS") == "true" && repo != "" && !userPages {
		return NormalizeBasePath(repo)
	}
	return ""
}

// NormalizeBasePath returns "" or a path with one leading slash and no
// trailing slash.
func NormalizeBasePath(p string) string {
	if p == "" || p == "/" {
		return ""
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return strings.TrimSuffix(p, "/")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func parseIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			return i
		}
	}
	return fallback
}

func parseBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
