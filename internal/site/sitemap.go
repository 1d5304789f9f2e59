package site

import (
	"fmt"
	"html"
	"strings"
	"time"

	"moire/internal/memo"
)

// BuildSitemap lists the site root and one entry per memo.
func BuildSitemap(siteURL string, memos []memo.Memo) string {
	base := strings.TrimRight(strings.TrimSpace(siteURL), "/")
	if base == "" {
		base = "http://localhost"
	}
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">` + "\n")
	writeSitemapURL(&b, base, "daily", "1.0", time.Time{})
	for _, m := range memos {
		writeSitemapURL(&b, base+"/m/"+m.Slug, "weekly", "0.8", m.Date)
	}
	b.WriteString("</urlset>\n")
	return b.String()
}

func writeSitemapURL(b *strings.Builder, loc, changeFreq, priority string, lastMod time.Time) {
	b.WriteString("  <url>\n")
	fmt.Fprintf(b, "    <loc>%s</loc>\n", html.EscapeString(loc))
	fmt.Fprintf(b, "    <changefreq>%s</changefreq>\n", changeFreq)
	fmt.Fprintf(b, "    <priority>%s</priority>\n", priority)
	if !lastMod.IsZero() {
		fmt.Fprintf(b, "    <lastmod>%s</lastmod>\n", lastMod.UTC().Format(time.RFC3339))
	}
	b.WriteString("  </url>\n")
}

func BuildRobots(siteURL string) string {
	base := strings.TrimRight(strings.TrimSpace(siteURL), "/")
	if base == "" {
		base = "http://localhost"
	}
	return "User-agent: *\nAllow: /\n\nSitemap: " + base + "/sitemap.xml\n"
}
