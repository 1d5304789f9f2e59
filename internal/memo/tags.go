package memo

import (
	"html"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

var (
	tagTokenRe = regexp.MustCompile(`#([^\s\p{Z}#.,!?;:()\[\]"']+)`)

	// tagParser must build the same tree as the Renderer so tags are found
	// in exactly the text that renders as prose.
	tagParser = goldmark.New(goldmark.WithExtensions(extension.GFM, extension.Linkify)).Parser()
)

// tagSpan is one "#tag" token; start and end are byte offsets in the source.
type tagSpan struct {
	start, end int
	name       string
}

// ExtractTags returns the distinct hashtags of a memo in first-seen order.
// Code, links and image descriptions are ignored.
func ExtractTags(markdown string) []string {
	seen := map[string]struct{}{}
	var tags []string
	for _, s := range scanTags([]byte(markdown)) {
		if _, ok := seen[s.name]; ok {
			continue
		}
		seen[s.name] = struct{}{}
		tags = append(tags, s.name)
	}
	return tags
}

// LinkifyTags wraps every hashtag ExtractTags would report in a clickable
// marker carrying the tag in data-tag.
func LinkifyTags(markdown string) string {
	source := []byte(markdown)
	spans := scanTags(source)
	if len(spans) == 0 {
		return markdown
	}
	var b strings.Builder
	last := 0
	for _, s := range spans {
		b.Write(source[last:s.start])
		b.WriteString(tagButton(s.name))
		last = s.end
	}
	b.Write(source[last:])
	return b.String()
}

// tagButton submits the enclosing form with the tag selected.
func tagButton(tag string) string {
	escaped := html.EscapeString(tag)
	return `<button type="submit" name="tag" value="` + escaped + `" class="memo-tag tag-link" data-tag="` + escaped + `">#` + escaped + `</button>`
}

// scanTags parses source and returns the tag tokens found in its prose
// text nodes, in document order.
func scanTags(source []byte) []tagSpan {
	doc := tagParser.Parse(text.NewReader(source))
	var spans []tagSpan
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindCodeSpan, ast.KindCodeBlock, ast.KindFencedCodeBlock,
			ast.KindHTMLBlock, ast.KindRawHTML,
			ast.KindLink, ast.KindAutoLink, ast.KindImage:
			return ast.WalkSkipChildren, nil
		case ast.KindText:
			t := n.(*ast.Text)
			if !t.IsRaw() {
				spans = append(spans, textTags(source, t.Segment.Start, t.Segment.Stop)...)
			}
		}
		return ast.WalkContinue, nil
	})
	return spans
}

func textTags(source []byte, start, stop int) []tagSpan {
	var spans []tagSpan
	for _, m := range tagTokenRe.FindAllSubmatchIndex(source[start:stop], -1) {
		at := start + m[0]
		if !tagBoundary(source, at) {
			continue
		}
		spans = append(spans, tagSpan{
			start: at,
			end:   start + m[1],
			name:  string(source[start+m[2] : start+m[3]]),
		})
	}
	return spans
}

// tagBoundary reports whether a tag may start at offset at: the start of
// the source or right after whitespace.
func tagBoundary(source []byte, at int) bool {
	if at == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRune(source[:at])
	return unicode.IsSpace(r) || unicode.Is(unicode.Z, r)
}
