package memo

import (
	"strings"
	"testing"
)

func TestRendererKeepsTagMarkers(t *testing.T) {
	r := NewRenderer("")
	out, err := r.Render(LinkifyTags("Had coffee #morning"))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, `<button type="submit" name="tag" value="morning" class="memo-tag tag-link" data-tag="morning">#morning</button>`) {
		t.Fatalf("expected tag marker in output, got %q", out)
	}
}

func TestRendererKeepsCodeHashesLiteral(t *testing.T) {
	r := NewRenderer("")
	out, err := r.Render(LinkifyTags("run `git log #123` now #ok\n\n    int x; #define\n"))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, "<code>git log #123</code>") {
		t.Fatalf("expected code span untouched, got %q", out)
	}
	if !strings.Contains(out, "<pre><code>int x; #define\n</code></pre>") {
		t.Fatalf("expected indented code untouched, got %q", out)
	}
	if strings.Contains(out, "&lt;button") {
		t.Fatalf("expected no escaped markers, got %q", out)
	}
	if strings.Count(out, `class="memo-tag tag-link"`) != 1 {
		t.Fatalf("expected one marker, got %q", out)
	}
}

func TestRendererHighlightsFencedCode(t *testing.T) {
	r := NewRenderer("monokai")
	out, err := r.Render("```go\nfunc main() {}\n```\n")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, `class="chroma"`) {
		t.Fatalf("expected chroma markup, got %q", out)
	}
	if !strings.Contains(out, "main") {
		t.Fatalf("expected code text, got %q", out)
	}
}

func TestRendererVersionTracksStyle(t *testing.T) {
	a := NewRenderer("github").Version()
	b := NewRenderer("monokai").Version()
	if a == b {
		t.Fatalf("expected different versions, got %q for both", a)
	}
}

func TestRendererWriteCSS(t *testing.T) {
	var b strings.Builder
	if err := NewRenderer("").WriteCSS(&b); err != nil {
		t.Fatalf("write css: %v", err)
	}
	if !strings.Contains(b.String(), ".chroma") {
		t.Fatalf("expected chroma css, got %q", b.String())
	}
}
