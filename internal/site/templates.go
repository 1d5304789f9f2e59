package site

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

type Templates struct {
	all *template.Template
}

func MustParseTemplates() *Templates {
	t := template.New("").Funcs(template.FuncMap{
		"join": strings.Join,
		"dict": func(values ...any) (map[string]any, error) {
			if len(values)%2 != 0 {
				return nil, fmt.Errorf("dict requires even number of arguments")
			}
			out := make(map[string]any, len(values)/2)
			for i := 0; i < len(values); i += 2 {
				key, ok := values[i].(string)
				if !ok {
					return nil, fmt.Errorf("dict keys must be strings")
				}
				out[key] = values[i+1]
			}
			return out, nil
		},
	})
	t = template.Must(t.ParseFS(templateFS, "templates/*.html"))
	return &Templates{all: t}
}

// Render executes page.ContentTemplate and wraps the result in "base".
func (t *Templates) Render(w io.Writer, page Page) error {
	var content bytes.Buffer
	if err := t.all.ExecuteTemplate(&content, page.ContentTemplate, page); err != nil {
		return fmt.Errorf("render %s: %w", page.ContentTemplate, err)
	}
	page.ContentHTML = template.HTML(content.String())
	if err := t.all.ExecuteTemplate(w, "base", page); err != nil {
		return fmt.Errorf("render base: %w", err)
	}
	return nil
}

func (t *Templates) RenderBytes(page Page) ([]byte, error) {
	var buf bytes.Buffer
	if err := t.Render(&buf, page); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
