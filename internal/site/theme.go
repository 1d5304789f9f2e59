package site

import (
	"bytes"
	"embed"
	"fmt"

	"moire/internal/memo"
)

//go:embed themes/*.css
var themeFS embed.FS

// ThemeCSS concatenates the named theme, the shared layout and the code
// highlighting rules of r.
func ThemeCSS(theme string, r *memo.Renderer) ([]byte, error) {
	var buf bytes.Buffer
	vars, err := themeFS.ReadFile("themes/" + theme + ".css")
	if err != nil {
		return nil, fmt.Errorf("unknown theme %q", theme)
	}
	shared, err := themeFS.ReadFile("themes/base.css")
	if err != nil {
		return nil, err
	}
	buf.Write(vars)
	buf.WriteByte('\n')
	buf.Write(shared)
	buf.WriteByte('\n')
	if r != nil {
		if err := r.WriteCSS(&buf); err != nil {
			return nil, fmt.Errorf("code style css: %w", err)
		}
	}
	return buf.Bytes(), nil
}
