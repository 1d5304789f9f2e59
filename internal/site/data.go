package site

import (
	"encoding/json"
	"time"

	"moire/internal/memo"
)

type memoJSON struct {
	Slug    string   `json:"slug"`
	Title   string   `json:"title,omitempty"`
	Date    string   `json:"date"`
	Tags    []string `json:"tags"`
	Content string   `json:"content"`
}

// MemosJSON encodes memos for client scripts, in repository order.
func MemosJSON(memos []memo.Memo) ([]byte, error) {
	out := make([]memoJSON, 0, len(memos))
	for _, m := range memos {
		tags := m.Tags
		if tags == nil {
			tags = []string{}
		}
		out = append(out, memoJSON{
			Slug:    m.Slug,
			Title:   m.Title,
			Date:    m.Date.UTC().Format(time.RFC3339),
			Tags:    tags,
			Content: m.Content,
		})
	}
	return json.MarshalIndent(out, "", "  ")
}
