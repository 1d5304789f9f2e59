// Package tui is a terminal browser over the memo feed.
package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"moire/internal/feed"
	"moire/internal/memo"
)

type memoItem struct {
	memo memo.Memo
	text string
}

func (i memoItem) Title() string       { return i.memo.Slug }
func (i memoItem) Description() string { return "" }
func (i memoItem) FilterValue() string { return i.text }

type memoDelegate struct{}

func (d memoDelegate) Height() int                               { return 2 }
func (d memoDelegate) Spacing() int                              { return 0 }
func (d memoDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }
func (d memoDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, _ := item.(memoItem)
	header := it.memo.Date.Format("2006-01-02 15:04")
	if it.memo.Title != "" {
		header += "  " + it.memo.Title
	}
	for _, tag := range it.memo.Tags {
		header += " " + tagStyle.Render("#"+tag)
	}
	prefix := "  "
	if index == m.Index() {
		prefix = selectedStyle.Render("> ")
	}
	width := m.Width() - 4
	if width < 10 {
		width = 10
	}
	fmt.Fprintln(w, prefix+header)
	fmt.Fprint(w, "  "+mutedStyle.Render(truncate(it.text, width)))
}

var (
	searchKey   = key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search"))
	clearKey    = key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear search"))
	tagKey      = key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "next tag"))
	clearTagKey = key.NewBinding(key.WithKeys("T"), key.WithHelp("T", "clear tag"))
	moreKey     = key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "load more"))
	expandKey   = key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "expand"))
	quitKey     = key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit"))
)

// Model is the bubbletea model for browsing a feed.List.
type Model struct {
	feed      *feed.List
	title     string
	list      list.Model
	search    textinput.Model
	searching bool
	width     int
	height    int
}

func New(l *feed.List, title string) Model {
	lm := list.New(nil, memoDelegate{}, 80, 20)
	lm.SetShowHelp(true)
	lm.SetShowStatusBar(true)
	lm.SetFilteringEnabled(false)
	lm.SetShowTitle(false)
	lm.Styles.HelpStyle = helpStyle
	lm.SetStatusBarItemName("memo", "memos")
	bindings := func() []key.Binding {
		return []key.Binding{searchKey, clearKey, tagKey, clearTagKey, moreKey, expandKey}
	}
	lm.AdditionalShortHelpKeys = bindings
	lm.AdditionalFullHelpKeys = bindings
	lm.KeyMap.Quit = quitKey

	ti := textinput.New()
	ti.Prompt = "/ "
	ti.Placeholder = "search memos"
	ti.CharLimit = 200

	m := Model{feed: l, title: title, list: lm, search: ti, width: 80, height: 24}
	m.sync()
	return m
}

// Run blocks until the user quits.
func Run(l *feed.List, title string, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	_, err := tea.NewProgram(New(l, title), opts...).Run()
	return err
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if size, ok := msg.(tea.WindowSizeMsg); ok {
		m.width, m.height = size.Width, size.Height
		m.resize()
		return m, nil
	}

	if m.searching {
		if k, ok := msg.(tea.KeyMsg); ok {
			switch k.String() {
			case "enter":
				m.feed.SetSearchQuery(m.search.Value())
				m.searching = false
				m.search.Blur()
				m.sync()
				return m, nil
			case "esc":
				m.searching = false
				m.search.SetValue(m.feed.SearchQuery())
				m.search.Blur()
				return m, nil
			}
		}
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		return m, cmd
	}

	if k, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(k, quitKey):
			return m, tea.Quit
		case key.Matches(k, searchKey):
			m.searching = true
			m.search.SetValue(m.feed.SearchQuery())
			m.search.CursorEnd()
			return m, m.search.Focus()
		case key.Matches(k, clearKey):
			m.feed.ClearSearchQuery()
			m.search.SetValue("")
			m.sync()
			return m, nil
		case key.Matches(k, tagKey):
			if tags := m.feed.AllTags(); len(tags) > 0 {
				m.feed.SelectTag(nextTag(tags, m.feed.SelectedTag()))
				m.sync()
			}
			return m, nil
		case key.Matches(k, clearTagKey):
			if tag := m.feed.SelectedTag(); tag != "" {
				m.feed.SelectTag(tag)
				m.sync()
			}
			return m, nil
		case key.Matches(k, moreKey):
			if m.feed.HasMore() {
				idx := m.list.Index()
				m.feed.LoadMore()
				m.sync()
				m.list.Select(idx)
			}
			return m, nil
		case key.Matches(k, expandKey):
			if it, ok := m.list.SelectedItem().(memoItem); ok {
				m.feed.ToggleExpansion(it.memo.Slug)
			}
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n")
	if m.searching {
		b.WriteString(m.search.View())
		b.WriteString("\n")
	}
	b.WriteString(m.list.View())
	b.WriteString("\n")
	b.WriteString(m.detail())
	return b.String()
}

func (m Model) header() string {
	parts := []string{titleStyle.Render(m.title)}
	if tag := m.feed.SelectedTag(); tag != "" {
		parts = append(parts, tagStyle.Render("#"+tag))
	}
	if q := m.feed.SearchQuery(); q != "" {
		parts = append(parts, accentStyle.Render(fmt.Sprintf("%q", q)))
	}
	shown := len(m.feed.Visible())
	parts = append(parts, mutedStyle.Render(fmt.Sprintf("%d of %d", shown, len(m.feed.Filtered()))))
	return strings.Join(parts, "  ")
}

// detail shows the selected memo, clamped to the preview limit unless it
// has been expanded.
func (m Model) detail() string {
	it, ok := m.list.SelectedItem().(memoItem)
	if !ok {
		return panelStyle.Render(mutedStyle.Render("No memos"))
	}
	text := it.text
	if m.feed.ShouldClamp(it.memo) {
		text = truncate(text, m.feed.Config().PreviewCharacterLimit) + "\n" + helpStyle.Render("enter to expand")
	}
	width := m.width - 4
	if width < 20 {
		width = 20
	}
	return panelStyle.Width(width).Render(text)
}

func (m *Model) sync() {
	visible := m.feed.Visible()
	items := make([]list.Item, 0, len(visible))
	for _, v := range visible {
		items = append(items, memoItem{memo: v, text: feed.PlainText(v.Content)})
	}
	m.list.SetItems(items)
	if m.list.Index() >= len(items) {
		m.list.Select(0)
	}
}

func (m *Model) resize() {
	listHeight := m.height - 10
	if listHeight < 4 {
		listHeight = 4
	}
	m.list.SetSize(m.width, listHeight)
}

// nextTag cycles through tags in order, then back to no tag.
func nextTag(tags []string, current string) string {
	if current == "" {
		return tags[0]
	}
	for i, tag := range tags {
		if tag == current {
			if i+1 < len(tags) {
				return tags[i+1]
			}
			// Selecting the current tag again clears it.
			return current
		}
	}
	return tags[0]
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
