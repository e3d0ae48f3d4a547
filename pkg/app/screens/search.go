package screens

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/kerbaras/mangodl/pkg/app/components"
	"github.com/kerbaras/mangodl/pkg/app/styles"
	"github.com/kerbaras/mangodl/pkg/data"
)

// Searcher runs a title search and returns the results as list items.
type Searcher func(ctx context.Context, query string) ([]components.MangaListItem, error)

// SearchScreen lets the user pick one manga from search results, or search
// again.
type SearchScreen struct {
	ctx       context.Context
	search    Searcher
	input     textinput.Model
	list      *components.MangaList
	searching bool
	width     int
	height    int
	err       error

	chosen    *data.Manga
	cancelled bool
}

func NewSearchScreen(ctx context.Context, search Searcher, query string, items []components.MangaListItem) *SearchScreen {
	ti := textinput.New()
	ti.Placeholder = "Search manga..."
	ti.CharLimit = 100
	ti.Width = 50
	ti.SetValue(query)

	list := components.NewMangaList()
	list.SetItems(items)
	if len(items) == 0 {
		ti.Focus()
	}

	return &SearchScreen{
		ctx:    ctx,
		search: search,
		input:  ti,
		list:   list,
	}
}

// Chosen is the picked manga, nil until the user confirms one.
func (s *SearchScreen) Chosen() *data.Manga {
	return s.chosen
}

func (s *SearchScreen) Cancelled() bool {
	return s.cancelled
}

func (s *SearchScreen) Init() tea.Cmd {
	if s.input.Focused() {
		return textinput.Blink
	}
	return nil
}

func (s *SearchScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.height = msg.Height
		s.list.Width = msg.Width - 2
		s.list.Height = msg.Height - 12

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			s.cancelled = true
			return s, tea.Quit
		}
		if s.searching {
			return s, nil
		}

		if s.input.Focused() {
			switch msg.String() {
			case "enter":
				query := strings.TrimSpace(s.input.Value())
				if query != "" {
					s.searching = true
					s.err = nil
					return s, s.performSearch(query)
				}
				return s, nil
			case "esc":
				if len(s.list.Items) == 0 {
					s.cancelled = true
					return s, tea.Quit
				}
				s.input.Blur()
				return s, nil
			}
			s.input, cmd = s.input.Update(msg)
			return s, cmd
		}

		switch msg.String() {
		case "enter":
			if selected := s.list.Selected(); selected != nil {
				s.chosen = selected.Manga
				return s, tea.Quit
			}
		case "/":
			s.input.Focus()
			return s, textinput.Blink
		case "up", "k":
			s.list.Prev()
		case "down", "j":
			s.list.Next()
		case "esc", "q":
			s.cancelled = true
			return s, tea.Quit
		}

	case searchResultMsg:
		s.searching = false
		s.err = msg.err
		if msg.err == nil {
			s.list.SetItems(msg.results)
			s.list.SelectedIndex = 0
			if len(msg.results) > 0 {
				s.input.Blur()
			}
		}
	}

	return s, nil
}

func (s *SearchScreen) View() string {
	header := styles.TitleStyle.Render("🔍 Search Manga")

	inputStyle := styles.InputStyle
	if s.input.Focused() {
		inputStyle = styles.FocusedInputStyle
	}
	inputView := inputStyle.Render(s.input.View())

	var errorMsg string
	if s.err != nil {
		errorMsg = styles.StatusError.Render(fmt.Sprintf("Error: %s", s.err)) + "\n\n"
	}

	var resultsView string
	switch {
	case s.searching:
		resultsView = styles.StatusDownloading.Render("Searching...")
	case len(s.list.Items) > 0:
		resultsView = styles.SubtitleStyle.Render(fmt.Sprintf("Found %d results:", len(s.list.Items))) +
			"\n\n" + s.list.View()
	case s.input.Value() != "":
		resultsView = styles.MutedStyle.Render("No results found")
	}

	help := styles.HelpStyle.Render(
		"enter: search/select • /: new search • ↑/k ↓/j: navigate • esc: cancel",
	)

	return fmt.Sprintf("%s\n\n%s\n\n%s%s\n%s", header, inputView, errorMsg, resultsView, help)
}

type searchResultMsg struct {
	results []components.MangaListItem
	err     error
}

func (s *SearchScreen) performSearch(query string) tea.Cmd {
	return func() tea.Msg {
		results, err := s.search(s.ctx, query)
		return searchResultMsg{results: results, err: err}
	}
}
