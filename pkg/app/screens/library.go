package screens

import (
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/kerbaras/mangodl/pkg/app/styles"
	"github.com/kerbaras/mangodl/pkg/data"
)

// Library is the part of the download library the screen browses.
type Library interface {
	ListMangas() ([]*data.Manga, error)
	GetMangaWithChapterCount(id string) (*data.Manga, int, int, error)
	DeleteManga(id string) error
}

// Planner renders the volume plan of a library manga.
type Planner func(mangaID string) (string, error)

type LibraryScreen struct {
	repo   Library
	plan   Planner
	table  table.Model
	mangas []*data.Manga
	detail string
	width  int
	height int
	err    error
}

func NewLibraryScreen(repo Library, plan Planner) *LibraryScreen {
	t := table.New(
		table.WithColumns(libraryColumns(80)),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	st := table.DefaultStyles()
	st.Header = st.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.Muted).
		BorderBottom(true).
		Bold(true)
	st.Selected = st.Selected.Foreground(styles.Primary).Bold(true)
	t.SetStyles(st)

	return &LibraryScreen{repo: repo, plan: plan, table: t}
}

func libraryColumns(width int) []table.Column {
	title := max(20, width-48)
	return []table.Column{
		{Title: "ID", Width: 10},
		{Title: "Title", Width: title},
		{Title: "Status", Width: 12},
		{Title: "Chapters", Width: 14},
	}
}

func (s *LibraryScreen) Init() tea.Cmd {
	return s.loadLibrary
}

func (s *LibraryScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.height = msg.Height
		s.table.SetColumns(libraryColumns(msg.Width))
		s.table.SetHeight(max(5, msg.Height/2))
		return s, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return s, tea.Quit
		case "r":
			return s, s.loadLibrary
		case "enter", "v":
			if m := s.selected(); m != nil {
				return s, s.loadPlan(m.ID)
			}
			return s, nil
		case "d":
			if m := s.selected(); m != nil {
				return s, s.deleteManga(m.ID)
			}
			return s, nil
		}

	case libraryLoadedMsg:
		s.err = msg.err
		s.mangas = msg.mangas
		s.table.SetRows(msg.rows)
		if s.table.Cursor() >= len(msg.rows) {
			s.table.SetCursor(max(0, len(msg.rows)-1))
		}
		return s, nil

	case planLoadedMsg:
		s.err = msg.err
		s.detail = msg.plan
		return s, nil

	case mangaDeletedMsg:
		if msg.err != nil {
			s.err = msg.err
		}
		s.detail = ""
		return s, s.loadLibrary
	}

	var cmd tea.Cmd
	s.table, cmd = s.table.Update(msg)
	return s, cmd
}

func (s *LibraryScreen) selected() *data.Manga {
	i := s.table.Cursor()
	if i < 0 || i >= len(s.mangas) {
		return nil
	}
	return s.mangas[i]
}

func (s *LibraryScreen) View() string {
	header := styles.TitleStyle.Render("📚 Manga Library")

	var errorMsg string
	if s.err != nil {
		errorMsg = styles.StatusError.Render(fmt.Sprintf("Error: %s", s.err)) + "\n\n"
	}

	body := s.table.View()
	if len(s.mangas) == 0 {
		body = styles.MutedStyle.Render("No manga in library")
	}

	help := styles.HelpStyle.Render(
		"↑/k ↓/j: navigate • enter/v: volume plan • d: delete • r: refresh • q: quit",
	)

	content := fmt.Sprintf("%s\n\n%s%s\n", header, errorMsg, body)
	if s.detail != "" {
		content += "\n" + s.detail + "\n"
	}
	return content + help
}

type libraryLoadedMsg struct {
	mangas []*data.Manga
	rows   []table.Row
	err    error
}

type planLoadedMsg struct {
	plan string
	err  error
}

type mangaDeletedMsg struct {
	err error
}

func (s *LibraryScreen) loadLibrary() tea.Msg {
	mangas, err := s.repo.ListMangas()
	if err != nil {
		return libraryLoadedMsg{err: err}
	}

	rows := make([]table.Row, len(mangas))
	for i, manga := range mangas {
		_, total, downloaded, err := s.repo.GetMangaWithChapterCount(manga.ID)
		if err != nil {
			return libraryLoadedMsg{err: err}
		}
		status := manga.Status
		if status == "" {
			status = "ready"
		}
		rows[i] = table.Row{manga.ID, manga.Name, status, fmt.Sprintf("%d / %d", downloaded, total)}
	}
	return libraryLoadedMsg{mangas: mangas, rows: rows}
}

func (s *LibraryScreen) loadPlan(mangaID string) tea.Cmd {
	return func() tea.Msg {
		plan, err := s.plan(mangaID)
		return planLoadedMsg{plan: plan, err: err}
	}
}

func (s *LibraryScreen) deleteManga(mangaID string) tea.Cmd {
	return func() tea.Msg {
		return mangaDeletedMsg{err: s.repo.DeleteManga(mangaID)}
	}
}
