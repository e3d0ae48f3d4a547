package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/kerbaras/mangodl/pkg/app/styles"
	"github.com/kerbaras/mangodl/pkg/data"
)

// MangaListItem is one search result. Titles already in the library carry
// their chapter counts.
type MangaListItem struct {
	Manga           *data.Manga
	InLibrary       bool
	ChapterCount    int
	DownloadedCount int
}

// cardHeight is the rendered height of one card, borders included.
const cardHeight = 5

type MangaList struct {
	Items         []MangaListItem
	SelectedIndex int
	Width         int
	Height        int
}

func NewMangaList() *MangaList {
	return &MangaList{
		Items:         []MangaListItem{},
		SelectedIndex: 0,
		Width:         80,
		Height:        20,
	}
}

func (m *MangaList) SetItems(items []MangaListItem) {
	m.Items = items
	if m.SelectedIndex >= len(items) && len(items) > 0 {
		m.SelectedIndex = len(items) - 1
	}
	if len(items) == 0 {
		m.SelectedIndex = 0
	}
}

func (m *MangaList) Next() {
	if len(m.Items) == 0 {
		return
	}
	m.SelectedIndex++
	if m.SelectedIndex >= len(m.Items) {
		m.SelectedIndex = 0
	}
}

func (m *MangaList) Prev() {
	if len(m.Items) == 0 {
		return
	}
	m.SelectedIndex--
	if m.SelectedIndex < 0 {
		m.SelectedIndex = len(m.Items) - 1
	}
}

func (m *MangaList) Selected() *MangaListItem {
	if len(m.Items) == 0 || m.SelectedIndex >= len(m.Items) {
		return nil
	}
	return &m.Items[m.SelectedIndex]
}

// visible returns the window of items that fits in Height, keeping the
// selection on screen.
func (m *MangaList) visible() (int, int) {
	per := max(1, m.Height/cardHeight)
	if len(m.Items) <= per {
		return 0, len(m.Items)
	}
	start := max(0, m.SelectedIndex-per/2)
	end := start + per
	if end > len(m.Items) {
		end = len(m.Items)
		start = end - per
	}
	return start, end
}

func (m *MangaList) View() string {
	if len(m.Items) == 0 {
		emptyMsg := styles.MutedStyle.Render("No results")
		return lipgloss.Place(m.Width, m.Height, lipgloss.Center, lipgloss.Center, emptyMsg)
	}

	var b strings.Builder
	start, end := m.visible()
	for i := start; i < end; i++ {
		item := m.Items[i]
		cardStyle := styles.CardStyle
		if i == m.SelectedIndex {
			cardStyle = styles.ActiveCardStyle
		}

		title := styles.SelectedStyle.Render(item.Manga.Name)

		desc := strings.Join(strings.Fields(item.Manga.Description), " ")
		if len(desc) > 80 {
			desc = desc[:77] + "..."
		}

		info := fmt.Sprintf("ID: %s", item.Manga.ID)
		if item.InLibrary {
			info = fmt.Sprintf("%s • in library, %d / %d chapters downloaded",
				info, item.DownloadedCount, item.ChapterCount)
		}

		cardContent := lipgloss.JoinVertical(
			lipgloss.Left,
			title,
			styles.TextStyle.Render(desc),
			styles.MutedStyle.Render(info),
		)

		b.WriteString(cardStyle.Width(m.Width - 4).Render(cardContent))
		b.WriteString("\n")
	}

	if end-start < len(m.Items) {
		b.WriteString(styles.MutedStyle.Render(
			fmt.Sprintf("Showing %d-%d of %d results", start+1, end, len(m.Items)),
		))
	}
	return b.String()
}
