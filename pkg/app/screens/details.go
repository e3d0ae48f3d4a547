package screens

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/kerbaras/mangodl/pkg/app/styles"
	"github.com/kerbaras/mangodl/pkg/data"
	"github.com/kerbaras/mangodl/pkg/services"
)

type selectionMode int

const (
	modeChoose selectionMode = iota
	modeRange
	modeNameless
	modeConfirm
)

var errEmptySelection = errors.New("no chapter matches the selection")

// listRows is how many chapters the listing shows at once.
const listRows = 10

// DetailsScreen shows a prepared manga and asks which chapters to download.
type DetailsScreen struct {
	session       *services.Session
	forceNameless bool

	mode      selectionMode
	input     textinput.Model
	selection services.Selection
	selected  []data.Chapter
	offset    int

	width  int
	height int
	err    error

	cancelled bool
}

// NewDetailsScreen builds the selection screen. With forceNameless set the
// nameless chapters are included without asking.
func NewDetailsScreen(session *services.Session, forceNameless bool) *DetailsScreen {
	ti := textinput.New()
	ti.Placeholder = "1-10, 12, 15.5-20"
	ti.CharLimit = 200
	ti.Width = 40

	return &DetailsScreen{
		session:       session,
		forceNameless: forceNameless,
		input:         ti,
	}
}

func (s *DetailsScreen) Cancelled() bool {
	return s.cancelled
}

func (s *DetailsScreen) Selection() services.Selection {
	return s.selection
}

func (s *DetailsScreen) Init() tea.Cmd {
	return nil
}

func (s *DetailsScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.height = msg.Height
		return s, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			s.cancelled = true
			return s, tea.Quit
		}
		switch s.mode {
		case modeChoose:
			return s.updateChoose(msg)
		case modeRange:
			return s.updateRange(msg)
		case modeNameless:
			return s.updateNameless(msg)
		case modeConfirm:
			return s.updateConfirm(msg)
		}
	}
	return s, nil
}

func (s *DetailsScreen) updateChoose(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "a":
		s.selection = services.SelectAll(false)
		return s.afterRanges()
	case "r":
		s.mode = modeRange
		s.err = nil
		s.input.Focus()
		return s, textinput.Blink
	case "q", "esc":
		s.cancelled = true
		return s, tea.Quit
	case "up", "k":
		s.offset = max(0, s.offset-1)
	case "down", "j":
		s.offset = min(max(0, len(s.session.Staged)-listRows), s.offset+1)
	}
	return s, nil
}

func (s *DetailsScreen) updateRange(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		ranges, err := services.ParseRanges(s.input.Value())
		if err != nil {
			s.err = err
			return s, nil
		}
		s.input.Blur()
		s.selection = services.Selection{Ranges: ranges}
		return s.afterRanges()
	case "esc":
		s.input.Blur()
		s.mode = modeChoose
		s.err = nil
		return s, nil
	}
	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	return s, cmd
}

func (s *DetailsScreen) updateNameless(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y":
		s.selection.Nameless = true
	case "n":
		s.selection.Nameless = false
	case "esc":
		s.mode = modeChoose
		return s, nil
	default:
		return s, nil
	}
	return s.confirm()
}

func (s *DetailsScreen) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "enter":
		sel := s.selection
		return s, func() tea.Msg { return selectionMsg{selection: sel} }
	case "n", "esc":
		s.mode = modeChoose
		s.selection = services.Selection{}
		s.selected = nil
	}
	return s, nil
}

// afterRanges asks about nameless chapters when there are any and the
// choice was not made on the command line.
func (s *DetailsScreen) afterRanges() (tea.Model, tea.Cmd) {
	s.selection.Nameless = s.forceNameless
	if len(s.session.Nameless) > 0 && !s.forceNameless {
		s.mode = modeNameless
		return s, nil
	}
	return s.confirm()
}

func (s *DetailsScreen) confirm() (tea.Model, tea.Cmd) {
	s.selected = s.selection.Apply(s.session.Staged)
	if len(s.selected) == 0 {
		s.err = errEmptySelection
		s.mode = modeChoose
		s.selection = services.Selection{}
		return s, nil
	}
	s.err = nil
	s.mode = modeConfirm
	return s, nil
}

func (s *DetailsScreen) View() string {
	m := s.session.Manga
	header := styles.TitleStyle.Render(fmt.Sprintf("📖 %s", m.Name))

	var errorMsg string
	if s.err != nil {
		errorMsg = styles.StatusError.Render(fmt.Sprintf("Error: %s", s.err)) + "\n\n"
	}

	help := styles.HelpStyle.Render("↑/k ↓/j: scroll • ctrl+c: quit")

	return fmt.Sprintf("%s\n\n%s\n%s\n%s%s\n%s",
		header,
		s.renderInfo(),
		s.renderChapters(),
		errorMsg,
		s.renderPrompt(),
		help,
	)
}

func (s *DetailsScreen) renderInfo() string {
	m := s.session.Manga
	desc := strings.Join(strings.Fields(m.Description), " ")
	if len(desc) > 200 {
		desc = desc[:197] + "..."
	}

	lines := []string{styles.TextStyle.Render(desc), ""}
	numbers := s.session.Numbers
	if len(numbers) > 0 {
		lines = append(lines, styles.MutedStyle.Render(fmt.Sprintf(
			"%d chapters, from %s to %s", len(numbers), numbers[0], numbers[len(numbers)-1])))
	}
	if len(s.session.Missing) > 0 {
		missing := make([]string, len(s.session.Missing))
		for i, n := range s.session.Missing {
			missing[i] = fmt.Sprint(n)
		}
		lines = append(lines, styles.StatusWarning.Render("Missing: "+strings.Join(missing, ", ")))
	}
	if len(s.session.Nameless) > 0 {
		lines = append(lines, styles.MutedStyle.Render(
			fmt.Sprintf("%d chapter(s) without a number", len(s.session.Nameless))))
	}

	width := s.width - 4
	if width <= 0 {
		width = 76
	}
	return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (s *DetailsScreen) renderChapters() string {
	staged := s.session.Staged
	if len(staged) == 0 {
		return styles.MutedStyle.Render("No chapters available")
	}

	picked := make(map[string]struct{}, len(s.selected))
	for _, ch := range s.selected {
		picked[ch.ID] = struct{}{}
	}

	var b strings.Builder
	end := min(len(staged), s.offset+listRows)
	for i := s.offset; i < end; i++ {
		ch := staged[i]
		text := fmt.Sprintf("Ch. %s", ch.Label())
		if ch.Volume != nil {
			text = fmt.Sprintf("Vol. %s, %s", ch.Volume, text)
		}
		if ch.Title != "" && ch.Number != nil {
			text = fmt.Sprintf("%s: %s", text, ch.Title)
		}

		if _, ok := picked[ch.ID]; ok {
			b.WriteString(styles.SelectedStyle.Render("● " + text))
		} else {
			b.WriteString(styles.MutedStyle.Render("○ " + text))
		}
		b.WriteString("\n")
	}
	if len(staged) > listRows {
		b.WriteString(styles.MutedStyle.Render(
			fmt.Sprintf("Showing %d-%d of %d chapters", s.offset+1, end, len(staged))))
		b.WriteString("\n")
	}
	return b.String()
}

func (s *DetailsScreen) renderPrompt() string {
	switch s.mode {
	case modeRange:
		return styles.PromptStyle.Render("Chapters to download:") + "\n" +
			styles.FocusedInputStyle.Render(s.input.View())
	case modeNameless:
		return styles.PromptStyle.Render(fmt.Sprintf(
			"Also download the %d chapter(s) without a number? [y/n]", len(s.session.Nameless)))
	case modeConfirm:
		return styles.PromptStyle.Render(fmt.Sprintf(
			"Download %d chapter(s)? [y/n]", len(s.selected)))
	default:
		return styles.PromptStyle.Render("Download [a]ll chapters, a [r]ange, or [q]uit?")
	}
}

// selectionMsg carries a confirmed selection to the root screen.
type selectionMsg struct {
	selection services.Selection
}
