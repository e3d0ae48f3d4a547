package screens

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/kerbaras/mangodl/pkg/services"
)

type screenType int

const (
	detailsView screenType = iota
	downloadView
)

// RootScreen walks one session from chapter selection to the finished
// download.
type RootScreen struct {
	ctx     context.Context
	exec    Executor
	session *services.Session

	currentView screenType
	details     *DetailsScreen
	download    *DownloadScreen

	width  int
	height int
}

func NewRootScreen(ctx context.Context, exec Executor, session *services.Session, forceNameless bool) *RootScreen {
	return &RootScreen{
		ctx:         ctx,
		exec:        exec,
		session:     session,
		currentView: detailsView,
		details:     NewDetailsScreen(session, forceNameless),
	}
}

// Cancelled reports whether the user left before a download started.
func (r *RootScreen) Cancelled() bool {
	return r.download == nil && r.details.Cancelled()
}

// Result returns the download outcome; both are nil when nothing ran.
func (r *RootScreen) Result() (*services.Report, error) {
	if r.download == nil {
		return nil, nil
	}
	return r.download.Result()
}

func (r *RootScreen) Init() tea.Cmd {
	return r.details.Init()
}

func (r *RootScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		r.width = msg.Width
		r.height = msg.Height

	case selectionMsg:
		r.download = NewDownloadScreen(r.ctx, r.exec, r.session, msg.selection)
		if r.width > 0 {
			r.download.Update(tea.WindowSizeMsg{Width: r.width, Height: r.height})
		}
		r.currentView = downloadView
		return r, r.download.Init()
	}

	var cmd tea.Cmd
	switch r.currentView {
	case detailsView:
		_, cmd = r.details.Update(msg)
	case downloadView:
		_, cmd = r.download.Update(msg)
	}
	return r, cmd
}

func (r *RootScreen) View() string {
	if r.currentView == downloadView {
		return r.download.View()
	}
	return r.details.View()
}
