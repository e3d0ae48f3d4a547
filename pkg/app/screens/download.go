package screens

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/kerbaras/mangodl/pkg/app/components"
	"github.com/kerbaras/mangodl/pkg/app/styles"
	"github.com/kerbaras/mangodl/pkg/services"
)

// Executor runs a download session and reports progress on a channel.
type Executor interface {
	Execute(ctx context.Context, s *services.Session, sel services.Selection) (*services.Report, error)
	GetProgressChannel() <-chan services.DownloadProgress
}

// DownloadScreen runs one download and follows its progress until the
// report is ready.
type DownloadScreen struct {
	ctx     context.Context
	cancel  context.CancelFunc
	exec    Executor
	session *services.Session
	sel     services.Selection

	tracker    *components.ProgressTracker
	cancelling bool
	finished   bool
	report     *services.Report
	err        error
}

func NewDownloadScreen(ctx context.Context, exec Executor, session *services.Session, sel services.Selection) *DownloadScreen {
	ctx, cancel := context.WithCancel(ctx)
	return &DownloadScreen{
		ctx:     ctx,
		cancel:  cancel,
		exec:    exec,
		session: session,
		sel:     sel,
		tracker: components.NewProgressTracker(80, len(sel.Apply(session.Staged))),
	}
}

// Result is the report of a finished run, or the error that stopped it.
func (s *DownloadScreen) Result() (*services.Report, error) {
	return s.report, s.err
}

func (s *DownloadScreen) Init() tea.Cmd {
	return tea.Batch(s.run, s.listenForProgress)
}

func (s *DownloadScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.tracker.SetWidth(msg.Width)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" && !s.finished {
			// The run stops at the next page boundary and still reports.
			s.cancelling = true
			s.cancel()
		}

	case services.DownloadProgress:
		s.tracker.Update(msg)
		return s, s.listenForProgress

	case downloadFinishedMsg:
		s.finished = true
		s.report = msg.report
		s.err = msg.err
		s.cancel()
		return s, tea.Quit
	}
	return s, nil
}

func (s *DownloadScreen) View() string {
	header := styles.TitleStyle.Render(fmt.Sprintf("⬇ Downloading %s", s.session.Manga.Name))

	switch {
	case s.finished && s.err != nil:
		return header + "\n" + styles.StatusError.Render(fmt.Sprintf("Error: %s", s.err)) + "\n"
	case s.finished:
		status := s.report.Status()
		return header + "\n" + styles.StatusStyle(status).Render("Run "+status) + "\n"
	}

	view := header + "\n" + s.tracker.View()
	if s.cancelling {
		view += styles.StatusWarning.Render("Cancelling...") + "\n"
	} else {
		view += styles.HelpStyle.Render("ctrl+c: cancel") + "\n"
	}
	return view
}

type downloadFinishedMsg struct {
	report *services.Report
	err    error
}

func (s *DownloadScreen) run() tea.Msg {
	report, err := s.exec.Execute(s.ctx, s.session, s.sel)
	return downloadFinishedMsg{report: report, err: err}
}

func (s *DownloadScreen) listenForProgress() tea.Msg {
	progress, ok := <-s.exec.GetProgressChannel()
	if !ok {
		return nil
	}
	return progress
}
