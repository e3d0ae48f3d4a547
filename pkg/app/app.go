// Package app holds the interactive terminal programs: the search picker,
// chapter selection with download progress, and the library browser.
package app

import (
	"context"
	"errors"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/kerbaras/mangodl/pkg/app/components"
	"github.com/kerbaras/mangodl/pkg/app/screens"
	"github.com/kerbaras/mangodl/pkg/data"
	"github.com/kerbaras/mangodl/pkg/services"
)

// ErrCancelled is returned when the user leaves a prompt without choosing.
var ErrCancelled = errors.New("cancelled")

type App struct {
	in  io.Reader
	out io.Writer
}

// NewApp returns an App on the given terminal streams; nil means the
// process's own.
func NewApp(in io.Reader, out io.Writer) *App {
	return &App{in: in, out: out}
}

func (a *App) run(ctx context.Context, model tea.Model, altScreen bool) error {
	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if a.in != nil {
		opts = append(opts, tea.WithInput(a.in))
	}
	if a.out != nil {
		opts = append(opts, tea.WithOutput(a.out))
	}
	if altScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	_, err := tea.NewProgram(model, opts...).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// PickManga shows the search results for query and returns the manga the
// user picks. The user may search again from inside the picker.
func (a *App) PickManga(ctx context.Context, search screens.Searcher, query string, results []components.MangaListItem) (*data.Manga, error) {
	screen := screens.NewSearchScreen(ctx, search, query, results)
	if err := a.run(ctx, screen, true); err != nil {
		return nil, err
	}
	if screen.Cancelled() || screen.Chosen() == nil {
		return nil, ErrCancelled
	}
	return screen.Chosen(), nil
}

// Download asks which chapters of the session to fetch, runs the download
// with live progress and returns the report.
func (a *App) Download(ctx context.Context, exec screens.Executor, session *services.Session, forceNameless bool) (*services.Report, error) {
	root := screens.NewRootScreen(ctx, exec, session, forceNameless)
	if err := a.run(ctx, root, false); err != nil {
		return nil, err
	}
	if root.Cancelled() {
		return nil, ErrCancelled
	}
	report, err := root.Result()
	if report == nil && err == nil {
		return nil, ErrCancelled
	}
	return report, err
}

// Library browses the download library.
func (a *App) Library(ctx context.Context, repo screens.Library, plan screens.Planner) error {
	return a.run(ctx, screens.NewLibraryScreen(repo, plan), true)
}
