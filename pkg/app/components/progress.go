package components

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/kerbaras/mangodl/pkg/app/styles"
	"github.com/kerbaras/mangodl/pkg/services"
)

// ProgressTracker follows the chapters of one download run. Finished
// chapters leave the active list and advance the overall bar.
type ProgressTracker struct {
	downloads  map[string]*services.DownloadProgress
	overall    progress.Model
	total      int
	done       int
	serverless []string
	width      int
}

func NewProgressTracker(width, total int) *ProgressTracker {
	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = max(10, width-4)
	return &ProgressTracker{
		downloads: make(map[string]*services.DownloadProgress),
		overall:   bar,
		total:     total,
		width:     width,
	}
}

func (p *ProgressTracker) SetWidth(width int) {
	p.width = width
	p.overall.Width = max(10, width-4)
}

func (p *ProgressTracker) Update(prog services.DownloadProgress) {
	key := prog.ChapterNumber
	if key == "" {
		key = prog.ChapterID
	}
	switch prog.Status {
	case "complete":
		delete(p.downloads, key)
		p.done++
	case "serverless":
		delete(p.downloads, key)
		p.done++
		p.serverless = append(p.serverless, key)
	default:
		cp := prog
		p.downloads[key] = &cp
	}
}

func (p *ProgressTracker) Clear() {
	p.downloads = make(map[string]*services.DownloadProgress)
	p.done = 0
	p.serverless = nil
}

func (p *ProgressTracker) HasActive() bool {
	return len(p.downloads) > 0
}

// Percent is the share of chapters that finished, one way or another.
func (p *ProgressTracker) Percent() float64 {
	if p.total == 0 {
		return 0
	}
	return min(1, float64(p.done)/float64(p.total))
}

func (p *ProgressTracker) View() string {
	var b strings.Builder
	b.WriteString(styles.SubtitleStyle.Render(fmt.Sprintf("%d / %d chapters", p.done, p.total)))
	b.WriteString("\n")
	b.WriteString(p.overall.ViewAs(p.Percent()))
	b.WriteString("\n\n")

	keys := make([]string, 0, len(p.downloads))
	for k := range p.downloads {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, key := range keys {
		prog := p.downloads[key]
		b.WriteString(styles.TextStyle.Render(fmt.Sprintf("Chapter %s", key)))
		b.WriteString("\n")

		statusText := prog.Status
		if prog.TotalPages > 0 {
			statusText = fmt.Sprintf("%s (%d/%d pages)", prog.Status, prog.CurrentPage, prog.TotalPages)
			b.WriteString(renderProgressBar(prog.CurrentPage, prog.TotalPages, p.width-4))
			b.WriteString("\n")
		}
		b.WriteString(styles.StatusStyle(prog.Status).Render(statusText))
		b.WriteString("\n")

		if prog.Error != nil {
			b.WriteString(styles.StatusError.Render(fmt.Sprintf("Error: %s", prog.Error)))
			b.WriteString("\n")
		}
	}

	if len(p.serverless) > 0 {
		b.WriteString(styles.StatusWarning.Render(
			fmt.Sprintf("No server for chapter(s) %s", strings.Join(p.serverless, ", ")),
		))
		b.WriteString("\n")
	}
	return b.String()
}

func renderProgressBar(current, total, width int) string {
	if total == 0 || width <= 0 {
		return ""
	}

	filled := int(float64(current) / float64(total) * float64(width))
	filled = min(filled, width)

	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return styles.ProgressBarStyle.Render(bar)
}
