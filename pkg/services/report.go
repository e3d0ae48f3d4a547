package services

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/kerbaras/mangodl/pkg/data"
	"github.com/kerbaras/mangodl/pkg/volumes"
)

const (
	StatusCompleted = "completed"
	StatusPartial   = "partial"
	StatusFailed    = "failed"
)

// Report is the outcome of one download session.
type Report struct {
	Manga     *data.Manga
	RunID     string
	Requested int

	Downloaded    []*data.Chapter
	Serverless    []data.Chapter
	BadChapterIDs []string
	PageFailures  []PageFailure

	// Missing are whole chapter numbers absent between the first and last
	// chapter of the listing.
	Missing  []int
	Nameless []data.Chapter

	// Volumes is nil when volume packing was disabled.
	Volumes    *volumes.Result
	Archives   []string
	ArchiveErr error
}

func (r *Report) Status() string {
	if len(r.Downloaded) == 0 && r.Requested > 0 {
		return StatusFailed
	}
	if len(r.Serverless) > 0 || len(r.PageFailures) > 0 || r.ArchiveErr != nil {
		return StatusPartial
	}
	return StatusCompleted
}

// Render draws the summary table shown at the end of a download.
func (r *Report) Render() string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"", "Count", "Details"})

	tw.AppendRow(table.Row{"Downloaded", len(r.Downloaded), fmt.Sprintf("of %d requested", r.Requested)})
	tw.AppendRow(table.Row{"Serverless", len(r.Serverless), joinLabels(r.Serverless)})
	tw.AppendRow(table.Row{"Failed pages", len(r.PageFailures), failedPages(r.PageFailures)})
	tw.AppendRow(table.Row{"Missing", len(r.Missing), joinInts(r.Missing)})
	tw.AppendRow(table.Row{"Nameless", len(r.Nameless), joinLabels(r.Nameless)})
	if r.Volumes != nil {
		tw.AppendRow(table.Row{"Volumes", len(r.Volumes.Assignment.Volumes()), volumeSpan(r.Volumes.Assignment)})
		if len(r.Volumes.Unassigned) > 0 {
			tw.AppendRow(table.Row{"Unassigned", len(r.Volumes.Unassigned), joinNumbers(r.Volumes.Unassigned)})
		}
	}
	for _, a := range r.Archives {
		tw.AppendRow(table.Row{"Archive", "", filepath.Base(a)})
	}
	if r.ArchiveErr != nil {
		tw.AppendRow(table.Row{"Archive errors", "", r.ArchiveErr.Error()})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, WidthMax: 60},
	})
	return tw.Render()
}

// RenderAssignment draws one row per volume with its chapters.
func RenderAssignment(a volumes.Assignment) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Volume", "Chapters", "Count"})
	for _, v := range a.Volumes() {
		chs := a.Chapters(v)
		tw.AppendRow(table.Row{v.String(), joinNumbers(chs), len(chs)})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 2, WidthMax: 60},
		{Number: 3, Align: text.AlignRight},
	})
	return tw.Render()
}

func joinLabels(chs []data.Chapter) string {
	labels := make([]string, len(chs))
	for i := range chs {
		labels[i] = chs[i].Label()
	}
	return strings.Join(labels, ", ")
}

func joinNumbers(nums []data.ChapterNumber) string {
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = n.String()
	}
	return strings.Join(parts, ", ")
}

func joinInts(nums []int) string {
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ", ")
}

func failedPages(failures []PageFailure) string {
	parts := make([]string, len(failures))
	for i, f := range failures {
		parts[i] = fmt.Sprintf("ch %s p%d", f.Chapter, f.Page)
	}
	return strings.Join(parts, ", ")
}

func volumeSpan(a volumes.Assignment) string {
	vols := a.Volumes()
	if len(vols) == 0 {
		return ""
	}
	return fmt.Sprintf("%s to %s", vols[0], vols[len(vols)-1])
}
