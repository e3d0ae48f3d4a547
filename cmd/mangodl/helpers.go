package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kerbaras/mangodl/pkg/app"
	"github.com/kerbaras/mangodl/pkg/app/components"
	"github.com/kerbaras/mangodl/pkg/data"
	"github.com/kerbaras/mangodl/pkg/logging"
	"github.com/kerbaras/mangodl/pkg/services"
	"github.com/kerbaras/mangodl/pkg/sources"
	"github.com/kerbaras/mangodl/pkg/volumes"
)

func truncateString(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// libraryItems marks the search results that are already in the library.
func libraryItems(repo *data.Repository, results []data.Manga) []components.MangaListItem {
	items := make([]components.MangaListItem, len(results))
	for i := range results {
		items[i] = components.MangaListItem{Manga: &results[i]}
		if repo == nil {
			continue
		}
		if m, total, downloaded, err := repo.GetMangaWithChapterCount(results[i].ID); err == nil && m != nil {
			items[i].InLibrary = true
			items[i].ChapterCount = total
			items[i].DownloadedCount = downloaded
		}
	}
	return items
}

// resolveManga turns a --url or a title query into a manga id. A title
// already in the library wins; otherwise the site is searched and, in a
// terminal, the user picks from the results.
func (c *commandContext) resolveManga(ctx context.Context, s *session, ctrl *services.MangaController, rawURL string, args []string, out io.Writer) (string, error) {
	if rawURL != "" {
		return sources.ParseMangaURL(rawURL)
	}
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		return "", errors.New("give a title to search for or a --url")
	}

	if m, err := ctrl.FindMangaByName(query); err == nil {
		fmt.Fprintf(out, "📚 Found '%s' in library\n", m.Name)
		return m.ID, nil
	}

	if err := c.ensureLogin(ctx, s); err != nil {
		return "", err
	}
	fmt.Fprintf(out, "🔍 Searching for '%s'...\n", query)
	results, err := ctrl.SearchManga(ctx, query)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", fmt.Errorf("no results for %q", query)
	}

	if !logging.Interactive() || len(results) == 1 {
		if len(results) > 1 {
			c.log("cli").Warnf("%d titles match %q, taking the first; use --url to pick another", len(results), query)
		}
		fmt.Fprintf(out, "✅ Found: %s (ID: %s)\n", results[0].Name, results[0].ID)
		return results[0].ID, nil
	}

	search := func(ctx context.Context, q string) ([]components.MangaListItem, error) {
		found, err := ctrl.SearchManga(ctx, q)
		if err != nil {
			return nil, err
		}
		return libraryItems(s.repo, found), nil
	}
	picked, err := app.NewApp(nil, nil).PickManga(ctx, search, query, libraryItems(s.repo, results))
	if err != nil {
		return "", err
	}
	return picked.ID, nil
}

// libraryManga finds a library manga by id or, failing that, by title.
func libraryManga(ctrl *services.MangaController, key string) (*data.Manga, error) {
	if m, err := ctrl.GetMangaFromLibrary(key); err == nil {
		return m, nil
	} else if !errors.Is(err, sources.ErrNotFound) {
		return nil, err
	}
	return ctrl.FindMangaByName(key)
}

// printEvent writes one chapter event as a plain line. Page level events
// are skipped.
func printEvent(out io.Writer, p services.DownloadProgress) {
	switch p.Status {
	case "complete":
		fmt.Fprintf(out, "  ✅ Chapter %s: %d/%d pages\n", p.ChapterNumber, p.CurrentPage, p.TotalPages)
	case "serverless":
		fmt.Fprintf(out, "  ⚠️  Chapter %s: no server\n", p.ChapterNumber)
	case "substituting":
		fmt.Fprintf(out, "  🔁 Chapter %s: trying another upload\n", p.ChapterNumber)
	case "error":
		fmt.Fprintf(out, "  ❌ Chapter %s: %v\n", p.ChapterNumber, p.Error)
	}
}

// renderPlan draws the volume table followed by what the assignment left
// out.
func renderPlan(res volumes.Result) string {
	var b strings.Builder
	b.WriteString(services.RenderAssignment(res.Assignment))
	if res.FromScratch {
		b.WriteString("\nNo chapter names a volume; every volume was made up.")
	}
	if len(res.Unassigned) > 0 {
		nums := make([]string, len(res.Unassigned))
		for i, n := range res.Unassigned {
			nums[i] = n.String()
		}
		fmt.Fprintf(&b, "\nWithout a volume: %s", strings.Join(nums, ", "))
	}
	if len(res.Duplicates) > 0 {
		nums := make([]string, len(res.Duplicates))
		for i, n := range res.Duplicates {
			nums[i] = n.String()
		}
		fmt.Fprintf(&b, "\nListed twice: %s", strings.Join(nums, ", "))
	}
	if len(res.Nameless) > 0 {
		labels := make([]string, len(res.Nameless))
		for i := range res.Nameless {
			labels[i] = res.Nameless[i].Label()
		}
		fmt.Fprintf(&b, "\nNameless: %s", strings.Join(labels, ", "))
	}
	return b.String()
}
