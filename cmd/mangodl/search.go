package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/kerbaras/mangodl/pkg/app/styles"
)

func newSearchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "search [query]",
		Short: "Search for manga",
		Long:  "Search MangaDex (requires a login) and display the results in a table",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			s, err := ctx.openSession(cfg, true)
			if err != nil {
				return err
			}
			defer s.Close()
			ctrl := ctx.newController(s)
			defer ctrl.Close()

			if err := ctx.ensureLogin(cmd.Context(), s); err != nil {
				return err
			}

			query := strings.Join(args, " ")
			results, err := ctrl.SearchManga(cmd.Context(), query)
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintln(out, "No results found.")
				return nil
			}

			var (
				headerStyle = lipgloss.NewStyle().Foreground(styles.Secondary).Bold(true).Align(lipgloss.Center)
				cellStyle   = lipgloss.NewStyle().Padding(0, 1)
			)

			t := table.New().
				Border(lipgloss.HiddenBorder()).
				StyleFunc(func(row, col int) lipgloss.Style {
					if row == table.HeaderRow {
						return headerStyle
					}
					return cellStyle
				}).
				Headers("#", "Name", "ID", "Library")

			for i, item := range libraryItems(s.repo, results) {
				inLibrary := ""
				if item.InLibrary {
					inLibrary = fmt.Sprintf("%d / %d", item.DownloadedCount, item.ChapterCount)
				}
				t.Row(fmt.Sprintf("%d", i+1), truncateString(item.Manga.Name, 58), item.Manga.ID, inLibrary)
			}

			fmt.Fprintln(out, t)
			fmt.Fprintf(out, "💡 Download one with: mangodl download --url https://mangadex.org/title/<ID>\n")
			return nil
		},
	}
}
