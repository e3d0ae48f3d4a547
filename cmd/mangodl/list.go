package cmd

import (
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/kerbaras/mangodl/pkg/app"
	"github.com/kerbaras/mangodl/pkg/app/styles"
	"github.com/kerbaras/mangodl/pkg/logging"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var interactive bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all manga in your library",
		Long:  "Display all manga in your library; -i opens a browser with volume plans",
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

			if interactive && logging.Interactive() {
				ctrl := ctx.newController(s)
				defer ctrl.Close()
				plan := func(id string) (string, error) {
					res, err := ctrl.PlanVolumes(id)
					if err != nil {
						return "", err
					}
					return renderPlan(res), nil
				}
				return app.NewApp(nil, nil).Library(cmd.Context(), s.repo, plan)
			}

			mangas, err := s.repo.ListMangas()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(mangas) == 0 {
				fmt.Fprintln(out, "📚 No manga in library. Use 'mangodl add' to add one.")
				return nil
			}

			columns := []table.Column{
				{Title: "ID", Width: 10},
				{Title: "Name", Width: 40},
				{Title: "Status", Width: 12},
				{Title: "Chapters", Width: 10},
				{Title: "Downloaded", Width: 12},
			}

			rows := []table.Row{}
			for _, manga := range mangas {
				_, total, downloaded, err := s.repo.GetMangaWithChapterCount(manga.ID)
				if err != nil {
					return err
				}
				status := manga.Status
				if status == "" {
					status = "ready"
				}

				rows = append(rows, table.Row{
					manga.ID,
					truncateString(manga.Name, 38),
					status,
					fmt.Sprintf("%d", total),
					fmt.Sprintf("%d", downloaded),
				})
			}

			t := table.New(
				table.WithColumns(columns),
				table.WithRows(rows),
				table.WithFocused(false),
				table.WithHeight(len(rows)),
			)

			st := table.DefaultStyles()
			st.Header = st.Header.
				BorderStyle(lipgloss.NormalBorder()).
				BorderForeground(styles.Muted).
				BorderBottom(true).
				Bold(true)
			st.Selected = lipgloss.NewStyle()
			t.SetStyles(st)

			fmt.Fprintf(out, "\n📚 Library (%d manga)\n\n", len(mangas))
			fmt.Fprintln(out, t.View())
			return nil
		},
	}

	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Browse the library in the terminal UI")
	return cmd
}
