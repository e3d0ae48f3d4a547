package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "history <manga-id|name>",
		Short: "Show past download runs of a manga",
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

			manga, err := libraryManga(ctrl, strings.Join(args, " "))
			if err != nil {
				return err
			}
			runs, err := s.repo.ListRuns(manga.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintf(out, "No downloads recorded for %s.\n", manga.Name)
				return nil
			}

			tw := table.NewWriter()
			tw.SetTitle(manga.Name)
			tw.SetStyle(table.StyleRounded)
			tw.AppendHeader(table.Row{"Started", "Took", "Chapters", "Serverless", "Page failures", "Archives", "Status"})
			for _, run := range runs {
				took := "-"
				if !run.FinishedAt.IsZero() {
					took = run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String()
				}
				status := run.Status
				if status == "" {
					status = "running"
				}
				tw.AppendRow(table.Row{
					run.StartedAt.Local().Format("2006-01-02 15:04"),
					took,
					run.Downloaded,
					run.Serverless,
					run.PageFailures,
					run.Archives,
					status,
				})
			}
			tw.SetColumnConfigs([]table.ColumnConfig{
				{Number: 3, Align: text.AlignRight},
				{Number: 4, Align: text.AlignRight},
				{Number: 5, Align: text.AlignRight},
				{Number: 6, Align: text.AlignRight},
			})
			fmt.Fprintln(out, tw.Render())
			return nil
		},
	}
}
