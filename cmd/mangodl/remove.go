package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <manga-id|name>",
		Aliases: []string{"rm"},
		Short:   "Remove a manga from the library",
		Long:    "Forget a manga, its chapters and its runs. Downloaded files are left on disk.",
		Args:    cobra.MinimumNArgs(1),
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
			if err := s.repo.DeleteManga(manga.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "🗑️  Removed '%s' from library\n", manga.Name)
			return nil
		},
	}
}
