package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kerbaras/mangodl/pkg/app"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	var rawURL string

	cmd := &cobra.Command{
		Use:   "add [manga-name]",
		Short: "Add a manga to your library",
		Long:  "Find a manga and add it to your library (downloads metadata only)",
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

			out := cmd.OutOrStdout()
			id, err := ctx.resolveManga(cmd.Context(), s, ctrl, rawURL, args, out)
			if errors.Is(err, app.ErrCancelled) {
				return nil
			}
			if err != nil {
				return err
			}

			manga, err := ctrl.GetManga(cmd.Context(), id)
			if err != nil {
				return err
			}
			count, err := ctrl.AddMangaToLibrary(cmd.Context(), manga)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "✅ Added '%s' to library with %d chapter uploads\n", manga.Name, count)
			fmt.Fprintf(out, "💡 To download chapters, use: mangodl download \"%s\"\n", manga.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&rawURL, "url", "", "Title page link instead of a search")
	return cmd
}
