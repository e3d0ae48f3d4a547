package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newVolumesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "volumes <manga-id|name>",
		Short: "Show how library chapters would be packed into volumes",
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
			res, err := ctrl.PlanVolumes(manga.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "📦 %s\n", manga.Name)
			fmt.Fprintln(out, renderPlan(res))
			return nil
		},
	}
}
