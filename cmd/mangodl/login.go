package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kerbaras/mangodl/pkg/auth"
)

func newLoginCommand(ctx *commandContext) *cobra.Command {
	var username, password string
	var save bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and keep the session for searching",
		Long: `Log in to MangaDex with the given credentials (or the ones in the
configuration) and store the session cookies. With --save the credentials are
written to the configuration file so expired sessions renew themselves.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			creds := auth.Credentials{Username: cfg.User.Username, Password: cfg.User.Password}
			if username != "" {
				creds.Username = username
			}
			if password != "" {
				creds.Password = password
			}

			s, err := ctx.openSession(cfg, false)
			if err != nil {
				return err
			}
			if err := auth.Login(cmd.Context(), s.client, cfg.Links.LoginURL, creds); err != nil {
				return err
			}
			if err := s.cookies.Save(s.jar); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✅ Logged in as %s\n", creds.Username)

			if save {
				updated := *cfg
				updated.User.Username = creds.Username
				updated.User.Password = creds.Password
				if err := updated.Save(ctx.configPath); err != nil {
					return err
				}
				fmt.Fprintf(out, "💾 Credentials saved to %s\n", ctx.configPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Account name")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Account password")
	cmd.Flags().BoolVar(&save, "save", false, "Write the credentials to the configuration file")
	return cmd
}

func newLogoutCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := auth.NewCookieStore(cfg.Settings.CookiePath).Clear(); err != nil {
				return fmt.Errorf("remove session: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "👋 Logged out")
			return nil
		},
	}
}
