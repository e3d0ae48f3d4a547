package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/kerbaras/mangodl/pkg/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and edit the configuration file",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "path",
			Short: "Print the configuration file location",
			RunE: func(cmd *cobra.Command, args []string) error {
				if _, err := ctx.ensureConfig(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), ctx.configPath)
				return nil
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				shown := *cfg
				if shown.User.Password != "" {
					shown.User.Password = "********"
				}
				raw, err := toml.Marshal(shown)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), string(raw))
				return nil
			},
		},
		&cobra.Command{
			Use:   "init",
			Short: "Write a configuration file with the defaults",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				if ctx.configExists {
					return fmt.Errorf("%s already exists", ctx.configPath)
				}
				if err := cfg.Save(ctx.configPath); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✅ Wrote %s\n", ctx.configPath)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Change one setting, e.g. settings.language it",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				updated := *cfg
				if err := setConfigValue(&updated, args[0], args[1]); err != nil {
					return err
				}
				if err := updated.Validate(); err != nil {
					return err
				}
				if err := updated.Save(ctx.configPath); err != nil {
					return err
				}
				*cfg = updated
				fmt.Fprintf(cmd.OutOrStdout(), "✅ %s = %s\n", args[0], args[1])
				return nil
			},
		},
	)
	return cmd
}

// setConfigValue assigns value to the field named by its TOML key.
func setConfigValue(cfg *config.Config, key, value string) error {
	var err error
	s := &cfg.Settings
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "links.api_base":
		cfg.Links.APIBase = value
	case "links.search_url":
		cfg.Links.SearchURL = value
	case "links.login_url":
		cfg.Links.LoginURL = value
	case "user.username":
		cfg.User.Username = value
	case "user.password":
		cfg.User.Password = value
	case "settings.root_dir":
		s.RootDir, err = config.ExpandPath(value)
	case "settings.language":
		s.Language = strings.ToLower(value)
	case "settings.rate_limit":
		s.RateLimit, err = strconv.ParseFloat(value, 64)
	case "settings.max_tokens":
		s.MaxTokens, err = strconv.Atoi(value)
	case "settings.volume_length":
		s.VolumeLength, err = strconv.Atoi(value)
		if err == nil && s.VolumeLength < 1 {
			err = errors.New("must be at least 1")
		}
	case "settings.volumize":
		s.Volumize, err = strconv.ParseBool(value)
	case "settings.saver":
		s.Saver, err = strconv.ParseBool(value)
	case "settings.format":
		s.Format = strings.ToLower(value)
	case "settings.concurrent_chapters":
		s.ConcurrentChapters, err = strconv.Atoi(value)
	case "settings.request_timeout":
		s.RequestTimeout, err = strconv.Atoi(value)
	case "settings.page_retries":
		s.PageRetries, err = strconv.Atoi(value)
	case "settings.library_path":
		s.LibraryPath, err = config.ExpandPath(value)
	case "settings.cookie_path":
		s.CookiePath, err = config.ExpandPath(value)
	case "settings.page_max_height":
		s.PageMaxHeight, err = strconv.Atoi(value)
	case "settings.grayscale":
		s.Grayscale, err = strconv.ParseBool(value)
	case "logging.level":
		cfg.Logging.Level = strings.ToLower(value)
	case "logging.format":
		cfg.Logging.Format = strings.ToLower(value)
	default:
		return fmt.Errorf("unknown configuration key %q", key)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}
