package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	var err error
	if c.Settings.RootDir, err = ExpandPath(c.Settings.RootDir); err != nil {
		return fmt.Errorf("settings.root_dir: %w", err)
	}
	if c.Settings.LibraryPath, err = ExpandPath(c.Settings.LibraryPath); err != nil {
		return fmt.Errorf("settings.library_path: %w", err)
	}
	if c.Settings.CookiePath, err = ExpandPath(c.Settings.CookiePath); err != nil {
		return fmt.Errorf("settings.cookie_path: %w", err)
	}

	c.Settings.Language = strings.ToLower(strings.TrimSpace(c.Settings.Language))
	c.Settings.Format = strings.ToLower(strings.TrimSpace(c.Settings.Format))
	if c.Settings.VolumeLength < 1 {
		c.Settings.VolumeLength = defaultVolumeLength
	}
	if c.Settings.MaxTokens < 1 {
		c.Settings.MaxTokens = 1
	}
	if !strings.HasSuffix(c.Links.APIBase, "/") {
		c.Links.APIBase += "/"
	}

	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	return nil
}

// ExpandPath resolves a leading ~ and makes path absolute. Empty stays empty.
func ExpandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return filepath.Abs(path)
}
