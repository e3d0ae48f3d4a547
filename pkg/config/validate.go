package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLinks(); err != nil {
		return err
	}
	if err := c.validateSettings(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateLinks() error {
	for name, raw := range map[string]string{
		"links.api_base":   c.Links.APIBase,
		"links.search_url": c.Links.SearchURL,
		"links.login_url":  c.Links.LoginURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute url, got %q", name, raw)
		}
	}
	return nil
}

func (c *Config) validateSettings() error {
	s := c.Settings
	if s.RootDir == "" {
		return errors.New("settings.root_dir must be set")
	}
	if s.Language == "" {
		return errors.New("settings.language must be set")
	}
	if s.RateLimit <= 0 {
		return fmt.Errorf("settings.rate_limit must be positive, got %v", s.RateLimit)
	}
	if s.ConcurrentChapters < 1 {
		return fmt.Errorf("settings.concurrent_chapters must be at least 1, got %d", s.ConcurrentChapters)
	}
	if s.RequestTimeout < 1 {
		return fmt.Errorf("settings.request_timeout must be at least 1 second, got %d", s.RequestTimeout)
	}
	if s.PageRetries < 1 {
		return fmt.Errorf("settings.page_retries must be at least 1, got %d", s.PageRetries)
	}
	switch s.Format {
	case FormatCBZ, FormatEPUB:
	default:
		return fmt.Errorf("settings.format must be %q or %q, got %q", FormatCBZ, FormatEPUB, s.Format)
	}
	if s.PageMaxHeight < 0 {
		return fmt.Errorf("settings.page_max_height must not be negative, got %d", s.PageMaxHeight)
	}
	if s.LibraryPath == "" {
		return errors.New("settings.library_path must be set")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not a known level", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}
