package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// EnvPrefix is prepended to every environment override, e.g.
// MANGODL_SETTINGS_LANGUAGE.
const EnvPrefix = "MANGODL_"

// Links contains the site endpoints.
type Links struct {
	APIBase   string `toml:"api_base" env:"API_BASE"`
	SearchURL string `toml:"search_url" env:"SEARCH_URL"`
	LoginURL  string `toml:"login_url" env:"LOGIN_URL"`
}

// User contains the site credentials used for search.
type User struct {
	Username string `toml:"username" env:"USERNAME"`
	Password string `toml:"password" env:"PASSWORD"`
}

// Settings contains download and packaging behavior.
type Settings struct {
	RootDir            string  `toml:"root_dir" env:"ROOT_DIR"`
	Language           string  `toml:"language" env:"LANGUAGE"`
	RateLimit          float64 `toml:"rate_limit" env:"RATE_LIMIT"`
	MaxTokens          int     `toml:"max_tokens" env:"MAX_TOKENS"`
	VolumeLength       int     `toml:"volume_length" env:"VOLUME_LENGTH"`
	Volumize           bool    `toml:"volumize" env:"VOLUMIZE"`
	Saver              bool    `toml:"saver" env:"SAVER"`
	Format             string  `toml:"format" env:"FORMAT"`
	ConcurrentChapters int     `toml:"concurrent_chapters" env:"CONCURRENT_CHAPTERS"`
	RequestTimeout     int     `toml:"request_timeout" env:"REQUEST_TIMEOUT"` // seconds
	PageRetries        int     `toml:"page_retries" env:"PAGE_RETRIES"`
	LibraryPath        string  `toml:"library_path" env:"LIBRARY_PATH"`
	CookiePath         string  `toml:"cookie_path" env:"COOKIE_PATH"`
	// EPUB pages taller than this are scaled down; 0 keeps them as is.
	PageMaxHeight int  `toml:"page_max_height" env:"PAGE_MAX_HEIGHT"`
	Grayscale     bool `toml:"grayscale" env:"GRAYSCALE"`
}

// Logging contains log output preferences.
type Logging struct {
	Level  string `toml:"level" env:"LEVEL"`
	Format string `toml:"format" env:"FORMAT"`
}

// Config is the full application configuration. It is built once at startup
// and passed by value to the components that need it.
type Config struct {
	Links    Links    `toml:"links" envPrefix:"LINKS_"`
	User     User     `toml:"user" envPrefix:"USER_"`
	Settings Settings `toml:"settings" envPrefix:"SETTINGS_"`
	Logging  Logging  `toml:"logging" envPrefix:"LOGGING_"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return ExpandPath(defaultConfigPath)
}

// Load reads the configuration file at path (or the default location when
// path is empty), applies .env and MANGODL_ environment overrides, then
// normalizes and validates the result. It also reports the resolved path and
// whether the file existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		raw, err := os.ReadFile(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		if err := toml.NewDecoder(bytes.NewReader(raw)).Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := loadDotEnv(".env"); err != nil {
		return nil, "", false, err
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, "", false, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %s: %w", path, err)
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		path = defaultConfigPath
	}
	expanded, err := ExpandPath(path)
	if err != nil {
		return "", false, err
	}
	info, err := os.Stat(expanded)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return expanded, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	if info.IsDir() {
		return "", false, fmt.Errorf("config path %q is a directory", expanded)
	}
	return expanded, true, nil
}

// Save writes the configuration as TOML. The file holds credentials so it is
// only readable by the owner.
func (c *Config) Save(path string) error {
	expanded, err := ExpandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	raw, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(expanded, raw, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Timeout is the per request HTTP timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Settings.RequestTimeout) * time.Second
}

// EnsureDirectories creates the download root and library directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Settings.RootDir, filepath.Dir(c.Settings.LibraryPath)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}
