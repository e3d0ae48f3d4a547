package config

const (
	defaultConfigPath         = "~/.config/mangodl/config.toml"
	defaultAPIBase            = "https://api.mangadex.org/v2/"
	defaultSearchURL          = "https://mangadex.org/search?tag_mode_exc=any&tag_mode_inc=all&title="
	defaultLoginURL           = "https://mangadex.org/ajax/actions.ajax.php?function=login&nojs=1"
	defaultRootDir            = "~/manga"
	defaultLanguage           = "gb"
	defaultRateLimit          = 30
	defaultMaxTokens          = 30
	defaultVolumeLength       = 10
	defaultFormat             = FormatCBZ
	defaultConcurrentChapters = 2
	defaultRequestTimeout     = 30
	defaultPageRetries        = 3
	defaultLibraryPath        = "~/.local/share/mangodl/library.db"
	defaultCookiePath         = "~/.config/mangodl/cookies.json"
	defaultLogLevel           = "info"
	defaultLogFormat          = "text"
)

const (
	FormatCBZ  = "cbz"
	FormatEPUB = "epub"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Links: Links{
			APIBase:   defaultAPIBase,
			SearchURL: defaultSearchURL,
			LoginURL:  defaultLoginURL,
		},
		Settings: Settings{
			RootDir:            defaultRootDir,
			Language:           defaultLanguage,
			RateLimit:          defaultRateLimit,
			MaxTokens:          defaultMaxTokens,
			VolumeLength:       defaultVolumeLength,
			Volumize:           true,
			Format:             defaultFormat,
			ConcurrentChapters: defaultConcurrentChapters,
			RequestTimeout:     defaultRequestTimeout,
			PageRetries:        defaultPageRetries,
			LibraryPath:        defaultLibraryPath,
			CookiePath:         defaultCookiePath,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
