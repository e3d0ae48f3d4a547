package cmd

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/kerbaras/mangodl/pkg/auth"
	"github.com/kerbaras/mangodl/pkg/config"
	"github.com/kerbaras/mangodl/pkg/data"
	"github.com/kerbaras/mangodl/pkg/logging"
	"github.com/kerbaras/mangodl/pkg/services"
	"github.com/kerbaras/mangodl/pkg/sources"
	"github.com/kerbaras/mangodl/pkg/utils"
)

// commandContext carries what the commands share: the flags of the root
// command and the lazily loaded configuration.
type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce   sync.Once
	config       *config.Config
	configPath   string
	configExists bool
	configErr    error

	logger *logrus.Logger
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil && *c.logLevelFlag != "" {
			cfg.Logging.Level = strings.ToLower(strings.TrimSpace(*c.logLevelFlag))
			if err := cfg.Validate(); err != nil {
				c.configErr = fmt.Errorf("--log-level: %w", err)
				return
			}
		}
		c.config = cfg
		c.configPath = resolved
		c.configExists = exists
		c.logger = logging.New(logging.Options{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
		})
	})
	return c.config, c.configErr
}

// log returns a component logger. It is usable before the configuration is
// loaded.
func (c *commandContext) log(component string) *logrus.Entry {
	if c.logger == nil {
		c.logger = logging.New(logging.Options{})
	}
	return logging.Component(c.logger, component)
}

// session bundles the clients one command needs.
type session struct {
	cfg     *config.Config
	client  *http.Client
	jar     *auth.Jar
	cookies *auth.CookieStore
	source  *sources.MangaDex
	repo    *data.Repository
}

func (s *session) Close() {
	if s.repo != nil {
		s.repo.Close()
	}
}

// openSession builds the HTTP client with the saved cookies, the source and,
// when withLibrary is set, the download library.
func (c *commandContext) openSession(cfg *config.Config, withLibrary bool) (*session, error) {
	jar := auth.NewJar()
	cookies := auth.NewCookieStore(cfg.Settings.CookiePath)
	if n, err := cookies.Load(jar); err != nil {
		c.log("auth").WithError(err).Warn("Ignoring saved cookies")
	} else if n > 0 {
		c.log("auth").Debugf("Restored %d cookie(s)", n)
	}

	client := &http.Client{Jar: jar, Timeout: cfg.Timeout()}
	s := &session{
		cfg:     cfg,
		client:  client,
		jar:     jar,
		cookies: cookies,
		source: sources.NewMangaDex(sources.Options{
			APIBase:   cfg.Links.APIBase,
			SearchURL: cfg.Links.SearchURL,
			Saver:     cfg.Settings.Saver,
			Client:    client,
			Bucket:    utils.NewTokenBucket(cfg.Settings.RateLimit, cfg.Settings.MaxTokens),
			Timeout:   cfg.Timeout(),
			Logger:    c.log("source"),
		}),
	}

	if withLibrary {
		if err := cfg.EnsureDirectories(); err != nil {
			return nil, err
		}
		repo, err := data.NewRepository(cfg.Settings.LibraryPath)
		if err != nil {
			return nil, fmt.Errorf("open library: %w", err)
		}
		s.repo = repo
	}
	return s, nil
}

// ensureLogin logs in with the configured credentials unless a saved
// session is still valid. Search needs it; direct downloads do not.
func (c *commandContext) ensureLogin(ctx context.Context, s *session) error {
	if s.cookies.Valid() {
		return nil
	}
	creds := auth.Credentials{Username: s.cfg.User.Username, Password: s.cfg.User.Password}
	if creds.Empty() {
		return fmt.Errorf("%w: no saved session; run `mangodl login` first", auth.ErrLoginFailed)
	}
	if err := auth.Login(ctx, s.client, s.cfg.Links.LoginURL, creds); err != nil {
		return err
	}
	if err := s.cookies.Save(s.jar); err != nil {
		c.log("auth").WithError(err).Warn("Could not save session cookies")
	}
	c.log("auth").Infof("Logged in as %s", creds.Username)
	return nil
}

func (c *commandContext) newController(s *session) *services.MangaController {
	log := c.log("controller")
	return services.NewMangaController(s.source, s.repo, services.NewControllerConfig(s.cfg, log))
}
