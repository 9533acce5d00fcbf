package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"trackbridge/internal/cache"
	"trackbridge/internal/catalog"
	"trackbridge/internal/config"
	"trackbridge/internal/dab"
	"trackbridge/internal/logging"
	"trackbridge/internal/matcher"
	"trackbridge/internal/quality"
	"trackbridge/internal/retry"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
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
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			cfg.Logging.Level = strings.ToLower(strings.TrimSpace(*c.logLevelFlag))
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// ensureLogger builds the process logger once. Logs go to w, normally the
// command's stderr, so stdout stays clean for reports.
func (c *commandContext) ensureLogger(w io.Writer) (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.New(logging.Options{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
			Output: w,
		})
	})
	return c.logger, c.loggerErr
}

// setup returns the loaded config and a logger writing to the command's
// stderr.
func (c *commandContext) setup(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := c.ensureLogger(cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

// newSpotifyClient prefers a user token, which playlist writes need, and
// falls back to client credentials.
func newSpotifyClient(ctx context.Context, cfg *config.Config) *spotify.Client {
	var httpClient *http.Client
	if cfg.Spotify.Token != "" {
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Spotify.Token}))
	} else {
		cc := &clientcredentials.Config{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
			TokenURL:     spotifyauth.TokenURL,
		}
		httpClient = cc.Client(ctx)
	}
	return spotify.New(httpClient)
}

func newDABClient(cfg *config.Config, token string) *dab.Client {
	client := dab.NewClient(token)
	if cfg.DAB.BaseURL != "" {
		client.BaseURL = cfg.DAB.BaseURL
	}
	return client
}

// newCatalog builds the configured catalog after checking its credentials.
func newCatalog(ctx context.Context, cfg *config.Config) (catalog.Catalog, error) {
	if err := cfg.RequireCatalogCredentials(); err != nil {
		return nil, err
	}
	switch cfg.Catalog.Provider {
	case config.ProviderDAB:
		return newDABClient(cfg, cfg.DAB.Token), nil
	default:
		return catalog.NewSpotify(newSpotifyClient(ctx, cfg), catalog.DefaultSpotifyLimiter()), nil
	}
}

// openStore opens the configured cache backend. The returned close func is
// never nil.
func openStore(cfg *config.Config) (cache.Store, func() error, error) {
	switch cfg.Cache.Backend {
	case config.CacheBackendSQLite:
		store, err := cache.OpenSQLite(cfg.Cache.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return cache.NewJSONStore(cfg.Cache.Path), func() error { return nil }, nil
	}
}

func matcherOptions(cfg *config.Config) matcher.Options {
	opts := matcher.DefaultOptions()
	opts.Threshold = cfg.Matching.ConfidenceThreshold
	opts.CandidateLimit = cfg.Matching.CandidateLimit
	opts.BatchSize = cfg.Matching.BatchSize
	opts.BatchDelay = cfg.BatchDelay()
	opts.Retry = retryOptions(cfg)
	return opts
}

func retryOptions(cfg *config.Config) retry.Options {
	return retry.Options{
		MaxAttempts: cfg.Matching.MaxAttempts,
		Backoff:     retry.Exponential(cfg.BaseDelay()),
	}
}

func filterOptions(cfg *config.Config) quality.FilterOptions {
	return quality.FilterOptions{
		MinQualityScore:    cfg.Quality.MinScore,
		AllowLowConfidence: cfg.Quality.AllowLowConfidence,
		RemoveInvalid:      cfg.Quality.RemoveInvalid,
	}
}
