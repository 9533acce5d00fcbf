package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	c.applyEnv()

	c.Catalog.Provider = strings.ToLower(strings.TrimSpace(c.Catalog.Provider))
	if c.Catalog.Provider == "" {
		c.Catalog.Provider = defaultProvider
	}

	c.DAB.BaseURL = strings.TrimRight(strings.TrimSpace(c.DAB.BaseURL), "/")
	if c.DAB.BaseURL == "" {
		c.DAB.BaseURL = defaultDABBaseURL
	}

	if err := c.normalizeCache(); err != nil {
		return err
	}
	c.normalizeLogging()

	c.Server.Port = strings.TrimPrefix(strings.TrimSpace(c.Server.Port), ":")
	if c.Server.Port == "" {
		c.Server.Port = defaultPort
	}
	return nil
}

// applyEnv lets environment variables override file values.
func (c *Config) applyEnv() {
	override := func(dst *string, key string) {
		if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
			*dst = strings.TrimSpace(value)
		}
	}
	override(&c.Spotify.ClientID, "SPOTIFY_ID")
	override(&c.Spotify.ClientSecret, "SPOTIFY_SECRET")
	override(&c.Spotify.Token, "SPOTIFY_TOKEN")
	override(&c.DAB.Token, "DAB_TOKEN")
	override(&c.Server.Port, "PORT")
	override(&c.Cache.Path, "TRACKBRIDGE_CACHE_PATH")
	override(&c.Logging.Level, "TRACKBRIDGE_LOG_LEVEL")
}

func (c *Config) normalizeCache() error {
	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	if c.Cache.Backend == "" {
		c.Cache.Backend = defaultCacheBackend
	}
	if strings.TrimSpace(c.Cache.Path) == "" {
		c.Cache.Path = defaultJSONCachePath
		if c.Cache.Backend == CacheBackendSQLite {
			c.Cache.Path = defaultSQLiteCachePath
		}
	}
	var err error
	if c.Cache.Path, err = ExpandPath(c.Cache.Path); err != nil {
		return fmt.Errorf("cache.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
