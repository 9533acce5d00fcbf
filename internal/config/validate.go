package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCatalog(); err != nil {
		return err
	}
	if err := c.validateMatching(); err != nil {
		return err
	}
	if err := c.validateQuality(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateCatalog() error {
	switch c.Catalog.Provider {
	case ProviderSpotify, ProviderDAB:
		return nil
	default:
		return fmt.Errorf("catalog.provider must be %q or %q, got %q", ProviderSpotify, ProviderDAB, c.Catalog.Provider)
	}
}

func (c *Config) validateMatching() error {
	m := c.Matching
	if m.ConfidenceThreshold <= 0 || m.ConfidenceThreshold >= 1 {
		return errors.New("matching.confidence_threshold must be between 0 and 1")
	}
	if m.CandidateLimit < 1 || m.CandidateLimit > 50 {
		return errors.New("matching.candidate_limit must be between 1 and 50")
	}
	if m.BatchSize < 1 {
		return errors.New("matching.batch_size must be positive")
	}
	if m.BatchDelayMS < 0 || m.BaseDelayMS < 0 {
		return errors.New("matching delays must not be negative")
	}
	if m.MaxAttempts < 1 {
		return errors.New("matching.max_attempts must be at least 1")
	}
	return nil
}

func (c *Config) validateQuality() error {
	if c.Quality.MinScore < 0 || c.Quality.MinScore > 100 {
		return errors.New("quality.min_score must be between 0 and 100")
	}
	return nil
}

func (c *Config) validateCache() error {
	switch c.Cache.Backend {
	case CacheBackendJSON, CacheBackendSQLite:
		return nil
	default:
		return fmt.Errorf("cache.backend must be %q or %q, got %q", CacheBackendJSON, CacheBackendSQLite, c.Cache.Backend)
	}
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "auto", "console", "json":
	default:
		return fmt.Errorf("logging.format must be auto, console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}
