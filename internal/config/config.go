package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

const (
	ProviderSpotify = "spotify"
	ProviderDAB     = "dab"

	CacheBackendJSON   = "json"
	CacheBackendSQLite = "sqlite"
)

// Catalog selects the catalog that is searched and written to.
type Catalog struct {
	Provider string `toml:"provider"`
}

// Spotify holds Web API credentials. Token, when set, is a user access token
// and is required for playlist writes; otherwise client credentials are used.
type Spotify struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	Token        string `toml:"token"`
}

type DAB struct {
	Token   string `toml:"token"`
	BaseURL string `toml:"base_url"`
}

// Matching tunes candidate selection and batching.
type Matching struct {
	ConfidenceThreshold float64 `toml:"confidence_threshold"`
	CandidateLimit      int     `toml:"candidate_limit"`
	BatchSize           int     `toml:"batch_size"`
	BatchDelayMS        int     `toml:"batch_delay_ms"`
	MaxAttempts         int     `toml:"max_attempts"`
	BaseDelayMS         int     `toml:"base_delay_ms"`
}

// Quality holds the filter thresholds applied before matching.
type Quality struct {
	MinScore           int  `toml:"min_score"`
	AllowLowConfidence bool `toml:"allow_low_confidence"`
	RemoveInvalid      bool `toml:"remove_invalid"`
}

type Cache struct {
	Backend string `toml:"backend"` // json or sqlite
	Path    string `toml:"path"`    // Default: ~/.cache/trackbridge/match_cache.{json,db}
}

type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

type Server struct {
	Port string `toml:"port"`
}

// Config encapsulates all configuration values for trackbridge.
type Config struct {
	Catalog  Catalog  `toml:"catalog"`
	Spotify  Spotify  `toml:"spotify"`
	DAB      DAB      `toml:"dab"`
	Matching Matching `toml:"matching"`
	Quality  Quality  `toml:"quality"`
	Cache    Cache    `toml:"cache"`
	Logging  Logging  `toml:"logging"`
	Server   Server   `toml:"server"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return ExpandPath(defaultConfigPath)
}

// Load reads .env from the working directory, then locates, parses, and
// validates a configuration file. A missing file is not an error; defaults
// and environment values apply.
func Load(path string) (*Config, string, bool, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, "", false, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs(projectConfigName)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// BatchDelay is the pause between matching groups.
func (c *Config) BatchDelay() time.Duration {
	return time.Duration(c.Matching.BatchDelayMS) * time.Millisecond
}

// BaseDelay is the first rate-limit backoff step.
func (c *Config) BaseDelay() time.Duration {
	return time.Duration(c.Matching.BaseDelayMS) * time.Millisecond
}

// RequireCatalogCredentials reports a usable error when the selected
// provider has no credentials. Commands that never reach the catalog skip it.
func (c *Config) RequireCatalogCredentials() error {
	switch c.Catalog.Provider {
	case ProviderDAB:
		if c.DAB.Token == "" {
			return errors.New("dab.token is required. Set DAB_TOKEN or edit the config file")
		}
	case ProviderSpotify:
		if c.Spotify.Token == "" && (c.Spotify.ClientID == "" || c.Spotify.ClientSecret == "") {
			return errors.New("spotify credentials are required. Set SPOTIFY_ID and SPOTIFY_SECRET (or SPOTIFY_TOKEN)")
		}
	}
	return nil
}

// ExpandPath resolves a leading ~ and returns an absolute, cleaned path.
func ExpandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
