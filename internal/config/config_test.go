package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"trackbridge/internal/config"
)

// isolate points HOME and the working directory at fresh temp dirs and
// clears the variables Load reads.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())
	for _, key := range []string{"SPOTIFY_ID", "SPOTIFY_SECRET", "SPOTIFY_TOKEN", "DAB_TOKEN", "PORT", "TRACKBRIDGE_CACHE_PATH", "TRACKBRIDGE_LOG_LEVEL"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	return home
}

func TestLoadDefaults(t *testing.T) {
	home := isolate(t)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if resolved != filepath.Join(home, ".config", "trackbridge", "config.toml") {
		t.Fatalf("unexpected resolved path %q", resolved)
	}

	want := config.Default()
	if cfg.Catalog.Provider != config.ProviderSpotify {
		t.Fatalf("provider = %q", cfg.Catalog.Provider)
	}
	if cfg.Matching != want.Matching {
		t.Fatalf("matching = %+v, want %+v", cfg.Matching, want.Matching)
	}
	if cfg.Quality.MinScore != 50 || cfg.Quality.AllowLowConfidence || !cfg.Quality.RemoveInvalid {
		t.Fatalf("quality = %+v", cfg.Quality)
	}
	if cfg.Cache.Path != filepath.Join(home, ".cache", "trackbridge", "match_cache.json") {
		t.Fatalf("cache path = %q", cfg.Cache.Path)
	}
	if cfg.Server.Port != "8080" {
		t.Fatalf("port = %q", cfg.Server.Port)
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "trackbridge.toml")
	content := `
[catalog]
provider = "DAB"

[dab]
token = "file-token"
base_url = "http://localhost:9999/api/"

[matching]
batch_size = 4
confidence_threshold = 0.6

[cache]
backend = "sqlite"

[server]
port = ":9090"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DAB_TOKEN", "env-token")
	t.Setenv("TRACKBRIDGE_LOG_LEVEL", "DEBUG")

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("resolved = %q exists = %v", resolved, exists)
	}
	if cfg.Catalog.Provider != config.ProviderDAB {
		t.Fatalf("provider = %q", cfg.Catalog.Provider)
	}
	if cfg.DAB.Token != "env-token" {
		t.Fatalf("env should override file token, got %q", cfg.DAB.Token)
	}
	if cfg.DAB.BaseURL != "http://localhost:9999/api" {
		t.Fatalf("base url = %q", cfg.DAB.BaseURL)
	}
	if cfg.Matching.BatchSize != 4 || cfg.Matching.ConfidenceThreshold != 0.6 || cfg.Matching.CandidateLimit != 5 {
		t.Fatalf("matching = %+v", cfg.Matching)
	}
	if !strings.HasSuffix(cfg.Cache.Path, "match_cache.db") {
		t.Fatalf("sqlite default path = %q", cfg.Cache.Path)
	}
	if cfg.Logging.Level != "debug" || cfg.Server.Port != "9090" {
		t.Fatalf("logging = %+v port = %q", cfg.Logging, cfg.Server.Port)
	}
	if err := cfg.RequireCatalogCredentials(); err != nil {
		t.Fatalf("RequireCatalogCredentials: %v", err)
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	isolate(t)
	if err := os.WriteFile(".env", []byte("SPOTIFY_ID=abc\nSPOTIFY_SECRET=def\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Spotify.ClientID != "abc" || cfg.Spotify.ClientSecret != "def" {
		t.Fatalf("spotify = %+v", cfg.Spotify)
	}
	if err := cfg.RequireCatalogCredentials(); err != nil {
		t.Fatalf("RequireCatalogCredentials: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"provider", func(c *config.Config) { c.Catalog.Provider = "tidal" }, "catalog.provider"},
		{"threshold", func(c *config.Config) { c.Matching.ConfidenceThreshold = 1.5 }, "confidence_threshold"},
		{"batch", func(c *config.Config) { c.Matching.BatchSize = 0 }, "batch_size"},
		{"attempts", func(c *config.Config) { c.Matching.MaxAttempts = 0 }, "max_attempts"},
		{"min score", func(c *config.Config) { c.Quality.MinScore = 101 }, "min_score"},
		{"backend", func(c *config.Config) { c.Cache.Backend = "redis" }, "cache.backend"},
		{"format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Validate() = %v, want error mentioning %q", err, tc.want)
			}
		})
	}
}

func TestRequireCatalogCredentials(t *testing.T) {
	cfg := config.Default()
	if err := cfg.RequireCatalogCredentials(); err == nil {
		t.Fatal("expected missing spotify credentials error")
	}
	cfg.Spotify.Token = "user-token"
	if err := cfg.RequireCatalogCredentials(); err != nil {
		t.Fatalf("token alone should suffice: %v", err)
	}
	cfg.Catalog.Provider = config.ProviderDAB
	if err := cfg.RequireCatalogCredentials(); err == nil {
		t.Fatal("expected missing dab token error")
	}
}

func TestCreateSampleLoads(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if _, _, exists, err := config.Load(path); err != nil || !exists {
		t.Fatalf("Load(sample) exists=%v err=%v", exists, err)
	}
}
