package config

const (
	defaultProvider            = ProviderSpotify
	defaultDABBaseURL          = "https://dabmusic.xyz/api"
	defaultConfidenceThreshold = 0.5
	defaultCandidateLimit      = 5
	defaultBatchSize           = 10
	defaultBatchDelayMS        = 100
	defaultMaxAttempts         = 3
	defaultBaseDelayMS         = 1000
	defaultMinQualityScore     = 50
	defaultCacheBackend        = CacheBackendJSON
	defaultJSONCachePath       = "~/.cache/trackbridge/match_cache.json"
	defaultSQLiteCachePath     = "~/.cache/trackbridge/match_cache.db"
	defaultLogFormat           = "auto"
	defaultLogLevel            = "info"
	defaultPort                = "8080"
	defaultConfigPath          = "~/.config/trackbridge/config.toml"
	projectConfigName          = "trackbridge.toml"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Catalog: Catalog{Provider: defaultProvider},
		DAB:     DAB{BaseURL: defaultDABBaseURL},
		Matching: Matching{
			ConfidenceThreshold: defaultConfidenceThreshold,
			CandidateLimit:      defaultCandidateLimit,
			BatchSize:           defaultBatchSize,
			BatchDelayMS:        defaultBatchDelayMS,
			MaxAttempts:         defaultMaxAttempts,
			BaseDelayMS:         defaultBaseDelayMS,
		},
		Quality: Quality{
			MinScore:           defaultMinQualityScore,
			AllowLowConfidence: false,
			RemoveInvalid:      true,
		},
		Cache: Cache{
			Backend: defaultCacheBackend,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Server: Server{Port: defaultPort},
	}
}
