// Package config loads, normalizes, and validates trackbridge configuration.
//
// Settings come from a TOML file, an optional .env file, and environment
// variables (SPOTIFY_ID, SPOTIFY_SECRET, SPOTIFY_TOKEN, DAB_TOKEN, PORT,
// TRACKBRIDGE_CACHE_PATH, TRACKBRIDGE_LOG_LEVEL), in increasing order of
// precedence.
package config
