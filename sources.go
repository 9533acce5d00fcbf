package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"trackbridge/internal/config"
	"trackbridge/internal/models"
	"trackbridge/internal/parser"
)

const (
	sourceCSV     = "csv"
	sourceSpotify = "spotify"
	sourceYouTube = "youtube"
)

var errNoSpotifyCredentials = errors.New("spotify sources need SPOTIFY_ID and SPOTIFY_SECRET (or SPOTIFY_TOKEN)")

// sourceLoader produces raw records from the supported inputs.
type sourceLoader struct {
	spotify *parser.SpotifyParser // nil without spotify credentials
	youtube parser.YouTubeClient  // nil uses the default client
}

func newSourceLoader(ctx context.Context, cfg *config.Config) sourceLoader {
	var l sourceLoader
	if cfg.Spotify.Token != "" || (cfg.Spotify.ClientID != "" && cfg.Spotify.ClientSecret != "") {
		l.spotify = parser.NewSpotifyParser(newSpotifyClient(ctx, cfg))
	}
	return l
}

// detectSourceType guesses the source kind from a path or URL.
func detectSourceType(src string) string {
	lower := strings.ToLower(strings.TrimSpace(src))
	switch {
	case strings.HasPrefix(lower, "spotify:") || strings.Contains(lower, "spotify.com"):
		return sourceSpotify
	case strings.Contains(lower, "youtube.com") || strings.Contains(lower, "youtu.be"):
		return sourceYouTube
	default:
		return sourceCSV
	}
}

func (l sourceLoader) load(ctx context.Context, kind, src string) ([]models.RawTrackRecord, models.SourceInfo, error) {
	if kind == sourceCSV {
		return loadCSVFile(src)
	}
	return l.fromURL(ctx, kind, src)
}

func loadCSVFile(path string) ([]models.RawTrackRecord, models.SourceInfo, error) {
	info := models.SourceInfo{
		Type: sourceCSV,
		Name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, info, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	recs, err := parser.ParseCSV(f)
	if err != nil {
		return nil, info, fmt.Errorf("parse %s: %w", path, err)
	}
	return recs, info, nil
}

// fromURL reads a Spotify or YouTube playlist, album or single item.
func (l sourceLoader) fromURL(ctx context.Context, kind, rawURL string) ([]models.RawTrackRecord, models.SourceInfo, error) {
	info := models.SourceInfo{Type: kind, URL: rawURL}
	if err := validateSourceURL(kind, rawURL); err != nil {
		return nil, info, err
	}

	var (
		recs []models.RawTrackRecord
		err  error
	)
	switch kind {
	case sourceSpotify:
		if l.spotify == nil {
			return nil, info, errNoSpotifyCredentials
		}
		recs, info.Name, err = l.spotify.Parse(ctx, rawURL)
	case sourceYouTube:
		recs, info.Name, err = parser.ParseYouTube(ctx, l.youtube, rawURL)
	default:
		return nil, info, fmt.Errorf("unsupported source type %q", kind)
	}
	if err != nil {
		return nil, info, fmt.Errorf("extract %s: %w", kind, err)
	}
	return recs, info, nil
}

func validateSourceURL(kind, rawURL string) error {
	if kind == sourceSpotify && strings.HasPrefix(rawURL, "spotify:") {
		return nil
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("invalid URL %q", rawURL)
	}
	host := strings.ToLower(u.Host)
	switch kind {
	case sourceSpotify:
		if !strings.Contains(host, "spotify.com") {
			return fmt.Errorf("not a Spotify URL: %s", rawURL)
		}
	case sourceYouTube:
		if !strings.Contains(host, "youtube.com") && !strings.Contains(host, "youtu.be") {
			return fmt.Errorf("not a YouTube URL: %s", rawURL)
		}
	}
	return nil
}
