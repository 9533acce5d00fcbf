package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/zmb3/spotify/v2"
	"golang.org/x/time/rate"

	"trackbridge/internal/models"
)

// Spotify accepts at most this many tracks per add request.
const spotifyAddChunk = 100

var _ Catalog = (*Spotify)(nil)

// Spotify adapts the Spotify Web API to Catalog.
type Spotify struct {
	client  *spotify.Client
	limiter *rate.Limiter
}

// NewSpotify wraps client. A nil limiter disables local pacing.
func NewSpotify(client *spotify.Client, limiter *rate.Limiter) *Spotify {
	return &Spotify{client: client, limiter: limiter}
}

// DefaultSpotifyLimiter paces requests at 10 per second with a small burst.
func DefaultSpotifyLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(100*time.Millisecond), 5)
}

func (s *Spotify) Name() string { return "spotify" }

func (s *Spotify) SupportsFieldFilters() bool { return true }

func (s *Spotify) wait(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Wait(ctx)
}

func (s *Spotify) Search(ctx context.Context, query string, limit int) ([]models.MatchCandidate, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	res, err := s.client.Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(limit))
	if err != nil {
		return nil, mapSpotifyError("search", err)
	}
	if res.Tracks == nil {
		return nil, nil
	}
	out := make([]models.MatchCandidate, 0, len(res.Tracks.Tracks))
	for _, t := range res.Tracks.Tracks {
		out = append(out, SpotifyCandidate(t))
	}
	return out, nil
}

// Tracks reads every track of a playlist, following pagination. Local files
// and podcast episodes are skipped.
func (s *Spotify) Tracks(ctx context.Context, playlistID string) ([]models.MatchCandidate, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	page, err := s.client.GetPlaylistItems(ctx, spotify.ID(playlistID))
	if err != nil {
		return nil, mapSpotifyError("playlist items", err)
	}

	var out []models.MatchCandidate
	for {
		for _, item := range page.Items {
			if item.IsLocal || item.Track.Track == nil || item.Track.Track.ID == "" {
				continue
			}
			out = append(out, SpotifyCandidate(*item.Track.Track))
		}

		if err := s.wait(ctx); err != nil {
			return out, err
		}
		err = s.client.NextPage(ctx, page)
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		}
		if err != nil {
			return out, mapSpotifyError("playlist pagination", err)
		}
	}
	return out, nil
}

// AddTracks appends uris to the playlist in chunks of 100, preserving order.
func (s *Spotify) AddTracks(ctx context.Context, playlistID string, uris []string) error {
	ids := make([]spotify.ID, 0, len(uris))
	for _, u := range uris {
		ids = append(ids, SpotifyID(u))
	}
	for i := 0; i < len(ids); i += spotifyAddChunk {
		end := min(i+spotifyAddChunk, len(ids))
		if err := s.wait(ctx); err != nil {
			return err
		}
		if _, err := s.client.AddTracksToPlaylist(ctx, spotify.ID(playlistID), ids[i:end]...); err != nil {
			return mapSpotifyError("add tracks", err)
		}
	}
	return nil
}

// SpotifyCandidate flattens a Spotify track into a MatchCandidate.
func SpotifyCandidate(t spotify.FullTrack) models.MatchCandidate {
	artists := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		artists = append(artists, a.Name)
	}
	return models.MatchCandidate{
		ID:      string(t.ID),
		URI:     string(t.URI),
		Name:    t.Name,
		Artists: artists,
		Album:   t.Album.Name,
	}
}

// SpotifyID accepts a spotify:track:<id> URI, an open.spotify.com URL or a
// bare ID.
func SpotifyID(s string) spotify.ID {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "spotify:") {
		parts := strings.Split(s, ":")
		return spotify.ID(parts[len(parts)-1])
	}
	if i := strings.LastIndex(s, "/"); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.IndexByte(s, '?'); i >= 0 {
		s = s[:i]
	}
	return spotify.ID(s)
}

func mapSpotifyError(op string, err error) error {
	var se spotify.Error
	if errors.As(err, &se) {
		switch se.Status {
		case http.StatusTooManyRequests:
			return &RateLimitError{Err: fmt.Errorf("spotify %s: %w", op, err)}
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("spotify %s: %w: %v", op, ErrUnauthorized, err)
		}
	}
	return fmt.Errorf("spotify %s: %w", op, err)
}
