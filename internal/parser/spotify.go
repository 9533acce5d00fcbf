package parser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/zmb3/spotify/v2"

	"trackbridge/internal/models"
)

type SpotifyParser struct {
	client *spotify.Client
}

func NewSpotifyParser(client *spotify.Client) *SpotifyParser {
	return &SpotifyParser{client: client}
}

// Parse reads a playlist, album or single track URL through the Web API.
func (p *SpotifyParser) Parse(ctx context.Context, rawURL string) ([]models.RawTrackRecord, string, error) {
	id, mediaType, err := ParseSpotifyURL(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("spotify parse url: %w", err)
	}

	switch mediaType {
	case "playlist":
		return p.handlePlaylist(ctx, id)
	case "album":
		return p.handleAlbum(ctx, id)
	case "track":
		return p.handleTrack(ctx, id)
	default:
		return nil, "", fmt.Errorf("unsupported spotify type: %s", mediaType)
	}
}

func (p *SpotifyParser) handlePlaylist(ctx context.Context, id spotify.ID) ([]models.RawTrackRecord, string, error) {
	res, err := p.client.GetPlaylist(ctx, id)
	if err != nil {
		return nil, "", fmt.Errorf("get playlist: %w", err)
	}

	page, err := p.client.GetPlaylistItems(ctx, id)
	if err != nil {
		return nil, res.Name, fmt.Errorf("get playlist items: %w", err)
	}

	var records []models.RawTrackRecord
	for {
		for _, item := range page.Items {
			if item.IsLocal || item.Track.Track == nil || item.Track.Track.ID == "" {
				continue
			}
			records = append(records, fullTrackRecord(*item.Track.Track))
		}

		err = p.client.NextPage(ctx, page)
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		}
		if err != nil {
			return records, res.Name, fmt.Errorf("playlist pagination error: %w", err)
		}
	}

	return records, res.Name, nil
}

func (p *SpotifyParser) handleAlbum(ctx context.Context, id spotify.ID) ([]models.RawTrackRecord, string, error) {
	res, err := p.client.GetAlbum(ctx, id)
	if err != nil {
		return nil, "", fmt.Errorf("get album: %w", err)
	}

	var records []models.RawTrackRecord
	page := &res.Tracks
	for {
		for _, t := range page.Tracks {
			rec := simpleTrackRecord(t)
			rec[KeyAlbum] = res.Name
			if res.ReleaseDate != "" {
				rec[KeyYear] = res.ReleaseDate
			}
			records = append(records, rec)
		}

		err = p.client.NextPage(ctx, page)
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		}
		if err != nil {
			return records, res.Name, fmt.Errorf("album pagination error: %w", err)
		}
	}

	return records, res.Name, nil
}

func (p *SpotifyParser) handleTrack(ctx context.Context, id spotify.ID) ([]models.RawTrackRecord, string, error) {
	res, err := p.client.GetTrack(ctx, id)
	if err != nil {
		return nil, "", fmt.Errorf("get track: %w", err)
	}
	return []models.RawTrackRecord{fullTrackRecord(*res)}, res.Name, nil
}

// ParseSpotifyURL extracts the ID and media type from an open.spotify.com
// URL or a spotify:<type>:<id> URI.
func ParseSpotifyURL(raw string) (spotify.ID, string, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "spotify:") {
		parts := strings.Split(raw, ":")
		if len(parts) == 3 && parts[2] != "" {
			return spotify.ID(parts[2]), parts[1], nil
		}
		return "", "", fmt.Errorf("malformed spotify URI %q", raw)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", "", err
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+1 < len(segments); i++ {
		switch segments[i] {
		case "playlist", "album", "track":
			if segments[i+1] != "" {
				return spotify.ID(segments[i+1]), segments[i], nil
			}
		}
	}
	return "", "", fmt.Errorf("could not identify media type from URL")
}

func artistNames(artists []spotify.SimpleArtist) string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

func simpleTrackRecord(st spotify.SimpleTrack) models.RawTrackRecord {
	rec := models.RawTrackRecord{
		KeyTitle:     st.Name,
		KeyArtist:    artistNames(st.Artists),
		KeySourceURI: string(st.URI),
	}
	if st.Duration > 0 {
		rec[KeyDurationMS] = int(st.Duration)
	}
	return rec
}

func fullTrackRecord(st spotify.FullTrack) models.RawTrackRecord {
	rec := simpleTrackRecord(st.SimpleTrack)
	rec[KeyAlbum] = st.Album.Name
	if st.Album.ReleaseDate != "" {
		rec[KeyYear] = st.Album.ReleaseDate
	}
	if isrc := st.ExternalIDs["isrc"]; isrc != "" {
		rec[KeyISRC] = isrc
	}
	return rec
}
