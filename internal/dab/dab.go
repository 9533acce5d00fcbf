// Package dab talks to the DAB music API: track search and library
// management.
package dab

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"

	"trackbridge/internal/models"
)

// DabTrack represents the DAB API response item.
type DabTrack struct {
	ID           json.Number `json:"id"`
	Title        string      `json:"title"`
	Artist       string      `json:"artist"`
	AlbumTitle   string      `json:"albumTitle"`
	AudioQuality struct {
		SamplingRate float64 `json:"maximumSamplingRate"`
		BitDepth     int     `json:"maximumBitDepth"`
		IsHiRes      bool    `json:"isHiRes"`
	} `json:"audioQuality"`
}

func (t DabTrack) Candidate() models.MatchCandidate {
	id := t.ID.String()
	var artists []string
	if t.Artist != "" {
		artists = []string{t.Artist}
	}
	return models.MatchCandidate{
		ID:      id,
		URI:     id,
		Name:    t.Title,
		Artists: artists,
		Album:   t.AlbumTitle,
	}
}

// DAB search is plain full text.
func (c *Client) SupportsFieldFilters() bool { return false }

// Search returns up to limit candidates. Among otherwise equal results the
// higher quality release comes first.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]models.MatchCandidate, error) {
	path := fmt.Sprintf("/search?q=%s&type=track", url.QueryEscape(query))
	if limit > 0 {
		path += "&limit=" + strconv.Itoa(limit)
	}

	var result struct {
		Tracks []DabTrack `json:"tracks"`
	}
	if err := c.DoRequest(ctx, "GET", path, nil, &result); err != nil {
		return nil, fmt.Errorf("dab search: %w", err)
	}

	tracks := result.Tracks
	if limit > 0 && len(tracks) > limit {
		tracks = tracks[:limit]
	}
	sortByQuality(tracks)

	out := make([]models.MatchCandidate, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, t.Candidate())
	}
	return out, nil
}

// sortByQuality orders identical title/artist pairs by sampling rate then
// bit depth, keeping the API order otherwise.
func sortByQuality(tracks []DabTrack) {
	sort.SliceStable(tracks, func(i, j int) bool {
		a, b := tracks[i], tracks[j]
		if a.Title != b.Title || a.Artist != b.Artist {
			return false
		}
		if a.AudioQuality.SamplingRate != b.AudioQuality.SamplingRate {
			return a.AudioQuality.SamplingRate > b.AudioQuality.SamplingRate
		}
		return a.AudioQuality.BitDepth > b.AudioQuality.BitDepth
	})
}
