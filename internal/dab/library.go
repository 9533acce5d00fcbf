package dab

import (
	"context"
	"fmt"
	"net/url"

	"trackbridge/internal/models"
)

// ValidateToken checks the session and returns the DAB user ID.
func (c *Client) ValidateToken(ctx context.Context) (string, error) {
	var result struct {
		User struct {
			ID any `json:"id"`
		} `json:"user"`
	}
	if err := c.DoRequest(ctx, "GET", "/auth/me", nil, &result); err != nil {
		return "", fmt.Errorf("validate token: %w", err)
	}
	if result.User.ID == nil {
		return "", fmt.Errorf("validate token: no user in response")
	}
	return fmt.Sprint(result.User.ID), nil
}

// Tracks fetches every track currently in a DAB library.
func (c *Client) Tracks(ctx context.Context, libraryID string) ([]models.MatchCandidate, error) {
	var result struct {
		Tracks []DabTrack `json:"tracks"`
	}
	err := c.DoRequest(ctx, "GET", fmt.Sprintf("/libraries/%s/tracks", url.PathEscape(libraryID)), nil, &result)
	if err != nil {
		return nil, fmt.Errorf("fetch library tracks: %w", err)
	}

	out := make([]models.MatchCandidate, 0, len(result.Tracks))
	for _, t := range result.Tracks {
		out = append(out, t.Candidate())
	}
	return out, nil
}

// GetLibraryInfo fetches the library's name.
func (c *Client) GetLibraryInfo(ctx context.Context, id string) (*models.LibraryInfo, error) {
	var result struct {
		Library models.LibraryInfo `json:"library"`
	}
	if err := c.DoRequest(ctx, "GET", fmt.Sprintf("/libraries/%s", url.PathEscape(id)), nil, &result); err != nil {
		return nil, err
	}
	return &result.Library, nil
}

// CreateLibrary creates a new library and returns its ID.
func (c *Client) CreateLibrary(ctx context.Context, name string) (string, error) {
	payload := map[string]any{
		"name":        name,
		"description": "Created by trackbridge",
		"isPublic":    false,
	}
	var result struct {
		Library struct {
			ID string `json:"id"`
		} `json:"library"`
	}
	if err := c.DoRequest(ctx, "POST", "/libraries", payload, &result); err != nil {
		return "", err
	}
	return result.Library.ID, nil
}

// AddTracks adds tracks one at a time, in order. DAB has no batch endpoint.
func (c *Client) AddTracks(ctx context.Context, libraryID string, ids []string) error {
	path := fmt.Sprintf("/libraries/%s/tracks", url.PathEscape(libraryID))
	for _, id := range ids {
		if err := c.DoRequest(ctx, "POST", path, map[string]any{"trackId": id}, nil); err != nil {
			return fmt.Errorf("add track %s: %w", id, err)
		}
	}
	return nil
}
