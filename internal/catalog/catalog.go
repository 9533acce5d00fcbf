// Package catalog is the boundary with remote music catalogs: searching for
// candidate tracks, reading an existing collection, and adding tracks to it.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"trackbridge/internal/models"
)

// Searcher finds candidate tracks for a free-text query.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]models.MatchCandidate, error)
	// SupportsFieldFilters reports whether queries may use track:/artist:
	// field scoping.
	SupportsFieldFilters() bool
}

// Collection reads the tracks already present in a playlist or library.
type Collection interface {
	Tracks(ctx context.Context, collectionID string) ([]models.MatchCandidate, error)
}

// Adder appends tracks to a playlist or library, in the given order.
type Adder interface {
	AddTracks(ctx context.Context, collectionID string, uris []string) error
}

// Catalog is a full catalog implementation.
type Catalog interface {
	Searcher
	Collection
	Adder
	Name() string
}

var (
	// ErrRateLimited marks errors the caller may retry after backing off.
	ErrRateLimited  = errors.New("catalog: rate limited")
	ErrUnauthorized = errors.New("catalog: unauthorized")
)

// RateLimitError carries the retry-after hint a catalog sent with a 429.
type RateLimitError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	msg := ErrRateLimited.Error()
	if e.RetryAfter > 0 {
		msg = fmt.Sprintf("%s (retry after %s)", msg, e.RetryAfter)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RateLimitError) Unwrap() error { return e.Err }

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }

// IsRateLimited reports whether err is a rate-limit signal and returns its
// retry-after hint, if any.
func IsRateLimited(err error) (bool, time.Duration) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return true, rl.RetryAfter
	}
	return errors.Is(err, ErrRateLimited), 0
}
