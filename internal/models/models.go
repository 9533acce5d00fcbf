package models

import (
	"strings"
	"time"
)

// RawTrackRecord is a single row as produced by a source parser. Keys are
// free-form field names (title, Name, ARTIST, ...) and values are strings or
// numbers.
type RawTrackRecord map[string]any

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

type Quality struct {
	Score      int        `json:"score"`
	Confidence Confidence `json:"confidence"`
	Issues     []string   `json:"issues,omitempty"`
}

// NormalizedTrack is the canonical, search-ready form of a RawTrackRecord.
// It is built once by the normalizer and treated as read-only afterwards.
type NormalizedTrack struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Album  string `json:"album,omitempty"`
	Genre  string `json:"genre,omitempty"`

	Year      *int `json:"year,omitempty"`
	Duration  *int `json:"duration,omitempty"`
	PlayCount *int `json:"play_count,omitempty"`

	Features []string `json:"features,omitempty"`
	Version  string   `json:"version,omitempty"`

	IsLive         bool `json:"is_live"`
	IsRemix        bool `json:"is_remix"`
	IsInstrumental bool `json:"is_instrumental"`
	IsExplicit     bool `json:"is_explicit"`

	SearchTitle  string `json:"search_title"`
	SearchArtist string `json:"search_artist"`
	SearchAlbum  string `json:"search_album,omitempty"`

	Quality Quality `json:"quality"`
	// Warnings lists raw numeric fields that were present but rejected
	// during validation (year_out_of_range, ...).
	Warnings []string `json:"warnings,omitempty"`

	Raw RawTrackRecord `json:"raw,omitempty"`
}

// FullTitle is the display title with its version qualifier re-attached.
func (t NormalizedTrack) FullTitle() string {
	if t.Version == "" {
		return t.Title
	}
	if t.Title == "" {
		return "(" + t.Version + ")"
	}
	return t.Title + " (" + t.Version + ")"
}

func (t NormalizedTrack) HasIssue(issue string) bool {
	for _, i := range t.Quality.Issues {
		if i == issue {
			return true
		}
	}
	return false
}

// MatchCandidate is a track returned by a catalog search or read from an
// existing collection.
type MatchCandidate struct {
	ID      string   `json:"id"`
	URI     string   `json:"uri"`
	Name    string   `json:"name"`
	Artists []string `json:"artists"`
	Album   string   `json:"album,omitempty"`
}

func (c MatchCandidate) ArtistNames() string {
	return strings.Join(c.Artists, ", ")
}

func (c MatchCandidate) PrimaryArtist() string {
	if len(c.Artists) == 0 {
		return ""
	}
	return c.Artists[0]
}

type MatchResult struct {
	Track      NormalizedTrack `json:"track"`
	Candidate  *MatchCandidate `json:"candidate"`
	Confidence float64         `json:"confidence"`
	Strategy   string          `json:"strategy,omitempty"`
	Error      string          `json:"error,omitempty"`
	Cached     bool            `json:"cached"`
}

func (r MatchResult) Matched() bool {
	return r.Candidate != nil
}

type DuplicateMethod string

const (
	MethodExactSignature   DuplicateMethod = "exact_signature"
	MethodCoreSignature    DuplicateMethod = "core_signature"
	MethodHighSimilarity   DuplicateMethod = "high_similarity"
	MethodMediumSimilarity DuplicateMethod = "medium_similarity_exact_artist"
	MethodNone             DuplicateMethod = "none"
)

type DuplicateVerdict struct {
	IsDuplicate     bool            `json:"is_duplicate"`
	Method          DuplicateMethod `json:"method"`
	Confidence      float64         `json:"confidence"`
	MatchedExisting *MatchCandidate `json:"matched_existing,omitempty"`
}

type SourceInfo struct {
	Type string `json:"type"`
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

type LibraryInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Report struct {
	RunID     string      `json:"run_id"`
	Library   LibraryInfo `json:"library"`
	Source    SourceInfo  `json:"source"`
	Timestamp time.Time   `json:"timestamp"`
	URIs      []string    `json:"uris"`
}
