// Package quality scores normalized tracks and decides which of them are
// trustworthy enough to send to catalog search.
package quality

import (
	"regexp"
	"unicode/utf8"

	"trackbridge/internal/models"
)

const (
	IssueMissingTitle        = "missing_title"
	IssueMissingArtist       = "missing_artist"
	IssueSuspiciousTitle     = "suspicious_title"
	IssueSuspiciousArtist    = "suspicious_artist"
	IssueTitleTooShort       = "title_too_short"
	IssueTitleTooLong        = "title_too_long"
	IssueNormalizationFailed = "normalization_failed"
)

const (
	maxScore = 100

	missingFieldPenalty = 50
	suspiciousPenalty   = 20
	shortTitlePenalty   = 15
	longTitlePenalty    = 10
	optionalFieldBonus  = 5

	minTitleLength = 2
	maxTitleLength = 100

	highThreshold   = 85
	mediumThreshold = 70
)

var suspiciousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\d+$`),
	regexp.MustCompile(`^[^\p{L}\p{N}]+$`),
	regexp.MustCompile(`(?i)^track\s*\d+$`),
	regexp.MustCompile(`(?i)^unknown`),
	regexp.MustCompile(`(?i)^untitled`),
	regexp.MustCompile(`(?i)\b(?:test|debug|sample)\b`),
}

func isSuspicious(s string) bool {
	for _, p := range suspiciousPatterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

// ConfidenceFor maps a clamped score onto its tier.
func ConfidenceFor(score int) models.Confidence {
	switch {
	case score >= highThreshold:
		return models.ConfidenceHigh
	case score >= mediumThreshold:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

// Score rates a track from its display fields. Quality and Warnings on the
// input are ignored.
func Score(t models.NormalizedTrack) models.Quality {
	score := maxScore
	var issues []string

	if t.Title == "" {
		score -= missingFieldPenalty
		issues = append(issues, IssueMissingTitle)
	}
	if t.Artist == "" {
		score -= missingFieldPenalty
		issues = append(issues, IssueMissingArtist)
	}
	if t.Title != "" && isSuspicious(t.Title) {
		score -= suspiciousPenalty
		issues = append(issues, IssueSuspiciousTitle)
	}
	if t.Artist != "" && isSuspicious(t.Artist) {
		score -= suspiciousPenalty
		issues = append(issues, IssueSuspiciousArtist)
	}
	if t.Title != "" {
		switch n := utf8.RuneCountInString(t.Title); {
		case n < minTitleLength:
			score -= shortTitlePenalty
			issues = append(issues, IssueTitleTooShort)
		case n > maxTitleLength:
			score -= longTitlePenalty
			issues = append(issues, IssueTitleTooLong)
		}
	}

	if t.Title == "" && t.Artist == "" {
		// Nothing identifies the track; optional metadata cannot rescue it.
		score = 0
	} else {
		for _, present := range []bool{t.Album != "", t.Year != nil, t.Duration != nil, t.Genre != ""} {
			if present {
				score += optionalFieldBonus
			}
		}
	}

	score = clamp(score)
	return models.Quality{
		Score:      score,
		Confidence: ConfidenceFor(score),
		Issues:     issues,
	}
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > maxScore {
		return maxScore
	}
	return score
}

// Failed is the quality attached to a record whose normalization panicked.
func Failed() models.Quality {
	return models.Quality{
		Score:      0,
		Confidence: models.ConfidenceLow,
		Issues:     []string{IssueNormalizationFailed},
	}
}
