package parser

import (
	"regexp"
	"strings"
)

var (
	// Noise reduction regex
	noiseRegex    = regexp.MustCompile(`(?i)\s*[(\[](?:official\s+(?:music\s+)?(?:video|audio|visualizer)|lyric(?:s)?(?:\s+video)?|audio|video|hd|hq|4k|visualizer)[)\]]`)
	topicSuffix   = regexp.MustCompile(`(?i)\s+-\s+topic$`)
	vevoSuffix    = regexp.MustCompile(`(?i)vevo$`)
	spaceRegex    = regexp.MustCompile(`\s{2,}`)
	splitRegex    = regexp.MustCompile(`\s+[-–—|:]\s+`)
	featureMarker = regexp.MustCompile(`(?i)\b(?:feat\.?|ft\.?|featuring)\s`)
)

// SplitVideoTitle guesses artist and title from a video title such as
// "Artist - Title (Official Video)". Without a separator the channel name
// stands in for the artist.
func SplitVideoTitle(rawTitle, channel string) (artist, title string) {
	t := noiseRegex.ReplaceAllString(rawTitle, "")
	t = spaceRegex.ReplaceAllString(t, " ")
	t = strings.TrimSpace(t)

	parts := splitRegex.Split(t, 2)
	if len(parts) == 2 {
		left, right := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		if looksLikeArtist(left, right) {
			return left, right
		}
		return right, left
	}

	return cleanChannel(channel), t
}

// cleanChannel strips the auto-generated " - Topic" and VEVO suffixes.
func cleanChannel(channel string) string {
	c := topicSuffix.ReplaceAllString(strings.TrimSpace(channel), "")
	if c != "VEVO" {
		c = vevoSuffix.ReplaceAllString(c, "")
	}
	return strings.TrimSpace(c)
}

// looksLikeArtist reports whether left is the artist side of a split title:
// it names several artists or carries a featuring marker, or it is short
// while the other side is not.
func looksLikeArtist(left, right string) bool {
	if strings.Contains(left, ",") || strings.Contains(left, "&") || featureMarker.MatchString(left+" ") {
		return true
	}
	if featureMarker.MatchString(right + " ") {
		return true
	}

	leftWords := len(strings.Fields(left))
	rightWords := len(strings.Fields(right))
	return leftWords <= 4 || leftWords < rightWords
}
