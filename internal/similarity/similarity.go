// Package similarity scores how alike two strings are on a 0..1 scale by
// blending edit distance with whitespace token overlap.
package similarity

import (
	"strings"
	"unicode/utf8"

	"github.com/adrg/strutil/metrics"
)

const (
	editWeight  = 0.6
	tokenWeight = 0.4
)

// Compare returns 0.6*Levenshtein + 0.4*Jaccard. Equal strings (including
// two empty strings) score 1 and a single empty side scores 0.
func Compare(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	return editWeight*Levenshtein(a, b) + tokenWeight*Jaccard(a, b)
}

// Levenshtein is (maxLen - distance) / maxLen measured in runes.
func Levenshtein(a, b string) float64 {
	if a == b {
		return 1
	}
	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return 1
	}

	lev := metrics.NewLevenshtein()
	distance := lev.Distance(a, b)
	return float64(maxLen-distance) / float64(maxLen)
}

// Jaccard compares the sets of whitespace separated tokens.
func Jaccard(a, b string) float64 {
	left := tokenSet(a)
	right := tokenSet(b)

	union := len(left)
	intersection := 0
	for tok := range right {
		if _, ok := left[tok]; ok {
			intersection++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(s)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
