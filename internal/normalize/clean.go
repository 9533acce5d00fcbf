package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var punctuation = strings.NewReplacer(
	"‘", "'", "’", "'", "‚", "'", "‛", "'", "′", "'",
	"“", `"`, "”", `"`, "„", `"`, "″", `"`,
	"…", "...",
	"‐", "-", "‑", "-", "‒", "-", "–", "-", "—", "-", "―", "-", "−", "-",
)

// cleanText canonicalizes free text: NFC, ASCII punctuation, single spaces,
// and no stray punctuation at either end. Brackets and terminal !/? survive
// so later stages can still see qualifier clauses.
func cleanText(s string) string {
	s = norm.NFC.String(s)
	s = punctuation.Replace(s)
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimFunc(s, isEdgeNoise)
}

func isEdgeNoise(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return false
	}
	switch r {
	case '(', ')', '[', ']', '!', '?':
		return false
	}
	return true
}

func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// SearchKey derives the comparison form of a display string: lowercase,
// diacritics folded, punctuation turned into spaces, stop-words dropped.
// When every token is a stop-word the unfiltered tokens are kept.
func SearchKey(s string) string {
	s = strings.ToLower(foldDiacritics(s))
	s = nonWord.ReplaceAllString(s, " ")
	tokens := strings.Fields(s)
	kept := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, stop := stopWords[tok]; stop {
			continue
		}
		kept = append(kept, tok)
	}
	if len(kept) == 0 {
		kept = tokens
	}
	return strings.Join(kept, " ")
}

// CoreTitle removes remaster and edition qualifiers so that
// "Thriller (2003 Remaster)" and "Thriller" compare equal.
func CoreTitle(title string) string {
	title = cleanText(title)
	title = editionClause.ReplaceAllString(title, "")
	title = editionBare.ReplaceAllString(title, " ")
	return strings.Join(strings.Fields(title), " ")
}

// StripBrackets drops everything from the first bracket onward.
func StripBrackets(title string) string {
	if idx := strings.IndexAny(title, "(["); idx > 0 {
		return strings.TrimSpace(title[:idx])
	}
	return title
}
