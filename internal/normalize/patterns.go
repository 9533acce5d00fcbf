package normalize

import "regexp"

const versionKeywords = `(?:remix(?:es|ed)?|mix(?:es|ed)?|edit(?:s|ed)?|version|remaster(?:s|ed)?|live|acoustic|instrumental|radio|clean|explicit|deluxe)`

// Version clauses, tried in order. The first pattern that finds a
// qualifying clause wins.
var versionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\s*\(([^()]*\b` + versionKeywords + `\b[^()]*)\)`),
	regexp.MustCompile(`(?i)\s*\[([^\[\]]*\b` + versionKeywords + `\b[^\[\]]*)\]`),
	regexp.MustCompile(`(?i)\s+[-–—]\s+([^-–—]*\b` + versionKeywords + `\b[^-–—]*)$`),
}

// A clause that opens with a featuring keyword is credit, not a version.
var featureLead = regexp.MustCompile(`(?i)^\s*(?:feat\.?|featuring|ft\.?|with)\s`)

var (
	liveFlag         = regexp.MustCompile(`(?i)\blive\b`)
	remixFlag        = regexp.MustCompile(`(?i)remix|mix$`)
	instrumentalFlag = regexp.MustCompile(`(?i)instrumental`)
	explicitFlag     = regexp.MustCompile(`(?i)explicit`)
)

// Featured-artist patterns: bracketed forms first, then the bare trailing form.
var featurePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\s*[\(\[]\s*(?:feat\.?|featuring|ft\.?|with)\s+([^\)\]]+)[\)\]]`),
	regexp.MustCompile(`(?i)\s+(?:feat\.?|featuring|ft\.?)\s+(.+)$`),
}

var (
	featureSplit    = regexp.MustCompile(`\s*(?:,|&)\s*`)
	artistSeparator = regexp.MustCompile(`(?i)\s*(?:&|\+|,)\s*|\s+and\s+`)
	trailingArticle = regexp.MustCompile(`(?i)^(.+?),\s*(the|a|an)$`)
)

var albumSuffix = regexp.MustCompile(`(?i)\s*[\(\[]\s*(?:bonus track version|(?:deluxe|expanded|special)(?: edition)?|(?:\d{4} )?remaster(?:ed)?(?: \d{4})?(?: edition| version)?)\s*[\)\]]\s*$`)

var nonWord = regexp.MustCompile(`[^\p{L}\p{N}_]+`)

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "in": {},
	"on": {}, "at": {}, "to": {}, "for": {}, "of": {}, "with": {}, "by": {},
}

// Edition qualifiers ignored when comparing core titles.
var editionTokens = `(?:remaster(?:ed)?|deluxe|extended|radio edit|album version|single version|ultimate mix)`

var (
	editionClause = regexp.MustCompile(`(?i)\s*[\(\[][^\)\]]*\b` + editionTokens + `\b[^\)\]]*[\)\]]|\s+[-–—]\s+[^-–—]*\b` + editionTokens + `\b[^-–—]*$`)
	editionBare   = regexp.MustCompile(`(?i)\b` + editionTokens + `\b`)
)
