package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// titleCase lowercases s and capitalizes each word. Stop-words stay lowercase
// unless they open or close the string. Short all-caps words such as DJ or
// USA are left alone when the rest of the string is mixed case.
func titleCase(s string) string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return ""
	}
	shouting := strings.IndexFunc(s, unicode.IsLower) < 0
	caser := cases.Title(language.Und)
	last := len(words) - 1
	for i, w := range words {
		lower := strings.ToLower(w)
		if _, stop := stopWords[lower]; stop && i != 0 && i != last {
			words[i] = lower
			continue
		}
		if !shouting && isAcronym(w) {
			continue
		}
		words[i] = caser.String(lower)
	}
	return strings.Join(words, " ")
}

func isAcronym(w string) bool {
	letters := 0
	for _, r := range w {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			letters++
		}
	}
	return letters > 1 && len([]rune(w)) <= 4
}
