package customer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// NormalizeName returns the matching key for a customer name: surrounding
// whitespace trimmed, inner runs collapsed to one space, lowercased.
func NormalizeName(raw string) string {
	return strings.ToLower(collapseWhitespace(raw))
}

// DisplayName returns the stored form of a customer name. Each word gets its
// first rune uppercased and the rest lowercased; hyphens and apostrophes are
// not treated as word breaks.
func DisplayName(raw string) string {
	words := strings.Split(collapseWhitespace(raw), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		first, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(first)) + strings.ToLower(w[size:])
	}
	return strings.Join(words, " ")
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
