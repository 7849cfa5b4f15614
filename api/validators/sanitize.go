package validators

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SanitizeString prepares free text such as search terms. Control characters
// are dropped and whitespace runs collapse to one space. The result is cut
// to at most maxRunes runes; maxRunes <= 0 means no limit.
func SanitizeString(input string, maxRunes int) string {
	visible := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, input)
	clean := strings.Join(strings.Fields(visible), " ")
	if maxRunes > 0 && utf8.RuneCountInString(clean) > maxRunes {
		clean = strings.TrimRightFunc(string([]rune(clean)[:maxRunes]), unicode.IsSpace)
	}
	return clean
}
