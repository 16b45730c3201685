package attendance

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeText composes text to NFC and drops control characters, so
// messages travel and display the same way regardless of their source.
func NormalizeText(s string) string {
	t := transform.Chain(norm.NFC, runes.Remove(runes.Predicate(isDroppedControl)))
	result, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return strings.TrimSpace(result)
}

func isDroppedControl(r rune) bool {
	return unicode.IsControl(r) && r != '\n'
}
