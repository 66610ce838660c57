// Package textnorm provides case-insensitive text matching helpers, ignoring
// surrounding whitespace, used when resolving a player's choice against the
// text of a Rules choice list.
package textnorm

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var folder = cases.Fold()

// Fold normalizes text for case-insensitive comparison: trims surrounding
// whitespace and applies Unicode case folding.
func Fold(s string) string {
	return folder.String(strings.TrimSpace(s))
}

// Equal reports whether a and b are equal after Fold.
func Equal(a, b string) bool {
	return Fold(a) == Fold(b)
}

// Contains reports whether haystack contains needle after Fold.
func Contains(haystack, needle string) bool {
	return strings.Contains(Fold(haystack), Fold(needle))
}

// TitleCase renders s in English title case.
func TitleCase(s string) string {
	return cases.Title(language.English).String(s)
}
