package usecase

import (
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/width"
)

// canonicalRunes maps locale-variant glyphs to the form stored in the taxonomy
// and origin tables. Targets must never appear as keys.
var canonicalRunes = map[rune]rune{
	'台': '臺',
}

// Normalize canonicalizes scraped text:
//  1. full-width digits, letters and symbols are folded to their half-width form
//  2. whitespace of any width is removed
//  3. variant glyphs are replaced by their canonical form
//
// Unmapped characters pass through unchanged and Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	t := transform.Chain(
		width.Narrow,
		runes.Remove(runes.In(unicode.White_Space)),
		runes.Map(canonicalRune),
	)

	out, _, err := transform.String(t, s)
	if err != nil {
		// transformers above never fail on valid input; keep the original text otherwise
		return s
	}
	return out
}

func canonicalRune(r rune) rune {
	if c, ok := canonicalRunes[r]; ok {
		return c
	}
	return r
}
