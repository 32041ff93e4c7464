// Package textnorm provides the text normalization shared by the fuzzy
// matcher and the feature extractors: case folding, diacritic stripping,
// punctuation removal, and whitespace collapsing.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks decomposes to NFD, drops combining marks (diacritics), and
// recomposes, so "Cuvée" and "cuvee" normalize to the same form.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize returns the canonical matching form of s: lower-cased, diacritics
// removed, punctuation replaced by spaces, runs of whitespace collapsed to
// single spaces, and trimmed. Returns "" when nothing usable remains.
func Normalize(s string) string {
	folded, _, err := transform.String(stripMarks, s)
	if err != nil {
		// Transform fails only on invalid UTF-8; fall back to the raw input
		// rather than dropping the signal entirely.
		folded = s
	}

	folded = strings.ToLower(folded)

	var b strings.Builder
	b.Grow(len(folded))

	lastSpace := true
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}

	return strings.TrimSpace(b.String())
}

// Tokens returns the normalized whitespace-separated tokens of s.
func Tokens(s string) []string {
	n := Normalize(s)
	if n == "" {
		return nil
	}

	return strings.Fields(n)
}

// TokenOverlap returns |A∩B| / |A∪B| over the normalized token sets of a and
// b (Jaccard). Returns 0 when either side has no tokens.
func TokenOverlap(a, b string) float64 {
	ta, tb := Tokens(a), Tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	set := make(map[string]bool, len(ta))
	for _, tok := range ta {
		set[tok] = true
	}

	union := len(set)
	inter := 0

	seen := make(map[string]bool, len(tb))
	for _, tok := range tb {
		if seen[tok] {
			continue
		}
		seen[tok] = true

		if set[tok] {
			inter++
		} else {
			union++
		}
	}

	return float64(inter) / float64(union)
}
