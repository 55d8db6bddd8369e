package frame

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// CleanName converts a source column name to the lower snake case used by
// the output schema:
//  1. strip accents (NFD → remove Mn → NFC)
//  2. drop spaces, periods and hyphens
//  3. drop parenthesized groups
//  4. split on case boundaries and join the lower-cased words with "_"
//
// CleanName is idempotent.
func CleanName(s string) string {
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.NewReplacer(" ", "", ".", "", "-", "").Replace(folded)
	folded = parenGroup.ReplaceAllString(folded, "")
	return snakeCase(folded)
}

// snakeCase starts a new word at a lower→upper transition, and at the last
// upper of an upper run that is followed by a lower ("DDLat" → "DD", "Lat").
func snakeCase(s string) string {
	rs := []rune(s)
	var words []string
	var cur []rune
	for i, r := range rs {
		var prev, next rune
		if i > 0 {
			prev = rs[i-1]
		}
		if i+1 < len(rs) {
			next = rs[i+1]
		}
		split := unicode.IsLower(prev) && unicode.IsUpper(r) ||
			unicode.IsUpper(prev) && unicode.IsUpper(r) && unicode.IsLower(next)
		if split {
			words = append(words, string(cur))
			cur = cur[:0]
		}
		cur = append(cur, r)
	}
	words = append(words, string(cur))
	for i, w := range words {
		words[i] = strings.ToLower(w)
	}
	return strings.Join(words, "_")
}
