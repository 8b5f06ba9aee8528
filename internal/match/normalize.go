package match

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// diacriticStripper decomposes accented characters and drops the combining
// marks, so "Hôtel Thiès" and "Hotel Thies" normalize identically.
var diacriticStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeText lowercases, strips diacritics, replaces non-alphanumeric
// runs with single spaces and trims the result.
func NormalizeText(s string) string {
	s = strings.ToLower(s)
	if stripped, _, err := transform.String(diacriticStripper, s); err == nil {
		s = stripped
	}

	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		} else {
			pendingSpace = true
		}
	}
	return b.String()
}

// TextSimilarity scores two strings in [0,1] after normalization:
// identical → 1.0; full containment → max(0.7, shorter/longer);
// otherwise 1 − edit distance / longer length. Empty input scores 0.
func TextSimilarity(a, b string) float64 {
	na, nb := NormalizeText(a), NormalizeText(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}

	lenA, lenB := utf8.RuneCountInString(na), utf8.RuneCountInString(nb)
	shorter, longer := na, nb
	shortLen, longLen := lenA, lenB
	if shortLen > longLen {
		shorter, longer = nb, na
		shortLen, longLen = lenB, lenA
	}

	if strings.Contains(longer, shorter) {
		return math.Max(0.7, float64(shortLen)/float64(longLen))
	}

	dist := levenshtein.ComputeDistance(na, nb)
	sim := 1 - float64(dist)/float64(longLen)
	if sim < 0 {
		return 0
	}
	return sim
}
