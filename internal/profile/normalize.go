package profile

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// legalSuffixes are trailing legal-entity tokens stripped during
// normalization, matched after case-folding and punctuation removal.
var legalSuffixes = map[string]bool{
	"inc":         true,
	"llc":         true,
	"ltd":         true,
	"corp":        true,
	"corporation": true,
	"limited":     true,
	"co":          true,
}

// diacriticStripper removes combining marks after NFD decomposition, so
// "Café" folds to "Cafe".
var diacriticStripper = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// Normalize canonicalizes a company name for matching: case-fold, strip
// diacritics and punctuation, collapse whitespace, and drop trailing
// legal-entity suffixes. Idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))

	if folded, _, err := transform.String(diacriticStripper, n); err == nil {
		n = folded
	}

	// Strip punctuation, keeping letters, digits and spaces.
	var b strings.Builder
	b.Grow(len(n))
	for _, r := range n {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	n = b.String()

	words := strings.Fields(n)

	// Drop trailing legal suffixes. Repeats so "acme holdings co ltd"
	// reduces fully, which is also what makes Normalize idempotent.
	for len(words) > 1 && legalSuffixes[words[len(words)-1]] {
		words = words[:len(words)-1]
	}

	return strings.Join(words, " ")
}

// NormalizeDomain strips protocol and www prefix from a URL so website
// equality checks compare bare hosts.
func NormalizeDomain(rawURL string) string {
	d := strings.TrimSpace(rawURL)
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimPrefix(d, "www.")
	d = strings.TrimSuffix(d, "/")
	return strings.ToLower(d)
}
