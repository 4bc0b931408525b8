package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"strips comma and inc", "Acme, Inc.", "acme"},
		{"case insensitive", "ACME INC", "acme"},
		{"strips llc", "Globex LLC", "globex"},
		{"strips corporation", "Initech Corporation", "initech"},
		{"strips stacked suffixes", "Acme Holdings Co Ltd", "acme holdings"},
		{"keeps suffix-only name", "Co", "co"},
		{"collapses whitespace", "  Stark   Industries  ", "stark industries"},
		{"strips punctuation", "O'Brien & Sons, Ltd.", "obrien sons"},
		{"folds diacritics", "Café Münster GmbH Inc", "cafe munster gmbh"},
		{"keeps digits", "365 Retail Ltd", "365 retail"},
		{"empty input", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"Acme, Inc.",
		"ACME INC",
		"Globex Co Ltd",
		"Café Münster",
		"plain name",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "Normalize should be idempotent for %q", in)
	}
}

func TestNormalizeEquivalence(t *testing.T) {
	// The canonical matching property: punctuation and suffix variants of
	// the same company collapse to one normalized name.
	assert.Equal(t, Normalize("Acme, Inc."), Normalize("ACME INC"))
	assert.Equal(t, "acme", Normalize("Acme, Inc."))
	assert.Equal(t, Normalize("Acme Inc"), Normalize("acme"))
}

func TestNormalizeDomain(t *testing.T) {
	assert.Equal(t, "acme.com", NormalizeDomain("https://www.acme.com/"))
	assert.Equal(t, "acme.com", NormalizeDomain("http://acme.com"))
	assert.Equal(t, "acme.com/path", NormalizeDomain("https://Acme.COM/path/"))
	assert.Equal(t, "", NormalizeDomain("  "))
}
