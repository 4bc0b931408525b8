package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateFieldConfidence(t *testing.T) {
	year := 2015
	revenue := int64(4_000_000)
	var nilInt *int

	tests := []struct {
		name     string
		value    any
		expected float64
	}{
		{"nil", nil, 0},
		{"empty string", "", 0},
		{"whitespace string", "   ", 0},
		{"two chars", "AB", 30},
		{"short label", "SaaS", 65},
		{"medium text", "Enterprise workflow automation", 75},
		{"long description", "Acme builds workflow automation for mid-market logistics companies, combining route optimization with real-time fleet telemetry and carrier integrations.", 85},
		{"positive int", 250, 75},
		{"founded year pointer", &year, 75},
		{"revenue pointer", &revenue, 75},
		{"zero int", 0, 10},
		{"negative int", -5, 10},
		{"nil int pointer", nilInt, 0},
		{"empty slice", []string{}, 0},
		{"string slice", []string{"logistics", "retail"}, 70},
		{"executives", []Executive{{Name: "J. Smith", Title: "CEO"}}, 70},
		{"empty executives", []Executive{}, 0},
		{"tech stack", &TechStack{SchemaVersion: 1, Languages: []string{"Go"}}, 70},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, EstimateFieldConfidence(tt.value), 0.001)
		})
	}
}

func TestEstimateFieldConfidenceRange(t *testing.T) {
	values := []any{
		nil, "", "x", "SaaS", "a much longer piece of descriptive text about the company",
		-1, 0, 1, int64(99), 3.14, []string{"a"}, &TechStack{},
		[]FundingRound{{Round: "Series A"}},
	}
	for _, v := range values {
		score := EstimateFieldConfidence(v)
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 100.0)
	}
}
