package research

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchFieldName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		key   string
		label string
		want  MatchRank
	}{
		{"exact key", "annual_teu", "annual_teu", "Annual TEU", MatchExact},
		{"exact label case-insensitive", "ANNUAL TEU", "annual_teu", "Annual TEU", MatchExact},
		{"key embedded in paraphrase", "the annual_teu figure", "annual_teu", "Annual TEU", MatchSubstring},
		{"label embedded", "estimated Annual TEU throughput", "annual_teu", "Annual TEU", MatchSubstring},
		{"name inside key", "teu", "annual_teu", "Annual TEU", MatchSubstring},
		{"short name inside label", "annual", "annual_teu", "Annual TEU", MatchSubstring},
		{"unrelated", "berth_count", "annual_teu", "Annual TEU", MatchNone},
		{"empty", "", "annual_teu", "Annual TEU", MatchNone},
		{"whitespace trimmed", "  operator  ", "operator", "Operator", MatchExact},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchFieldName(tt.input, tt.key, tt.label))
		})
	}
}

func TestBestMatchPrefersExact(t *testing.T) {
	decisions := []updateDecision{
		{Field: "the operator company", ShouldUpdate: false},
		{Field: "operator", ShouldUpdate: true},
	}

	d, found := bestMatch("operator", "Operator", decisions, func(d updateDecision) string { return d.Field })
	assert.True(t, found)
	assert.True(t, d.ShouldUpdate)
}

func TestBestMatchFallsBackToSubstring(t *testing.T) {
	decisions := []updateDecision{
		{Field: "berth count value", ShouldUpdate: true},
		{Field: "max draft", ShouldUpdate: false},
	}

	d, found := bestMatch("berth_count", "Berth Count", decisions, func(d updateDecision) string { return d.Field })
	assert.True(t, found)
	assert.True(t, d.ShouldUpdate)

	_, found = bestMatch("locode", "UN/LOCODE", decisions, func(d updateDecision) string { return d.Field })
	assert.False(t, found)
}
