package research

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var testNow = time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)

func TestHeuristicConfidenceBounds(t *testing.T) {
	longNumeric := "The port handled 14,800,000 TEU in 2026 across its 42 berths according to the annual report published by the authority."

	tests := []struct {
		name    string
		text    string
		sources []string
	}{
		{"empty input", "", nil},
		{"thin text no sources", "small harbor", nil},
		{"rich official text", longNumeric + " port authority", []string{"https://portauthority.gov/stats", "https://unctad.org/data"}},
		{"directory only", "Listed in the maritime directory.", []string{"https://worldportsource.com/x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := HeuristicConfidence(tt.text, tt.sources, testNow)
			assert.GreaterOrEqual(t, score, 0.0)
			assert.LessOrEqual(t, score, 1.0)
		})
	}
}

func TestHeuristicConfidenceEmptyInputIsLow(t *testing.T) {
	// No sources, no year, thin text: 0 + 0.05 + 0.1 + 0.05.
	score := HeuristicConfidence("", nil, testNow)
	assert.InDelta(t, 0.2, score, 1e-9)
	assert.LessOrEqual(t, score, 0.25)
}

func TestHeuristicConfidenceCapsAtOne(t *testing.T) {
	text := "Official port authority statistics for 2026: 15,000,000 TEU throughput, 40 berths, published by the government ministry."
	sources := []string{"https://authority.gov/report", "https://ministry.gov/ports"}
	score := HeuristicConfidence(text, sources, testNow)
	assert.InDelta(t, 1.0, score, 1e-9)
}

func TestSourceQualityScore(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		sources []string
		want    float64
	}{
		{"official keyword in text", "per the port authority", nil, 0.3},
		{"gov source", "", []string{"https://transport.gov/x"}, 0.3},
		{"maritime directory", "", []string{"https://maritime-database.com"}, 0.2},
		{"generic source", "", []string{"https://example.com"}, 0.1},
		{"nothing", "", nil, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, sourceQualityScore(tt.text, tt.sources), 1e-9)
		})
	}
}

func TestDataConsistencyScore(t *testing.T) {
	assert.InDelta(t, 0.3, dataConsistencyScore([]string{"a", "b"}), 1e-9)
	assert.InDelta(t, 0.3, dataConsistencyScore([]string{"a", "b", "c"}), 1e-9)
	assert.InDelta(t, 0.15, dataConsistencyScore([]string{"a"}), 1e-9)
	assert.InDelta(t, 0.05, dataConsistencyScore(nil), 1e-9)
}

func TestRecencyScore(t *testing.T) {
	tests := []struct {
		name string
		text string
		want float64
	}{
		{"current year", "expansion completed in 2026", 0.2},
		{"last year", "figures from 2025", 0.2},
		{"three years old", "the 2023 annual report", 0.1},
		{"stale", "a 2015 study", 0.05},
		{"no year", "no dates here", 0.1},
		{"future year ignored", "projected for 2040", 0.1},
		{"latest year wins", "built 2010, expanded 2026", 0.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, recencyScore(tt.text, testNow), 1e-9)
		})
	}
}

func TestCompletenessScore(t *testing.T) {
	long := "This facility description is comfortably longer than one hundred characters so it counts as substantive text for scoring."
	assert.InDelta(t, 0.2, completenessScore(long+" 42 berths"), 1e-9)
	assert.InDelta(t, 0.2, completenessScore(fmt.Sprintf("%s %d", long, 7)), 1e-9)
	assert.InDelta(t, 0.1, completenessScore(long), 1e-9)
	assert.InDelta(t, 0.05, completenessScore("short"), 1e-9)
}
