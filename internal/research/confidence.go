package research

import (
	"regexp"
	"strings"
	"time"
)

// Heuristic confidence is built from four independently-capped components.
// It is deterministic and content-based, independent of any model's
// self-reported confidence.
const (
	maxSourceQualityScore   = 0.3
	maxDataConsistencyScore = 0.3
	maxRecencyScore         = 0.2
	maxCompletenessScore    = 0.2
)

var yearPattern = regexp.MustCompile(`\b(20\d{2})\b`)

var officialSourceKeywords = []string{
	"port authority", ".gov", "government", "ministry", "official",
	"imo.org", "unctad",
}

var directorySourceKeywords = []string{
	"lloyd", "maritime", "worldportsource", "portguide", "directory",
	"shipping", "harbour", "harbor",
}

// HeuristicConfidence scores findings text plus its source list into [0,1].
func HeuristicConfidence(text string, sources []string, now time.Time) float64 {
	score := sourceQualityScore(text, sources) +
		dataConsistencyScore(sources) +
		recencyScore(text, now) +
		completenessScore(text)
	if score > 1.0 {
		return 1.0
	}
	return score
}

// sourceQualityScore: official/government match 0.3, maritime directory 0.2,
// any source present 0.1, else 0.
func sourceQualityScore(text string, sources []string) float64 {
	haystack := strings.ToLower(text + " " + strings.Join(sources, " "))
	for _, kw := range officialSourceKeywords {
		if strings.Contains(haystack, kw) {
			return maxSourceQualityScore
		}
	}
	for _, kw := range directorySourceKeywords {
		if strings.Contains(haystack, kw) {
			return 0.2
		}
	}
	if len(sources) > 0 {
		return 0.1
	}
	return 0
}

// dataConsistencyScore: two or more corroborating sources 0.3, one 0.15,
// none 0.05.
func dataConsistencyScore(sources []string) float64 {
	switch {
	case len(sources) >= 2:
		return maxDataConsistencyScore
	case len(sources) == 1:
		return 0.15
	default:
		return 0.05
	}
}

// recencyScore extracts the most recent 4-digit year (20xx) mentioned in the
// text: ≤1y old 0.2, ≤3y 0.1, older 0.05. No year found scores a neutral 0.1.
func recencyScore(text string, now time.Time) float64 {
	matches := yearPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return 0.1
	}

	latest := 0
	for _, m := range matches {
		y := int(m[0]-'0')*1000 + int(m[1]-'0')*100 + int(m[2]-'0')*10 + int(m[3]-'0')
		if y > latest && y <= now.Year()+1 {
			latest = y
		}
	}
	if latest == 0 {
		return 0.1
	}

	age := now.Year() - latest
	switch {
	case age <= 1:
		return maxRecencyScore
	case age <= 3:
		return 0.1
	default:
		return 0.05
	}
}

// completenessScore: substantive text with hard numbers 0.2, substantive
// text 0.1, thin text 0.05.
func completenessScore(text string) float64 {
	long := len(text) > 100
	if long && strings.ContainsAny(text, "0123456789") {
		return maxCompletenessScore
	}
	if long {
		return 0.1
	}
	return 0.05
}
