package research

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/port-research/internal/model"
)

// DefaultMaxReportChars bounds the combined report sent to the extraction
// service. Oversized reports keep head + tail and elide the middle so both
// opening context and concluding citations survive.
const DefaultMaxReportChars = 48000

const sectionDelimiter = "\n\n---\n\n"

// Combined confidence blend. The model's self-reported confidence reflects
// semantic understanding the heuristic cannot capture; the heuristic corrects
// for model overconfidence on thin evidence.
const (
	llmConfidenceWeight       = 0.6
	heuristicConfidenceWeight = 0.4
)

const extractionPromptTemplate = `You are a maritime research analyst. Extract structured facility data from the research findings below.

Facility: %s (%s)

Target fields:
%s

Research findings, one section per query (index in brackets):

%s

Return a single JSON object of the form:
{"fields": {"<field_key>": {"value": <value or null>, "confidence": <0.0-1.0>, "sources": [<query indices>], "quality": "explicit"|"inferred"|"partial"}, ...}}

Use null for fields the findings do not support. Source indices refer to the bracketed query indices above.`

// BuildCombinedReport concatenates successful query results under per-type
// section headers and returns the report plus an index map from query type
// to its integer position.
func BuildCombinedReport(queries []model.ResearchQuery, maxChars int) (string, map[model.QueryType]int) {
	if maxChars <= 0 {
		maxChars = DefaultMaxReportChars
	}

	indexMap := make(map[model.QueryType]int, len(queries))
	sections := make([]string, 0, len(queries))
	for i, q := range queries {
		indexMap[q.QueryType] = i
		header := fmt.Sprintf("[%d] === %s ===", i, strings.ToUpper(string(q.QueryType)))
		body := q.ResultText
		if len(q.Sources) > 0 {
			body += "\nSources: " + strings.Join(q.Sources, ", ")
		}
		sections = append(sections, header+"\n"+body)
	}

	report := strings.Join(sections, sectionDelimiter)
	return elideMiddle(report, maxChars), indexMap
}

// elideMiddle keeps the head and tail of oversized text and cuts the middle,
// rather than truncating from the end. Budgets too small to fit the marker
// degrade to a plain head truncation.
func elideMiddle(text string, maxChars int) string {
	if len(text) <= maxChars {
		return text
	}
	marker := "\n\n[... middle elided ...]\n\n"
	budget := maxChars - len(marker)
	if budget <= 0 {
		return text[:maxChars]
	}
	head := budget * 6 / 10
	tail := budget - head
	return text[:head] + marker + text[len(text)-tail:]
}

// rawExtraction is the tagged-union boundary type for the extraction
// response. Each field entry is either a bare scalar (legacy shape) or an
// enriched object; normalization resolves the ambiguity immediately and
// nothing past this stage sees it.
type rawExtraction struct {
	Fields map[string]json.RawMessage `json:"fields"`
}

type enrichedValue struct {
	Value      any           `json:"value"`
	Confidence *float64      `json:"confidence"`
	Sources    []int         `json:"sources"`
	Quality    model.Quality `json:"quality"`
}

// defaultScalarConfidence is assigned to legacy bare-scalar responses, which
// carry no self-reported confidence.
const defaultScalarConfidence = 0.5

// ParseExtraction normalizes the extraction-service response into canonical
// ExtractedFields, tolerating both response shapes. A response that is not
// parseable JSON is a VALIDATION_ERROR (non-retryable).
func ParseExtraction(text string) ([]model.ExtractedField, *Error) {
	cleaned := cleanJSON(text)

	var raw rawExtraction
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, NewValidationError("extraction service returned unparseable JSON", err)
	}
	if raw.Fields == nil {
		// Tolerate a flat object without the "fields" wrapper.
		if err := json.Unmarshal([]byte(cleaned), &raw.Fields); err != nil || len(raw.Fields) == 0 {
			return nil, NewValidationError("extraction response missing fields object", nil)
		}
	}

	fields := make([]model.ExtractedField, 0, len(raw.Fields))
	for key, msg := range raw.Fields {
		fields = append(fields, normalizeField(key, msg))
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].FieldKey < fields[j].FieldKey })
	return fields, nil
}

func normalizeField(key string, msg json.RawMessage) model.ExtractedField {
	var enriched enrichedValue
	if err := json.Unmarshal(msg, &enriched); err == nil && (enriched.Confidence != nil || enriched.Value != nil) {
		conf := defaultScalarConfidence
		if enriched.Confidence != nil {
			conf = clamp01(*enriched.Confidence)
		}
		quality := enriched.Quality
		if quality == "" {
			quality = model.QualityInferred
		}
		return model.ExtractedField{
			FieldKey:      key,
			Value:         enriched.Value,
			LLMConfidence: conf,
			SourceIndices: enriched.Sources,
			Quality:       quality,
		}
	}

	// Legacy shape: a bare scalar value with no confidence or sources.
	var scalar any
	if err := json.Unmarshal(msg, &scalar); err != nil {
		scalar = nil
	}
	return model.ExtractedField{
		FieldKey:      key,
		Value:         scalar,
		LLMConfidence: defaultScalarConfidence,
		Quality:       model.QualityInferred,
	}
}

// BuildExtractionPrompt renders the field-extraction prompt over the
// combined report.
func BuildExtractionPrompt(f *model.Facility, report string) string {
	var fieldLines []string
	for _, spec := range FieldSpecs() {
		fieldLines = append(fieldLines, fmt.Sprintf("- %s (%s): %s", spec.Key, spec.Label, spec.Description))
	}
	return fmt.Sprintf(extractionPromptTemplate, f.Name, f.Type, strings.Join(fieldLines, "\n"), report)
}

// CombinedConfidence blends the model's confidence with the heuristic score
// computed over only the source queries the model attributed the field to.
// When no sources were attributed, a keyword match against query text picks
// the best-guess sources instead.
func CombinedConfidence(field model.ExtractedField, queries []model.ResearchQuery, now time.Time) float64 {
	indices := field.SourceIndices
	if len(indices) == 0 {
		indices = guessSourceQueries(fieldSpecByKey(field.FieldKey), queries)
	}

	var text strings.Builder
	var sources []string
	for _, i := range indices {
		if i < 0 || i >= len(queries) {
			continue
		}
		text.WriteString(queries[i].ResultText)
		text.WriteString("\n")
		sources = append(sources, queries[i].Sources...)
	}

	heuristic := HeuristicConfidence(text.String(), sources, now)
	return clamp01(llmConfidenceWeight*field.LLMConfidence + heuristicConfidenceWeight*heuristic)
}

// SourceCitations collects the citation URLs of a field's attributed queries.
func SourceCitations(field model.ExtractedField, queries []model.ResearchQuery) []string {
	seen := make(map[string]bool)
	var out []string
	for _, i := range field.SourceIndices {
		if i < 0 || i >= len(queries) {
			continue
		}
		for _, s := range queries[i].Sources {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}

// cleanJSON strips markdown fences and surrounding prose so a JSON object
// embedded in model output parses cleanly.
func cleanJSON(text string) string {
	s := strings.TrimSpace(text)
	if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+3:]
		s = strings.TrimPrefix(s, "json")
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
	}
	s = strings.TrimSpace(s)
	if start := strings.Index(s, "{"); start > 0 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = s[start : end+1]
		}
	}
	return s
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// logExtraction records per-field extraction results for observability.
func logExtraction(fields []model.ExtractedField) {
	found := 0
	for _, f := range fields {
		if f.Value != nil {
			found++
		}
	}
	zap.L().Info("research: extraction normalized",
		zap.Int("fields_total", len(fields)),
		zap.Int("fields_found", found),
	)
}
