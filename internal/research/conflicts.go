package research

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/port-research/internal/model"
	"github.com/sells-group/port-research/pkg/anthropic"
)

const conflictPromptTemplate = `Scan the per-query research findings below for fields where different queries report divergent values.

Extracted field values:
%s

Per-query findings:
%s

Return JSON:
{"conflicts": [{"field": "<field_key>", "values": [{"value": <value>, "query_index": <int>, "query_title": "<title>", "confidence": <0.0-1.0>, "evidence": "<supporting quote>"}]}]}

Only report fields where at least two queries disagree. Return {"conflicts": []} if none.`

type conflictResponse struct {
	Conflicts []struct {
		Field  string `json:"field"`
		Values []struct {
			Value      any     `json:"value"`
			QueryIndex int     `json:"query_index"`
			QueryTitle string  `json:"query_title"`
			Confidence float64 `json:"confidence"`
			Evidence   string  `json:"evidence"`
		} `json:"values"`
	} `json:"conflicts"`
}

// DetectConflicts asks the extraction service to identify competing values
// per field across queries. Best-effort: any failure yields an empty set and
// never fails the run.
func DetectConflicts(ctx context.Context, llm anthropic.Client, llmModel string, queries []model.ResearchQuery, fields []model.ExtractedField) map[string][]model.ConflictEntry {
	extractedJSON, err := json.Marshal(fields)
	if err != nil {
		return nil
	}

	var findings []string
	for i, q := range queries {
		findings = append(findings, fmt.Sprintf("[%d] %s:\n%s", i, q.QueryType, q.ResultText))
	}

	prompt := fmt.Sprintf(conflictPromptTemplate, string(extractedJSON), strings.Join(findings, "\n\n"))

	resp, err := llm.Complete(ctx, anthropic.CompletionRequest{
		Model:    llmModel,
		Prompt:   prompt,
		JSONMode: true,
	})
	if err != nil {
		zap.L().Warn("research: conflict detection call failed, proceeding without", zap.Error(err))
		return nil
	}
	resp.Usage.LogCost(llmModel, "conflict_detection")

	var parsed conflictResponse
	if err := json.Unmarshal([]byte(cleanJSON(resp.Text)), &parsed); err != nil {
		zap.L().Warn("research: conflict response unparseable, proceeding without", zap.Error(err))
		return nil
	}

	out := make(map[string][]model.ConflictEntry)
	for _, c := range parsed.Conflicts {
		key := resolveFieldKey(c.Field)
		if key == "" {
			key = c.Field
		}
		for _, v := range c.Values {
			out[key] = append(out[key], model.ConflictEntry{
				Value:      v.Value,
				QueryIndex: v.QueryIndex,
				QueryTitle: v.QueryTitle,
				Confidence: clamp01(v.Confidence),
				Evidence:   v.Evidence,
			})
		}
	}
	return out
}

// resolveFieldKey maps a model-reported field name onto a known field key
// via the ranked matcher, or returns "" when nothing matches.
func resolveFieldKey(name string) string {
	var substringKey string
	for _, spec := range FieldSpecs() {
		switch MatchFieldName(name, spec.Key, spec.Label) {
		case MatchExact:
			return spec.Key
		case MatchSubstring:
			if substringKey == "" {
				substringKey = spec.Key
			}
		}
	}
	return substringKey
}
