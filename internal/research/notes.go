package research

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/port-research/internal/model"
	"github.com/sells-group/port-research/pkg/anthropic"
)

// fallbackFindingsChars bounds the raw-findings excerpt used when synthesis
// fails.
const fallbackFindingsChars = 200

const notesPromptTemplate = `Synthesize strategic research notes for %s from the findings below. Existing notes are an audit trail: never rewrite or drop them, only produce new findings to append.

Existing notes:
%s

Research findings:
%s

Return JSON:
{"new_findings": "<concise strategic notes from this research>", "combined_notes": "<existing notes followed by a dated section containing the new findings>"}`

type notesResponse struct {
	NewFindings   string `json:"new_findings"`
	CombinedNotes string `json:"combined_notes"`
}

// SynthesizeNotes produces the additive notes proposal. Best-effort: on any
// failure it falls back to a deterministic dated append of the raw findings.
// CombinedNotes always contains the existing notes.
func SynthesizeNotes(ctx context.Context, llm anthropic.Client, llmModel string, facility *model.Facility, report string, now time.Time) model.NotesProposal {
	current := facility.Notes

	resp, err := llm.Complete(ctx, anthropic.CompletionRequest{
		Model:    llmModel,
		Prompt:   fmt.Sprintf(notesPromptTemplate, facility.Name, orPlaceholder(current), report),
		JSONMode: true,
	})
	if err != nil {
		zap.L().Warn("research: notes synthesis failed, using fallback", zap.Error(err))
		return fallbackNotes(current, report, now)
	}
	resp.Usage.LogCost(llmModel, "notes_synthesis")

	var parsed notesResponse
	if err := json.Unmarshal([]byte(cleanJSON(resp.Text)), &parsed); err != nil || parsed.NewFindings == "" {
		zap.L().Warn("research: notes response unparseable, using fallback", zap.Error(err))
		return fallbackNotes(current, report, now)
	}

	combined := parsed.CombinedNotes
	// The model must not drop prior content; rebuild the append if it did.
	if current != "" && !strings.Contains(combined, current) {
		combined = appendDated(current, parsed.NewFindings, now)
	}
	if combined == "" {
		combined = appendDated(current, parsed.NewFindings, now)
	}

	return model.NotesProposal{
		CurrentNotes:  current,
		NewFindings:   parsed.NewFindings,
		CombinedNotes: combined,
	}
}

func fallbackNotes(current, report string, now time.Time) model.NotesProposal {
	excerpt := strings.TrimSpace(report)
	if len(excerpt) > fallbackFindingsChars {
		excerpt = excerpt[:fallbackFindingsChars] + "…"
	}
	return model.NotesProposal{
		CurrentNotes:  current,
		NewFindings:   excerpt,
		CombinedNotes: appendDated(current, excerpt, now),
	}
}

// appendDated appends new findings under a dated separator without touching
// existing content.
func appendDated(current, findings string, now time.Time) string {
	section := fmt.Sprintf("--- Research %s ---\n%s", now.Format("2006-01-02"), findings)
	if current == "" {
		return section
	}
	return current + "\n\n" + section
}

func orPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(none)"
	}
	return s
}
