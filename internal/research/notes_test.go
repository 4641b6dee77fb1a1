package research

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/port-research/internal/model"
)

func notesFacility(existing string) *model.Facility {
	return &model.Facility{Name: "Port of Westhaven", Type: model.FacilityPort, Notes: existing}
}

func TestSynthesizeNotesPreservesExistingContent(t *testing.T) {
	existing := "2024-11: Concession renegotiated with Harbor Co."
	llm := (&fakeLLM{}).on("Synthesize strategic research notes",
		`{"new_findings": "Berth 9 expansion announced.", "combined_notes": "`+existing+`\n\n--- Research 2026-06-15 ---\nBerth 9 expansion announced."}`)

	np := SynthesizeNotes(context.Background(), llm, "test-model", notesFacility(existing), "findings", testNow)

	assert.Equal(t, existing, np.CurrentNotes)
	assert.Equal(t, "Berth 9 expansion announced.", np.NewFindings)
	assert.True(t, strings.HasPrefix(np.CombinedNotes, existing))
	assert.Contains(t, np.CombinedNotes, "Berth 9 expansion announced.")
}

func TestSynthesizeNotesRebuildsWhenModelDropsHistory(t *testing.T) {
	existing := "2024-11: Concession renegotiated with Harbor Co."
	// The model returned combined notes without the prior content.
	llm := (&fakeLLM{}).on("Synthesize strategic research notes",
		`{"new_findings": "Berth 9 expansion announced.", "combined_notes": "Berth 9 expansion announced."}`)

	np := SynthesizeNotes(context.Background(), llm, "test-model", notesFacility(existing), "findings", testNow)

	assert.True(t, strings.HasPrefix(np.CombinedNotes, existing))
	assert.Contains(t, np.CombinedNotes, "--- Research 2026-06-15 ---")
	assert.Contains(t, np.CombinedNotes, "Berth 9 expansion announced.")
}

func TestSynthesizeNotesFallbackOnFailure(t *testing.T) {
	existing := "prior audit trail"
	report := strings.Repeat("finding ", 60)

	np := SynthesizeNotes(context.Background(), &fakeLLM{failAll: true}, "test-model", notesFacility(existing), report, testNow)

	assert.Equal(t, existing, np.CurrentNotes)
	assert.True(t, strings.HasPrefix(np.CombinedNotes, existing))
	assert.Contains(t, np.CombinedNotes, "--- Research 2026-06-15 ---")
	// The fallback excerpt is bounded.
	assert.LessOrEqual(t, len(np.NewFindings), fallbackFindingsChars+len("…"))
}

func TestSynthesizeNotesFallbackOnUnparseableResponse(t *testing.T) {
	llm := (&fakeLLM{}).on("Synthesize strategic research notes", "sorry, no JSON today")

	np := SynthesizeNotes(context.Background(), llm, "test-model", notesFacility(""), "short findings", testNow)

	assert.Equal(t, "short findings", np.NewFindings)
	assert.Equal(t, "--- Research 2026-06-15 ---\nshort findings", np.CombinedNotes)
}

func TestAppendDated(t *testing.T) {
	out := appendDated("", "new", testNow)
	assert.Equal(t, "--- Research 2026-06-15 ---\nnew", out)

	out = appendDated("old", "new", testNow)
	assert.Equal(t, "old\n\n--- Research 2026-06-15 ---\nnew", out)
}
