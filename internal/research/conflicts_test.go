package research

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/port-research/internal/model"
)

func TestDetectConflicts(t *testing.T) {
	llm := (&fakeLLM{}).on("divergent values",
		`{"conflicts": [{"field": "Annual TEU", "values": [
			{"value": 1500000, "query_index": 0, "query_title": "Governance & Ownership", "confidence": 0.8, "evidence": "1.5M TEU"},
			{"value": 1400000, "query_index": 1, "query_title": "ISPS & Security Risk", "confidence": 1.7, "evidence": "1.4M TEU"}
		]}]}`)

	fields := []model.ExtractedField{
		{FieldKey: model.FieldAnnualTEU, Value: int64(1500000)},
	}
	out := DetectConflicts(context.Background(), llm, "test-model", sampleQueries(), fields)
	require.NotNil(t, out)

	// The paraphrased field name resolves to the canonical key.
	entries := out[model.FieldAnnualTEU]
	require.Len(t, entries, 2)
	assert.Equal(t, 0, entries[0].QueryIndex)
	// Out-of-range confidences clamp.
	assert.Equal(t, 1.0, entries[1].Confidence)
}

func TestDetectConflictsBestEffortOnFailure(t *testing.T) {
	out := DetectConflicts(context.Background(), &fakeLLM{failAll: true}, "test-model", sampleQueries(), nil)
	assert.Nil(t, out)

	llm := (&fakeLLM{}).on("divergent values", "not json at all")
	out = DetectConflicts(context.Background(), llm, "test-model", sampleQueries(), nil)
	assert.Nil(t, out)
}

func TestDetectConflictsEmptySet(t *testing.T) {
	llm := (&fakeLLM{}).on("divergent values", `{"conflicts": []}`)
	out := DetectConflicts(context.Background(), llm, "test-model", sampleQueries(), nil)
	require.NotNil(t, out)
	assert.Empty(t, out)
}

func TestResolveFieldKey(t *testing.T) {
	assert.Equal(t, model.FieldAnnualTEU, resolveFieldKey("annual_teu"))
	assert.Equal(t, model.FieldAnnualTEU, resolveFieldKey("Annual TEU"))
	assert.Equal(t, model.FieldBerthCount, resolveFieldKey("berth count estimate"))
	assert.Equal(t, "", resolveFieldKey("vessel_calls"))
}
