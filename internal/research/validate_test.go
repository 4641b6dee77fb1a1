package research

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/port-research/internal/model"
)

func TestValidateGovernance(t *testing.T) {
	tests := []struct {
		name      string
		value     any
		valid     bool
		critical  bool
		corrected any
	}{
		{"canonical", "landlord", true, false, nil},
		{"paraphrased", "Landlord model", true, false, "landlord"},
		{"hyphenated", "tool-port", true, false, "tool_port"},
		{"unknown", "cooperative", false, true, nil},
		{"not a string", 42, false, true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vr := ValidateField(model.FieldGovernance, tt.value)
			assert.Equal(t, tt.valid, vr.IsValid)
			assert.Equal(t, tt.critical, vr.Critical)
			assert.Equal(t, tt.corrected, vr.CorrectedValue)
		})
	}
}

func TestValidateRiskLevel(t *testing.T) {
	vr := ValidateField(model.FieldISPSRiskLevel, "Moderate")
	assert.True(t, vr.IsValid)
	assert.Equal(t, "medium", vr.CorrectedValue)

	vr = ValidateField(model.FieldISPSRiskLevel, "catastrophic")
	assert.False(t, vr.IsValid)
	assert.True(t, vr.Critical)
}

func TestValidateAnnualTEU(t *testing.T) {
	vr := ValidateField(model.FieldAnnualTEU, float64(1500000))
	assert.True(t, vr.IsValid)
	assert.Equal(t, int64(1500000), vr.CorrectedValue)

	// Comma-formatted strings from model output still parse.
	vr = ValidateField(model.FieldAnnualTEU, "1,500,000")
	assert.True(t, vr.IsValid)
	assert.Equal(t, int64(1500000), vr.CorrectedValue)

	vr = ValidateField(model.FieldAnnualTEU, float64(-5))
	assert.False(t, vr.IsValid)
	assert.False(t, vr.Critical)

	vr = ValidateField(model.FieldAnnualTEU, float64(90_000_000))
	assert.True(t, vr.IsValid)
	assert.NotEmpty(t, vr.Warnings)

	vr = ValidateField(model.FieldAnnualTEU, "lots")
	assert.False(t, vr.IsValid)
}

func TestValidateBerthCount(t *testing.T) {
	vr := ValidateField(model.FieldBerthCount, float64(12))
	assert.True(t, vr.IsValid)
	assert.Equal(t, 12, vr.CorrectedValue)

	vr = ValidateField(model.FieldBerthCount, 3.5)
	assert.False(t, vr.IsValid)

	vr = ValidateField(model.FieldBerthCount, float64(900))
	assert.True(t, vr.IsValid)
	assert.NotEmpty(t, vr.Warnings)
}

func TestValidateMaxDraft(t *testing.T) {
	assert.True(t, ValidateField(model.FieldMaxDraftM, 16.5).IsValid)
	assert.False(t, ValidateField(model.FieldMaxDraftM, 0.0).IsValid)

	vr := ValidateField(model.FieldMaxDraftM, 45.0)
	assert.True(t, vr.IsValid)
	assert.NotEmpty(t, vr.Warnings)
}

func TestValidateOperator(t *testing.T) {
	vr := ValidateField(model.FieldOperator, "  Harbor Co ")
	assert.True(t, vr.IsValid)
	assert.Equal(t, "Harbor Co", vr.CorrectedValue)

	assert.False(t, ValidateField(model.FieldOperator, "   ").IsValid)
	assert.False(t, ValidateField(model.FieldOperator, 7).IsValid)
}

func TestValidateCoordinates(t *testing.T) {
	vr := ValidateField(model.FieldCoordinates, map[string]any{"lat": 51.95, "lon": 4.14})
	require.True(t, vr.IsValid)
	assert.Equal(t, map[string]float64{"lat": 51.95, "lon": 4.14}, vr.CorrectedValue)

	vr = ValidateField(model.FieldCoordinates, map[string]any{"lat": 123.0, "lon": 4.0})
	assert.False(t, vr.IsValid)
	assert.False(t, vr.Critical)

	assert.False(t, ValidateField(model.FieldCoordinates, map[string]any{"lat": 51.0, "lon": 181.0}).IsValid)
	// The envelope is inclusive at its edges.
	assert.True(t, ValidateField(model.FieldCoordinates, map[string]any{"lat": 90.0, "lon": -180.0}).IsValid)

	vr = ValidateField(model.FieldCoordinates, map[string]any{"lat": 0.0, "lon": 0.0})
	assert.True(t, vr.IsValid)
	assert.NotEmpty(t, vr.Warnings)

	assert.False(t, ValidateField(model.FieldCoordinates, "51.95, 4.14").IsValid)
}

func TestValidateLocode(t *testing.T) {
	vr := ValidateField(model.FieldLocode, "nl rtm")
	assert.True(t, vr.IsValid)
	assert.Equal(t, "NLRTM", vr.CorrectedValue)

	assert.False(t, ValidateField(model.FieldLocode, "TOOLONGCODE").IsValid)
	assert.False(t, ValidateField(model.FieldLocode, "NL!TM").IsValid)
	// 0 and 1 are excluded from the LOCODE alphabet.
	assert.False(t, ValidateField(model.FieldLocode, "NL0TM").IsValid)
	assert.True(t, ValidateField(model.FieldLocode, "US2AB").IsValid)
}

func TestApplyPenalty(t *testing.T) {
	assert.InDelta(t, 0.7, ApplyPenalty(0.9, ValidationResult{IsValid: false}), 1e-9)
	assert.InDelta(t, 0.8, ApplyPenalty(0.9, ValidationResult{IsValid: true, Warnings: []string{"w"}}), 1e-9)
	assert.InDelta(t, 0.9, ApplyPenalty(0.9, ValidationResult{IsValid: true}), 1e-9)
	// Penalty floors at zero.
	assert.Equal(t, 0.0, ApplyPenalty(0.1, ValidationResult{IsValid: false}))
}

func TestValidateUnknownKeyPassesThrough(t *testing.T) {
	vr := ValidateField("unmapped_field", "anything")
	assert.True(t, vr.IsValid)
	assert.Nil(t, vr.CorrectedValue)
}
