package research

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/twpayne/go-geom"

	"github.com/sells-group/port-research/internal/model"
)

// Confidence penalties applied after validation.
const (
	invalidPenalty = 0.2
	warningPenalty = 0.1
)

// ValidationResult is the outcome of one field validator. CorrectedValue,
// when non-nil, silently replaces the proposed value before scoring.
// Critical marks a hard-constraint violation that aborts the run.
type ValidationResult struct {
	IsValid        bool
	Errors         []string
	Warnings       []string
	CorrectedValue any
	Critical       bool
}

func valid() ValidationResult { return ValidationResult{IsValid: true} }

func corrected(v any) ValidationResult { return ValidationResult{IsValid: true, CorrectedValue: v} }

func invalid(critical bool, msgs ...string) ValidationResult {
	return ValidationResult{IsValid: false, Errors: msgs, Critical: critical}
}

func warn(msgs ...string) ValidationResult {
	return ValidationResult{IsValid: true, Warnings: msgs}
}

// ValidateField applies the type-specific validator for a field key.
// Unknown keys pass through untouched.
func ValidateField(key string, value any) ValidationResult {
	switch key {
	case model.FieldGovernance:
		return validateGovernance(value)
	case model.FieldISPSRiskLevel:
		return validateRiskLevel(value)
	case model.FieldAnnualTEU:
		return validateAnnualTEU(value)
	case model.FieldBerthCount:
		return validateBerthCount(value)
	case model.FieldMaxDraftM:
		return validateMaxDraft(value)
	case model.FieldOperator:
		return validateOperator(value)
	case model.FieldCoordinates:
		return validateCoordinates(value)
	case model.FieldLocode:
		return validateLocode(value)
	default:
		return valid()
	}
}

// ApplyPenalty reduces combined confidence for validator findings: an invalid
// field costs 0.2, a valid-with-warnings field costs 0.1.
func ApplyPenalty(confidence float64, vr ValidationResult) float64 {
	switch {
	case !vr.IsValid:
		confidence -= invalidPenalty
	case len(vr.Warnings) > 0:
		confidence -= warningPenalty
	}
	return clamp01(confidence)
}

func validateGovernance(value any) ValidationResult {
	s, ok := value.(string)
	if !ok {
		return invalid(true, "governance must be a string")
	}
	g := model.NormalizeGovernance(s)
	if g == "" {
		return invalid(true, fmt.Sprintf("governance %q is not one of landlord, tool_port, service_port, private", s))
	}
	if string(g) == s {
		return valid()
	}
	return corrected(string(g))
}

func validateRiskLevel(value any) ValidationResult {
	s, ok := value.(string)
	if !ok {
		return invalid(true, "isps_risk_level must be a string")
	}
	r := model.NormalizeRiskLevel(s)
	if r == "" {
		return invalid(true, fmt.Sprintf("isps_risk_level %q is not one of low, medium, high", s))
	}
	if string(r) == s {
		return valid()
	}
	return corrected(string(r))
}

func validateAnnualTEU(value any) ValidationResult {
	n, ok := toNumber(value)
	if !ok {
		return invalid(false, "annual_teu must be a number")
	}
	if n < 0 {
		return invalid(false, "annual_teu cannot be negative")
	}
	if n > 60_000_000 {
		return warn(fmt.Sprintf("annual_teu %.0f exceeds the largest known port throughput", n))
	}
	if rounded := int64(n); float64(rounded) != n {
		return corrected(rounded)
	}
	return corrected(int64(n))
}

func validateBerthCount(value any) ValidationResult {
	n, ok := toNumber(value)
	if !ok {
		return invalid(false, "berth_count must be a number")
	}
	if n < 0 || n != float64(int(n)) {
		return invalid(false, "berth_count must be a non-negative integer")
	}
	if n > 500 {
		return warn(fmt.Sprintf("berth_count %d is implausibly high", int(n)))
	}
	return corrected(int(n))
}

func validateMaxDraft(value any) ValidationResult {
	n, ok := toNumber(value)
	if !ok {
		return invalid(false, "max_draft_m must be a number")
	}
	if n <= 0 {
		return invalid(false, "max_draft_m must be positive")
	}
	if n > 30 {
		return warn(fmt.Sprintf("max_draft_m %.1f exceeds any dredged channel in service", n))
	}
	return valid()
}

func validateOperator(value any) ValidationResult {
	s, ok := value.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return invalid(false, "operator must be a non-empty string")
	}
	trimmed := strings.TrimSpace(s)
	if len(trimmed) > 200 {
		return warn("operator name is unusually long")
	}
	if trimmed != s {
		return corrected(trimmed)
	}
	return valid()
}

// wgs84Bounds is the valid lon/lat envelope for a WGS84 position.
var wgs84Bounds = geom.NewBounds(geom.XY).Set(-180, -90, 180, 90)

// validateCoordinates checks the proposed point is a well-formed WGS84
// position. Geocoding itself is an external lookup; this only guards bounds.
func validateCoordinates(value any) ValidationResult {
	m, ok := value.(map[string]any)
	if !ok {
		return invalid(false, "coordinates must be an object with lat and lon")
	}
	lat, latOK := toNumber(m["lat"])
	lon, lonOK := toNumber(m["lon"])
	if !latOK || !lonOK {
		return invalid(false, "coordinates must carry numeric lat and lon")
	}

	point := geom.NewPointFlat(geom.XY, []float64{lon, lat})
	if !wgs84Bounds.OverlapsPoint(geom.XY, point.Coords()) {
		return invalid(false, fmt.Sprintf("coordinates (%.4f, %.4f) are outside WGS84 bounds", lat, lon))
	}
	if point.X() == 0 && point.Y() == 0 {
		return warn("coordinates are null island (0,0)")
	}
	return corrected(map[string]float64{"lat": point.Y(), "lon": point.X()})
}

func validateLocode(value any) ValidationResult {
	s, ok := value.(string)
	if !ok {
		return invalid(false, "locode must be a string")
	}
	code := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	if len(code) != 5 {
		return invalid(false, fmt.Sprintf("locode %q must be five characters", s))
	}
	for _, c := range code {
		if (c < 'A' || c > 'Z') && (c < '2' || c > '9') {
			return invalid(false, fmt.Sprintf("locode %q contains invalid characters", s))
		}
	}
	if code != s {
		return corrected(code)
	}
	return valid()
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		cleaned := strings.ReplaceAll(strings.TrimSpace(n), ",", "")
		f, err := strconv.ParseFloat(cleaned, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
