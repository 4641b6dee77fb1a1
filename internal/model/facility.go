package model

import (
	"strings"
	"time"
)

// FacilityType classifies the kind of record being enriched.
type FacilityType string

const (
	FacilityPort     FacilityType = "port"
	FacilityTerminal FacilityType = "terminal"
	FacilityOperator FacilityType = "operator"
)

// Governance is the port governance model enum.
type Governance string

const (
	GovernanceLandlord    Governance = "landlord"
	GovernanceToolPort    Governance = "tool_port"
	GovernanceServicePort Governance = "service_port"
	GovernancePrivate     Governance = "private"
)

// Governances lists the valid governance values.
var Governances = []Governance{GovernanceLandlord, GovernanceToolPort, GovernanceServicePort, GovernancePrivate}

// RiskLevel is the ISPS security risk enum.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// RiskLevels lists the valid risk values.
var RiskLevels = []RiskLevel{RiskLow, RiskMedium, RiskHigh}

// Facility is the persistent record enriched by the research pipeline.
// It is read once at run start and written only by the apply stage.
type Facility struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	Type             FacilityType `json:"type"`
	Country          string       `json:"country,omitempty"`
	Locode           string       `json:"locode,omitempty"`
	Operator         string       `json:"operator,omitempty"`
	Governance       Governance   `json:"governance,omitempty"`
	ISPSRiskLevel    RiskLevel    `json:"isps_risk_level,omitempty"`
	AnnualTEU        *int64       `json:"annual_teu,omitempty"`
	BerthCount       *int         `json:"berth_count,omitempty"`
	MaxDraftM        *float64     `json:"max_draft_m,omitempty"`
	Latitude         *float64     `json:"latitude,omitempty"`
	Longitude        *float64     `json:"longitude,omitempty"`
	Notes            string       `json:"notes,omitempty"`
	ResearchSummary  string       `json:"research_summary,omitempty"`
	LastResearchedAt *time.Time   `json:"last_researched_at,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// HasCoordinates reports whether the record already carries a geocoded
// position. Coordinates are only ever proposed when this is false.
func (f *Facility) HasCoordinates() bool {
	return f.Latitude != nil && f.Longitude != nil
}

// FieldValue returns the current value for a research field key, or nil
// when the record has no value for it.
func (f *Facility) FieldValue(key string) any {
	switch key {
	case FieldOperator:
		if f.Operator == "" {
			return nil
		}
		return f.Operator
	case FieldGovernance:
		if f.Governance == "" {
			return nil
		}
		return string(f.Governance)
	case FieldISPSRiskLevel:
		if f.ISPSRiskLevel == "" {
			return nil
		}
		return string(f.ISPSRiskLevel)
	case FieldAnnualTEU:
		if f.AnnualTEU == nil {
			return nil
		}
		return *f.AnnualTEU
	case FieldBerthCount:
		if f.BerthCount == nil {
			return nil
		}
		return *f.BerthCount
	case FieldMaxDraftM:
		if f.MaxDraftM == nil {
			return nil
		}
		return *f.MaxDraftM
	case FieldCoordinates:
		if !f.HasCoordinates() {
			return nil
		}
		return map[string]float64{"lat": *f.Latitude, "lon": *f.Longitude}
	case FieldLocode:
		if f.Locode == "" {
			return nil
		}
		return f.Locode
	default:
		return nil
	}
}

// Research field keys. The set of fields the extraction stage targets is
// fixed; adding a field means adding a key here, a FieldSpec in the research
// package, and a column in the store.
const (
	FieldOperator      = "operator"
	FieldGovernance    = "governance"
	FieldISPSRiskLevel = "isps_risk_level"
	FieldAnnualTEU     = "annual_teu"
	FieldBerthCount    = "berth_count"
	FieldMaxDraftM     = "max_draft_m"
	FieldCoordinates   = "coordinates"
	FieldLocode        = "locode"
	FieldNotes         = "notes"
)

// NormalizeGovernance maps free-form model output onto the governance enum.
// Returns "" when no value matches.
func NormalizeGovernance(s string) Governance {
	n := strings.ToLower(strings.TrimSpace(s))
	n = strings.TrimSuffix(n, " model")
	n = strings.ReplaceAll(n, "-", " ")
	switch {
	case strings.Contains(n, "landlord"):
		return GovernanceLandlord
	case strings.Contains(n, "tool"):
		return GovernanceToolPort
	case strings.Contains(n, "service"):
		return GovernanceServicePort
	case strings.Contains(n, "private") || strings.Contains(n, "corporatized"):
		return GovernancePrivate
	default:
		return ""
	}
}

// NormalizeRiskLevel maps free-form model output onto the risk enum.
// Returns "" when no value matches.
func NormalizeRiskLevel(s string) RiskLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low", "minimal":
		return RiskLow
	case "medium", "moderate", "elevated":
		return RiskMedium
	case "high", "severe", "critical":
		return RiskHigh
	default:
		return ""
	}
}
