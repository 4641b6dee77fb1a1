package research

import (
	"fmt"
	"strings"

	"github.com/sells-group/port-research/internal/model"
	"github.com/sells-group/port-research/pkg/perplexity"
)

// QuerySpec is one entry in the fixed research topology for a facility.
type QuerySpec struct {
	Type  model.QueryType
	Title string
	Text  string
	Mode  perplexity.Mode
}

// BuildQuerySpecs returns the fixed query set for a facility. The topology
// is fixed per entity type: three queries, one of which uses deep retrieval.
func BuildQuerySpecs(f *model.Facility) []QuerySpec {
	subject := f.Name
	if f.Country != "" {
		subject = fmt.Sprintf("%s (%s)", f.Name, f.Country)
	}
	if f.Locode != "" {
		subject = fmt.Sprintf("%s [UN/LOCODE %s]", subject, f.Locode)
	}

	return []QuerySpec{
		{
			Type:  model.QueryGovernance,
			Title: "Governance & Ownership",
			Text: fmt.Sprintf(
				"Research the governance and ownership structure of the %s %s. "+
					"Who operates it? Is it run under a landlord, tool port, service port, or private governance model? "+
					"Include the operating company, port authority, berth count, maximum draft in meters, and annual container throughput in TEU. "+
					"Cite official port authority or government sources where possible.",
				f.Type, subject),
			Mode: perplexity.ModeStandard,
		},
		{
			Type:  model.QueryISPSRisk,
			Title: "ISPS & Security Risk",
			Text: fmt.Sprintf(
				"Assess the ISPS Code security posture and risk level of the %s %s. "+
					"Is the current security risk level low, medium, or high? "+
					"Reference recent port security incidents, ISPS compliance audits, and advisories from maritime authorities.",
				f.Type, subject),
			Mode: perplexity.ModeStandard,
		},
		{
			Type:  model.QueryStrategic,
			Title: "Strategic Intelligence",
			Text: fmt.Sprintf(
				"Provide strategic intelligence on the %s %s: recent expansion projects, "+
					"ownership changes, concession agreements, cargo volume trends, geopolitical significance, "+
					"and its precise geographic coordinates. Include dates and figures.",
				f.Type, subject),
			Mode: perplexity.ModeDeep,
		},
	}
}

// FieldSpec describes one extraction target: its key, the label shown to the
// model, and fallback keywords used to attribute a value to a source query
// when the model omits source indices.
type FieldSpec struct {
	Key         string
	Label       string
	Description string
	Keywords    []string
}

// fieldSpecs is the fixed extraction target set, in proposal output order.
var fieldSpecs = []FieldSpec{
	{
		Key:         model.FieldOperator,
		Label:       "Operator",
		Description: "the company or authority operating the facility",
		Keywords:    []string{"operator", "operated", "governance", "ownership"},
	},
	{
		Key:         model.FieldGovernance,
		Label:       "Governance Model",
		Description: "one of: landlord, tool_port, service_port, private",
		Keywords:    []string{"governance", "landlord", "ownership"},
	},
	{
		Key:         model.FieldISPSRiskLevel,
		Label:       "ISPS Risk Level",
		Description: "one of: low, medium, high",
		Keywords:    []string{"isps", "security", "risk"},
	},
	{
		Key:         model.FieldAnnualTEU,
		Label:       "Annual TEU",
		Description: "annual container throughput in TEU (number)",
		Keywords:    []string{"teu", "throughput", "container"},
	},
	{
		Key:         model.FieldBerthCount,
		Label:       "Berth Count",
		Description: "number of berths (integer)",
		Keywords:    []string{"berth"},
	},
	{
		Key:         model.FieldMaxDraftM,
		Label:       "Max Draft (m)",
		Description: "maximum vessel draft in meters (number)",
		Keywords:    []string{"draft", "draught", "depth"},
	},
	{
		Key:         model.FieldCoordinates,
		Label:       "Coordinates",
		Description: `{"lat": <number>, "lon": <number>}`,
		Keywords:    []string{"coordinates", "latitude", "longitude", "located"},
	},
	{
		Key:         model.FieldLocode,
		Label:       "UN/LOCODE",
		Description: "five-character UN/LOCODE, e.g. NLRTM",
		Keywords:    []string{"locode", "un/locode"},
	},
}

// FieldSpecs returns the fixed extraction target set.
func FieldSpecs() []FieldSpec { return fieldSpecs }

// fieldSpecByKey returns the spec for a field key, or nil.
func fieldSpecByKey(key string) *FieldSpec {
	for i := range fieldSpecs {
		if fieldSpecs[i].Key == key {
			return &fieldSpecs[i]
		}
	}
	return nil
}

// guessSourceQueries is the keyword fallback used when the model attributes
// a field to no source query: any query whose text or result mentions one of
// the field's keywords is counted as a source.
func guessSourceQueries(spec *FieldSpec, queries []model.ResearchQuery) []int {
	if spec == nil {
		return nil
	}
	var indices []int
	for i, q := range queries {
		haystack := strings.ToLower(q.QueryText + " " + q.ResultText)
		for _, kw := range spec.Keywords {
			if strings.Contains(haystack, kw) {
				indices = append(indices, i)
				break
			}
		}
	}
	return indices
}
