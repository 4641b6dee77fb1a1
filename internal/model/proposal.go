package model

// QueryType identifies one research angle in the fixed per-facility topology.
type QueryType string

const (
	QueryGovernance   QueryType = "governance"
	QueryISPSRisk     QueryType = "isps_risk"
	QueryStrategic    QueryType = "strategic_intelligence"
)

// ResearchQuery holds one retrieval-provider result for the duration of a
// single run. It is never persisted directly; only the combined report is.
type ResearchQuery struct {
	QueryText  string    `json:"query_text"`
	QueryType  QueryType `json:"query_type"`
	ResultText string    `json:"result_text"`
	Sources    []string  `json:"sources"`
}

// Quality tags how directly a value was stated in the findings.
type Quality string

const (
	QualityExplicit Quality = "explicit"
	QualityInferred Quality = "inferred"
	QualityPartial  Quality = "partial"
)

// ExtractedField is the canonical per-field output of the extraction stage.
// Value is nil when the field was not found in the findings.
type ExtractedField struct {
	FieldKey      string  `json:"field_key"`
	Value         any     `json:"value"`
	LLMConfidence float64 `json:"llm_confidence"`
	SourceIndices []int   `json:"source_indices"`
	Quality       Quality `json:"quality"`
}

// UpdatePriority ranks how urgently a proposal should be reviewed.
type UpdatePriority string

const (
	PriorityHigh   UpdatePriority = "high"
	PriorityMedium UpdatePriority = "medium"
	PriorityLow    UpdatePriority = "low"
)

// ConflictEntry records one competing value for a field, attributed to a
// specific source query.
type ConflictEntry struct {
	Value      any     `json:"value"`
	QueryIndex int     `json:"query_index"`
	QueryTitle string  `json:"query_title"`
	Confidence float64 `json:"confidence"`
	Evidence   string  `json:"evidence,omitempty"`
}

// FieldProposal is the terminal unit of work: one candidate update to one
// facility field. Created by reconciliation, read-only until the apply stage
// consumes an approved subset.
type FieldProposal struct {
	Field              string          `json:"field"`
	CurrentValue       any             `json:"current_value"`
	ProposedValue      any             `json:"proposed_value"`
	Confidence         float64         `json:"confidence"`
	ShouldUpdate       bool            `json:"should_update"`
	Reasoning          string          `json:"reasoning"`
	Sources            []string        `json:"sources"`
	UpdatePriority     UpdatePriority  `json:"update_priority"`
	ValidationErrors   []string        `json:"validation_errors,omitempty"`
	ValidationWarnings []string        `json:"validation_warnings,omitempty"`
	Conflicts          []ConflictEntry `json:"conflicts,omitempty"`
	HasConflict        bool            `json:"has_conflict"`
	AutoApproved       bool            `json:"auto_approved"`
}

// NotesProposal carries the additive notes update. CombinedNotes always
// contains CurrentNotes; prior content is never dropped.
type NotesProposal struct {
	CurrentNotes  string `json:"current_notes"`
	NewFindings   string `json:"new_findings"`
	CombinedNotes string `json:"combined_notes"`
}

// UpdatePayload is the full set of writable values computed at preview time.
// The apply stage writes only the caller-approved subset of Fields.
type UpdatePayload struct {
	Fields  map[string]any `json:"fields"`
	Notes   *NotesProposal `json:"notes,omitempty"`
	Summary string         `json:"summary"`
}
