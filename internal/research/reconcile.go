package research

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/port-research/internal/model"
	"github.com/sells-group/port-research/pkg/anthropic"
)

// autoApproveThreshold gates the auto-approval flag: a proposal is eligible
// only when combined confidence strictly exceeds it.
const autoApproveThreshold = 0.80

// fallbackUpdateThreshold drives the deterministic should-update rule when
// the analysis call fails.
const fallbackUpdateThreshold = 0.5

// Fixed confidence for coordinates: geocoding is a deterministic external
// lookup, not an inference, so it is scored by validator outcome alone.
const (
	coordinatesValidConfidence   = 0.9
	coordinatesInvalidConfidence = 0.5
)

const shouldUpdatePromptTemplate = `For each field below, decide whether the proposed value is more accurate or complete than the current value on record for %s.

Fields:
%s

Return JSON:
{"decisions": [{"field": "<field_key>", "should_update": true|false, "reasoning": "<one sentence>"}]}`

type updateDecision struct {
	Field        string `json:"field"`
	ShouldUpdate bool   `json:"should_update"`
	Reasoning    string `json:"reasoning"`
}

type shouldUpdateResponse struct {
	Decisions []updateDecision `json:"decisions"`
}

// Reconciler combines extracted fields, validator output, and conflict data
// into an ordered list of field proposals.
type Reconciler struct {
	llm      anthropic.Client
	llmModel string
	now      func() time.Time
}

// NewReconciler creates a reconciliation engine.
func NewReconciler(llm anthropic.Client, llmModel string) *Reconciler {
	return &Reconciler{llm: llm, llmModel: llmModel, now: time.Now}
}

// WithNow fixes the clock for testing.
func (r *Reconciler) WithNow(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

// Validate runs the per-field validators over non-null extracted values,
// applying silent corrections in place. A critical violation aborts the run.
func (r *Reconciler) Validate(fields []model.ExtractedField) (map[string]ValidationResult, *Error) {
	results := make(map[string]ValidationResult, len(fields))
	for i := range fields {
		f := &fields[i]
		if f.Value == nil {
			continue
		}
		vr := ValidateField(f.FieldKey, f.Value)
		if vr.Critical {
			return nil, NewValidationError(
				fmt.Sprintf("field %s failed validation: %v", f.FieldKey, vr.Errors), nil)
		}
		if vr.CorrectedValue != nil {
			f.Value = vr.CorrectedValue
		}
		results[f.FieldKey] = vr
	}
	return results, nil
}

// Reconcile builds the proposal list. shouldUpdate comes from a batch
// analysis call; on that call's failure a deterministic rule takes over:
// update when the value changed and combined confidence clears 0.5.
func (r *Reconciler) Reconcile(
	ctx context.Context,
	facility *model.Facility,
	queries []model.ResearchQuery,
	fields []model.ExtractedField,
	validations map[string]ValidationResult,
	conflicts map[string][]model.ConflictEntry,
) []model.FieldProposal {
	candidates := orderedCandidates(fields)
	decisions := r.shouldUpdateDecisions(ctx, facility, candidates)

	proposals := make([]model.FieldProposal, 0, len(candidates))
	for _, f := range candidates {
		spec := fieldSpecByKey(f.FieldKey)
		if spec == nil {
			continue
		}

		// Coordinates are a deterministic lookup: only proposed when the
		// record has none, scored by validator outcome alone.
		if f.FieldKey == model.FieldCoordinates && facility.HasCoordinates() {
			continue
		}

		vr := validations[f.FieldKey]
		conf := CombinedConfidence(f, queries, r.now())
		if f.FieldKey == model.FieldCoordinates {
			if vr.IsValid {
				conf = coordinatesValidConfidence
			} else {
				conf = coordinatesInvalidConfidence
			}
		} else {
			conf = ApplyPenalty(conf, vr)
		}

		current := facility.FieldValue(f.FieldKey)
		shouldUpdate, reasoning := resolveDecision(decisions, spec, current, f.Value, conf)

		fieldConflicts := conflicts[f.FieldKey]
		proposals = append(proposals, model.FieldProposal{
			Field:              f.FieldKey,
			CurrentValue:       current,
			ProposedValue:      f.Value,
			Confidence:         conf,
			ShouldUpdate:       shouldUpdate,
			Reasoning:          reasoning,
			Sources:            SourceCitations(f, queries),
			UpdatePriority:     priorityFor(conf, shouldUpdate),
			ValidationErrors:   vr.Errors,
			ValidationWarnings: vr.Warnings,
			Conflicts:          fieldConflicts,
			HasConflict:        len(fieldConflicts) > 1,
			AutoApproved:       conf > autoApproveThreshold,
		})
	}
	return proposals
}

// orderedCandidates filters to non-null values and keeps topology order.
func orderedCandidates(fields []model.ExtractedField) []model.ExtractedField {
	byKey := make(map[string]model.ExtractedField, len(fields))
	for _, f := range fields {
		if f.Value != nil {
			byKey[f.FieldKey] = f
		}
	}
	var out []model.ExtractedField
	for _, spec := range FieldSpecs() {
		if f, ok := byKey[spec.Key]; ok {
			out = append(out, f)
		}
	}
	return out
}

// shouldUpdateDecisions runs the batch analysis call. A nil return signals
// the deterministic fallback.
func (r *Reconciler) shouldUpdateDecisions(ctx context.Context, facility *model.Facility, candidates []model.ExtractedField) []updateDecision {
	if len(candidates) == 0 {
		return nil
	}

	type fieldPair struct {
		Field    string `json:"field"`
		Current  any    `json:"current"`
		Proposed any    `json:"proposed"`
	}
	pairs := make([]fieldPair, 0, len(candidates))
	for _, f := range candidates {
		pairs = append(pairs, fieldPair{
			Field:    f.FieldKey,
			Current:  facility.FieldValue(f.FieldKey),
			Proposed: f.Value,
		})
	}
	pairsJSON, err := json.Marshal(pairs)
	if err != nil {
		return nil
	}

	resp, err := r.llm.Complete(ctx, anthropic.CompletionRequest{
		Model:    r.llmModel,
		Prompt:   fmt.Sprintf(shouldUpdatePromptTemplate, facility.Name, string(pairsJSON)),
		JSONMode: true,
	})
	if err != nil {
		zap.L().Warn("research: should-update analysis failed, using fallback rule", zap.Error(err))
		return nil
	}
	resp.Usage.LogCost(r.llmModel, "should_update")

	var parsed shouldUpdateResponse
	if err := json.Unmarshal([]byte(cleanJSON(resp.Text)), &parsed); err != nil {
		zap.L().Warn("research: should-update response unparseable, using fallback rule", zap.Error(err))
		return nil
	}
	return parsed.Decisions
}

// resolveDecision matches a field against the analysis decisions via the
// ranked matcher. An unmatched field defaults to shouldUpdate = true; a nil
// decision set means the analysis call failed and the deterministic rule
// applies instead.
func resolveDecision(decisions []updateDecision, spec *FieldSpec, current, proposed any, confidence float64) (bool, string) {
	if decisions == nil {
		changed := !valuesEqual(current, proposed)
		should := changed && confidence >= fallbackUpdateThreshold
		reason := "no change from current value"
		if changed {
			if should {
				reason = "proposed value differs from record and confidence is sufficient"
			} else {
				reason = "proposed value differs from record but confidence is too low"
			}
		}
		return should, reason
	}

	if d, ok := bestMatch(spec.Key, spec.Label, decisions, func(d updateDecision) string { return d.Field }); ok {
		return d.ShouldUpdate, d.Reasoning
	}
	return true, "no analysis decision matched this field"
}

func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if af, aok := toNumber(a); aok {
		if bf, bok := toNumber(b); bok {
			return af == bf
		}
	}
	return reflect.DeepEqual(a, b)
}

func priorityFor(confidence float64, shouldUpdate bool) model.UpdatePriority {
	switch {
	case shouldUpdate && confidence > autoApproveThreshold:
		return model.PriorityHigh
	case shouldUpdate && confidence >= fallbackUpdateThreshold:
		return model.PriorityMedium
	default:
		return model.PriorityLow
	}
}
