package research

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/port-research/internal/model"
	"github.com/sells-group/port-research/internal/store"
	"github.com/sells-group/port-research/pkg/anthropic"
	"github.com/sells-group/port-research/pkg/perplexity"
)

const summaryPromptTemplate = `Summarize this facility research run for %s in 2-3 sentences: what was learned and how reliable it is.

%s`

// RunOptions tunes one pipeline invocation.
type RunOptions struct {
	// Background decouples the run from caller disconnection: the run-level
	// token becomes a manufactured timeout instead of the caller's context,
	// while per-query timeouts still bound each step.
	Background bool
}

// Config carries the tunables of the pipeline.
type Config struct {
	StandardTimeout time.Duration
	DeepTimeout     time.Duration
	RetryBackoff    time.Duration
	MaxReportChars  int
	ExtractModel    string
	AnalysisModel   string
}

// Runner drives the full pipeline for one facility: parallel queries,
// extraction, validation, conflict detection, reconciliation, notes,
// summary, preview. It owns no cross-run state beyond the advisory lock map.
type Runner struct {
	provider perplexity.Client
	llm      anthropic.Client
	store    store.Store
	cfg      Config

	// Advisory per-facility lock: facility id → run id. Two concurrent runs
	// against the same facility are refused at run start.
	mu       sync.Mutex
	inFlight map[string]string
}

// NewRunner creates a pipeline runner.
func NewRunner(provider perplexity.Client, llm anthropic.Client, st store.Store, cfg Config) *Runner {
	return &Runner{
		provider: provider,
		llm:      llm,
		store:    st,
		cfg:      cfg,
		inFlight: make(map[string]string),
	}
}

// acquire claims the advisory lock for a facility. Returns the run id, or ""
// when another run holds it.
func (r *Runner) acquire(facilityID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, held := r.inFlight[facilityID]; held {
		return ""
	}
	runID := uuid.NewString()
	r.inFlight[facilityID] = runID
	return runID
}

func (r *Runner) release(facilityID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inFlight, facilityID)
}

// Run executes the pipeline, streaming events to sink. It always terminates
// the stream with exactly one preview or error event.
func (r *Runner) Run(ctx context.Context, facilityID string, opts RunOptions, sink EventSink) {
	em := NewEmitter(sink)

	runID := r.acquire(facilityID)
	if runID == "" {
		em.Fail(NewJobError("a research run is already in flight for this facility", nil))
		return
	}
	defer r.release(facilityID)

	log := zap.L().With(zap.String("run_id", runID), zap.String("facility_id", facilityID))
	start := time.Now()

	// Run-level token. In background mode caller disconnection is ignored;
	// the manufactured deadline keeps a hung provider from blocking forever.
	runCtx := ctx
	var cancel context.CancelFunc
	if opts.Background {
		runCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), r.backgroundBudget())
		defer cancel()
	}

	em.Transition(StepInit, "loading facility record")
	facility, err := r.store.GetFacility(runCtx, facilityID)
	if err != nil {
		em.Fail(NewDatabaseError("failed to load facility record", err))
		return
	}

	specs := BuildQuerySpecs(facility)
	em.Transition(StepQuerying, fmt.Sprintf("running %d research queries", len(specs)))

	executor := NewExecutor(r.provider, r.cfg.StandardTimeout, r.cfg.DeepTimeout)
	orch := NewOrchestrator(executor, r.cfg.RetryBackoff)
	orch.OnRetry = func(count int) {
		em.Transition(StepRetrying, fmt.Sprintf("retrying %d failed queries", count))
		em.Transition(StepQuerying, "re-running failed queries")
	}

	report, rerr := orch.Run(runCtx, specs)
	if rerr != nil {
		em.Fail(rerr)
		return
	}
	if len(report.Queries) == 0 {
		em.Fail(NewAPIError("all research queries failed; nothing to extract", nil))
		return
	}

	em.Transition(StepExtracting, "extracting structured fields from findings")
	combined, indexMap := BuildCombinedReport(report.Queries, r.cfg.MaxReportChars)
	log.Debug("research: combined report built",
		zap.Int("chars", len(combined)),
		zap.Int("queries", len(indexMap)),
	)

	extractResp, err := r.llm.Complete(runCtx, anthropic.CompletionRequest{
		Model:    r.cfg.ExtractModel,
		Prompt:   BuildExtractionPrompt(facility, combined),
		JSONMode: true,
	})
	if err != nil {
		if runCtx.Err() != nil {
			em.Fail(NewNetworkError("research cancelled", runCtx.Err()))
			return
		}
		em.Fail(NewAPIError("field extraction call failed", err))
		return
	}
	extractResp.Usage.LogCost(r.cfg.ExtractModel, "field_extraction")

	fields, verr := ParseExtraction(extractResp.Text)
	if verr != nil {
		em.Fail(verr)
		return
	}
	logExtraction(fields)

	em.Transition(StepValidating, "validating extracted values")
	reconciler := NewReconciler(r.llm, r.cfg.AnalysisModel)
	validations, verr := reconciler.Validate(fields)
	if verr != nil {
		em.Fail(verr)
		return
	}

	em.Transition(StepConflictDetection, "scanning for cross-source conflicts")
	conflicts := DetectConflicts(runCtx, r.llm, r.cfg.AnalysisModel, report.Queries, fields)

	em.Transition(StepAnalyzing, "reconciling proposals against the record")
	proposals := reconciler.Reconcile(runCtx, facility, report.Queries, fields, validations, conflicts)

	em.Transition(StepNotes, "synthesizing research notes")
	notes := SynthesizeNotes(runCtx, r.llm, r.cfg.AnalysisModel, facility, combined, time.Now())

	summary := r.summarize(runCtx, facility, combined, len(proposals))

	payload := buildUpdatePayload(proposals, notes, summary)
	preview := Preview{
		RunID:          runID,
		FieldProposals: proposals,
		NotesProposal:  &notes,
		RawQueries:     report.Queries,
		CombinedReport: combined,
		Summary:        summary,
		UpdatePayload:  payload,
	}

	em.Preview(preview)
	log.Info("research: run complete",
		zap.Int("proposals", len(proposals)),
		zap.Int("queries_succeeded", len(report.Queries)),
		zap.Int("queries_dropped", len(report.Dropped)),
		zap.Duration("elapsed", time.Since(start)),
	)

	// Durability is best-effort once the preview is delivered: a persistence
	// failure is reported, not fatal.
	if err := r.store.SaveReport(runCtx, store.Report{
		RunID:      runID,
		FacilityID: facilityID,
		Combined:   combined,
		Summary:    summary,
	}); err != nil {
		log.Error("research: failed to persist report", zap.Error(err))
		em.Warn(NewDatabaseError("research completed but the report could not be persisted", err))
	}
}

// backgroundBudget bounds an unattended run: the global query phase plus
// generous headroom for the analysis calls.
func (r *Runner) backgroundBudget() time.Duration {
	executor := NewExecutor(r.provider, r.cfg.StandardTimeout, r.cfg.DeepTimeout)
	return executor.TimeoutFor(perplexity.ModeDeep) +
		3*executor.TimeoutFor(perplexity.ModeStandard) +
		10*time.Minute
}

// summarize produces the run summary, with a deterministic fallback.
func (r *Runner) summarize(ctx context.Context, facility *model.Facility, combined string, proposalCount int) string {
	resp, err := r.llm.Complete(ctx, anthropic.CompletionRequest{
		Model:     r.cfg.AnalysisModel,
		Prompt:    fmt.Sprintf(summaryPromptTemplate, facility.Name, elideMiddle(combined, 8000)),
		MaxTokens: 512,
	})
	if err != nil || resp.Text == "" {
		return fmt.Sprintf("Research run for %s produced %d field proposals.", facility.Name, proposalCount)
	}
	resp.Usage.LogCost(r.cfg.AnalysisModel, "summary")
	return resp.Text
}

// buildUpdatePayload collects every proposed value into the payload the
// apply stage will later filter by the approved set.
func buildUpdatePayload(proposals []model.FieldProposal, notes model.NotesProposal, summary string) model.UpdatePayload {
	fields := make(map[string]any, len(proposals)+1)
	for _, p := range proposals {
		fields[p.Field] = p.ProposedValue
	}
	fields[model.FieldNotes] = notes.CombinedNotes
	return model.UpdatePayload{
		Fields:  fields,
		Notes:   &notes,
		Summary: summary,
	}
}
