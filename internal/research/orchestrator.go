package research

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/port-research/internal/model"
	"github.com/sells-group/port-research/pkg/perplexity"
)

// DefaultRetryBackoff is the fixed delay before the single retry pass.
const DefaultRetryBackoff = 2 * time.Second

// QueryReport is the settled outcome of the parallel query phase. Queries
// holds the successful subset in topology order; Dropped holds failures that
// were not retried or failed again; Retried counts retry attempts made.
type QueryReport struct {
	Queries []model.ResearchQuery
	Dropped []QueryFailure
	Retried int
	Elapsed time.Duration
}

// Orchestrator fans out the fixed query set concurrently, bounds the whole
// phase with a global safety timeout, and retries recoverable failures once.
type Orchestrator struct {
	executor *Executor
	backoff  time.Duration

	// OnRetry is invoked once before the retry pass with the number of
	// queries being retried. Used by the run to emit the retrying state.
	OnRetry func(count int)
}

// NewOrchestrator creates an orchestrator over the given executor.
func NewOrchestrator(executor *Executor, backoff time.Duration) *Orchestrator {
	if backoff <= 0 {
		backoff = DefaultRetryBackoff
	}
	return &Orchestrator{executor: executor, backoff: backoff}
}

// globalTimeout bounds the whole parallel phase: every standard query could
// run serially in the worst scheduler case, or one deep query dominates.
func (o *Orchestrator) globalTimeout(specs []QuerySpec) time.Duration {
	n := len(specs)
	if n == 0 {
		return o.executor.TimeoutFor(perplexity.ModeStandard)
	}
	std := o.executor.TimeoutFor(perplexity.ModeStandard)
	deep := o.executor.TimeoutFor(perplexity.ModeDeep)

	all := std * time.Duration(n)
	withDeep := deep + std*time.Duration(n-1)
	if withDeep > all {
		return withDeep
	}
	return all
}

// Run executes all specs concurrently. One failure never cancels siblings;
// results are joined only after all settle or the global timeout fires.
// Zero successful queries is not fatal here. A caller-initiated cancellation
// aborts in-flight calls and returns a non-retryable cancellation error.
func (o *Orchestrator) Run(ctx context.Context, specs []QuerySpec) (*QueryReport, *Error) {
	start := time.Now()
	report := &QueryReport{}

	gctx, cancel := context.WithTimeout(ctx, o.globalTimeout(specs))
	defer cancel()

	results := make([]*model.ResearchQuery, len(specs))
	failures := make([]*QueryFailure, len(specs))

	g, _ := errgroup.WithContext(gctx)
	for i, spec := range specs {
		g.Go(func() error {
			q, failure := o.executor.Execute(gctx, i, spec)
			if failure != nil {
				failures[i] = failure
				zap.L().Warn("research: query failed",
					zap.String("query_type", string(spec.Type)),
					zap.Bool("timeout", failure.Timeout),
					zap.Int("status", failure.Status),
					zap.Error(failure.Err),
				)
				return nil
			}
			results[i] = &q
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		return nil, NewNetworkError("research cancelled", ctx.Err())
	}

	// Retry pass: each retryable failure gets exactly one more attempt,
	// after a fixed backoff, on its type-appropriate timeout.
	var retries []*QueryFailure
	for _, f := range failures {
		if f != nil && f.Retryable() {
			retries = append(retries, f)
		}
	}

	if len(retries) > 0 {
		if o.OnRetry != nil {
			o.OnRetry(len(retries))
		}

		timer := time.NewTimer(o.backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, NewNetworkError("research cancelled", ctx.Err())
		case <-timer.C:
		}

		report.Retried = len(retries)
		rg, _ := errgroup.WithContext(ctx)
		for _, f := range retries {
			rg.Go(func() error {
				q, failure := o.executor.Execute(ctx, f.Index, f.Spec)
				if failure != nil {
					failures[f.Index] = failure
					zap.L().Warn("research: retry failed, dropping query",
						zap.String("query_type", string(f.Spec.Type)),
						zap.Error(failure.Err),
					)
					return nil
				}
				results[f.Index] = &q
				failures[f.Index] = nil
				return nil
			})
		}
		_ = rg.Wait()

		if ctx.Err() != nil {
			return nil, NewNetworkError("research cancelled", ctx.Err())
		}
	}

	// Join in topology order; the run proceeds with whatever succeeded.
	for i := range specs {
		if results[i] != nil {
			report.Queries = append(report.Queries, *results[i])
		} else if failures[i] != nil {
			report.Dropped = append(report.Dropped, *failures[i])
		}
	}
	report.Elapsed = time.Since(start)

	zap.L().Info("research: query phase settled",
		zap.Int("succeeded", len(report.Queries)),
		zap.Int("dropped", len(report.Dropped)),
		zap.Int("retried", report.Retried),
		zap.Duration("elapsed", report.Elapsed),
	)

	return report, nil
}
