package research

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sells-group/port-research/internal/model"
	"github.com/sells-group/port-research/pkg/perplexity"
)

// Per-query timeout budgets. Deep retrieval legitimately takes longer.
const (
	DefaultStandardTimeout = 3 * time.Minute
	DefaultDeepTimeout     = 5 * time.Minute
)

// QueryFailure is the typed outcome of a failed query execution. The flags
// drive the orchestrator's retry policy.
type QueryFailure struct {
	Spec    QuerySpec
	Index   int
	Err     error
	Status  int
	Timeout bool
	Aborted bool
}

// Auth reports whether the provider rejected our credentials.
func (f *QueryFailure) Auth() bool { return f.Status == http.StatusUnauthorized }

// Retryable implements the retry rule: never retry auth failures or
// caller-initiated aborts; retry timeouts only for deep-mode queries, which
// deserve a second chance on their longer budget; retry everything else once.
func (f *QueryFailure) Retryable() bool {
	if f.Auth() || f.Aborted {
		return false
	}
	if !f.Timeout {
		return true
	}
	return f.Spec.Mode == perplexity.ModeDeep
}

// Category maps the failure onto the error taxonomy.
func (f *QueryFailure) Category() Category {
	switch {
	case f.Aborted:
		return CategoryNetwork
	case f.Timeout:
		return CategoryAPI
	case f.Status >= 500 || f.Status == http.StatusTooManyRequests:
		return CategoryAPI
	default:
		return CategoryNetwork
	}
}

// Executor issues one research query against the retrieval provider with a
// per-mode timeout manufactured from the run context.
type Executor struct {
	provider        perplexity.Client
	standardTimeout time.Duration
	deepTimeout     time.Duration
}

// NewExecutor creates a query executor. Zero timeouts fall back to defaults.
func NewExecutor(provider perplexity.Client, standard, deep time.Duration) *Executor {
	if standard <= 0 {
		standard = DefaultStandardTimeout
	}
	if deep <= 0 {
		deep = DefaultDeepTimeout
	}
	return &Executor{provider: provider, standardTimeout: standard, deepTimeout: deep}
}

// TimeoutFor returns the per-query budget for a retrieval mode.
func (e *Executor) TimeoutFor(mode perplexity.Mode) time.Duration {
	if mode == perplexity.ModeDeep {
		return e.deepTimeout
	}
	return e.standardTimeout
}

// Execute runs one query. On failure it returns a classified QueryFailure:
// caller cancellation surfaces as an abort, never as a generic error.
func (e *Executor) Execute(ctx context.Context, index int, spec QuerySpec) (model.ResearchQuery, *QueryFailure) {
	qctx, cancel := context.WithTimeout(ctx, e.TimeoutFor(spec.Mode))
	defer cancel()

	res, err := e.provider.Execute(qctx, spec.Text, spec.Mode)
	if err != nil {
		failure := &QueryFailure{Spec: spec, Index: index, Err: err}
		switch {
		case ctx.Err() != nil:
			// The run-level context died, not the per-query budget.
			failure.Aborted = true
		case errors.Is(qctx.Err(), context.DeadlineExceeded):
			failure.Timeout = true
		default:
			var se *perplexity.StatusError
			if errors.As(err, &se) {
				failure.Status = se.StatusCode
			}
		}
		return model.ResearchQuery{}, failure
	}

	return model.ResearchQuery{
		QueryText:  spec.Text,
		QueryType:  spec.Type,
		ResultText: res.Content,
		Sources:    res.Citations,
	}, nil
}
