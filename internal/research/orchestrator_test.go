package research

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/port-research/internal/model"
	"github.com/sells-group/port-research/pkg/perplexity"
)

// scriptedProvider returns canned outcomes per query text, tracking attempts.
type scriptedProvider struct {
	mu       sync.Mutex
	outcomes map[string][]providerOutcome
	attempts map[string]int
}

type providerOutcome struct {
	result *perplexity.Result
	err    error
	hang   bool
}

func newScriptedProvider() *scriptedProvider {
	return &scriptedProvider{
		outcomes: make(map[string][]providerOutcome),
		attempts: make(map[string]int),
	}
}

func (p *scriptedProvider) script(query string, outcomes ...providerOutcome) {
	p.outcomes[query] = outcomes
}

func (p *scriptedProvider) Execute(ctx context.Context, query string, mode perplexity.Mode) (*perplexity.Result, error) {
	p.mu.Lock()
	n := p.attempts[query]
	p.attempts[query] = n + 1
	script := p.outcomes[query]
	p.mu.Unlock()

	var out providerOutcome
	if n < len(script) {
		out = script[n]
	} else if len(script) > 0 {
		out = script[len(script)-1]
	} else {
		out = providerOutcome{result: &perplexity.Result{Content: "findings for " + query}}
	}

	if out.hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return out.result, out.err
}

func (p *scriptedProvider) attemptsFor(query string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts[query]
}

func ok(content string) providerOutcome {
	return providerOutcome{result: &perplexity.Result{Content: content, Citations: []string{"https://example.org"}}}
}

func fail(status int) providerOutcome {
	return providerOutcome{err: &perplexity.StatusError{StatusCode: status, Body: "upstream"}}
}

func testSpecs() []QuerySpec {
	return []QuerySpec{
		{Type: model.QueryGovernance, Text: "q-governance", Mode: perplexity.ModeStandard},
		{Type: model.QueryISPSRisk, Text: "q-risk", Mode: perplexity.ModeStandard},
		{Type: model.QueryStrategic, Text: "q-strategic", Mode: perplexity.ModeDeep},
	}
}

func newTestOrchestrator(p perplexity.Client) *Orchestrator {
	executor := NewExecutor(p, 100*time.Millisecond, 200*time.Millisecond)
	return NewOrchestrator(executor, 10*time.Millisecond)
}

func TestOrchestratorAllSucceed(t *testing.T) {
	p := newScriptedProvider()
	p.script("q-governance", ok("governance findings"))
	p.script("q-risk", ok("risk findings"))
	p.script("q-strategic", ok("strategic findings"))

	report, rerr := newTestOrchestrator(p).Run(context.Background(), testSpecs())
	require.Nil(t, rerr)

	require.Len(t, report.Queries, 3)
	assert.Empty(t, report.Dropped)
	assert.Zero(t, report.Retried)
	// Topology order survives concurrent settlement.
	assert.Equal(t, model.QueryGovernance, report.Queries[0].QueryType)
	assert.Equal(t, model.QueryISPSRisk, report.Queries[1].QueryType)
	assert.Equal(t, model.QueryStrategic, report.Queries[2].QueryType)
}

func TestOrchestratorRetriesServerErrorOnce(t *testing.T) {
	p := newScriptedProvider()
	p.script("q-risk", fail(http.StatusInternalServerError), ok("risk findings"))

	var retried int
	orch := newTestOrchestrator(p)
	orch.OnRetry = func(count int) { retried = count }

	report, rerr := orch.Run(context.Background(), testSpecs())
	require.Nil(t, rerr)

	assert.Len(t, report.Queries, 3)
	assert.Empty(t, report.Dropped)
	assert.Equal(t, 1, report.Retried)
	assert.Equal(t, 1, retried)
	assert.Equal(t, 2, p.attemptsFor("q-risk"))
}

func TestOrchestratorDropsQueryThatFailsTwice(t *testing.T) {
	p := newScriptedProvider()
	p.script("q-risk", fail(http.StatusBadGateway), fail(http.StatusBadGateway))

	report, rerr := newTestOrchestrator(p).Run(context.Background(), testSpecs())
	require.Nil(t, rerr)

	assert.Len(t, report.Queries, 2)
	require.Len(t, report.Dropped, 1)
	assert.Equal(t, model.QueryISPSRisk, report.Dropped[0].Spec.Type)
	assert.Equal(t, 2, p.attemptsFor("q-risk"))
}

func TestOrchestratorNeverRetriesAuthFailure(t *testing.T) {
	p := newScriptedProvider()
	p.script("q-governance", fail(http.StatusUnauthorized))

	report, rerr := newTestOrchestrator(p).Run(context.Background(), testSpecs())
	require.Nil(t, rerr)

	assert.Len(t, report.Queries, 2)
	require.Len(t, report.Dropped, 1)
	assert.True(t, report.Dropped[0].Auth())
	assert.Equal(t, 1, p.attemptsFor("q-governance"))
}

func TestOrchestratorStandardTimeoutNotRetried(t *testing.T) {
	p := newScriptedProvider()
	p.script("q-risk", providerOutcome{hang: true})

	report, rerr := newTestOrchestrator(p).Run(context.Background(), testSpecs())
	require.Nil(t, rerr)

	assert.Len(t, report.Queries, 2)
	require.Len(t, report.Dropped, 1)
	assert.True(t, report.Dropped[0].Timeout)
	assert.Equal(t, 1, p.attemptsFor("q-risk"))
}

func TestOrchestratorDeepTimeoutRetried(t *testing.T) {
	p := newScriptedProvider()
	p.script("q-strategic", providerOutcome{hang: true}, ok("strategic findings"))

	report, rerr := newTestOrchestrator(p).Run(context.Background(), testSpecs())
	require.Nil(t, rerr)

	assert.Len(t, report.Queries, 3)
	assert.Equal(t, 1, report.Retried)
	assert.Equal(t, 2, p.attemptsFor("q-strategic"))
}

func TestOrchestratorCallerCancellation(t *testing.T) {
	p := newScriptedProvider()
	p.script("q-governance", providerOutcome{hang: true})
	p.script("q-risk", providerOutcome{hang: true})
	p.script("q-strategic", providerOutcome{hang: true})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	report, rerr := newTestOrchestrator(p).Run(ctx, testSpecs())
	require.Nil(t, report)
	require.NotNil(t, rerr)
	assert.Equal(t, CategoryNetwork, rerr.Category)
	assert.False(t, rerr.Retryable)
}

func TestQueryFailureRetryMatrix(t *testing.T) {
	std := QuerySpec{Mode: perplexity.ModeStandard}
	deep := QuerySpec{Mode: perplexity.ModeDeep}

	tests := []struct {
		name    string
		failure QueryFailure
		want    bool
	}{
		{"server error", QueryFailure{Spec: std, Status: 500}, true},
		{"rate limited", QueryFailure{Spec: std, Status: 429}, true},
		{"auth", QueryFailure{Spec: std, Status: 401}, false},
		{"standard timeout", QueryFailure{Spec: std, Timeout: true}, false},
		{"deep timeout", QueryFailure{Spec: deep, Timeout: true}, true},
		{"aborted", QueryFailure{Spec: std, Aborted: true}, false},
		{"transport error", QueryFailure{Spec: std}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.failure.Retryable())
		})
	}
}

func TestGlobalTimeoutFormula(t *testing.T) {
	p := newScriptedProvider()
	executor := NewExecutor(p, 3*time.Minute, 5*time.Minute)
	orch := NewOrchestrator(executor, time.Second)

	// One deep query dominates: 5m + 2×3m > 3×3m.
	assert.Equal(t, 11*time.Minute, orch.globalTimeout(testSpecs()))

	stdOnly := []QuerySpec{
		{Mode: perplexity.ModeStandard},
		{Mode: perplexity.ModeStandard},
	}
	// Without a deep query, the serial worst case is deep + std, still
	// compared against 2×std.
	assert.Equal(t, 8*time.Minute, orch.globalTimeout(stdOnly))
}
