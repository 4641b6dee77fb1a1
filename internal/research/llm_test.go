package research

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/sells-group/port-research/pkg/anthropic"
)

// fakeLLM returns canned completions matched by prompt substring, in
// registration order. Unmatched prompts get the default response, or an error
// when failAll is set.
type fakeLLM struct {
	mu       sync.Mutex
	rules    []llmRule
	fallback string
	failAll  bool
	prompts  []string
}

type llmRule struct {
	contains string
	text     string
	err      error
}

func (f *fakeLLM) on(contains, text string) *fakeLLM {
	f.rules = append(f.rules, llmRule{contains: contains, text: text})
	return f
}

func (f *fakeLLM) failOn(contains string) *fakeLLM {
	f.rules = append(f.rules, llmRule{contains: contains, err: errors.New("llm unavailable")})
	return f
}

func (f *fakeLLM) Complete(ctx context.Context, req anthropic.CompletionRequest) (*anthropic.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.prompts = append(f.prompts, req.Prompt)
	f.mu.Unlock()

	if f.failAll {
		return nil, errors.New("llm unavailable")
	}
	for _, r := range f.rules {
		if strings.Contains(req.Prompt, r.contains) {
			if r.err != nil {
				return nil, r.err
			}
			return &anthropic.CompletionResponse{Text: r.text}, nil
		}
	}
	if f.fallback != "" {
		return &anthropic.CompletionResponse{Text: f.fallback}, nil
	}
	return nil, errors.New("no canned response for prompt")
}

func (f *fakeLLM) promptCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}
