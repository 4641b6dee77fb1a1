package perplexity

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL   = "https://api.perplexity.ai"
	defaultModel     = "sonar-pro"
	defaultDeepModel = "sonar-deep-research"
)

// Mode selects the retrieval depth. Deep mode uses a slower, higher-quality
// research model and warrants a longer timeout budget.
type Mode string

const (
	ModeStandard Mode = "standard"
	ModeDeep     Mode = "deep"
)

// Result is the content and citation list returned by one research query.
type Result struct {
	Content   string
	Citations []string
	Usage     Usage
}

// Usage reports token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Client executes research queries against the Perplexity API.
type Client interface {
	Execute(ctx context.Context, query string, mode Mode) (*Result, error)
}

// StatusError is returned for non-2xx provider responses so callers can
// classify retryability by status code.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return "perplexity: unexpected status " + http.StatusText(e.StatusCode) + ": " + e.Body
}

// IsAuth reports whether the failure is an authentication rejection.
func (e *StatusError) IsAuth() bool { return e.StatusCode == http.StatusUnauthorized }

// IsServerSide reports whether the failure originated upstream (retryable).
func (e *StatusError) IsServerSide() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithModels overrides the standard and deep research models.
func WithModels(standard, deep string) Option {
	return func(c *httpClient) {
		if standard != "" {
			c.model = standard
		}
		if deep != "" {
			c.deepModel = deep
		}
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps outbound request rate (queries per second).
func WithRateLimit(perSecond float64) Option {
	return func(c *httpClient) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

type httpClient struct {
	apiKey    string
	baseURL   string
	model     string
	deepModel string
	http      *http.Client
	limiter   *rate.Limiter
}

// NewClient creates a Perplexity API client. The http.Client carries no
// timeout of its own; callers bound each query through its context.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:    apiKey,
		baseURL:   defaultBaseURL,
		model:     defaultModel,
		deepModel: defaultDeepModel,
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	ID        string   `json:"id"`
	Citations []string `json:"citations"`
	Choices   []struct {
		Index   int         `json:"index"`
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

func (c *httpClient) Execute(ctx context.Context, query string, mode Mode) (*Result, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "perplexity: rate limit wait")
		}
	}

	model := c.model
	if mode == ModeDeep {
		model = c.deepModel
	}

	body, err := json.Marshal(chatCompletionRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "user", Content: query},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "perplexity: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "perplexity: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "perplexity: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "perplexity: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, eris.Wrap(err, "perplexity: unmarshal response")
	}

	if len(parsed.Choices) == 0 {
		return nil, eris.New("perplexity: response contained no choices")
	}

	return &Result{
		Content:   parsed.Choices[0].Message.Content,
		Citations: parsed.Citations,
		Usage:     parsed.Usage,
	}, nil
}
