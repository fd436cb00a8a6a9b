// Package llmclient implements the LLM Client (C5): a uniform
// prompt->text interface over a priority-ordered pool of backends with
// fallback (§4.5). Grounded on the teacher's ollama.go Chat/ChatOptions
// shape, generalized from a single backend to a pool.
package llmclient

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/ollama/ollama/api"
	openai "github.com/sashabaranov/go-openai"

	"github.com/podwise/hrap/internal/apperrors"
	"github.com/podwise/hrap/internal/logger"
	"github.com/podwise/hrap/internal/providers"
	"github.com/podwise/hrap/internal/types/interfaces"
)

// BackendSpec is one entry of the priority-ordered pool.
type BackendSpec struct {
	Name         string
	Provider     providers.ProviderName
	Endpoint     string
	APIKey       string
	ModelID      string
	Priority     int
	MaxTokens    int
	Temperature  float64
	MaxInFlight  int64
	Timeout      time.Duration
}

type backend interface {
	complete(ctx context.Context, systemPrompt, userPrompt string) (interfaces.LLMResponse, error)
}

type pooledBackend struct {
	spec BackendSpec
	sem  *semaphore.Weighted
	impl backend
}

// Client is C5. It is safe for concurrent callers: each backend owns its
// own rate-limiting semaphore (§5 "Shared-resource policy").
type Client struct {
	backends   []*pooledBackend
	maxRetries int
	baseDelay  time.Duration
}

var _ interfaces.LLMClient = (*Client)(nil)

const minSaneLength = 4

// New builds the pool from specs, sorted by ascending Priority (1 = tried
// first). Each backend is retried up to maxRetries times with exponential
// backoff and jitter before Complete falls through to the next one (§5
// "Retries").
func New(specs []BackendSpec, maxRetries int, baseDelay time.Duration) (*Client, error) {
	if len(specs) == 0 {
		return nil, apperrors.NewConfigError("llmclient: at least one backend is required", nil)
	}
	ordered := append([]BackendSpec(nil), specs...)
	sortByPriority(ordered)

	c := &Client{maxRetries: maxRetries, baseDelay: baseDelay}
	for _, s := range ordered {
		if s.MaxInFlight <= 0 {
			s.MaxInFlight = 4
		}
		if s.Timeout <= 0 {
			s.Timeout = 10 * time.Second
		}
		var impl backend
		if s.Provider == providers.ProviderOllama {
			impl = newOllamaBackend(s)
		} else {
			impl = newOpenAIBackend(s)
		}
		c.backends = append(c.backends, &pooledBackend{
			spec: s,
			sem:  semaphore.NewWeighted(s.MaxInFlight),
			impl: impl,
		})
	}
	return c, nil
}

// Ping reports whether at least one backend is configured; it satisfies
// gateway.Pinger for the health endpoint's "llm" essential component
// without spending a real completion call on every health check.
func (c *Client) Ping(ctx context.Context) error {
	if len(c.backends) == 0 {
		return apperrors.NewBackendUnavailableError("llmclient: no backends configured", nil)
	}
	return nil
}

func sortByPriority(specs []BackendSpec) {
	for i := 1; i < len(specs); i++ {
		for j := i; j > 0 && specs[j].Priority < specs[j-1].Priority; j-- {
			specs[j], specs[j-1] = specs[j-1], specs[j]
		}
	}
}

// Complete tries backends in priority order until one responds within its
// timeout and passes the minimum-length sanity check (§4.5). If every
// backend fails, returns a BackendUnavailable AppError.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (interfaces.LLMResponse, error) {
	var lastErr error
	for _, b := range c.backends {
		resp, err := c.tryBackend(ctx, b, systemPrompt, userPrompt)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		logger.Warnf(ctx, "llmclient: backend %s failed: %v", b.spec.Name, err)
	}
	return interfaces.LLMResponse{}, apperrors.NewBackendUnavailableError("llmclient: all backends unavailable", lastErr)
}

// tryBackend retries a single backend up to c.maxRetries times with
// exponential backoff and jitter before giving up on it, the same pattern
// the Embedding Client uses (§5 "Retries"); only after every attempt on
// this backend is exhausted does Complete move on to the next one.
func (c *Client) tryBackend(ctx context.Context, b *pooledBackend, systemPrompt, userPrompt string) (interfaces.LLMResponse, error) {
	var lastErr error
	delay := c.baseDelay
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			jittered := delay + time.Duration(rand.Int63n(int64(delay)+1))
			select {
			case <-ctx.Done():
				return interfaces.LLMResponse{}, apperrors.NewTimeoutError("llmclient: context canceled during retry")
			case <-time.After(jittered):
			}
			delay *= 2
		}
		resp, err := c.attemptBackend(ctx, b, systemPrompt, userPrompt)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		logger.Warnf(ctx, "llmclient: backend %s attempt %d failed: %v", b.spec.Name, attempt, err)
	}
	return interfaces.LLMResponse{}, lastErr
}

func (c *Client) attemptBackend(ctx context.Context, b *pooledBackend, systemPrompt, userPrompt string) (interfaces.LLMResponse, error) {
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return interfaces.LLMResponse{}, err
	}
	defer b.sem.Release(1)

	callCtx, cancel := context.WithTimeout(ctx, b.spec.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := b.impl.complete(callCtx, systemPrompt, userPrompt)
	if err != nil {
		return interfaces.LLMResponse{}, err
	}
	resp.Elapsed = time.Since(start).Milliseconds()
	resp.ModelUsed = b.spec.ModelID
	if !sane(resp.Text) {
		return interfaces.LLMResponse{}, fmt.Errorf("llmclient: response failed sanity check")
	}
	resp.Confidence = confidenceHeuristic(resp.Text)
	return resp, nil
}

// sane rejects empty or refusal-pattern responses, per §4.5's
// "minimum-length sanity check".
func sane(text string) bool {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < minSaneLength {
		return false
	}
	lower := strings.ToLower(trimmed)
	refusals := []string{"i cannot help with that", "i can't assist with that"}
	for _, r := range refusals {
		if strings.Contains(lower, r) {
			return false
		}
	}
	return true
}

// confidenceHeuristic scores [0,1]: non-empty (already guaranteed by sane),
// non-refusal (already guaranteed), plus a length-based component so very
// short "technically valid" answers still score lower than substantive ones.
func confidenceHeuristic(text string) float64 {
	n := len(strings.TrimSpace(text))
	switch {
	case n >= 200:
		return 0.95
	case n >= 50:
		return 0.85
	default:
		return 0.7
	}
}

// --- concrete backends ---

type openaiImpl struct {
	client *openai.Client
	spec   BackendSpec
}

func newOpenAIBackend(spec BackendSpec) *openaiImpl {
	cfg := openai.DefaultConfig(spec.APIKey)
	if spec.Endpoint != "" {
		cfg.BaseURL = spec.Endpoint
	}
	return &openaiImpl{client: openai.NewClientWithConfig(cfg), spec: spec}
}

func (b *openaiImpl) complete(ctx context.Context, systemPrompt, userPrompt string) (interfaces.LLMResponse, error) {
	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: b.spec.ModelID,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		MaxTokens:   b.spec.MaxTokens,
		Temperature: float32(b.spec.Temperature),
	})
	if err != nil {
		return interfaces.LLMResponse{}, err
	}
	if len(resp.Choices) == 0 {
		return interfaces.LLMResponse{}, fmt.Errorf("llmclient: empty choices")
	}
	return interfaces.LLMResponse{
		Text:       resp.Choices[0].Message.Content,
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}

type ollamaImpl struct {
	client *api.Client
	spec   BackendSpec
}

func newOllamaBackend(spec BackendSpec) *ollamaImpl {
	u := parseOllamaURL(spec.Endpoint)
	return &ollamaImpl{client: api.NewClient(u, nil), spec: spec}
}

func (b *ollamaImpl) complete(ctx context.Context, systemPrompt, userPrompt string) (interfaces.LLMResponse, error) {
	stream := false
	var content strings.Builder
	req := &api.ChatRequest{
		Model: b.spec.ModelID,
		Messages: []api.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Stream: &stream,
	}
	err := b.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return interfaces.LLMResponse{}, err
	}
	return interfaces.LLMResponse{Text: content.String()}, nil
}
