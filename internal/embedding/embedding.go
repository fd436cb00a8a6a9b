// Package embedding implements the Embedding Client (C2): produces a
// fixed-dimension dense vector for text, pooled and normalized, retrying
// on backend unavailability before surfacing a BackendUnavailable AppError.
package embedding

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/ollama/ollama/api"
	openai "github.com/sashabaranov/go-openai"

	"github.com/podwise/hrap/internal/apperrors"
	"github.com/podwise/hrap/internal/logger"
	"github.com/podwise/hrap/internal/providers"
	"github.com/podwise/hrap/internal/types/interfaces"
)

// Config configures a single embedding backend.
type Config struct {
	Provider   providers.ProviderName
	BaseURL    string
	APIKey     string
	ModelName  string
	Dimensions int
	MaxRetries int
	BaseDelay  time.Duration
}

// backend is the minimal seam each concrete provider implements; Client
// wraps it with retry/backoff and the fixed-dimension contract.
type backend interface {
	embed(ctx context.Context, text string) ([]float32, error)
}

// Client is C2. D is fixed at construction and every returned vector is
// checked against it. Nothing compares D with the Vector Index's dimension
// at startup.
type Client struct {
	cfg Config
	be  backend
}

var _ interfaces.EmbeddingClient = (*Client)(nil)

// New dispatches on cfg.Provider to build the right concrete backend,
// mirroring the teacher's embedder.go config-driven factory.
func New(cfg Config) (*Client, error) {
	if cfg.Dimensions <= 0 {
		return nil, apperrors.NewConfigError("embedding: dimensions must be positive", nil)
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 100 * time.Millisecond
	}

	p := providers.GetOrDefault(cfg.Provider)
	if err := p.ValidateConfig(&providers.Config{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, ModelName: cfg.ModelName}); err != nil {
		return nil, apperrors.NewConfigError(fmt.Sprintf("embedding: invalid config for provider %s", cfg.Provider), err)
	}

	var be backend
	switch cfg.Provider {
	case providers.ProviderOllama:
		be = newOllamaBackend(cfg)
	default:
		be = newOpenAICompatBackend(cfg)
	}

	return &Client{cfg: cfg, be: be}, nil
}

func (c *Client) Dimensions() int  { return c.cfg.Dimensions }
func (c *Client) ModelName() string { return c.cfg.ModelName }

// Embed produces one normalized vector, retrying up to MaxRetries times
// with exponential backoff and jitter on backend unavailability (§4.2,
// §5 "Retries").
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	delay := c.cfg.BaseDelay
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			jittered := delay + time.Duration(rand.Int63n(int64(delay)+1))
			select {
			case <-ctx.Done():
				return nil, apperrors.NewTimeoutError("embedding: context canceled during retry")
			case <-time.After(jittered):
			}
			delay *= 2
		}
		vec, err := c.be.embed(ctx, text)
		if err == nil {
			if len(vec) != c.cfg.Dimensions {
				return nil, apperrors.NewInvariantViolationError(
					fmt.Sprintf("embedding: backend returned %d dims, expected %d", len(vec), c.cfg.Dimensions))
			}
			return normalize(vec), nil
		}
		lastErr = err
		logger.Warnf(ctx, "embedding: attempt %d failed: %v", attempt, err)
	}
	return nil, apperrors.NewBackendUnavailableError("embedding: backend unavailable", lastErr)
}

// EmbedBatch embeds each text independently; a future optimization could
// batch these into one backend call where the provider supports it.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := c.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// --- concrete backends ---

type openaiBackend struct {
	client *openai.Client
	model  string
}

func newOpenAICompatBackend(cfg Config) *openaiBackend {
	oaiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oaiCfg.BaseURL = cfg.BaseURL
	}
	return &openaiBackend{client: openai.NewClientWithConfig(oaiCfg), model: cfg.ModelName}
}

func (b *openaiBackend) embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := b.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: []string{text},
		Model: openai.EmbeddingModel(b.model),
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding: empty response")
	}
	return resp.Data[0].Embedding, nil
}

type ollamaBackend struct {
	client *api.Client
	model  string
}

func newOllamaBackend(cfg Config) *ollamaBackend {
	return &ollamaBackend{client: api.NewClient(parseURL(cfg.BaseURL), nil), model: cfg.ModelName}
}

func (b *ollamaBackend) embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := b.client.Embeddings(ctx, &api.EmbeddingRequest{Model: b.model, Prompt: text})
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(resp.Embedding))
	for i, v := range resp.Embedding {
		out[i] = float32(v)
	}
	return out, nil
}
