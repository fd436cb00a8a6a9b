package interfaces

import "context"

// LLMResponse is the uniform result of a prompt->text call (§4.5).
type LLMResponse struct {
	Text       string
	ModelUsed  string
	TokensUsed int
	Elapsed    int64 // milliseconds
	Confidence float64
}

// LLMClient is a uniform prompt->text interface over a priority-ordered
// pool of model backends with fallback. Implementations must be safe for
// concurrent callers.
type LLMClient interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (LLMResponse, error)
}
