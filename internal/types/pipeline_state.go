package types

import "time"

// WorkerOutput is the envelope every Worker returns alongside its typed
// payload: honouring the per-call budget is mandatory (§4.7), so the
// envelope always reports whether the call was cut short.
type WorkerOutput struct {
	TimedOut   bool          `json:"timed_out"`
	Elapsed    time.Duration `json:"elapsed"`
	Confidence float64       `json:"confidence"`
}

// RewriteResult is W1's output.
type RewriteResult struct {
	WorkerOutput
	RewrittenText   string   `json:"rewritten_text"`
	Expansions      []string `json:"expansions"`
	DetectedEntities []string `json:"detected_entities"`
	InferredDomain  Category `json:"inferred_domain"`
	Intent          string   `json:"intent"`
}

// SearchResult is W2's output.
type SearchResult struct {
	WorkerOutput
	Candidates []Candidate `json:"candidates"`
}

// RerankResult is W4's output.
type RerankResult struct {
	WorkerOutput
	Candidates []Candidate `json:"candidates"`
}

// AugmentResult is W3's output.
type AugmentResult struct {
	WorkerOutput
	Candidates []Candidate `json:"candidates"`
}

// CompressResult is W5's output.
type CompressResult struct {
	WorkerOutput
	Context string `json:"context"`
}

// AnswerResult is W6's output.
type AnswerResult struct {
	WorkerOutput
	AnswerText string `json:"answer_text"`
}

// ExpertResult is a Category Expert's output (§4.8).
type ExpertResult struct {
	Candidates       []Candidate `json:"candidates"`
	ExpertConfidence float64     `json:"expert_confidence"`
	Category         Category    `json:"category"`
}

// ExpertState is the scratch state threaded through one Category Expert's
// strictly-sequential W1→W2→W4 chain (§4.8, §5: "within a single expert,
// W1→W2→W4 is strictly sequential"). Each concurrently-running expert owns
// its own ExpertState, so no locking is needed between experts; only the
// shared Trace is safe for concurrent append because Trace.Append takes its
// own mutex.
type ExpertState struct {
	Query    Query
	Category Category

	Rewrite RewriteResult
	Search  SearchResult
	Rerank  RerankResult

	Trace *Trace
}

// NewExpertState seeds one expert's scratch state from the shared trace.
func NewExpertState(q Query, category Category, trace *Trace) *ExpertState {
	return &ExpertState{Query: q, Category: category, Trace: trace}
}

// PipelineState is the single mutable per-request object threaded through
// the Leader, the Category Experts, and the Pipeline Runner. It plays the
// same role as a chat-turn's scratch state in a conversational pipeline:
// one struct per request, never shared across requests, carrying both the
// caller-supplied input and the accumulating intermediate results.
type PipelineState struct {
	Query Query

	// Classification
	Decision CategoryDecision

	// Per-expert results, keyed by category, populated during dispatch.
	ExpertResults map[Category]ExpertResult

	// Merge output.
	Merged []Candidate

	// Post-merge worker outputs.
	Augmented  AugmentResult
	Compressed CompressResult
	Answer     AnswerResult

	// Recommendation output.
	RecommendedEpisodeIDs []string

	// Bookkeeping.
	State LeaderState
	Trace *Trace

	// Config values snapshotted at request start so a mid-flight config
	// reload cannot change behaviour for an in-flight request. HybridAlpha
	// is not set by the Leader and stays zero; the Hybrid Searcher uses the
	// alpha it was constructed with.
	HybridAlpha          float64
	ConfidenceThresholdRAG      float64
	ConfidenceThresholdFallback float64
	WebFallbackEnabled   bool
}

// NewPipelineState creates the initial per-request state.
func NewPipelineState(q Query, traceID string) *PipelineState {
	return &PipelineState{
		Query:         q,
		ExpertResults: make(map[Category]ExpertResult),
		State:         StateReceived,
		Trace:         NewTrace(traceID, q.ID),
	}
}

// BestHybridScore returns the highest hybrid_score among the merged
// candidates, used by the Leader's confidence gate (§4.9 step 7).
func (p *PipelineState) BestHybridScore() float64 {
	best := 0.0
	for _, c := range p.Merged {
		if c.HybridScore > best {
			best = c.HybridScore
		}
	}
	return best
}
