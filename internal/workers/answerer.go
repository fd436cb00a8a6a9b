package workers

import (
	"context"
	"time"

	"github.com/podwise/hrap/internal/types"
	"github.com/podwise/hrap/internal/types/interfaces"
)

const AnswererThreshold = 0.9

const answerSystemPrompt = `You are a podcast assistant. Answer the user's ` +
	`question using ONLY the context provided below. If the context does ` +
	`not contain enough information to answer, say so plainly. Never invent ` +
	`facts, episode titles, or podcast names that are not present in the context.`

// Answerer is W6: a single LLM Client call over the compressed context,
// guarded by a fixed system prompt that forbids content outside it (§4.7).
type Answerer struct {
	llm interfaces.LLMClient
}

var _ interfaces.MergeWorker = (*Answerer)(nil)

func NewAnswerer(llm interfaces.LLMClient) *Answerer {
	return &Answerer{llm: llm}
}

func (a *Answerer) Name() types.EventType { return types.EventAnswer }
func (a *Answerer) Threshold() float64    { return AnswererThreshold }

func (a *Answerer) Run(ctx context.Context, state *types.PipelineState, budget time.Duration) error {
	start := time.Now()
	var resp interfaces.LLMResponse

	timedOut, err := withBudget(ctx, budget, func(callCtx context.Context) error {
		context_ := state.Compressed.Context
		if context_ == "" {
			context_ = fallbackContext(state)
		}
		userPrompt := "Context:\n" + context_ + "\n\nQuestion: " + state.Query.Text
		var callErr error
		resp, callErr = a.llm.Complete(callCtx, answerSystemPrompt, userPrompt)
		return callErr
	})

	state.Answer = types.AnswerResult{AnswerText: resp.Text}
	state.Answer.Elapsed = time.Since(start)
	state.Answer.TimedOut = timedOut
	state.Answer.Confidence = resp.Confidence
	state.Trace.Append(types.TraceEntry{
		Stage: string(a.Name()), StartedAt: start, Elapsed: time.Since(start),
		InputSize: len(state.Compressed.Context), OutputSize: len(resp.Text), TimedOut: timedOut,
	})
	if timedOut {
		workerWarn(ctx, a.Name(), "timed out after %s", budget)
		return nil
	}
	return err
}

// fallbackContext gives the Answerer something to work with when W5
// produced no compressed text (e.g. every sentence fell below theta),
// using the single best merged candidate's raw text instead of failing
// the whole turn.
func fallbackContext(state *types.PipelineState) string {
	source := state.Augmented.Candidates
	if len(source) == 0 {
		source = state.Merged
	}
	best := ""
	bestScore := -1.0
	for _, c := range source {
		if c.HybridScore > bestScore {
			bestScore = c.HybridScore
			best = c.Text
		}
	}
	return best
}
